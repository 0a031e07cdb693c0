package vfs

import (
	"context"
	"strings"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
	"github.com/smartpc/smartpc/pkg/utils"
)

const uploadsDir = "uploads"

// UserRoot returns the key prefix every file of userID lives under.
func UserRoot(userID string) string {
	return userID + types.Separator + uploadsDir + types.Separator
}

// FileKey builds {userId}/uploads/{folder/}{name}. folder is normalized first.
func FileKey(userID, folder, name string) string {
	folder = utils.CleanFolder(folder)
	if folder == "" {
		return UserRoot(userID) + name
	}
	return UserRoot(userID) + folder + types.Separator + name
}

// FolderKey returns the marker key of folder, always ending with a separator.
func FolderKey(userID, folder string) string {
	folder = utils.CleanFolder(folder)
	if folder == "" {
		return UserRoot(userID)
	}
	return UserRoot(userID) + folder + types.Separator
}

// relative strips the user root from key.
func relative(userID, key string) string {
	return strings.TrimPrefix(key, UserRoot(userID))
}

// Resolved is a target after folder detection.
type Resolved struct {
	// Key is the storage key; folders always end with a separator.
	Key      string
	IsFolder bool

	// Record is the metadata row, or nil when none exists.
	Record *types.FileRecord
}

// Resolver is the single place that decides whether a target is a folder.
type Resolver struct {
	files types.FileStore
}

// NewResolver returns a resolver reading metadata from files.
func NewResolver(files types.FileStore) *Resolver {
	return &Resolver{files: files}
}

// KeyFor returns the storage key of ref without consulting metadata.
func (r *Resolver) KeyFor(userID string, ref Ref) (string, error) {
	if ref.Key != "" {
		if !strings.HasPrefix(ref.Key, UserRoot(userID)) {
			return "", errors.Forbidden("key does not belong to the user")
		}
		rest := strings.TrimPrefix(ref.Key, UserRoot(userID))
		if utils.CleanFolder(rest) == "" {
			return "", errors.Validation("key must name a file or folder below the user root.")
		}
		if err := utils.ValidateFolderPath(rest); err != nil {
			return "", errors.Validation(err.Error())
		}
		return ref.Key, nil
	}
	if err := utils.ValidateFolderPath(ref.Folder); err != nil {
		return "", errors.Validation(err.Error())
	}
	if err := utils.ValidateFolderPath(ref.FileName); err != nil {
		return "", errors.Validation(err.Error())
	}
	if utils.CleanFolder(ref.FileName) == "" {
		return "", errors.Validation("fileName or key is required.")
	}
	name := ref.FileName
	if strings.HasSuffix(name, types.Separator) {
		name = utils.CleanFolder(name) + types.Separator
	}
	return FileKey(userID, ref.Folder, strings.TrimPrefix(name, types.Separator)), nil
}

// Resolve maps ref to a key and decides folder-ness. A trailing separator
// marks a folder; otherwise a metadata row with fileType "folder", stored
// with or without the trailing separator, marks one.
func (r *Resolver) Resolve(ctx context.Context, userID string, ref Ref) (*Resolved, error) {
	key, err := r.KeyFor(userID, ref)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(key, types.Separator) {
		rec, err := r.lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		return &Resolved{Key: key, IsFolder: true, Record: rec}, nil
	}

	rec, err := r.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if rec.FileType == types.FolderType {
			return &Resolved{Key: key + types.Separator, IsFolder: true, Record: rec}, nil
		}
		return &Resolved{Key: key, Record: rec}, nil
	}

	marker, err := r.lookup(ctx, key+types.Separator)
	if err != nil {
		return nil, err
	}
	if marker != nil {
		return &Resolved{Key: key + types.Separator, IsFolder: true, Record: marker}, nil
	}
	return &Resolved{Key: key}, nil
}

func (r *Resolver) lookup(ctx context.Context, key string) (*types.FileRecord, error) {
	rec, err := r.files.GetFile(ctx, key)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	return rec, err
}
