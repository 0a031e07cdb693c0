package vfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
	"github.com/smartpc/smartpc/pkg/utils"
)

// TransferResult reports a move or copy. MovedFiles lists the destination
// paths, relative to the user's root, of every source that made it.
type TransferResult struct {
	Message    string             `json:"message"`
	MovedFiles []string           `json:"movedFiles"`
	Results    []types.ItemResult `json:"results"`

	batch types.BatchResult
}

// AllFailed reports whether no source was transferred.
func (r *TransferResult) AllFailed() bool {
	return r.batch.AllFailed()
}

// Move transfers each source into the destination folder and removes the originals.
func (s *Service) Move(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	return s.transfer(ctx, req, true)
}

// Copy duplicates each source into the destination folder.
func (s *Service) Copy(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	return s.transfer(ctx, req, false)
}

func (s *Service) transfer(ctx context.Context, req TransferRequest, move bool) (*TransferResult, error) {
	dest := utils.CleanFolder(req.DestinationFolder)
	if req.Region == "" || req.UserID == "" || len(req.SourceFileNames) == 0 || dest == "" {
		return nil, errors.Validation("region, userId, sourceFileNames, and destinationFolder are required.")
	}
	if err := utils.ValidateFolderPath(dest); err != nil {
		return nil, errors.Validation(err.Error())
	}
	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	out := &TransferResult{MovedFiles: []string{}}
	for _, name := range req.SourceFileNames {
		target, err := s.resolver.Resolve(ctx, req.UserID, Ref{FileName: name})
		if err != nil {
			out.batch.Fail(name, err)
			continue
		}

		var moved string
		if target.IsFolder {
			moved, err = s.transferFolder(ctx, bucket, req.UserID, target, dest, move)
		} else {
			moved, err = s.transferFile(ctx, bucket, req.UserID, target, dest, move)
		}
		if err != nil {
			s.logger.Warn("Transfer failed", "source", target.Key, "destination", dest, "move", move, "error", err)
			out.batch.Fail(name, err)
			continue
		}
		out.batch.Ok(name)
		out.MovedFiles = append(out.MovedFiles, moved)
	}

	verb := "copied"
	if move {
		verb = "moved"
	}
	out.Message = fmt.Sprintf("Files %s successfully", verb)
	out.Results = out.batch.Items
	return out, nil
}

// transferFile copies one file under the first free name in dest.
func (s *Service) transferFile(ctx context.Context, bucket types.Bucket, userID string, src *Resolved, dest string, move bool) (string, error) {
	if src.Record == nil {
		return "", errors.NotFound(errors.ErrCodeRecordNotFound, "File not found.")
	}

	rec := *src.Record
	rec.Folder = dest
	rec.CreatedAt = s.timestamp()
	if err := s.claim(ctx, userID, dest, src.Record.FileName, &rec); err != nil {
		return "", err
	}
	if err := s.objects.CopyObject(ctx, bucket, src.Key, rec.ID); err != nil {
		if derr := s.files.DeleteFile(ctx, rec.ID); derr != nil {
			s.logger.Warn("Failed to release claimed name", "key", rec.ID, "error", derr)
		}
		return "", err
	}

	if move {
		if err := s.removeOriginal(ctx, bucket, src.Key); err != nil {
			return "", err
		}
	}
	return relative(userID, rec.ID), nil
}

// transferFolder copies a subtree to dest/{folder name}/, keeping relative
// paths. Originals are removed only after every copy succeeded.
func (s *Service) transferFolder(ctx context.Context, bucket types.Bucket, userID string, src *Resolved, dest string, move bool) (string, error) {
	name := utils.LastSegment(src.Key)
	target := FolderKey(userID, dest+types.Separator+name)
	if strings.HasPrefix(target, src.Key) {
		return "", errors.Validation(fmt.Sprintf("Cannot %s a folder into itself: %s", verbOf(move), relative(userID, src.Key)))
	}

	records, err := s.files.ScanPrefix(ctx, src.Key)
	if err != nil {
		return "", err
	}
	if len(records) == 0 && src.Record == nil {
		return "", errors.NotFound(errors.ErrCodeFolderNotFound, "Folder not found.")
	}

	hasMarker := false
	for _, rec := range records {
		if rec.ID == src.Key {
			hasMarker = true
		}
	}
	if !hasMarker {
		records = append([]types.FileRecord{{
			ID:       src.Key,
			Bucket:   bucket.Name,
			Region:   bucket.Region,
			UserID:   userID,
			FileType: types.FolderType,
			Status:   types.StatusPrivate,
		}}, records...)
	}

	now := s.timestamp()
	for _, rec := range records {
		newKey := target + strings.TrimPrefix(rec.ID, src.Key)
		copied := rec
		copied.ID = newKey
		copied.FileName = utils.LastSegment(newKey)
		copied.Folder = utils.ParentFolder(relative(userID, newKey))
		copied.CreatedAt = now

		if rec.IsFolder() {
			err = s.objects.PutObject(ctx, bucket, newKey, nil, "")
		} else {
			err = s.objects.CopyObject(ctx, bucket, rec.ID, newKey)
		}
		if err != nil {
			return "", err
		}
		if err := s.files.PutFile(ctx, &copied); err != nil {
			return "", err
		}
	}

	if move {
		for _, rec := range records {
			if err := s.removeOriginal(ctx, bucket, rec.ID); err != nil {
				return "", err
			}
		}
	}
	return relative(userID, target), nil
}

func (s *Service) removeOriginal(ctx context.Context, bucket types.Bucket, key string) error {
	if err := s.objects.DeleteObject(ctx, bucket, key); err != nil {
		return err
	}
	return s.files.DeleteFile(ctx, key)
}

func verbOf(move bool) string {
	if move {
		return "move"
	}
	return "copy"
}
