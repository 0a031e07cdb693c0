package vfs

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
	"github.com/smartpc/smartpc/pkg/utils"
)

const (
	downloadsDir = "downloads"
	sharedDir    = "shared"

	zipContentType = "application/zip"
)

// ArchiveResult carries the read credential of a built archive.
type ArchiveResult struct {
	DownloadURL string `json:"downloadUrl"`
}

// ShareMultipleResult carries the shared archive link and per-item outcomes.
type ShareMultipleResult struct {
	ShareableLink string             `json:"shareableLink"`
	Results       []types.ItemResult `json:"results"`

	batch types.BatchResult
}

// AllFailed reports whether no item made it into the archive.
func (r *ShareMultipleResult) AllFailed() bool {
	return r.batch.AllFailed()
}

// archive accumulates zip entries. Directory entries are implied by every
// file path and deduplicated.
type archive struct {
	dirs  map[string]bool
	files map[string][]byte
	mod   time.Time
}

func newArchive(mod time.Time) *archive {
	return &archive{dirs: make(map[string]bool), files: make(map[string][]byte), mod: mod}
}

func (a *archive) addDir(path string) {
	path = utils.CleanFolder(path)
	for path != "" {
		a.dirs[path+types.Separator] = true
		path = utils.ParentFolder(path)
	}
}

func (a *archive) addFile(path string, data []byte) {
	path = utils.CleanFolder(path)
	if path == "" {
		return
	}
	a.addDir(utils.ParentFolder(path))
	a.files[path] = data
}

func (a *archive) empty() bool {
	return len(a.files) == 0
}

// bytes writes directories first, then files, both in lexical order.
func (a *archive) bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	dirs := make([]string, 0, len(a.dirs))
	for d := range a.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		if _, err := zw.CreateHeader(&zip.FileHeader{Name: d, Method: zip.Store, Modified: a.mod}); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(a.files))
	for n := range a.files {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: n, Method: zip.Deflate, Modified: a.mod})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(a.files[n]); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// collect adds every object under prefix to a, with paths relative to
// prefix and joined onto base. It reports how many objects were found.
func (s *Service) collect(ctx context.Context, bucket types.Bucket, prefix, base string, a *archive) (int, error) {
	objs, err := s.objects.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return 0, err
	}
	if base != "" {
		a.addDir(base)
	}
	for _, obj := range objs {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if base != "" {
			rel = base + types.Separator + rel
		}
		if rel == "" || strings.HasSuffix(obj.Key, types.Separator) {
			a.addDir(rel)
			continue
		}
		data, err := s.objects.GetObject(ctx, bucket, obj.Key)
		if err != nil {
			return 0, err
		}
		a.addFile(rel, data)
	}
	return len(objs), nil
}

func (s *Service) publish(ctx context.Context, bucket types.Bucket, key, filename string, a *archive) (string, error) {
	data, err := a.bytes()
	if err != nil {
		return "", errors.NewError(errors.ErrCodeInternalError, "Failed to build archive").WithCause(err)
	}
	if err := s.objects.PutObject(ctx, bucket, key, data, zipContentType); err != nil {
		return "", err
	}
	return s.objects.PresignGet(ctx, bucket, key, types.PresignGetOptions{
		TTL:                s.opts.ArchiveURLTTL,
		ContentType:        zipContentType,
		ContentDisposition: attachment(filename),
	})
}

// DownloadFolder zips a folder subtree into {userId}/downloads/ and returns
// a read credential for the archive. Entries are relative to the folder.
// A folder holding only markers still yields a valid archive.
func (s *Service) DownloadFolder(ctx context.Context, req DownloadFolderRequest) (*ArchiveResult, error) {
	folder := utils.CleanFolder(req.Folder)
	if req.Region == "" || req.UserID == "" || folder == "" {
		return nil, errors.Validation("region, userId, and folder are required.")
	}
	if err := utils.ValidateFolderPath(folder); err != nil {
		return nil, errors.Validation(err.Error())
	}
	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	a := newArchive(s.now())
	found, err := s.collect(ctx, bucket, FolderKey(req.UserID, folder), "", a)
	if err != nil {
		s.logger.Error("Failed to collect folder contents", "folder", folder, "error", err)
		return nil, err
	}
	if found == 0 {
		return nil, errors.NotFound(errors.ErrCodeFolderNotFound, "Folder is empty or does not exist.")
	}

	name := archiveName(folder)
	key := req.UserID + types.Separator + downloadsDir + types.Separator + name
	url, err := s.publish(ctx, bucket, key, name, a)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Folder archive ready", "key", key, "files", len(a.files))
	return &ArchiveResult{DownloadURL: url}, nil
}

// ShareMultiple bundles the listed files and folders into one archive under
// {userId}/shared/ and returns a read credential for it. Folders keep their
// own name as the top-level directory.
func (s *Service) ShareMultiple(ctx context.Context, req ShareMultipleRequest) (*ShareMultipleResult, error) {
	if req.Region == "" || req.UserID == "" || len(req.Items) == 0 {
		return nil, errors.Validation("region, userId, and items are required.")
	}
	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	out := &ShareMultipleResult{}
	a := newArchive(s.now())
	for _, ref := range req.Items {
		target, err := s.resolver.Resolve(ctx, req.UserID, ref)
		if err != nil {
			out.batch.Fail(ref.Label(), err)
			continue
		}
		if target.IsFolder {
			found, err := s.collect(ctx, bucket, target.Key, utils.LastSegment(target.Key), a)
			if err != nil {
				out.batch.Fail(target.Key, err)
				continue
			}
			if found == 0 && target.Record == nil {
				out.batch.Fail(target.Key, errors.NotFound(errors.ErrCodeFolderNotFound, "Folder is empty or does not exist."))
				continue
			}
			out.batch.Ok(target.Key)
			continue
		}

		data, err := s.objects.GetObject(ctx, bucket, target.Key)
		if err != nil {
			out.batch.Fail(target.Key, err)
			continue
		}
		a.addFile(utils.LastSegment(target.Key), data)
		out.batch.Ok(target.Key)
	}
	out.Results = out.batch.Items
	if out.AllFailed() {
		return out, nil
	}

	name := uuid.NewString() + ".zip"
	key := req.UserID + types.Separator + sharedDir + types.Separator + name
	url, err := s.publish(ctx, bucket, key, name, a)
	if err != nil {
		return nil, err
	}
	out.ShareableLink = url

	s.logger.Info("Shared archive ready", "key", key, "items", len(out.batch.Succeeded()))
	return out, nil
}

func archiveName(folder string) string {
	return fmt.Sprintf("%s.zip", strings.ReplaceAll(utils.CleanFolder(folder), types.Separator, "_"))
}
