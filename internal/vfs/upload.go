package vfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
	"github.com/smartpc/smartpc/pkg/utils"
)

const defaultFileType = "application/octet-stream"

// renamed returns "{base} ({n}).{ext}", or "{base} ({n})" when name has no
// extension. n == 0 returns name unchanged.
func renamed(name string, n int) string {
	if n == 0 {
		return name
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		return fmt.Sprintf("%s (%d).%s", name[:i], n, name[i+1:])
	}
	return fmt.Sprintf("%s (%d)", name, n)
}

// claim writes rec under the first free name of the "name (n).ext" series in
// folder, using a conditional create so concurrent claims cannot collide.
// rec.ID and rec.FileName are set to the claimed values.
func (s *Service) claim(ctx context.Context, userID, folder, name string, rec *types.FileRecord) error {
	for n := 0; n <= s.opts.RenameLimit; n++ {
		candidate := renamed(name, n)
		rec.ID = FileKey(userID, folder, candidate)
		rec.FileName = candidate

		err := s.files.CreateFile(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.HasCode(err, errors.ErrCodeRecordExists) {
			return err
		}
	}
	return errors.NewError(errors.ErrCodeRenameExhausted,
		fmt.Sprintf("No free name for %s after %d attempts", name, s.opts.RenameLimit))
}

// Upload reserves a key for a new file and returns a write credential for it.
// A taken name is renamed to the smallest free "name (n).ext".
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Region == "" || req.FileName == "" || req.UserID == "" {
		return nil, errors.Validation("Region, fileName, and userId are required.")
	}
	if err := utils.ValidateSegment(req.FileName); err != nil {
		return nil, errors.Validation(err.Error())
	}
	if err := utils.ValidateFolderPath(req.Folder); err != nil {
		return nil, errors.Validation(err.Error())
	}

	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	fileType := req.FileType
	if fileType == "" {
		fileType = defaultFileType
	}
	status := req.Status
	if status == "" {
		status = types.StatusPrivate
	}
	folder := utils.CleanFolder(req.Folder)

	rec := &types.FileRecord{
		Bucket:    bucket.Name,
		Region:    req.Region,
		UserID:    req.UserID,
		FileType:  fileType,
		Size:      req.Size,
		Status:    status,
		Starred:   req.Starred,
		Shared:    status == types.StatusShared,
		Folder:    folder,
		CreatedAt: s.timestamp(),
	}
	if err := s.claim(ctx, req.UserID, folder, req.FileName, rec); err != nil {
		return nil, err
	}

	url, err := s.objects.PresignPut(ctx, bucket, rec.ID, fileType, s.opts.UploadURLTTL)
	if err != nil {
		if derr := s.files.DeleteFile(ctx, rec.ID); derr != nil {
			s.logger.Warn("Failed to release claimed name", "key", rec.ID, "error", derr)
		}
		return nil, err
	}

	s.logger.Info("Upload credential issued", "key", rec.ID, "bucket", bucket.Name)
	return &UploadResult{UploadURL: url, FinalFileName: rec.FileName}, nil
}
