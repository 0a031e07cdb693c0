package vfs

import (
	"context"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
	"github.com/smartpc/smartpc/pkg/utils"
)

// MessageResult is the body of operations that only confirm.
type MessageResult struct {
	Message string `json:"message"`
}

// CreateFolder writes a zero-byte marker object and its folder record.
// Nested names such as "reports/2024" create only the innermost marker.
func (s *Service) CreateFolder(ctx context.Context, req CreateFolderRequest) (*MessageResult, error) {
	name := utils.CleanFolder(req.FolderName)
	if req.Region == "" || req.UserID == "" || name == "" {
		return nil, errors.Validation("region, folderName, and userId are required.")
	}
	if err := utils.ValidateFolderPath(name); err != nil {
		return nil, errors.Validation(err.Error())
	}
	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	key := FolderKey(req.UserID, name)
	rec := &types.FileRecord{
		ID:        key,
		Bucket:    bucket.Name,
		Region:    req.Region,
		UserID:    req.UserID,
		FileName:  utils.LastSegment(name),
		FileType:  types.FolderType,
		Status:    types.StatusPrivate,
		Folder:    utils.ParentFolder(name),
		CreatedAt: s.timestamp(),
	}

	if err := s.files.CreateFile(ctx, rec); err != nil {
		if errors.HasCode(err, errors.ErrCodeRecordExists) {
			return nil, errors.NewError(errors.ErrCodeFolderExists, "Folder already exists.")
		}
		return nil, err
	}

	if err := s.objects.PutObject(ctx, bucket, key, nil, ""); err != nil {
		if derr := s.files.DeleteFile(ctx, key); derr != nil {
			s.logger.Warn("Failed to remove folder record after marker failure", "key", key, "error", derr)
		}
		return nil, err
	}

	s.logger.Info("Folder created", "key", key)
	return &MessageResult{Message: "Folder created successfully"}, nil
}
