package vfs

import (
	"context"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// DeleteResult reports a single delete. Results lists every key removed
// (or not) when the target was a folder.
type DeleteResult struct {
	Message string             `json:"message"`
	Results []types.ItemResult `json:"results,omitempty"`
}

// BatchDeleteResult reports a delete-multiple call item by item.
type BatchDeleteResult struct {
	Message string             `json:"message"`
	Results []types.ItemResult `json:"results"`

	batch types.BatchResult
}

// AllFailed reports whether no item could be deleted.
func (r *BatchDeleteResult) AllFailed() bool {
	return r.batch.AllFailed()
}

// Delete removes one file, or a folder with everything under it.
func (s *Service) Delete(ctx context.Context, req TargetRequest) (*DeleteResult, error) {
	if req.Region == "" || req.UserID == "" || (req.FileName == "" && req.Key == "") {
		return nil, errors.Validation("region, userId, and fileName or key are required.")
	}
	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}
	target, err := s.resolver.Resolve(ctx, req.UserID, req.Ref())
	if err != nil {
		return nil, err
	}

	if target.IsFolder {
		batch, err := s.deleteFolder(ctx, bucket, target.Key)
		if err != nil {
			return nil, err
		}
		return &DeleteResult{Message: "Folder and contents deleted successfully", Results: batch.Items}, nil
	}

	if err := s.deleteFile(ctx, bucket, target.Key); err != nil {
		return nil, err
	}
	return &DeleteResult{Message: "File deleted successfully"}, nil
}

// DeleteMultiple deletes each item in turn and reports per-item outcomes.
func (s *Service) DeleteMultiple(ctx context.Context, req DeleteMultipleRequest) (*BatchDeleteResult, error) {
	if req.Region == "" || req.UserID == "" || len(req.FileNames) == 0 {
		return nil, errors.Validation("region, userId, and fileNames are required.")
	}
	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	out := &BatchDeleteResult{}
	for _, ref := range req.FileNames {
		target, err := s.resolver.Resolve(ctx, req.UserID, ref)
		if err != nil {
			out.batch.Fail(ref.Label(), err)
			continue
		}

		if target.IsFolder {
			sub, err := s.deleteFolder(ctx, bucket, target.Key)
			if err != nil {
				out.batch.Fail(target.Key, err)
				continue
			}
			if len(sub.Failed()) > 0 {
				out.batch.Fail(target.Key, errors.NewError(errors.ErrCodeDependencyFailed, "some folder contents could not be deleted").
					WithDetail("failed", sub.Failed()))
				continue
			}
			out.batch.Ok(target.Key)
			continue
		}

		if err := s.deleteFile(ctx, bucket, target.Key); err != nil {
			out.batch.Fail(target.Key, err)
			continue
		}
		out.batch.Ok(target.Key)
	}

	out.Results = out.batch.Items
	out.Message = "Files and folders deleted successfully"
	if out.AllFailed() {
		out.Message = "No files or folders could be deleted"
	}
	return out, nil
}

// deleteFolder removes every record under key, then the folder itself.
// Individual failures are logged and reported, never fatal.
func (s *Service) deleteFolder(ctx context.Context, bucket types.Bucket, key string) (*types.BatchResult, error) {
	records, err := s.files.ScanPrefix(ctx, key)
	if err != nil {
		s.logger.Error("Failed to scan folder contents", "key", key, "error", err)
		return nil, errors.NewError(errors.ErrCodeDependencyFailed, "Failed to retrieve folder contents").WithCause(err)
	}

	result := &types.BatchResult{}
	for _, rec := range records {
		if rec.ID == key {
			continue
		}
		result.Items = append(result.Items, s.deleteQuietly(ctx, bucket, rec.ID))
	}
	result.Items = append(result.Items, s.deleteQuietly(ctx, bucket, key))

	s.logger.Info("Deleted folder", "key", key, "items", len(result.Items))
	return result, nil
}

func (s *Service) deleteQuietly(ctx context.Context, bucket types.Bucket, key string) types.ItemResult {
	if err := s.objects.DeleteObject(ctx, bucket, key); err != nil {
		s.logger.Warn("Failed to delete object", "key", key, "error", err)
		return types.ItemResult{Target: key, Error: err.Error()}
	}
	if err := s.files.DeleteFile(ctx, key); err != nil {
		s.logger.Warn("Failed to delete metadata", "key", key, "error", err)
		return types.ItemResult{Target: key, Error: err.Error()}
	}
	return types.ItemResult{Target: key, Success: true}
}

// deleteFile removes one object and its record. A failed metadata delete is
// only logged.
func (s *Service) deleteFile(ctx context.Context, bucket types.Bucket, key string) error {
	if err := s.objects.DeleteObject(ctx, bucket, key); err != nil {
		s.logger.Warn("Failed to delete object", "key", key, "error", err)
		return errors.NotFound(errors.ErrCodeObjectNotFound, "File not found or could not be deleted.").WithCause(err)
	}
	if err := s.files.DeleteFile(ctx, key); err != nil {
		s.logger.Warn("Failed to delete metadata", "key", key, "error", err)
	}
	return nil
}
