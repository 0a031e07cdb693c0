package vfs

import (
	"context"
	"fmt"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
	"github.com/smartpc/smartpc/pkg/utils"
)

// DownloadResult carries a read credential.
type DownloadResult struct {
	DownloadURL string `json:"downloadUrl"`
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

// Download returns a one-hour attachment credential for a single file.
func (s *Service) Download(ctx context.Context, req TargetRequest) (*DownloadResult, error) {
	if req.Region == "" || req.UserID == "" || (req.FileName == "" && req.Key == "") {
		return nil, errors.Validation("region, userId, and fileName or key are required.")
	}
	key, err := s.resolver.KeyFor(req.UserID, req.Ref())
	if err != nil {
		return nil, err
	}
	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	if _, err := s.objects.HeadObject(ctx, bucket, key); err != nil {
		s.logger.Warn("Download target missing", "key", key, "error", err)
		return nil, errors.NotFound(errors.ErrCodeObjectNotFound, "File not found or inaccessible.").WithCause(err)
	}

	url, err := s.objects.PresignGet(ctx, bucket, key, types.PresignGetOptions{
		TTL:                s.opts.DownloadURLTTL,
		ContentType:        defaultFileType,
		ContentDisposition: attachment(utils.LastSegment(key)),
	})
	if err != nil {
		return nil, errors.NotFound(errors.ErrCodeObjectNotFound, "File not found or inaccessible.").WithCause(err)
	}
	return &DownloadResult{DownloadURL: url}, nil
}
