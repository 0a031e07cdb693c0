package vfs

import (
	"context"
	"math"

	"github.com/smartpc/smartpc/pkg/errors"
)

// UsageResult is a user's storage consumption.
type UsageResult struct {
	UserID     string  `json:"userId"`
	TotalBytes int64   `json:"totalBytes"`
	TotalMB    float64 `json:"totalMB"`
}

// Usage sums the sizes of every file the user owns. Folder markers count as zero.
func (s *Service) Usage(ctx context.Context, req UsageRequest) (*UsageResult, error) {
	if req.UserID == "" {
		return nil, errors.Validation("userId is required.")
	}
	records, err := s.files.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var total int64
	for i := range records {
		if records[i].IsFolder() {
			continue
		}
		total += records[i].Size
	}
	mb := math.Round(float64(total)/(1024*1024)*100) / 100
	return &UsageResult{UserID: req.UserID, TotalBytes: total, TotalMB: mb}, nil
}
