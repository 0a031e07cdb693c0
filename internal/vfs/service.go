package vfs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartpc/smartpc/internal/cache"
	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// Options tunes credential lifetimes and the rename policy.
type Options struct {
	UploadURLTTL   time.Duration
	PreviewURLTTL  time.Duration
	DownloadURLTTL time.Duration
	ArchiveURLTTL  time.Duration

	// RenameLimit caps the "name (n).ext" attempts before giving up.
	RenameLimit int

	// BucketCacheTTL bounds how long a region's bucket is remembered.
	BucketCacheTTL time.Duration
}

// DefaultOptions returns one-hour credentials, five-minute previews, a
// rename cap of 1000 and a one-minute bucket cache.
func DefaultOptions() Options {
	return Options{
		UploadURLTTL:   time.Hour,
		PreviewURLTTL:  5 * time.Minute,
		DownloadURLTTL: time.Hour,
		ArchiveURLTTL:  time.Hour,
		RenameLimit:    1000,
		BucketCacheTTL: time.Minute,
	}
}

// Service emulates a hierarchical filesystem over an object store and a
// metadata table.
type Service struct {
	objects  types.ObjectStore
	files    types.FileStore
	resolver *Resolver
	buckets  *cache.LRU[string, types.Bucket]
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the emulator to its stores. A nil logger uses slog.Default().
func NewService(objects types.ObjectStore, files types.FileStore, opts Options, logger *slog.Logger) *Service {
	def := DefaultOptions()
	if opts.UploadURLTTL <= 0 {
		opts.UploadURLTTL = def.UploadURLTTL
	}
	if opts.PreviewURLTTL <= 0 {
		opts.PreviewURLTTL = def.PreviewURLTTL
	}
	if opts.DownloadURLTTL <= 0 {
		opts.DownloadURLTTL = def.DownloadURLTTL
	}
	if opts.ArchiveURLTTL <= 0 {
		opts.ArchiveURLTTL = def.ArchiveURLTTL
	}
	if opts.RenameLimit <= 0 {
		opts.RenameLimit = def.RenameLimit
	}
	if opts.BucketCacheTTL <= 0 {
		opts.BucketCacheTTL = def.BucketCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		objects:  objects,
		files:    files,
		resolver: NewResolver(files),
		buckets:  cache.NewLRU[string, types.Bucket](cache.Config{MaxEntries: 64, TTL: opts.BucketCacheTTL}),
		opts:     opts,
		logger:   logger.With("component", "vfs"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolver exposes the folder resolver used by every operation.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// bucket resolves the region's bucket. Misses are not cached.
func (s *Service) bucket(ctx context.Context, region string) (types.Bucket, error) {
	if b, ok := s.buckets.Get(region); ok {
		return b, nil
	}
	b, err := s.files.BucketForRegion(ctx, region)
	if err != nil {
		if errors.IsNotFound(err) {
			return types.Bucket{}, errors.NotFound(errors.ErrCodeBucketNotFound,
				fmt.Sprintf("No bucket found for region: %s", region))
		}
		return types.Bucket{}, err
	}
	if b.Region == "" {
		b.Region = region
	}
	s.buckets.Put(region, b)
	return b, nil
}

func (s *Service) timestamp() string {
	return types.Timestamp(s.now())
}
