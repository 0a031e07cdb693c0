// Package memory implements types.FileStore with in-process maps.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// Store keeps file records and the region to bucket mapping in memory.
// A single read-write mutex guards every map.
type Store struct {
	mu      sync.RWMutex
	files   map[string]types.FileRecord
	buckets map[string]types.Bucket
}

var _ types.FileStore = (*Store)(nil)

// NewStore creates an empty store seeded with buckets.
func NewStore(buckets ...types.Bucket) *Store {
	s := &Store{
		files:   make(map[string]types.FileRecord),
		buckets: make(map[string]types.Bucket),
	}
	for _, b := range buckets {
		s.buckets[b.Region] = b
	}
	return s
}

func (s *Store) BucketForRegion(ctx context.Context, region string) (types.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return types.Bucket{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[region]
	if !ok {
		return types.Bucket{}, errors.NotFound(errors.ErrCodeBucketNotFound,
			fmt.Sprintf("No bucket found for region %s", region))
	}
	return b, nil
}

func (s *Store) PutBucket(ctx context.Context, b types.Bucket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[b.Region] = b
	return nil
}

func (s *Store) GetFile(ctx context.Context, id string) (*types.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, notFound(id)
	}
	return &rec, nil
}

func (s *Store) CreateFile(ctx context.Context, rec *types.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[rec.ID]; ok {
		return errors.NewError(errors.ErrCodeRecordExists, fmt.Sprintf("record already exists: %s", rec.ID))
	}
	s.files[rec.ID] = *rec
	return nil
}

func (s *Store) PutFile(ctx context.Context, rec *types.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rec.ID] = *rec
	return nil
}

func (s *Store) UpdateFile(ctx context.Context, id string, fn func(*types.FileRecord) error) (*types.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, notFound(id)
	}
	if err := fn(&rec); err != nil {
		return nil, err
	}
	rec.ID = id
	s.files[id] = rec
	return &rec, nil
}

// DeleteFile removes id. Deleting a missing record succeeds.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	return nil
}

func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]types.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.FileRecord, 0)
	for id, rec := range s.files {
		if strings.HasPrefix(id, prefix) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]types.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.FileRecord, 0)
	for _, rec := range s.files {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func notFound(id string) error {
	return errors.NotFound(errors.ErrCodeRecordNotFound, fmt.Sprintf("file record not found: %s", id))
}
