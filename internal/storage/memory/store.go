// Package memory provides an in-memory object store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

type object struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// Store implements types.ObjectStore in memory. Presigned URLs use the
// memory:// scheme and encode what a real credential would carry.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*object
	faults  map[string]error
}

var _ types.ObjectStore = (*Store)(nil)

// NewStore creates an empty store. Buckets spring into existence on first write.
func NewStore() *Store {
	return &Store{
		buckets: make(map[string]map[string]*object),
		faults:  make(map[string]error),
	}
}

// FailOn makes every call of op on key return err. An empty key matches all keys.
func (s *Store) FailOn(op, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op+"|"+key] = err
}

func (s *Store) fault(op, key string) error {
	if err, ok := s.faults[op+"|"+key]; ok {
		return err
	}
	return s.faults[op+"|"]
}

// PutObject stores a copy of data.
func (s *Store) PutObject(ctx context.Context, b types.Bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("PutObject", key); err != nil {
		return err
	}
	objs, ok := s.buckets[b.Name]
	if !ok {
		objs = make(map[string]*object)
		s.buckets[b.Name] = objs
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	objs[key] = &object{data: buf, contentType: contentType, lastModified: time.Now().UTC()}
	return nil
}

// GetObject returns a copy of the stored bytes.
func (s *Store) GetObject(ctx context.Context, b types.Bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fault("GetObject", key); err != nil {
		return nil, err
	}
	obj, err := s.lookup(b.Name, key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

// HeadObject returns object metadata.
func (s *Store) HeadObject(ctx context.Context, b types.Bucket, key string) (*types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fault("HeadObject", key); err != nil {
		return nil, err
	}
	obj, err := s.lookup(b.Name, key)
	if err != nil {
		return nil, err
	}
	return &types.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
		ContentType:  obj.contentType,
	}, nil
}

// DeleteObject removes key. Missing keys are not an error, as with S3.
func (s *Store) DeleteObject(ctx context.Context, b types.Bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("DeleteObject", key); err != nil {
		return err
	}
	if objs, ok := s.buckets[b.Name]; ok {
		delete(objs, key)
	}
	return nil
}

// CopyObject duplicates srcKey into dstKey.
func (s *Store) CopyObject(ctx context.Context, b types.Bucket, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("CopyObject", srcKey); err != nil {
		return err
	}
	src, err := s.lookup(b.Name, srcKey)
	if err != nil {
		return err
	}
	buf := make([]byte, len(src.data))
	copy(buf, src.data)
	s.buckets[b.Name][dstKey] = &object{data: buf, contentType: src.contentType, lastModified: time.Now().UTC()}
	return nil
}

// ListObjects returns every key under prefix in lexical order.
func (s *Store) ListObjects(ctx context.Context, b types.Bucket, prefix string) ([]types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fault("ListObjects", prefix); err != nil {
		return nil, err
	}
	var out []types.ObjectInfo
	for key, obj := range s.buckets[b.Name] {
		if strings.HasPrefix(key, prefix) {
			out = append(out, types.ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				LastModified: obj.lastModified,
				ContentType:  obj.contentType,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignPut returns a memory:// write credential.
func (s *Store) PresignPut(ctx context.Context, b types.Bucket, key, contentType string, ttl time.Duration) (string, error) {
	q := url.Values{}
	q.Set("op", "put")
	q.Set("expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	q.Set("content-type", contentType)
	return presignedURL(b, key, q), nil
}

// PresignGet returns a memory:// read credential.
func (s *Store) PresignGet(ctx context.Context, b types.Bucket, key string, opts types.PresignGetOptions) (string, error) {
	q := url.Values{}
	q.Set("op", "get")
	q.Set("expires", fmt.Sprintf("%d", int(opts.TTL.Seconds())))
	if opts.ContentType != "" {
		q.Set("response-content-type", opts.ContentType)
	}
	if opts.ContentDisposition != "" {
		q.Set("response-content-disposition", opts.ContentDisposition)
	}
	return presignedURL(b, key, q), nil
}

// Keys returns every key of bucket in lexical order.
func (s *Store) Keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.buckets[bucket]))
	for k := range s.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// must be called with lock held
func (s *Store) lookup(bucket, key string) (*object, error) {
	objs, ok := s.buckets[bucket]
	if !ok {
		return nil, errors.NotFound(errors.ErrCodeBucketNotFound, fmt.Sprintf("bucket not found: %s", bucket))
	}
	obj, ok := objs[key]
	if !ok {
		return nil, errors.NotFound(errors.ErrCodeObjectNotFound, fmt.Sprintf("object not found: %s", key))
	}
	return obj, nil
}

func presignedURL(b types.Bucket, key string, q url.Values) string {
	u := url.URL{
		Scheme:   "memory",
		Host:     b.Name,
		Path:     "/" + key,
		RawQuery: q.Encode(),
	}
	if b.Region != "" {
		q.Set("region", b.Region)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
