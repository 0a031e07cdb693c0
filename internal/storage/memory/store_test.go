package memory

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

var bucket = types.Bucket{Name: "files", Region: "us-east-1"}

func TestStore_PutGetHeadDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.PutObject(ctx, bucket, "u1/uploads/a.txt", []byte("hello"), "text/plain"))

	data, err := s.GetObject(ctx, bucket, "u1/uploads/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := s.HeadObject(ctx, bucket, "u1/uploads/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "text/plain", info.ContentType)

	require.NoError(t, s.DeleteObject(ctx, bucket, "u1/uploads/a.txt"))
	require.NoError(t, s.DeleteObject(ctx, bucket, "u1/uploads/a.txt"), "deleting twice is fine")

	_, err = s.HeadObject(ctx, bucket, "u1/uploads/a.txt")
	assert.True(t, errors.HasCode(err, errors.ErrCodeObjectNotFound))

	_, err = s.GetObject(ctx, types.Bucket{Name: "nope"}, "k")
	assert.True(t, errors.HasCode(err, errors.ErrCodeBucketNotFound))
}

func TestStore_CopyAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.PutObject(ctx, bucket, "u1/uploads/docs/", nil, ""))
	require.NoError(t, s.PutObject(ctx, bucket, "u1/uploads/docs/b.txt", []byte("b"), "text/plain"))
	require.NoError(t, s.PutObject(ctx, bucket, "u1/uploads/docs/a.txt", []byte("a"), "text/plain"))
	require.NoError(t, s.PutObject(ctx, bucket, "u2/uploads/c.txt", []byte("c"), "text/plain"))

	require.NoError(t, s.CopyObject(ctx, bucket, "u1/uploads/docs/a.txt", "u1/uploads/a.txt"))

	objs, err := s.ListObjects(ctx, bucket, "u1/uploads/docs/")
	require.NoError(t, err)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"u1/uploads/docs/", "u1/uploads/docs/a.txt", "u1/uploads/docs/b.txt"}, keys)
	assert.Contains(t, s.Keys("files"), "u1/uploads/a.txt")
}

func TestStore_FaultInjection(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := fmt.Errorf("boom")

	s.FailOn("DeleteObject", "u1/uploads/x", boom)
	assert.ErrorIs(t, s.DeleteObject(ctx, bucket, "u1/uploads/x"), boom)
	assert.NoError(t, s.DeleteObject(ctx, bucket, "u1/uploads/y"))

	s.FailOn("PutObject", "", boom)
	assert.ErrorIs(t, s.PutObject(ctx, bucket, "any", nil, ""), boom)
}

func TestStore_PresignedURLs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	raw, err := s.PresignGet(ctx, bucket, "u1/uploads/a.pdf", types.PresignGetOptions{
		TTL:                time.Hour,
		ContentDisposition: `attachment; filename="a.pdf"`,
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "memory", u.Scheme)
	assert.Equal(t, "files", u.Host)
	assert.Equal(t, "/u1/uploads/a.pdf", u.Path)
	assert.Equal(t, "3600", u.Query().Get("expires"))
	assert.Equal(t, "us-east-1", u.Query().Get("region"))
	assert.Equal(t, `attachment; filename="a.pdf"`, u.Query().Get("response-content-disposition"))

	raw, err = s.PresignPut(ctx, bucket, "u1/uploads/a.pdf", "application/pdf", time.Hour)
	require.NoError(t, err)
	u, _ = url.Parse(raw)
	assert.Equal(t, "put", u.Query().Get("op"))
	assert.Equal(t, "application/pdf", u.Query().Get("content-type"))
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore().ListObjects(ctx, bucket, "")
	assert.ErrorIs(t, err, context.Canceled)
}
