package s3

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Endpoint = "http://localhost:4566"
	cfg.ForcePathStyle = true
	cfg.AccessKeyID = "AKIDEXAMPLE"
	cfg.SecretAccessKey = "secret"

	store, err := NewStore(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	return store
}

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.ForcePathStyle)
}

func TestPresignGet(t *testing.T) {
	store := newTestStore(t)
	bucket := types.Bucket{Name: "files-use1", Region: "us-east-1"}

	raw, err := store.PresignGet(context.Background(), bucket, "u1/uploads/reports/a.pdf", types.PresignGetOptions{
		TTL:                time.Hour,
		ContentType:        "application/octet-stream",
		ContentDisposition: `attachment; filename="a.pdf"`,
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:4566", u.Host)
	assert.Equal(t, "/files-use1/u1/uploads/reports/a.pdf", u.Path)

	q := u.Query()
	assert.Equal(t, "3600", q.Get("X-Amz-Expires"))
	assert.Equal(t, `attachment; filename="a.pdf"`, q.Get("response-content-disposition"))
	assert.Equal(t, "application/octet-stream", q.Get("response-content-type"))
	assert.Contains(t, q.Get("X-Amz-Credential"), "/us-east-1/s3/")
}

func TestPresignUsesBucketRegion(t *testing.T) {
	store := newTestStore(t)
	bucket := types.Bucket{Name: "files-euw1", Region: "eu-west-1"}

	raw, err := store.PresignPut(context.Background(), bucket, "u1/uploads/a.txt", "text/plain", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Contains(t, u.Query().Get("X-Amz-Credential"), "/eu-west-1/s3/")
}

func TestPresignPreviewTTL(t *testing.T) {
	store := newTestStore(t)

	raw, err := store.PresignGet(context.Background(), types.Bucket{Name: "b", Region: "us-east-1"}, "u1/uploads/x.png",
		types.PresignGetOptions{TTL: 5 * time.Minute})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.Empty(t, u.Query().Get("response-content-disposition"))
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"no such key", &s3types.NoSuchKey{}, errors.ErrCodeObjectNotFound},
		{"head not found", fmt.Errorf("wrapped: %w", &s3types.NotFound{}), errors.ErrCodeObjectNotFound},
		{"no such bucket", &s3types.NoSuchBucket{}, errors.ErrCodeBucketNotFound},
		{"other", fmt.Errorf("access denied"), errors.ErrCodeDependencyFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err, "GetObject", "files", "u1/uploads/a.pdf")
			assert.True(t, errors.HasCode(got, tt.code), "got %v", got)
		})
	}

	assert.Nil(t, translateError(nil, "GetObject", "files", "k"))
}

func TestUseTransporter(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.useTransporter(64*1024*1024), "disabled by default")

	cfg.EnableTransferOptimization = true
	tests := []struct {
		size int64
		want bool
	}{
		{0, false},
		{cfg.TransferMinSize - 1, false},
		{cfg.TransferMinSize, true},
		{64 * 1024 * 1024, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.useTransporter(tt.size), "size %d", tt.size)
	}
}

func TestTransporterPerBucket(t *testing.T) {
	store := newTestStore(t)
	assert.Nil(t, store.clients.transporter("us-east-1", "files-use1"))

	store.clients.config.EnableTransferOptimization = true
	a := store.clients.transporter("us-east-1", "files-use1")
	require.NotNil(t, a)
	assert.Same(t, a, store.clients.transporter("us-east-1", "files-use1"))
	assert.NotSame(t, a, store.clients.transporter("eu-west-1", "files-euw1"))
}
