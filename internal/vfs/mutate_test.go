package vfs

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpc/smartpc/pkg/errors"
)

func TestExpiryTTL(t *testing.T) {
	tests := []struct {
		in     string
		symbol string
		ttl    time.Duration
	}{
		{"1day", "1day", 86400 * time.Second},
		{"7days", "7days", 604800 * time.Second},
		{"30days", "30days", 2592000 * time.Second},
		{"never", "never", 315360000 * time.Second},
		{"", "7days", 604800 * time.Second},
		{"fortnight", "7days", 604800 * time.Second},
	}
	for _, tt := range tests {
		symbol, ttl := ExpiryTTL(tt.in)
		assert.Equal(t, tt.symbol, symbol, tt.in)
		assert.Equal(t, tt.ttl, ttl, tt.in)
	}
}

func TestSetStarred_FolderCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mkdir(t, "u1", "docs")
	a := env.upload(t, "u1", "docs", "a.txt", []byte("a"))
	b := env.upload(t, "u1", "docs/sub", "b.txt", []byte("b"))
	outside := env.upload(t, "u1", "", "c.txt", []byte("c"))

	res, err := env.svc.SetStarred(ctx, TargetRequest{Region: testRegion, UserID: "u1", FileName: "docs"}, true)
	require.NoError(t, err)
	assert.Equal(t, "Folder and contents starred successfully", res.Message)
	assert.ElementsMatch(t, []string{"u1/uploads/docs/", a, b}, res.UpdatedItems)
	assert.Empty(t, res.FailedItems)

	for _, key := range []string{"u1/uploads/docs/", a, b} {
		rec, err := env.files.GetFile(ctx, key)
		require.NoError(t, err)
		assert.True(t, rec.Starred, key)
	}
	rec, err := env.files.GetFile(ctx, outside)
	require.NoError(t, err)
	assert.False(t, rec.Starred)

	res, err = env.svc.SetStarred(ctx, TargetRequest{Region: testRegion, UserID: "u1", Key: a}, false)
	require.NoError(t, err)
	assert.Equal(t, "File unstarred successfully", res.Message)
	assert.Equal(t, []string{a}, res.UpdatedItems)
}

func TestSetStarred_Missing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.SetStarred(context.Background(), TargetRequest{Region: testRegion, UserID: "u1", FileName: "ghost.txt"}, true)
	require.Error(t, err)
	assert.Equal(t, 404, errors.HTTPStatusOf(err))
}

func TestMutations_MissingFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.upload(t, "u1", "", "ghost.txt", []byte("g"))
	target := TargetRequest{Region: testRegion, UserID: "u1", FileName: "ghost/"}

	_, err := env.svc.SetStarred(ctx, target, true)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFolderNotFound), "got %v", err)

	_, err = env.svc.Share(ctx, ShareRequest{TargetRequest: target})
	assert.True(t, errors.HasCode(err, errors.ErrCodeFolderNotFound), "got %v", err)
	assert.Equal(t, 404, errors.HTTPStatusOf(err))
}

func TestSetStarred_ImpliedFolder(t *testing.T) {
	env := newTestEnv(t)
	// Objects below a folder that has no marker row.
	a := env.upload(t, "u1", "implied", "a.txt", []byte("a"))

	res, err := env.svc.SetStarred(context.Background(), TargetRequest{Region: testRegion, UserID: "u1", FileName: "implied/"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, res.UpdatedItems)
}

func TestShare_File(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key := env.upload(t, "u1", "", "a.txt", []byte("a"))

	res, err := env.svc.Share(ctx, ShareRequest{
		TargetRequest: TargetRequest{Region: testRegion, UserID: "u1", FileName: "a.txt"},
		Expiry:        "fortnight",
		Password:      "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, "File shared successfully.", res.Message)
	assert.Equal(t, key, res.ID)
	assert.Equal(t, "view", res.Permissions)
	assert.Equal(t, "7days", res.Expiry)
	require.NotNil(t, res.ShareLink)

	u, err := url.Parse(*res.ShareLink)
	require.NoError(t, err)
	assert.Equal(t, "604800", u.Query().Get("expires"))

	rec, err := env.files.GetFile(ctx, key)
	require.NoError(t, err)
	assert.True(t, rec.Shared)
	assert.Equal(t, "view", rec.SharePermissions)
	assert.Equal(t, "7days", rec.ShareExpiry)
	assert.Equal(t, "s3cret", rec.SharePassword)
}

func TestShare_FolderHasNoLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mkdir(t, "u1", "docs")
	a := env.upload(t, "u1", "docs", "a.txt", []byte("a"))

	res, err := env.svc.Share(ctx, ShareRequest{
		TargetRequest: TargetRequest{Region: testRegion, UserID: "u1", FileName: "docs/"},
		Permissions:   "edit",
		Expiry:        "30days",
	})
	require.NoError(t, err)
	assert.Equal(t, "Folder and contents shared successfully.", res.Message)
	assert.Nil(t, res.ShareLink)
	assert.Equal(t, "u1/uploads/docs/", res.ID)
	assert.Len(t, res.Results, 2)

	rec, err := env.files.GetFile(ctx, a)
	require.NoError(t, err)
	assert.True(t, rec.Shared)
	assert.Equal(t, "edit", rec.SharePermissions)
	assert.Equal(t, "30days", rec.ShareExpiry)
}

func TestUsage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mkdir(t, "u1", "docs")
	env.upload(t, "u1", "docs", "big.bin", make([]byte, 1048576))
	env.upload(t, "u1", "", "half.bin", make([]byte, 524288))
	env.upload(t, "u2", "", "other.bin", make([]byte, 10))

	res, err := env.svc.Usage(ctx, UsageRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, int64(1572864), res.TotalBytes)
	assert.Equal(t, 1.5, res.TotalMB)

	_, err = env.svc.Usage(ctx, UsageRequest{})
	assert.Equal(t, 400, errors.HTTPStatusOf(err))
}
