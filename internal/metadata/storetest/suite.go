// Package storetest holds the behaviour every types.FileStore must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) types.FileStore

// FileStoreSuite runs the shared conformance tests against stores built by NewStore.
type FileStoreSuite struct {
	NewStore Factory
}

// Run executes every test of the suite.
func (suite *FileStoreSuite) Run(t *testing.T) {
	t.Run("BucketMapping", suite.testBucketMapping)
	t.Run("CreateConflict", suite.testCreateConflict)
	t.Run("UpdateFile", suite.testUpdateFile)
	t.Run("ScanPrefix", suite.testScanPrefix)
	t.Run("ListByUser", suite.testListByUser)
	t.Run("DeleteIsIdempotent", suite.testDeleteIsIdempotent)
}

func record(userID, id string) *types.FileRecord {
	return &types.FileRecord{
		ID:       id,
		Bucket:   "files",
		Region:   "us-east-1",
		UserID:   userID,
		FileName: id,
		FileType: "text/plain",
		Status:   types.StatusPrivate,
	}
}

func (suite *FileStoreSuite) testBucketMapping(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	_, err := store.BucketForRegion(ctx, "eu-west-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeBucketNotFound))

	require.NoError(t, store.PutBucket(ctx, types.Bucket{Name: "files-euw1", Region: "eu-west-1"}))
	b, err := store.BucketForRegion(ctx, "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "files-euw1", b.Name)
}

func (suite *FileStoreSuite) testCreateConflict(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateFile(ctx, record("u1", "u1/uploads/a.txt")))
	err := store.CreateFile(ctx, record("u1", "u1/uploads/a.txt"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeRecordExists), "got %v", err)

	require.NoError(t, store.PutFile(ctx, record("u1", "u1/uploads/a.txt")), "PutFile overwrites")
}

func (suite *FileStoreSuite) testUpdateFile(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutFile(ctx, record("u1", "u1/uploads/a.txt")))

	updated, err := store.UpdateFile(ctx, "u1/uploads/a.txt", func(r *types.FileRecord) error {
		r.Starred = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Starred)

	got, err := store.GetFile(ctx, "u1/uploads/a.txt")
	require.NoError(t, err)
	assert.True(t, got.Starred)

	_, err = store.UpdateFile(ctx, "u1/uploads/missing", func(r *types.FileRecord) error { return nil })
	assert.True(t, errors.IsNotFound(err))
}

func (suite *FileStoreSuite) testScanPrefix(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"u1/uploads/docs/",
		"u1/uploads/docs/b.txt",
		"u1/uploads/docs/sub/",
		"u1/uploads/docs/a.txt",
		"u1/uploads/docsx.txt",
		"u2/uploads/docs/c.txt",
	} {
		require.NoError(t, store.PutFile(ctx, record(id[:2], id)))
	}

	recs, err := store.ScanPrefix(ctx, "u1/uploads/docs/")
	require.NoError(t, err)

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{
		"u1/uploads/docs/",
		"u1/uploads/docs/a.txt",
		"u1/uploads/docs/b.txt",
		"u1/uploads/docs/sub/",
	}, ids)

	empty, err := store.ScanPrefix(ctx, "u3/")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func (suite *FileStoreSuite) testListByUser(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutFile(ctx, record("u1", "u1/uploads/a.txt")))
	require.NoError(t, store.PutFile(ctx, record("u1", "u1/uploads/b.txt")))
	require.NoError(t, store.PutFile(ctx, record("u12", "u12/uploads/c.txt")))

	recs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "u1/uploads/a.txt", recs[0].ID)
	assert.Equal(t, "u1/uploads/b.txt", recs[1].ID)

	require.NoError(t, store.DeleteFile(ctx, "u1/uploads/a.txt"))
	recs, err = store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func (suite *FileStoreSuite) testDeleteIsIdempotent(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutFile(ctx, record("u1", "u1/uploads/empty/")))
	require.NoError(t, store.DeleteFile(ctx, "u1/uploads/empty/"))
	require.NoError(t, store.DeleteFile(ctx, "u1/uploads/empty/"))

	recs, err := store.ScanPrefix(ctx, "u1/uploads/empty/")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = store.GetFile(ctx, "u1/uploads/empty/")
	assert.True(t, errors.IsNotFound(err))
}
