package vfs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove_RenamesOnConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	existing := env.upload(t, "u1", "D", "a.txt", []byte("existing"))
	src := env.upload(t, "u1", "", "a.txt", []byte("moving"))

	res, err := env.svc.Move(ctx, TransferRequest{
		Region:            testRegion,
		UserID:            "u1",
		SourceFileNames:   []string{"a.txt"},
		DestinationFolder: "D",
	})
	require.NoError(t, err)
	assert.Equal(t, "Files moved successfully", res.Message)
	assert.Equal(t, []string{"D/a (1).txt"}, res.MovedFiles)

	data, err := env.objects.GetObject(ctx, testBucket, existing)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data), "destination was overwritten")

	data, err = env.objects.GetObject(ctx, testBucket, "u1/uploads/D/a (1).txt")
	require.NoError(t, err)
	assert.Equal(t, "moving", string(data))

	rec, err := env.files.GetFile(ctx, "u1/uploads/D/a (1).txt")
	require.NoError(t, err)
	assert.Equal(t, "a (1).txt", rec.FileName)
	assert.Equal(t, "D", rec.Folder)

	assert.False(t, env.exists(t, src))
	assert.NotContains(t, env.objects.Keys(testBucket.Name), src)
}

func TestCopy_FolderKeepsStructure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mkdir(t, "u1", "docs")
	env.upload(t, "u1", "docs", "a.txt", []byte("a"))
	env.upload(t, "u1", "docs/sub", "b.txt", []byte("b"))

	res, err := env.svc.Copy(ctx, TransferRequest{
		Region:            testRegion,
		UserID:            "u1",
		SourceFileNames:   []string{"docs/"},
		DestinationFolder: "archive",
	})
	require.NoError(t, err)
	assert.Equal(t, "Files copied successfully", res.Message)
	assert.Equal(t, []string{"archive/docs/"}, res.MovedFiles)

	for _, key := range []string{
		"u1/uploads/archive/docs/",
		"u1/uploads/archive/docs/a.txt",
		"u1/uploads/archive/docs/sub/b.txt",
	} {
		assert.True(t, env.exists(t, key), key)
		assert.Contains(t, env.objects.Keys(testBucket.Name), key)
	}

	rec, err := env.files.GetFile(ctx, "u1/uploads/archive/docs/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "archive/docs/sub", rec.Folder)
	assert.Equal(t, "b.txt", rec.FileName)

	marker, err := env.files.GetFile(ctx, "u1/uploads/archive/docs/")
	require.NoError(t, err)
	assert.Equal(t, "docs", marker.FileName)
	assert.Equal(t, "archive", marker.Folder)

	assert.True(t, env.exists(t, "u1/uploads/docs/a.txt"), "copy keeps originals")
}

func TestMove_FolderRemovesOriginals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mkdir(t, "u1", "docs")
	env.upload(t, "u1", "docs", "a.txt", []byte("a"))

	res, err := env.svc.Move(ctx, TransferRequest{
		Region:            testRegion,
		UserID:            "u1",
		SourceFileNames:   []string{"docs"},
		DestinationFolder: "target",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"target/docs/"}, res.MovedFiles)

	left, err := env.files.ScanPrefix(ctx, "u1/uploads/docs/")
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.True(t, env.exists(t, "u1/uploads/target/docs/a.txt"))
}

func TestTransfer_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mkdir(t, "u1", "docs")
	good := env.upload(t, "u1", "", "good.txt", []byte("g"))
	bad := env.upload(t, "u1", "", "bad.txt", []byte("b"))
	env.objects.FailOn("CopyObject", bad, fmt.Errorf("slow down"))

	res, err := env.svc.Copy(ctx, TransferRequest{
		Region:            testRegion,
		UserID:            "u1",
		SourceFileNames:   []string{"bad.txt", "missing.txt", "docs/", "good.txt"},
		DestinationFolder: "docs/inner",
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 4)

	assert.False(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.False(t, res.Results[2].Success, "a folder cannot be copied into itself")
	assert.True(t, res.Results[3].Success)
	assert.Equal(t, []string{"docs/inner/good.txt"}, res.MovedFiles)
	assert.False(t, res.AllFailed())

	assert.False(t, env.exists(t, "u1/uploads/docs/inner/bad.txt"), "failed copy releases its claim")
	assert.True(t, env.exists(t, good))
}
