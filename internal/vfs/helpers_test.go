package vfs

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	metamem "github.com/smartpc/smartpc/internal/metadata/memory"
	objmem "github.com/smartpc/smartpc/internal/storage/memory"
	"github.com/smartpc/smartpc/pkg/types"
)

const testRegion = "us-east-1"

var testBucket = types.Bucket{Name: "files-use1", Region: testRegion}

type testEnv struct {
	svc     *Service
	objects *objmem.Store
	files   *metamem.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithOptions(t, DefaultOptions())
}

func newTestEnvWithOptions(t *testing.T, opts Options) *testEnv {
	t.Helper()
	objects := objmem.NewStore()
	files := metamem.NewStore(testBucket)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		svc:     NewService(objects, files, opts, logger),
		objects: objects,
		files:   files,
	}
}

// upload issues an upload credential and then writes the bytes the client
// would have sent to it. It returns the claimed key.
func (e *testEnv) upload(t *testing.T, user, folder, name string, data []byte) string {
	t.Helper()
	ctx := context.Background()
	res, err := e.svc.Upload(ctx, UploadRequest{
		Region:   testRegion,
		UserID:   user,
		FileName: name,
		FileType: "text/plain",
		Size:     int64(len(data)),
		Folder:   folder,
	})
	require.NoError(t, err)

	key := FileKey(user, folder, res.FinalFileName)
	require.NoError(t, e.objects.PutObject(ctx, testBucket, key, data, "text/plain"))
	return key
}

func (e *testEnv) mkdir(t *testing.T, user, name string) {
	t.Helper()
	_, err := e.svc.CreateFolder(context.Background(), CreateFolderRequest{
		Region:     testRegion,
		UserID:     user,
		FolderName: name,
	})
	require.NoError(t, err)
}

func (e *testEnv) exists(t *testing.T, key string) bool {
	t.Helper()
	rec, err := e.files.GetFile(context.Background(), key)
	if err != nil {
		return false
	}
	return rec != nil
}

// fetch reads the object a memory:// credential points at.
func (e *testEnv) fetch(t *testing.T, raw string) []byte {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	data, err := e.objects.GetObject(context.Background(), types.Bucket{Name: u.Host}, strings.TrimPrefix(u.Path, "/"))
	require.NoError(t, err)
	return data
}

func zipEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(body)
	}
	return out
}
