package vfs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "u1/uploads/", UserRoot("u1"))
	assert.Equal(t, "u1/uploads/a.txt", FileKey("u1", "", "a.txt"))
	assert.Equal(t, "u1/uploads/docs/2024/a.txt", FileKey("u1", "/docs//2024/", "a.txt"))
	assert.Equal(t, "u1/uploads/docs/", FolderKey("u1", "docs/"))
	assert.Equal(t, "u1/uploads/", FolderKey("u1", ""))
	assert.Equal(t, "docs/a.txt", relative("u1", "u1/uploads/docs/a.txt"))
}

func TestResolver_KeyFor(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		name string
		ref  Ref
		want string
		code errors.ErrorCode
	}{
		{"file in folder", Ref{FileName: "a.txt", Folder: "/docs/"}, "u1/uploads/docs/a.txt", ""},
		{"folder by trailing separator", Ref{FileName: "docs/"}, "u1/uploads/docs/", ""},
		{"raw key", Ref{Key: "u1/uploads/x/y.txt"}, "u1/uploads/x/y.txt", ""},
		{"foreign key", Ref{Key: "u2/uploads/y.txt"}, "", errors.ErrCodeAuthorizationFailed},
		{"user root key", Ref{Key: "u1/uploads/"}, "", errors.ErrCodeValidationFailed},
		{"user root key without separator", Ref{Key: "u1/uploads//"}, "", errors.ErrCodeValidationFailed},
		{"key escaping the root", Ref{Key: "u1/uploads/../../u2/uploads/y.txt"}, "", errors.ErrCodeValidationFailed},
		{"traversal", Ref{FileName: "a.txt", Folder: "docs/../.."}, "", errors.ErrCodeValidationFailed},
		{"empty name", Ref{Folder: "docs"}, "", errors.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.KeyFor("u1", tt.ref)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_FolderDetection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mkdir(t, "u1", "docs")
	env.upload(t, "u1", "", "a.txt", []byte("a"))
	// A folder row stored without its trailing separator.
	require.NoError(t, env.files.PutFile(ctx, &types.FileRecord{
		ID: "u1/uploads/legacy", UserID: "u1", Region: testRegion, FileType: types.FolderType,
	}))

	r := env.svc.Resolver()

	tests := []struct {
		name      string
		ref       Ref
		key       string
		isFolder  bool
		hasRecord bool
	}{
		{"trailing separator", Ref{FileName: "docs/"}, "u1/uploads/docs/", true, true},
		{"marker without separator", Ref{FileName: "docs"}, "u1/uploads/docs/", true, true},
		{"folder file type", Ref{FileName: "legacy"}, "u1/uploads/legacy/", true, true},
		{"plain file", Ref{FileName: "a.txt"}, "u1/uploads/a.txt", false, true},
		{"unknown", Ref{FileName: "ghost.txt"}, "u1/uploads/ghost.txt", false, false},
		{"implied folder", Ref{FileName: "implied/"}, "u1/uploads/implied/", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, "u1", tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.key, got.Key)
			assert.Equal(t, tt.isFolder, got.IsFolder)
			assert.Equal(t, tt.hasRecord, got.Record != nil)
		})
	}
}

func TestRef_UnmarshalJSON(t *testing.T) {
	var req DeleteMultipleRequest
	body := `{"region":"us-east-1","userId":"u1","fileNames":["a.txt",{"fileName":"b.txt","folder":"docs"},{"key":"u1/uploads/c.txt"}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	require.Len(t, req.FileNames, 3)
	assert.Equal(t, Ref{FileName: "a.txt"}, req.FileNames[0])
	assert.Equal(t, Ref{FileName: "b.txt", Folder: "docs"}, req.FileNames[1])
	assert.Equal(t, Ref{Key: "u1/uploads/c.txt"}, req.FileNames[2])
	assert.Equal(t, "docs/b.txt", req.FileNames[1].Label())
}
