package vfs

import (
	"bytes"
	"encoding/json"
)

// Ref names a target either by its full key or by fileName within folder.
// It decodes from a bare JSON string (a file name) or from an object.
type Ref struct {
	Key      string `json:"key,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Folder   string `json:"folder,omitempty"`
}

// UnmarshalJSON accepts "name" as shorthand for {"fileName": "name"}.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = Ref{FileName: name}
		return nil
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Ref(p)
	return nil
}

// Label identifies the ref in per-item results.
func (r Ref) Label() string {
	if r.Key != "" {
		return r.Key
	}
	if r.Folder != "" {
		return r.Folder + "/" + r.FileName
	}
	return r.FileName
}

// UploadRequest is the body of POST /upload.
type UploadRequest struct {
	Region   string `json:"region" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	FileName string `json:"fileName" validate:"required"`
	FileType string `json:"fileType"`
	Size     int64  `json:"size" validate:"gte=0"`
	Folder   string `json:"folder"`
	Status   string `json:"status" validate:"omitempty,oneof=private shared"`
	Starred  bool   `json:"starred"`
}

// UploadResult carries the write credential and the name actually claimed.
type UploadResult struct {
	UploadURL     string `json:"uploadUrl"`
	FinalFileName string `json:"finalFileName"`
}

// TargetRequest addresses one file or folder; used by download, delete,
// star and unstar.
type TargetRequest struct {
	Region   string `json:"region" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Key      string `json:"key"`
	FileName string `json:"fileName" validate:"required_without=Key"`
	Folder   string `json:"folder"`
}

// Ref returns the addressed target.
func (r TargetRequest) Ref() Ref {
	return Ref{Key: r.Key, FileName: r.FileName, Folder: r.Folder}
}

// ListRequest holds the query of GET /list.
type ListRequest struct {
	Region    string `validate:"required"`
	UserID    string `validate:"required"`
	Type      string
	Folder    string
	Recursive bool
	Search    string
	SortBy    string `validate:"omitempty,oneof=name size date"`
	SortOrder string `validate:"omitempty,oneof=asc desc"`
	Page      int    `validate:"gte=1"`
	Limit     int    `validate:"gte=1,lte=1000"`
}

// HierarchyRequest holds the query of GET /list-hierarchy.
type HierarchyRequest struct {
	Region string `validate:"required"`
	UserID string `validate:"required"`
}

// DeleteMultipleRequest is the body of POST /delete-multiple.
type DeleteMultipleRequest struct {
	Region    string `json:"region" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	FileNames []Ref  `json:"fileNames" validate:"required,min=1"`
}

// CreateFolderRequest is the body of POST /create-folder.
type CreateFolderRequest struct {
	Region     string `json:"region" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
	FolderName string `json:"folderName" validate:"required"`
}

// ShareRequest is the body of POST /share.
type ShareRequest struct {
	TargetRequest
	Permissions string `json:"permissions"`
	Expiry      string `json:"expiry"`
	Password    string `json:"password"`
}

// ShareMultipleRequest is the body of POST /share-multiple.
type ShareMultipleRequest struct {
	Region string `json:"region" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	Items  []Ref  `json:"items" validate:"required,min=1"`
}

// TransferRequest is the body of POST /move and POST /copy. Source names
// are relative to the user's root; a trailing separator marks a folder.
type TransferRequest struct {
	Region            string   `json:"region" validate:"required"`
	UserID            string   `json:"userId" validate:"required"`
	SourceFileNames   []string `json:"sourceFileNames" validate:"required,min=1,dive,required"`
	DestinationFolder string   `json:"destinationFolder" validate:"required"`
}

// UsageRequest holds the query of GET /usage.
type UsageRequest struct {
	UserID string `validate:"required"`
}

// DownloadFolderRequest holds the query of GET /download-folder.
type DownloadFolderRequest struct {
	Region string `validate:"required"`
	UserID string `validate:"required"`
	Folder string `validate:"required"`
}
