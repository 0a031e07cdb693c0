package api

import (
	"net/http"

	"github.com/smartpc/smartpc/internal/vfs"
)

func (s *Server) handleUpload(r *http.Request) (interface{}, error) {
	var req vfs.UploadRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	return s.files.Upload(r.Context(), req)
}

// targetQuery reads a TargetRequest from the query string.
func (s *Server) targetQuery(r *http.Request) (vfs.TargetRequest, error) {
	q := r.URL.Query()
	req := vfs.TargetRequest{
		Region:   q.Get("region"),
		UserID:   q.Get("userId"),
		Key:      q.Get("key"),
		FileName: q.Get("fileName"),
		Folder:   q.Get("folder"),
	}
	return req, s.check(req)
}

func (s *Server) handleDownload(r *http.Request) (interface{}, error) {
	req, err := s.targetQuery(r)
	if err != nil {
		return nil, err
	}
	return s.files.Download(r.Context(), req)
}

func (s *Server) handleDelete(r *http.Request) (interface{}, error) {
	req, err := s.targetQuery(r)
	if err != nil {
		return nil, err
	}
	return s.files.Delete(r.Context(), req)
}

func (s *Server) handleList(r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	req := vfs.NewListRequest(q.Get("region"), q.Get("userId"))
	req.Type = q.Get("type")
	req.Folder = q.Get("folder")
	req.Recursive = boolParam(r, "recursive")
	req.Search = q.Get("search")
	if v := q.Get("sortBy"); v != "" {
		req.SortBy = v
	}
	if v := q.Get("sortOrder"); v != "" {
		req.SortOrder = v
	}

	var err error
	if req.Page, err = intParam(r, "page", req.Page); err != nil {
		return nil, err
	}
	if req.Limit, err = intParam(r, "limit", req.Limit); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.files.List(r.Context(), req)
}

func (s *Server) handleHierarchy(r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	req := vfs.HierarchyRequest{Region: q.Get("region"), UserID: q.Get("userId")}
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.files.Hierarchy(r.Context(), req)
}

func (s *Server) handleDeleteMultiple(r *http.Request) (interface{}, error) {
	var req vfs.DeleteMultipleRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	return s.files.DeleteMultiple(r.Context(), req)
}

func (s *Server) handleCreateFolder(r *http.Request) (interface{}, error) {
	var req vfs.CreateFolderRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	return s.files.CreateFolder(r.Context(), req)
}

func (s *Server) handleStar(starred bool) handlerFunc {
	return func(r *http.Request) (interface{}, error) {
		var req vfs.TargetRequest
		if err := s.decode(r, &req); err != nil {
			return nil, err
		}
		return s.files.SetStarred(r.Context(), req, starred)
	}
}

func (s *Server) handleShare(r *http.Request) (interface{}, error) {
	var req vfs.ShareRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	return s.files.Share(r.Context(), req)
}

func (s *Server) handleShareMultiple(r *http.Request) (interface{}, error) {
	var req vfs.ShareMultipleRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	return s.files.ShareMultiple(r.Context(), req)
}

func (s *Server) handleTransfer(move bool) handlerFunc {
	return func(r *http.Request) (interface{}, error) {
		var req vfs.TransferRequest
		if err := s.decode(r, &req); err != nil {
			return nil, err
		}
		if move {
			return s.files.Move(r.Context(), req)
		}
		return s.files.Copy(r.Context(), req)
	}
}

func (s *Server) handleUsage(r *http.Request) (interface{}, error) {
	req := vfs.UsageRequest{UserID: r.URL.Query().Get("userId")}
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.files.Usage(r.Context(), req)
}

func (s *Server) handleDownloadFolder(r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	req := vfs.DownloadFolderRequest{
		Region: q.Get("region"),
		UserID: q.Get("userId"),
		Folder: q.Get("folder"),
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.files.DownloadFolder(r.Context(), req)
}
