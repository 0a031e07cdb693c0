package vfs

import (
	"context"
	"strings"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// FolderNode is one folder of the hierarchy. Path is the full key prefix.
type FolderNode struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Children []*FolderNode `json:"children"`
}

// HierarchyResult is the folder forest of one user and region.
type HierarchyResult struct {
	Folders []*FolderNode `json:"folders"`
}

// Hierarchy folds every folder record into a forest keyed by segment name.
// Folders implied by a nested marker ("a/b/") appear even without their own
// marker. Siblings keep the order of the metadata scan.
func (s *Service) Hierarchy(ctx context.Context, req HierarchyRequest) (*HierarchyResult, error) {
	if req.Region == "" || req.UserID == "" {
		return nil, errors.Validation("Region and userId are required.")
	}

	records, err := s.files.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	root := UserRoot(req.UserID)
	forest := &FolderNode{Children: []*FolderNode{}}
	index := map[string]*FolderNode{}

	for _, rec := range records {
		if rec.Region != req.Region || rec.FileType != types.FolderType {
			continue
		}
		rel := strings.Trim(strings.TrimPrefix(rec.ID, root), types.Separator)
		if rel == "" {
			continue
		}

		parent := forest
		path := root
		for _, part := range strings.Split(rel, types.Separator) {
			if part == "" {
				continue
			}
			path += part + types.Separator
			node, ok := index[path]
			if !ok {
				node = &FolderNode{Name: part, Path: path, Children: []*FolderNode{}}
				index[path] = node
				parent.Children = append(parent.Children, node)
			}
			parent = node
		}
	}

	return &HierarchyResult{Folders: forest.Children}, nil
}
