package vfs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
	"github.com/smartpc/smartpc/pkg/utils"
)

// ListedFile is a record plus its optional inline preview credential.
type ListedFile struct {
	types.FileRecord
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Pagination describes the page returned by List.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	Pages       int  `json:"pages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// ListResult is one page of a listing.
type ListResult struct {
	Files      []ListedFile `json:"files"`
	Pagination Pagination   `json:"pagination"`
}

// NewListRequest fills the defaults of GET /list.
func NewListRequest(region, userID string) ListRequest {
	return ListRequest{
		Region:    region,
		UserID:    userID,
		SortBy:    "date",
		SortOrder: "asc",
		Page:      1,
		Limit:     20,
	}
}

// List filters, sorts and paginates the user's records in one region.
// A type filter and a folder scope are mutually exclusive; the type wins.
func (s *Service) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if req.Region == "" || req.UserID == "" {
		return nil, errors.Validation("Region and userId are required.")
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	all, err := s.files.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	files := make([]types.FileRecord, 0, len(all))
	for _, f := range all {
		if f.Region == req.Region {
			files = append(files, f)
		}
	}

	if req.Type != "" {
		files = filterType(files, req.Type, s.now())
	} else {
		files = filterScope(files, req.UserID, req.Folder, req.Recursive)
	}

	if req.Search != "" {
		term := strings.ToLower(req.Search)
		files = keep(files, func(f *types.FileRecord) bool {
			return strings.Contains(strings.ToLower(f.FileName), term)
		})
	}

	sorted := sortRecords(files, req.SortBy, strings.EqualFold(req.SortOrder, "desc"))

	total := len(sorted)
	pages := (total + req.Limit - 1) / req.Limit
	if req.Page < 1 || (total > 0 && req.Page > pages) {
		return nil, errors.NewError(errors.ErrCodePageOutOfRange,
			fmt.Sprintf("Invalid page %d. Total pages: %d", req.Page, pages))
	}

	start := (req.Page - 1) * req.Limit
	end := min(start+req.Limit, total)
	if start > total {
		start = total
	}

	out := make([]ListedFile, 0, end-start)
	for _, f := range sorted[start:end] {
		item := ListedFile{FileRecord: f}
		if !f.IsFolder() {
			item.PreviewURL = s.preview(ctx, f)
		}
		out = append(out, item)
	}

	return &ListResult{
		Files: out,
		Pagination: Pagination{
			Page:        req.Page,
			Limit:       req.Limit,
			Total:       total,
			Pages:       pages,
			HasNext:     req.Page < pages,
			HasPrevious: req.Page > 1,
		},
	}, nil
}

// preview mints an inline read credential; failures only drop the field.
func (s *Service) preview(ctx context.Context, f types.FileRecord) string {
	url, err := s.objects.PresignGet(ctx, types.Bucket{Name: f.Bucket, Region: f.Region}, f.ID, types.PresignGetOptions{
		TTL:                s.opts.PreviewURLTTL,
		ContentDisposition: "inline",
	})
	if err != nil {
		s.logger.Warn("Preview URL error", "key", f.ID, "error", err)
		return ""
	}
	return url
}

func keep(files []types.FileRecord, pred func(*types.FileRecord) bool) []types.FileRecord {
	out := files[:0]
	for i := range files {
		if pred(&files[i]) {
			out = append(out, files[i])
		}
	}
	return out
}

// filterType applies one semantic filter. Matching is by substring so
// "images" and "shared" select the same sets as "image" and "share".
func filterType(files []types.FileRecord, filter string, now time.Time) []types.FileRecord {
	filter = strings.ToLower(filter)
	prefixFilter := func(prefix string) []types.FileRecord {
		return keep(files, func(f *types.FileRecord) bool { return strings.HasPrefix(f.FileType, prefix) })
	}
	since := func(t time.Time) []types.FileRecord {
		return keep(files, func(f *types.FileRecord) bool {
			return f.CreatedAt != "" && f.CreatedTime().After(t)
		})
	}

	switch {
	case strings.Contains(filter, "image"):
		return prefixFilter("image/")
	case strings.Contains(filter, "video"):
		return prefixFilter("video/")
	case strings.Contains(filter, "audio"):
		return prefixFilter("audio/")
	case strings.Contains(filter, "document"):
		return prefixFilter("application/")
	case strings.Contains(filter, "folder"):
		return keep(files, func(f *types.FileRecord) bool { return f.FileType == types.FolderType })
	case strings.Contains(filter, "starred"):
		return keep(files, func(f *types.FileRecord) bool { return f.Starred })
	case strings.Contains(filter, "share"):
		return keep(files, func(f *types.FileRecord) bool { return f.Status == types.StatusShared || f.Shared })
	case strings.Contains(filter, "recent"):
		return since(now.Add(-24 * time.Hour))
	case strings.Contains(filter, "today"):
		y, m, d := now.Date()
		return keep(files, func(f *types.FileRecord) bool {
			if f.CreatedAt == "" {
				return false
			}
			fy, fm, fd := f.CreatedTime().Date()
			return fy == y && fm == m && fd == d
		})
	case strings.Contains(filter, "week"):
		return since(now.Add(-7 * 24 * time.Hour))
	}
	return files
}

// filterScope keeps the entries of one folder. Non-recursive scopes hold
// direct children only; without a folder only top-level entries are kept.
func filterScope(files []types.FileRecord, userID, folder string, recursive bool) []types.FileRecord {
	folder = utils.CleanFolder(folder)
	if folder == "" {
		root := UserRoot(userID)
		return keep(files, func(f *types.FileRecord) bool {
			rest := strings.Trim(strings.TrimPrefix(f.ID, root), types.Separator)
			return strings.HasPrefix(f.ID, root) && rest != "" && !strings.Contains(rest, types.Separator)
		})
	}

	prefix := FolderKey(userID, folder)
	return keep(files, func(f *types.FileRecord) bool {
		if !strings.HasPrefix(f.ID, prefix) || f.ID == prefix {
			return false
		}
		if recursive {
			return true
		}
		rest := strings.TrimSuffix(f.ID[len(prefix):], types.Separator)
		return !strings.Contains(rest, types.Separator)
	})
}

// sortRecords orders folders before files and sorts each group by key.
func sortRecords(files []types.FileRecord, by string, desc bool) []types.FileRecord {
	var folders, regular []types.FileRecord
	for _, f := range files {
		if f.FileType == types.FolderType {
			folders = append(folders, f)
		} else {
			regular = append(regular, f)
		}
	}

	less := func(a, b *types.FileRecord) bool {
		switch by {
		case "name":
			return strings.ToLower(a.FileName) < strings.ToLower(b.FileName)
		case "size":
			return a.Size < b.Size
		default:
			return a.CreatedAt < b.CreatedAt
		}
	}
	order := func(group []types.FileRecord) {
		sort.SliceStable(group, func(i, j int) bool {
			if desc {
				return less(&group[j], &group[i])
			}
			return less(&group[i], &group[j])
		})
	}
	order(folders)
	order(regular)

	return append(folders, regular...)
}
