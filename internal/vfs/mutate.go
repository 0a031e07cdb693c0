package vfs

import (
	"context"
	"time"

	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// Share expiry symbols and the credential lifetime each one grants.
var shareExpiry = map[string]time.Duration{
	"1day":   86400 * time.Second,
	"7days":  604800 * time.Second,
	"30days": 2592000 * time.Second,
	"never":  315360000 * time.Second,
}

const (
	defaultExpiry      = "7days"
	defaultPermissions = "view"
)

// ExpiryTTL maps an expiry symbol to its lifetime; unknown symbols get 7 days.
func ExpiryTTL(symbol string) (string, time.Duration) {
	if ttl, ok := shareExpiry[symbol]; ok {
		return symbol, ttl
	}
	return defaultExpiry, shareExpiry[defaultExpiry]
}

// StarResult reports which records were updated.
type StarResult struct {
	Message      string             `json:"message"`
	UpdatedItems []string           `json:"updatedItems"`
	FailedItems  []string           `json:"failedItems"`
	Results      []types.ItemResult `json:"results"`

	batch types.BatchResult
}

// AllFailed reports whether no record was updated.
func (r *StarResult) AllFailed() bool {
	return r.batch.AllFailed()
}

// ShareResult reports a share. ShareLink is nil for folders.
type ShareResult struct {
	Message     string             `json:"message"`
	ShareLink   *string            `json:"shareLink"`
	ID          string             `json:"id"`
	Permissions string             `json:"permissions"`
	Expiry      string             `json:"expiry"`
	Results     []types.ItemResult `json:"results"`

	batch types.BatchResult
}

// AllFailed reports whether no record was updated.
func (r *ShareResult) AllFailed() bool {
	return r.batch.AllFailed()
}

// subtree returns the keys a mutation applies to: the folder and every
// descendant, or the file alone. A folder with neither a record nor
// descendants does not exist.
func (s *Service) subtree(ctx context.Context, target *Resolved) ([]string, error) {
	if !target.IsFolder {
		return []string{target.Key}, nil
	}
	records, err := s.files.ScanPrefix(ctx, target.Key)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(records)+1)
	seen := false
	for _, rec := range records {
		keys = append(keys, rec.ID)
		if rec.ID == target.Key {
			seen = true
		}
	}
	if !seen && target.Record != nil && target.Record.ID == target.Key {
		keys = append(keys, target.Key)
	}
	if len(keys) == 0 && target.Record == nil {
		return nil, errors.NotFound(errors.ErrCodeFolderNotFound, "Folder not found.")
	}
	return keys, nil
}

// apply runs fn on every key and records the outcome per key.
func (s *Service) apply(ctx context.Context, keys []string, batch *types.BatchResult, fn func(*types.FileRecord) error) {
	for _, key := range keys {
		if _, err := s.files.UpdateFile(ctx, key, fn); err != nil {
			s.logger.Warn("Metadata update failed", "key", key, "error", err)
			batch.Fail(key, err)
			continue
		}
		batch.Ok(key)
	}
}

func (s *Service) resolveExisting(ctx context.Context, userID string, ref Ref) (*Resolved, error) {
	target, err := s.resolver.Resolve(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	if target.Record == nil && !target.IsFolder {
		return nil, errors.NotFound(errors.ErrCodeRecordNotFound, "File not found.")
	}
	return target, nil
}

// SetStarred stars or unstars a file, or a folder and all of its contents.
func (s *Service) SetStarred(ctx context.Context, req TargetRequest, starred bool) (*StarResult, error) {
	if req.Region == "" || req.UserID == "" || (req.FileName == "" && req.Key == "") {
		return nil, errors.Validation("region, userId, and fileName or key are required.")
	}
	target, err := s.resolveExisting(ctx, req.UserID, req.Ref())
	if err != nil {
		return nil, err
	}
	keys, err := s.subtree(ctx, target)
	if err != nil {
		return nil, err
	}

	out := &StarResult{}
	s.apply(ctx, keys, &out.batch, func(r *types.FileRecord) error {
		r.Starred = starred
		return nil
	})

	what := "File"
	if target.IsFolder {
		what = "Folder and contents"
	}
	verb := "unstarred"
	if starred {
		verb = "starred"
	}
	out.Message = what + " " + verb + " successfully"
	out.UpdatedItems = out.batch.Succeeded()
	out.FailedItems = out.batch.Failed()
	out.Results = out.batch.Items
	return out, nil
}

// Share marks a file, or a folder and its contents, as shared. Files also
// get a read credential valid for the chosen expiry.
func (s *Service) Share(ctx context.Context, req ShareRequest) (*ShareResult, error) {
	if req.Region == "" || req.UserID == "" || (req.FileName == "" && req.Key == "") {
		return nil, errors.Validation("region, userId, and fileName or key are required.")
	}
	bucket, err := s.bucket(ctx, req.Region)
	if err != nil {
		return nil, err
	}
	target, err := s.resolveExisting(ctx, req.UserID, req.Ref())
	if err != nil {
		return nil, err
	}
	keys, err := s.subtree(ctx, target)
	if err != nil {
		return nil, err
	}

	permissions := req.Permissions
	if permissions == "" {
		permissions = defaultPermissions
	}
	expiry, ttl := ExpiryTTL(req.Expiry)

	out := &ShareResult{ID: target.Key, Permissions: permissions, Expiry: expiry}
	s.apply(ctx, keys, &out.batch, func(r *types.FileRecord) error {
		r.Shared = true
		r.SharePermissions = permissions
		r.ShareExpiry = expiry
		r.SharePassword = req.Password
		return nil
	})
	out.Results = out.batch.Items

	if target.IsFolder {
		out.Message = "Folder and contents shared successfully."
		return out, nil
	}

	url, err := s.objects.PresignGet(ctx, bucket, target.Key, types.PresignGetOptions{TTL: ttl})
	if err != nil {
		s.logger.Warn("Presign error", "key", target.Key, "error", err)
		return nil, errors.NotFound(errors.ErrCodeObjectNotFound, "File not found or inaccessible.").WithCause(err)
	}
	out.ShareLink = &url
	out.Message = "File shared successfully."
	return out, nil
}
