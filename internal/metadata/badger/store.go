package badger

import (
	"context"
	"encoding/json"
	stderr "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/smartpc/smartpc/internal/instrument"
	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/retry"
	"github.com/smartpc/smartpc/pkg/types"
)

// Component is the dependency name reported to metrics and health.
const Component = "file-metadata"

// Key space:
//
//	f:<id>                 JSON FileRecord
//	u:<userId>\x00<id>     empty, secondary index by owner
//	b:<region>             JSON Bucket
const (
	prefixFile   = "f:"
	prefixUser   = "u:"
	prefixBucket = "b:"
)

func keyFile(id string) []byte { return []byte(prefixFile + id) }

func keyUserPrefix(userID string) []byte { return []byte(prefixUser + userID + "\x00") }

func keyUser(userID, id string) []byte { return append(keyUserPrefix(userID), id...) }

func keyBucket(region string) []byte { return []byte(prefixBucket + region) }

// Config configures the BadgerDB file metadata store.
type Config struct {
	// Directory holds the BadgerDB files. Ignored when InMemory is set.
	Directory string

	// InMemory keeps everything in RAM; used by tests.
	InMemory bool

	Retry retry.Config
}

// Store implements types.FileStore on BadgerDB.
//
// Records are keyed by their full id so prefix scans return a folder subtree
// in id order straight from the LSM tree. Writes run in read-write
// transactions; transaction conflicts are retried by the observer.
type Store struct {
	mu     sync.RWMutex
	db     *badger.DB
	obs    *instrument.Observer
	logger *slog.Logger
}

var _ types.FileStore = (*Store)(nil)

// NewStore opens (or creates) the database described by cfg.
func NewStore(cfg Config, metrics types.MetricsCollector, tracker *health.Tracker) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Directory)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Directory, err)
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}

	return &Store{
		db:     db,
		obs:    instrument.New(Component, retryCfg, metrics, tracker),
		logger: slog.Default().With("component", "badger-metadata"),
	}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func (s *Store) BucketForRegion(ctx context.Context, region string) (types.Bucket, error) {
	return instrument.Value(ctx, s.obs, "BucketForRegion", func(ctx context.Context) (types.Bucket, error) {
		var b types.Bucket
		err := s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(keyBucket(region))
			if err == badger.ErrKeyNotFound {
				return errors.NotFound(errors.ErrCodeBucketNotFound,
					fmt.Sprintf("No bucket found for region %s", region))
			}
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			})
		})
		return b, translate("BucketForRegion", err)
	})
}

func (s *Store) PutBucket(ctx context.Context, b types.Bucket) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bucket: %w", err)
	}
	return s.obs.Do(ctx, "PutBucket", func(ctx context.Context) error {
		return translate("PutBucket", s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(keyBucket(b.Region), data)
		}))
	})
}

func (s *Store) GetFile(ctx context.Context, id string) (*types.FileRecord, error) {
	return instrument.Value(ctx, s.obs, "GetFile", func(ctx context.Context) (*types.FileRecord, error) {
		var rec *types.FileRecord
		err := s.db.View(func(txn *badger.Txn) error {
			var err error
			rec, err = getRecord(txn, id)
			return err
		})
		if err != nil {
			return nil, translate("GetFile", err)
		}
		return rec, nil
	})
}

func (s *Store) CreateFile(ctx context.Context, rec *types.FileRecord) error {
	return s.obs.Do(ctx, "CreateFile", func(ctx context.Context) error {
		return translate("CreateFile", s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(keyFile(rec.ID))
			if err == nil {
				return errors.NewError(errors.ErrCodeRecordExists, fmt.Sprintf("record already exists: %s", rec.ID))
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
			return putRecord(txn, nil, rec)
		}))
	})
}

func (s *Store) PutFile(ctx context.Context, rec *types.FileRecord) error {
	return s.obs.Do(ctx, "PutFile", func(ctx context.Context) error {
		return translate("PutFile", s.db.Update(func(txn *badger.Txn) error {
			old, err := getRecord(txn, rec.ID)
			if err != nil && !errors.IsNotFound(err) {
				return err
			}
			return putRecord(txn, old, rec)
		}))
	})
}

func (s *Store) UpdateFile(ctx context.Context, id string, fn func(*types.FileRecord) error) (*types.FileRecord, error) {
	return instrument.Value(ctx, s.obs, "UpdateFile", func(ctx context.Context) (*types.FileRecord, error) {
		var updated *types.FileRecord
		err := s.db.Update(func(txn *badger.Txn) error {
			old, err := getRecord(txn, id)
			if err != nil {
				return err
			}
			rec := *old
			if err := fn(&rec); err != nil {
				return err
			}
			rec.ID = id
			updated = &rec
			return putRecord(txn, old, &rec)
		})
		if err != nil {
			return nil, translate("UpdateFile", err)
		}
		return updated, nil
	})
}

// DeleteFile removes the record and its index entry. Missing records are not an error.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return s.obs.Do(ctx, "DeleteFile", func(ctx context.Context) error {
		return translate("DeleteFile", s.db.Update(func(txn *badger.Txn) error {
			old, err := getRecord(txn, id)
			if errors.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := txn.Delete(keyUser(old.UserID, id)); err != nil {
				return err
			}
			return txn.Delete(keyFile(id))
		}))
	})
}

func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]types.FileRecord, error) {
	return instrument.Value(ctx, s.obs, "ScanPrefix", func(ctx context.Context) ([]types.FileRecord, error) {
		out := make([]types.FileRecord, 0)
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = true
			opts.Prefix = keyFile(prefix)

			it := txn.NewIterator(opts)
			defer it.Close()

			n := 0
			for it.Rewind(); it.Valid(); it.Next() {
				n++
				if n%1000 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				var rec types.FileRecord
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &rec)
				}); err != nil {
					return err
				}
				out = append(out, rec)
			}
			return nil
		})
		if err != nil {
			return nil, translate("ScanPrefix", err)
		}
		return out, nil
	})
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]types.FileRecord, error) {
	return instrument.Value(ctx, s.obs, "ListByUser", func(ctx context.Context) ([]types.FileRecord, error) {
		out := make([]types.FileRecord, 0)
		err := s.db.View(func(txn *badger.Txn) error {
			prefix := keyUserPrefix(userID)
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				id := string(it.Item().Key()[len(prefix):])
				rec, err := getRecord(txn, id)
				if errors.IsNotFound(err) {
					s.logger.Warn("dangling user index entry", "userId", userID, "id", id)
					continue
				}
				if err != nil {
					return err
				}
				out = append(out, *rec)
			}
			return nil
		})
		if err != nil {
			return nil, translate("ListByUser", err)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	})
}

func getRecord(txn *badger.Txn, id string) (*types.FileRecord, error) {
	item, err := txn.Get(keyFile(id))
	if err == badger.ErrKeyNotFound {
		return nil, errors.NotFound(errors.ErrCodeRecordNotFound, fmt.Sprintf("file record not found: %s", id))
	}
	if err != nil {
		return nil, err
	}
	var rec types.FileRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode file record %s: %w", id, err)
	}
	return &rec, nil
}

// putRecord writes rec and keeps the owner index in step with old.
func putRecord(txn *badger.Txn, old, rec *types.FileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode file record %s: %w", rec.ID, err)
	}
	if old != nil && old.UserID != rec.UserID {
		if err := txn.Delete(keyUser(old.UserID, rec.ID)); err != nil {
			return err
		}
	}
	if err := txn.Set(keyFile(rec.ID), data); err != nil {
		return err
	}
	return txn.Set(keyUser(rec.UserID, rec.ID), nil)
}

// translate leaves structured errors alone and makes transaction conflicts retryable.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderr.Is(err, context.Canceled) || stderr.Is(err, context.DeadlineExceeded) {
		return err
	}
	if stderr.Is(err, badger.ErrConflict) {
		return errors.NewError(errors.ErrCodeDependencyUnavailable, "metadata transaction conflict").
			WithComponent(Component).
			WithOperation(op).
			WithCause(err)
	}
	return errors.NewError(errors.ErrCodeDependencyFailed, "metadata store failure").
		WithComponent(Component).
		WithOperation(op).
		WithCause(err)
}
