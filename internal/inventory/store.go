// Package inventory keeps the relational state of the instance orchestrator
// (instances, key material, counters, assignments, sessions) in SQL through gorm.
package inventory

import (
	"context"
	stderr "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/smartpc/smartpc/internal/instrument"
	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/retry"
	"github.com/smartpc/smartpc/pkg/types"
)

// Component is the dependency name reported to metrics and health.
const Component = "inventory"

// Config configures the inventory database.
type Config struct {
	DSN    string
	LogSQL bool

	// DefaultQuota applies to owners without a quota row.
	DefaultQuota int

	Retry retry.Config
}

// Store implements types.Inventory on gorm.
type Store struct {
	db           *gorm.DB
	obs          *instrument.Observer
	defaultQuota int
	logger       *slog.Logger
}

var _ types.Inventory = (*Store)(nil)

// Models lists every table the inventory migrates.
func Models() []interface{} {
	return []interface{}{
		&types.Instance{},
		&types.StatusRecord{},
		&types.KeyMaterial{},
		&types.IPRecord{},
		&types.TrackingEntry{},
		&types.SubnetCounter{},
		&types.UserQuota{},
		&types.Assignment{},
		&types.IdleSetting{},
		&types.SessionRecord{},
	}
}

// Open connects to the SQLite database at cfg.DSN and migrates the schema.
func Open(cfg Config, metrics types.MetricsCollector, tracker *health.Tracker) (*Store, error) {
	level := logger.Silent
	if cfg.LogSQL {
		level = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; serialising on one connection avoids SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return New(db, cfg, metrics, tracker)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB, cfg Config, metrics types.MetricsCollector, tracker *health.Tracker) (*Store, error) {
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}
	quota := cfg.DefaultQuota
	if quota <= 0 {
		quota = 1
	}

	return &Store{
		db:           db,
		obs:          instrument.New(Component, retryCfg, metrics, tracker),
		defaultQuota: quota,
		logger:       slog.Default().With("component", "inventory"),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection; used as a health check.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// exec runs fn under the observer with a context-bound session.
func (s *Store) exec(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return s.obs.Do(ctx, op, func(ctx context.Context) error {
		return translate(op, fn(s.db.WithContext(ctx)))
	})
}

func upsert(tx *gorm.DB, value interface{}) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

// Instances

func (s *Store) PutInstance(ctx context.Context, inst *types.Instance) error {
	inst.SystemNameKey = strings.ToLower(inst.SystemName)
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}
	return s.exec(ctx, "PutInstance", func(tx *gorm.DB) error {
		return upsert(tx, inst)
	})
}

func (s *Store) GetInstance(ctx context.Context, userID, instanceID string) (*types.Instance, error) {
	var inst types.Instance
	err := s.exec(ctx, "GetInstance", func(tx *gorm.DB) error {
		return tx.Where("user_id = ? AND instance_id = ?", userID, instanceID).First(&inst).Error
	})
	if err != nil {
		return nil, instanceNotFound(err, instanceID)
	}
	return &inst, nil
}

func (s *Store) FindInstance(ctx context.Context, instanceID string) (*types.Instance, error) {
	var inst types.Instance
	err := s.exec(ctx, "FindInstance", func(tx *gorm.DB) error {
		return tx.Where("instance_id = ?", instanceID).First(&inst).Error
	})
	if err != nil {
		return nil, instanceNotFound(err, instanceID)
	}
	return &inst, nil
}

// ListInstances returns every instance of userID, oldest first.
func (s *Store) ListInstances(ctx context.Context, userID string) ([]types.Instance, error) {
	var out []types.Instance
	err := s.exec(ctx, "ListInstances", func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).Order("created_at ASC, instance_id ASC").Find(&out).Error
	})
	return out, err
}

// SystemNameExists compares names case-insensitively.
func (s *Store) SystemNameExists(ctx context.Context, userID, systemName string) (bool, error) {
	var count int64
	err := s.exec(ctx, "SystemNameExists", func(tx *gorm.DB) error {
		return tx.Model(&types.Instance{}).
			Where("user_id = ? AND system_name_key = ?", userID, strings.ToLower(systemName)).
			Count(&count).Error
	})
	return count > 0, err
}

func (s *Store) UpdateInstanceStatus(ctx context.Context, userID, instanceID, status string) error {
	return s.exec(ctx, "UpdateInstanceStatus", func(tx *gorm.DB) error {
		res := tx.Model(&types.Instance{}).
			Where("user_id = ? AND instance_id = ?", userID, instanceID).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (s *Store) DeleteInstance(ctx context.Context, userID, instanceID string) error {
	return s.exec(ctx, "DeleteInstance", func(tx *gorm.DB) error {
		return tx.Where("user_id = ? AND instance_id = ?", userID, instanceID).Delete(&types.Instance{}).Error
	})
}

// Live status

func (s *Store) PutStatus(ctx context.Context, rec *types.StatusRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	return s.exec(ctx, "PutStatus", func(tx *gorm.DB) error {
		return upsert(tx, rec)
	})
}

func (s *Store) GetStatus(ctx context.Context, instanceID string) (*types.StatusRecord, error) {
	var rec types.StatusRecord
	err := s.exec(ctx, "GetStatus", func(tx *gorm.DB) error {
		return tx.Where("instance_id = ?", instanceID).First(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) DeleteStatus(ctx context.Context, instanceID string) error {
	return s.exec(ctx, "DeleteStatus", func(tx *gorm.DB) error {
		return tx.Where("instance_id = ?", instanceID).Delete(&types.StatusRecord{}).Error
	})
}

// Key material

func (s *Store) PutKeyMaterial(ctx context.Context, km *types.KeyMaterial) error {
	if km.CreatedAt.IsZero() {
		km.CreatedAt = time.Now().UTC()
	}
	return s.exec(ctx, "PutKeyMaterial", func(tx *gorm.DB) error {
		return upsert(tx, km)
	})
}

func (s *Store) GetKeyMaterial(ctx context.Context, instanceID string) (*types.KeyMaterial, error) {
	var km types.KeyMaterial
	err := s.exec(ctx, "GetKeyMaterial", func(tx *gorm.DB) error {
		return tx.Where("instance_id = ?", instanceID).First(&km).Error
	})
	if err != nil {
		return nil, err
	}
	return &km, nil
}

func (s *Store) DeleteKeyMaterial(ctx context.Context, instanceID string) error {
	return s.exec(ctx, "DeleteKeyMaterial", func(tx *gorm.DB) error {
		return tx.Where("instance_id = ?", instanceID).Delete(&types.KeyMaterial{}).Error
	})
}

// IP records

func (s *Store) PutIPRecord(ctx context.Context, rec *types.IPRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.exec(ctx, "PutIPRecord", func(tx *gorm.DB) error {
		return upsert(tx, rec)
	})
}

func (s *Store) DeleteIPRecord(ctx context.Context, instanceID string) error {
	return s.exec(ctx, "DeleteIPRecord", func(tx *gorm.DB) error {
		return tx.Where("instance_id = ?", instanceID).Delete(&types.IPRecord{}).Error
	})
}

// Tracking ledger

// UpsertTracking overwrites the ledger row of (ResourceID, ResourceType).
func (s *Store) UpsertTracking(ctx context.Context, entry *types.TrackingEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	return s.exec(ctx, "UpsertTracking", func(tx *gorm.DB) error {
		return upsert(tx, entry)
	})
}

func (s *Store) GetTracking(ctx context.Context, resourceID, resourceType string) (*types.TrackingEntry, error) {
	var entry types.TrackingEntry
	err := s.exec(ctx, "GetTracking", func(tx *gorm.DB) error {
		return tx.Where("resource_id = ? AND resource_type = ?", resourceID, resourceType).First(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Counters

// ListSubnets returns the counters of region, least loaded first.
func (s *Store) ListSubnets(ctx context.Context, region string) ([]types.SubnetCounter, error) {
	var subnets []types.SubnetCounter
	err := s.exec(ctx, "ListSubnets", func(tx *gorm.DB) error {
		return tx.Where("region = ?", region).Order("vm_count ASC, subnet_id ASC").Find(&subnets).Error
	})
	return subnets, err
}

// AdjustSubnet inserts the counter when missing and otherwise adds delta in
// the same statement, never letting vm_count drop below zero.
func (s *Store) AdjustSubnet(ctx context.Context, region, subnetID string, delta int) error {
	return s.exec(ctx, "AdjustSubnet", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "region"}, {Name: "subnet_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"vm_count": gorm.Expr("MAX(vm_count + ?, 0)", delta),
			}),
		}).Create(&types.SubnetCounter{Region: region, SubnetID: subnetID, VMCount: max(delta, 0)}).Error
	})
}

// GetQuota returns the owner's quota; owners without a row get the default quota.
func (s *Store) GetQuota(ctx context.Context, userID string) (*types.UserQuota, error) {
	var q types.UserQuota
	err := s.exec(ctx, "GetQuota", func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).First(&q).Error
	})
	if errors.HasCode(err, errors.ErrCodeRecordNotFound) {
		return &types.UserQuota{UserID: userID, Quota: s.defaultQuota}, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Store) PutQuota(ctx context.Context, q *types.UserQuota) error {
	return s.exec(ctx, "PutQuota", func(tx *gorm.DB) error {
		return upsert(tx, q)
	})
}

// AdjustQuotaUsage adds delta to used_count atomically, clamped at zero.
func (s *Store) AdjustQuotaUsage(ctx context.Context, userID string, delta int) error {
	return s.exec(ctx, "AdjustQuotaUsage", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"used_count": gorm.Expr("MAX(used_count + ?, 0)", delta),
			}),
		}).Create(&types.UserQuota{UserID: userID, Quota: s.defaultQuota, UsedCount: max(delta, 0)}).Error
	})
}

// Assignments

func (s *Store) PutAssignment(ctx context.Context, a *types.Assignment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return s.exec(ctx, "PutAssignment", func(tx *gorm.DB) error {
		return upsert(tx, a)
	})
}

func (s *Store) GetAssignment(ctx context.Context, ownerID, instanceID string) (*types.Assignment, error) {
	var a types.Assignment
	err := s.exec(ctx, "GetAssignment", func(tx *gorm.DB) error {
		return tx.Where("owner_id = ? AND instance_id = ?", ownerID, instanceID).First(&a).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssignments returns every delegation made by ownerID.
func (s *Store) ListAssignments(ctx context.Context, ownerID string) ([]types.Assignment, error) {
	var out []types.Assignment
	err := s.exec(ctx, "ListAssignments", func(tx *gorm.DB) error {
		return tx.Where("owner_id = ?", ownerID).Order("instance_id ASC").Find(&out).Error
	})
	return out, err
}

func (s *Store) DeleteAssignment(ctx context.Context, ownerID, instanceID string) error {
	return s.exec(ctx, "DeleteAssignment", func(tx *gorm.DB) error {
		return tx.Where("owner_id = ? AND instance_id = ?", ownerID, instanceID).Delete(&types.Assignment{}).Error
	})
}

// Idle settings and sessions

func (s *Store) PutIdleSetting(ctx context.Context, setting *types.IdleSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	return s.exec(ctx, "PutIdleSetting", func(tx *gorm.DB) error {
		return upsert(tx, setting)
	})
}

func (s *Store) DeleteIdleSetting(ctx context.Context, instanceID string) error {
	return s.exec(ctx, "DeleteIdleSetting", func(tx *gorm.DB) error {
		return tx.Where("instance_id = ?", instanceID).Delete(&types.IdleSetting{}).Error
	})
}

func (s *Store) PutSession(ctx context.Context, session *types.SessionRecord) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	return s.exec(ctx, "PutSession", func(tx *gorm.DB) error {
		return upsert(tx, session)
	})
}

// DeleteSessions looks sessions up through the (user_id, instance_id) index.
func (s *Store) DeleteSessions(ctx context.Context, userID, instanceID string) (int, error) {
	var n int64
	err := s.exec(ctx, "DeleteSessions", func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND instance_id = ?", userID, instanceID).Delete(&types.SessionRecord{})
		n = res.RowsAffected
		return res.Error
	})
	return int(n), err
}

func instanceNotFound(err error, instanceID string) error {
	if errors.HasCode(err, errors.ErrCodeRecordNotFound) {
		return errors.NotFound(errors.ErrCodeInstanceNotFound, fmt.Sprintf("instance not found: %s", instanceID)).
			WithCause(err)
	}
	return err
}

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
	switch {
	case stderr.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound(errors.ErrCodeRecordNotFound, "record not found").
			WithComponent(Component).
			WithOperation(op)
	case stderr.Is(err, gorm.ErrDuplicatedKey):
		return errors.NewError(errors.ErrCodeRecordExists, "record already exists").
			WithComponent(Component).
			WithOperation(op).
			WithCause(err)
	case strings.Contains(err.Error(), "database is locked"):
		return errors.NewError(errors.ErrCodeDependencyUnavailable, "database is busy").
			WithComponent(Component).
			WithOperation(op).
			WithCause(err)
	}
	return errors.NewError(errors.ErrCodeDependencyFailed, "inventory query failed").
		WithComponent(Component).
		WithOperation(op).
		WithCause(err)
}
