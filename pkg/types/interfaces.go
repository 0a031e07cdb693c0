package types

import (
	"context"
	"time"
)

// ObjectStore is the blob store behind the emulated filesystem.
type ObjectStore interface {
	// Object operations
	PutObject(ctx context.Context, b Bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, b Bucket, key string) ([]byte, error)
	HeadObject(ctx context.Context, b Bucket, key string) (*ObjectInfo, error)
	DeleteObject(ctx context.Context, b Bucket, key string) error
	CopyObject(ctx context.Context, b Bucket, srcKey, dstKey string) error

	// ListObjects follows continuation tokens until every key under prefix is returned.
	ListObjects(ctx context.Context, b Bucket, prefix string) ([]ObjectInfo, error)

	// Credentials
	PresignPut(ctx context.Context, b Bucket, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, b Bucket, key string, opts PresignGetOptions) (string, error)
}

// FileStore is the metadata table of emulated files plus the region to bucket mapping.
type FileStore interface {
	BucketForRegion(ctx context.Context, region string) (Bucket, error)
	PutBucket(ctx context.Context, b Bucket) error

	GetFile(ctx context.Context, id string) (*FileRecord, error)
	// CreateFile fails with RECORD_EXISTS when id is already taken.
	CreateFile(ctx context.Context, rec *FileRecord) error
	PutFile(ctx context.Context, rec *FileRecord) error
	// UpdateFile applies fn to the stored record under the store's concurrency control.
	UpdateFile(ctx context.Context, id string, fn func(*FileRecord) error) (*FileRecord, error)
	DeleteFile(ctx context.Context, id string) error

	// ScanPrefix returns every record whose id starts with prefix, in id order.
	ScanPrefix(ctx context.Context, prefix string) ([]FileRecord, error)
	ListByUser(ctx context.Context, userID string) ([]FileRecord, error)
}

// Inventory is the relational state of the instance orchestrator.
type Inventory interface {
	PutInstance(ctx context.Context, inst *Instance) error
	GetInstance(ctx context.Context, userID, instanceID string) (*Instance, error)
	FindInstance(ctx context.Context, instanceID string) (*Instance, error)
	ListInstances(ctx context.Context, userID string) ([]Instance, error)
	SystemNameExists(ctx context.Context, userID, systemName string) (bool, error)
	UpdateInstanceStatus(ctx context.Context, userID, instanceID, status string) error
	DeleteInstance(ctx context.Context, userID, instanceID string) error

	PutStatus(ctx context.Context, rec *StatusRecord) error
	GetStatus(ctx context.Context, instanceID string) (*StatusRecord, error)
	DeleteStatus(ctx context.Context, instanceID string) error

	PutKeyMaterial(ctx context.Context, km *KeyMaterial) error
	GetKeyMaterial(ctx context.Context, instanceID string) (*KeyMaterial, error)
	DeleteKeyMaterial(ctx context.Context, instanceID string) error

	PutIPRecord(ctx context.Context, rec *IPRecord) error
	DeleteIPRecord(ctx context.Context, instanceID string) error

	UpsertTracking(ctx context.Context, entry *TrackingEntry) error
	GetTracking(ctx context.Context, resourceID, resourceType string) (*TrackingEntry, error)

	ListSubnets(ctx context.Context, region string) ([]SubnetCounter, error)
	// AdjustSubnet adds delta to the counter in one statement, clamping at zero.
	AdjustSubnet(ctx context.Context, region, subnetID string, delta int) error

	GetQuota(ctx context.Context, userID string) (*UserQuota, error)
	PutQuota(ctx context.Context, q *UserQuota) error
	// AdjustQuotaUsage adds delta to usedCount in one statement, clamping at zero.
	AdjustQuotaUsage(ctx context.Context, userID string, delta int) error

	PutAssignment(ctx context.Context, a *Assignment) error
	GetAssignment(ctx context.Context, ownerID, instanceID string) (*Assignment, error)
	ListAssignments(ctx context.Context, ownerID string) ([]Assignment, error)
	DeleteAssignment(ctx context.Context, ownerID, instanceID string) error

	PutIdleSetting(ctx context.Context, s *IdleSetting) error
	DeleteIdleSetting(ctx context.Context, instanceID string) error

	PutSession(ctx context.Context, s *SessionRecord) error
	// DeleteSessions removes every session of (userID, instanceID) and reports how many went.
	DeleteSessions(ctx context.Context, userID, instanceID string) (int, error)
}

// Compute is the virtual-machine provider.
type Compute interface {
	RunInstance(ctx context.Context, region string, spec LaunchSpec) (*LaunchResult, error)
	DescribeInstance(ctx context.Context, region, instanceID string) (*InstanceState, error)
	StartInstance(ctx context.Context, region, instanceID string) error
	StopInstance(ctx context.Context, region, instanceID string) error
	TerminateInstance(ctx context.Context, region, instanceID string) error

	CreateKeyPair(ctx context.Context, region, name string) (*KeyPair, error)
	DeleteKeyPair(ctx context.Context, region, name string) error
}

// IdentityDecoder turns a bearer token into claims.
type IdentityDecoder interface {
	Decode(token string) (*Claims, error)
}

// MetricsCollector defines the metrics collection interface
type MetricsCollector interface {
	RecordOperation(operation string, duration time.Duration, size int64, success bool)
	RecordError(operation string, err error)
	RecordRetry(dependency string)
}
