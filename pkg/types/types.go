package types

import (
	"strings"
	"time"
)

// FolderType is the fileType sentinel carried by folder markers.
const FolderType = "folder"

// Separator is the path separator of emulated keys.
const Separator = "/"

// File visibility values.
const (
	StatusPrivate = "private"
	StatusShared  = "shared"
)

// TimeLayout is the createdAt format. Lexicographic order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000"

// FileRecord is the metadata row kept for every emulated file or folder marker.
// ID is the full storage key; folder IDs always end with Separator.
type FileRecord struct {
	ID               string `json:"id"`
	Bucket           string `json:"bucket"`
	Region           string `json:"region"`
	UserID           string `json:"userId"`
	FileName         string `json:"fileName"`
	FileType         string `json:"fileType"`
	Size             int64  `json:"size"`
	Status           string `json:"status"`
	Starred          bool   `json:"starred"`
	Shared           bool   `json:"shared"`
	SharePermissions string `json:"sharePermissions,omitempty"`
	ShareExpiry      string `json:"shareExpiry,omitempty"`
	SharePassword    string `json:"sharePassword,omitempty"`
	Folder           string `json:"folder"`
	CreatedAt        string `json:"createdAt"`
}

// IsFolder reports whether the record is a folder marker.
func (r *FileRecord) IsFolder() bool {
	return r.FileType == FolderType || strings.HasSuffix(r.ID, Separator)
}

// CreatedTime parses CreatedAt; the zero time is returned for malformed values.
func (r *FileRecord) CreatedTime() time.Time {
	t, err := time.Parse(TimeLayout, r.CreatedAt)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	}
	return t
}

// Timestamp formats t the way CreatedAt is stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Bucket identifies an object-store bucket together with its region.
type Bucket struct {
	Name   string `json:"bucketName"`
	Region string `json:"region"`
}

// ObjectInfo represents metadata about an object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
	ContentType  string    `json:"content_type"`
}

// PresignGetOptions shapes a read credential.
type PresignGetOptions struct {
	TTL                time.Duration
	ContentType        string
	ContentDisposition string
}

// ItemResult reports the outcome of one item of a batch operation.
type ItemResult struct {
	Target  string `json:"target"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BatchResult collects per-item outcomes.
type BatchResult struct {
	Items []ItemResult `json:"results"`
}

// Ok records a successful item.
func (b *BatchResult) Ok(target string) {
	b.Items = append(b.Items, ItemResult{Target: target, Success: true})
}

// Fail records a failed item.
func (b *BatchResult) Fail(target string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b.Items = append(b.Items, ItemResult{Target: target, Error: msg})
}

// Succeeded returns the targets that succeeded, in order.
func (b *BatchResult) Succeeded() []string {
	out := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		if it.Success {
			out = append(out, it.Target)
		}
	}
	return out
}

// Failed returns the targets that failed, in order.
func (b *BatchResult) Failed() []string {
	out := make([]string, 0)
	for _, it := range b.Items {
		if !it.Success {
			out = append(out, it.Target)
		}
	}
	return out
}

// AllFailed reports whether at least one item was attempted and none succeeded.
func (b *BatchResult) AllFailed() bool {
	return len(b.Items) > 0 && len(b.Succeeded()) == 0
}

// Instance states.
const (
	InstanceRunning      = "running"
	InstanceStopped      = "stopped"
	InstancePending      = "pending"
	InstanceStopping     = "stopping"
	InstanceInitializing = "initializing"
	InstanceTerminated   = "terminated"
	InstanceNotFound     = "not found"
)

// Instance mirrors one provisioned compute instance (the user-data row).
type Instance struct {
	InstanceID    string    `gorm:"primaryKey" json:"instanceId"`
	UserID        string    `gorm:"uniqueIndex:idx_user_system;not null" json:"userId"`
	SystemName    string    `gorm:"not null" json:"systemName"`
	SystemNameKey string    `gorm:"uniqueIndex:idx_user_system;not null" json:"-"`
	SubnetID      string    `json:"subnetId"`
	Region        string    `gorm:"not null" json:"region"`
	ConfigID      string    `json:"configId"`
	AmiID         string    `json:"amiId,omitempty"`
	InstanceType  string    `json:"instanceType"`
	StorageSize   int       `json:"storageSize"`
	Status        string    `json:"status"`
	PrivateIP     string    `json:"privateIp"`
	PublicIP      string    `json:"publicIp"`
	CreatedAt     time.Time `json:"createdAt"`
}

// StatusRecord is the live-status row of an instance.
type StatusRecord struct {
	InstanceID string    `gorm:"primaryKey" json:"instanceId"`
	UserID     string    `gorm:"index" json:"userId"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// KeyMaterial holds the key pair issued for an instance.
type KeyMaterial struct {
	InstanceID string    `gorm:"primaryKey" json:"instanceId"`
	UserID     string    `gorm:"index" json:"userId"`
	KeyName    string    `gorm:"not null" json:"keyName"`
	PrivateKey string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IPRecord keeps the addresses assigned to an instance.
type IPRecord struct {
	InstanceID string    `gorm:"primaryKey" json:"instanceId"`
	UserID     string    `gorm:"index" json:"userId"`
	PrivateIP  string    `json:"privateIp"`
	PublicIP   string    `json:"publicIp"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Resource types of the tracking ledger.
const (
	ResourceInstance = "instance"
	ResourceKeyPair  = "key-pair"
)

// TrackingEntry is the audit ledger row keyed by (ResourceID, ResourceType).
type TrackingEntry struct {
	ResourceID   string    `gorm:"primaryKey" json:"resourceId"`
	ResourceType string    `gorm:"primaryKey" json:"resourceType"`
	EntryID      string    `json:"entryId"`
	UserID       string    `gorm:"index" json:"userId"`
	Status       string    `json:"status"`
	Region       string    `json:"region"`
	SubnetID     string    `json:"subnetId"`
	ConfigID     string    `json:"configId"`
	StorageSize  int       `json:"storageSize"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SubnetCounter balances instances across subnets; VMCount never drops below zero.
type SubnetCounter struct {
	Region   string `gorm:"primaryKey" json:"region"`
	SubnetID string `gorm:"primaryKey" json:"subnetId"`
	VMCount  int    `gorm:"not null;default:0" json:"vmCount"`
}

// UserQuota bounds how many instances an owner may hold.
type UserQuota struct {
	UserID    string `gorm:"primaryKey" json:"userId"`
	Quota     int    `gorm:"not null" json:"quota"`
	UsedCount int    `gorm:"not null;default:0" json:"usedCount"`
}

// Assignment delegates start/stop of an owner's instance to a member.
type Assignment struct {
	OwnerID    string    `gorm:"primaryKey" json:"ownerId"`
	InstanceID string    `gorm:"primaryKey" json:"instanceId"`
	MemberID   string    `gorm:"index;not null" json:"memberId"`
	SystemName string    `json:"systemName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IdleSetting is the idle-timeout policy seeded for every new instance.
type IdleSetting struct {
	InstanceID     string    `gorm:"primaryKey" json:"instanceId"`
	UserID         string    `gorm:"index" json:"userId"`
	TimeoutMinutes int       `json:"timeout"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SessionRecord is a remote-desktop session row looked up by (UserID, InstanceID).
type SessionRecord struct {
	SessionID  string    `gorm:"primaryKey" json:"sessionId"`
	UserID     string    `gorm:"index:idx_session_owner" json:"userId"`
	InstanceID string    `gorm:"index:idx_session_owner" json:"instanceId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Roles carried in identity tokens.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleOwner  = "owner"
)

// Claims are the identity attributes decoded from a bearer token.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	OwnerID string `json:"ownerId"`
}

// LaunchSpec describes an instance to launch.
type LaunchSpec struct {
	AmiID        string
	InstanceType string
	SubnetID     string
	StorageSize  int
	Name         string
	OwnerID      string
	Tags         map[string]string
}

// LaunchResult is what the provider reports right after launch.
type LaunchResult struct {
	InstanceID string
	PrivateIP  string
	PublicIP   string
}

// KeyPair is a provider key pair with its private material.
type KeyPair struct {
	Name       string
	PrivateKey string
}

// InstanceState is the provider view of an instance.
type InstanceState struct {
	InstanceID   string
	State        string
	InstanceType string
	PrivateIP    string
	PublicIP     string
	LaunchTime   time.Time
	// ChecksOK is true when both system and instance status checks report ok.
	ChecksOK bool
}

// DisplayState derives the state shown to users: a running instance whose
// health checks are not yet green is reported as initializing.
func (s *InstanceState) DisplayState() string {
	if s == nil {
		return InstanceNotFound
	}
	if s.State == InstanceRunning && !s.ChecksOK {
		return InstanceInitializing
	}
	return s.State
}
