package instance

import "github.com/smartpc/smartpc/pkg/types"

// Actions accepted by the /instance entry point.
const (
	ActionCreate      = "create"
	ActionDelete      = "delete"
	ActionCheckStatus = "checkStatus"
	ActionStart       = "start"
	ActionStop        = "stop"
)

// Envelope carries the discriminator of an /instance body.
type Envelope struct {
	Action string `json:"action" validate:"required,oneof=create delete checkStatus start stop"`
}

// CreateRequest is the body of the create action.
type CreateRequest struct {
	Action       string `json:"action"`
	Region       string `json:"region" validate:"required"`
	ConfigID     string `json:"configId" validate:"required"`
	AmiID        string `json:"amiId" validate:"required"`
	SystemName   string `json:"systemName" validate:"required,max=128"`
	StorageSize  int    `json:"storageSize" validate:"gt=0"`
	InstanceType string `json:"instanceType"`
}

// TargetRequest is the body of delete, start, stop and checkStatus.
type TargetRequest struct {
	Action     string `json:"action"`
	InstanceID string `json:"instanceId" validate:"required"`
	Region     string `json:"region"`
}

// CreateResult describes a freshly provisioned instance.
type CreateResult struct {
	Message    string `json:"message"`
	InstanceID string `json:"instanceId"`
	SystemName string `json:"systemName"`
	KeyName    string `json:"keyName"`
	SubnetID   string `json:"subnetId"`
	PrivateIP  string `json:"privateIp,omitempty"`
	Status     string `json:"status"`
}

// ActionResult reports a power transition or a teardown.
type ActionResult struct {
	Message    string             `json:"message"`
	InstanceID string             `json:"instanceId"`
	Status     string             `json:"status"`
	Steps      []types.ItemResult `json:"steps,omitempty"`
}

// StatusResult is the answer of checkStatus.
type StatusResult struct {
	InstanceID string `json:"instanceId"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// View is an inventory row enriched with the provider's live state.
type View struct {
	types.Instance
	State        string `json:"state"`
	InstanceType string `json:"instanceType"`
	LaunchTime   string `json:"launchTime,omitempty"`
}
