package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Global.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel to be INFO, got %s", cfg.Global.LogLevel)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("Expected Address to be :8080, got %s", cfg.Server.Address)
	}

	// Credential lifetimes
	if cfg.Storage.UploadURLTTL != time.Hour {
		t.Errorf("Expected upload TTL of 1h, got %v", cfg.Storage.UploadURLTTL)
	}
	if cfg.Storage.PreviewURLTTL != 5*time.Minute {
		t.Errorf("Expected preview TTL of 5m, got %v", cfg.Storage.PreviewURLTTL)
	}
	if cfg.Storage.DownloadURLTTL != time.Hour || cfg.Storage.ArchiveURLTTL != time.Hour {
		t.Error("Expected download and archive TTLs of 1h")
	}

	if cfg.Storage.TransferOptimization || cfg.Storage.TransferConcurrency != 4 {
		t.Errorf("Expected transfer optimization off with concurrency 4, got %+v", cfg.Storage)
	}

	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected memory metadata store, got %s", cfg.Metadata.Type)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected 3 retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if !cfg.Monitoring.Metrics.Enabled {
		t.Error("Expected metrics to be enabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Configuration
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			config:  NewDefault,
			wantErr: false,
		},
		{
			name: "invalid log level",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.LogLevel = "LOUD"
				return cfg
			},
			wantErr: true,
			errMsg:  "Configuration.Global.LogLevel: validation failed on 'oneof' tag",
		},
		{
			name: "badger without directory",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Metadata.Type = "badger"
				cfg.Metadata.Directory = ""
				return cfg
			},
			wantErr: true,
			errMsg:  "Configuration.Metadata.Directory: validation failed on 'required_if' tag",
		},
		{
			name: "badger with directory",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Metadata.Type = "badger"
				cfg.Metadata.Directory = "/var/lib/smartpc/metadata"
				return cfg
			},
			wantErr: false,
		},
		{
			name: "unknown metadata store",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Metadata.Type = "dynamo"
				return cfg
			},
			wantErr: true,
			errMsg:  "validation failed on 'oneof' tag",
		},
		{
			name: "zero retry attempts",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Retry.MaxAttempts = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "Configuration.Retry.MaxAttempts",
		},
		{
			name: "non-positive storage option",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Compute.StorageOptions["win-basic"] = []int{30, 0}
				return cfg
			},
			wantErr: true,
			errMsg:  "validation failed on 'gt' tag",
		},
		{
			name: "default instance type not allowed",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Compute.DefaultInstanceType = "x1e.32xlarge"
				return cfg
			},
			wantErr: true,
			errMsg:  "is not in allowed_instance_types",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %v", err, tt.errMsg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
global:
  log_level: DEBUG
  log_format: json

storage:
  buckets:
    us-east-1: files-use1
    eu-west-1: files-euw1
  preview_url_ttl: 10m

metadata:
  type: badger
  directory: /tmp/smartpc-meta

compute:
  storage_options:
    win-basic: [30, 50]
  subnets:
    us-east-1: [subnet-a, subnet-b]

retry:
  max_attempts: 5
  initial_delay: 100ms
`

	if err := os.WriteFile(configFile, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Global.LogLevel != "DEBUG" || cfg.Global.LogFormat != "json" {
		t.Errorf("unexpected global section: %+v", cfg.Global)
	}
	if cfg.Storage.Buckets["eu-west-1"] != "files-euw1" {
		t.Errorf("Expected eu-west-1 bucket, got %v", cfg.Storage.Buckets)
	}
	if cfg.Storage.PreviewURLTTL != 10*time.Minute {
		t.Errorf("Expected preview TTL 10m, got %v", cfg.Storage.PreviewURLTTL)
	}
	if cfg.Storage.UploadURLTTL != time.Hour {
		t.Error("Unset keys should keep their defaults")
	}
	if cfg.Metadata.Type != "badger" || cfg.Metadata.Directory != "/tmp/smartpc-meta" {
		t.Errorf("unexpected metadata section: %+v", cfg.Metadata)
	}
	if got := cfg.Compute.Subnets["us-east-1"]; len(got) != 2 {
		t.Errorf("Expected two subnets, got %v", got)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.InitialDelay != 100*time.Millisecond {
		t.Errorf("unexpected retry section: %+v", cfg.Retry)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded configuration should validate: %v", err)
	}
}

func TestLoadFromFileNonExistent(t *testing.T) {
	cfg := NewDefault()
	if err := cfg.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error when loading non-existent config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	testEnvVars := map[string]string{
		"SMARTPC_LOG_LEVEL":       "error",
		"SMARTPC_ADDRESS":         ":9000",
		"SMARTPC_AWS_REGION":      "eu-west-1",
		"SMARTPC_AWS_ENDPOINT":    "http://localhost:4566",
		"SMARTPC_AWS_PATH_STYLE":  "true",
		"SMARTPC_BUCKETS":         "us-east-1=files-use1, eu-west-1=files-euw1",
		"SMARTPC_METADATA_TYPE":   "BADGER",
		"SMARTPC_METADATA_DIR":    "/data/meta",
		"SMARTPC_INVENTORY_DSN":   "/data/inventory.db",
		"SMARTPC_DEFAULT_QUOTA":   "3",
		"SMARTPC_IDENTITY_SECRET": "s3cret",

		"SMARTPC_STORAGE_TRANSFER_OPTIMIZATION": "TRUE",
	}
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Global.LogLevel != "ERROR" {
		t.Errorf("Expected LogLevel ERROR, got %s", cfg.Global.LogLevel)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("Expected Address :9000, got %s", cfg.Server.Address)
	}
	if cfg.AWS.Region != "eu-west-1" || !cfg.AWS.UsePathStyle || cfg.AWS.Endpoint == "" {
		t.Errorf("unexpected aws section: %+v", cfg.AWS)
	}
	if cfg.Storage.Buckets["us-east-1"] != "files-use1" || cfg.Storage.Buckets["eu-west-1"] != "files-euw1" {
		t.Errorf("unexpected buckets: %v", cfg.Storage.Buckets)
	}
	if cfg.Metadata.Type != "badger" || cfg.Metadata.Directory != "/data/meta" {
		t.Errorf("unexpected metadata section: %+v", cfg.Metadata)
	}
	if cfg.Inventory.DSN != "/data/inventory.db" {
		t.Errorf("unexpected DSN %s", cfg.Inventory.DSN)
	}
	if cfg.Compute.DefaultQuota != 3 {
		t.Errorf("Expected default quota 3, got %d", cfg.Compute.DefaultQuota)
	}
	if cfg.Identity.Secret != "s3cret" {
		t.Error("Expected identity secret from env")
	}
	if !cfg.Storage.TransferOptimization {
		t.Error("Expected transfer optimization from env")
	}
}

func TestLoadFromEnvRejectsMalformedBuckets(t *testing.T) {
	t.Setenv("SMARTPC_BUCKETS", "us-east-1")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("Expected an error for a bucket pair without '='")
	}
}

func TestSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := NewDefault()
	cfg.Storage.Buckets["us-east-1"] = "files-use1"
	cfg.Compute.StorageOptions["win-basic"] = []int{30, 50}

	if err := cfg.SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded := NewDefault()
	if err := loaded.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Storage.Buckets["us-east-1"] != "files-use1" {
		t.Errorf("bucket mapping not persisted: %v", loaded.Storage.Buckets)
	}
	if got := loaded.Compute.StorageOptions["win-basic"]; len(got) != 2 || got[1] != 50 {
		t.Errorf("storage options not persisted: %v", got)
	}
}

func TestComputePolicy(t *testing.T) {
	cfg := NewDefault().Compute
	cfg.StorageOptions["win-basic"] = []int{30, 50}

	if !cfg.AllowsInstanceType("t3.medium") {
		t.Error("t3.medium should be allowed")
	}
	if cfg.AllowsInstanceType("p4d.24xlarge") {
		t.Error("p4d.24xlarge should not be allowed")
	}

	tests := []struct {
		configID string
		size     int
		want     bool
	}{
		{"win-basic", 30, true},
		{"win-basic", 40, false},
		{"unlisted", 80, true},
		{"unlisted", 0, false},
	}
	for _, tt := range tests {
		if got := cfg.AllowsStorage(tt.configID, tt.size); got != tt.want {
			t.Errorf("AllowsStorage(%q, %d) = %v, want %v", tt.configID, tt.size, got, tt.want)
		}
	}
}
