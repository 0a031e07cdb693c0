package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/retry"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Server     ServerConfig     `yaml:"server"`
	AWS        AWSConfig        `yaml:"aws"`
	Storage    StorageConfig    `yaml:"storage"`
	Metadata   MetadataConfig   `yaml:"metadata"`
	Inventory  InventoryConfig  `yaml:"inventory"`
	Compute    ComputeConfig    `yaml:"compute"`
	Identity   IdentityConfig   `yaml:"identity"`
	Retry      retry.Config     `yaml:"retry"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
	LogFile   string `yaml:"log_file"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EnableCORS      bool          `yaml:"enable_cors"`
	AllowedOrigin   string        `yaml:"allowed_origin"`
}

// AWSConfig holds the SDK settings shared by the storage and compute adapters.
type AWSConfig struct {
	Region          string `yaml:"region" validate:"required"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// StorageConfig configures the emulated filesystem.
type StorageConfig struct {
	// Backend selects the object store: s3, or memory for local runs.
	Backend string `yaml:"backend" validate:"oneof=s3 memory"`
	// Buckets seeds the region to bucket mapping at startup.
	Buckets        map[string]string `yaml:"buckets"`
	UploadURLTTL   time.Duration     `yaml:"upload_url_ttl" validate:"gt=0"`
	PreviewURLTTL  time.Duration     `yaml:"preview_url_ttl" validate:"gt=0"`
	DownloadURLTTL time.Duration     `yaml:"download_url_ttl" validate:"gt=0"`
	ArchiveURLTTL  time.Duration     `yaml:"archive_url_ttl" validate:"gt=0"`
	RenameLimit    int               `yaml:"rename_limit" validate:"gte=1"`
	BucketCacheTTL time.Duration     `yaml:"bucket_cache_ttl" validate:"gte=0"`

	// TransferOptimization routes large server-side uploads, such as
	// folder archives, through the CargoShip transporter.
	TransferOptimization bool  `yaml:"transfer_optimization"`
	TransferMinSize      int64 `yaml:"transfer_min_size" validate:"gte=0"`
	TransferConcurrency  int   `yaml:"transfer_concurrency" validate:"gte=1"`
}

// MetadataConfig selects the file metadata store.
type MetadataConfig struct {
	Type      string `yaml:"type" validate:"oneof=memory badger"`
	Directory string `yaml:"directory" validate:"required_if=Type badger"`
}

// InventoryConfig configures the relational inventory database.
type InventoryConfig struct {
	DSN    string `yaml:"dsn" validate:"required"`
	LogSQL bool   `yaml:"log_sql"`
}

// ComputeConfig holds the provisioning policy.
type ComputeConfig struct {
	AllowedInstanceTypes []string `yaml:"allowed_instance_types" validate:"min=1,dive,required"`
	DefaultInstanceType  string   `yaml:"default_instance_type" validate:"required"`
	// StorageOptions lists the allowed storage sizes (GiB) per configuration id.
	StorageOptions     map[string][]int    `yaml:"storage_options" validate:"dive,min=1,dive,gt=0"`
	Subnets            map[string][]string `yaml:"subnets" validate:"dive,dive,required"`
	SecurityGroupIDs   []string            `yaml:"security_group_ids"`
	IdleTimeoutMinutes int                 `yaml:"idle_timeout_minutes" validate:"gte=0"`
	DefaultQuota       int                 `yaml:"default_quota" validate:"gte=0"`
}

// IdentityConfig configures bearer token decoding. With an empty secret the
// token signature is not checked and verification is left to the gateway.
type IdentityConfig struct {
	Secret string `yaml:"secret"`
}

// MonitoringConfig represents monitoring configuration
type MonitoringConfig struct {
	Metrics MetricsConfig        `yaml:"metrics"`
	Health  health.TrackerConfig `yaml:"health"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path" validate:"required_if=Enabled true"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
		},
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			EnableCORS:      true,
			AllowedOrigin:   "*",
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Storage: StorageConfig{
			Backend:        "s3",
			Buckets:        map[string]string{},
			UploadURLTTL:   time.Hour,
			PreviewURLTTL:  5 * time.Minute,
			DownloadURLTTL: time.Hour,
			ArchiveURLTTL:  time.Hour,
			RenameLimit:    1000,
			BucketCacheTTL: time.Minute,

			TransferMinSize:     5 * 1024 * 1024,
			TransferConcurrency: 4,
		},
		Metadata: MetadataConfig{
			Type: "memory",
		},
		Inventory: InventoryConfig{
			DSN: "smartpc.db",
		},
		Compute: ComputeConfig{
			AllowedInstanceTypes: []string{"t3.medium", "t3.large", "m5.large", "m5.xlarge", "g4dn.xlarge"},
			DefaultInstanceType:  "t3.medium",
			StorageOptions:       map[string][]int{},
			Subnets:              map[string][]string{},
			IdleTimeoutMinutes:   30,
			DefaultQuota:         1,
		},
		Retry: retry.DefaultConfig(),
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   true,
				Path:      "/metrics",
				Namespace: "smartpc",
			},
			Health: health.DefaultConfig(),
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv("SMARTPC_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("SMARTPC_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = strings.ToLower(val)
	}
	if val := os.Getenv("SMARTPC_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	// Server
	if val := os.Getenv("SMARTPC_ADDRESS"); val != "" {
		c.Server.Address = val
	}
	if val := os.Getenv("SMARTPC_ALLOWED_ORIGIN"); val != "" {
		c.Server.AllowedOrigin = val
	}

	// AWS
	if val := os.Getenv("SMARTPC_AWS_REGION"); val != "" {
		c.AWS.Region = val
	}
	if val := os.Getenv("SMARTPC_AWS_ENDPOINT"); val != "" {
		c.AWS.Endpoint = val
	}
	if val := os.Getenv("SMARTPC_AWS_PATH_STYLE"); val != "" {
		c.AWS.UsePathStyle = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SMARTPC_AWS_ACCESS_KEY_ID"); val != "" {
		c.AWS.AccessKeyID = val
	}
	if val := os.Getenv("SMARTPC_AWS_SECRET_ACCESS_KEY"); val != "" {
		c.AWS.SecretAccessKey = val
	}

	// Storage: SMARTPC_BUCKETS=us-east-1=files-use1,eu-west-1=files-euw1
	if val := os.Getenv("SMARTPC_BUCKETS"); val != "" {
		buckets, err := parsePairs(val)
		if err != nil {
			return fmt.Errorf("SMARTPC_BUCKETS: %w", err)
		}
		if c.Storage.Buckets == nil {
			c.Storage.Buckets = make(map[string]string)
		}
		for region, bucket := range buckets {
			c.Storage.Buckets[region] = bucket
		}
	}

	// Stores
	if val := os.Getenv("SMARTPC_STORAGE_BACKEND"); val != "" {
		c.Storage.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("SMARTPC_STORAGE_TRANSFER_OPTIMIZATION"); val != "" {
		c.Storage.TransferOptimization = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SMARTPC_METADATA_TYPE"); val != "" {
		c.Metadata.Type = strings.ToLower(val)
	}
	if val := os.Getenv("SMARTPC_METADATA_DIR"); val != "" {
		c.Metadata.Directory = val
	}
	if val := os.Getenv("SMARTPC_INVENTORY_DSN"); val != "" {
		c.Inventory.DSN = val
	}

	// Compute
	if val := os.Getenv("SMARTPC_DEFAULT_QUOTA"); val != "" {
		quota, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("SMARTPC_DEFAULT_QUOTA: %w", err)
		}
		c.Compute.DefaultQuota = quota
	}
	if val := os.Getenv("SMARTPC_IDLE_TIMEOUT_MINUTES"); val != "" {
		if minutes, err := strconv.Atoi(val); err == nil {
			c.Compute.IdleTimeoutMinutes = minutes
		}
	}

	if val := os.Getenv("SMARTPC_IDENTITY_SECRET"); val != "" {
		c.Identity.Secret = val
	}

	if val := os.Getenv("SMARTPC_METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = strings.ToLower(val) == "true"
	}

	return nil
}

func parsePairs(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration using struct tags and custom rules.
func (c *Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	return c.validateCustomRules()
}

// validateCustomRules performs custom validation beyond struct tags.
func (c *Configuration) validateCustomRules() error {
	allowed := make(map[string]bool, len(c.Compute.AllowedInstanceTypes))
	for _, t := range c.Compute.AllowedInstanceTypes {
		allowed[t] = true
	}
	if !allowed[c.Compute.DefaultInstanceType] {
		return fmt.Errorf("compute.default_instance_type %q is not in allowed_instance_types",
			c.Compute.DefaultInstanceType)
	}

	for region, bucket := range c.Storage.Buckets {
		if region == "" || bucket == "" {
			return fmt.Errorf("storage.buckets: empty region or bucket name")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

// AllowsInstanceType reports whether instanceType is in the compatibility list.
func (c *ComputeConfig) AllowsInstanceType(instanceType string) bool {
	for _, t := range c.AllowedInstanceTypes {
		if t == instanceType {
			return true
		}
	}
	return false
}

// AllowsStorage reports whether size is offered for configID. A configuration
// without an explicit list accepts any positive size.
func (c *ComputeConfig) AllowsStorage(configID string, size int) bool {
	if size <= 0 {
		return false
	}
	options, ok := c.StorageOptions[configID]
	if !ok {
		return true
	}
	for _, s := range options {
		if s == size {
			return true
		}
	}
	return false
}
