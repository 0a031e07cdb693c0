package s3

import (
	"github.com/smartpc/smartpc/internal/cloud"
	"github.com/smartpc/smartpc/pkg/retry"
)

// Config represents S3 object store configuration
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Transfer optimization sends server-side uploads of at least
	// TransferMinSize bytes through the CargoShip transporter, falling back
	// to a plain PutObject when it fails.
	EnableTransferOptimization bool  `yaml:"enable_transfer_optimization"`
	TransferMinSize            int64 `yaml:"transfer_min_size"`
	TransferConcurrency        int   `yaml:"transfer_concurrency"`

	Retry retry.Config `yaml:"retry"`
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Region:              "us-east-1",
		TransferMinSize:     5 * 1024 * 1024,
		TransferConcurrency: 4,
		Retry:               retry.DefaultConfig(),
	}
}

func (c *Config) settings() cloud.Settings {
	return cloud.Settings{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		UsePathStyle:    c.ForcePathStyle,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// useTransporter reports whether a payload of size bytes takes the
// optimized upload path.
func (c *Config) useTransporter(size int64) bool {
	return c.EnableTransferOptimization && size >= c.TransferMinSize
}
