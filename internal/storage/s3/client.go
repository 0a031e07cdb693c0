package s3

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"

	"github.com/smartpc/smartpc/internal/cloud"
)

// regionalClient pairs an S3 client with its presigner. Presigned URLs must be
// signed for the bucket's own region.
type regionalClient struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// ClientManager hands out one S3 client per region, created on first use.
type ClientManager struct {
	mu      sync.Mutex
	awsCfg  aws.Config
	config  *Config
	clients map[string]*regionalClient
	logger  *slog.Logger

	// transporters are keyed by region and bucket; a transporter is bound
	// to one bucket.
	transporters map[string]*cargoships3.Transporter
}

// NewClientManager loads the AWS configuration once for all regions.
func NewClientManager(ctx context.Context, cfg *Config, logger *slog.Logger) (*ClientManager, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := cloud.LoadConfig(ctx, cfg.settings())
	if err != nil {
		return nil, err
	}

	return &ClientManager{
		awsCfg:       awsCfg,
		config:       cfg,
		clients:      make(map[string]*regionalClient),
		logger:       logger,
		transporters: make(map[string]*cargoships3.Transporter),
	}, nil
}

// forRegion returns the client for region, or for the default region when empty.
func (cm *ClientManager) forRegion(region string) *regionalClient {
	if region == "" {
		region = cm.config.Region
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if rc, ok := cm.clients[region]; ok {
		return rc
	}

	client := s3.NewFromConfig(cm.awsCfg, func(o *s3.Options) {
		o.Region = region
		if cm.config.Endpoint != "" {
			o.BaseEndpoint = aws.String(cm.config.Endpoint)
		}
		if cm.config.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	rc := &regionalClient{client: client, presign: s3.NewPresignClient(client)}
	cm.clients[region] = rc
	cm.logger.Debug("S3 client created", "region", region)
	return rc
}

// transporter returns the optimized uploader for bucket, or nil when transfer
// optimization is disabled.
func (cm *ClientManager) transporter(region, bucket string) *cargoships3.Transporter {
	if !cm.config.EnableTransferOptimization {
		return nil
	}
	client := cm.forRegion(region).client

	cm.mu.Lock()
	defer cm.mu.Unlock()

	id := region + "|" + bucket
	if t, ok := cm.transporters[id]; ok {
		return t
	}
	t := cargoships3.NewTransporter(client, awsconfig.S3Config{
		Bucket:             bucket,
		StorageClass:       awsconfig.StorageClassStandard,
		MultipartThreshold: 32 * 1024 * 1024,
		MultipartChunkSize: 16 * 1024 * 1024,
		Concurrency:        cm.config.TransferConcurrency,
	})
	cm.transporters[id] = t
	cm.logger.Info("CargoShip transfer optimization enabled",
		"region", region,
		"bucket", bucket,
		"concurrency", cm.config.TransferConcurrency)
	return t
}

// HealthCheck verifies the bucket is reachable.
func (cm *ClientManager) HealthCheck(ctx context.Context, region, bucket string) error {
	_, err := cm.forRegion(region).client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return cloud.Classify("HeadBucket", err)
	}
	return nil
}
