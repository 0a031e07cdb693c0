// Command smartpcd serves the storage emulator and the instance orchestrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartpc/smartpc/internal/compute/ec2"
	"github.com/smartpc/smartpc/internal/config"
	"github.com/smartpc/smartpc/internal/identity"
	"github.com/smartpc/smartpc/internal/instance"
	"github.com/smartpc/smartpc/internal/inventory"
	metabadger "github.com/smartpc/smartpc/internal/metadata/badger"
	metamem "github.com/smartpc/smartpc/internal/metadata/memory"
	"github.com/smartpc/smartpc/internal/metrics"
	objmem "github.com/smartpc/smartpc/internal/storage/memory"
	"github.com/smartpc/smartpc/internal/storage/s3"
	"github.com/smartpc/smartpc/internal/vfs"
	"github.com/smartpc/smartpc/pkg/api"
	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/types"
	"github.com/smartpc/smartpc/pkg/utils"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML configuration file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	if err := run(*configFile, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "smartpcd: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configFile, envFile string) (*config.Configuration, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := config.NewDefault()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(configFile, envFile string) error {
	cfg, err := loadConfig(configFile, envFile)
	if err != nil {
		return err
	}

	logger, closer, err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFormat, cfg.Global.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Path:      cfg.Monitoring.Metrics.Path,
		Namespace: cfg.Monitoring.Metrics.Namespace,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics collector: %w", err)
	}
	tracker := health.NewTracker(cfg.Monitoring.Health)

	objects, err := openObjectStore(ctx, cfg, collector, tracker)
	if err != nil {
		return err
	}

	files, closeFiles, err := openFileStore(cfg, collector, tracker)
	if err != nil {
		return err
	}
	defer closeFiles()

	for region, name := range cfg.Storage.Buckets {
		if err := files.PutBucket(ctx, types.Bucket{Name: name, Region: region}); err != nil {
			return fmt.Errorf("failed to register bucket %s for %s: %w", name, region, err)
		}
	}

	inv, err := inventory.Open(inventory.Config{
		DSN:          cfg.Inventory.DSN,
		LogSQL:       cfg.Inventory.LogSQL,
		DefaultQuota: cfg.Compute.DefaultQuota,
		Retry:        cfg.Retry,
	}, collector, tracker)
	if err != nil {
		return err
	}
	defer inv.Close()

	// Subnets are registered with a zero delta so existing counts survive restarts.
	for region, subnets := range cfg.Compute.Subnets {
		for _, id := range subnets {
			if err := inv.AdjustSubnet(ctx, region, id, 0); err != nil {
				return fmt.Errorf("failed to register subnet %s: %w", id, err)
			}
		}
	}

	compute, err := ec2.NewProvider(ctx, ec2.Config{
		Region:           cfg.AWS.Region,
		Endpoint:         cfg.AWS.Endpoint,
		AccessKeyID:      cfg.AWS.AccessKeyID,
		SecretAccessKey:  cfg.AWS.SecretAccessKey,
		SecurityGroupIDs: cfg.Compute.SecurityGroupIDs,
		Retry:            cfg.Retry,
	}, collector, tracker)
	if err != nil {
		return fmt.Errorf("failed to create compute provider: %w", err)
	}

	svc := vfs.NewService(objects, files, vfs.Options{
		UploadURLTTL:   cfg.Storage.UploadURLTTL,
		PreviewURLTTL:  cfg.Storage.PreviewURLTTL,
		DownloadURLTTL: cfg.Storage.DownloadURLTTL,
		ArchiveURLTTL:  cfg.Storage.ArchiveURLTTL,
		RenameLimit:    cfg.Storage.RenameLimit,
		BucketCacheTTL: cfg.Storage.BucketCacheTTL,
	}, logger)

	orch := instance.NewOrchestrator(compute, inv, instance.Policy{
		ComputeConfig: cfg.Compute,
		DefaultRegion: cfg.AWS.Region,
	}, collector, logger)

	server := api.NewServer(api.ServerConfig{
		Address:       cfg.Server.Address,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		EnableCORS:    cfg.Server.EnableCORS,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		MetricsPath:   cfg.Monitoring.Metrics.Path,
	}, api.Deps{
		Files:     svc,
		Instances: orch,
		Identity:  identity.NewDecoder(cfg.Identity.Secret),
		Health:    tracker,
		Metrics:   collector,
		Logger:    logger,
	})

	go tracker.StartHealthChecks(ctx, map[string]health.CheckFunc{
		inventory.Component: inv.Ping,
	})

	server.StartBackground()
	logger.Info("smartpcd started",
		"address", cfg.Server.Address,
		"storage", cfg.Storage.Backend,
		"metadata", cfg.Metadata.Type,
		"regions", len(cfg.Storage.Buckets))

	<-ctx.Done()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
		return err
	}
	logger.Info("smartpcd stopped")
	return nil
}

func openObjectStore(ctx context.Context, cfg *config.Configuration, collector *metrics.Collector, tracker *health.Tracker) (types.ObjectStore, error) {
	if cfg.Storage.Backend == "memory" {
		slog.Warn("Using the in-memory object store; uploaded data is lost on exit")
		return objmem.NewStore(), nil
	}

	s3cfg := s3.NewDefaultConfig()
	s3cfg.Region = cfg.AWS.Region
	s3cfg.Endpoint = cfg.AWS.Endpoint
	s3cfg.ForcePathStyle = cfg.AWS.UsePathStyle
	s3cfg.AccessKeyID = cfg.AWS.AccessKeyID
	s3cfg.SecretAccessKey = cfg.AWS.SecretAccessKey
	s3cfg.EnableTransferOptimization = cfg.Storage.TransferOptimization
	s3cfg.TransferMinSize = cfg.Storage.TransferMinSize
	s3cfg.TransferConcurrency = cfg.Storage.TransferConcurrency
	s3cfg.Retry = cfg.Retry

	store, err := s3.NewStore(ctx, s3cfg, collector, tracker)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}
	return store, nil
}

func openFileStore(cfg *config.Configuration, collector *metrics.Collector, tracker *health.Tracker) (types.FileStore, func(), error) {
	if cfg.Metadata.Type != "badger" {
		return metamem.NewStore(), func() {}, nil
	}

	store, err := metabadger.NewStore(metabadger.Config{
		Directory: cfg.Metadata.Directory,
		Retry:     cfg.Retry,
	}, collector, tracker)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close metadata store", "error", err)
		}
	}, nil
}
