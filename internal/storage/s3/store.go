package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"

	"github.com/smartpc/smartpc/internal/cloud"
	"github.com/smartpc/smartpc/internal/instrument"
	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/types"
)

// Component is the dependency name reported to metrics and health.
const Component = "object-store"

// Store implements types.ObjectStore on Amazon S3.
type Store struct {
	clients *ClientManager
	obs     *instrument.Observer
	logger  *slog.Logger
}

var _ types.ObjectStore = (*Store)(nil)

// NewStore creates an S3-backed object store.
func NewStore(ctx context.Context, cfg *Config, metrics types.MetricsCollector, tracker *health.Tracker) (*Store, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	logger := slog.Default().With("component", "s3-store")

	clients, err := NewClientManager(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Store{
		clients: clients,
		obs:     instrument.New(Component, cfg.Retry, metrics, tracker),
		logger:  logger,
	}, nil
}

// PutObject stores data under key. Large payloads go through the transfer
// transporter when enabled; a transporter failure falls back to the plain
// client for the rest of the call.
func (s *Store) PutObject(ctx context.Context, b types.Bucket, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	client := s.clients.forRegion(b.Region).client

	var transporter *cargoships3.Transporter
	if s.clients.config.useTransporter(int64(len(data))) {
		transporter = s.clients.transporter(b.Region, b.Name)
	}

	return s.obs.Sized(ctx, "PutObject", int64(len(data)), func(ctx context.Context) error {
		if transporter != nil {
			result, err := transporter.Upload(ctx, cargoships3.Archive{
				Key:          key,
				Reader:       bytes.NewReader(data),
				Size:         int64(len(data)),
				StorageClass: awsconfig.StorageClassStandard,
				Metadata:     map[string]string{"content-type": contentType},
			})
			if err == nil {
				s.logger.Debug("Optimized upload completed",
					"key", key,
					"size", len(data),
					"throughput", result.Throughput,
					"duration", result.Duration)
				return nil
			}
			s.logger.Warn("Optimized upload failed, falling back to standard S3", "key", key, "error", err)
			transporter = nil
		}

		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(b.Name),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentType),
		})
		return translateError(err, "PutObject", b.Name, key)
	})
}

// GetObject reads the whole object.
func (s *Store) GetObject(ctx context.Context, b types.Bucket, key string) ([]byte, error) {
	client := s.clients.forRegion(b.Region).client

	return instrument.Value(ctx, s.obs, "GetObject", func(ctx context.Context) ([]byte, error) {
		result, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.Name),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, translateError(err, "GetObject", b.Name, key)
		}
		defer result.Body.Close()

		data, err := io.ReadAll(result.Body)
		if err != nil {
			return nil, cloud.Classify("GetObject", fmt.Errorf("failed to read object body: %w", err))
		}
		return data, nil
	})
}

// HeadObject retrieves metadata about an object
func (s *Store) HeadObject(ctx context.Context, b types.Bucket, key string) (*types.ObjectInfo, error) {
	client := s.clients.forRegion(b.Region).client

	return instrument.Value(ctx, s.obs, "HeadObject", func(ctx context.Context) (*types.ObjectInfo, error) {
		result, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.Name),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, translateError(err, "HeadObject", b.Name, key)
		}

		return &types.ObjectInfo{
			Key:          key,
			Size:         aws.ToInt64(result.ContentLength),
			LastModified: aws.ToTime(result.LastModified),
			ETag:         aws.ToString(result.ETag),
			ContentType:  aws.ToString(result.ContentType),
		}, nil
	})
}

// DeleteObject removes an object. S3 reports success for missing keys.
func (s *Store) DeleteObject(ctx context.Context, b types.Bucket, key string) error {
	client := s.clients.forRegion(b.Region).client

	return s.obs.Do(ctx, "DeleteObject", func(ctx context.Context) error {
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.Name),
			Key:    aws.String(key),
		})
		return translateError(err, "DeleteObject", b.Name, key)
	})
}

// CopyObject copies srcKey to dstKey within the bucket.
func (s *Store) CopyObject(ctx context.Context, b types.Bucket, srcKey, dstKey string) error {
	client := s.clients.forRegion(b.Region).client

	return s.obs.Do(ctx, "CopyObject", func(ctx context.Context) error {
		_, err := client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(b.Name),
			Key:        aws.String(dstKey),
			CopySource: aws.String(url.PathEscape(b.Name + "/" + srcKey)),
		})
		return translateError(err, "CopyObject", b.Name, srcKey)
	})
}

// ListObjects returns every object under prefix, following continuation tokens.
func (s *Store) ListObjects(ctx context.Context, b types.Bucket, prefix string) ([]types.ObjectInfo, error) {
	client := s.clients.forRegion(b.Region).client

	return instrument.Value(ctx, s.obs, "ListObjectsV2", func(ctx context.Context) ([]types.ObjectInfo, error) {
		paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
			Bucket: aws.String(b.Name),
			Prefix: aws.String(prefix),
		})

		var objects []types.ObjectInfo
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, translateError(err, "ListObjectsV2", b.Name, prefix)
			}
			for _, obj := range page.Contents {
				objects = append(objects, types.ObjectInfo{
					Key:          aws.ToString(obj.Key),
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified),
					ETag:         aws.ToString(obj.ETag),
				})
			}
		}
		return objects, nil
	})
}

// PresignPut returns a write credential bound to contentType.
func (s *Store) PresignPut(ctx context.Context, b types.Bucket, key, contentType string, ttl time.Duration) (string, error) {
	presigner := s.clients.forRegion(b.Region).presign

	req, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.Name),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", cloud.Classify("PresignPutObject", err)
	}
	return req.URL, nil
}

// PresignGet returns a read credential, optionally overriding response headers.
func (s *Store) PresignGet(ctx context.Context, b types.Bucket, key string, opts types.PresignGetOptions) (string, error) {
	presigner := s.clients.forRegion(b.Region).presign

	input := &s3.GetObjectInput{
		Bucket: aws.String(b.Name),
		Key:    aws.String(key),
	}
	if opts.ContentType != "" {
		input.ResponseContentType = aws.String(opts.ContentType)
	}
	if opts.ContentDisposition != "" {
		input.ResponseContentDisposition = aws.String(opts.ContentDisposition)
	}

	req, err := presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(opts.TTL))
	if err != nil {
		return "", cloud.Classify("PresignGetObject", err)
	}
	return req.URL, nil
}

// HealthCheck heads the bucket.
func (s *Store) HealthCheck(ctx context.Context, b types.Bucket) error {
	return s.clients.HealthCheck(ctx, b.Region, b.Name)
}

func translateError(err error, operation, bucket, key string) error {
	if err == nil {
		return nil
	}
	switch {
	case cloud.IsErrorType[*s3types.NoSuchKey](err), cloud.IsErrorType[*s3types.NotFound](err):
		return errors.NotFound(errors.ErrCodeObjectNotFound, fmt.Sprintf("object not found: %s", key)).
			WithOperation(operation).
			WithCause(err)
	case cloud.IsErrorType[*s3types.NoSuchBucket](err):
		return errors.NotFound(errors.ErrCodeBucketNotFound, fmt.Sprintf("bucket not found: %s", bucket)).
			WithOperation(operation).
			WithCause(err)
	default:
		return cloud.Classify(operation, err)
	}
}
