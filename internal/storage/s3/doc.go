/*
Package s3 provides the Amazon S3 object store used by the filesystem emulator.

Store implements types.ObjectStore. Every call names a types.Bucket carrying
its region, and the ClientManager keeps one client and presigner per region so
that presigned URLs are signed for the region the bucket lives in.

	┌──────────────────────────────┐
	│   Store (types.ObjectStore)  │
	└──────────────┬───────────────┘
	               │ instrument.Observer (retry, metrics, health)
	┌──────────────▼───────────────┐
	│ ClientManager (per region)   │
	│   *s3.Client, *PresignClient │
	└──────────────┬───────────────┘
	               │
	┌──────────────▼───────────────┐
	│          AWS S3              │
	└──────────────────────────────┘

# Errors

NoSuchKey and NotFound map to OBJECT_NOT_FOUND and NoSuchBucket maps to
BUCKET_NOT_FOUND. Throttling and 5xx responses become retryable dependency
errors and are retried by the observer; anything else surfaces as
DEPENDENCY_FAILED with the SDK message attached as the cause.

# Transfer optimization

With EnableTransferOptimization set, PutObject payloads of at least
TransferMinSize bytes (folder and share archives in practice) are sent through
a CargoShip transporter bound to the target bucket. If the transporter fails
the same call falls back to a plain PutObject.

# Local endpoints

Setting Endpoint and ForcePathStyle targets S3-compatible services such as
LocalStack or MinIO:

	cfg := s3.NewDefaultConfig()
	cfg.Endpoint = "http://localhost:4566"
	cfg.ForcePathStyle = true
	store, err := s3.NewStore(ctx, cfg, collector, tracker)
*/
package s3
