// Package cloud holds the AWS SDK plumbing shared by the storage and compute
// adapters: configuration loading and error classification.
package cloud

import (
	"context"
	stderr "errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"

	"github.com/smartpc/smartpc/pkg/errors"
)

// Settings selects region, endpoint and credentials for the SDK.
type Settings struct {
	Region          string
	Endpoint        string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// LoadConfig builds an aws.Config. Static credentials are used when both keys
// are set; otherwise the default provider chain applies. SDK-level retries are
// disabled because the adapters retry through pkg/retry.
func LoadConfig(ctx context.Context, s Settings) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s.Region),
		config.WithRetryMaxAttempts(1),
	}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

var throttleCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestThrottled":                       true,
	"RequestThrottledException":              true,
	"TooManyRequestsException":               true,
	"SlowDown":                               true,
	"RequestLimitExceeded":                   true,
	"ProvisionedThroughputExceededException": true,
}

// Classify converts an SDK error into a structured error. Throttling and
// server-side failures become retryable; everything else is a plain
// dependency failure carrying the raw SDK text.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if stderr.Is(err, context.Canceled) || stderr.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := errors.As(err); ok {
		return err
	}

	var apiErr smithy.APIError
	if stderr.As(err, &apiErr) && throttleCodes[apiErr.ErrorCode()] {
		return errors.NewError(errors.ErrCodeDependencyThrottled, "AWS Error").
			WithOperation(op).
			WithCause(err)
	}

	var respErr *awshttp.ResponseError
	if stderr.As(err, &respErr) {
		switch status := respErr.HTTPStatusCode(); {
		case status == 429:
			return errors.NewError(errors.ErrCodeDependencyThrottled, "AWS Error").
				WithOperation(op).
				WithCause(err)
		case status >= 500:
			return errors.NewError(errors.ErrCodeDependencyUnavailable, "AWS Error").
				WithOperation(op).
				WithCause(err)
		}
	}

	var netErr net.Error
	if stderr.As(err, &netErr) || strings.Contains(err.Error(), "connection reset") {
		return errors.NewError(errors.ErrCodeDependencyUnavailable, "AWS Error").
			WithOperation(op).
			WithCause(err)
	}

	return errors.Dependency(op, err)
}

// APICode returns the service error code of err, or "".
func APICode(err error) string {
	var apiErr smithy.APIError
	if stderr.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsErrorType checks if an error is of a specific type
func IsErrorType[T error](err error) bool {
	var target T
	return stderr.As(err, &target)
}
