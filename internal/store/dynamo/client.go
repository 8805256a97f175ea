package dynamo

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cenkalti/backoff/v5"

	"github.com/laiskytech/converse-gateway/internal/config"
)

// Store is the production internal/store.Store implementation, backed by
// a single DynamoDB client shared across the five tables named in
// SPEC_FULL.md §5.
type Store struct {
	client *dynamodb.Client
}

// New builds a Store from process configuration, mirroring the teacher's
// AWS client construction in relay/adaptor/aws/adaptor.go (static
// credentials when configured, default chain otherwise).
func New(ctx context.Context) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.AWSRegion),
	}
	if config.AWSAccessKeyID != "" && config.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AWSAccessKeyID, config.AWSSecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if config.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(config.DynamoEndpoint)
		}
	})

	return &Store{client: client}, nil
}

// withRetry wraps a DynamoDB operation with the exponential-backoff policy
// spec.md §5 mandates for persistence: base 50ms, factor 2, max 1s, at
// most 3 retries, applied only to the transient error classes (throttling,
// 5xx, network) that isTransient recognizes.
func withRetry(ctx context.Context, op func() error) error {
	ctx, cancel := context.WithTimeout(ctx, config.PersistenceTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		if !isTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(4))

	return err
}
