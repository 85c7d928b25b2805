package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config selects the bucket endpoint. Credentials come from the default
// AWS chain.
type S3Config struct {
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO.
	Endpoint     string
	UsePathStyle bool
}

// DefaultS3Config returns the region the manifest buckets live in.
func DefaultS3Config() S3Config {
	return S3Config{Region: "eu-west-1"}
}

// S3Storage reads manifests from one S3 bucket.
type S3Storage struct {
	client *s3.Client
	bucket string

	attempts int
	backoff  time.Duration
}

// NewS3Storage loads AWS configuration and returns storage over bucket.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3StorageWithClient(client, bucket), nil
}

// NewS3StorageWithClient wraps an existing client.
func NewS3StorageWithClient(client *s3.Client, bucket string) *S3Storage {
	return &S3Storage{
		client:   client,
		bucket:   bucket,
		attempts: 4,
		backoff:  100 * time.Millisecond,
	}
}

// Get reads the whole object at key.
func (s *S3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.retry(ctx, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return classify(err)
		}
		defer out.Body.Close()
		body, err = io.ReadAll(out.Body)
		return err
	})
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, ErrObjectNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: s3://%s/%s: %v", ErrGetFailed, s.bucket, key, err)
	}
}

// Exists reports whether key is present, using HEAD.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	err := s.retry(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return classify(err)
	})
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListObjects returns every key under prefix in ascending order.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: s3://%s/%s: %v", ErrListFailed, s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// classify maps the SDK's missing-key errors onto ErrObjectNotFound.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return ErrObjectNotFound
	}
	return err
}

// retry runs op up to s.attempts times, doubling the pause after each
// failure. ErrObjectNotFound is final.
func (s *S3Storage) retry(ctx context.Context, op func() error) error {
	pause := s.backoff
	var err error
	for i := 0; i < s.attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = op(); err == nil || errors.Is(err, ErrObjectNotFound) {
			return err
		}
		if i == s.attempts-1 {
			break
		}
		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		pause *= 2
	}
	return err
}
