package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/retry"
)

// S3API is the subset of the S3 client surface used by S3Store. Tests
// substitute a stub.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Config configures an S3Store.
type S3Config struct {
	// Bucket is the target bucket. Required.
	Bucket string `yaml:"bucket" json:"bucket"`

	// Prefix is prepended to every object key, scoping the store to a
	// directory-like subtree of the bucket.
	Prefix string `yaml:"prefix" json:"prefix"`

	// Region overrides the AWS region from the ambient configuration.
	Region string `yaml:"region" json:"region"`

	// Endpoint overrides the service endpoint, for S3-compatible object
	// stores and local test servers.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// AccessKey and SecretKey select static credentials. When empty the
	// ambient AWS credential chain is used.
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`

	// ForcePathStyle addresses the bucket in the URL path instead of the
	// hostname. Most S3-compatible servers require it.
	ForcePathStyle bool `yaml:"force_path_style" json:"force_path_style"`

	// Retry overrides the retry policy for store calls. Zero-valued
	// fields take retry defaults.
	Retry retry.Config `yaml:"retry" json:"retry"`
}

// S3Store is a Store backed by an S3 bucket. Reads, writes, and lists
// are retried with exponential backoff; a missing object is an absent
// key, not an error.
type S3Store struct {
	api     S3API
	bucket  string
	prefix  string
	retryer *retry.Retryer
	logger  *zap.SugaredLogger
}

// NewS3 builds an S3 client from the ambient AWS configuration plus the
// overrides in cfg and wraps it as a Store. A nil logger disables
// logging.
func NewS3(ctx context.Context, cfg *S3Config, logger *zap.SugaredLogger) (*S3Store, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "s3 store requires a bucket").
			WithComponent("s3store")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, "load aws configuration").
			WithComponent("s3store")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewS3WithClient(client, cfg, logger)
}

// NewS3WithClient wraps an existing client as a Store. Useful when the
// caller already manages S3 clients, and for tests.
func NewS3WithClient(client S3API, cfg *S3Config, logger *zap.SugaredLogger) (*S3Store, error) {
	if client == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "s3 store requires a client").
			WithComponent("s3store")
	}
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "s3 store requires a bucket").
			WithComponent("s3store")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	rcfg := cfg.Retry
	if rcfg.OnRetry == nil {
		rcfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Debugw("retrying s3 call",
				"attempt", attempt,
				"delay", delay,
				"error", err)
		}
	}

	return &S3Store{
		api:     client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		retryer: retry.New(rcfg),
		logger:  logger,
	}, nil
}

// GetItem fetches the object for key, or (nil, nil) when it does not
// exist.
func (s *S3Store) GetItem(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		if err != nil {
			var notFound *s3types.NoSuchKey
			if errors.As(err, &notFound) {
				data = nil
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeStorageRead, "s3 get failed").
				WithComponent("s3store").
				WithContext("key", key)
		}
		defer func() { _ = out.Body.Close() }()

		body, err := io.ReadAll(out.Body)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageRead, "read object body").
				WithComponent("s3store").
				WithContext("key", key)
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetItem uploads data as the object for key.
func (s *S3Store) SetItem(ctx context.Context, key string, data []byte) error {
	return s.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageWrite, "s3 put failed").
				WithComponent("s3store").
				WithContext("key", key)
		}
		return nil
	})
}

// RemoveItem deletes the object for key. S3 deletes are idempotent, so
// removing an absent key succeeds.
func (s *S3Store) RemoveItem(ctx context.Context, key string) error {
	return s.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageWrite, "s3 delete failed").
				WithComponent("s3store").
				WithContext("key", key)
		}
		return nil
	})
}

// Keys lists stored keys carrying prefix, paging through the bucket
// listing. Returned keys have the store's own object prefix stripped.
func (s *S3Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		// Restart pagination cleanly on retry.
		keys = keys[:0]
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(s.objectKey(prefix)),
		}
		for {
			out, err := s.api.ListObjectsV2(ctx, input)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeStorageList, "s3 list failed").
					WithComponent("s3store").
					WithContext("prefix", prefix)
			}
			for _, obj := range out.Contents {
				keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
			}
			if !aws.ToBool(out.IsTruncated) {
				return nil
			}
			input.ContinuationToken = out.NextContinuationToken
		}
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// HealthCheck heads the bucket. It is not retried; health probes are
// expected to poll.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConnectionFailed, "s3 bucket not reachable").
			WithComponent("s3store").
			WithContext("bucket", s.bucket)
	}
	return nil
}

// objectKey maps a store key to its object key within the bucket.
func (s *S3Store) objectKey(key string) string {
	return s.prefix + key
}
