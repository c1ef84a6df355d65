package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	appconfig "fximport/config"
	"fximport/logger"
)

// S3Store serves blobs from an S3 bucket. Requests pass through a shared
// rate limiter so a backtest touching many subscriptions cannot hammer the
// bucket.
type S3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	limiter *rate.Limiter
	log     *logger.Log
}

// NewS3Store creates an S3-backed blob store from configuration. Static
// credentials are optional; without them the default AWS chain applies.
func NewS3Store(cfg *appconfig.Config) (*S3Store, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_store").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	rps := cfg.Storage.S3.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Storage.S3.BurstSize
	if burst <= 0 {
		burst = 1
	}

	log.WithComponent("s3_store").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("s3 store initialized")

	return &S3Store{
		client:  client,
		bucket:  cfg.Storage.S3.Bucket,
		prefix:  cfg.Storage.S3.Prefix,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}, nil
}

func (s *S3Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Get downloads a blob, returning ErrNotFound for missing keys.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get %s from bucket %s: %w", key, s.bucket, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", key, err)
	}

	logger.IncrementStoreRead(len(data))
	s.log.WithComponent("s3_store").WithFields(logger.Fields{
		"key":  key,
		"size": len(data),
	}).Debug("blob downloaded")
	return data, nil
}

// Put uploads a blob under the given key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.fullKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("put %s to bucket %s: %w", key, s.bucket, err)
	}

	logger.IncrementStoreWrite(int64(len(data)))
	s.log.WithComponent("s3_store").WithFields(logger.Fields{
		"key":  key,
		"size": len(data),
	}).Info("blob uploaded")
	return nil
}

// Exists reports whether a blob is present without downloading it.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", key, err)
	}
	return true, nil
}
