// Package s3 implements the storage provider on S3-compatible object stores.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/dropit/dropit/internal/logging"
	"github.com/dropit/dropit/internal/metrics"
	"github.com/dropit/dropit/internal/storage"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool

	// PublicBaseURL overrides the URL objects are served from.
	// Defaults to <Endpoint>/<Bucket>.
	PublicBaseURL string
}

// Backend implements storage.Provider using S3/MinIO.
type Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	baseURL string
}

// New creates a new S3 backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
			}, nil
		},
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	b := &Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}

	if err := b.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}

	return b, nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		_, createErr := b.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(b.bucket),
		})
		if createErr != nil {
			metrics.RecordStorageOperation("create_bucket", time.Since(start), false)
			return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, createErr)
		}
		metrics.RecordStorageOperation("create_bucket", time.Since(start), true)
		logging.Info("created bucket", zap.String("bucket", b.bucket))
	}
	return nil
}

// Upload stores body under key and returns the object's public URL.
func (b *Backend) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	start := time.Now()

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		metrics.RecordStorageOperation("put_object", time.Since(start), false)
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	metrics.RecordStorageOperation("put_object", time.Since(start), true)
	logging.Debug("put object", zap.String("key", key), zap.Int64("size", size))
	return b.PublicURL(key), nil
}

// Stat returns size and content type for a stored object.
func (b *Backend) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	start := time.Now()

	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordStorageOperation("head_object", time.Since(start), false)
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}

	metrics.RecordStorageOperation("head_object", time.Since(start), true)

	info := &storage.ObjectInfo{}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	return info, nil
}

// Delete removes a stored object.
func (b *Backend) Delete(ctx context.Context, key string) error {
	start := time.Now()

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordStorageOperation("delete_object", time.Since(start), false)
		return err
	}

	metrics.RecordStorageOperation("delete_object", time.Since(start), true)
	logging.Debug("delete object", zap.String("key", key))
	return nil
}

// PresignUpload returns a signed PUT credential for a direct client upload.
func (b *Backend) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*storage.UploadCredential, error) {
	start := time.Now()

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := b.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		metrics.RecordStorageOperation("presign_put", time.Since(start), false)
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}

	metrics.RecordStorageOperation("presign_put", time.Since(start), true)
	return &storage.UploadCredential{
		URL:       req.URL,
		Method:    req.Method,
		Key:       key,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// PublicURL returns the URL an object is served from.
func (b *Backend) PublicURL(key string) string {
	return b.baseURL + "/" + strings.TrimPrefix(key, "/")
}
