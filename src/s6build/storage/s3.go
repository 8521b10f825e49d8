package storage

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/eebbk/s6build/src/common/errors"
)

// S3Config configures the S3-compatible archive backend.
type S3Config struct {
	// Endpoint is the storage endpoint URL (e.g. "http://minio:9000").
	// Empty selects the AWS default resolution.
	Endpoint string

	// Region is the signing region.
	Region string

	// Bucket receives the archived firmware images.
	Bucket string

	// AccessKeyID and SecretAccessKey are the static credentials.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle selects path-style addressing, which most
	// self-hosted S3 implementations require.
	UsePathStyle bool
}

// S3Backend archives firmware images into an S3-compatible bucket.
type S3Backend struct {
	client *s3.Client
	config S3Config
}

// NewS3 creates an S3 backend for the configured endpoint.
func NewS3(cfg S3Config) (*S3Backend, error) {
	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					SigningRegion:     cfg.Region,
					HostnameImmutable: true,
				}, nil
			},
		)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{
		client: client,
		config: cfg,
	}, nil
}

// Prepare ensures the archive bucket exists, creating it on first use.
func (b *S3Backend) Prepare(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.config.Bucket),
	})
	if err == nil {
		return nil
	}

	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.config.Bucket),
	})
	if err != nil {
		return errors.ErrStorageUnavailable.WithMessagef("cannot create archive bucket %s", b.config.Bucket).WithCause(err)
	}
	return nil
}

// Store uploads one object under the archive bucket.
func (b *S3Backend) Store(ctx context.Context, key string, reader io.Reader, size int64) error {
	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".xz") {
		contentType = "application/x-xz"
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.config.Bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return errors.ErrUploadFailed.WithMessagef("upload failed for %s", key).WithCause(err)
	}
	return nil
}

// List returns the archived objects under the given key prefix.
func (b *S3Backend) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.config.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.ErrStorageUnavailable.WithMessagef("cannot list archive bucket %s", b.config.Bucket).WithCause(err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return objects, nil
}

// Type returns the storage backend type.
func (b *S3Backend) Type() string {
	return "s3"
}

// Location returns the endpoint and bucket archives land in.
func (b *S3Backend) Location() string {
	if b.config.Endpoint == "" {
		return "s3://" + b.config.Bucket
	}
	return b.config.Endpoint + "/" + b.config.Bucket
}
