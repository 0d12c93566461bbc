package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3GetObjectAPI is the slice of the S3 client the backend needs.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Backend serves s3://bucket/key references.
type S3Backend struct {
	client S3GetObjectAPI
}

// S3Config holds settings for the default S3 client.
type S3Config struct {
	Region   string
	Endpoint string // MinIO, LocalStack
}

// NewS3Client loads the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Backend(client S3GetObjectAPI) *S3Backend {
	return &S3Backend{client: client}
}

func (b *S3Backend) Scheme() string {
	return "s3"
}

func (b *S3Backend) Open(ctx context.Context, ref *url.URL) (io.ReadCloser, error) {
	bucket, key, err := bucketAndKey(ref)
	if err != nil {
		return nil, newFetchError(CategoryBadData, "s3", "invalid reference", err)
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, newFetchError(CategoryNotFound, "s3", "object not found", err)
		}
		return nil, err
	}
	return out.Body, nil
}

// bucketAndKey splits scheme://bucket/key references.
func bucketAndKey(ref *url.URL) (string, string, error) {
	key := strings.TrimPrefix(ref.Path, "/")
	if ref.Host == "" || key == "" {
		return "", "", fmt.Errorf("reference %q must name a bucket and an object", ref.String())
	}
	return ref.Host, key, nil
}

var _ Backend = (*S3Backend)(nil)
