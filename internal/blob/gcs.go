package blob

import (
	"context"
	"errors"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
)

// GCSObjectOpener opens an object for reading.
type GCSObjectOpener interface {
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// GCSClientOpener adapts a storage.Client.
type GCSClientOpener struct {
	Client *storage.Client
}

func (o GCSClientOpener) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := o.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GCSBackend serves gs://bucket/object references.
type GCSBackend struct {
	opener GCSObjectOpener
}

// NewGCSClient uses application default credentials.
func NewGCSClient(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx)
}

func NewGCSBackend(opener GCSObjectOpener) *GCSBackend {
	return &GCSBackend{opener: opener}
}

func (b *GCSBackend) Scheme() string {
	return "gs"
}

func (b *GCSBackend) Open(ctx context.Context, ref *url.URL) (io.ReadCloser, error) {
	bucket, object, err := bucketAndKey(ref)
	if err != nil {
		return nil, newFetchError(CategoryBadData, "gs", "invalid reference", err)
	}
	r, err := b.opener.Open(ctx, bucket, object)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, newFetchError(CategoryNotFound, "gs", "object not found", err)
		}
		return nil, err
	}
	return r, nil
}

var _ Backend = (*GCSBackend)(nil)
