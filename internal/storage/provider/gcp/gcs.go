package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/emberlink/ember/internal/config"
	storagetypes "github.com/emberlink/ember/internal/storage/types"
	"google.golang.org/api/option"
)

type BucketHandleInterface interface {
	Object(name string) ObjectHandleInterface
}

type ObjectHandleInterface interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
	NewWriter(ctx context.Context) io.WriteCloser
	Delete(ctx context.Context) error
}

type bucketHandleWrapper struct {
	bucket *storage.BucketHandle
}

func (b *bucketHandleWrapper) Object(name string) ObjectHandleInterface {
	return &objectHandleWrapper{obj: b.bucket.Object(name)}
}

type objectHandleWrapper struct {
	obj *storage.ObjectHandle
}

func (o *objectHandleWrapper) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return o.obj.NewReader(ctx)
}

func (o *objectHandleWrapper) NewWriter(ctx context.Context) io.WriteCloser {
	return o.obj.NewWriter(ctx)
}

func (o *objectHandleWrapper) Delete(ctx context.Context) error {
	return o.obj.Delete(ctx)
}

// GCSStore holds blob ciphertext in a bucket. A bucket lifecycle rule
// spanning the maximum secret TTL reaps never-retrieved blobs.
type GCSStore struct {
	client *storage.Client
	bucket BucketHandleInterface
}

func NewGCSStore() (storagetypes.FileStore, error) {
	ctx := context.Background()
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: &bucketHandleWrapper{bucket: client.Bucket(config.GCSBucket)},
	}, nil
}

func (g *GCSStore) StoreBlob(ctx context.Context, id string, body io.Reader) error {
	writer := g.bucket.Object(id + ".enc").NewWriter(ctx)

	if _, err := io.Copy(writer, body); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write blob to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return nil
}

func (g *GCSStore) OpenBlob(ctx context.Context, id string) (io.ReadCloser, error) {
	reader, err := g.bucket.Object(id + ".enc").NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, storagetypes.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read blob from GCS: %w", err)
	}

	return reader, nil
}

func (g *GCSStore) DeleteBlob(ctx context.Context, id string) error {
	if err := g.bucket.Object(id + ".enc").Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return storagetypes.ErrNotFound
		}
		return fmt.Errorf("failed to delete blob from GCS: %w", err)
	}

	return nil
}
