package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrUpload wraps blob storage failures.
var ErrUpload = errors.New("upload failed")

// BlobStore is the object-storage capability used for note images. Paths are
// opaque identifiers assigned at upload time.
type BlobStore interface {
	Upload(ctx context.Context, data []byte) (string, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, paths []string) error
}

type GCSBlobStore struct {
	client *storage.Client
	bucket string
	log    *zap.SugaredLogger
}

func NewGCSBlobStore(ctx context.Context, log *zap.SugaredLogger) (*GCSBlobStore, error) {
	bucket := os.Getenv("GCS_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET_NAME environment variable not set")
	}

	var opts []option.ClientOption
	if creds := os.Getenv("GCS_CREDENTIALS_JSON"); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSBlobStore{
		client: client,
		bucket: bucket,
		log:    log.With("service", "GCSBlobStore"),
	}, nil
}

// Upload writes the bytes under a random object key and returns the key.
func (b *GCSBlobStore) Upload(ctx context.Context, data []byte) (string, error) {
	key := uuid.NewString() + ".jpg"
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("%w: write object %s: %v", ErrUpload, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: close object %s: %v", ErrUpload, key, err)
	}
	b.log.Debugw("uploaded object", "key", key, "bytes", len(data))
	return key, nil
}

func (b *GCSBlobStore) Download(ctx context.Context, path string) ([]byte, error) {
	r, err := b.client.Bucket(b.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", path, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Delete removes the given objects, tolerating already-missing ones.
func (b *GCSBlobStore) Delete(ctx context.Context, paths []string) error {
	var errs []error
	for _, path := range paths {
		err := b.client.Bucket(b.bucket).Object(path).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			b.log.Warnw("failed to delete object", "key", path, "error", err)
			errs = append(errs, fmt.Errorf("delete object %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func (b *GCSBlobStore) Close() error {
	return b.client.Close()
}

var _ BlobStore = (*GCSBlobStore)(nil)
