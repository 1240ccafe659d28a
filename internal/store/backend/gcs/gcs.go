// Package gcs stores documents as JSON objects in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/api/option"

	"github.com/vesaa/backdrop/internal/store/common"
)

// Backend implements backend.Backend for Cloud Storage.
type Backend struct {
	logger log.Logger

	bucket *storage.BucketHandle
	prefix string
	client *storage.Client
}

// New creates a Cloud Storage backend.
func New(ctx context.Context, l log.Logger, c Config) (*Backend, error) {
	if c.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	switch {
	case c.Endpoint != "":
		opts = append(opts, option.WithEndpoint(c.Endpoint), option.WithoutAuthentication())
		level.Info(l).Log("msg", "using custom gcs endpoint without authentication", "endpoint", c.Endpoint)
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	default:
		level.Info(l).Log("msg", "no gcs credentials file provided, using application default credentials")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client initialization, %w", err)
	}

	return &Backend{
		logger: l,
		bucket: client.Bucket(c.Bucket),
		prefix: c.Prefix,
		client: client,
	}, nil
}

// Get reads the object for p.
func (b *Backend) Get(ctx context.Context, p string) ([]byte, error) {
	r, err := b.bucket.Object(common.ObjectKey(b.prefix, p)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get the object, %w", err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read the object, %w", err)
	}
	return body, nil
}

// Put writes body as the object for p.
func (b *Backend) Put(ctx context.Context, p string, body []byte) error {
	w := b.bucket.Object(common.ObjectKey(b.prefix, p)).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write the object, %w", err)
	}
	// The upload is only committed by Close.
	if err := w.Close(); err != nil {
		return fmt.Errorf("put the object, %w", err)
	}
	return nil
}

// Close releases the client.
func (b *Backend) Close() error {
	return b.client.Close()
}
