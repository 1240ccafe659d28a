// Package backend selects the document store that holds the background record.
package backend

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vesaa/backdrop/internal/config"
	"github.com/vesaa/backdrop/internal/store/backend/azure"
	"github.com/vesaa/backdrop/internal/store/backend/gcs"
	"github.com/vesaa/backdrop/internal/store/backend/memory"
	"github.com/vesaa/backdrop/internal/store/backend/rtdb"
	"github.com/vesaa/backdrop/internal/store/backend/s3"
	"github.com/vesaa/backdrop/internal/store/backend/sqlite"
)

// Supported drivers.
const (
	SQLite = "sqlite"
	RTDB   = "rtdb"
	S3     = "s3"
	GCS    = "gcs"
	Azure  = "azure"
	Memory = "memory"
)

// Backend is a remote document store addressed by path.
// Every call is exactly one round trip; nothing is cached or retried.
type Backend interface {
	// Get returns the document at p, or common.ErrNotFound.
	Get(ctx context.Context, p string) ([]byte, error)
	// Put replaces the document at p.
	Put(ctx context.Context, p string, body []byte) error
}

// FromConfig creates the backend named by cfg.StoreDriver.
func FromConfig(ctx context.Context, l log.Logger, cfg *config.Config) (Backend, error) {
	l = log.With(l, "backend", cfg.StoreDriver)

	var (
		b   Backend
		err error
	)
	switch cfg.StoreDriver {
	case SQLite, "":
		b, err = sqlite.New(l, sqlite.Config{Path: cfg.SQLitePath})
	case RTDB:
		b, err = rtdb.New(ctx, l, rtdb.Config{
			URL:             cfg.RTDBURL,
			Auth:            cfg.RTDBAuth,
			CredentialsFile: cfg.RTDBCredentialsFile,
		})
	case S3:
		b, err = s3.New(ctx, l, s3.Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.StorePrefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			Key:       cfg.S3AccessKey,
			Secret:    cfg.S3SecretKey,
		})
	case GCS:
		b, err = gcs.New(ctx, l, gcs.Config{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.StorePrefix,
			CredentialsFile: cfg.GCSCredentialsFile,
			Endpoint:        cfg.GCSEndpoint,
		})
	case Azure:
		b, err = azure.New(l, azure.Config{
			AccountName:   cfg.AzureAccountName,
			AccountKey:    cfg.AzureAccountKey,
			ContainerName: cfg.AzureContainer,
			Prefix:        cfg.StorePrefix,
			ServiceURL:    cfg.AzureServiceURL,
		})
	case Memory:
		level.Warn(l).Log("msg", "using in-memory store, the record is lost on exit")
		b = memory.New()
	default:
		return nil, fmt.Errorf("unsupported store_driver %q (use sqlite, rtdb, s3, gcs, azure or memory)", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s backend: %w", cfg.StoreDriver, err)
	}
	return b, nil
}
