// Package store is the bridge between BackgroundConfig values and the single
// record kept in a remote document store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/store/backend"
	"github.com/vesaa/backdrop/internal/store/common"
)

// ConfigPath is the well-known location of the background record.
const ConfigPath = "/backgroundConfig"

// ErrNotFound is returned by ReadConfig when nothing was ever written.
var ErrNotFound = common.ErrNotFound

// Bridge reads and writes the background record. It keeps no state between
// calls: one call, one round trip.
type Bridge struct {
	logger  log.Logger
	backend backend.Backend
	tracer  trace.Tracer
}

// New creates a Bridge over b.
func New(l log.Logger, b backend.Backend) *Bridge {
	return &Bridge{
		logger:  log.With(l, "component", "bridge"),
		backend: b,
		tracer:  otel.Tracer("backdrop/store"),
	}
}

// ReadConfig fetches the record. It returns ErrNotFound when the record is
// absent and propagates any transport or authorization error unchanged.
// Stored values are not validated.
func (b *Bridge) ReadConfig(ctx context.Context) (*models.BackgroundConfig, error) {
	ctx, span := b.tracer.Start(ctx, "store.ReadConfig",
		trace.WithAttributes(attribute.String("store.path", ConfigPath)))
	defer span.End()

	raw, err := b.backend.Get(ctx, ConfigPath)
	if errors.Is(err, common.ErrNotFound) {
		span.SetAttributes(attribute.Bool("store.found", false))
		level.Debug(b.logger).Log("msg", "record absent", "path", ConfigPath)
		return nil, fmt.Errorf("read %s: %w", ConfigPath, ErrNotFound)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, fmt.Errorf("read %s: %w", ConfigPath, err)
	}

	var cfg models.BackgroundConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, fmt.Errorf("decode %s: %w", ConfigPath, err)
	}
	span.SetAttributes(attribute.Bool("store.found", true))
	level.Debug(b.logger).Log("msg", "record read", "path", ConfigPath, "bgType", cfg.BgType)
	return &cfg, nil
}

// WriteConfig overwrites the whole record with cfg. There is no merge and no
// concurrency check: the last write to reach the store wins.
func (b *Bridge) WriteConfig(ctx context.Context, cfg models.BackgroundConfig) error {
	ctx, span := b.tracer.Start(ctx, "store.WriteConfig",
		trace.WithAttributes(attribute.String("store.path", ConfigPath)))
	defer span.End()

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ConfigPath, err)
	}
	if err := b.backend.Put(ctx, ConfigPath, raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write %s: %w", ConfigPath, err)
	}
	level.Debug(b.logger).Log("msg", "record written", "path", ConfigPath, "bytes", len(raw))
	return nil
}
