// Package editor keeps local, editable background state in step with the
// stored record.
//
// An Editor starts Uninitialized, is seeded once by Load and then stays in
// Editing for its lifetime. Mutations always update local state at once so
// previews are instant; they are written back only after Load completed, so
// defaults can never clobber the stored record. Writes are debounced and
// serialized: one in flight at a time, each carrying the full latest state.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/preview"
	"github.com/vesaa/backdrop/internal/store/common"
)

// Bridge is the record read/write surface the editor needs.
// store.Bridge and client.Client both satisfy it.
type Bridge interface {
	ReadConfig(ctx context.Context) (*models.BackgroundConfig, error)
	WriteConfig(ctx context.Context, cfg models.BackgroundConfig) error
}

// State of the editor lifecycle.
type State int

const (
	Uninitialized State = iota
	Loaded
	Editing
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loaded:
		return "loaded"
	case Editing:
		return "editing"
	}
	return "unknown"
}

// DefaultDebounce is used when no WithDebounce option is given.
const DefaultDebounce = 250 * time.Millisecond

// ErrAlreadyLoaded is returned by a second Load call.
var ErrAlreadyLoaded = errors.New("editor already loaded")

// Option configures an Editor.
type Option func(*Editor)

// WithDebounce sets the quiet period before a write. Zero or negative
// writes synchronously on every mutation.
func WithDebounce(d time.Duration) Option {
	return func(e *Editor) { e.debounce = d }
}

// WithWriteErrorHandler is called with every failed write.
func WithWriteErrorHandler(fn func(error)) Option {
	return func(e *Editor) { e.onWriteErr = fn }
}

// WithWriteTimeout bounds each background write. Zero leaves it to the transport.
func WithWriteTimeout(d time.Duration) Option {
	return func(e *Editor) { e.writeTimeout = d }
}

// Editor mirrors the stored record locally.
type Editor struct {
	bridge       Bridge
	logger       log.Logger
	debounce     time.Duration
	writeTimeout time.Duration
	onWriteErr   func(error)

	mu      sync.Mutex
	state   State
	loading bool
	cfg     models.BackgroundConfig
	dirty   bool
	timer   *time.Timer
	lastErr error
	writes  int

	// writeMu serializes WriteConfig calls so completions arrive in issue order.
	writeMu sync.Mutex
}

// New creates an Uninitialized editor showing the defaults.
func New(b Bridge, l log.Logger, opts ...Option) *Editor {
	e := &Editor{
		bridge:   b,
		logger:   log.With(l, "component", "editor"),
		debounce: DefaultDebounce,
		state:    Uninitialized,
		cfg:      models.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads the record once and seeds local state from it. An absent
// record or a failed read leaves the defaults in place; the read error (not
// an absent record) is returned so it can be shown, but the editor is
// Loaded either way.
func (e *Editor) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.state != Uninitialized || e.loading {
		e.mu.Unlock()
		return ErrAlreadyLoaded
	}
	e.loading = true
	e.mu.Unlock()

	stored, err := e.bridge.ReadConfig(ctx)

	seed := models.Default()
	var loadErr error
	switch {
	case err == nil && stored != nil:
		seed = stored.Normalize()
	case err == nil, errors.Is(err, common.ErrNotFound):
		level.Info(e.logger).Log("msg", "no stored record, using defaults")
	default:
		level.Warn(e.logger).Log("msg", "load failed, using defaults", "err", err)
		loadErr = err
	}

	e.mu.Lock()
	// Anything applied before the load finished is superseded by the record.
	e.cfg = seed
	e.state = Loaded
	e.loading = false
	e.dirty = false
	e.mu.Unlock()

	return loadErr
}

// State returns the current lifecycle state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Config returns a copy of the local state.
func (e *Editor) Config() models.BackgroundConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// Preview derives the presentation of the local state.
func (e *Editor) Preview() preview.Style {
	return preview.Derive(e.Config())
}

// Err returns the error of the most recent write, or nil once a write succeeds.
func (e *Editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Writes is the number of WriteConfig calls issued so far.
func (e *Editor) Writes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes
}

// Pending reports whether a local change has not been written yet.
func (e *Editor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// ── Mutators ──────────────────────────────────────────────────────────────────

// SetBgType switches between colour, gradient and image presentation.
func (e *Editor) SetBgType(t models.BgType) {
	e.mutate(func(c *models.BackgroundConfig) { c.BgType = t })
}

// SetColor sets the primary colour (first gradient stop).
func (e *Editor) SetColor(hex string) {
	e.mutate(func(c *models.BackgroundConfig) { c.Colors.Color = hex })
}

// SetMidTier sets the middle gradient stop.
func (e *Editor) SetMidTier(hex string) {
	e.mutate(func(c *models.BackgroundConfig) { c.Colors.MidTier = hex })
}

// SetEndTier sets the last gradient stop.
func (e *Editor) SetEndTier(hex string) {
	e.mutate(func(c *models.BackgroundConfig) { c.Colors.EndTier = hex })
}

// SetImage sets or clears (nil) the image URL.
func (e *Editor) SetImage(url *string) {
	e.mutate(func(c *models.BackgroundConfig) {
		if url == nil {
			c.Colors.Image = nil
			return
		}
		u := *url
		c.Colors.Image = &u
	})
}

// SetAnimation toggles the gradient animation.
func (e *Editor) SetAnimation(on bool) {
	e.mutate(func(c *models.BackgroundConfig) { c.AnimationEffect = on })
}

// Replace swaps the whole local state.
func (e *Editor) Replace(cfg models.BackgroundConfig) {
	next := cfg.Clone()
	e.mutate(func(c *models.BackgroundConfig) { *c = next })
}

func (e *Editor) mutate(fn func(*models.BackgroundConfig)) {
	e.mu.Lock()
	fn(&e.cfg)

	if e.state == Uninitialized {
		e.mu.Unlock()
		return
	}
	e.state = Editing
	e.dirty = true

	immediate := e.debounce <= 0
	if !immediate {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.timer = time.AfterFunc(e.debounce, e.flushInBackground)
	}
	e.mu.Unlock()

	if immediate {
		_ = e.Flush(context.Background())
	}
}

func (e *Editor) flushInBackground() {
	ctx := context.Background()
	if e.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.writeTimeout)
		defer cancel()
	}
	_ = e.Flush(ctx)
}

// Flush writes pending local state now and returns the write error, if
// any. It is a no-op when nothing is pending.
func (e *Editor) Flush(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if !e.dirty {
		e.mu.Unlock()
		return nil
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	snapshot := e.cfg.Clone()
	e.dirty = false
	e.writes++
	e.mu.Unlock()

	err := e.bridge.WriteConfig(ctx, snapshot)

	e.mu.Lock()
	e.lastErr = err
	if err != nil {
		// Keep it pending so the next mutation or Flush writes again.
		e.dirty = true
	}
	e.mu.Unlock()

	if err != nil {
		level.Error(e.logger).Log("msg", "write failed", "err", err)
		if e.onWriteErr != nil {
			e.onWriteErr(err)
		}
		return err
	}
	level.Debug(e.logger).Log("msg", "state written", "bgType", snapshot.BgType)
	return nil
}

// Close stops the debounce timer and writes anything still pending.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()
	return e.Flush(ctx)
}
