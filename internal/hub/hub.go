// Package hub fans the current background record out to connected viewers.
// It carries one topic only; subscribers always end up with the latest value.
package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/store/common"
)

// Event is one published value.
type Event struct {
	ID          string                  `json:"id"`
	At          time.Time               `json:"at"`
	Config      models.BackgroundConfig `json:"config"`
	FromDefault bool                    `json:"fromDefault,omitempty"`
}

// Subscription receives events until Close is called.
type Subscription struct {
	ID string
	C  <-chan Event

	hub *Hub
	ch  chan Event
}

// Close unsubscribes; it is safe to call more than once.
func (s *Subscription) Close() { s.hub.unsubscribe(s.ID) }

// Hub is a single-topic broadcaster.
type Hub struct {
	logger log.Logger

	mu     sync.Mutex
	subs   map[string]chan Event
	latest *Event
	seq    uint64 // bumped on every publish
}

// New creates an empty hub.
func New(l log.Logger) *Hub {
	return &Hub{
		logger: log.With(l, "component", "hub"),
		subs:   make(map[string]chan Event),
	}
}

// Publish stamps cfg and delivers it to every subscriber. A subscriber that
// has not consumed the previous event gets it replaced by this one.
func (h *Hub) Publish(cfg models.BackgroundConfig) Event {
	return h.publish(cfg, false)
}

func (h *Hub) publish(cfg models.BackgroundConfig, fromDefault bool) Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.publishLocked(cfg, fromDefault)
}

func (h *Hub) publishLocked(cfg models.BackgroundConfig, fromDefault bool) Event {
	ev := Event{ID: uuid.NewString(), At: time.Now().UTC(), Config: cfg.Clone(), FromDefault: fromDefault}
	h.seq++
	h.latest = &ev
	for _, ch := range h.subs {
		deliver(ch, ev)
	}
	level.Debug(h.logger).Log("msg", "published", "id", ev.ID, "subscribers", len(h.subs))
	return ev
}

// deliver replaces a stale buffered event with ev.
func deliver(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Latest returns the last published event.
func (h *Hub) Latest() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return Event{}, false
	}
	return *h.latest, true
}

// Subscribe registers a subscriber. If a value was already published it is
// queued immediately.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, 1)
	sub := &Subscription{ID: uuid.NewString(), C: ch, hub: h, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub.ID] = ch
	if h.latest != nil {
		ch <- *h.latest
	}
	return sub
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Reader is the read half of the bridge.
type Reader interface {
	ReadConfig(ctx context.Context) (*models.BackgroundConfig, error)
}

// Prime reads the record once and publishes it, or the defaults when absent.
func (h *Hub) Prime(ctx context.Context, r Reader) error {
	_, err := h.Refresh(ctx, r)
	return err
}

// Refresh reads the record and publishes it when it differs from the latest
// event. An absent record counts as the defaults. If something was published
// while the read was in flight, the read is stale and the latest event wins.
func (h *Hub) Refresh(ctx context.Context, r Reader) (Event, error) {
	h.mu.Lock()
	seq := h.seq
	h.mu.Unlock()

	cfg, err := r.ReadConfig(ctx)
	fromDefault := false
	switch {
	case err == nil:
	case errors.Is(err, common.ErrNotFound):
		def := models.Default()
		cfg, fromDefault = &def, true
	default:
		return Event{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest != nil {
		if h.seq != seq {
			return *h.latest, nil
		}
		if h.latest.FromDefault == fromDefault && h.latest.Config.Equal(*cfg) {
			return *h.latest, nil
		}
	}
	return h.publishLocked(*cfg, fromDefault), nil
}

// Watch refreshes from r every interval so writes made by other processes
// sharing the store reach subscribers. It returns when ctx is done.
func (h *Hub) Watch(ctx context.Context, r Reader, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		before, _ := h.Latest()
		ev, err := h.Refresh(ctx, r)
		if err != nil {
			if ctx.Err() == nil {
				level.Warn(h.logger).Log("msg", "watch read failed", "err", err)
			}
			continue
		}
		if ev.ID != before.ID {
			level.Info(h.logger).Log("msg", "external change detected", "bgType", ev.Config.BgType, "id", ev.ID)
		}
	}
}
