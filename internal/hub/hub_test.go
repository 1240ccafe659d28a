package hub

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/store"
	"github.com/vesaa/backdrop/internal/store/backend/memory"
)

func gradient(color string) models.BackgroundConfig {
	c := models.Default()
	c.BgType = models.BgTypeGradient
	c.Colors.Color = color
	return c
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestPublishSubscribe(t *testing.T) {
	h := New(log.NewNopLogger())
	sub := h.Subscribe()
	defer sub.Close()

	ev := h.Publish(gradient("#111111"))
	got := receive(t, sub)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "#111111", got.Config.Colors.Color)
	assert.NotEmpty(t, got.ID)
}

func TestLateSubscriberGetsLatest(t *testing.T) {
	h := New(log.NewNopLogger())
	h.Publish(gradient("#111111"))
	h.Publish(gradient("#222222"))

	sub := h.Subscribe()
	defer sub.Close()
	assert.Equal(t, "#222222", receive(t, sub).Config.Colors.Color)
}

func TestSlowSubscriberSeesLatestOnly(t *testing.T) {
	h := New(log.NewNopLogger())
	sub := h.Subscribe()
	defer sub.Close()

	for _, c := range []string{"#000001", "#000002", "#000003"} {
		h.Publish(gradient(c))
	}
	assert.Equal(t, "#000003", receive(t, sub).Config.Colors.Color)
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected extra event %v", ev)
	default:
	}
}

func TestClose(t *testing.T) {
	h := New(log.NewNopLogger())
	sub := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Subscribers())
}

func TestPrime(t *testing.T) {
	mem := memory.New()
	bridge := store.New(log.NewNopLogger(), mem)
	h := New(log.NewNopLogger())

	require.NoError(t, h.Prime(context.Background(), bridge))
	ev, ok := h.Latest()
	require.True(t, ok)
	assert.True(t, ev.FromDefault)
	assert.True(t, models.Default().Equal(ev.Config))

	require.NoError(t, bridge.WriteConfig(context.Background(), gradient("#333333")))
	require.NoError(t, h.Prime(context.Background(), bridge))
	ev, _ = h.Latest()
	assert.False(t, ev.FromDefault)
}

type countingReader struct {
	reader Reader
	reads  atomic.Int32
}

func (c *countingReader) ReadConfig(ctx context.Context) (*models.BackgroundConfig, error) {
	c.reads.Add(1)
	return c.reader.ReadConfig(ctx)
}

func TestWatchPublishesExternalChanges(t *testing.T) {
	mem := memory.New()
	bridge := store.New(log.NewNopLogger(), mem)
	h := New(log.NewNopLogger())
	require.NoError(t, bridge.WriteConfig(context.Background(), gradient("#444444")))
	require.NoError(t, h.Prime(context.Background(), bridge))

	sub := h.Subscribe()
	defer sub.Close()
	first := receive(t, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &countingReader{reader: bridge}
	go h.Watch(ctx, reader, 10*time.Millisecond)

	// unchanged record: no new event even after several polls
	require.Eventually(t, func() bool { return reader.reads.Load() >= 3 }, time.Second, 5*time.Millisecond)
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %v", ev)
	default:
	}

	// another process writes to the shared store
	require.NoError(t, bridge.WriteConfig(context.Background(), gradient("#555555")))
	ev := receive(t, sub)
	assert.NotEqual(t, first.ID, ev.ID)
	assert.Equal(t, "#555555", ev.Config.Colors.Color)
}

// gatedReader blocks ReadConfig until release is closed.
type gatedReader struct {
	reader  Reader
	started chan struct{}
	release chan struct{}
}

func (g *gatedReader) ReadConfig(ctx context.Context) (*models.BackgroundConfig, error) {
	close(g.started)
	<-g.release
	return g.reader.ReadConfig(ctx)
}

func TestRefreshDropsStaleRead(t *testing.T) {
	mem := memory.New()
	bridge := store.New(log.NewNopLogger(), mem)
	h := New(log.NewNopLogger())
	require.NoError(t, bridge.WriteConfig(context.Background(), gradient("#666666")))

	gate := &gatedReader{reader: bridge, started: make(chan struct{}), release: make(chan struct{})}
	done := make(chan Event, 1)
	go func() {
		ev, err := h.Refresh(context.Background(), gate)
		assert.NoError(t, err)
		done <- ev
	}()

	<-gate.started
	published := h.Publish(gradient("#777777"))
	close(gate.release)

	ev := <-done
	assert.Equal(t, published.ID, ev.ID)
	latest, _ := h.Latest()
	assert.Equal(t, "#777777", latest.Config.Colors.Color)
}

func TestRefreshFollowsRemovedRecord(t *testing.T) {
	mem := memory.New()
	bridge := store.New(log.NewNopLogger(), mem)
	h := New(log.NewNopLogger())
	h.Publish(gradient("#888888"))

	ev, err := h.Refresh(context.Background(), bridge)
	require.NoError(t, err)
	assert.True(t, ev.FromDefault)
	assert.True(t, models.Default().Equal(ev.Config))

	again, err := h.Refresh(context.Background(), bridge)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, again.ID, "an unchanged record publishes nothing")
}
