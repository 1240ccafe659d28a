package viewer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vesaa/backdrop/internal/config"
	"github.com/vesaa/backdrop/internal/hub"
	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/server"
	"github.com/vesaa/backdrop/internal/store"
	"github.com/vesaa/backdrop/internal/store/backend/memory"
)

func TestDecoder(t *testing.T) {
	stream := ": hello\n\n" +
		"id: 1\nevent: config\nretry: 3000\ndata: {\"a\":1}\n\n" +
		"id:2\r\nevent:config\r\ndata:line one\r\ndata: line two\r\n\r\n" +
		"data: plain\n\n"
	dec := NewDecoder(strings.NewReader(stream))

	ev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{ID: "1", Name: "config", Data: `{"a":1}`, Retry: 3000}, ev)

	ev, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{ID: "2", Name: "config", Data: "line one\nline two"}, ev)

	ev, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Name)
	assert.Equal(t, "plain", ev.Data)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderTruncatedEvent(t *testing.T) {
	dec := NewDecoder(strings.NewReader("event: config\ndata: {"))
	_, err := dec.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type recordingSink struct {
	mu  sync.Mutex
	got []models.BackgroundConfig
	ch  chan models.BackgroundConfig
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan models.BackgroundConfig, 16)}
}

func (s *recordingSink) Show(cfg models.BackgroundConfig) {
	s.mu.Lock()
	s.got = append(s.got, cfg)
	s.mu.Unlock()
	s.ch <- cfg
}

func (s *recordingSink) next(t *testing.T) models.BackgroundConfig {
	t.Helper()
	select {
	case cfg := <-s.ch:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("no update received")
		return models.BackgroundConfig{}
	}
}

func TestRunFollowsServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := hub.New(log.NewNopLogger())
	srv, err := server.New(server.Options{
		Store:      store.New(log.NewNopLogger(), memory.New()),
		Hub:        h,
		JWTSecret:  "test-secret",
		AdminPass:  "x",
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.ViewerHandler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sink := newRecordingSink()
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, &config.Config{ViewerURL: ts.URL, ViewerReconnectSeconds: 1}, sink, log.NewNopLogger())
	}()

	assert.True(t, models.Default().Equal(sink.next(t)), "first update is the current value")

	want := models.BackgroundConfig{
		BgType: models.BgTypeGradient,
		Colors: models.Colors{Color: "#101010", MidTier: "#202020", EndTier: "#303030"},
	}
	h.Publish(want)
	assert.True(t, want.Equal(sink.next(t)))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReconnectsWithLastEventID(t *testing.T) {
	var (
		mu      sync.Mutex
		conns   int
		lastIDs []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		conns++
		n := conns
		lastIDs = append(lastIDs, r.Header.Get("Last-Event-ID"))
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		cfg := models.Default()
		cfg.Colors.Color = fmt.Sprintf("#00000%d", n)
		fmt.Fprintf(w, "id: ev-%d\nevent: config\ndata: {\"config\":{\"bgType\":\"color\",\"colors\":{\"color\":%q}}}\n\n", n, cfg.Colors.Color)
		// returning closes the stream
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newRecordingSink()
	go func() {
		_ = Run(ctx, &config.Config{ViewerURL: ts.URL + "/", ViewerReconnectSeconds: 1}, sink, log.NewNopLogger())
	}()

	first := sink.next(t)
	assert.Equal(t, "#000001", first.Colors.Color)
	assert.Equal(t, models.DefaultMidTier, first.Colors.MidTier, "partial records are normalized")

	second := sink.next(t)
	assert.Equal(t, "#000002", second.Colors.Color)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(lastIDs), 2)
	assert.Equal(t, "", lastIDs[0])
	assert.Equal(t, "ev-1", lastIDs[1])
}

func TestTerminalSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTerminalSink(&buf)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return clock }

	sink.Show(models.Default())
	clock = clock.Add(3 * time.Minute)
	sink.Show(models.BackgroundConfig{
		BgType:          models.BgTypeGradient,
		Colors:          models.Colors{Color: "#ff0000", MidTier: "#00ff00", EndTier: "#0000ff"},
		AnimationEffect: true,
	})
	sink.Show(models.BackgroundConfig{BgType: models.BgTypeImage})

	out := buf.String()
	assert.Contains(t, out, "1st update")
	assert.Contains(t, out, "2nd update")
	assert.Contains(t, out, "3rd update")
	assert.Contains(t, out, "previous change 3 minutes ago")
	assert.Contains(t, out, "linear-gradient(to bottom right, #ff0000 0%, rgba(255, 0, 0, 0.6) 100%)")
	assert.Contains(t, out, "@keyframes gradientWave")
	assert.Contains(t, out, "Image options will be here")
}

func TestSwatchDimensions(t *testing.T) {
	s := Swatch(models.Default(), 10, 3)
	assert.Equal(t, 3, strings.Count(s, "\n"))
}
