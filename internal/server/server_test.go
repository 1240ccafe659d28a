package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vesaa/backdrop/internal/hub"
	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/store"
	"github.com/vesaa/backdrop/internal/store/backend/memory"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	srv     *Server
	mem     *memory.Backend
	bridge  *store.Bridge
	hub     *hub.Hub
	control http.Handler
	viewer  http.Handler
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(b *store.Bridge) ConfigStore { return b })
}

// newFixtureWith lets a test wrap the bridge the server writes through.
func newFixtureWith(t *testing.T, wrap func(*store.Bridge) ConfigStore) *fixture {
	t.Helper()
	mem := memory.New()
	bridge := store.New(log.NewNopLogger(), mem)
	h := hub.New(log.NewNopLogger())
	srv, err := New(Options{
		Logger:      log.NewNopLogger(),
		Store:       wrap(bridge),
		Hub:         h,
		JWTSecret:   "test-secret",
		AdminUser:   "admin",
		AdminPass:   "hunter2",
		BcryptCost:  bcrypt.MinCost,
		ViewerURL:   "http://wall.local:1616",
		StoreDriver: "memory",
	})
	require.NoError(t, err)
	return &fixture{srv: srv, mem: mem, bridge: bridge, hub: h,
		control: srv.ControlHandler(), viewer: srv.ViewerHandler()}
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	rec := do(t, f.control, http.MethodPost, "/api/login", "", map[string]string{
		"username": "admin", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func gradient() models.BackgroundConfig {
	return models.BackgroundConfig{
		BgType:          models.BgTypeGradient,
		Colors:          models.Colors{Color: "#112233", MidTier: "#445566", EndTier: "#778899"},
		AnimationEffect: true,
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{JWTSecret: "x"})
	assert.Error(t, err)

	_, err = New(Options{Store: store.New(log.NewNopLogger(), memory.New()), Hub: hub.New(log.NewNopLogger())})
	assert.Error(t, err, "empty jwt secret must be rejected")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.control, http.MethodPost, "/api/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, f.control, http.MethodPost, "/api/login", "", map[string]string{"username": "root", "password": "hunter2"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, f.control, http.MethodPost, "/api/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.NotEmpty(t, f.login(t))
}

func TestControlRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path, token string }{
		{http.MethodGet, "/api/config", ""},
		{http.MethodPut, "/api/config", ""},
		{http.MethodPost, "/api/preview", ""},
		{http.MethodGet, "/api/config", "not-a-jwt"},
	} {
		rec := do(t, f.control, tc.method, tc.path, tc.token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
	assert.Equal(t, 0, f.mem.Gets())
}

func TestGetConfigAbsentServesDefaults(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	rec := do(t, f.control, http.MethodGet, "/api/config", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Exists)
	assert.Empty(t, resp.Error)
	assert.True(t, models.Default().Equal(resp.Data))
}

func TestGetConfigReadFailureIsSurfaced(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.mem.SetErrors(errors.New("permission denied"), nil)

	rec := do(t, f.control, http.MethodGet, "/api/config", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Exists)
	assert.Contains(t, resp.Error, "permission denied")
	assert.True(t, models.Default().Equal(resp.Data))
}

func TestPutConfig(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	want := gradient()

	rec := do(t, f.control, http.MethodPut, "/api/config", token, want)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := f.bridge.ReadConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, want.Equal(*stored))

	ev, ok := f.hub.Latest()
	require.True(t, ok)
	assert.True(t, want.Equal(ev.Config))

	rec = do(t, f.viewer, http.MethodGet, "/api/config", "", nil)
	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Exists)
	assert.True(t, want.Equal(resp.Data))
}

func TestPutConfigRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	bad := gradient()
	bad.Colors.MidTier = "green"
	rec := do(t, f.control, http.MethodPut, "/api/config", token, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad = gradient()
	bad.BgType = "video"
	rec = do(t, f.control, http.MethodPut, "/api/config", token, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 0, f.mem.Puts())
	_, ok := f.hub.Latest()
	assert.False(t, ok)
}

func TestPutConfigStoreFailureIs502(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.mem.SetErrors(nil, errors.New("quota exceeded"))

	rec := do(t, f.control, http.MethodPut, "/api/config", token, gradient())
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "quota exceeded")

	_, ok := f.hub.Latest()
	assert.False(t, ok, "failed writes must not reach viewers")
}

func TestPreviewDraftDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	rec := do(t, f.control, http.MethodPost, "/api/preview", token, gradient())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "linear-gradient(135deg, #112233 0%, #445566 50%, #778899 100%)", resp.Style.Background)
	assert.Contains(t, resp.CSS, "@keyframes gradientWave")
	assert.Contains(t, resp.CSS, PreviewSelector+" {")
	assert.Equal(t, 0, f.mem.Puts())
}

func TestViewerPreview(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bridge.WriteConfig(context.Background(), gradient()))

	rec := do(t, f.viewer, http.MethodGet, "/api/preview", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Style.Animated())

	rec = do(t, f.viewer, http.MethodGet, "/api/preview.png?w=64&h=36", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 36, img.Bounds().Dy())

	rec = do(t, f.viewer, http.MethodGet, "/api/preview.png?w=4096&h=4096", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	img, err = png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, MaxPreviewWidth, img.Bounds().Dx())
	assert.Equal(t, MaxPreviewHeight, img.Bounds().Dy())

	rec = do(t, f.viewer, http.MethodGet, "/api/preview.png?w=wide", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, f.viewer, http.MethodGet, "/api/preview.png?h=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewerFollowsWritesBypassingServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.hub.Prime(ctx, f.bridge))

	// another writer sharing the store, e.g. `backdrop panel --direct`
	require.NoError(t, f.bridge.WriteConfig(ctx, gradient()))

	rec := do(t, f.viewer, http.MethodGet, "/api/preview", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.BgTypeGradient, resp.Style.BgType)

	ev, ok := f.hub.Latest()
	require.True(t, ok)
	assert.False(t, ev.FromDefault)
	assert.True(t, gradient().Equal(ev.Config), "open streams get the new record too")
}

func TestViewerPreviewReadFailureKeepsLastRecord(t *testing.T) {
	f := newFixture(t)
	f.hub.Publish(gradient())
	f.mem.SetErrors(errors.New("unreachable"), nil)

	rec := do(t, f.viewer, http.MethodGet, "/api/preview", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.BgTypeGradient, resp.Style.BgType)
}

// slowAckStore stores immediately but acknowledges one colour late.
type slowAckStore struct {
	ConfigStore
	color string
	delay time.Duration
}

func (s slowAckStore) WriteConfig(ctx context.Context, cfg models.BackgroundConfig) error {
	if err := s.ConfigStore.WriteConfig(ctx, cfg); err != nil {
		return err
	}
	if cfg.Colors.Color == s.color {
		time.Sleep(s.delay)
	}
	return nil
}

func TestOverlappingPutsKeepViewersOnStoredRecord(t *testing.T) {
	f := newFixtureWith(t, func(b *store.Bridge) ConfigStore {
		return slowAckStore{ConfigStore: b, color: "#aaaaaa", delay: 100 * time.Millisecond}
	})
	token := f.login(t)

	first, second := gradient(), gradient()
	first.Colors.Color = "#aaaaaa"
	second.Colors.Color = "#bbbbbb"

	codes := make(chan int, 2)
	go func() { codes <- do(t, f.control, http.MethodPut, "/api/config", token, first).Code }()
	time.Sleep(20 * time.Millisecond)
	go func() { codes <- do(t, f.control, http.MethodPut, "/api/config", token, second).Code }()
	assert.Equal(t, http.StatusOK, <-codes)
	assert.Equal(t, http.StatusOK, <-codes)

	stored, err := f.bridge.ReadConfig(context.Background())
	require.NoError(t, err)
	ev, ok := f.hub.Latest()
	require.True(t, ok)
	assert.Equal(t, stored.Colors.Color, ev.Config.Colors.Color)
	assert.Equal(t, "#bbbbbb", ev.Config.Colors.Color)
}

func TestViewerPlaneIsReadOnly(t *testing.T) {
	f := newFixture(t)
	rec := do(t, f.viewer, http.MethodPut, "/api/config", "", gradient())
	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.mem.Puts())
}

func TestViewerQR(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	rec := do(t, f.control, http.MethodGet, "/api/viewer/qr.png?size=128", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.control, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store"])
	assert.Contains(t, body, "host")

	rec = do(t, f.viewer, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaticPages(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	f.control.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	rec = do(t, f.viewer, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

// readEvent reads one server-sent event, skipping comment lines.
func readEvent(t *testing.T, r *bufio.Reader) (id, event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return id, event, data
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimPrefix(line, "data:")
		}
	}
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.viewer)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)

	// first event is the current value: nothing stored yet, so defaults
	id, event, data := readEvent(t, r)
	assert.Equal(t, StreamEventName, event)
	assert.NotEmpty(t, id)
	var first StreamPayload
	require.NoError(t, json.Unmarshal([]byte(data), &first))
	assert.True(t, first.FromDefault)
	assert.True(t, models.Default().Equal(first.Config))

	token := f.login(t)
	want := gradient()
	rec := do(t, f.control, http.MethodPut, "/api/config", token, want)
	require.Equal(t, http.StatusOK, rec.Code)

	id2, _, data := readEvent(t, r)
	assert.NotEqual(t, id, id2)
	var next StreamPayload
	require.NoError(t, json.Unmarshal([]byte(data), &next))
	assert.False(t, next.FromDefault)
	assert.True(t, want.Equal(next.Config))
	assert.Equal(t, "gradientWave 8s ease infinite", next.Style.Animation)
	assert.Contains(t, next.CSS, "background-size: 400% 400%")
}

// openStream connects to the viewer stream, optionally resuming after lastID.
func openStream(t *testing.T, ctx context.Context, url, lastID string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/api/stream", nil)
	require.NoError(t, err)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestStreamStartsWithLatestEvent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bridge.WriteConfig(context.Background(), gradient()))
	require.NoError(t, f.hub.Prime(context.Background(), f.bridge))
	ev, _ := f.hub.Latest()
	ts := httptest.NewServer(f.viewer)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp := openStream(t, ctx, ts.URL, "")
	defer resp.Body.Close()

	id, _, _ := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, ev.ID, id, "an unchanged record is not republished")
}

func TestStreamSkipsEventNamedByLastEventID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bridge.WriteConfig(context.Background(), gradient()))
	require.NoError(t, f.hub.Prime(context.Background(), f.bridge))
	seen, _ := f.hub.Latest()
	ts := httptest.NewServer(f.viewer)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp := openStream(t, ctx, ts.URL, seen.ID)
	defer resp.Body.Close()

	next := gradient()
	next.Colors.Color = "#010203"
	rec := do(t, f.control, http.MethodPut, "/api/config", f.login(t), next)
	require.Equal(t, http.StatusOK, rec.Code)

	id, _, data := readEvent(t, bufio.NewReader(resp.Body))
	assert.NotEqual(t, seen.ID, id)
	var got StreamPayload
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "#010203", got.Config.Colors.Color, "the event the viewer already shows is not replayed")
}
