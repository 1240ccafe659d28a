package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/vesaa/backdrop/internal/hub"
	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/preview"
)

// StreamEventName is the SSE event type carrying records.
const StreamEventName = "config"

// streamRetry is the reconnect hint sent to browsers, in milliseconds.
const streamRetry = 3000

// StreamPayload is the data of every "config" event.
type StreamPayload struct {
	ID          string                  `json:"id"`
	At          time.Time               `json:"at"`
	Config      models.BackgroundConfig `json:"config"`
	FromDefault bool                    `json:"fromDefault,omitempty"`
	Style       preview.Style           `json:"style"`
	CSS         string                  `json:"css"`
}

func payloadFor(ev hub.Event) StreamPayload {
	cfg := ev.Config.Normalize()
	style := preview.Derive(cfg)
	return StreamPayload{
		ID:          ev.ID,
		At:          ev.At,
		Config:      cfg,
		FromDefault: ev.FromDefault,
		Style:       style,
		CSS:         style.CSS(PreviewSelector),
	}
}

// handleStream pushes the current record and every later change as
// server-sent events until the client goes away.
//
//	GET /api/stream
func (s *Server) handleStream(c *gin.Context) {
	sub := s.hub.Subscribe()
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	l := level.Debug(s.logger)
	l.Log("msg", "stream opened", "subscriber", sub.ID, "remote", c.ClientIP())
	defer l.Log("msg", "stream closed", "subscriber", sub.ID)

	ctx := c.Request.Context()

	// Catch up with the store; the subscription then holds the current event.
	if _, err := s.hub.Refresh(ctx, s.store); err != nil {
		level.Warn(s.logger).Log("msg", "read failed, streaming last known record", "err", err)
		if _, ok := s.hub.Latest(); !ok {
			first := hub.Event{ID: uuid.NewString(), At: time.Now().UTC(), Config: models.Default(), FromDefault: true}
			c.Render(-1, sse.Event{Id: first.ID, Event: StreamEventName, Retry: streamRetry, Data: payloadFor(first)})
			c.Writer.Flush()
		}
	}

	// A reconnecting viewer already shows the event it names.
	lastID := c.GetHeader("Last-Event-ID")

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-sub.C:
			if ev.ID == lastID {
				return true
			}
			c.Render(-1, sse.Event{Id: ev.ID, Event: StreamEventName, Retry: streamRetry, Data: payloadFor(ev)})
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		}
	})
}
