// Package viewer implements the backdrop display daemon.
// It follows the viewer plane's event stream (port 1616) and hands every
// record to a Sink: the terminal or a Linux framebuffer.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vesaa/backdrop/internal/config"
	"github.com/vesaa/backdrop/internal/models"
)

// StreamPath is the viewer-plane endpoint followed by Run.
const StreamPath = "/api/stream"

// Sink presents a record.
type Sink interface {
	Show(cfg models.BackgroundConfig)
}

// Update is the decoded data of a "config" event.
type Update struct {
	ID          string                  `json:"id"`
	At          time.Time               `json:"at"`
	Config      models.BackgroundConfig `json:"config"`
	FromDefault bool                    `json:"fromDefault"`
}

// Run connects to {cfg.ViewerURL}/api/stream and shows every update on
// sink. When the stream drops it reconnects after cfg.ViewerReconnect().
// It returns nil once ctx is done.
func Run(ctx context.Context, cfg *config.Config, sink Sink, l log.Logger) error {
	url := strings.TrimRight(cfg.ViewerURL, "/") + StreamPath
	delay := cfg.ViewerReconnect()
	if delay <= 0 {
		delay = time.Second
	}
	f := &follower{url: url, sink: sink, logger: log.With(l, "component", "viewer"), http: &http.Client{}}

	level.Info(f.logger).Log("msg", "following stream", "url", url, "reconnect", delay)
	for {
		err := f.follow(ctx)
		if ctx.Err() != nil {
			return nil
		}
		level.Warn(f.logger).Log("msg", "stream dropped, reconnecting", "err", err, "in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

type follower struct {
	url    string
	sink   Sink
	logger log.Logger
	http   *http.Client

	lastID string
}

// follow reads one connection until it ends.
func (f *follower) follow(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if f.lastID != "" {
		req.Header.Set("Last-Event-ID", f.lastID)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	dec := NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("stream closed by server")
			}
			return err
		}
		if ev.Name != "config" {
			continue
		}
		var u Update
		if err := json.Unmarshal([]byte(ev.Data), &u); err != nil {
			level.Warn(f.logger).Log("msg", "bad event", "id", ev.ID, "err", err)
			continue
		}
		f.lastID = ev.ID
		level.Debug(f.logger).Log("msg", "update", "id", ev.ID, "bgType", u.Config.BgType, "fromDefault", u.FromDefault)
		f.sink.Show(u.Config.Normalize())
	}
}
