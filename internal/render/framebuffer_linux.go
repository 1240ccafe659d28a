package render

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	fb "github.com/gonutz/framebuffer"
	xdraw "golang.org/x/image/draw"

	"github.com/vesaa/backdrop/internal/models"
)

// Logical canvas size; frames are scaled onto the device.
const (
	CanvasWidth  = 480
	CanvasHeight = 270
)

// Framebuffer paints the background onto a Linux framebuffer device.
type Framebuffer struct {
	logger log.Logger
	dev    *fb.Device

	mu      sync.Mutex
	cfg     models.BackgroundConfig
	since   time.Time
	changed bool
}

// OpenFramebuffer opens a device such as /dev/fb0.
func OpenFramebuffer(path string, l log.Logger) (*Framebuffer, error) {
	dev, err := fb.Open(path)
	if err != nil {
		return nil, err
	}
	bounds := dev.Bounds()
	level.Info(l).Log("msg", "framebuffer open", "device", path, "width", bounds.Dx(), "height", bounds.Dy())
	return &Framebuffer{
		logger:  log.With(l, "component", "framebuffer"),
		dev:     dev,
		cfg:     models.Default(),
		since:   time.Now(),
		changed: true,
	}, nil
}

// Show switches to cfg; the animation clock restarts.
func (f *Framebuffer) Show(cfg models.BackgroundConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg.Clone()
	f.since = time.Now()
	f.changed = true
}

// Run redraws at fps until ctx is done. Static backgrounds are drawn once
// per change.
func (f *Framebuffer) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			cfg, since, changed := f.cfg, f.since, f.changed
			f.changed = false
			f.mu.Unlock()

			if !changed && !cfg.Animated() {
				continue
			}
			f.blit(Frame(cfg, CanvasWidth, CanvasHeight, time.Since(since)))
		}
	}
}

func (f *Framebuffer) blit(canvas *image.RGBA) {
	xdraw.ApproxBiLinear.Scale(f.dev, f.dev.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
}

// Close releases the device.
func (f *Framebuffer) Close() error {
	f.dev.Close()
	return nil
}
