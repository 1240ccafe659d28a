//go:build !linux

package render

import (
	"context"
	"errors"

	"github.com/go-kit/log"

	"github.com/vesaa/backdrop/internal/models"
)

// ErrNoFramebuffer is returned on platforms without /dev/fb*.
var ErrNoFramebuffer = errors.New("framebuffer output is only supported on linux")

// Framebuffer is unavailable on this platform.
type Framebuffer struct{}

// OpenFramebuffer always fails on this platform.
func OpenFramebuffer(path string, l log.Logger) (*Framebuffer, error) {
	return nil, ErrNoFramebuffer
}

func (f *Framebuffer) Show(models.BackgroundConfig) {}

func (f *Framebuffer) Run(context.Context, int) {}

func (f *Framebuffer) Close() error { return nil }
