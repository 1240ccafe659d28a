package viewer

import (
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/preview"
	"github.com/vesaa/backdrop/internal/render"
)

// Swatch size in terminal cells.
const (
	swatchWidth  = 48
	swatchHeight = 4
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// TerminalSink prints a colour swatch and the stylesheet of each update.
type TerminalSink struct {
	mu    sync.Mutex
	out   io.Writer
	count int
	last  time.Time
	now   func() time.Time
}

// NewTerminalSink writes to out.
func NewTerminalSink(out io.Writer) *TerminalSink {
	return &TerminalSink{out: out, now: time.Now}
}

// Show prints cfg.
func (t *TerminalSink) Show(cfg models.BackgroundConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.count++
	header := fmt.Sprintf("%s update · %s", humanize.Ordinal(t.count), cfg.BgType)
	if !t.last.IsZero() {
		header += dimStyle.Render(" · previous change " + humanize.RelTime(t.last, now, "ago", "from now"))
	}
	t.last = now

	style := preview.Derive(cfg)
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(header))
	sb.WriteString("\n")
	sb.WriteString(Swatch(cfg, swatchWidth, swatchHeight))
	if style.Placeholder {
		sb.WriteString(dimStyle.Render(style.Label))
		sb.WriteString("\n")
	}
	sb.WriteString(style.CSS(".backdrop"))
	sb.WriteString("\n")
	fmt.Fprint(t.out, sb.String())
}

// Swatch renders cfg as w×h terminal cells, one rasterized pixel per cell.
func Swatch(cfg models.BackgroundConfig, w, h int) string {
	img := render.Frame(cfg, w, h, 0)
	var sb strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sb.WriteString(cell(img, x, y))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func cell(img *image.RGBA, x, y int) string {
	c := img.RGBAAt(x, y)
	hex := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render(" ")
}
