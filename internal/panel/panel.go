// Package panel is the terminal control panel: a bubbletea front end over
// editor.Editor. It works against any editor.Bridge, so it can edit the
// store directly or through a running server.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-kit/log"

	"github.com/vesaa/backdrop/internal/editor"
	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/viewer"
)

const (
	swatchWidth  = 48
	swatchHeight = 6
	statusTick   = 500 * time.Millisecond
	closeTimeout = 5 * time.Second
)

type field int

const (
	fieldNone field = iota
	fieldColor
	fieldMidTier
	fieldEndTier
	fieldImage
	fieldCount
)

var fieldLabels = [fieldCount]string{"", "Color", "Mid tier", "End tier", "Image"}

type (
	loadedMsg   struct{ err error }
	writeErrMsg struct{ err error }
	flushedMsg  struct{ err error }
	tickMsg     time.Time
)

// Model is the bubbletea model of the panel.
type Model struct {
	ctx       context.Context
	ed        *editor.Editor
	writeErrs chan error

	inputs [fieldCount]textinput.Model
	focus  field

	loaded   bool
	loadErr  error
	writeErr error
}

// New builds a panel over bridge. debounce is passed to the editor.
func New(ctx context.Context, bridge editor.Bridge, l log.Logger, debounce time.Duration) *Model {
	m := &Model{ctx: ctx, writeErrs: make(chan error, 8)}
	m.ed = editor.New(bridge, l,
		editor.WithDebounce(debounce),
		editor.WithWriteTimeout(10*time.Second),
		editor.WithWriteErrorHandler(func(err error) {
			select {
			case m.writeErrs <- err:
			default:
			}
		}),
	)
	for f := fieldColor; f < fieldCount; f++ {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Width = 40
		if f == fieldImage {
			ti.Placeholder = "https://…"
		} else {
			ti.Placeholder = "#rrggbb"
			ti.CharLimit = 7
		}
		m.inputs[f] = ti
	}
	m.syncInputs()
	return m
}

// Editor exposes the underlying editor.
func (m *Model) Editor() *editor.Editor { return m.ed }

// Run starts the panel and blocks until the user quits. Pending changes are
// written before it returns.
func Run(ctx context.Context, bridge editor.Bridge, l log.Logger, debounce time.Duration) error {
	m := New(ctx, bridge, l, debounce)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return errors.Join(err, m.ed.Close(closeCtx))
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.waitWriteErr(), tick())
}

func (m *Model) loadCmd() tea.Cmd {
	return func() tea.Msg { return loadedMsg{err: m.ed.Load(m.ctx)} }
}

func (m *Model) waitWriteErr() tea.Cmd {
	return func() tea.Msg { return writeErrMsg{err: <-m.writeErrs} }
}

func (m *Model) flushCmd() tea.Cmd {
	return func() tea.Msg { return flushedMsg{err: m.ed.Flush(m.ctx)} }
}

func tick() tea.Cmd {
	return tea.Tick(statusTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loaded = true
		m.loadErr = msg.err
		m.syncInputs()
		return m, nil
	case writeErrMsg:
		m.writeErr = msg.err
		return m, m.waitWriteErr()
	case flushedMsg:
		m.writeErr = msg.err
		return m, nil
	case tickMsg:
		// a later successful write clears the error
		if m.writeErr != nil && m.ed.Err() == nil && !m.ed.Pending() {
			m.writeErr = nil
		}
		return m, tick()
	case tea.KeyMsg:
		if m.focus != fieldNone {
			return m.updateField(msg)
		}
		return m.updateNav(msg)
	}
	return m, nil
}

func (m *Model) updateNav(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "c":
		m.ed.SetBgType(models.BgTypeColor)
	case "g":
		m.ed.SetBgType(models.BgTypeGradient)
	case "i":
		m.ed.SetBgType(models.BgTypeImage)
	case "a":
		m.ed.SetAnimation(!m.ed.Config().AnimationEffect)
	case "s":
		return m, m.flushCmd()
	case "tab":
		return m, m.setFocus(fieldColor)
	case "shift+tab":
		return m, m.setFocus(fieldImage)
	}
	return m, nil
}

func (m *Model) updateField(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		return m, m.setFocus(fieldNone)
	case "enter":
		m.apply(m.focus, true)
		return m, m.setFocus(fieldNone)
	case "tab":
		m.apply(m.focus, true)
		return m, m.setFocus((m.focus + 1) % fieldCount)
	case "shift+tab":
		m.apply(m.focus, true)
		return m, m.setFocus((m.focus + fieldCount - 1) % fieldCount)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	m.apply(m.focus, false)
	return m, cmd
}

// apply pushes the field's text into the editor. Hex fields apply live once
// a full #rrggbb is typed; short forms apply on commit.
func (m *Model) apply(f field, commit bool) {
	v := strings.TrimSpace(m.inputs[f].Value())
	if f == fieldImage {
		if !commit {
			return
		}
		cur := m.ed.Config().Colors.Image
		switch {
		case v == "" && cur != nil:
			m.ed.SetImage(nil)
		case v != "" && (cur == nil || *cur != v):
			m.ed.SetImage(&v)
		}
		return
	}
	if !commit && len(v) != 7 {
		return
	}
	if _, err := models.ParseHex(v); err != nil {
		return
	}
	cfg := m.ed.Config()
	switch f {
	case fieldColor:
		if cfg.Colors.Color != v {
			m.ed.SetColor(v)
		}
	case fieldMidTier:
		if cfg.Colors.MidTier != v {
			m.ed.SetMidTier(v)
		}
	case fieldEndTier:
		if cfg.Colors.EndTier != v {
			m.ed.SetEndTier(v)
		}
	}
}

func (m *Model) setFocus(f field) tea.Cmd {
	if m.focus != fieldNone {
		m.inputs[m.focus].Blur()
	}
	m.focus = f
	if f == fieldNone {
		m.syncInputs()
		return nil
	}
	return m.inputs[f].Focus()
}

// syncInputs copies editor state into the unfocused inputs.
func (m *Model) syncInputs() {
	cfg := m.ed.Config()
	values := [fieldCount]string{"", cfg.Colors.Color, cfg.Colors.MidTier, cfg.Colors.EndTier, ""}
	if cfg.Colors.Image != nil {
		values[fieldImage] = *cfg.Colors.Image
	}
	for f := fieldColor; f < fieldCount; f++ {
		if f == m.focus {
			continue
		}
		m.inputs[f].SetValue(values[f])
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	cfg := m.ed.Config()
	var b strings.Builder

	b.WriteString(titleStyle.Render("backdrop") + "\n\n")

	b.WriteString(labelStyle.Render("Type"))
	for _, t := range []models.BgType{models.BgTypeColor, models.BgTypeGradient, models.BgTypeImage} {
		name := string(t)
		if cfg.BgType == t {
			b.WriteString(activeStyle.Render("["+name+"]") + " ")
		} else {
			b.WriteString(inactiveStyle.Render(" "+name+" ") + " ")
		}
	}
	b.WriteString("\n")

	for f := fieldColor; f < fieldCount; f++ {
		marker := "  "
		if f == m.focus {
			marker = "› "
		}
		b.WriteString(marker + labelStyle.Render(fieldLabels[f]) + m.inputs[f].View() + "\n")
	}

	anim := "off"
	if cfg.AnimationEffect {
		anim = "on"
		if cfg.BgType != models.BgTypeGradient {
			anim += inactiveStyle.Render(" (gradient only)")
		}
	}
	b.WriteString("  " + labelStyle.Render("Animation") + anim + "\n\n")

	b.WriteString(viewer.Swatch(cfg, swatchWidth, swatchHeight))
	if st := m.ed.Preview(); st.Placeholder {
		b.WriteString(inactiveStyle.Render(st.Label) + "\n")
	}
	b.WriteString("\n" + m.status() + "\n")
	b.WriteString(helpStyle.Render("c/g/i: type  a: animation  tab: edit fields  s: save now  q: quit"))

	return boxStyle.Render(b.String())
}

func (m *Model) status() string {
	switch {
	case !m.loaded:
		return pendingStyle.Render("loading…")
	case m.writeErr != nil:
		return errorStyle.Render(fmt.Sprintf("write failed: %v", m.writeErr))
	case m.loadErr != nil:
		return errorStyle.Render(fmt.Sprintf("read failed, showing defaults: %v", m.loadErr))
	case m.ed.Pending():
		return pendingStyle.Render("pending…")
	case m.ed.Writes() > 0:
		return okStyle.Render("saved")
	}
	return okStyle.Render("loaded")
}
