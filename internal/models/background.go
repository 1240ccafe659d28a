// Package models defines the data shapes shared by the store, the editor and the HTTP planes.
package models

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// BgType selects how the background is presented.
type BgType string

const (
	BgTypeColor    BgType = "color"
	BgTypeGradient BgType = "gradient"
	// BgTypeImage is accepted and stored but only renders a placeholder.
	BgTypeImage BgType = "image"
)

// Valid reports whether t is one of the known background types.
func (t BgType) Valid() bool {
	switch t {
	case BgTypeColor, BgTypeGradient, BgTypeImage:
		return true
	}
	return false
}

// Default colour values used when the record has never been written.
const (
	DefaultColor   = "#ff0000"
	DefaultMidTier = "#00ff00"
	DefaultEndTier = "#0000ff"
)

// Colors holds the hex colours of the presentation.
// MidTier and EndTier only matter for gradients.
type Colors struct {
	Color   string  `json:"color"`
	MidTier string  `json:"midTier"`
	EndTier string  `json:"endTier"`
	Image   *string `json:"image"` // URL or null; not rendered
}

// BackgroundConfig is the single persisted record describing the background.
// Its JSON form is exactly what lives at the store path.
type BackgroundConfig struct {
	BgType          BgType `json:"bgType"`
	Colors          Colors `json:"colors"`
	AnimationEffect bool   `json:"animationEffect"`
}

// Default returns the configuration shown before anything was stored.
func Default() BackgroundConfig {
	return BackgroundConfig{
		BgType: BgTypeColor,
		Colors: Colors{
			Color:   DefaultColor,
			MidTier: DefaultMidTier,
			EndTier: DefaultEndTier,
		},
		AnimationEffect: false,
	}
}

// Animated reports whether the looping gradient animation applies.
// The flag is ignored for anything but gradients.
func (c BackgroundConfig) Animated() bool {
	return c.BgType == BgTypeGradient && c.AnimationEffect
}

// Clone returns a deep copy; Colors.Image is re-allocated.
func (c BackgroundConfig) Clone() BackgroundConfig {
	out := c
	if c.Colors.Image != nil {
		img := *c.Colors.Image
		out.Colors.Image = &img
	}
	return out
}

// Equal compares two configurations field by field.
func (c BackgroundConfig) Equal(o BackgroundConfig) bool {
	if c.BgType != o.BgType || c.AnimationEffect != o.AnimationEffect {
		return false
	}
	if c.Colors.Color != o.Colors.Color || c.Colors.MidTier != o.Colors.MidTier || c.Colors.EndTier != o.Colors.EndTier {
		return false
	}
	switch {
	case c.Colors.Image == nil && o.Colors.Image == nil:
		return true
	case c.Colors.Image == nil || o.Colors.Image == nil:
		return false
	}
	return *c.Colors.Image == *o.Colors.Image
}

// Normalize fills empty fields from Default so a partially written record
// can still be rendered. The receiver is not modified.
func (c BackgroundConfig) Normalize() BackgroundConfig {
	d := Default()
	out := c.Clone()
	if !out.BgType.Valid() {
		out.BgType = d.BgType
	}
	if out.Colors.Color == "" {
		out.Colors.Color = d.Colors.Color
	}
	if out.Colors.MidTier == "" {
		out.Colors.MidTier = d.Colors.MidTier
	}
	if out.Colors.EndTier == "" {
		out.Colors.EndTier = d.Colors.EndTier
	}
	return out
}

// Validate checks the enum and the hex colours. It is applied to input
// arriving over the API, never to what is read back from the store.
func (c BackgroundConfig) Validate() error {
	if !c.BgType.Valid() {
		return fmt.Errorf("bgType %q must be one of color, gradient, image", c.BgType)
	}
	fields := []struct{ name, value string }{
		{"colors.color", c.Colors.Color},
		{"colors.midTier", c.Colors.MidTier},
		{"colors.endTier", c.Colors.EndTier},
	}
	for _, f := range fields {
		if _, err := ParseHex(f.value); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

// ParseHex parses "#rgb" or "#rrggbb".
func ParseHex(s string) (colorful.Color, error) {
	if len(s) == 0 || s[0] != '#' {
		return colorful.Color{}, fmt.Errorf("%q is not a hex colour", s)
	}
	if len(s) == 4 {
		s = "#" + string([]byte{s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	if len(s) != 7 {
		return colorful.Color{}, fmt.Errorf("%q is not a hex colour", s)
	}
	col, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%q is not a hex colour: %w", s, err)
	}
	return col, nil
}
