// Package preview derives the visual presentation of a BackgroundConfig.
// Everything here is a pure function of the config; nothing is persisted.
package preview

import (
	"fmt"
	"strings"
	"time"

	"github.com/vesaa/backdrop/internal/models"
)

const (
	// GradientAngle is the fixed diagonal of three-stop gradients.
	GradientAngle = "135deg"
	// FadeDirection is used for the single-colour fade.
	FadeDirection = "to bottom right"
	// FadeAlpha is the opacity of the fade's end stop.
	FadeAlpha = 0.6

	AnimationName     = "gradientWave"
	AnimationDuration = 8 * time.Second
	AnimationTiming   = "ease"
	AnimatedSize      = "400% 400%"

	// PlaceholderColor fills the preview for image backgrounds.
	PlaceholderColor = "#1f1f1f"
	PlaceholderText  = "Image options will be here"
)

// Stop is one colour stop of a linear gradient.
type Stop struct {
	Color  string  `json:"color"`  // hex
	Alpha  float64 `json:"alpha"`  // 0..1
	Offset float64 `json:"offset"` // 0..1 along the gradient line
}

// Keyframe is one background-position step of the animation, in percent.
type Keyframe struct {
	Offset int `json:"offset"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// Keyframes is the looping path of the animated gradient.
var Keyframes = []Keyframe{
	{Offset: 0, X: 0, Y: 50},
	{Offset: 25, X: 100, Y: 50},
	{Offset: 50, X: 100, Y: 100},
	{Offset: 75, X: 0, Y: 100},
	{Offset: 100, X: 0, Y: 50},
}

// Style is the derived presentation of a config.
type Style struct {
	BgType         models.BgType `json:"bgType"`
	Direction      string        `json:"direction"`
	Stops          []Stop        `json:"stops"`
	Background     string        `json:"background"`
	BackgroundSize string        `json:"backgroundSize,omitempty"`
	Animation      string        `json:"animation,omitempty"`
	Keyframes      []Keyframe    `json:"keyframes,omitempty"`
	Placeholder    bool          `json:"placeholder,omitempty"`
	Label          string        `json:"label,omitempty"`
}

// Animated reports whether the style carries keyframes.
func (s Style) Animated() bool { return len(s.Keyframes) > 0 }

// Derive computes the presentation of c. Missing fields are defaulted first.
func Derive(c models.BackgroundConfig) Style {
	c = c.Normalize()

	switch c.BgType {
	case models.BgTypeGradient:
		s := Style{
			BgType:     c.BgType,
			Direction:  GradientAngle,
			Stops:      gradientStops(c),
			Background: Gradient(c),
		}
		if c.Animated() {
			s.BackgroundSize = AnimatedSize
			s.Animation = fmt.Sprintf("%s %gs %s infinite", AnimationName, AnimationDuration.Seconds(), AnimationTiming)
			s.Keyframes = append([]Keyframe(nil), Keyframes...)
		}
		return s
	case models.BgTypeImage:
		return Style{
			BgType:      c.BgType,
			Direction:   FadeDirection,
			Stops:       []Stop{{Color: PlaceholderColor, Alpha: 1, Offset: 0}, {Color: PlaceholderColor, Alpha: 1, Offset: 1}},
			Background:  PlaceholderColor,
			Placeholder: true,
			Label:       PlaceholderText,
		}
	default:
		return Style{
			BgType:     models.BgTypeColor,
			Direction:  FadeDirection,
			Stops:      []Stop{{Color: c.Colors.Color, Alpha: 1, Offset: 0}, {Color: c.Colors.Color, Alpha: FadeAlpha, Offset: 1}},
			Background: ColorFade(c),
		}
	}
}

func gradientStops(c models.BackgroundConfig) []Stop {
	return []Stop{
		{Color: c.Colors.Color, Alpha: 1, Offset: 0},
		{Color: c.Colors.MidTier, Alpha: 1, Offset: 0.5},
		{Color: c.Colors.EndTier, Alpha: 1, Offset: 1},
	}
}

// Gradient is the three-stop CSS gradient of c.
func Gradient(c models.BackgroundConfig) string {
	return fmt.Sprintf("linear-gradient(%s, %s 0%%, %s 50%%, %s 100%%)",
		GradientAngle, c.Colors.Color, c.Colors.MidTier, c.Colors.EndTier)
}

// ColorFade is the single-colour gradient: the colour fading to a
// translucent copy of itself.
func ColorFade(c models.BackgroundConfig) string {
	return fmt.Sprintf("linear-gradient(%s, %s 0%%, %s 100%%)",
		FadeDirection, c.Colors.Color, rgba(c.Colors.Color, FadeAlpha))
}

func rgba(hex string, alpha float64) string {
	col, err := models.ParseHex(hex)
	if err != nil {
		return hex
	}
	r, g, b := col.RGB255()
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", r, g, b, alpha)
}

// CSS renders the style as a rule for selector, plus the @keyframes block
// when animated.
func (s Style) CSS(selector string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s {\n  background: %s;\n", selector, s.Background)
	if s.BackgroundSize != "" {
		fmt.Fprintf(&sb, "  background-size: %s;\n", s.BackgroundSize)
	}
	if s.Animation != "" {
		fmt.Fprintf(&sb, "  animation: %s;\n", s.Animation)
	}
	sb.WriteString("}\n")

	if s.Animated() {
		fmt.Fprintf(&sb, "@keyframes %s {\n", AnimationName)
		for _, k := range s.Keyframes {
			fmt.Fprintf(&sb, "  %d%% { background-position: %d%% %d%%; }\n", k.Offset, k.X, k.Y)
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}
