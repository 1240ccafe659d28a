package preview

import (
	"math"
	"time"
)

// PositionAt returns the background-position (percent) of an animated style
// after elapsed time. Static styles report ok=false.
func (s Style) PositionAt(elapsed time.Duration) (x, y float64, ok bool) {
	if !s.Animated() {
		return 0, 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	pct := 100 * float64(elapsed%AnimationDuration) / float64(AnimationDuration)

	frames := s.Keyframes
	for i := 0; i < len(frames)-1; i++ {
		from, to := frames[i], frames[i+1]
		if pct < float64(from.Offset) || pct > float64(to.Offset) {
			continue
		}
		span := float64(to.Offset - from.Offset)
		t := 0.0
		if span > 0 {
			t = ease((pct - float64(from.Offset)) / span)
		}
		x = float64(from.X) + t*float64(to.X-from.X)
		y = float64(from.Y) + t*float64(to.Y-from.Y)
		return x, y, true
	}
	last := frames[len(frames)-1]
	return float64(last.X), float64(last.Y), true
}

// ease is CSS "ease", cubic-bezier(0.25, 0.1, 0.25, 1), applied per keyframe segment.
func ease(t float64) float64 {
	return cubicBezier(0.25, 0.1, 0.25, 1, t)
}

func cubicBezier(x1, y1, x2, y2, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	bez := func(a, b, u float64) float64 {
		return 3*a*u*(1-u)*(1-u) + 3*b*u*u*(1-u) + u*u*u
	}
	deriv := func(a, b, u float64) float64 {
		return 3*a*(1-u)*(1-u) + 6*(b-a)*u*(1-u) + 3*(1-b)*u*u
	}

	// Solve x(u) = t for u with Newton steps, falling back to bisection.
	u := t
	for i := 0; i < 8; i++ {
		dx := bez(x1, x2, u) - t
		if math.Abs(dx) < 1e-6 {
			return bez(y1, y2, u)
		}
		d := deriv(x1, x2, u)
		if math.Abs(d) < 1e-6 {
			break
		}
		u -= dx / d
	}
	lo, hi := 0.0, 1.0
	u = t
	for i := 0; i < 32; i++ {
		if bez(x1, x2, u) < t {
			lo = u
		} else {
			hi = u
		}
		u = (lo + hi) / 2
	}
	return bez(y1, y2, u)
}
