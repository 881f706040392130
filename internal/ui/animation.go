package ui

import "math"

// transitionTicks is how many model ticks a line slide spans.
const transitionTicks = 6

// animState carries the per-frame animation values for the lyric area:
// the slide between lines, the left-to-right character reveal, the glow
// burst on a new line, and a free-running shimmer phase.
type animState struct {
	transition float64
	reveal     float64
	glow       float64
	shimmer    float64
}

// lineChanged restarts the slide and reveal and fires the glow burst.
func (a *animState) lineChanged() {
	a.transition = 0
	a.reveal = 0
	a.glow = 1.0
}

func (a *animState) reset() {
	*a = animState{}
}

// step advances the animation by one tick.
func (a *animState) step(tick int) {
	if a.transition < 1.0 {
		a.transition += 1.0 / transitionTicks
		if a.transition > 1.0 {
			a.transition = 1.0
		}
	}
	if a.reveal < 1.0 {
		a.reveal += 0.08
		if a.reveal > 1.0 {
			a.reveal = 1.0
		}
	}
	if a.glow > 0 {
		a.glow *= 0.85
		if a.glow < 0.01 {
			a.glow = 0
		}
	}
	a.shimmer = float64(tick) * 0.05
}

// slide is the eased progress of the current line transition in [0, 1].
func (a *animState) slide() float64 {
	return easeOutCubic(a.transition)
}

func (a *animState) sliding() bool {
	return a.transition < 1.0
}

func easeOutCubic(t float64) float64 {
	t = clamp01(t)
	return 1 - math.Pow(1-t, 3)
}

func easeOutQuart(t float64) float64 {
	t = clamp01(t)
	return 1 - math.Pow(1-t, 4)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*clamp01(t)
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
