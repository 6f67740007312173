package display

import "time"

// CountUp returns the animated value of a counter running from zero to
// target over duration, sampled at elapsed. It is a pure function of its
// inputs: the display calls it on every tick instead of keeping a mutable
// counter, so the animation is testable without a rendering surface.
func CountUp(target float64, elapsed, duration time.Duration) float64 {
	if duration <= 0 || elapsed >= duration {
		return target
	}
	if elapsed <= 0 {
		return 0
	}

	// ease-out cubic
	t := float64(elapsed) / float64(duration)
	u := 1 - t
	return target * (1 - u*u*u)
}
