package crash

import (
	"math"
	"time"

	"github.com/mcdev12/casino/go/internal/models"
)

// segment grows the multiplier at rate per second until it reaches until.
type segment struct {
	until float64
	rate  float64
}

var curve = []segment{
	{until: 2, rate: 0.25},
	{until: 5, rate: 0.5},
	{until: 10, rate: 1},
	{until: 25, rate: 2.5},
	{until: 100, rate: 10},
	{until: math.Inf(1), rate: 50},
}

// Growth returns the unrounded multiplier after elapsed time. It starts at 1
// and speeds up each time it crosses a segment boundary.
func Growth(elapsed time.Duration) float64 {
	remaining := elapsed.Seconds()
	if remaining <= 0 {
		return 1
	}

	m := 1.0
	for _, seg := range curve {
		span := (seg.until - m) / seg.rate
		if remaining <= span {
			return m + remaining*seg.rate
		}
		remaining -= span
		m = seg.until
	}
	return m
}

// Multiplier is the displayed multiplier: Growth rounded to two decimals and
// clamped to the crash point.
func Multiplier(elapsed time.Duration, crashPoint float64) float64 {
	return math.Min(models.Round2(Growth(elapsed)), crashPoint)
}
