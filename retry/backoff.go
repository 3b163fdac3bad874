package retry

import (
	"math"
	"math/rand"
	"time"
)

// Backoff returns the delay before retry number attempt (1-based)
type Backoff interface {
	Next(attempt int) time.Duration
}

type exponential struct {
	base   time.Duration
	max    time.Duration
	jitter float64
	int63n func(int64) int64
}

// Exponential doubles base on every attempt up to max, then spreads the
// delay by +/- jitter (0 to 1)
func Exponential(base, max time.Duration, jitter float64) Backoff {
	if jitter < 0 || jitter > 1 {
		jitter = 0
	}
	return &exponential{base: base, max: max, jitter: jitter, int63n: rand.Int63n}
}

func (b *exponential) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.base) * math.Pow(2, float64(attempt-1))
	if b.max > 0 && d > float64(b.max) {
		d = float64(b.max)
	}

	if b.jitter > 0 {
		spread := int64(d * b.jitter)
		if spread > 0 {
			d += float64(b.int63n(2*spread+1) - spread)
		}
	}
	return time.Duration(d)
}

type constant time.Duration

// Constant waits d between attempts
func Constant(d time.Duration) Backoff {
	return constant(d)
}

func (c constant) Next(int) time.Duration {
	return time.Duration(c)
}
