// Package ratelimit implements the token-bucket rate limiter used to
// throttle both filesystem scanning and content reading, as a plain object
// with a Charge method rather than any coroutine or channel machinery.
package ratelimit

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Bucket is a token bucket that, given a cost, reports how long the caller
// must wait before that cost is considered paid. It never sleeps itself;
// the caller owns all suspension.
type Bucket struct {
	tokens  float64
	rate    float64 // units per second
	burst   float64
	tsSync  time.Time
	nowFunc func() time.Time
}

// NewBucket constructs a bucket with the given interval (seconds per unit)
// and burst size. Both must be non-negative.
func NewBucket(interval, burst float64) (*Bucket, error) {
	if interval < 0 || burst < 0 {
		return nil, errors.New("rate limit interval and burst must be non-negative")
	}
	return &Bucket{
		tokens:  burst,
		rate:    1 / interval,
		burst:   burst,
		tsSync:  time.Now(),
		nowFunc: time.Now,
	}, nil
}

// Charge refills the bucket for elapsed time, subtracts cost (even if this
// drives tokens negative), and returns the delay the caller must wait before
// the charge is considered settled. A zero delay means the charge was
// already affordable.
func (b *Bucket) Charge(cost float64) time.Duration {
	now := b.nowFunc()
	elapsed := now.Sub(b.tsSync).Seconds()
	b.tokens = min(b.burst, b.tokens+elapsed*b.rate)
	b.tsSync = now

	if b.tokens >= cost {
		b.tokens -= cost
		return 0
	}
	deficit := cost - b.tokens
	b.tokens -= cost
	return time.Duration(deficit / b.rate * float64(time.Second))
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ParseSpec parses a rate-limit specification of the form
// "<interval>[:<burst>]", where <interval> is either "<float>" seconds or
// "<a>/<b>" seconds-per-unit (rate = b/a units/second). burst defaults to
// 1.0. An empty spec disables the limiter (ParseSpec returns nil, nil).
func ParseSpec(metric, spec string) (*Bucket, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	intervalPart, burstPart := spec, "1.0"
	if idx := strings.LastIndex(spec, ":"); idx != -1 {
		intervalPart, burstPart = spec[:idx], spec[idx+1:]
	}

	interval, err := parseInterval(intervalPart)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid rate limit (metric: %s): %q", metric, spec)
	}
	burst, err := strconv.ParseFloat(burstPart, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid rate limit (metric: %s): %q", metric, spec)
	}

	bucket, err := NewBucket(interval, burst)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid rate limit (metric: %s): %q", metric, spec)
	}
	return bucket, nil
}

// parseInterval parses either a bare float (seconds) or an "a/b" ratio
// (seconds = a/b).
func parseInterval(s string) (float64, error) {
	if a, b, ok := strings.Cut(s, "/"); ok {
		numerator, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return 0, err
		}
		denominator, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return 0, err
		}
		if denominator == 0 {
			return 0, errors.New("division by zero in rate specification")
		}
		return numerator / denominator, nil
	}
	return strconv.ParseFloat(s, 64)
}
