package request

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Backoff configures how rate-limited (HTTP 429) requests are retried.
//
// The wait grows by a flat Increment per retry plus whatever the upstream asks for
// in Retry-After, on top of Initial:
//
//	wait_n = Initial + sum_{i<=n}(RetryAfter_i + Increment)
type Backoff struct {
	Initial     time.Duration
	Increment   time.Duration
	MaxAttempts uint // 0 = unlimited
}

// DefaultBackoff matches the Wikidata client behaviour this library has always had.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:   200 * time.Millisecond,
		Increment: 500 * time.Millisecond,
	}
}

// backoffState accumulates the wait for one logical request.
type backoffState struct {
	wait      time.Duration
	increment time.Duration
}

func (b Backoff) start() *backoffState {
	return &backoffState{wait: b.Initial, increment: b.Increment}
}

// observe folds one 429 response into the accumulated wait and returns it.
func (s *backoffState) observe(h http.Header) time.Duration {
	s.wait += retryAfter(h)
	s.wait += s.increment
	return s.wait
}

// retryAfter reads the Retry-After header in seconds. HTTP-date values are ignored.
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
