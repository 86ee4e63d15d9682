package pubg

import (
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	rateLimitFallback = 6 * time.Second
	rateLimitCeiling  = 120 * time.Second
	backoffCap        = 20 * time.Second
)

// retryDecision is what the classifier tells the request loop to do next.
type retryDecision int

const (
	decideSuccess retryDecision = iota
	decideRetry                 // transient, wait delay then try again
	decideFail                  // permanent, surface immediately
)

// backoffPolicy maps a response or transport error to a retry decision,
// independent of any specific call site.
type backoffPolicy struct {
	maxRetries int
	now        func() time.Time
	jitter     func(lo, hi float64) time.Duration
}

func newBackoffPolicy(maxRetries int) *backoffPolicy {
	if maxRetries < 0 {
		maxRetries = 3
	}
	return &backoffPolicy{
		maxRetries: maxRetries,
		now:        time.Now,
		jitter: func(lo, hi float64) time.Duration {
			return time.Duration((lo + rand.Float64()*(hi-lo)) * float64(time.Second))
		},
	}
}

// classify decides what to do with an HTTP status. Transport errors are
// handled by the caller with backoffDelay directly.
func (p *backoffPolicy) classify(status int) retryDecision {
	switch {
	case status == http.StatusTooManyRequests:
		return decideRetry
	case status >= 500:
		return decideRetry
	case status >= 400:
		return decideFail
	default:
		return decideSuccess
	}
}

// rateLimitDelay derives the 429 wait: Retry-After seconds first, then the
// rate-limit reset epoch, then a fixed fallback. Clamped and jittered.
func (p *backoffPolicy) rateLimitDelay(h http.Header) time.Duration {
	delay := rateLimitFallback

	if ra := strings.TrimSpace(h.Get("Retry-After")); ra != "" {
		if secs, err := strconv.ParseFloat(ra, 64); err == nil && secs > 0 {
			delay = time.Duration(secs * float64(time.Second))
		}
	} else if reset := strings.TrimSpace(h.Get("X-RateLimit-Reset")); reset != "" {
		if resetTS, err := strconv.ParseFloat(reset, 64); err == nil {
			if wait := time.Duration(resetTS*float64(time.Second)) - time.Duration(p.now().UnixNano()); wait > 0 {
				delay = wait
			}
		}
	}

	if delay > rateLimitCeiling {
		delay = rateLimitCeiling
	}
	return delay + p.jitter(0.1, 0.7)
}

// backoffDelay is the exponential wait for 5xx and transport errors.
func (p *backoffPolicy) backoffDelay(attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt)) * float64(time.Second))
	if backoff > backoffCap {
		backoff = backoffCap
	}
	return backoff + p.jitter(0.1, 0.9)
}
