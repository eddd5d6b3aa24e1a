package strava

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Strava rate limits:
// - 100 requests per 15 minutes, windows start on the quarter hour
// - 1000 requests per day, resetting at midnight UTC
const (
	defaultShortLimit = 100
	defaultDailyLimit = 1000
	shortWindow       = 15 * time.Minute
	minInterval       = 150 * time.Millisecond
)

// Rate limit headers, each carrying "short,daily" values
const (
	HeaderRateLimitLimit = "X-RateLimit-Limit"
	HeaderRateLimitUsage = "X-RateLimit-Usage"
)

// RateLimiter tracks Strava's usage headers. It never sleeps through an
// exhausted window: Wait returns ErrRateLimited so long batch jobs can stop
// and resume on the next run.
type RateLimiter struct {
	mu  sync.Mutex
	now func() time.Time

	// 15-minute window
	shortLimit    int
	shortUsage    int
	shortResetsAt time.Time

	// Daily window
	dailyLimit    int
	dailyUsage    int
	dailyResetsAt time.Time

	// Minimum interval between requests
	pace *rate.Limiter
}

// NewRateLimiter creates a new rate limiter with Strava's limits
func NewRateLimiter() *RateLimiter {
	return newRateLimiter(time.Now)
}

func newRateLimiter(now func() time.Time) *RateLimiter {
	r := &RateLimiter{
		now:        now,
		shortLimit: defaultShortLimit,
		dailyLimit: defaultDailyLimit,
		pace:       rate.NewLimiter(rate.Every(minInterval), 1),
	}
	r.resetWindows(now())
	return r
}

func (r *RateLimiter) resetWindows(now time.Time) {
	if !now.Before(r.shortResetsAt) {
		r.shortUsage = 0
		r.shortResetsAt = now.Truncate(shortWindow).Add(shortWindow)
	}
	if !now.Before(r.dailyResetsAt) {
		r.dailyUsage = 0
		r.dailyResetsAt = now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
}

// Wait reserves one request. It fails fast with ErrRateLimited when either
// window is used up and otherwise enforces a short gap between requests.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.resetWindows(r.now())

	if r.shortUsage >= r.shortLimit {
		resets := r.shortResetsAt
		r.mu.Unlock()
		return fmt.Errorf("%w: 15 minute limit of %d reached, resets at %s", ErrRateLimited, r.shortLimit, resets.Format(time.Kitchen))
	}
	if r.dailyUsage >= r.dailyLimit {
		resets := r.dailyResetsAt
		r.mu.Unlock()
		return fmt.Errorf("%w: daily limit of %d reached, resets at %s", ErrRateLimited, r.dailyLimit, resets.Format(time.RFC3339))
	}

	r.shortUsage++
	r.dailyUsage++
	r.mu.Unlock()

	return r.pace.Wait(ctx)
}

// UpdateFromHeaders updates rate limit state from Strava response headers
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strava returns: X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512"
	if short, daily, ok := ParseRateLimitPair(h.Get(HeaderRateLimitUsage)); ok {
		r.shortUsage = short
		r.dailyUsage = daily
	}
	if short, daily, ok := ParseRateLimitPair(h.Get(HeaderRateLimitLimit)); ok {
		r.shortLimit = short
		r.dailyLimit = daily
	}
}

// Status returns current rate limit status
func (r *RateLimiter) Status() (shortRemaining, dailyRemaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetWindows(r.now())
	return r.shortLimit - r.shortUsage, r.dailyLimit - r.dailyUsage
}

// ParseRateLimitPair parses a "short,daily" rate limit header value
func ParseRateLimitPair(v string) (short, daily int, ok bool) {
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}
