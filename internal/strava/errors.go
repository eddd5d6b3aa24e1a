package strava

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the access token was rejected; the athlete has to
	// log in again.
	ErrUnauthorized = errors.New("strava: unauthorized")

	// ErrRateLimited means a Strava rate limit window is exhausted.
	ErrRateLimited = errors.New("strava: rate limited")

	// ErrStreamUnavailable means the activity has no usable time/distance stream.
	ErrStreamUnavailable = errors.New("strava: stream unavailable")
)

// APIError is a non-200 response from the Strava API
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d on %s: %s", e.StatusCode, e.Path, e.Body)
}

// Unwrap maps status codes onto the package sentinels
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
