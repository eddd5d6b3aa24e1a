package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"trainlog/internal/analysis"
)

const BaseURL = "https://www.strava.com/api/v3"

// MaxPerPage is the largest page Strava serves
const MaxPerPage = 200

// Client is a Strava API client
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	baseURL   string
	transport http.RoundTripper
}

// WithBaseURL points the client at another API root, used by tests
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithTransport sets the transport under the oauth2 layer, for example an
// instrumented one.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

// NewClient creates a new Strava API client
func NewClient(tokenSource oauth2.TokenSource, opts ...Option) *Client {
	o := clientOptions{baseURL: BaseURL, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		baseURL: o.baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &oauth2.Transport{
				Source: tokenSource,
				Base:   o.transport,
			},
		},
		rateLimiter: NewRateLimiter(),
	}
}

// ListActivities fetches one page of activities started strictly after
// 'after' (second precision). A zero 'after' lists from the beginning.
func (c *Client) ListActivities(ctx context.Context, after time.Time, page, perPage int) ([]SummaryActivity, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var activities []SummaryActivity
	if err := c.getJSON(ctx, "/athlete/activities", params, &activities); err != nil {
		return nil, fmt.Errorf("listing activities page %d: %w", page, err)
	}
	return activities, nil
}

// GetActivityDetail fetches one activity with its laps and best efforts
func (c *Client) GetActivityDetail(ctx context.Context, id int64) (*DetailedActivity, error) {
	var detail DetailedActivity
	if err := c.getJSON(ctx, fmt.Sprintf("/activities/%d", id), nil, &detail); err != nil {
		return nil, fmt.Errorf("fetching activity %d: %w", id, err)
	}
	return &detail, nil
}

// GetActivityStream fetches the time and distance streams of an activity.
// Activities without GPS or with mismatched streams return
// ErrStreamUnavailable.
func (c *Client) GetActivityStream(ctx context.Context, id int64) (analysis.Stream, error) {
	params := url.Values{}
	params.Set("keys", "time,distance")
	params.Set("key_by_type", "true")

	var streams Streams
	err := c.getJSON(ctx, fmt.Sprintf("/activities/%d/streams", id), params, &streams)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return analysis.Stream{}, fmt.Errorf("activity %d: %w", id, ErrStreamUnavailable)
	}
	if err != nil {
		return analysis.Stream{}, fmt.Errorf("fetching streams for %d: %w", id, err)
	}

	if streams.Time == nil || streams.Distance == nil ||
		len(streams.Time.Data) != len(streams.Distance.Data) || streams.Len() < 2 {
		return analysis.Stream{}, fmt.Errorf("activity %d: %w", id, ErrStreamUnavailable)
	}

	return analysis.Stream{Time: streams.Time.Data, Distance: streams.Distance.Data}, nil
}

// RateLimitStatus returns the current rate limit status
func (c *Client) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return c.rateLimiter.Status()
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Token refresh failures surface here wrapped in *url.Error
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, err
	}

	// Update rate limiter from response headers
	c.rateLimiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Path: path, Body: string(body)}
	}

	return resp, nil
}
