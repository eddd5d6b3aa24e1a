package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trainlog/internal/strava"
)

const namespace = "trainlog"

// Metrics holds the collectors for the Strava client and the sync pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	inFlight        prometheus.Gauge
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimit       *prometheus.GaugeVec
	rateUsage       *prometheus.GaugeVec

	activitiesSeen  prometheus.Counter
	newActivities   prometheus.Counter
	detailsFetched  prometheus.Counter
	effortsComputed prometheus.Counter
	streamMisses    prometheus.Counter
	classified      *prometheus.CounterVec
	summaryErrors   prometheus.Counter
	syncRuns        *prometheus.CounterVec
	syncDuration    prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_in_flight_requests",
			Help:      "A gauge of in-flight requests to the Strava API.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_api_requests_total",
			Help:      "A counter for requests to the Strava API.",
		}, []string{"code", "method"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "A histogram of Strava API request latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),
		rateLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limiter_limit",
			Help:      "The max requests allowed by the API rate limit per window.",
		}, []string{"window"}),
		rateUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limiter_usage",
			Help:      "The requests used in the current API rate limit window.",
		}, []string{"window"}),

		activitiesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_activities_seen_total",
			Help:      "Activities returned by activity listing.",
		}),
		newActivities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_new_activities_total",
			Help:      "Activities stored for the first time.",
		}),
		detailsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_details_fetched_total",
			Help:      "Activities whose laps and best efforts were fetched.",
		}),
		effortsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_efforts_computed_total",
			Help:      "Best efforts computed from streams.",
		}),
		streamMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_stream_misses_total",
			Help:      "Activities with no usable stream.",
		}),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_classified_total",
			Help:      "Runs classified, by run type.",
		}, []string{"run_type"}),
		summaryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_errors_total",
			Help:      "Failures writing the activity summary export.",
		}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync invocations, by outcome.",
		}, []string{"outcome"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "A histogram of sync durations.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900},
		}),
	}

	m.registry.MustRegister(
		m.inFlight, m.requests, m.requestDuration, m.rateLimit, m.rateUsage,
		m.activitiesSeen, m.newActivities, m.detailsFetched, m.effortsComputed,
		m.streamMisses, m.classified, m.summaryErrors, m.syncRuns, m.syncDuration,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentTransport wraps next with request, latency and rate limit
// instrumentation.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if m == nil {
		return next
	}
	return promhttp.InstrumentRoundTripperInFlight(
		m.inFlight,
		promhttp.InstrumentRoundTripperCounter(
			m.requests,
			promhttp.InstrumentRoundTripperDuration(
				m.requestDuration,
				m.instrumentRateLimitHeaders(next),
			),
		),
	)
}

func (m *Metrics) instrumentRateLimitHeaders(next http.RoundTripper) promhttp.RoundTripperFunc {
	return promhttp.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(r)
		if err != nil {
			return resp, err
		}
		if short, daily, ok := strava.ParseRateLimitPair(resp.Header.Get(strava.HeaderRateLimitLimit)); ok {
			m.rateLimit.WithLabelValues("short").Set(float64(short))
			m.rateLimit.WithLabelValues("daily").Set(float64(daily))
		}
		if short, daily, ok := strava.ParseRateLimitPair(resp.Header.Get(strava.HeaderRateLimitUsage)); ok {
			m.rateUsage.WithLabelValues("short").Set(float64(short))
			m.rateUsage.WithLabelValues("daily").Set(float64(daily))
		}
		return resp, err
	})
}

// AddActivities records one page of listed activities
func (m *Metrics) AddActivities(seen, isNew int) {
	if m == nil {
		return
	}
	m.activitiesSeen.Add(float64(seen))
	m.newActivities.Add(float64(isNew))
}

func (m *Metrics) IncDetailsFetched() {
	if m == nil {
		return
	}
	m.detailsFetched.Inc()
}

func (m *Metrics) AddEffortsComputed(n int) {
	if m == nil {
		return
	}
	m.effortsComputed.Add(float64(n))
}

func (m *Metrics) IncStreamMisses() {
	if m == nil {
		return
	}
	m.streamMisses.Inc()
}

func (m *Metrics) IncClassified(runType string) {
	if m == nil {
		return
	}
	m.classified.WithLabelValues(runType).Inc()
}

func (m *Metrics) IncSummaryErrors() {
	if m == nil {
		return
	}
	m.summaryErrors.Inc()
}

// ObserveSync records a finished sync run
func (m *Metrics) ObserveSync(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
	m.syncDuration.Observe(d.Seconds())
}
