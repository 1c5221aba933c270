package telemetry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metric names
const (
	MetricRequestsTotal          = "chemstock_api_requests_total"
	MetricRequestDurationSeconds = "chemstock_api_request_duration_seconds"
	MetricTokenRefreshTotal      = "chemstock_token_refresh_total"
	MetricSessionExpiredTotal    = "chemstock_session_expired_total"
)

// Refresh outcomes recorded by ObserveRefresh
const (
	RefreshSuccess   = "success"
	RefreshFailure   = "failure"
	RefreshNoToken   = "no_token"
	RefreshCoalesced = "coalesced"
)

// Metrics records API client activity in a private registry so that nothing
// leaks into the process-wide default registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshTotal    *prometheus.CounterVec
	sessionExpired  prometheus.Counter
}

// NewMetrics creates and registers the client metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "Total number of API requests, by method, endpoint and status code.",
		},
		[]string{"method", "endpoint", "status"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricRequestDurationSeconds,
			Help:    "Duration of API requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	m.refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricTokenRefreshTotal,
			Help: "Access token refresh attempts, by result.",
		},
		[]string{"result"},
	)
	m.sessionExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: MetricSessionExpiredTotal,
			Help: "Number of times the session was cleared after a failed refresh.",
		},
	)

	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.refreshTotal, m.sessionExpired)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one completed request. Status 0 means a transport error.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	endpoint := EndpointLabel(path)
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(method, endpoint, code).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// ObserveRefresh records the result of a token refresh attempt
func (m *Metrics) ObserveRefresh(result string) {
	m.refreshTotal.WithLabelValues(result).Inc()
}

// ObserveSessionExpired records a forced logout
func (m *Metrics) ObserveSessionExpired() {
	m.sessionExpired.Inc()
}

// WriteTextfile writes the current values in the node-exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

var (
	numericSegment = regexp.MustCompile(`^\d+$`)
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// EndpointLabel collapses ids in a request path so metric cardinality stays
// bounded: /api/requisitions/15/ becomes /api/requisitions/:id/.
func EndpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if numericSegment.MatchString(p) || uuidSegment.MatchString(p) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
