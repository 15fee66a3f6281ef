package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relay"

// Escalation results.
const (
	EscalationFired    = "fired"
	EscalationCanceled = "cancelled"
	EscalationStale    = "stale"
)

// Metrics is the accounting surface used by the relay components.
type Metrics interface {
	NotificationReceived(intent string)
	DispatchObserved(eventType string, success bool, elapsed time.Duration)
	PendingOrders(n int)
	Escalation(result string)
	HTTPRequest(handler, method string, status int, elapsed time.Duration)
}

// Recorder is the Prometheus backed Metrics implementation.
type Recorder struct {
	notifications    *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	pending          prometheus.Gauge
	escalations      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Inbound payment notifications by classified intent",
		}, []string{"intent"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Outbound dispatches by event type and result",
		}, []string{"event_type", "result"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of outbound dispatches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_orders",
			Help:      "Orders currently awaiting payment",
		}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalation timers by result",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"handler", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "method"}),
	}

	if reg == nil {
		return r, nil
	}
	for _, c := range r.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.notifications,
		r.dispatches,
		r.dispatchDuration,
		r.pending,
		r.escalations,
		r.httpRequests,
		r.httpDuration,
	}
}

func (r *Recorder) NotificationReceived(intent string) {
	r.notifications.WithLabelValues(intent).Inc()
}

func (r *Recorder) DispatchObserved(eventType string, success bool, elapsed time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.dispatches.WithLabelValues(eventType, result).Inc()
	r.dispatchDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (r *Recorder) PendingOrders(n int) {
	r.pending.Set(float64(n))
}

func (r *Recorder) Escalation(result string) {
	r.escalations.WithLabelValues(result).Inc()
}

func (r *Recorder) HTTPRequest(handler, method string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(handler, method).Observe(elapsed.Seconds())
}

type noop struct{}

func (noop) NotificationReceived(string) {}
func (noop) DispatchObserved(string, bool, time.Duration) {}
func (noop) PendingOrders(int) {}
func (noop) Escalation(string) {}
func (noop) HTTPRequest(string, string, int, time.Duration) {}

// Noop discards all measurements.
func Noop() Metrics { return noop{} }

// Normalize returns m, or Noop when m is nil.
func Normalize(m Metrics) Metrics {
	if m == nil {
		return Noop()
	}
	return m
}
