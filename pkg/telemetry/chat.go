package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Chat holds the chat server collectors.
type Chat struct {
	Requests      *prometheus.CounterVec
	RequestTime   *prometheus.HistogramVec
	Rejected      *prometheus.CounterVec
	RelayPolls    *prometheus.CounterVec
	RelayIngested *prometheus.CounterVec
	RelayPushes   *prometheus.CounterVec
}

func NewChat(reg prometheus.Registerer) *Chat {
	c := &Chat{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeuchat_requests_total",
			Help: "Requests handled, by request code.",
		}, []string{"code"}),
		RequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codeuchat_request_seconds",
			Help:    "Time spent in a request task, by request code.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"code"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeuchat_mutations_rejected_total",
			Help: "Mutations refused by validation, by request code.",
		}, []string{"code"}),
		RelayPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeuchat_relay_polls_total",
			Help: "Relay polls, by result.",
		}, []string{"result"}),
		RelayIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeuchat_relay_ingested_total",
			Help: "Entities materialized from relay bundles, by kind.",
		}, []string{"kind"}),
		RelayPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeuchat_relay_pushes_total",
			Help: "Outbound relay writes, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(c.Requests, c.RequestTime, c.Rejected, c.RelayPolls, c.RelayIngested, c.RelayPushes)
	return c
}

// ObserveRequest records one handled request.
func (c *Chat) ObserveRequest(code string, d time.Duration) {
	c.Requests.WithLabelValues(code).Inc()
	c.RequestTime.WithLabelValues(code).Observe(d.Seconds())
}

// Gauge registers a read-only gauge backed by fn. fn must be safe to call
// from the scrape goroutine.
func Gauge(reg prometheus.Registerer, name, help string, fn func() float64) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}
