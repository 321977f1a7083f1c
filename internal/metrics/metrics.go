// Package metrics records ingestion and mirror counters with Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxSymbols caps the distinct symbol labels on recorder_last_price.
const DefaultMaxSymbols = 256

// OverflowSymbol labels prices for symbols seen after the cap is reached.
const OverflowSymbol = "_other"

// Recorder holds the recorder's collectors on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	symbols    map[string]struct{} // labels already issued on lastPrice
	maxSymbols int

	signalsTotal   *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	appendDuration prometheus.Histogram
	mirrorTotal    *prometheus.CounterVec
	mirrorDropped  prometheus.Counter
	httpRequests   *prometheus.CounterVec
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	f := promauto.With(reg)

	return &Recorder{
		registry:   reg,
		symbols:    make(map[string]struct{}),
		maxSymbols: DefaultMaxSymbols,
		signalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recorder_signals_total",
				Help: "Webhook signals processed, by outcome kind",
			},
			[]string{"outcome"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recorder_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		appendDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recorder_append_duration_seconds",
				Help:    "Duration of store appends in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		mirrorTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recorder_mirror_deliveries_total",
				Help: "Mirror deliveries, by sink and result",
			},
			[]string{"sink", "result"},
		),
		mirrorDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "recorder_mirror_dropped_total",
				Help: "Mirror snapshots dropped before delivery (queue full or superseded)",
			},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recorder_http_requests_total",
				Help: "HTTP requests, by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
	}
}

// RecordSignal counts one ingest outcome ("success" or an error kind).
func (r *Recorder) RecordSignal(outcome string) {
	r.signalsTotal.WithLabelValues(outcome).Inc()
}

// RecordLastPrice records the last price for a symbol. Symbols arrive from
// unauthenticated payloads, so once maxSymbols labels exist any new symbol
// is folded into OverflowSymbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(r.symbolLabel(symbol)).Set(price)
}

func (r *Recorder) symbolLabel(symbol string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.symbols[symbol]; ok {
		return symbol
	}
	if len(r.symbols) >= r.maxSymbols {
		return OverflowSymbol
	}
	r.symbols[symbol] = struct{}{}
	return symbol
}

// RecordAppend records append latency in seconds.
func (r *Recorder) RecordAppend(seconds float64) {
	r.appendDuration.Observe(seconds)
}

// RecordMirror counts a delivery attempt result for a sink.
func (r *Recorder) RecordMirror(sink string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	r.mirrorTotal.WithLabelValues(sink, result).Inc()
}

// RecordMirrorDropped counts a snapshot that never reached the queue.
func (r *Recorder) RecordMirrorDropped() {
	r.mirrorDropped.Inc()
}

// RecordHTTP counts one served request.
func (r *Recorder) RecordHTTP(route, method, status string) {
	r.httpRequests.WithLabelValues(route, method, status).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
