// Package telemetry owns the prometheus collectors and the fasthttp
// endpoint that exposes them.
package telemetry

import (
	"context"
	"log/slog"
	"net"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// NewRegistry returns a registry preloaded with runtime gauges.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "go_goroutines",
			Help: "Number of active goroutines.",
		}, func() float64 { return float64(runtime.NumGoroutine()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "go_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		}, func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "go_gc_cycles_total",
			Help: "Total number of GC cycles.",
		}, func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.NumGC)
		}),
	)
	return reg
}

// MetricsHandler serves reg in the prometheus text format.
func MetricsHandler(reg *prometheus.Registry) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// Serve runs a fasthttp server on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, h fasthttp.RequestHandler, log *slog.Logger) error {
	srv := &fasthttp.Server{
		Handler:      h,
		Name:         "codeuchat",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	log.Info("http_listening", "addr", ln.Addr().String())
	select {
	case <-ctx.Done():
		if err := srv.Shutdown(); err != nil {
			log.Error("http_shutdown_failed", "error", err)
		}
		return nil
	case err := <-errc:
		return err
	}
}
