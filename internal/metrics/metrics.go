// Package metrics exposes the node's Prometheus gauges and counters and,
// when configured with an address, serves them over HTTP.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every gauge/counter the node updates while running.
type Metrics struct {
	Height              prometheus.Gauge
	MempoolSize         prometheus.Gauge
	BlocksProduced      prometheus.Counter
	RPCMessagesProcessed *prometheus.CounterVec
}

// New registers and returns the node's metrics on a dedicated registry.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Height: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgerchain",
			Name:      "chain_height",
			Help:      "Current height of the local chain tip.",
		}),
		MempoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgerchain",
			Name:      "mempool_size",
			Help:      "Number of transactions currently tracked by the mempool.",
		}),
		BlocksProduced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerchain",
			Name:      "blocks_produced_total",
			Help:      "Total number of blocks produced by the validator loop.",
		}),
		RPCMessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerchain",
			Name:      "rpc_messages_processed_total",
			Help:      "Total number of RPC messages processed, labeled by message type.",
		}, []string{"type"}),
	}, reg
}

// Serve starts an HTTP server exposing /metrics on addr. It blocks until
// ctx is canceled, at which point the server shuts down.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
