// Package metrics exposes the Prometheus counters/gauges/histograms the
// reliability layer updates, grounded on the way
// xendarboh-katzenpost's server registers prometheus.Collectors at
// startup and serves them from an internal HTTP listener. Metrics are
// entirely optional: every caller in this module takes a *Metrics that
// may be nil (guarded with a nil check), so the core protocol never
// depends on a metrics server actually running.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. The reliability layer updates the
// datagram counters and PendingGauge; the battle state machine is handed
// a *Metrics but records nothing into it, so TurnLatency is registered
// and never observed.
type Metrics struct {
	registry *prometheus.Registry

	DatagramsSent         prometheus.Counter
	DatagramsReceived     prometheus.Counter
	DatagramsRetransmitted prometheus.Counter
	DatagramsAbandoned    prometheus.Counter
	DuplicatesDropped     prometheus.Counter
	PendingGauge          prometheus.Gauge
	TurnLatency           prometheus.Histogram
}

// New builds a fresh registry and collector set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		DatagramsSent: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pokeprotocol", Name: "datagrams_sent_total",
			Help: "Non-ACK and ACK datagrams written to the socket.",
		}),
		DatagramsReceived: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pokeprotocol", Name: "datagrams_received_total",
			Help: "Datagrams read from the socket, decoded or not.",
		}),
		DatagramsRetransmitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pokeprotocol", Name: "datagrams_retransmitted_total",
			Help: "Pending sends re-emitted after their ACK deadline passed.",
		}),
		DatagramsAbandoned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pokeprotocol", Name: "datagrams_abandoned_total",
			Help: "Pending sends that exhausted their retry budget.",
		}),
		DuplicatesDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "pokeprotocol", Name: "duplicates_dropped_total",
			Help: "Inbound messages whose (sender, seq) was already delivered.",
		}),
		PendingGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "pokeprotocol", Name: "pending_acks",
			Help: "Outbound messages currently awaiting an ACK.",
		}),
		TurnLatency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "pokeprotocol", Name: "turn_seconds",
			Help:    "Wall-clock time from ATTACK_ANNOUNCE to the turn's CALCULATION_CONFIRM.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	return m
}

// Serve runs a blocking HTTP server exposing /metrics until ctx is
// canceled. Intended to run in its own goroutine alongside the peer's
// network reader and retransmit ticker.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
