// Package metrics exposes cart sync outcomes to Prometheus.
package metrics

import (
	"net/http"

	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cartsync"

// Recorder implements cart.Recorder on its own registry.
type Recorder struct {
	Registry *prometheus.Registry

	operations    *prometheus.CounterVec
	rollbacks     *prometheus.CounterVec
	debounced     *prometheus.CounterVec
	loads         *prometheus.CounterVec
	pendingWrites prometheus.Gauge
}

var _ cart.Recorder = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "operations_total",
				Help:      "Cart operations by type and result.",
			},
			[]string{"op", "result"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "rollbacks_total",
				Help:      "Optimistic updates restored after a remote failure.",
			},
			[]string{"op"},
		),
		debounced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "debounced_writes_total",
				Help:      "Coalesced quantity writes sent to the backend.",
			},
			[]string{"result"},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "loads_total",
				Help:      "Authoritative cart fetches.",
			},
			[]string{"result"},
		),
		pendingWrites: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "pending_writes",
				Help:      "Quantity writes waiting for the debounce window.",
			},
		),
	}

	r.Registry.MustRegister(
		r.operations,
		r.rollbacks,
		r.debounced,
		r.loads,
		r.pendingWrites,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return r
}

// Handler returns an HTTP handler exposing the registered metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Operation(op string, err error) {
	r.operations.WithLabelValues(op, result(err)).Inc()
}

func (r *Recorder) Rollback(op string) {
	r.rollbacks.WithLabelValues(op).Inc()
}

func (r *Recorder) DebouncedWrite(err error) {
	r.debounced.WithLabelValues(result(err)).Inc()
}

func (r *Recorder) Load(err error) {
	r.loads.WithLabelValues(result(err)).Inc()
}

func (r *Recorder) PendingWrites(n int) {
	r.pendingWrites.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
