package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/flyknight/logger"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	Ticks            prometheus.Counter
	TickDuration     prometheus.Histogram
	FramesReceived   prometheus.Counter
	FramesSent       prometheus.Counter
	FramesDropped    prometheus.Counter
	ProtocolErrors   prometheus.Counter
	InputsDropped    *prometheus.CounterVec
	ContestedPickups prometheus.Counter
	SnapshotBytes    prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of joined players",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Simulation ticks executed",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one simulation step including broadcast",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames accepted from clients",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound frames queued to clients",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped on a full send queue",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Malformed inbound frames",
		}),
		InputsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inputs_dropped_total",
			Help:      "Inbound commands refused before reaching the simulation",
		}, []string{"reason"}),
		ContestedPickups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contested_pickups_total",
			Help:      "Items requested by more than one player in the same tick",
		}),
		SnapshotBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Encoded snapshot frame size",
			Buckets:   prometheus.ExponentialBuckets(256, 2, 10),
		}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.Ticks,
		m.TickDuration,
		m.FramesReceived,
		m.FramesSent,
		m.FramesDropped,
		m.ProtocolErrors,
		m.InputsDropped,
		m.ContestedPickups,
		m.SnapshotBytes,
	)

	return m
}

// StatusFunc reports the current match status for /status.
type StatusFunc func() any

var (
	startTime   = time.Now()
	publishOnce sync.Once
)

type Monitor struct {
	metrics  *Metrics
	registry *prometheus.Registry
	server   *http.Server
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		metrics:  NewMetrics(namespace, reg),
		registry: reg,
	}
}

func (m *Monitor) Metrics() *Metrics { return m.metrics }

func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

// Handler serves /metrics, /debug/vars and /status.
func (m *Monitor) Handler(status StatusFunc) http.Handler {
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(startTime).Seconds()
		}))
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.Handle("/debug/vars", expvar.Handler())
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body any = struct{}{}
		if status != nil {
			body = status()
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Log.Warnw("status encode failed", "error", err)
		}
	})
	return r
}

func (m *Monitor) StartServer(addr string, status StatusFunc) {
	m.server = &http.Server{Addr: addr, Handler: m.Handler(status), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorw("monitor server stopped", "addr", addr, "error", err)
		}
	}()
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitor) SetOnlinePlayers(n int) {
	m.metrics.OnlinePlayers.Set(float64(n))
}

func (m *Monitor) ObserveTick(d time.Duration) {
	m.metrics.Ticks.Inc()
	m.metrics.TickDuration.Observe(d.Seconds())
}

func (m *Monitor) IncFramesReceived() {
	m.metrics.FramesReceived.Inc()
}

func (m *Monitor) AddFramesSent(n int) {
	m.metrics.FramesSent.Add(float64(n))
}

func (m *Monitor) IncFramesDropped() {
	m.metrics.FramesDropped.Inc()
}

func (m *Monitor) IncProtocolErrors() {
	m.metrics.ProtocolErrors.Inc()
}

// InputDropped takes the bounded reason set of the ingest package.
func (m *Monitor) InputDropped(reason string) {
	m.metrics.InputsDropped.WithLabelValues(reason).Inc()
}

func (m *Monitor) AddContestedPickups(n int) {
	if n > 0 {
		m.metrics.ContestedPickups.Add(float64(n))
	}
}

func (m *Monitor) ObserveSnapshotBytes(n int) {
	m.metrics.SnapshotBytes.Observe(float64(n))
}
