// monitor/monitor.go
package monitor

import (
	"errors"
	"expvar"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/models"
)

type Metrics struct {
	Submissions      *prometheus.CounterVec
	WinnersCommitted prometheus.Counter
	WinnerRacesLost  prometheus.Counter
	Hints            *prometheus.CounterVec
	PhaseTransitions *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Resolved submissions by verdict",
		}, []string{"verdict"}),
		WinnersCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winners_committed_total",
			Help:      "Games completed by a committed winner",
		}),
		WinnerRacesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winner_races_lost_total",
			Help:      "Qualifying seekers whose winner commit found a winner already set",
		}),
		Hints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hints_total",
			Help:      "Hint lifecycle events by type and resulting status",
		}, []string{"type", "status"}),
		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Game phase transitions by target phase",
		}, []string{"phase"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		m.Submissions,
		m.WinnersCommitted,
		m.WinnerRacesLost,
		m.Hints,
		m.PhaseTransitions,
		m.RequestDuration,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	gatherer     prometheus.Gatherer
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

// NewMonitor registers the game metrics on reg. Pass prometheus.NewRegistry() in tests.
func NewMonitor(namespace string, reg *prometheus.Registry) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		gatherer:  reg,
		startTime: time.Now(),
	}
}

var publishOnce sync.Once

// StartServer serves /metrics and /debug/vars on addr in the background.
func (m *Monitor) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))

	// 添加expvar指标
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			return m.Requests()
		}))
	})
	mux.Handle("/debug/vars", expvar.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}

func (m *Monitor) ObserveSubmission(verdict models.SubmissionStatus) {
	m.metrics.Submissions.WithLabelValues(string(verdict)).Inc()
}

func (m *Monitor) WinnerCommitted() {
	m.metrics.WinnersCommitted.Inc()
}

func (m *Monitor) WinnerRaceLost() {
	m.metrics.WinnerRacesLost.Inc()
}

func (m *Monitor) ObserveHint(t models.HintType, status models.HintStatus) {
	m.metrics.Hints.WithLabelValues(string(t), string(status)).Inc()
}

func (m *Monitor) PhaseTransition(phase models.Phase) {
	m.metrics.PhaseTransitions.WithLabelValues(string(phase)).Inc()
}

func (m *Monitor) ObserveRequest(route string, code int, duration time.Duration) {
	m.metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(duration.Seconds())
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) Requests() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requestCount
}
