// Package metrics はパイプラインと HTTP の Prometheus 指標を提供します。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "story_kit"

// 結果ラベル
const (
	OutcomeSuccess     = "success"
	OutcomeSoftFailure = "soft_failure"
	OutcomeError       = "error"
	OutcomeExhausted   = "exhausted"
	OutcomeCancelled   = "cancelled"
)

// Recorder はパイプラインが記録する指標の契約です。
type Recorder interface {
	RunFinished(status string)
	PhaseDuration(phase string, d time.Duration)
	MediaAttempt(kind, outcome string)
	CreditDecrement(outcome string)
}

// Nop は何も記録しない Recorder です。
type Nop struct{}

func (Nop) RunFinished(string)                  {}
func (Nop) PhaseDuration(string, time.Duration) {}
func (Nop) MediaAttempt(string, string)         {}
func (Nop) CreditDecrement(string)              {}

// Prometheus は Recorder の Prometheus 実装です。
type Prometheus struct {
	RunsTotal          *prometheus.CounterVec
	PhaseSeconds       *prometheus.HistogramVec
	MediaAttemptsTotal *prometheus.CounterVec
	CreditTotal        *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewPrometheus は reg に指標を登録します。reg が nil の場合は既定のレジストリを使います。
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Prometheus{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "runs_total",
				Help:      "Total number of finished generation runs",
			},
			[]string{"status"},
		),
		PhaseSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "phase_duration_seconds",
				Help:      "Generation phase duration in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"phase"},
		),
		MediaAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "media_attempts_total",
				Help:      "Image and audio generation attempts by outcome",
			},
			[]string{"kind", "outcome"},
		),
		CreditTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credit",
				Name:      "decrements_total",
				Help:      "Credit decrement calls by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}
}

func (p *Prometheus) RunFinished(status string) {
	p.RunsTotal.WithLabelValues(status).Inc()
}

func (p *Prometheus) PhaseDuration(phase string, d time.Duration) {
	p.PhaseSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *Prometheus) MediaAttempt(kind, outcome string) {
	p.MediaAttemptsTotal.WithLabelValues(kind, outcome).Inc()
}

func (p *Prometheus) CreditDecrement(outcome string) {
	p.CreditTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTP は HTTP リクエスト1件を記録します。
func (p *Prometheus) ObserveHTTP(method, path, status string, d time.Duration) {
	p.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	p.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
