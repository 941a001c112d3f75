package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	diagnosticRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_diagnostics",
			Name:      "runs_total",
			Help:      "Total de execuções do motor de diagnóstico, por resultado e origem.",
		},
		[]string{"outcome", "trigger"},
	)

	diagnosticRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "traffic_diagnostics",
			Name:      "run_seconds",
			Help:      "Duração das execuções do motor de diagnóstico em segundos.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	evidenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_diagnostics",
			Name:      "evidence_total",
			Help:      "Evidências emitidas, por categoria e severidade.",
		},
		[]string{"category", "severity"},
	)

	warningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_diagnostics",
			Name:      "warnings_total",
			Help:      "Avisos emitidos pelo motor, por motivo.",
		},
		[]string{"reason"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_diagnostics",
			Name:      "http_requests_total",
			Help:      "Requisições HTTP atendidas, por método e status.",
		},
		[]string{"method", "status"},
	)

	httpRequestSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "traffic_diagnostics",
			Name:      "http_request_seconds",
			Help:      "Duração das requisições HTTP em segundos.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	snapshotsImportedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "traffic_diagnostics",
			Name:      "snapshots_imported_total",
			Help:      "Snapshots gravados ou corrigidos via importação.",
		},
	)
)

// Register anexa os coletores ao registerer informado
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		diagnosticRunsTotal,
		diagnosticRunSeconds,
		evidenceTotal,
		warningsTotal,
		snapshotsImportedTotal,
		httpRequestsTotal,
		httpRequestSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveRun(duration time.Duration, outcome, trigger string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	diagnosticRunsTotal.WithLabelValues(label, trigger).Inc()
	if duration < 0 {
		duration = 0
	}
	diagnosticRunSeconds.Observe(duration.Seconds())
}

func ObserveEvidence(category, severity string) {
	evidenceTotal.WithLabelValues(category, severity).Inc()
}

func ObserveWarning(reason string) {
	warningsTotal.WithLabelValues(reason).Inc()
}

func ObserveSnapshotsImported(n int) {
	snapshotsImportedTotal.Add(float64(n))
}

func ObserveRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestSeconds.Observe(duration.Seconds())
}
