package automerge

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/logfields"
)

const metricNamespace = "automerger"

// MetricsJobName is the job label value of metrics pushed to a Pushgateway.
const MetricsJobName = "automerger"

const (
	processedEventsMetricName = "processed_events_total"
	candidatesMetricName      = "candidates_total"
	mergeDecisionsMetricName  = "merge_decisions_total"
)

const (
	eventKindLabel  = "event_kind"
	resultLabel     = "result"
	repositoryLabel = "repository"
)

type resultLabelVal string

const (
	resultLabelMergedVal          resultLabelVal = "merged"
	resultLabelSkippedNotCleanVal resultLabelVal = "skipped_not_clean"
	resultLabelFailedVal          resultLabelVal = "failed"
)

// Metrics records the outcome of a run.
// Metrics are kept in a registry that is independent of the global
// prometheus registry.
type Metrics struct {
	logger          *zap.Logger
	registry        *prometheus.Registry
	processedEvents *prometheus.CounterVec
	candidates      prometheus.Counter
	mergeDecisions  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		logger:   zap.L().Named(loggerName).Named("metrics"),
		registry: reg,
		processedEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      processedEventsMetricName,
				Help:      "count of processed CI events",
			},
			[]string{eventKindLabel},
		),
		candidates: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      candidatesMetricName,
				Help:      "count of pull requests that were evaluated for merging",
			},
		),
		mergeDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      mergeDecisionsMetricName,
				Help:      "count of merge decisions by result",
			},
			[]string{resultLabel},
		),
	}
}

func (m *Metrics) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *Metrics) ProcessedEventsInc(kind EventKind) {
	cnt, err := m.processedEvents.GetMetricWith(prometheus.Labels{eventKindLabel: kind.String()})
	if err != nil {
		m.logGetMetricFailed(processedEventsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *Metrics) CandidatesAdd(cnt int) {
	m.candidates.Add(float64(cnt))
}

func (m *Metrics) mergeDecisionInc(result resultLabelVal) {
	cnt, err := m.mergeDecisions.GetMetricWith(prometheus.Labels{resultLabel: string(result)})
	if err != nil {
		m.logGetMetricFailed(mergeDecisionsMetricName, err)
		return
	}

	cnt.Inc()
}

// Push sends all recorded metrics to the Prometheus Pushgateway at
// gatewayURL, grouped by repository.
func (m *Metrics) Push(ctx context.Context, gatewayURL, repository string) error {
	return push.New(gatewayURL, MetricsJobName).
		Gatherer(m.registry).
		Grouping(repositoryLabel, repository).
		PushContext(ctx)
}
