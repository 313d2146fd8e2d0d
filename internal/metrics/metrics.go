// Package metrics exposes prometheus instrumentation for the validation
// pipeline and the trigger engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cream-quant/synthcore/internal/pipeline"
	"github.com/cream-quant/synthcore/internal/trigger"
)

// Collector holds the pipeline's prometheus instruments.
type Collector struct {
	validationsTotal *prometheus.CounterVec
	gateResults      *prometheus.CounterVec
	pipelineSeconds  prometheus.Histogram
	triggerTotal     *prometheus.CounterVec
}

// NewCollector builds the instrument set and registers it with the given
// registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synthcore",
			Name:      "validations_total",
			Help:      "Validation pipeline runs by overall outcome.",
		}, []string{"outcome"}),
		gateResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synthcore",
			Name:      "gate_results_total",
			Help:      "Per-gate pass/fail counts.",
		}, []string{"gate", "outcome"}),
		pipelineSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "synthcore",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall-clock time of a full pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		triggerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synthcore",
			Name:      "trigger_decisions_total",
			Help:      "Trigger engine decisions.",
		}, []string{"decision"}),
	}
	reg.MustRegister(c.validationsTotal, c.gateResults, c.pipelineSeconds, c.triggerTotal)
	return c
}

// ObserveValidation records one pipeline run.
func (c *Collector) ObserveValidation(report *pipeline.ValidationReport, elapsed time.Duration) {
	c.validationsTotal.WithLabelValues(outcome(report.OverallPassed)).Inc()
	c.pipelineSeconds.Observe(elapsed.Seconds())

	c.gateResults.WithLabelValues("dsr", outcome(report.DSR.Passed)).Inc()
	c.gateResults.WithLabelValues("pbo", outcome(report.PBO.Passed)).Inc()
	c.gateResults.WithLabelValues("ic", outcome(report.IC.Passed)).Inc()
	c.gateResults.WithLabelValues("walk_forward", outcome(report.WalkForward.Passed)).Inc()
	c.gateResults.WithLabelValues("orthogonality", outcome(report.Orthogonality.Passed)).Inc()
}

// ObserveTrigger records one trigger evaluation.
func (c *Collector) ObserveTrigger(d trigger.Decision) {
	if d.ShouldTrigger {
		c.triggerTotal.WithLabelValues("trigger").Inc()
	} else {
		c.triggerTotal.WithLabelValues("hold").Inc()
	}
}

func outcome(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
