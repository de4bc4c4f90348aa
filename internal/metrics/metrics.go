// Package metrics exports hint-serving telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prediction outcomes.
const (
	OutcomeFound   = "found"
	OutcomeNone    = "none"
	OutcomeInvalid = "invalid"
)

// Observer captures telemetry for hint requests and user feedback.
type Observer interface {
	RecordPrediction(outcome string, patterns int, duration time.Duration)
	RecordFeedback(accepted bool)
}

// PrometheusObserver exports Observer events as Prometheus metrics.
type PrometheusObserver struct {
	predictions *prometheus.CounterVec
	duration    prometheus.Histogram
	patterns    prometheus.Histogram
	feedback    *prometheus.CounterVec
}

// NewPrometheusObserver registers the hintd collectors with reg, or with the
// default registerer when reg is nil. Collectors already registered under the
// same names are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "hintd"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &PrometheusObserver{}
	if o.predictions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Hint requests by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if o.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_duration_seconds",
		Help:      "Time spent computing a prediction.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})); err != nil {
		return nil, err
	}
	if o.patterns, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "patterns_detected",
		Help:      "Recurring patterns found per request.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})); err != nil {
		return nil, err
	}
	if o.feedback, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feedback_total",
		Help:      "User answers to served hints.",
	}, []string{"accepted"})); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// RecordPrediction counts one hint request. patterns is ignored for invalid
// requests.
func (o *PrometheusObserver) RecordPrediction(outcome string, patterns int, duration time.Duration) {
	if o == nil {
		return
	}
	o.predictions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeInvalid {
		return
	}
	o.duration.Observe(duration.Seconds())
	o.patterns.Observe(float64(patterns))
}

// RecordFeedback counts one answer to a served hint.
func (o *PrometheusObserver) RecordFeedback(accepted bool) {
	if o == nil {
		return
	}
	o.feedback.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

// Nop discards every event.
type Nop struct{}

func (Nop) RecordPrediction(string, int, time.Duration) {}

func (Nop) RecordFeedback(bool) {}
