// Package metrics - Run metrics for the evaluator.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Stage names a timed step of an evaluation run.
type Stage string

const (
	// StageInference is the model call for one batch.
	StageInference Stage = "inference"
	// StageNMS is non-maximum suppression over one batch.
	StageNMS Stage = "nms"
	// StageMatching is ground-truth matching over one batch.
	StageMatching Stage = "matching"
	// StageScoring is the final per-class AP computation.
	StageScoring Stage = "scoring"
)

// Recorder receives counts and timings while an evaluation runs.
type Recorder interface {
	// ObserveBatch records the volume of one processed batch.
	ObserveBatch(images, annotations, detections, truePositives int)
	// ObserveStage records the duration of one stage.
	ObserveStage(stage Stage, d time.Duration)
}

// Nop discards everything.
type Nop struct{}

// ObserveBatch implements Recorder.
func (Nop) ObserveBatch(int, int, int, int) {}

// ObserveStage implements Recorder.
func (Nop) ObserveStage(Stage, time.Duration) {}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	batches       prometheus.Counter
	images        prometheus.Counter
	annotations   prometheus.Counter
	detections    prometheus.Counter
	truePositives prometheus.Counter
	stages        *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with reg.
//
// Arguments:
//   - reg: The registry to register with, e.g. prometheus.NewRegistry().
//
// Returns:
//   - *Prometheus: The recorder.
//   - error: An error if any collector fails to register.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eval_batches_total",
			Help: "Total batches evaluated",
		}),
		images: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eval_images_total",
			Help: "Total images evaluated",
		}),
		annotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eval_annotations_total",
			Help: "Total ground-truth boxes seen",
		}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eval_detections_total",
			Help: "Total detections kept after NMS",
		}),
		truePositives: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eval_true_positives_total",
			Help: "Total detections matched to a ground-truth box",
		}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eval_stage_duration_seconds",
			Help:    "Duration of evaluation stages",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{
		p.batches, p.images, p.annotations, p.detections, p.truePositives, p.stages,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering evaluation metrics")
		}
	}
	return p, nil
}

// ObserveBatch implements Recorder.
func (p *Prometheus) ObserveBatch(images, annotations, detections, truePositives int) {
	p.batches.Inc()
	p.images.Add(float64(images))
	p.annotations.Add(float64(annotations))
	p.detections.Add(float64(detections))
	p.truePositives.Add(float64(truePositives))
}

// ObserveStage implements Recorder.
func (p *Prometheus) ObserveStage(stage Stage, d time.Duration) {
	p.stages.WithLabelValues(string(stage)).Observe(d.Seconds())
}
