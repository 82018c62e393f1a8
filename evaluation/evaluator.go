package evaluation

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-eval/config"
	"github.com/nvr-ai/go-eval/dataset"
	"github.com/nvr-ai/go-eval/metrics"
	"github.com/nvr-ai/go-eval/models/model"
	"github.com/nvr-ai/go-eval/models/postprocess"
)

var (
	// ErrFinalized is returned when an evaluator is used after it produced its report.
	ErrFinalized = errors.New("evaluation already finalized")
	// ErrBatchMismatch is returned when the model output does not line up with the batch.
	ErrBatchMismatch = errors.New("model output does not match batch")
)

type state int

const (
	stateRunning state = iota
	stateDone
)

// Evaluator drives one evaluation run and owns its accumulators.
//
// An Evaluator is single use: create it at run start, feed it batches, and Finalize it.
// It is not safe for concurrent use.
type Evaluator struct {
	cfg      config.Config
	nms      postprocess.NMSConfig
	model    model.Model
	logger   *zap.Logger
	recorder metrics.Recorder

	state   state
	records []MatchRecord
	labels  []int
	report  Report
	started time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder. Defaults to metrics.Nop.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Evaluator) {
		if r != nil {
			e.recorder = r
		}
	}
}

// New creates an evaluator for one run.
//
// Arguments:
//   - cfg: Thresholds and sizes for the run.
//   - m: The detector under evaluation.
//   - opts: Optional logger and recorder.
//
// Returns:
//   - *Evaluator: An evaluator in the running state.
//   - error: An error if the configuration is invalid or the model is nil.
func New(cfg config.Config, m model.Model, opts ...Option) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("evaluation requires a model")
	}

	e := &Evaluator{
		cfg:      cfg,
		nms:      cfg.NMS(),
		model:    m,
		logger:   zap.NewNop(),
		recorder: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run rewinds the loader, evaluates every batch it yields and finalizes the run.
//
// The context is checked between batches; cancellation abandons the run with the
// context's error.
//
// Arguments:
//   - ctx: Controls the run between batches and is passed to the loader and model.
//   - loader: The validation batches.
//
// Returns:
//   - *Report: The metric bundle, or the no-detections outcome.
//   - error: An error if loading, inference or the batch contents fail.
func (e *Evaluator) Run(ctx context.Context, loader dataset.Loader) (*Report, error) {
	if e.state == stateDone {
		return nil, ErrFinalized
	}
	e.start()
	if err := loader.Reset(); err != nil {
		return nil, errors.Wrap(err, "resetting loader")
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := loader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "loading batch %d", e.report.Batches)
		}
		if err := e.AddBatch(ctx, batch); err != nil {
			return nil, err
		}
	}

	return e.Finalize()
}

// AddBatch evaluates one batch and folds its results into the run.
//
// A failed batch leaves the accumulators untouched.
//
// Arguments:
//   - ctx: Passed to the model.
//   - batch: Images and their normalized targets.
//
// Returns:
//   - error: ErrFinalized after Finalize, or an error from the batch or the model.
func (e *Evaluator) AddBatch(ctx context.Context, batch dataset.Batch) error {
	if e.state == stateDone {
		return ErrFinalized
	}
	e.start()
	index := e.report.Batches

	truth, err := batch.Annotations(e.cfg.ImageSize)
	if err != nil {
		return errors.Wrapf(err, "batch %d", index)
	}

	start := time.Now()
	raw, err := e.model.Infer(ctx, batch.Images)
	if err != nil {
		return errors.Wrapf(err, "inference on batch %d", index)
	}
	if len(raw) != len(batch.Images) {
		return errors.Wrapf(ErrBatchMismatch, "batch %d: %d outputs for %d images", index, len(raw), len(batch.Images))
	}
	inference := time.Since(start)

	start = time.Now()
	kept := make([][]postprocess.Result, len(raw))
	for i, candidates := range raw {
		if e.cfg.NormalizedOutputs {
			candidates = scaleCandidates(candidates, float32(e.cfg.ImageSize))
		}
		kept[i] = postprocess.Suppress(candidates, e.nms)
	}
	nms := time.Since(start)

	start = time.Now()
	var records []MatchRecord
	tp := 0
	for i, dets := range kept {
		for _, r := range Match(dets, truth[i], e.cfg.IoUThreshold) {
			if r.TruePositive {
				tp++
			}
			records = append(records, r)
		}
	}
	matching := time.Since(start)

	e.records = append(e.records, records...)
	e.labels = append(e.labels, batch.Labels()...)
	e.report.Batches++
	e.report.Images += len(batch.Images)
	e.report.Annotations += len(batch.Targets)
	e.report.Detections += len(records)
	e.report.TruePositives += tp
	e.report.Timings.Inference += inference
	e.report.Timings.NMS += nms
	e.report.Timings.Matching += matching

	e.recorder.ObserveBatch(len(batch.Images), len(batch.Targets), len(records), tp)
	e.recorder.ObserveStage(metrics.StageInference, inference)
	e.recorder.ObserveStage(metrics.StageNMS, nms)
	e.recorder.ObserveStage(metrics.StageMatching, matching)

	e.logger.Debug("evaluated batch",
		zap.Int("batch", index),
		zap.Int("images", len(batch.Images)),
		zap.Int("targets", len(batch.Targets)),
		zap.Int("detections", len(records)),
		zap.Int("true_positives", tp),
		zap.Duration("inference", inference),
	)
	return nil
}

// Finalize computes the metrics over everything added so far and ends the run.
//
// Returns:
//   - *Report: OutcomeMeasured with per-class metrics, or OutcomeNoDetections when no
//     detection survived NMS in the whole dataset.
//   - error: ErrFinalized when called twice.
func (e *Evaluator) Finalize() (*Report, error) {
	if e.state == stateDone {
		return nil, ErrFinalized
	}
	e.state = stateDone

	report := e.report
	if len(e.records) == 0 {
		report.Outcome = OutcomeNoDetections
		report.Timings.Total = e.elapsed()
		e.logger.Warn("no detections over the whole validation set",
			zap.Int("images", report.Images),
			zap.Int("annotations", report.Annotations),
		)
		return &report, nil
	}

	start := time.Now()
	report.Classes = ComputeAPParallel(e.records, e.labels, e.cfg.APWorkers)
	report.Outcome = OutcomeMeasured
	report.Timings.Scoring = time.Since(start)
	report.Timings.Total = e.elapsed()
	e.recorder.ObserveStage(metrics.StageScoring, report.Timings.Scoring)

	// The accumulators are consumed by scoring.
	e.records, e.labels = nil, nil

	e.logger.Info("evaluation finished",
		zap.Int("images", report.Images),
		zap.Int("detections", report.Detections),
		zap.Int("classes", len(report.Classes)),
		zap.Float64("mAP", report.MeanAP()),
		zap.Duration("total", report.Timings.Total),
	)
	return &report, nil
}

// start marks the beginning of the run on the first Run or AddBatch.
func (e *Evaluator) start() {
	if e.started.IsZero() {
		e.started = time.Now()
	}
}

func (e *Evaluator) elapsed() time.Duration {
	if e.started.IsZero() {
		return 0
	}
	return time.Since(e.started)
}

func scaleCandidates(candidates []postprocess.RawDetection, f float32) []postprocess.RawDetection {
	scaled := make([]postprocess.RawDetection, len(candidates))
	for i, c := range candidates {
		c.Box = c.Box.Scale(f)
		scaled[i] = c
	}
	return scaled
}
