// Package config - Evaluation run configuration.
package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-eval/dataset"
	"github.com/nvr-ai/go-eval/inference"
	"github.com/nvr-ai/go-eval/models/postprocess"
)

// Config holds the thresholds and sizes consumed by an evaluation run.
type Config struct {
	// ConfThreshold is the minimum objectness × class score a candidate needs to survive NMS.
	ConfThreshold float32 `json:"conf_thres" yaml:"conf_thres"`
	// NMSThreshold is the IoU at or above which NMS suppresses a same-class box.
	NMSThreshold float32 `json:"nms_thres" yaml:"nms_thres"`
	// IoUThreshold is the IoU a detection needs with a ground-truth box to count as a hit.
	IoUThreshold float32 `json:"iou_thres" yaml:"iou_thres"`
	// ImageSize is the pixel scale normalized boxes are multiplied by.
	ImageSize int `json:"img_size" yaml:"img_size"`
	// BatchSize is the number of images per model run. Session maps it onto the ONNX
	// session's leading tensor dimension.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
	// Workers is the number of loader workers prefetching batches. 0 fetches on one worker.
	Workers int `json:"workers" yaml:"workers"`
	// ClassAgnosticNMS lets boxes of different classes suppress each other.
	ClassAgnosticNMS bool `json:"class_agnostic_nms" yaml:"class_agnostic_nms"`
	// MaxDetections caps the detections kept per image. Zero means unlimited.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// MaxCandidates caps the ranked candidates entering NMS per image. Zero means unlimited.
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates"`
	// NormalizedOutputs marks raw model boxes as normalized to [0, 1]; they are then
	// scaled by ImageSize before NMS.
	NormalizedOutputs bool `json:"normalized_outputs" yaml:"normalized_outputs"`
	// APWorkers is the number of classes scored concurrently. 1 scores sequentially.
	APWorkers int `json:"ap_workers" yaml:"ap_workers"`
}

// Default returns the evaluation defaults: a low confidence threshold so recall is
// measured over the whole precision-recall curve.
//
// Returns:
//   - Config: The default configuration.
func Default() Config {
	return Config{
		ConfThreshold: 0.01,
		NMSThreshold:  0.4,
		IoUThreshold:  0.5,
		ImageSize:     416,
		BatchSize:     8,
		Workers:       4,
		MaxDetections: 300,
		MaxCandidates: 30000,
		APWorkers:     1,
	}
}

// Load reads a YAML file and overlays it on the defaults.
//
// Arguments:
//   - path: Path to the YAML configuration file.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if the file cannot be read, parsed or fails validation.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every out-of-range field.
//
// Returns:
//   - error: nil when valid, otherwise all violations combined.
func (c Config) Validate() error {
	var err error
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		err = multierr.Append(err, errors.Errorf("conf_thres %v outside [0, 1]", c.ConfThreshold))
	}
	if c.NMSThreshold <= 0 || c.NMSThreshold > 1 {
		err = multierr.Append(err, errors.Errorf("nms_thres %v outside (0, 1]", c.NMSThreshold))
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		err = multierr.Append(err, errors.Errorf("iou_thres %v outside (0, 1]", c.IoUThreshold))
	}
	if c.ImageSize <= 0 {
		err = multierr.Append(err, errors.Errorf("img_size must be positive, got %d", c.ImageSize))
	}
	if c.BatchSize <= 0 {
		err = multierr.Append(err, errors.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.Workers < 0 {
		err = multierr.Append(err, errors.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.MaxDetections < 0 {
		err = multierr.Append(err, errors.Errorf("max_detections must not be negative, got %d", c.MaxDetections))
	}
	if c.MaxCandidates < 0 {
		err = multierr.Append(err, errors.Errorf("max_candidates must not be negative, got %d", c.MaxCandidates))
	}
	if c.APWorkers < 0 {
		err = multierr.Append(err, errors.Errorf("ap_workers must not be negative, got %d", c.APWorkers))
	}
	return errors.Wrap(err, "invalid config")
}

// NMS returns the suppression settings derived from the configuration.
func (c Config) NMS() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		ConfidenceThreshold: c.ConfThreshold,
		IoUThreshold:        c.NMSThreshold,
		ClassAgnostic:       c.ClassAgnosticNMS,
		MaxCandidates:       c.MaxCandidates,
		MaxDetections:       c.MaxDetections,
	}
}

// Prefetch returns the loader worker settings derived from the configuration.
//
// Arguments:
//   - shuffle: Visit batches in a random order.
//   - seed: Seed for the shuffle order.
//
// Returns:
//   - dataset.PrefetchOptions: Options for dataset.NewPrefetcher.
func (c Config) Prefetch(shuffle bool, seed int64) dataset.PrefetchOptions {
	return dataset.PrefetchOptions{
		Workers: c.Workers,
		Shuffle: shuffle,
		Seed:    seed,
	}
}

// Session fills the batch and input sizes of base from the configuration. Fields that
// describe the model file itself are left as given.
func (c Config) Session(base inference.SessionOptions) inference.SessionOptions {
	base.BatchSize = c.BatchSize
	if base.InputSize <= 0 {
		base.InputSize = c.ImageSize
	}
	return base
}
