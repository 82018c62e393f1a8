// Package yolov4 - YOLOv4 model.
package yolov4

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-eval/images"
	"github.com/nvr-ai/go-eval/models/model"
	"github.com/nvr-ai/go-eval/models/postprocess"
)

// Runner executes the network on a packed input batch.
//
// The input holds BatchSize images, each as planar RGB of InputSize x InputSize floats. The
// output holds BatchSize blocks of candidate rows, each row laid out as
// cx, cy, w, h, objectness, class scores. The output is kept by the caller, so Run must
// return a fresh slice each time.
type Runner interface {
	BatchSize() int
	Run(input []float32) ([]float32, error)
	Close() error
}

// NewModelArgs is the arguments for creating a new YOLOv4 model.
type NewModelArgs struct {
	// Path to the weights, informational.
	Path string `json:"path" yaml:"path"`
	// InputSize is the side of the square network input.
	InputSize int `json:"input_size" yaml:"input_size"`
	// NumClasses is the number of class scores per candidate row.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// Runner executes the network.
	Runner Runner `json:"-" yaml:"-"`
}

// YOLOv4 is the instance of the YOLOv4 model. It reuses one input buffer and is not safe
// for concurrent use.
type YOLOv4 struct {
	options model.Options
	runner  Runner
	input   []float32
}

// NewModel creates a new model.
//
// Arguments:
//   - args: The arguments for creating a new model.
//
// Returns:
//   - *YOLOv4: The model.
//   - error: An error if the arguments are incomplete.
func NewModel(args NewModelArgs) (*YOLOv4, error) {
	if args.Runner == nil {
		return nil, errors.New("NewModel requires a runner")
	}
	if args.InputSize <= 0 {
		return nil, errors.Errorf("NewModel requires a positive input size, got %d", args.InputSize)
	}
	if args.NumClasses <= 0 {
		return nil, errors.Errorf("NewModel requires a positive class count, got %d", args.NumClasses)
	}
	if args.Runner.BatchSize() <= 0 {
		return nil, errors.Errorf("runner batch size %d", args.Runner.BatchSize())
	}

	return &YOLOv4{
		options: model.Options{
			Name:       model.ModelNameYOLOv4,
			Family:     model.ModelFamilyYOLO,
			Path:       args.Path,
			InputSize:  args.InputSize,
			NumClasses: args.NumClasses,
		},
		runner: args.Runner,
		input:  make([]float32, args.Runner.BatchSize()*imageFloats(args.InputSize)),
	}, nil
}

// Options returns the options for the YOLOv4 model.
func (m *YOLOv4) Options() model.Options {
	return m.options
}

// Infer runs the network over the batch in runner sized chunks.
//
// Arguments:
//   - ctx: Checked between chunks.
//   - batch: The images to evaluate.
//
// Returns:
//   - [][]postprocess.RawDetection: The decoded candidates of every image, in input order.
//   - error: An error if preprocessing, the runner or decoding fails.
func (m *YOLOv4) Infer(ctx context.Context, batch []images.Image) ([][]postprocess.RawDetection, error) {
	size := m.runner.BatchSize()
	out := make([][]postprocess.RawDetection, 0, len(batch))

	for start := 0; start < len(batch); start += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+size, len(batch))

		if err := m.PreProcess(batch[start:end], m.input); err != nil {
			return nil, errors.Wrapf(err, "preprocessing images %d-%d", start, end-1)
		}
		output, err := m.runner.Run(m.input)
		if err != nil {
			return nil, errors.Wrapf(err, "running images %d-%d", start, end-1)
		}
		decoded, err := m.PostProcess(output, size)
		if err != nil {
			return nil, err
		}
		// Padding slots at the tail of the last chunk are dropped.
		out = append(out, decoded[:end-start]...)
	}
	return out, nil
}

// Close releases the runner.
func (m *YOLOv4) Close() error {
	return m.runner.Close()
}
