package yolov4

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-eval/models/postprocess"
)

// PostProcess splits the runner output into per-image candidate collections.
//
// Arguments:
//   - output: The flat runner output for one chunk.
//   - images: The number of image blocks in the output.
//
// Returns:
//   - [][]postprocess.RawDetection: The candidates of each image block.
//   - error: An error if the output does not divide into rows of 5 + NumClasses values.
func (m *YOLOv4) PostProcess(output []float32, images int) ([][]postprocess.RawDetection, error) {
	cols := 5 + m.options.NumClasses
	if images <= 0 || len(output)%(images*cols) != 0 {
		return nil, errors.Errorf("output of %d values does not split into %d images of %d-column rows",
			len(output), images, cols)
	}
	rows := len(output) / (images * cols)
	if rows == 0 {
		return make([][]postprocess.RawDetection, images), nil
	}

	t := tensor.New(tensor.WithShape(images, rows, cols), tensor.WithBacking(output))
	decoded, err := postprocess.DecodeTensor(t)
	if err != nil {
		return nil, errors.Wrap(err, "decoding yolov4 output")
	}
	return decoded, nil
}
