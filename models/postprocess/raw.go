package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-eval/images"
)

// rowHeader is the number of leading values per candidate row: cx, cy, w, h, objectness.
const rowHeader = 5

// RawDetection is one candidate location emitted by a detector before any filtering.
type RawDetection struct {
	// Box is the candidate box in center form.
	Box images.CenterBox
	// Objectness is the probability that the box contains any object.
	Objectness float32
	// ClassScores holds one probability per class.
	ClassScores []float32
}

// Confidence returns objectness × the best class score and the index of that class.
//
// Ties between class scores resolve to the lowest class index. A candidate with no class
// scores has confidence 0 and class -1.
func (r RawDetection) Confidence() (float32, int) {
	if len(r.ClassScores) == 0 {
		return 0, -1
	}
	best, class := r.ClassScores[0], 0
	for i, s := range r.ClassScores[1:] {
		if s > best {
			best, class = s, i+1
		}
	}
	return r.Objectness * best, class
}

// DecodeRows unpacks a flat slice of candidate rows laid out as
// [cx, cy, w, h, objectness, class_0 ... class_{n-1}].
//
// Arguments:
//   - data: The packed rows for a single image.
//   - numClasses: The number of class scores per row.
//
// Returns:
//   - []RawDetection: One candidate per row. ClassScores alias data.
//   - error: An error if data is not a whole number of rows.
func DecodeRows(data []float32, numClasses int) ([]RawDetection, error) {
	if numClasses <= 0 {
		return nil, errors.Errorf("invalid class count %d", numClasses)
	}
	cols := rowHeader + numClasses
	if len(data)%cols != 0 {
		return nil, errors.Errorf("output length %d is not a multiple of row size %d", len(data), cols)
	}

	rows := len(data) / cols
	out := make([]RawDetection, rows)
	for i := range out {
		row := data[i*cols : (i+1)*cols : (i+1)*cols]
		out[i] = RawDetection{
			Box:         images.CenterBox{CX: row[0], CY: row[1], W: row[2], H: row[3]},
			Objectness:  row[4],
			ClassScores: row[rowHeader:],
		}
	}
	return out, nil
}

// DecodeTensor unpacks a float32 tensor shaped (batch, candidates, 5+classes) into one
// candidate collection per image. A 2-D (candidates, 5+classes) tensor is treated as a
// batch of one.
//
// Arguments:
//   - t: The raw detector output.
//
// Returns:
//   - [][]RawDetection: Candidates per image, in batch order.
//   - error: An error if the dtype or shape is not supported.
func DecodeTensor(t tensor.Tensor) ([][]RawDetection, error) {
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("unsupported output dtype %v", t.Dtype())
	}

	shape := t.Shape()
	var batch, cols int
	switch t.Dims() {
	case 2:
		batch, cols = 1, shape[1]
	case 3:
		batch, cols = shape[0], shape[2]
	default:
		return nil, errors.Errorf("unsupported output shape %v", shape)
	}
	if cols <= rowHeader {
		return nil, errors.Errorf("output shape %v has no class scores", shape)
	}

	if v, ok := t.(tensor.View); ok && v.IsMaterializable() {
		t = v.Materialize()
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected backing %T", t.Data())
	}

	per := len(data) / batch
	out := make([][]RawDetection, batch)
	for b := 0; b < batch; b++ {
		dets, err := DecodeRows(data[b*per:(b+1)*per], cols-rowHeader)
		if err != nil {
			return nil, errors.Wrapf(err, "image %d", b)
		}
		out[b] = dets
	}
	return out, nil
}
