// Package dataset - Batches of validation images with their ground truth, and the loaders
// that deliver them to the evaluator.
package dataset

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-eval/images"
)

// Target is a ground-truth label as a data loader emits it: the box is in center form,
// normalized to [0, 1] relative to the model input size.
type Target struct {
	// ImageIndex is the position of the labelled image within its batch.
	ImageIndex int `json:"image_index" yaml:"image_index"`
	// Class is the labelled class id.
	Class int `json:"class" yaml:"class"`
	// Box is the normalized center-form box.
	Box images.CenterBox `json:"box" yaml:"box"`
}

// Annotation is a ground-truth box in corner form and pixel units.
type Annotation struct {
	ImageIndex int         `json:"image_index" yaml:"image_index"`
	Class      int         `json:"class" yaml:"class"`
	Box        images.Rect `json:"box" yaml:"box"`
}

// Annotation rescales the target to pixels and converts it to corner form.
//
// Arguments:
//   - imgSize: The pixel size the normalized coordinates are relative to.
//
// Returns:
//   - Annotation: The pixel-space, corner-form annotation.
func (t Target) Annotation(imgSize int) Annotation {
	return Annotation{
		ImageIndex: t.ImageIndex,
		Class:      t.Class,
		Box:        t.Box.Scale(float32(imgSize)).ToCorner(),
	}
}

// Batch is one unit of work from a data loader.
type Batch struct {
	// Images in the batch. Target.ImageIndex refers to positions in this slice.
	Images []images.Image
	// Targets for every image of the batch, in any order.
	Targets []Target
}

// Labels returns the class id of every target, one entry per target.
func (b Batch) Labels() []int {
	labels := make([]int, len(b.Targets))
	for i, t := range b.Targets {
		labels[i] = t.Class
	}
	return labels
}

// Annotations groups the batch targets by image and converts them to pixel annotations.
//
// Arguments:
//   - imgSize: The pixel size the normalized coordinates are relative to.
//
// Returns:
//   - [][]Annotation: One slice per image, in batch order. Images without labels get nil.
//   - error: An error if a target refers to an image outside the batch.
func (b Batch) Annotations(imgSize int) ([][]Annotation, error) {
	out := make([][]Annotation, len(b.Images))
	for _, t := range b.Targets {
		if t.ImageIndex < 0 || t.ImageIndex >= len(b.Images) {
			return nil, errors.Errorf("target image index %d outside batch of %d images", t.ImageIndex, len(b.Images))
		}
		out[t.ImageIndex] = append(out[t.ImageIndex], t.Annotation(imgSize))
	}
	return out, nil
}

// Loader is a finite, restartable sequence of batches.
//
// Next returns io.EOF once every batch has been delivered. Reset rewinds the sequence;
// delivery order after a reset may differ.
type Loader interface {
	Next(ctx context.Context) (Batch, error)
	Reset() error
}

// Source is random access to the batches of a dataset, used by Prefetcher.
type Source interface {
	Len() int
	Batch(ctx context.Context, i int) (Batch, error)
}

// SliceLoader serves batches held in memory, in order.
type SliceLoader struct {
	batches []Batch
	pos     int
}

// NewSliceLoader returns a loader over the given batches.
func NewSliceLoader(batches ...Batch) *SliceLoader {
	return &SliceLoader{batches: batches}
}

// Next returns the next batch or io.EOF.
func (l *SliceLoader) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if l.pos >= len(l.batches) {
		return Batch{}, io.EOF
	}
	b := l.batches[l.pos]
	l.pos++
	return b, nil
}

// Reset rewinds the loader to the first batch.
func (l *SliceLoader) Reset() error {
	l.pos = 0
	return nil
}

// Len returns the number of batches.
func (l *SliceLoader) Len() int {
	return len(l.batches)
}

// Batch returns the i-th batch.
func (l *SliceLoader) Batch(ctx context.Context, i int) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if i < 0 || i >= len(l.batches) {
		return Batch{}, errors.Errorf("batch %d out of range [0, %d)", i, len(l.batches))
	}
	return l.batches[i], nil
}
