// Package postprocess - Postprocessing of raw detector output into ranked detections.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-eval/images"
)

// Result represents a single detection kept for an image.
type Result struct {
	// The bounding box of the result in corner form, pixel units.
	Box images.Rect `json:"box" yaml:"box"`
	// The confidence score of the result (objectness × best class score).
	Score float32 `json:"score" yaml:"score"`
	// The predicted class index of the result.
	Class int `json:"class" yaml:"class"`
}

func (r Result) String() string {
	return fmt.Sprintf("class %d (confidence %f): %s", r.Class, r.Score, r.Box)
}
