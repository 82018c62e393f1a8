// Package model - The detector contract consumed by the evaluator.
package model

import (
	"context"

	"github.com/nvr-ai/go-eval/images"
	"github.com/nvr-ai/go-eval/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the YOLO model family.
	ModelFamilyYOLO Family = "yolo"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv4 is the name of the YOLOv4 model.
	ModelNameYOLOv4 Name = "yolov4"
)

// Options describe a loaded model.
type Options struct {
	Name   Name   `json:"name" yaml:"name"`
	Family Family `json:"family" yaml:"family"`
	Path   string `json:"path" yaml:"path"`
	// InputSize is the square pixel size the model consumes.
	InputSize int `json:"input_size" yaml:"input_size"`
	// NumClasses is the number of class scores per candidate.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
}

// Model is an object detector.
//
// Infer is called once per batch and must not modify its input. It returns one raw
// candidate collection per input image, in input order.
type Model interface {
	Options() Options
	Infer(ctx context.Context, batch []images.Image) ([][]postprocess.RawDetection, error)
	Close() error
}

// Func adapts a plain function to the Model interface.
type Func func(ctx context.Context, batch []images.Image) ([][]postprocess.RawDetection, error)

// Options implements Model.
func (f Func) Options() Options { return Options{Name: "func"} }

// Infer implements Model.
func (f Func) Infer(ctx context.Context, batch []images.Image) ([][]postprocess.RawDetection, error) {
	return f(ctx, batch)
}

// Close implements Model.
func (f Func) Close() error { return nil }
