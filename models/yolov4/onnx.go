package yolov4

import (
	"go.uber.org/multierr"

	"github.com/nvr-ai/go-eval/inference"
)

var _ Runner = (*inference.Session)(nil)

// NewONNXModel loads a YOLOv4 ONNX export and wraps it as a model.
//
// Arguments:
//   - opts: The session options. InputSize and NumClasses also configure the model.
//
// Returns:
//   - *YOLOv4: The model. Closing it releases the session.
//   - error: An error if the session or the model cannot be created.
func NewONNXModel(opts inference.SessionOptions) (*YOLOv4, error) {
	session, err := inference.NewSession(opts)
	if err != nil {
		return nil, err
	}
	return newOwnedModel(NewModelArgs{
		Path:       opts.ModelPath,
		InputSize:  opts.InputSize,
		NumClasses: opts.NumClasses,
		Runner:     session,
	})
}

// newOwnedModel is NewModel for a runner the model owns: the runner is closed when the
// model cannot be created.
func newOwnedModel(args NewModelArgs) (*YOLOv4, error) {
	m, err := NewModel(args)
	if err != nil {
		if args.Runner != nil {
			err = multierr.Append(err, args.Runner.Close())
		}
		return nil, err
	}
	return m, nil
}
