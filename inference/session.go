// Package inference - ONNX Runtime sessions that back the evaluated models.
package inference

import (
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Backend selects the ONNX Runtime execution provider.
type Backend string

const (
	// BackendCPU runs on the default CPU provider.
	BackendCPU Backend = "cpu"
	// BackendCUDA runs on an NVIDIA GPU.
	BackendCUDA Backend = "cuda"
	// BackendCoreML runs on Apple hardware.
	BackendCoreML Backend = "coreml"
)

// SessionOptions describe the model file and its fixed tensor shapes.
type SessionOptions struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// InputName and OutputName are the graph node names. Default to images and output0.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// BatchSize is the leading dimension of both tensors. Defaults to 1.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
	// InputSize is the side of the square input.
	InputSize int `json:"input_size" yaml:"input_size"`
	// NumClasses is the number of class scores per output row.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// Candidates is the number of output rows per image. Defaults to the YOLO grid count.
	Candidates int `json:"candidates" yaml:"candidates"`
	// Backend is the execution provider. Defaults to cpu.
	Backend Backend `json:"backend" yaml:"backend"`
	// DeviceID selects the GPU for the cuda backend.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// Threads caps intra-op parallelism, 0 lets the runtime decide.
	Threads int `json:"threads" yaml:"threads"`
}

// DefaultCandidates is the number of rows a three-scale YOLO head emits for a square input:
// three anchors per cell on the stride 32, 16 and 8 grids.
func DefaultCandidates(inputSize int) int {
	n := 0
	for _, stride := range []int{32, 16, 8} {
		g := inputSize / stride
		n += 3 * g * g
	}
	return n
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.InputName == "" {
		o.InputName = "images"
	}
	if o.OutputName == "" {
		o.OutputName = "output0"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.Candidates <= 0 {
		o.Candidates = DefaultCandidates(o.InputSize)
	}
	if o.Backend == "" {
		o.Backend = BackendCPU
	}
	return o
}

func (o SessionOptions) validate() error {
	if o.ModelPath == "" {
		return errors.New("session requires a model path")
	}
	if o.InputSize <= 0 {
		return errors.Errorf("invalid input size %d", o.InputSize)
	}
	if o.NumClasses <= 0 {
		return errors.Errorf("invalid class count %d", o.NumClasses)
	}
	switch o.Backend {
	case BackendCPU, BackendCUDA, BackendCoreML:
	default:
		return errors.Errorf("unknown backend %q", o.Backend)
	}
	return nil
}

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the shared library once per process.
func initEnvironment() error {
	envOnce.Do(func() {
		libPath := SharedLibPath()
		if _, err := os.Stat(libPath); err != nil {
			envErr = errors.Wrapf(err, "ONNX Runtime library not found at %q (set %s)", libPath, SharedLibraryEnv)
			return
		}
		if ort.IsInitialized() {
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = errors.Wrap(err, "initializing ONNX Runtime environment")
		}
	})
	return envErr
}

// Session is a model session from the onnxruntime with preallocated input and output
// tensors. It is not safe for concurrent use.
type Session struct {
	opts    SessionOptions
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewSession loads the model and binds fixed-shape tensors to it.
//
// The input is shaped (batch, 3, size, size) and the output
// (batch, candidates, 5 + classes).
//
// Arguments:
//   - opts: The model file, shapes and execution provider.
//
// Returns:
//   - *Session: The session. Close it to release the native resources.
//   - error: An error if the runtime is missing or the model fails to load.
func NewSession(opts SessionOptions) (*Session, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := initEnvironment(); err != nil {
		return nil, err
	}

	size := int64(opts.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(opts.BatchSize), 3, size, size))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](
		ort.NewShape(int64(opts.BatchSize), int64(opts.Candidates), int64(5+opts.NumClasses)),
	)
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := sessionOptions(opts)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "loading model %s", opts.ModelPath)
	}

	return &Session{opts: opts, session: session, input: input, output: output}, nil
}

func sessionOptions(opts SessionOptions) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating session options")
	}
	if err := configure(options, opts); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func configure(options *ort.SessionOptions, opts SessionOptions) error {
	if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
		return errors.Wrap(err, "setting intra-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "setting graph optimization level")
	}

	switch opts.Backend {
	case BackendCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "enabling CoreML")
		}
	case BackendCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(opts.DeviceID)}); err != nil {
			return errors.Wrap(err, "updating CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "enabling CUDA")
		}
	}
	return nil
}

// BatchSize is the number of images consumed by one Run.
func (s *Session) BatchSize() int {
	return s.opts.BatchSize
}

// Options returns the resolved session options.
func (s *Session) Options() SessionOptions {
	return s.opts
}

// Run copies input into the bound input tensor, runs the model and returns a copy of the
// output tensor.
//
// Arguments:
//   - input: Exactly batch*3*size*size floats.
//
// Returns:
//   - []float32: The output rows, owned by the caller.
//   - error: An error if the input has the wrong length or the run fails.
func (s *Session) Run(input []float32) ([]float32, error) {
	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, errors.Errorf("input holds %d floats, session expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running session")
	}
	return append([]float32(nil), s.output.GetData()...), nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		if err != nil {
			return errors.Wrap(err, "destroying ORT session")
		}
	}
	return nil
}
