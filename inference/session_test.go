package inference

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedLibPath_Override(t *testing.T) {
	t.Setenv(SharedLibraryEnv, "/opt/ort/libonnxruntime.so")
	assert.Equal(t, "/opt/ort/libonnxruntime.so", SharedLibPath())
}

func TestSharedLibPath_Default(t *testing.T) {
	t.Setenv(SharedLibraryEnv, "")
	assert.NotEmpty(t, SharedLibPath())
}

func TestDefaultCandidates(t *testing.T) {
	assert.Equal(t, 10647, DefaultCandidates(416))
	assert.Equal(t, 25200, DefaultCandidates(640))
	assert.Equal(t, 0, DefaultCandidates(0))
}

func TestSessionOptions(t *testing.T) {
	opts := SessionOptions{ModelPath: "yolov4.onnx", InputSize: 416, NumClasses: 80}.withDefaults()
	assert.Equal(t, "images", opts.InputName)
	assert.Equal(t, "output0", opts.OutputName)
	assert.Equal(t, 1, opts.BatchSize)
	assert.Equal(t, 10647, opts.Candidates)
	assert.Equal(t, BackendCPU, opts.Backend)
	require.NoError(t, opts.validate())

	tests := []struct {
		name string
		opts SessionOptions
	}{
		{name: "no model", opts: SessionOptions{InputSize: 416, NumClasses: 80}},
		{name: "no input size", opts: SessionOptions{ModelPath: "m.onnx", NumClasses: 80}},
		{name: "no classes", opts: SessionOptions{ModelPath: "m.onnx", InputSize: 416}},
		{name: "unknown backend", opts: SessionOptions{ModelPath: "m.onnx", InputSize: 416, NumClasses: 80, Backend: "tpu"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.opts.withDefaults().validate())
		})
	}
}

func TestNewSession_InvalidOptions(t *testing.T) {
	_, err := NewSession(SessionOptions{})
	assert.Error(t, err)
}

// TestNewSession_Model loads a real model when both the runtime and a model are available.
func TestNewSession_Model(t *testing.T) {
	model := os.Getenv("YOLOV4_ONNX_MODEL")
	if model == "" {
		t.Skip("YOLOV4_ONNX_MODEL not set")
	}
	if _, err := os.Stat(SharedLibPath()); err != nil {
		t.Skipf("ONNX Runtime library not available: %v", err)
	}

	s, err := NewSession(SessionOptions{ModelPath: model, InputSize: 416, NumClasses: 80})
	require.NoError(t, err)
	defer s.Close()

	out, err := s.Run(make([]float32, 3*416*416))
	require.NoError(t, err)
	assert.Len(t, out, 10647*85)

	_, err = s.Run(make([]float32, 3))
	assert.Error(t, err)
}
