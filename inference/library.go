package inference

import (
	"os"
	"runtime"
)

// SharedLibraryEnv overrides the platform default location of the ONNX Runtime library.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// SharedLibPath returns the path to the ONNX Runtime shared library for the current platform.
//
// Returns:
//   - string: The value of ONNXRUNTIME_SHARED_LIBRARY_PATH when set, otherwise the bundled
//     library under third_party/. Empty on platforms without a bundled library.
func SharedLibPath() string {
	if p := os.Getenv(SharedLibraryEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.1.23.0.dylib"
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
	return ""
}
