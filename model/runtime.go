package model

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/sys/cpu"
)

// InitRuntime loads the ONNX Runtime shared library and creates the global
// environment. An empty libPath keeps the library's platform default.
func InitRuntime(libPath string) error {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

func ShutdownRuntime() error {
	return ort.DestroyEnvironment()
}

// RuntimeInfo describes the host the model runs on.
type RuntimeInfo struct {
	GOOS   string `json:"goos"`
	GOARCH string `json:"goarch"`
	NumCPU int    `json:"num_cpu"`
	AVX2   bool   `json:"avx2"`
	AVX512 bool   `json:"avx512"`
	SSE41  bool   `json:"sse41"`
	NEON   bool   `json:"neon"`
}

func DetectRuntime() RuntimeInfo {
	return RuntimeInfo{
		GOOS:   runtime.GOOS,
		GOARCH: runtime.GOARCH,
		NumCPU: runtime.NumCPU(),
		AVX2:   cpu.X86.HasAVX2,
		AVX512: cpu.X86.HasAVX512,
		SSE41:  cpu.X86.HasSSE41,
		NEON:   cpu.ARM64.HasASIMD,
	}
}
