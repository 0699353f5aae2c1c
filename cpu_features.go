package vecadd

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks available CPU instruction set extensions
type CPUFeatures struct {
	// x86
	HasSSE4     bool
	HasAVX      bool
	HasAVX2     bool
	HasFMA      bool
	HasAVX512F  bool // Foundation
	HasAVX512DQ bool // Double/Quad precision
	HasAVX512BW bool // Byte/Word
	HasAVX512VL bool // Vector Length

	// arm64
	HasNEON bool
	HasFP16 bool
}

// Global CPU feature detection. Initialized before any init function so the
// default device sees it.
var cpuFeatures = detectCPUFeatures()

// detectCPUFeatures reads the flags x/sys/cpu gathered at startup. The flags
// of the other architecture stay false.
func detectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		HasSSE4:     cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:      cpu.X86.HasAVX,
		HasAVX2:     cpu.X86.HasAVX2,
		HasFMA:      cpu.X86.HasFMA,
		HasAVX512F:  cpu.X86.HasAVX512F,
		HasAVX512DQ: cpu.X86.HasAVX512DQ,
		HasAVX512BW: cpu.X86.HasAVX512BW,
		HasAVX512VL: cpu.X86.HasAVX512VL,
		HasNEON:     cpu.ARM64.HasASIMD,
		HasFP16:     cpu.ARM64.HasFPHP && cpu.ARM64.HasASIMDHP,
	}
}

// GetCPUFeatures returns the detected CPU features.
func GetCPUFeatures() CPUFeatures {
	return cpuFeatures
}

// HasAVX512 returns true if the CPU supports AVX-512 foundation instructions
func HasAVX512() bool {
	return cpuFeatures.HasAVX512F
}

// HasAVX2 returns true if the CPU supports AVX2 operations
func HasAVX2() bool {
	return cpuFeatures.HasAVX2 && cpuFeatures.HasFMA
}

// BestAddImplementation names the code path the block add takes for dtype
// on this CPU. Only the float64 body dispatches through algo-vecmath, which
// picks the widest vector unit at runtime; float32 and float16 blocks run
// the scalar loop.
func BestAddImplementation(dtype DType) string {
	if dtype != Float64 {
		return "scalar"
	}
	switch {
	case HasAVX512():
		return "AVX512"
	case HasAVX2():
		return "AVX2"
	case cpuFeatures.HasSSE4:
		return "SSE4"
	case cpuFeatures.HasNEON:
		return "NEON"
	}
	return "scalar"
}

// GetCPUInfo returns a string describing available CPU features
func GetCPUInfo() string {
	var features []string
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}
	add(cpuFeatures.HasSSE4, "SSE4")
	add(cpuFeatures.HasAVX, "AVX")
	add(cpuFeatures.HasAVX2, "AVX2")
	add(cpuFeatures.HasFMA, "FMA")
	add(cpuFeatures.HasAVX512F, "AVX512F")
	add(cpuFeatures.HasAVX512DQ, "AVX512DQ")
	add(cpuFeatures.HasAVX512BW, "AVX512BW")
	add(cpuFeatures.HasAVX512VL, "AVX512VL")
	add(cpuFeatures.HasNEON, "NEON")
	add(cpuFeatures.HasFP16, "FP16")

	if len(features) == 0 {
		return "No SIMD extensions detected (" + runtime.GOARCH + ")"
	}
	return "CPU features: " + strings.Join(features, ", ")
}
