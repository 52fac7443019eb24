package simd

import (
	"os"
	"runtime"
	"strings"
)

// ISA names a vector extension whose register width drives the lane
// estimate.
type ISA uint8

const (
	// Generic assumes no vector unit; one 8-byte word per lane group.
	Generic ISA = iota
	// NEON is the 128-bit ARM64 Advanced SIMD extension.
	NEON
	// SVE2 is ARM64 SVE2. Its width is implementation defined; 128 bit is
	// assumed.
	SVE2
	// AVX2 is the 256-bit x86-64 extension, counted only together with FMA.
	AVX2
	// AVX512 is the 512-bit x86-64 extension, counted only with F and BW.
	AVX512
)

func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case NEON:
		return "neon"
	case SVE2:
		return "sve2"
	case AVX2:
		return "avx2"
	case AVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// RegisterBytes returns the register width assumed for lane estimation.
func (i ISA) RegisterBytes() int {
	switch i {
	case AVX512:
		return 64
	case AVX2:
		return 32
	case NEON, SVE2:
		return 16
	default:
		return 8
	}
}

// ParseISA maps the names accepted by ECSMEM_SIMD to an ISA. Matching is
// case-insensitive and ignores surrounding space.
func ParseISA(s string) (ISA, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, isa := range []ISA{Generic, NEON, SVE2, AVX2, AVX512} {
		if isa.String() == name {
			return isa, true
		}
	}
	return Generic, false
}

// CPU features, filled in by the per-architecture init.
var (
	hasASIMD    bool
	hasSVE2     bool
	hasAVX2     bool // with FMA
	hasAVX512F  bool
	hasAVX512BW bool
)

var activeISA ISA

// initCapabilities picks the ISA used by Lanes once the feature flags are
// known.
func initCapabilities() {
	if name := os.Getenv("ECSMEM_SIMD"); name != "" {
		if isa, ok := ParseISA(name); ok && isISAAvailable(isa) {
			activeISA = isa
			return
		}
	}
	activeISA = widestISA()
}

func isISAAvailable(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return hasASIMD
	case SVE2:
		return hasSVE2
	case AVX2:
		return hasAVX2
	case AVX512:
		return hasAVX512F && hasAVX512BW
	}
	return false
}

// widestISA returns the widest extension the CPU reports. SVE2 is skipped on
// darwin, where the flag does not reflect usable vectors.
func widestISA() ISA {
	var candidates []ISA
	switch runtime.GOARCH {
	case "amd64":
		candidates = []ISA{AVX512, AVX2}
	case "arm64":
		if runtime.GOOS != "darwin" {
			candidates = append(candidates, SVE2)
		}
		candidates = append(candidates, NEON)
	}
	for _, isa := range candidates {
		if isISAAvailable(isa) {
			return isa
		}
	}
	return Generic
}

// ActiveISA returns the ISA Lanes estimates for.
func ActiveISA() ISA {
	return activeISA
}
