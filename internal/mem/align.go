package mem

import "math/bits"

const (
	// CacheLineSize is the assumed CPU cache line size in bytes.
	CacheLineSize = 64
	// MinAlignment is the minimum alignment applied to component layouts.
	MinAlignment = 8
)

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n.
// It returns 1 for n <= 1.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1)) //nolint:gosec // n > 1
}

// AlignUp rounds n up to the next multiple of align.
// align must be a power of two.
func AlignUp(n, align int) int {
	mask := align - 1
	return (n + mask) &^ mask
}

// AlignDown rounds n down to the previous multiple of align.
// align must be a power of two.
func AlignDown(n, align int) int {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align int) bool {
	return n&(align-1) == 0
}
