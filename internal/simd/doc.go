// Package simd detects the vector instruction set of the running CPU and
// derives how many records fit in one vector register.
//
// # Supported Platforms
//
//   - x86-64: AVX-512 (F+BW), AVX2 (+FMA)
//   - ARM64: NEON, SVE2
//
// Detection runs once at package init using golang.org/x/sys/cpu. The
// ECSMEM_SIMD environment variable overrides the selection ("generic", "neon",
// "sve2", "avx2", "avx512"); overrides naming an unavailable ISA are ignored.
//
// Lane counts are an iteration hint for batched chunk processing. Nothing in
// this module issues vector instructions directly.
package simd
