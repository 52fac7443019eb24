//go:build amd64

package simd

import "golang.org/x/sys/cpu"

func init() {
	x := cpu.X86
	hasAVX2 = x.HasAVX2 && x.HasFMA
	hasAVX512F, hasAVX512BW = x.HasAVX512F, x.HasAVX512BW
	initCapabilities()
}
