//go:build arm64

package simd

import "golang.org/x/sys/cpu"

func init() {
	arm := cpu.ARM64
	hasASIMD, hasSVE2 = arm.HasASIMD, arm.HasSVE2
	initCapabilities()
}
