package simd

// Lanes estimates how many records of elemSize bytes fit in one vector
// register of the active ISA. The result is a power of two and at least 1.
func Lanes(elemSize int) int {
	return LanesFor(activeISA, elemSize)
}

// LanesFor is Lanes for an explicit ISA.
func LanesFor(isa ISA, elemSize int) int {
	if elemSize <= 0 {
		return 1
	}
	n := isa.RegisterBytes() / elemSize
	if n <= 1 {
		return 1
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
