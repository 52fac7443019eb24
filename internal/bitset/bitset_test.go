package bitset

import (
	"testing"
)

func TestBitSet(t *testing.T) {
	b := New(100)

	b.Set(10)
	if !b.Test(10) {
		t.Errorf("expected bit 10 to be set")
	}

	b.Unset(10)
	if b.Test(10) {
		t.Errorf("expected bit 10 to be unset")
	}

	b.Set(10)
	b.Set(20)
	b.Set(99)
	if !b.Test(20) || !b.Test(99) {
		t.Errorf("expected bits 20 and 99 to be set")
	}

	b.ClearAll()
	if b.AnyInRange(0, 100) {
		t.Errorf("expected no set bit after clear, got %d", b.NextSetBefore(0, 100))
	}
}

func TestBitSet_OutOfRange(t *testing.T) {
	b := New(10)
	b.Set(10)
	b.Set(-1)
	if b.AnyInRange(0, 1000) {
		t.Errorf("out-of-range Set must be ignored")
	}
	if b.Test(10) || b.Test(-1) {
		t.Errorf("out-of-range Test must report false")
	}
	b.Unset(-1)
	b.Unset(10)

	if got := New(-5).NextSetBefore(0, 10); got != -1 {
		t.Errorf("empty bitset NextSetBefore = %d, want -1", got)
	}
}

func TestBitSet_NextSetBefore(t *testing.T) {
	b := New(300)
	b.Set(5)
	b.Set(64)
	b.Set(299)

	cases := []struct {
		from, limit, want int
	}{
		{0, 300, 5}, {5, 300, 5}, {6, 300, 64}, {65, 300, 299}, {299, 300, 299},
		{300, 400, -1}, {-3, 300, 5}, {6, 64, -1}, {6, 65, 64}, {0, 5, -1},
		{65, 1000, 299}, {10, 10, -1},
	}
	for _, c := range cases {
		if got := b.NextSetBefore(c.from, c.limit); got != c.want {
			t.Errorf("NextSetBefore(%d, %d) = %d, want %d", c.from, c.limit, got, c.want)
		}
	}

	if !b.AnyInRange(60, 70) || b.AnyInRange(65, 299) {
		t.Errorf("AnyInRange mismatch")
	}
}

func BenchmarkBitSet_NextSetBefore(b *testing.B) {
	bs := New(4096)
	bs.Set(4000)
	b.ReportAllocs()
	for b.Loop() {
		_ = bs.NextSetBefore(0, 4096)
	}
}
