package chunk

import (
	"errors"
	"slices"
	"testing"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSplitReconstructs(t *testing.T) {
	for _, tc := range []struct{ n, size, chunks int }{
		{0, 5000, 1},
		{1, 5000, 1},
		{5000, 5000, 1},
		{5001, 5000, 2},
		{12000, 5000, 3},
		{7, 1, 7},
		{10, 3, 4},
	} {
		in := seq(tc.n)
		parts, err := Split(in, tc.size)
		if err != nil {
			t.Fatalf("Split(%d,%d): %v", tc.n, tc.size, err)
		}
		if len(parts) != tc.chunks {
			t.Fatalf("Split(%d,%d) produced %d chunks; want %d", tc.n, tc.size, len(parts), tc.chunks)
		}
		var joined []int
		for i, p := range parts {
			if len(p) > tc.size {
				t.Fatalf("chunk %d has %d items; max %d", i, len(p), tc.size)
			}
			if i < len(parts)-1 && len(p) != tc.size {
				t.Fatalf("non-final chunk %d short: %d", i, len(p))
			}
			joined = append(joined, p...)
		}
		if !slices.Equal(joined, in) {
			t.Fatalf("Split(%d,%d) does not reconstruct input", tc.n, tc.size)
		}
	}
}

func TestSplitScenarioSizes(t *testing.T) {
	parts, _ := Split(seq(12000), DefaultSize)
	got := []int{len(parts[0]), len(parts[1]), len(parts[2])}
	if !slices.Equal(got, []int{5000, 5000, 2000}) {
		t.Fatalf("sizes=%v", got)
	}
	if parts[2][0] != 10000 {
		t.Fatalf("third chunk starts at %d; want 10000", parts[2][0])
	}
}

func TestSplitInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Split(seq(3), size); !errors.Is(err, ErrInvalidSize) {
			t.Fatalf("Split size %d err=%v", size, err)
		}
	}
}

func TestSplitAppendDoesNotClobber(t *testing.T) {
	in := seq(6)
	parts, _ := Split(in, 3)
	_ = append(parts[0], 99)
	if parts[1][0] != 3 {
		t.Fatalf("append on chunk 0 overwrote chunk 1: %v", parts[1])
	}
}
