package chunk

import (
	"errors"
	"fmt"
)

// DefaultSize is the number of rows rendered into a single document.
const DefaultSize = 5000

var ErrInvalidSize = errors.New("chunk size must be at least 1")

// Split cuts items into consecutive sub-slices of at most size elements.
// Input no longer than size yields exactly one chunk, so an empty input still
// yields one (empty) chunk. Chunks share the backing array with items.
func Split[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size %d: %w", size, ErrInvalidSize)
	}
	if len(items) <= size {
		return [][]T{items[:len(items):len(items)]}, nil
	}
	n := (len(items) + size - 1) / size
	out := make([][]T, 0, n)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out, nil
}

