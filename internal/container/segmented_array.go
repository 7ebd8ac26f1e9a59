// Package container implements container data structures.
package container

const (
	// segmentBits determines the size of each segment.
	// 12 bits = 4096 items per segment.
	segmentBits = 12
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1
)

// SegmentedArray is an append-only array built from fixed-size segments.
//
// Growth allocates a new segment and never copies existing items, so a
// pointer returned by At stays valid for the lifetime of the array.
// It is not safe for concurrent use.
type SegmentedArray[T any] struct {
	segments []*segment[T]
	n        int
}

type segment[T any] struct {
	items [segmentSize]T
}

// NewSegmentedArray creates a new SegmentedArray.
func NewSegmentedArray[T any]() *SegmentedArray[T] {
	return &SegmentedArray[T]{}
}

// Append adds value at the end and returns its index.
func (sa *SegmentedArray[T]) Append(value T) int {
	idx := sa.n
	segIdx := idx >> segmentBits
	if segIdx == len(sa.segments) {
		sa.segments = append(sa.segments, &segment[T]{})
	}
	sa.segments[segIdx].items[idx&segmentMask] = value
	sa.n++
	return idx
}

// At returns a pointer to the item at index.
// Returns false if index is out of bounds.
func (sa *SegmentedArray[T]) At(index int) (*T, bool) {
	if index < 0 || index >= sa.n {
		return nil, false
	}
	return &sa.segments[index>>segmentBits].items[index&segmentMask], true
}

// Len returns the number of items ever appended.
func (sa *SegmentedArray[T]) Len() int {
	return sa.n
}

// Segments returns the number of allocated segments.
func (sa *SegmentedArray[T]) Segments() int {
	return len(sa.segments)
}
