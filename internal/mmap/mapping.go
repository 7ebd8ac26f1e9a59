package mmap

import (
	"errors"
	"sync/atomic"
)

// ErrInvalidSize is returned when the requested size is not positive.
var ErrInvalidSize = errors.New("mmap: invalid size")

// Mapping is an anonymous read-write memory region.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	// unmap is the platform-specific function to release the memory.
	unmap func([]byte) error
}

// MapAnon creates an anonymous read-write mapping of the given size.
// The memory is zero-initialized.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		unmap: unmapFunc,
	}, nil
}

// Bytes returns the underlying byte slice, or nil after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Close releases the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}
