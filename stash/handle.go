package stash

import "fmt"

// Handle references one record in a Stash.
//
// The zero Handle refers to nothing. A Handle is a plain value: copying it
// does not copy the record, and it does not keep the record alive.
type Handle struct {
	block  uint32
	offset uint32
	stamp  uint64
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.stamp == 0
}

// Block returns the index of the block holding the record.
func (h Handle) Block() uint32 {
	return h.block
}

// Offset returns the byte offset of the record header within its block.
func (h Handle) Offset() uint32 {
	return h.offset
}

// Stamp returns the stash-wide sequence number assigned when the record was added.
func (h Handle) Stamp() uint64 {
	return h.stamp
}

func (h Handle) String() string {
	if h.IsZero() {
		return "stash.Handle(nil)"
	}
	return fmt.Sprintf("stash.Handle(%d:%d#%d)", h.block, h.offset, h.stamp)
}
