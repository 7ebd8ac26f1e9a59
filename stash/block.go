package stash

import (
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/relstash/internal/mmap"
)

// Record layout inside a block:
//
//	[0:4]   payload length
//	[4:6]   flags
//	[6:8]   slack (bytes of the slot beyond the aligned payload)
//	[8:16]  stamp
//	[16:]   payload, padded to alignment, followed by slack
const (
	headerSize = 16
	alignment  = 8

	flagLive uint16 = 1 << 0
)

type header struct {
	length uint32
	flags  uint16
	slack  uint16
	stamp  uint64
}

func alignUp(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// RecordFootprint returns the bytes a record with an n byte payload occupies
// when it is placed without slack: header plus aligned payload.
func RecordFootprint(n int) int {
	return headerSize + alignUp(n)
}

func (h header) slot() uint32 {
	return uint32(headerSize+alignUp(int(h.length))) + uint32(h.slack)
}

type block struct {
	index   uint32
	data    []byte
	mapping *mmap.Mapping // nil for heap blocks

	// used is the high-water mark; bytes beyond it were never handed out.
	used uint32
	// live holds the header offsets of live records.
	live *roaring.Bitmap
	// free maps the start of each free extent below used to its size,
	// freeEnd maps the end of each free extent to its start.
	free    map[uint32]uint32
	freeEnd map[uint32]uint32
	// retired blocks no longer serve tail allocations.
	retired bool
}

func newBlock(index uint32, data []byte, mapping *mmap.Mapping) *block {
	return &block{
		index:   index,
		data:    data,
		mapping: mapping,
		live:    roaring.New(),
		free:    make(map[uint32]uint32),
		freeEnd: make(map[uint32]uint32),
	}
}

func (b *block) capacity() uint32 {
	return uint32(len(b.data))
}

func (b *block) readHeader(off uint32) header {
	p := b.data[off : off+headerSize]
	return header{
		length: binary.LittleEndian.Uint32(p[0:4]),
		flags:  binary.LittleEndian.Uint16(p[4:6]),
		slack:  binary.LittleEndian.Uint16(p[6:8]),
		stamp:  binary.LittleEndian.Uint64(p[8:16]),
	}
}

func (b *block) writeHeader(off uint32, h header) {
	p := b.data[off : off+headerSize]
	binary.LittleEndian.PutUint32(p[0:4], h.length)
	binary.LittleEndian.PutUint16(p[4:6], h.flags)
	binary.LittleEndian.PutUint16(p[6:8], h.slack)
	binary.LittleEndian.PutUint64(p[8:16], h.stamp)
}

// payload returns the capacity-limited payload view of the record at off.
func (b *block) payload(off uint32, length uint32) []byte {
	start := off + headerSize
	end := start + length
	return b.data[start:end:end]
}

// addFree records [off, off+size) as a free extent.
func (b *block) addFree(off, size uint32) {
	b.free[off] = size
	b.freeEnd[off+size] = off
}

// takeFree removes the free extent starting at off and returns its size.
func (b *block) takeFree(off uint32) uint32 {
	size := b.free[off]
	delete(b.free, off)
	delete(b.freeEnd, off+size)
	return size
}

func (b *block) release() error {
	b.data = nil
	b.live = roaring.New()
	clear(b.free)
	clear(b.freeEnd)
	b.used = 0
	if b.mapping != nil {
		m := b.mapping
		b.mapping = nil
		return m.Close()
	}
	return nil
}
