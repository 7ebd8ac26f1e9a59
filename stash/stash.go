package stash

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/hupe1980/relstash/internal/conv"
	"github.com/hupe1980/relstash/internal/mmap"
)

const (
	numBins = 32
	// floorScan limits how many extents of the request's own size class
	// are inspected before falling back to strictly larger classes.
	floorScan = 8
)

type extent struct {
	block  uint32
	offset uint32
}

// bin holds free extents of one power-of-two size class.
type bin struct {
	items []extent
	pos   map[extent]int
}

func (b *bin) add(e extent) {
	if b.pos == nil {
		b.pos = make(map[extent]int)
	}
	b.pos[e] = len(b.items)
	b.items = append(b.items, e)
}

func (b *bin) remove(e extent) {
	i, ok := b.pos[e]
	if !ok {
		return
	}
	last := len(b.items) - 1
	if i != last {
		moved := b.items[last]
		b.items[i] = moved
		b.pos[moved] = i
	}
	b.items = b.items[:last]
	delete(b.pos, e)
}

// Stash is a store for variable-length byte records addressed by Handle.
type Stash struct {
	opts options

	blocks   []*block
	current  *block
	released []uint32

	bins [numBins]bin

	stamp      uint64
	count      int
	usedMemory int
	freeBytes  int
	reserved   int
	stats      counters
	closed     bool
}

// New creates an empty Stash. Blocks are allocated on first use.
func New(opts ...Option) *Stash {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Stash{opts: o}
}

// Add copies data into the stash and returns a handle to the new record.
func (s *Stash) Add(data []byte) (Handle, error) {
	return s.AddContext(context.Background(), data)
}

// AddContext is Add with a context passed to the memory acquirer when the
// stash has to grow.
func (s *Stash) AddContext(ctx context.Context, data []byte) (Handle, error) {
	if s.closed {
		return Handle{}, ErrClosed
	}
	if len(data) > s.opts.maxRecordSize {
		return Handle{}, &CapacityError{Size: len(data), Max: s.opts.maxRecordSize}
	}
	length, err := conv.IntToUint32(len(data))
	if err != nil {
		return Handle{}, &CapacityError{Size: len(data), Max: s.opts.maxRecordSize}
	}
	need := uint32(RecordFootprint(len(data)))

	if b, off, size, ok := s.findFree(need); ok {
		s.stats.reused++
		return s.place(b, off, size, need, length, data), nil
	}

	b := s.current
	if b == nil || b.capacity()-b.used < need {
		if b, err = s.allocateBlock(ctx, need); err != nil {
			return Handle{}, err
		}
	}

	off := b.used
	b.used += need
	return s.place(b, off, need, need, length, data), nil
}

// findFree returns a free extent of at least need bytes and takes it off the
// free lists.
func (s *Stash) findFree(need uint32) (*block, uint32, uint32, bool) {
	if s.freeBytes < int(need) {
		return nil, 0, 0, false
	}

	floor := bits.Len32(need) - 1
	items := s.bins[floor].items
	for i, scanned := len(items)-1, 0; i >= 0 && scanned < floorScan; i, scanned = i-1, scanned+1 {
		e := items[i]
		b := s.blocks[e.block]
		if b.free[e.offset] >= need {
			return b, e.offset, s.takeExtent(b, e.offset), true
		}
	}

	for c := bits.Len32(need - 1); c < numBins; c++ {
		items := s.bins[c].items
		if len(items) == 0 {
			continue
		}
		e := items[len(items)-1]
		b := s.blocks[e.block]
		return b, e.offset, s.takeExtent(b, e.offset), true
	}
	return nil, 0, 0, false
}

// place writes a record at off in b. size is the extent handed to the record,
// need the record's unpadded footprint.
func (s *Stash) place(b *block, off, size, need, length uint32, data []byte) Handle {
	var slack uint32
	if rem := size - need; rem >= headerSize {
		s.putExtent(b, off+need, rem)
	} else {
		slack = rem
	}

	s.stamp++
	h := header{
		length: length,
		flags:  flagLive,
		slack:  uint16(slack), //nolint:gosec // slack < headerSize
		stamp:  s.stamp,
	}
	b.writeHeader(off, h)
	copy(b.payload(off, length), data)
	b.live.Add(off)

	s.count++
	s.usedMemory += int(need + slack)
	s.stats.adds++

	return Handle{block: b.index, offset: off, stamp: s.stamp}
}

func (s *Stash) putExtent(b *block, off, size uint32) {
	b.addFree(off, size)
	s.bins[bits.Len32(size)-1].add(extent{block: b.index, offset: off})
	s.freeBytes += int(size)
}

func (s *Stash) takeExtent(b *block, off uint32) uint32 {
	size := b.takeFree(off)
	s.bins[bits.Len32(size)-1].remove(extent{block: b.index, offset: off})
	s.freeBytes -= int(size)
	return size
}

func (s *Stash) allocateBlock(ctx context.Context, need uint32) (*block, error) {
	size := s.opts.blockSize
	dedicated := int(need) > size
	if dedicated {
		size = int(need)
	}

	var index uint32
	reuse := len(s.released) > 0
	if reuse {
		index = s.released[len(s.released)-1]
	} else {
		if len(s.blocks) >= MaxBlocks {
			return nil, fmt.Errorf("%w: %w", ErrResourceExhausted, ErrMaxBlocksExceeded)
		}
		index = uint32(len(s.blocks)) //nolint:gosec // bounded by MaxBlocks
	}

	if s.opts.acquirer != nil {
		if err := s.opts.acquirer.AcquireMemory(ctx, int64(size)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
		}
	}

	var (
		data    []byte
		mapping *mmap.Mapping
	)
	if s.opts.offHeap {
		m, err := mmap.MapAnon(size)
		if err != nil {
			if s.opts.acquirer != nil {
				s.opts.acquirer.ReleaseMemory(int64(size))
			}
			return nil, fmt.Errorf("%w: map block: %w", ErrResourceExhausted, err)
		}
		data, mapping = m.Bytes(), m
	} else {
		data = make([]byte, size)
	}

	b := newBlock(index, data, mapping)
	if reuse {
		s.released = s.released[:len(s.released)-1]
		s.blocks[index] = b
	} else {
		s.blocks = append(s.blocks, b)
	}
	s.reserved += size
	s.stats.blocksAllocated++

	if dedicated {
		b.retired = true
	} else {
		if s.current != nil {
			s.retire(s.current)
		}
		s.current = b
	}

	s.opts.logger.Debug("stash block allocated",
		"block", index,
		"size", size,
		"dedicated", dedicated,
		"reserved", s.reserved,
	)
	return b, nil
}

// retire turns the unused tail of b into a free extent. A tail too short
// for a header is absorbed by Remove once the record before it is freed.
func (s *Stash) retire(b *block) {
	b.retired = true
	if tail := b.capacity() - b.used; tail >= headerSize {
		s.putExtent(b, b.used, tail)
	}
	b.used = b.capacity()
	if b.live.IsEmpty() {
		s.releaseBlock(b)
	}
}

// resolve validates h and returns its block and header.
func (s *Stash) resolve(h Handle) (*block, header, error) {
	if s.closed {
		return nil, header{}, ErrClosed
	}
	if h.IsZero() {
		return nil, header{}, ErrInvalidHandle
	}
	if int(h.block) >= len(s.blocks) {
		return nil, header{}, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	b := s.blocks[h.block]
	if !b.live.Contains(h.offset) {
		return nil, header{}, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	hdr := b.readHeader(h.offset)
	if hdr.stamp != h.stamp || hdr.flags&flagLive == 0 {
		return nil, header{}, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return b, hdr, nil
}

// Get returns a mutable view of the record's payload.
// The view is valid until the record is removed.
func (s *Stash) Get(h Handle) ([]byte, error) {
	b, hdr, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	return b.payload(h.offset, hdr.length), nil
}

// Valid reports whether h refers to a live record.
func (s *Stash) Valid(h Handle) bool {
	_, _, err := s.resolve(h)
	return err == nil
}

// Footprint returns the bytes occupied by the record behind h, header included.
func (s *Stash) Footprint(h Handle) (int, error) {
	_, hdr, err := s.resolve(h)
	if err != nil {
		return 0, err
	}
	return int(hdr.slot()), nil
}

// Remove frees the record behind h. The handle, and every copy of it, is
// invalid afterwards. Other records are not moved.
func (s *Stash) Remove(h Handle) error {
	b, hdr, err := s.resolve(h)
	if err != nil {
		return err
	}

	hdr.flags &^= flagLive
	b.writeHeader(h.offset, hdr)
	b.live.Remove(h.offset)

	slot := hdr.slot()
	s.count--
	s.usedMemory -= int(slot)
	s.stats.removes++

	start, size := h.offset, slot
	if _, ok := b.free[start+size]; ok {
		size += s.takeExtent(b, start+size)
	}
	if prev, ok := b.freeEnd[start]; ok {
		size += s.takeExtent(b, prev)
		start = prev
	}
	switch {
	case !b.retired && start+size == b.used:
		b.used = start
	case b.retired && b.capacity()-(start+size) < headerSize:
		size = b.capacity() - start
		s.putExtent(b, start, size)
	default:
		s.putExtent(b, start, size)
	}

	if b.retired && b.live.IsEmpty() {
		s.releaseBlock(b)
	}
	return nil
}

func (s *Stash) releaseBlock(b *block) {
	for off := range b.free {
		s.takeExtent(b, off)
	}
	size := int(b.capacity())
	if err := b.release(); err != nil {
		s.opts.logger.Warn("stash block unmap failed", "block", b.index, "error", err)
	}
	if s.opts.acquirer != nil {
		s.opts.acquirer.ReleaseMemory(int64(size))
	}
	s.reserved -= size
	s.released = append(s.released, b.index)
	s.stats.blocksReleased++

	s.opts.logger.Debug("stash block released",
		"block", b.index,
		"size", size,
		"reserved", s.reserved,
	)
}

// Range calls fn for every live record in block and offset order until fn
// returns false. fn must not add or remove records.
func (s *Stash) Range(fn func(h Handle, data []byte) bool) {
	if s.closed {
		return
	}
	for _, b := range s.blocks {
		it := b.live.Iterator()
		for it.HasNext() {
			off := it.Next()
			hdr := b.readHeader(off)
			h := Handle{block: b.index, offset: off, stamp: hdr.stamp}
			if !fn(h, b.payload(off, hdr.length)) {
				return
			}
		}
	}
}

// Len returns the number of live records.
func (s *Stash) Len() int {
	return s.count
}

// Empty reports whether the stash holds no live records.
func (s *Stash) Empty() bool {
	return s.count == 0
}

// UsedMemory returns the bytes occupied by live records, headers included.
func (s *Stash) UsedMemory() int {
	return s.usedMemory
}

// Close releases all blocks. Handles are invalid afterwards.
func (s *Stash) Close() error {
	if s.closed {
		return nil
	}
	var errs []error
	for _, b := range s.blocks {
		if b.data == nil {
			continue
		}
		size := int64(b.capacity())
		if err := b.release(); err != nil {
			errs = append(errs, err)
		}
		if s.opts.acquirer != nil {
			s.opts.acquirer.ReleaseMemory(size)
		}
		s.stats.blocksReleased++
	}
	s.blocks = nil
	s.current = nil
	s.released = nil
	for i := range s.bins {
		s.bins[i] = bin{}
	}
	s.count, s.usedMemory, s.freeBytes, s.reserved = 0, 0, 0, 0
	s.closed = true
	return errors.Join(errs...)
}
