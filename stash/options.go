package stash

import (
	"context"
	"io"
	"log/slog"
)

const (
	// DefaultBlockSize is the default size of a block (1MB).
	DefaultBlockSize = 1024 * 1024
	// MinBlockSize is the smallest accepted block size.
	MinBlockSize = 4096
	// DefaultMaxRecordSize is the default maximum payload length (256MB).
	DefaultMaxRecordSize = 256 * 1024 * 1024
	// MaxRecordSize is the largest payload a record header can describe.
	MaxRecordSize = 1<<31 - headerSize - alignment
	// MaxBlocks limits the number of blocks.
	MaxBlocks = 1 << 20
)

// MemoryAcquirer reserves memory for new blocks.
// *resource.Controller implements it.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

type options struct {
	blockSize     int
	maxRecordSize int
	acquirer      MemoryAcquirer
	offHeap       bool
	logger        *slog.Logger
}

func defaultOptions() options {
	return options{
		blockSize:     DefaultBlockSize,
		maxRecordSize: DefaultMaxRecordSize,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option is a configuration option for Stash.
type Option func(*options)

// WithBlockSize sets the size of regular blocks. Values below MinBlockSize
// are raised to it; sizes are rounded up to the record alignment.
// Records larger than a block get a dedicated block.
func WithBlockSize(size int) Option {
	return func(o *options) {
		if size < MinBlockSize {
			size = MinBlockSize
		}
		o.blockSize = alignUp(size)
	}
}

// WithMaxRecordSize sets the largest accepted payload length.
// Values outside (0, MaxRecordSize] select MaxRecordSize.
func WithMaxRecordSize(size int) Option {
	return func(o *options) {
		if size <= 0 || size > MaxRecordSize {
			size = MaxRecordSize
		}
		o.maxRecordSize = size
	}
}

// WithMemoryAcquirer sets the memory acquirer consulted before each new block.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(o *options) {
		o.acquirer = acquirer
	}
}

// WithOffHeap places blocks in anonymous memory mappings outside the Go heap.
func WithOffHeap(enabled bool) Option {
	return func(o *options) {
		o.offHeap = enabled
	}
}

// WithLogger sets the logger for block lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
