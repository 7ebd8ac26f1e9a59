package benchmark_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/hupe1980/relstash/assembler"
	"github.com/hupe1980/relstash/compress"
	"github.com/hupe1980/relstash/internal/resource"
	"github.com/hupe1980/relstash/source"
	"github.com/hupe1980/relstash/stash"
)

// BenchmarkAssemble measures both passes over the in-memory fixture.
func BenchmarkAssemble(b *testing.B) {
	_, data := loadFixture(b)

	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.SetBytes(int64(2 * len(data)))
			b.ReportAllocs()
			for b.Loop() {
				c := assembler.New(assembler.HandlerFunc(discardHandler), assembler.WithWorkers(workers))
				if err := c.Run(context.Background(), readerOf(data)); err != nil {
					b.Fatal(err)
				}
				_ = c.Close()
			}
		})
	}
}

// BenchmarkAssemble_Compressed adds decompression through source.Open.
func BenchmarkAssemble_Compressed(b *testing.B) {
	_, data := loadFixture(b)

	for _, kind := range []compress.Kind{compress.None, compress.Gzip, compress.Zstd, compress.LZ4} {
		b.Run(string(kind), func(b *testing.B) {
			name := "fixture.ndjson"
			store := compressedStore(b, name, kind)

			b.SetBytes(int64(2 * len(data)))
			b.ReportAllocs()
			for b.Loop() {
				c := assembler.New(assembler.HandlerFunc(discardHandler), assembler.WithWorkers(4))
				err := c.Run(context.Background(), func(ctx context.Context) (io.ReadCloser, error) {
					return source.Open(ctx, name, source.WithStore(store), source.WithCompression(kind))
				})
				if err != nil {
					b.Fatal(err)
				}
				_ = c.Close()
			}
		})
	}
}

// BenchmarkAssemble_MemoryLimit runs with a controller accounting every
// block, on and off heap.
func BenchmarkAssemble_MemoryLimit(b *testing.B) {
	_, data := loadFixture(b)

	for _, offHeap := range []bool{false, true} {
		b.Run(fmt.Sprintf("offheap=%t", offHeap), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 256 << 20})
				c := assembler.New(assembler.HandlerFunc(discardHandler),
					assembler.WithStashOptions(
						stash.WithBlockSize(64<<10),
						stash.WithMemoryAcquirer(ctrl),
						stash.WithOffHeap(offHeap),
					),
				)
				if err := c.Run(context.Background(), readerOf(data)); err != nil {
					b.Fatal(err)
				}
				_ = c.Close()
			}
		})
	}
}
