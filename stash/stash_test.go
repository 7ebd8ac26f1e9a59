package stash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/hupe1980/relstash/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, n)
}

func TestStash_New(t *testing.T) {
	s := New()
	defer s.Close()

	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.UsedMemory())
	assert.Equal(t, 0, s.Stats().Blocks)
}

func TestStash_AddGet(t *testing.T) {
	s := New()
	defer s.Close()

	h, err := s.Add([]byte("relation"))
	require.NoError(t, err)
	assert.False(t, h.IsZero())

	got, err := s.Get(h)
	require.NoError(t, err)
	assert.Equal(t, "relation", string(got))
	assert.Equal(t, len("relation"), cap(got), "view must not allow appending into neighbours")

	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Empty())
	assert.Equal(t, RecordFootprint(len("relation")), s.UsedMemory())

	t.Run("mutable view", func(t *testing.T) {
		got[0] = 'R'
		again, err := s.Get(h)
		require.NoError(t, err)
		assert.Equal(t, "Relation", string(again))
	})

	t.Run("input is copied", func(t *testing.T) {
		in := []byte("abc")
		h2, err := s.Add(in)
		require.NoError(t, err)
		in[0] = 'x'
		got, err := s.Get(h2)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})

	t.Run("empty record", func(t *testing.T) {
		h3, err := s.Add(nil)
		require.NoError(t, err)
		got, err := s.Get(h3)
		require.NoError(t, err)
		assert.Empty(t, got)
		fp, err := s.Footprint(h3)
		require.NoError(t, err)
		assert.Equal(t, headerSize, fp)
	})
}

func TestStash_Remove(t *testing.T) {
	s := New()
	defer s.Close()

	h, err := s.Add([]byte("gone"))
	require.NoError(t, err)
	keep, err := s.Add([]byte("kept"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(h))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, RecordFootprint(4), s.UsedMemory())
	assert.False(t, s.Valid(h))

	_, err = s.Get(h)
	assert.ErrorIs(t, err, ErrStaleHandle)

	err = s.Remove(h)
	assert.ErrorIs(t, err, ErrStaleHandle, "double removal must be rejected")

	got, err := s.Get(keep)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(got))

	require.NoError(t, s.Remove(keep))
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.UsedMemory())
}

func TestStash_InvalidHandle(t *testing.T) {
	s := New()
	defer s.Close()

	_, err := s.Get(Handle{})
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, s.Remove(Handle{}), ErrInvalidHandle)

	_, err = s.Get(Handle{block: 7, offset: 0, stamp: 1})
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestStash_StaleAfterReuse(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	a, err := s.Add(payload(24, 'a'))
	require.NoError(t, err)
	_, err = s.Add(payload(24, 'b'))
	require.NoError(t, err)

	require.NoError(t, s.Remove(a))

	c, err := s.Add(payload(24, 'c'))
	require.NoError(t, err)
	require.Equal(t, a.Offset(), c.Offset(), "slot should be reused")
	require.Equal(t, a.Block(), c.Block())

	_, err = s.Get(a)
	assert.ErrorIs(t, err, ErrStaleHandle)

	got, err := s.Get(c)
	require.NoError(t, err)
	assert.Equal(t, payload(24, 'c'), got)
	assert.Equal(t, uint64(1), s.Stats().ReusedSlots)
}

func TestStash_StaleAfterCoalesce(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	var hs []Handle
	for i := 0; i < 4; i++ {
		h, err := s.Add(payload(24, byte('a'+i)))
		require.NoError(t, err)
		hs = append(hs, h)
	}

	require.NoError(t, s.Remove(hs[0]))
	require.NoError(t, s.Remove(hs[1]))

	// The coalesced extent is split again; hs[1]'s offset now lies inside
	// free space or another record's payload.
	_, err := s.Add(payload(8, 'x'))
	require.NoError(t, err)
	_, err = s.Add(payload(8, 'y'))
	require.NoError(t, err)

	_, err = s.Get(hs[1])
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestStash_Coalesce(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	var hs []Handle
	for i := 0; i < 4; i++ {
		h, err := s.Add(payload(24, byte('a'+i)))
		require.NoError(t, err)
		hs = append(hs, h)
	}
	fp := RecordFootprint(24)

	require.NoError(t, s.Remove(hs[0]))
	require.NoError(t, s.Remove(hs[2]))
	assert.Equal(t, 2*fp, s.Stats().BytesFree)

	require.NoError(t, s.Remove(hs[1]))
	assert.Equal(t, 3*fp, s.Stats().BytesFree, "three neighbours coalesce into one extent")

	big, err := s.Add(payload(3*fp-headerSize, 'z'))
	require.NoError(t, err)
	assert.Equal(t, hs[0].Offset(), big.Offset())
	assert.Equal(t, 0, s.Stats().BytesFree)

	got, err := s.Get(hs[3])
	require.NoError(t, err)
	assert.Equal(t, payload(24, 'd'), got)
}

func TestStash_Slack(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	a, err := s.Add(payload(104, 'a'))
	require.NoError(t, err)
	_, err = s.Add(payload(8, 'b'))
	require.NoError(t, err)
	require.NoError(t, s.Remove(a))

	// 96 byte payload leaves 8 bytes, too small for a free extent.
	c, err := s.Add(payload(96, 'c'))
	require.NoError(t, err)
	assert.Equal(t, a.Offset(), c.Offset())

	fp, err := s.Footprint(c)
	require.NoError(t, err)
	assert.Equal(t, RecordFootprint(104), fp)
	assert.Equal(t, RecordFootprint(104)+RecordFootprint(8), s.UsedMemory())

	got, err := s.Get(c)
	require.NoError(t, err)
	assert.Len(t, got, 96)

	require.NoError(t, s.Remove(c))
	assert.Equal(t, RecordFootprint(8), s.UsedMemory())
}

func TestStash_TailShrink(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	_, err := s.Add(payload(24, 'a'))
	require.NoError(t, err)
	b, err := s.Add(payload(24, 'b'))
	require.NoError(t, err)

	require.NoError(t, s.Remove(b))
	assert.Equal(t, 0, s.Stats().BytesFree, "trailing free space returns to the block tail")

	c, err := s.Add(payload(24, 'c'))
	require.NoError(t, err)
	assert.Equal(t, b.Offset(), c.Offset())
}

func TestStash_RetiredShortTail(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	_, err := s.Add(payload(24, 'a'))
	require.NoError(t, err)
	// Leaves 8 bytes at the end of the block, too few for a header.
	last, err := s.Add(payload(MinBlockSize-RecordFootprint(24)-8-headerSize, 'b'))
	require.NoError(t, err)

	next, err := s.Add(payload(24, 'c'))
	require.NoError(t, err)
	require.NotEqual(t, last.Block(), next.Block())
	assert.Equal(t, 0, s.Stats().BytesFree)

	require.NoError(t, s.Remove(last))
	free := MinBlockSize - RecordFootprint(24)
	assert.Equal(t, free, s.Stats().BytesFree, "short tail joins the freed extent")

	h, err := s.Add(payload(free-headerSize, 'd'))
	require.NoError(t, err)
	assert.Equal(t, last.Block(), h.Block())
	assert.Equal(t, last.Offset(), h.Offset())
	assert.Equal(t, uint64(1), s.Stats().ReusedSlots)
	assert.Equal(t, 0, s.Stats().BytesFree)
}

func TestStash_Growth(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	handles := make([]Handle, 0, 20)
	for i := 0; i < 20; i++ {
		h, err := s.Add(payload(1000, byte(i)))
		require.NoError(t, err)
		handles = append(handles, h)
	}

	stats := s.Stats()
	assert.GreaterOrEqual(t, stats.Blocks, 5)
	assert.Equal(t, stats.Blocks*MinBlockSize, stats.BytesReserved)

	for i, h := range handles {
		got, err := s.Get(h)
		require.NoError(t, err)
		require.Equal(t, payload(1000, byte(i)), got, "record %d changed after growth", i)
	}
}

func TestStash_DedicatedBlock(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	big, err := s.Add(payload(10000, 'x'))
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Blocks)
	assert.Equal(t, RecordFootprint(10000), stats.BytesReserved)

	got, err := s.Get(big)
	require.NoError(t, err)
	assert.Len(t, got, 10000)

	require.NoError(t, s.Remove(big))
	stats = s.Stats()
	assert.Equal(t, 0, stats.Blocks)
	assert.Equal(t, 1, stats.BlocksReleased)
	assert.Equal(t, 0, stats.BytesReserved)

	small, err := s.Add([]byte("small"))
	require.NoError(t, err)
	assert.Equal(t, big.Block(), small.Block(), "released block index is reused")

	_, err = s.Get(big)
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestStash_CapacityError(t *testing.T) {
	s := New(WithMaxRecordSize(100))
	defer s.Close()

	_, err := s.Add(payload(100, 'a'))
	require.NoError(t, err)

	_, err = s.Add(payload(101, 'a'))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacity)

	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 101, capErr.Size)
	assert.Equal(t, 100, capErr.Max)
	assert.Equal(t, 1, s.Len())
}

func TestStash_MemoryAcquirer(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 2 * MinBlockSize})
	s := New(WithBlockSize(MinBlockSize), WithMemoryAcquirer(rc))

	first, err := s.Add(payload(4000, '1'))
	require.NoError(t, err)
	_, err = s.Add(payload(4000, '2'))
	require.NoError(t, err)
	assert.Equal(t, int64(2*MinBlockSize), rc.MemoryUsage())

	_, err = s.Add(payload(4000, '3'))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Remove(first))
	assert.Equal(t, int64(MinBlockSize), rc.MemoryUsage())

	_, err = s.Add(payload(4000, '3'))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestStash_OffHeap(t *testing.T) {
	s := New(WithBlockSize(MinBlockSize), WithOffHeap(true))

	var handles []Handle
	for i := 0; i < 10; i++ {
		h, err := s.Add(payload(900, byte(i)))
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for i, h := range handles {
		got, err := s.Get(h)
		require.NoError(t, err)
		assert.Equal(t, payload(900, byte(i)), got)
	}

	require.NoError(t, s.Close())
	_, err := s.Get(handles[0])
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Add([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStash_Range(t *testing.T) {
	s := New()
	defer s.Close()

	var want []string
	var handles []Handle
	for i := 0; i < 5; i++ {
		v := fmt.Sprintf("r%d", i)
		h, err := s.Add([]byte(v))
		require.NoError(t, err)
		handles = append(handles, h)
		want = append(want, v)
	}
	require.NoError(t, s.Remove(handles[2]))
	want = append(want[:2], want[3:]...)

	var got []string
	s.Range(func(h Handle, data []byte) bool {
		assert.True(t, s.Valid(h))
		got = append(got, string(data))
		return true
	})
	assert.Equal(t, want, got)

	n := 0
	s.Range(func(Handle, []byte) bool {
		n++
		return n < 2
	})
	assert.Equal(t, 2, n)
}

// TestStash_Properties checks handle stability and memory accounting over a
// random mix of adds and removes.
func TestStash_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := New(WithBlockSize(MinBlockSize))
	defer s.Close()

	model := make(map[Handle][]byte)
	var live []Handle

	for step := 0; step < 5000; step++ {
		if len(live) == 0 || rng.IntN(100) < 60 {
			n := rng.IntN(600)
			if rng.IntN(50) == 0 {
				n = MinBlockSize + rng.IntN(2000)
			}
			data := make([]byte, n)
			for i := range data {
				data[i] = byte(rng.IntN(256))
			}
			h, err := s.Add(data)
			require.NoError(t, err)
			_, dup := model[h]
			require.False(t, dup, "handle issued twice")
			model[h] = data
			live = append(live, h)
		} else {
			i := rng.IntN(len(live))
			h := live[i]
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			require.NoError(t, s.Remove(h))
			delete(model, h)
			_, err := s.Get(h)
			require.ErrorIs(t, err, ErrStaleHandle)
		}

		if step%250 == 0 {
			assertModel(t, s, model)
		}
	}
	assertModel(t, s, model)

	for _, h := range live {
		require.NoError(t, s.Remove(h))
	}
	assert.Equal(t, 0, s.UsedMemory())
	assert.Equal(t, 0, s.Len())
	assert.LessOrEqual(t, s.Stats().Blocks, 1)
}

func assertModel(t *testing.T, s *Stash, model map[Handle][]byte) {
	t.Helper()

	used := 0
	for h, want := range model {
		got, err := s.Get(h)
		require.NoError(t, err)
		require.True(t, bytes.Equal(want, got), "record %s changed", h)
		fp, err := s.Footprint(h)
		require.NoError(t, err)
		used += fp
	}
	require.Equal(t, len(model), s.Len())
	require.Equal(t, used, s.UsedMemory())
	require.Equal(t, used, s.Stats().BytesUsed)
}

func BenchmarkStash_AddRemove(b *testing.B) {
	sizes := []int{32, 256, 4096}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			s := New()
			defer s.Close()
			data := payload(size, 'x')
			window := make([]Handle, 0, 1024)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				h, err := s.AddContext(context.Background(), data)
				if err != nil {
					b.Fatal(err)
				}
				window = append(window, h)
				if len(window) == cap(window) {
					for _, h := range window[:512] {
						_ = s.Remove(h)
					}
					window = append(window[:0], window[512:]...)
				}
			}
		})
	}
}
