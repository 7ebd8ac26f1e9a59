package stash

// Stats tracks stash memory usage metrics.
//
// Note on semantics:
//   - BytesReserved: memory currently held in blocks
//   - BytesUsed: bytes occupied by live records, headers included (UsedMemory)
//   - BytesFree: bytes in reusable free extents
//   - Records: live record count (Len)
//   - TotalAdds, TotalRemoves, ReusedSlots: cumulative operation counts
type Stats struct {
	Blocks          int // Current: blocks holding memory
	BlocksAllocated int // Historical: blocks ever allocated
	BlocksReleased  int // Historical: blocks ever released
	BytesReserved   int
	BytesUsed       int
	BytesFree       int
	Records         int
	TotalAdds       uint64
	TotalRemoves    uint64
	ReusedSlots     uint64
}

type counters struct {
	adds            uint64
	removes         uint64
	reused          uint64
	blocksAllocated int
	blocksReleased  int
}

// Stats returns a snapshot of the stash's accounting.
func (s *Stash) Stats() Stats {
	return Stats{
		Blocks:          s.stats.blocksAllocated - s.stats.blocksReleased,
		BlocksAllocated: s.stats.blocksAllocated,
		BlocksReleased:  s.stats.blocksReleased,
		BytesReserved:   s.reserved,
		BytesUsed:       s.usedMemory,
		BytesFree:       s.freeBytes,
		Records:         s.count,
		TotalAdds:       s.stats.adds,
		TotalRemoves:    s.stats.removes,
		ReusedSlots:     s.stats.reused,
	}
}
