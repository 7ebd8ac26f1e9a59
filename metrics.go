package relstash

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordRelation is called for every relation offered in the first pass.
	// kept is false when the filter rejected it.
	RecordRelation(kept bool)

	// RecordMember is called for every object offered in the second pass.
	// matched is true when some relation was waiting for it.
	RecordMember(matched bool)

	// RecordComplete is called after the handler ran for a complete relation.
	RecordComplete(members int, err error)

	// RecordPass is called at the end of each pass.
	RecordPass(pass, items int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRelation(bool)                {}
func (NoopMetricsCollector) RecordMember(bool)                  {}
func (NoopMetricsCollector) RecordComplete(int, error)          {}
func (NoopMetricsCollector) RecordPass(int, int, time.Duration) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	RelationsKept    atomic.Int64
	RelationsSkipped atomic.Int64
	MembersMatched   atomic.Int64
	MembersIgnored   atomic.Int64
	Completed        atomic.Int64
	CompletedMembers atomic.Int64
	CompleteErrors   atomic.Int64
	Passes           atomic.Int64
	PassItems        atomic.Int64
	PassTotalNanos   atomic.Int64
}

// RecordRelation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRelation(kept bool) {
	if kept {
		b.RelationsKept.Add(1)
	} else {
		b.RelationsSkipped.Add(1)
	}
}

// RecordMember implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMember(matched bool) {
	if matched {
		b.MembersMatched.Add(1)
	} else {
		b.MembersIgnored.Add(1)
	}
}

// RecordComplete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordComplete(members int, err error) {
	b.Completed.Add(1)
	b.CompletedMembers.Add(int64(members))
	if err != nil {
		b.CompleteErrors.Add(1)
	}
}

// RecordPass implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPass(_ int, items int, duration time.Duration) {
	b.Passes.Add(1)
	b.PassItems.Add(int64(items))
	b.PassTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RelationsKept:    b.RelationsKept.Load(),
		RelationsSkipped: b.RelationsSkipped.Load(),
		MembersMatched:   b.MembersMatched.Load(),
		MembersIgnored:   b.MembersIgnored.Load(),
		Completed:        b.Completed.Load(),
		CompletedMembers: b.CompletedMembers.Load(),
		CompleteErrors:   b.CompleteErrors.Load(),
		Passes:           b.Passes.Load(),
		PassItems:        b.PassItems.Load(),
		PassAvgNanos:     b.getAvgPassNanos(),
	}
}

func (b *BasicMetricsCollector) getAvgPassNanos() int64 {
	count := b.Passes.Load()
	if count == 0 {
		return 0
	}
	return b.PassTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RelationsKept    int64 `json:"relations_kept"`
	RelationsSkipped int64 `json:"relations_skipped"`
	MembersMatched   int64 `json:"members_matched"`
	MembersIgnored   int64 `json:"members_ignored"`
	Completed        int64 `json:"completed"`
	CompletedMembers int64 `json:"completed_members"`
	CompleteErrors   int64 `json:"complete_errors"`
	Passes           int64 `json:"passes"`
	PassItems        int64 `json:"pass_items"`
	PassAvgNanos     int64 `json:"pass_avg_nanos"`
}
