package assembler

import (
	"log/slog"

	"github.com/hupe1980/relstash"
	"github.com/hupe1980/relstash/osm"
	"github.com/hupe1980/relstash/stash"
)

// Filter decides in the first pass whether a relation is collected.
type Filter func(rel *osm.Relation) bool

// MemberFilter decides which members of a collected relation have to be
// seen before the relation is complete.
type MemberFilter func(rel osm.RelationView, m osm.Member) bool

type options struct {
	filter       Filter
	memberFilter MemberFilter
	stashOptions []stash.Option
	logger       *slog.Logger
	metrics      relstash.MetricsCollector
	workers      int
}

// Option configures a Collector.
type Option func(*options)

// WithFilter sets the relation filter. By default every relation is kept.
func WithFilter(f Filter) Option {
	return func(o *options) {
		o.filter = f
	}
}

// WithMemberFilter sets the member filter. By default every member counts.
func WithMemberFilter(f MemberFilter) Option {
	return func(o *options) {
		o.memberFilter = f
	}
}

// WithTagFilter keeps relations whose tag key has one of values. Without
// values, any value matches.
func WithTagFilter(key string, values ...string) Option {
	return WithFilter(func(rel *osm.Relation) bool {
		v, ok := rel.Tag(key)
		if !ok {
			return false
		}
		if len(values) == 0 {
			return true
		}
		for _, want := range values {
			if v == want {
				return true
			}
		}
		return false
	})
}

// WithMemberTypes counts only members of the given types.
func WithMemberTypes(types ...osm.ItemType) Option {
	return WithMemberFilter(func(_ osm.RelationView, m osm.Member) bool {
		for _, t := range types {
			if m.Type == t {
				return true
			}
		}
		return false
	})
}

// WithStashOptions configures the relation and the member stash.
func WithStashOptions(opts ...stash.Option) Option {
	return func(o *options) {
		o.stashOptions = append(o.stashOptions, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m relstash.MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithWorkers sets the number of JSON decoding goroutines used by Run.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
