package assembler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/hupe1980/relstash"
	"github.com/hupe1980/relstash/osm"
	"github.com/hupe1980/relstash/relations"
	"github.com/hupe1980/relstash/stash"
)

// Handler receives relations whose members have all been seen.
type Handler interface {
	// Complete is called once per relation. members[i] is the object of the
	// i-th member, or nil for members the member filter ignored. rel and the
	// objects are only valid during the call.
	Complete(ctx context.Context, rel osm.RelationView, members []*osm.Object) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, rel osm.RelationView, members []*osm.Object) error

// Complete calls f.
func (f HandlerFunc) Complete(ctx context.Context, rel osm.RelationView, members []*osm.Object) error {
	return f(ctx, rel, members)
}

// waiter is one member slot of a resident relation.
type waiter struct {
	pos    int
	member int
}

// held is a member object kept in the member stash until every relation
// that references it is complete.
type held struct {
	handle stash.Handle
	refs   int
}

// Collector assembles relations from two passes over the input. The first
// pass collects relations, the second delivers their members.
//
// A Collector is not safe for concurrent use.
type Collector struct {
	opts    options
	handler Handler
	log     *relstash.Logger
	metrics relstash.MetricsCollector

	db      *relations.Database
	members *stash.Stash

	waiting map[osm.ObjectKey][]waiter
	held    map[osm.ObjectKey]*held

	added     int
	skipped   int
	completed int
	failed    int
}

// New creates a Collector that passes complete relations to h.
func New(h Handler, opts ...Option) *Collector {
	o := options{
		logger:  slog.New(slog.DiscardHandler),
		metrics: relstash.NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	stashOpts := append([]stash.Option{stash.WithLogger(o.logger)}, o.stashOptions...)
	return &Collector{
		opts:    o,
		handler: h,
		log:     relstash.NewLogger(o.logger.Handler()),
		metrics: o.metrics,
		db: relations.New(
			relations.WithLogger(o.logger),
			relations.WithStashOptions(stashOpts...),
		),
		members: stash.New(stashOpts...),
		waiting: make(map[osm.ObjectKey][]waiter),
		held:    make(map[osm.ObjectKey]*held),
	}
}

func (c *Collector) counts(view osm.RelationView, m osm.Member) bool {
	return c.opts.memberFilter == nil || c.opts.memberFilter(view, m)
}

// AddRelation offers a relation from the first pass. It reports whether the
// relation was collected. Relations without members to wait for complete
// immediately.
func (c *Collector) AddRelation(ctx context.Context, rel *osm.Relation) (bool, error) {
	if c.opts.filter != nil && !c.opts.filter(rel) {
		c.skipped++
		c.metrics.RecordRelation(false)
		return false, nil
	}

	cur, err := c.db.AddRelation(rel)
	if err != nil {
		return false, fmt.Errorf("assembler: relation %d: %w", rel.ID, err)
	}
	c.added++
	c.metrics.RecordRelation(true)

	view, err := cur.Relation()
	if err != nil {
		return false, err
	}
	missing := 0
	for i, m := range view.Members() {
		if !c.counts(view, m) {
			continue
		}
		key := m.Key()
		if h, ok := c.held[key]; ok {
			// Object seen earlier and still referenced by another relation.
			h.refs++
			continue
		}
		c.waiting[key] = append(c.waiting[key], waiter{pos: cur.Pos(), member: i})
		missing++
	}
	if err := cur.SetMembers(missing); err != nil {
		return false, err
	}
	if missing == 0 {
		return true, c.complete(ctx, cur)
	}
	return true, nil
}

// AddMember offers an object from the second pass. It reports whether a
// relation was waiting for it. Objects nobody waits for are ignored.
func (c *Collector) AddMember(ctx context.Context, obj *osm.Object) (bool, error) {
	key := obj.Key()
	waiters, ok := c.waiting[key]
	if !ok {
		c.metrics.RecordMember(false)
		return false, nil
	}

	// The waiters stay registered until the object is stored, so a failed
	// add can be retried with the same object.
	data, err := obj.MarshalBinary()
	if err != nil {
		return true, fmt.Errorf("assembler: encode %s: %w", key, err)
	}
	h, err := c.members.AddContext(ctx, data)
	if err != nil {
		return true, fmt.Errorf("assembler: store %s: %w", key, err)
	}
	delete(c.waiting, key)
	c.metrics.RecordMember(true)
	c.held[key] = &held{handle: h, refs: len(waiters)}

	var errs []error
	for _, w := range waiters {
		cur, err := c.db.At(w.pos)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := cur.DecrementMembers(); err != nil {
			errs = append(errs, err)
			continue
		}
		if cur.HasAllMembers() {
			if err := c.complete(ctx, cur); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return true, errors.Join(errs...)
}

// complete hands the relation at cur to the handler, then drops it and
// releases its members.
func (c *Collector) complete(ctx context.Context, cur relations.Cursor) error {
	view, err := cur.Relation()
	if err != nil {
		return err
	}

	objects := make([]*osm.Object, view.MemberCount())
	found := 0
	var decodeErr error
	for i, m := range view.Members() {
		if !c.counts(view, m) {
			continue
		}
		h, ok := c.held[m.Key()]
		if !ok {
			continue
		}
		data, err := c.members.Get(h.handle)
		if err != nil {
			decodeErr = err
			break
		}
		obj := new(osm.Object)
		if err := obj.UnmarshalBinary(data); err != nil {
			decodeErr = err
			break
		}
		objects[i] = obj
		found++
	}

	id := view.ID()
	var handlerErr error
	if decodeErr != nil {
		handlerErr = fmt.Errorf("assembler: members of relation %d: %w", id, decodeErr)
	} else if err := c.handler.Complete(ctx, view, objects); err != nil {
		handlerErr = fmt.Errorf("assembler: relation %d: %w", id, err)
	}
	c.log.LogComplete(ctx, id, found, handlerErr)
	c.metrics.RecordComplete(found, handlerErr)
	if handlerErr != nil {
		c.failed++
	} else {
		c.completed++
	}

	var errs []error
	for _, m := range view.Members() {
		if c.counts(view, m) {
			if err := c.release(m.Key()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := cur.Remove(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(append([]error{handlerErr}, errs...)...)
}

func (c *Collector) release(key osm.ObjectKey) error {
	h, ok := c.held[key]
	if !ok {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	delete(c.held, key)
	return c.members.Remove(h.handle)
}

// RelationSink returns a sink for the first pass. Objects that are not
// relations are ignored.
func (c *Collector) RelationSink(ctx context.Context) osm.Sink {
	return osm.SinkFunc(func(obj *osm.Object) error {
		rel, ok := obj.Relation()
		if !ok {
			return nil
		}
		_, err := c.AddRelation(ctx, rel)
		return err
	})
}

// MemberSink returns a sink for the second pass.
func (c *Collector) MemberSink(ctx context.Context) osm.Sink {
	return osm.SinkFunc(func(obj *osm.Object) error {
		_, err := c.AddMember(ctx, obj)
		return err
	})
}

// Incomplete iterates over relations still missing members, in the order
// they were added, with the number of members missing.
func (c *Collector) Incomplete() iter.Seq2[osm.RelationView, int] {
	return func(yield func(osm.RelationView, int) bool) {
		for cur := range c.db.Incomplete() {
			view, err := cur.Relation()
			if err != nil {
				continue
			}
			n, err := cur.Members()
			if err != nil {
				continue
			}
			if !yield(view, n) {
				return
			}
		}
	}
}

// Pending iterates over relations still missing members, in the order they
// were added, with the members they wait for.
func (c *Collector) Pending() iter.Seq2[osm.RelationView, []osm.Member] {
	return func(yield func(osm.RelationView, []osm.Member) bool) {
		for cur := range c.db.Incomplete() {
			view, err := cur.Relation()
			if err != nil {
				continue
			}
			if !yield(view, c.missing(cur.Pos(), view)) {
				return
			}
		}
	}
}

// MissingMembers returns the members the relation at pos still waits for.
func (c *Collector) MissingMembers(pos int) []osm.Member {
	cur, err := c.db.At(pos)
	if err != nil {
		return nil
	}
	view, err := cur.Relation()
	if err != nil {
		return nil
	}
	return c.missing(pos, view)
}

func (c *Collector) missing(pos int, view osm.RelationView) []osm.Member {
	var missing []osm.Member
	for i, m := range view.Members() {
		for _, w := range c.waiting[m.Key()] {
			if w.pos == pos && w.member == i {
				missing = append(missing, m)
				break
			}
		}
	}
	return missing
}

// Stats summarizes a collector.
type Stats struct {
	RelationsAdded   int `json:"relations_added"`
	RelationsSkipped int `json:"relations_skipped"`
	Completed        int `json:"completed"`
	Failed           int `json:"failed"`
	Incomplete       int `json:"incomplete"`
	MembersHeld      int `json:"members_held"`
	MembersWaiting   int `json:"members_waiting"`
	RelationMemory   int `json:"relation_memory"`
	MemberMemory     int `json:"member_memory"`
	ReservedMemory   int `json:"reserved_memory"`
}

// Stats returns a snapshot of the collector's counters and memory use.
func (c *Collector) Stats() Stats {
	db := c.db.Stats()
	ms := c.members.Stats()
	return Stats{
		RelationsAdded:   c.added,
		RelationsSkipped: c.skipped,
		Completed:        c.completed,
		Failed:           c.failed,
		Incomplete:       db.Incomplete,
		MembersHeld:      c.members.Len(),
		MembersWaiting:   len(c.waiting),
		RelationMemory:   db.UsedMemory,
		MemberMemory:     c.members.UsedMemory(),
		ReservedMemory:   db.Stash.BytesReserved + ms.BytesReserved,
	}
}

// Close releases both stashes.
func (c *Collector) Close() error {
	return errors.Join(c.db.Close(), c.members.Close())
}
