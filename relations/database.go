package relations

import (
	"context"
	"fmt"
	"iter"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/relstash/internal/container"
	"github.com/hupe1980/relstash/internal/conv"
	"github.com/hupe1980/relstash/osm"
	"github.com/hupe1980/relstash/stash"
)

// entry is one position of the database. A zero handle marks a removed entry.
type entry struct {
	handle  stash.Handle
	members uint32
}

// Database indexes relations stored in a stash by insertion position and
// tracks the number of members each one is still missing.
type Database struct {
	stash     *stash.Stash
	ownsStash bool
	opts      options

	entries *container.SegmentedArray[entry]
	// resident holds positions that were not removed, incomplete the resident
	// positions whose member counter is above zero.
	resident   *roaring.Bitmap
	incomplete *roaring.Bitmap
}

// New creates an empty database.
func New(opts ...Option) *Database {
	o := options{logger: discardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	db := &Database{
		stash:      o.stash,
		opts:       o,
		entries:    container.NewSegmentedArray[entry](),
		resident:   roaring.New(),
		incomplete: roaring.New(),
	}
	if db.stash == nil {
		stashOpts := append([]stash.Option{stash.WithLogger(o.logger)}, o.stashOptions...)
		db.stash = stash.New(stashOpts...)
		db.ownsStash = true
	}
	return db
}

// Add copies the relation record into the stash and appends a new entry with
// a member counter of zero.
func (db *Database) Add(rel osm.RelationView) (Cursor, error) {
	return db.AddContext(context.Background(), rel)
}

// AddContext is Add with a context for stash growth.
func (db *Database) AddContext(ctx context.Context, rel osm.RelationView) (Cursor, error) {
	pos := db.entries.Len()
	p32, err := conv.IntToUint32(pos)
	if err != nil {
		return Cursor{}, ErrTooManyEntries
	}

	h, err := db.stash.AddContext(ctx, rel.Bytes())
	if err != nil {
		return Cursor{}, fmt.Errorf("relations: add at position %d: %w", pos, err)
	}

	db.entries.Append(entry{handle: h})
	db.resident.Add(p32)
	return Cursor{db: db, pos: pos}, nil
}

// AddRelation serializes rel and adds it.
func (db *Database) AddRelation(rel *osm.Relation) (Cursor, error) {
	data, err := rel.MarshalBinary()
	if err != nil {
		return Cursor{}, fmt.Errorf("relations: encode relation %d: %w", rel.ID, err)
	}
	return db.Add(osm.ViewOf(data))
}

// At returns a cursor for pos. Positions of removed entries are valid; the
// returned cursor reports Live() == false.
func (db *Database) At(pos int) (Cursor, error) {
	if _, err := db.entry(pos); err != nil {
		return Cursor{}, err
	}
	return Cursor{db: db, pos: pos}, nil
}

func (db *Database) entry(pos int) (*entry, error) {
	e, ok := db.entries.At(pos)
	if !ok {
		return nil, &RangeError{Pos: pos, Len: db.entries.Len()}
	}
	return e, nil
}

// liveEntry returns the entry at pos, failing if it was removed.
func (db *Database) liveEntry(pos int) (*entry, error) {
	e, err := db.entry(pos)
	if err != nil {
		return nil, err
	}
	if e.handle.IsZero() {
		return nil, fmt.Errorf("position %d: %w", pos, ErrRemoved)
	}
	return e, nil
}

func (db *Database) setMembers(pos int, e *entry, n uint32) {
	e.members = n
	if n == 0 {
		db.incomplete.Remove(uint32(pos)) //nolint:gosec // pos <= MaxUint32 checked in Add
	} else {
		db.incomplete.Add(uint32(pos)) //nolint:gosec // pos <= MaxUint32 checked in Add
	}
}

func (db *Database) remove(pos int, e *entry) error {
	if err := db.stash.Remove(e.handle); err != nil {
		return fmt.Errorf("relations: remove position %d: %w", pos, err)
	}
	e.handle = stash.Handle{}
	e.members = 0
	db.resident.Remove(uint32(pos))   //nolint:gosec // pos <= MaxUint32 checked in Add
	db.incomplete.Remove(uint32(pos)) //nolint:gosec // pos <= MaxUint32 checked in Add
	return nil
}

// Len returns the number of resident entries, complete or not.
func (db *Database) Len() int {
	return int(db.resident.GetCardinality())
}

// Positions returns the number of positions ever assigned.
func (db *Database) Positions() int {
	return db.entries.Len()
}

// IncompleteLen returns the number of resident entries still missing members.
func (db *Database) IncompleteLen() int {
	return int(db.incomplete.GetCardinality())
}

// UsedMemory returns the stash memory occupied by resident relations.
func (db *Database) UsedMemory() int {
	return db.stash.UsedMemory()
}

// Relations returns views of all resident relations in ascending position
// order. The views alias stash memory and are valid until the next call that
// removes or adds an entry. A resident entry whose record is gone, because a
// shared stash was changed behind the database's back or closed, is an
// error.
func (db *Database) Relations() ([]osm.RelationView, error) {
	out := make([]osm.RelationView, 0, db.Len())
	for c := range db.All() {
		v, err := c.Relation()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// All iterates over cursors of resident entries in ascending position order.
// Entries may be removed during iteration.
func (db *Database) All() iter.Seq[Cursor] {
	return db.each(db.resident)
}

// Incomplete iterates over cursors of resident entries whose member counter
// is above zero, in ascending position order. Entries may be removed or
// completed during iteration.
func (db *Database) Incomplete() iter.Seq[Cursor] {
	return db.each(db.incomplete)
}

// each walks bm from low to high positions, re-seeking after every yield so
// the caller may mutate the bitmap in between.
func (db *Database) each(bm *roaring.Bitmap) iter.Seq[Cursor] {
	return func(yield func(Cursor) bool) {
		var next uint32
		for {
			it := bm.Iterator()
			it.AdvanceIfNeeded(next)
			if !it.HasNext() {
				return
			}
			pos := it.Next()
			if !yield(Cursor{db: db, pos: int(pos)}) {
				return
			}
			if pos == math.MaxUint32 {
				return
			}
			next = pos + 1
		}
	}
}

// Stats reports database and stash accounting.
type Stats struct {
	Positions  int
	Resident   int
	Incomplete int
	UsedMemory int
	Stash      stash.Stats
}

// Stats returns a snapshot of the database's accounting.
func (db *Database) Stats() Stats {
	return Stats{
		Positions:  db.Positions(),
		Resident:   db.Len(),
		Incomplete: db.IncompleteLen(),
		UsedMemory: db.UsedMemory(),
		Stash:      db.stash.Stats(),
	}
}

// Close releases the stash if the database created it.
func (db *Database) Close() error {
	db.opts.logger.Debug("relations database closed",
		"positions", db.Positions(),
		"resident", db.Len(),
		"incomplete", db.IncompleteLen(),
	)
	if db.ownsStash {
		return db.stash.Close()
	}
	return nil
}
