package relations

import (
	"fmt"
	"math"

	"github.com/hupe1980/relstash/internal/conv"
	"github.com/hupe1980/relstash/osm"
	"github.com/hupe1980/relstash/stash"
)

// Cursor refers to one position of a Database. It is a small value; copies
// refer to the same entry.
type Cursor struct {
	db  *Database
	pos int
}

// Pos returns the position of the entry.
func (c Cursor) Pos() int {
	return c.pos
}

// Valid reports whether the cursor was obtained from a database.
func (c Cursor) Valid() bool {
	return c.db != nil
}

// Live reports whether the entry has not been removed.
func (c Cursor) Live() bool {
	if c.db == nil {
		return false
	}
	e, err := c.db.entry(c.pos)
	return err == nil && !e.handle.IsZero()
}

// Handle returns the stash handle of the entry, or the zero handle after
// removal.
func (c Cursor) Handle() stash.Handle {
	if c.db == nil {
		return stash.Handle{}
	}
	e, err := c.db.entry(c.pos)
	if err != nil {
		return stash.Handle{}
	}
	return e.handle
}

// Members returns the number of members the relation is still missing.
func (c Cursor) Members() (int, error) {
	e, err := c.live()
	if err != nil {
		return 0, err
	}
	return int(e.members), nil
}

// SetMembers sets the missing member counter to n.
func (c Cursor) SetMembers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeMembers, n)
	}
	m, err := conv.IntToUint32(n)
	if err != nil {
		return fmt.Errorf("relations: member count: %w", err)
	}
	e, err := c.live()
	if err != nil {
		return err
	}
	c.db.setMembers(c.pos, e, m)
	return nil
}

// IncrementMembers adds one to the missing member counter.
func (c Cursor) IncrementMembers() error {
	e, err := c.live()
	if err != nil {
		return err
	}
	if e.members == math.MaxUint32 {
		return fmt.Errorf("relations: member counter of position %d overflows", c.pos)
	}
	c.db.setMembers(c.pos, e, e.members+1)
	return nil
}

// DecrementMembers subtracts one from the missing member counter. It fails
// with ErrOverDecrement when the counter is already zero.
func (c Cursor) DecrementMembers() error {
	e, err := c.live()
	if err != nil {
		return err
	}
	if e.members == 0 {
		return fmt.Errorf("position %d: %w", c.pos, ErrOverDecrement)
	}
	c.db.setMembers(c.pos, e, e.members-1)
	return nil
}

// HasAllMembers reports whether the missing member counter is zero.
// It returns false for removed entries.
func (c Cursor) HasAllMembers() bool {
	e, err := c.live()
	return err == nil && e.members == 0
}

// Remove frees the relation record. Removing an entry twice fails with
// ErrRemoved.
func (c Cursor) Remove() error {
	e, err := c.live()
	if err != nil {
		return err
	}
	return c.db.remove(c.pos, e)
}

// Relation returns a view of the stored relation record. The view aliases
// stash memory and is valid until the entry is removed.
func (c Cursor) Relation() (osm.RelationView, error) {
	e, err := c.live()
	if err != nil {
		return osm.RelationView{}, err
	}
	data, err := c.db.stash.Get(e.handle)
	if err != nil {
		return osm.RelationView{}, fmt.Errorf("relations: position %d: %w", c.pos, err)
	}
	return osm.ViewOf(data), nil
}

func (c Cursor) live() (*entry, error) {
	if c.db == nil {
		return nil, fmt.Errorf("relations: zero cursor: %w", ErrRemoved)
	}
	return c.db.liveEntry(c.pos)
}

func (c Cursor) String() string {
	return fmt.Sprintf("cursor(%d)", c.pos)
}
