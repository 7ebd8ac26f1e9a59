package osm

import (
	"cmp"
	"iter"
	"slices"
)

// Sink receives entities one at a time.
type Sink interface {
	Add(o *Object) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(o *Object) error

// Add calls f(o).
func (f SinkFunc) Add(o *Object) error { return f(o) }

// Collection gathers objects so they can be sorted or otherwise rearranged
// without touching the objects themselves.
//
//	var objects osm.Collection
//	err := source.Each(ctx, r, &objects)
//	objects.Sort(osm.ByTypeIDVersion)
type Collection struct {
	objects []*Object
}

// Add appends o to the collection. It never fails.
func (c *Collection) Add(o *Object) error {
	c.objects = append(c.objects, o)
	return nil
}

// Len returns the number of objects.
func (c *Collection) Len() int {
	return len(c.objects)
}

// At returns the i-th object.
func (c *Collection) At(i int) *Object {
	return c.objects[i]
}

// Sort orders the objects with cmp; the sort is stable.
func (c *Collection) Sort(cmp func(a, b *Object) int) {
	slices.SortStableFunc(c.objects, cmp)
}

// All iterates over the objects in their current order.
func (c *Collection) All() iter.Seq[*Object] {
	return slices.Values(c.objects)
}

// Reset removes all objects.
func (c *Collection) Reset() {
	clear(c.objects)
	c.objects = c.objects[:0]
}

// ByTypeIDVersion orders nodes before ways before relations, then by id and
// version.
func ByTypeIDVersion(a, b *Object) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.Version, b.Version)
}

// ByTypeIDVersionDesc is ByTypeIDVersion with newest versions first.
func ByTypeIDVersionDesc(a, b *Object) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(b.Version, a.Version)
}
