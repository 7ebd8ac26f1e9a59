// Package relations tracks partially resolved relations during multi-pass
// processing.
//
// A Database stores serialized relations in a stash.Stash and indexes them by
// insertion position. Each entry carries a counter of members that have not
// been seen yet:
//
//	db := relations.New()
//	defer db.Close()
//
//	c, err := db.AddRelation(rel)
//	if err != nil {
//	    return err
//	}
//	if err := c.SetMembers(len(rel.Members)); err != nil {
//	    return err
//	}
//	...
//	// a member turned up
//	if err := c.DecrementMembers(); err != nil {
//	    return err
//	}
//	if c.HasAllMembers() {
//	    view, err := c.Relation()
//	    if err != nil {
//	        return err
//	    }
//	    assemble(view)
//	    if err := c.Remove(); err != nil {
//	        return err
//	    }
//	}
//
// Positions are assigned in insertion order and are never reused or shifted;
// removing an entry leaves a hole. A complete entry (counter zero) stays
// resident until it is removed explicitly.
//
// # Errors
//
// Over-decrementing, removing twice, dereferencing a removed entry and
// addressing a position that was never assigned are caller bugs. They are
// reported as errors wrapping ErrOverDecrement, ErrRemoved and ErrOutOfRange
// and are never clamped or ignored.
//
// # Concurrency
//
// A Database is not safe for concurrent use.
package relations
