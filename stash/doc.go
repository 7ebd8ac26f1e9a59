// Package stash provides a compacting store for variable-length byte records.
//
// A Stash owns a set of memory blocks. Each record is copied into a block
// behind a small fixed header and is addressed by a Handle that encodes the
// block index, the byte offset of the record and a stamp that is unique for
// the lifetime of the Stash.
//
// # Stability
//
// Blocks are never reallocated or moved. Growth appends new blocks, so a
// Handle stays valid across any number of later Add calls until its own
// record is removed. Records never change size; resizing is modeled as
// Remove followed by Add.
//
// # Reclamation
//
// Remove marks the record's slot free and coalesces it with free neighbours
// in the same block. Later Add calls reuse free slots of sufficient size
// before growing the store. A block whose records have all been removed is
// released back to the memory acquirer.
//
// # Stale Handles
//
// Every block tracks the offsets of its live records in a Roaring bitmap, and
// every record header carries the stamp of the Handle that created it. A
// Handle used after its record was removed yields ErrStaleHandle, even when
// the slot has since been reused by a different record.
//
// # Concurrency
//
// A Stash is not safe for concurrent use. It is owned by one sequential
// driver, typically a relations.Database.
package stash
