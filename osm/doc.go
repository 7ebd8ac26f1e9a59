// Package osm defines the map entities handled by relstash and their
// serialized forms.
//
// A relation is a composite entity whose members reference nodes, ways or
// other relations by id. Relations are stored as a compact, length-prefixed
// binary record built by Relation.MarshalBinary and read without copying
// through RelationView. Nodes and ways that resolve members travel as Object
// values and are encoded with Object.MarshalBinary when they have to be kept.
//
// Readers deliver entities one at a time to a Sink; Collection is a Sink that
// gathers objects for sorting.
package osm
