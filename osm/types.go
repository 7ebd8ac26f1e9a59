package osm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord is returned when a serialized record fails validation.
	ErrInvalidRecord = errors.New("osm: invalid record")
	// ErrStringTooLong is returned when a role or tag exceeds 65535 bytes.
	ErrStringTooLong = errors.New("osm: string too long")
	// ErrUnknownItemType is returned when parsing an unknown item type.
	ErrUnknownItemType = errors.New("osm: unknown item type")
)

// ItemType identifies the kind of an entity or member reference.
type ItemType uint8

const (
	UnknownType ItemType = iota
	NodeType
	WayType
	RelationType
)

func (t ItemType) String() string {
	switch t {
	case NodeType:
		return "node"
	case WayType:
		return "way"
	case RelationType:
		return "relation"
	default:
		return "unknown"
	}
}

// ParseItemType parses the long ("node") or short ("n") type name.
func ParseItemType(s string) (ItemType, error) {
	switch s {
	case "node", "n":
		return NodeType, nil
	case "way", "w":
		return WayType, nil
	case "relation", "r":
		return RelationType, nil
	default:
		return UnknownType, fmt.Errorf("%w: %q", ErrUnknownItemType, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ItemType) MarshalText() ([]byte, error) {
	if t == UnknownType || t > RelationType {
		return nil, fmt.Errorf("%w: %d", ErrUnknownItemType, t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ItemType) UnmarshalText(b []byte) error {
	v, err := ParseItemType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Tag is a key/value pair.
type Tag struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// Member is a typed reference from a relation to another entity.
type Member struct {
	Type ItemType `json:"type"`
	Ref  int64    `json:"ref"`
	Role string   `json:"role,omitempty"`
}

// Key returns the (type, id) pair identifying the referenced entity.
func (m Member) Key() ObjectKey {
	return ObjectKey{Type: m.Type, ID: m.Ref}
}

// ObjectKey identifies an entity by type and id.
type ObjectKey struct {
	Type ItemType
	ID   int64
}

func (k ObjectKey) String() string {
	return fmt.Sprintf("%s/%d", k.Type, k.ID)
}

// Relation is a composite entity.
type Relation struct {
	ID      int64    `json:"id"`
	Version uint32   `json:"version,omitempty"`
	Members []Member `json:"members,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`
}

// PositiveID returns the absolute value of the id.
func (r *Relation) PositiveID() int64 {
	return abs(r.ID)
}

// Tag returns the value of the tag with the given key.
func (r *Relation) Tag(key string) (string, bool) {
	return lookupTag(r.Tags, key)
}

// Object is any entity read from an input stream: a node, a way or a
// relation. Which fields are meaningful depends on Type.
type Object struct {
	Type    ItemType `json:"type"`
	ID      int64    `json:"id"`
	Version uint32   `json:"version,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`

	// Lat and Lon are set for nodes.
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
	// Refs lists the node ids of a way.
	Refs []int64 `json:"refs,omitempty"`
	// Members lists the members of a relation.
	Members []Member `json:"members,omitempty"`
}

// Key returns the (type, id) pair of the object.
func (o *Object) Key() ObjectKey {
	return ObjectKey{Type: o.Type, ID: o.ID}
}

// PositiveID returns the absolute value of the id.
func (o *Object) PositiveID() int64 {
	return abs(o.ID)
}

// Tag returns the value of the tag with the given key.
func (o *Object) Tag(key string) (string, bool) {
	return lookupTag(o.Tags, key)
}

// Relation returns the relation described by a relation object.
func (o *Object) Relation() (*Relation, bool) {
	if o.Type != RelationType {
		return nil, false
	}
	return &Relation{
		ID:      o.ID,
		Version: o.Version,
		Members: o.Members,
		Tags:    o.Tags,
	}, true
}

func lookupTag(tags []Tag, key string) (string, bool) {
	for _, t := range tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
