package osm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/hupe1980/relstash/internal/conv"
)

// Relation record layout (little endian):
//
//	[0:4]    total record length
//	[4:6]    format version
//	[6:8]    reserved
//	[8:16]   id
//	[16:20]  version
//	[20:24]  member count
//	[24:28]  tag count
//	[28:32]  reserved
//	[32:]    member table, 16 bytes per member:
//	         [0] type [1] reserved [2:4] role length [4:8] role offset [8:16] ref
//	         tag table, 8 bytes per tag:
//	         [0:4] key offset [4:6] key length [6:8] value length (value follows key)
//	         string heap
const (
	recordHeaderSize = 32
	memberEntrySize  = 16
	tagEntrySize     = 8
	recordFormat     = 1
)

// MarshalBinary encodes the relation as a relation record.
func (r *Relation) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(nil)
}

// AppendBinary appends the relation record to dst.
func (r *Relation) AppendBinary(dst []byte) ([]byte, error) {
	heap := 0
	for _, m := range r.Members {
		if _, err := conv.IntToUint16(len(m.Role)); err != nil {
			return dst, fmt.Errorf("%w: role of member %s", ErrStringTooLong, m.Key())
		}
		heap += len(m.Role)
	}
	for _, t := range r.Tags {
		_, kerr := conv.IntToUint16(len(t.Key))
		_, verr := conv.IntToUint16(len(t.Value))
		if kerr != nil || verr != nil {
			return dst, fmt.Errorf("%w: tag %q", ErrStringTooLong, t.Key)
		}
		heap += len(t.Key) + len(t.Value)
	}

	total := recordHeaderSize + len(r.Members)*memberEntrySize + len(r.Tags)*tagEntrySize + heap
	if _, err := conv.IntToUint32(total); err != nil {
		return dst, fmt.Errorf("%w: relation %d: %w", ErrInvalidRecord, r.ID, err)
	}

	start := len(dst)
	dst = append(dst, make([]byte, total)...)
	rec := dst[start:]

	binary.LittleEndian.PutUint32(rec[0:4], uint32(total))
	binary.LittleEndian.PutUint16(rec[4:6], recordFormat)
	binary.LittleEndian.PutUint64(rec[8:16], uint64(r.ID)) //nolint:gosec // two's complement round trip
	binary.LittleEndian.PutUint32(rec[16:20], r.Version)
	binary.LittleEndian.PutUint32(rec[20:24], uint32(len(r.Members))) //nolint:gosec // bounded by total
	binary.LittleEndian.PutUint32(rec[24:28], uint32(len(r.Tags)))    //nolint:gosec // bounded by total

	strOff := recordHeaderSize + len(r.Members)*memberEntrySize + len(r.Tags)*tagEntrySize
	p := recordHeaderSize
	for _, m := range r.Members {
		e := rec[p : p+memberEntrySize]
		e[0] = byte(m.Type)
		binary.LittleEndian.PutUint16(e[2:4], uint16(len(m.Role))) //nolint:gosec // checked above
		binary.LittleEndian.PutUint32(e[4:8], uint32(strOff))      //nolint:gosec // bounded by total
		binary.LittleEndian.PutUint64(e[8:16], uint64(m.Ref))      //nolint:gosec // two's complement round trip
		strOff += copy(rec[strOff:], m.Role)
		p += memberEntrySize
	}
	for _, t := range r.Tags {
		e := rec[p : p+tagEntrySize]
		binary.LittleEndian.PutUint32(e[0:4], uint32(strOff))      //nolint:gosec // bounded by total
		binary.LittleEndian.PutUint16(e[4:6], uint16(len(t.Key)))   //nolint:gosec // checked above
		binary.LittleEndian.PutUint16(e[6:8], uint16(len(t.Value))) //nolint:gosec // checked above
		strOff += copy(rec[strOff:], t.Key)
		strOff += copy(rec[strOff:], t.Value)
		p += tagEntrySize
	}
	return dst, nil
}

// RelationView reads a relation record in place.
//
// A view aliases the bytes it was created from; it is only as long-lived as
// that memory. Use Clone or Decode to keep the relation beyond that.
type RelationView struct {
	data []byte
}

// ParseRelationView validates data as a relation record and returns a view on it.
func ParseRelationView(data []byte) (RelationView, error) {
	if len(data) < recordHeaderSize {
		return RelationView{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidRecord, len(data))
	}
	if size := binary.LittleEndian.Uint32(data[0:4]); uint64(size) != uint64(len(data)) {
		return RelationView{}, fmt.Errorf("%w: length field %d, got %d bytes", ErrInvalidRecord, size, len(data))
	}
	if f := binary.LittleEndian.Uint16(data[4:6]); f != recordFormat {
		return RelationView{}, fmt.Errorf("%w: unsupported format %d", ErrInvalidRecord, f)
	}

	v := RelationView{data: data}
	members, tags := uint64(v.MemberCount()), uint64(v.TagCount())
	tables := uint64(recordHeaderSize) + members*memberEntrySize + tags*tagEntrySize
	if tables > uint64(len(data)) {
		return RelationView{}, fmt.Errorf("%w: tables exceed record", ErrInvalidRecord)
	}
	for i := 0; i < int(members); i++ {
		e := v.memberEntry(i)
		if ItemType(e[0]) == UnknownType || ItemType(e[0]) > RelationType {
			return RelationView{}, fmt.Errorf("%w: member %d has type %d", ErrInvalidRecord, i, e[0])
		}
		off := uint64(binary.LittleEndian.Uint32(e[4:8]))
		n := uint64(binary.LittleEndian.Uint16(e[2:4]))
		if off < tables || off+n > uint64(len(data)) {
			return RelationView{}, fmt.Errorf("%w: member %d role out of bounds", ErrInvalidRecord, i)
		}
	}
	for i := 0; i < int(tags); i++ {
		e := v.tagEntry(i)
		off := uint64(binary.LittleEndian.Uint32(e[0:4]))
		n := uint64(binary.LittleEndian.Uint16(e[4:6])) + uint64(binary.LittleEndian.Uint16(e[6:8]))
		if off < tables || off+n > uint64(len(data)) {
			return RelationView{}, fmt.Errorf("%w: tag %d out of bounds", ErrInvalidRecord, i)
		}
	}
	return v, nil
}

// ViewOf returns a view on data without validating it. data must come from
// MarshalBinary or from a view that was validated before.
func ViewOf(data []byte) RelationView {
	return RelationView{data: data}
}

// IsZero reports whether the view is empty.
func (v RelationView) IsZero() bool {
	return len(v.data) == 0
}

// Bytes returns the underlying record.
func (v RelationView) Bytes() []byte {
	return v.data
}

// Size returns the record length in bytes.
func (v RelationView) Size() int {
	return len(v.data)
}

// ID returns the relation id.
func (v RelationView) ID() int64 {
	return int64(binary.LittleEndian.Uint64(v.data[8:16])) //nolint:gosec // two's complement round trip
}

// PositiveID returns the absolute value of the id.
func (v RelationView) PositiveID() int64 {
	return abs(v.ID())
}

// Version returns the relation version.
func (v RelationView) Version() uint32 {
	return binary.LittleEndian.Uint32(v.data[16:20])
}

// MemberCount returns the number of members.
func (v RelationView) MemberCount() int {
	return int(binary.LittleEndian.Uint32(v.data[20:24]))
}

// TagCount returns the number of tags.
func (v RelationView) TagCount() int {
	return int(binary.LittleEndian.Uint32(v.data[24:28]))
}

func (v RelationView) memberEntry(i int) []byte {
	p := recordHeaderSize + i*memberEntrySize
	return v.data[p : p+memberEntrySize]
}

func (v RelationView) tagEntry(i int) []byte {
	p := recordHeaderSize + v.MemberCount()*memberEntrySize + i*tagEntrySize
	return v.data[p : p+tagEntrySize]
}

// Member returns the i-th member. It panics if i is out of range.
func (v RelationView) Member(i int) Member {
	if i < 0 || i >= v.MemberCount() {
		panic(fmt.Sprintf("osm: member index %d out of range [0,%d)", i, v.MemberCount()))
	}
	e := v.memberEntry(i)
	off := binary.LittleEndian.Uint32(e[4:8])
	n := uint32(binary.LittleEndian.Uint16(e[2:4]))
	return Member{
		Type: ItemType(e[0]),
		Ref:  int64(binary.LittleEndian.Uint64(e[8:16])), //nolint:gosec // two's complement round trip
		Role: string(v.data[off : off+n]),
	}
}

// Members iterates over the members in order.
func (v RelationView) Members() iter.Seq2[int, Member] {
	return func(yield func(int, Member) bool) {
		for i := 0; i < v.MemberCount(); i++ {
			if !yield(i, v.Member(i)) {
				return
			}
		}
	}
}

// Tag returns the i-th tag. It panics if i is out of range.
func (v RelationView) Tag(i int) Tag {
	if i < 0 || i >= v.TagCount() {
		panic(fmt.Sprintf("osm: tag index %d out of range [0,%d)", i, v.TagCount()))
	}
	e := v.tagEntry(i)
	off := binary.LittleEndian.Uint32(e[0:4])
	kn := uint32(binary.LittleEndian.Uint16(e[4:6]))
	vn := uint32(binary.LittleEndian.Uint16(e[6:8]))
	return Tag{
		Key:   string(v.data[off : off+kn]),
		Value: string(v.data[off+kn : off+kn+vn]),
	}
}

// Lookup returns the value of the tag with the given key.
func (v RelationView) Lookup(key string) (string, bool) {
	for i := 0; i < v.TagCount(); i++ {
		e := v.tagEntry(i)
		off := binary.LittleEndian.Uint32(e[0:4])
		kn := uint32(binary.LittleEndian.Uint16(e[4:6]))
		if string(v.data[off:off+kn]) == key {
			return v.Tag(i).Value, true
		}
	}
	return "", false
}

// Decode copies the record into a Relation.
func (v RelationView) Decode() Relation {
	r := Relation{
		ID:      v.ID(),
		Version: v.Version(),
	}
	if n := v.MemberCount(); n > 0 {
		r.Members = make([]Member, n)
		for i := range r.Members {
			r.Members[i] = v.Member(i)
		}
	}
	if n := v.TagCount(); n > 0 {
		r.Tags = make([]Tag, n)
		for i := range r.Tags {
			r.Tags[i] = v.Tag(i)
		}
	}
	return r
}

// Clone returns a view on a private copy of the record.
func (v RelationView) Clone() RelationView {
	return RelationView{data: bytes.Clone(v.data)}
}

// Equal reports whether both views hold identical records.
func (v RelationView) Equal(other RelationView) bool {
	return bytes.Equal(v.data, other.data)
}

func (v RelationView) String() string {
	if v.IsZero() {
		return "relation(nil)"
	}
	return fmt.Sprintf("relation(%d, %d members)", v.ID(), v.MemberCount())
}
