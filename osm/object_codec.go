package osm

import (
	"encoding/binary"
	"fmt"
	"math"
)

const objectFormat = 1

// MarshalBinary encodes the object with varint fields.
func (o *Object) MarshalBinary() ([]byte, error) {
	return o.AppendBinary(nil)
}

// AppendBinary appends the encoded object to dst.
func (o *Object) AppendBinary(dst []byte) ([]byte, error) {
	dst = append(dst, objectFormat, byte(o.Type))
	dst = binary.AppendVarint(dst, o.ID)
	dst = binary.AppendUvarint(dst, uint64(o.Version))
	dst = binary.AppendUvarint(dst, math.Float64bits(o.Lat))
	dst = binary.AppendUvarint(dst, math.Float64bits(o.Lon))

	dst = binary.AppendUvarint(dst, uint64(len(o.Tags)))
	for _, t := range o.Tags {
		dst = appendString(dst, t.Key)
		dst = appendString(dst, t.Value)
	}

	dst = binary.AppendUvarint(dst, uint64(len(o.Refs)))
	var prev int64
	for _, ref := range o.Refs {
		dst = binary.AppendVarint(dst, ref-prev)
		prev = ref
	}

	dst = binary.AppendUvarint(dst, uint64(len(o.Members)))
	for _, m := range o.Members {
		dst = append(dst, byte(m.Type))
		dst = binary.AppendVarint(dst, m.Ref)
		dst = appendString(dst, m.Role)
	}
	return dst, nil
}

// UnmarshalBinary decodes an object produced by MarshalBinary.
func (o *Object) UnmarshalBinary(data []byte) error {
	d := decoder{data: data}
	if f := d.u8(); f != objectFormat {
		return fmt.Errorf("%w: unsupported object format %d", ErrInvalidRecord, f)
	}
	*o = Object{
		Type:    ItemType(d.u8()),
		ID:      d.varint(),
		Version: uint32(d.uvarint()), //nolint:gosec // written from uint32
		Lat:     math.Float64frombits(d.uvarint()),
		Lon:     math.Float64frombits(d.uvarint()),
	}

	if n := d.count(); n > 0 {
		o.Tags = make([]Tag, n)
		for i := range o.Tags {
			o.Tags[i] = Tag{Key: d.str(), Value: d.str()}
		}
	}
	if n := d.count(); n > 0 {
		o.Refs = make([]int64, n)
		var prev int64
		for i := range o.Refs {
			prev += d.varint()
			o.Refs[i] = prev
		}
	}
	if n := d.count(); n > 0 {
		o.Members = make([]Member, n)
		for i := range o.Members {
			o.Members[i] = Member{Type: ItemType(d.u8()), Ref: d.varint(), Role: d.str()}
		}
	}

	if d.err != nil {
		return d.err
	}
	if d.off != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidRecord, len(data)-d.off)
	}
	return nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// decoder reads varint fields and remembers the first error.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: truncated %s at offset %d", ErrInvalidRecord, what, d.off)
	}
	d.off = len(d.data)
}

func (d *decoder) u8() byte {
	if d.off >= len(d.data) {
		d.fail("byte")
		return 0
	}
	b := d.data[d.off]
	d.off++
	return b
}

func (d *decoder) uvarint() uint64 {
	v, n := binary.Uvarint(d.data[d.off:])
	if n <= 0 {
		d.fail("uvarint")
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) varint() int64 {
	v, n := binary.Varint(d.data[d.off:])
	if n <= 0 {
		d.fail("varint")
		return 0
	}
	d.off += n
	return v
}

// count reads a length and rejects values larger than the remaining input.
func (d *decoder) count() int {
	n := d.uvarint()
	if n > uint64(len(d.data)-d.off) {
		d.fail("count")
		return 0
	}
	return int(n)
}

func (d *decoder) str() string {
	n := d.count()
	s := string(d.data[d.off : d.off+n])
	d.off += n
	return s
}
