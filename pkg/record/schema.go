package record

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"slotdb/pkg/storage"
)

// AttrNameSize is the fixed on-disk width of an attribute name: 14 usable
// bytes plus a trailing NUL.
const AttrNameSize = 15

// page0Order fixes the byte order used by the page-0 metadata codec and by
// every fixed-width integer field inside a record slot. The format is
// only ever read by the engine that wrote it (§4.3.2), so any consistent
// order works; little-endian is chosen once here and frozen.
var page0Order = binary.LittleEndian

// Attribute is one column of a Schema.
type Attribute struct {
	Name       string
	Type       DataType
	TypeLength int // meaningful only for STRING
}

// Width returns the attribute's on-disk width in bytes, or -1 if its type
// is unrecognised.
func (a Attribute) Width() int { return a.Type.Width(a.TypeLength) }

// Schema is an ordered sequence of attributes plus an advisory list of key
// attribute indices. Keys are not enforced by this engine and are not
// persisted to page 0 (§4.3.2) - OpenTable always reconstructs a schema
// with an empty KeyAttrs.
type Schema struct {
	Attributes []Attribute
	KeyAttrs   []int
}

// NewSchema builds a schema from its attributes and (advisory) key
// attribute indices.
func NewSchema(attrs []Attribute, keyAttrs []int) *Schema {
	cp := make([]Attribute, len(attrs))
	copy(cp, attrs)
	keys := make([]int, len(keyAttrs))
	copy(keys, keyAttrs)
	return &Schema{Attributes: cp, KeyAttrs: keys}
}

// RecordSize returns the total slot width: one tombstone byte plus the
// sum of every attribute's width. It returns an error if any attribute
// has an unrecognised type.
func (s *Schema) RecordSize() (int, error) {
	size := 1
	for i, a := range s.Attributes {
		w := a.Width()
		if w < 0 {
			return -1, fmt.Errorf("record: schema: attribute %d (%q) has unknown type %v", i, a.Name, a.Type)
		}
		size += w
	}
	return size, nil
}

// Offset returns the byte offset of attribute i within a record's data
// buffer, counting the leading tombstone byte.
func (s *Schema) Offset(i int) (int, error) {
	if i < 0 || i >= len(s.Attributes) {
		return -1, ErrInvalidParameter
	}
	off := 1
	for j := 0; j < i; j++ {
		w := s.Attributes[j].Width()
		if w < 0 {
			return -1, fmt.Errorf("record: schema: attribute %d has unknown type", j)
		}
		off += w
	}
	return off, nil
}

// SerializePage0 renders tupleCount, firstFreePage, and the schema into a
// fresh PageSize-byte page-0 image, per the layout in §4.3.2:
//
//	[tupleCount][firstFreePage][numAttr][keySize]
//	repeat numAttr: [name:15][dataType][typeLength]
func (s *Schema) SerializePage0(tupleCount, firstFreePage int) ([]byte, error) {
	buf := make([]byte, storage.PageSize)

	page0Order.PutUint32(buf[0:4], uint32(tupleCount))
	page0Order.PutUint32(buf[4:8], uint32(firstFreePage))
	page0Order.PutUint32(buf[8:12], uint32(len(s.Attributes)))
	page0Order.PutUint32(buf[12:16], uint32(len(s.KeyAttrs)))

	off := 16
	need := off + len(s.Attributes)*(AttrNameSize+8)
	if need > storage.PageSize {
		return nil, fmt.Errorf("record: schema: %d attributes do not fit in one page", len(s.Attributes))
	}

	for _, a := range s.Attributes {
		nameBytes := []byte(a.Name)
		if len(nameBytes) > AttrNameSize-1 {
			nameBytes = nameBytes[:AttrNameSize-1]
		}
		copy(buf[off:off+AttrNameSize], nameBytes)
		off += AttrNameSize

		page0Order.PutUint32(buf[off:off+4], uint32(a.Type))
		off += 4
		page0Order.PutUint32(buf[off:off+4], uint32(a.TypeLength))
		off += 4
	}

	return buf, nil
}

// page0Meta is the decoded counters half of a page-0 image; the schema
// half is returned separately by DeserializePage0.
type page0Meta struct {
	TupleCount    int
	FirstFreePage int
}

// DeserializePage0 parses a page-0 image written by SerializePage0,
// returning the reconstructed schema and the tupleCount/firstFreePage
// counters.
func DeserializePage0(buf []byte) (*Schema, page0Meta, error) {
	if len(buf) != storage.PageSize {
		return nil, page0Meta{}, fmt.Errorf("record: page0: expected %d bytes, got %d", storage.PageSize, len(buf))
	}

	meta := page0Meta{
		TupleCount:    int(page0Order.Uint32(buf[0:4])),
		FirstFreePage: int(page0Order.Uint32(buf[4:8])),
	}
	numAttr := int(page0Order.Uint32(buf[8:12]))

	off := 16
	attrs := make([]Attribute, 0, numAttr)
	for i := 0; i < numAttr; i++ {
		if off+AttrNameSize+8 > len(buf) {
			return nil, page0Meta{}, fmt.Errorf("record: page0: truncated attribute %d", i)
		}
		nameBytes := buf[off : off+AttrNameSize]
		off += AttrNameSize
		name := string(bytes.TrimRight(nameBytes, "\x00"))

		dtype := DataType(page0Order.Uint32(buf[off : off+4]))
		off += 4
		typeLen := int(page0Order.Uint32(buf[off : off+4]))
		off += 4

		attrs = append(attrs, Attribute{Name: name, Type: dtype, TypeLength: typeLen})
	}

	return &Schema{Attributes: attrs}, meta, nil
}
