package record

import (
	"bytes"
	"math"
)

// RID identifies a record by page and slot. page is always >= 1; page 0
// is reserved for table metadata.
type RID struct {
	Page int
	Slot int
}

// Record is a caller-owned byte buffer shaped like one table slot: byte 0
// is the tombstone (0 = free, 1 = occupied), followed by the schema's
// attributes in declaration order.
type Record struct {
	Data []byte
	ID   RID
}

const (
	tombstoneFree     byte = 0
	tombstoneOccupied byte = 1
)

// NewRecord allocates a zeroed record buffer sized for schema.
func NewRecord(schema *Schema) (*Record, error) {
	size, err := schema.RecordSize()
	if err != nil {
		return nil, err
	}
	return &Record{Data: make([]byte, size)}, nil
}

// isOccupied reports whether the tombstone byte marks this slot as live.
func (r *Record) isOccupied() bool { return len(r.Data) > 0 && r.Data[0] == tombstoneOccupied }

// GetAttr decodes attribute i of r against schema into a Value.
func GetAttr(r *Record, schema *Schema, i int) (Value, error) {
	if i < 0 || i >= len(schema.Attributes) {
		return Value{}, ErrInvalidParameter
	}
	off, err := schema.Offset(i)
	if err != nil {
		return Value{}, err
	}
	attr := schema.Attributes[i]
	w := attr.Width()
	if w < 0 || off+w > len(r.Data) {
		return Value{}, ErrInvalidParameter
	}

	field := r.Data[off : off+w]
	switch attr.Type {
	case INT:
		return NewIntValue(int32(page0Order.Uint32(field))), nil
	case FLOAT:
		return NewFloatValue(math.Float32frombits(page0Order.Uint32(field))), nil
	case BOOL:
		return NewBoolValue(field[0] != 0), nil
	case STRING:
		return NewStringValue(string(bytes.TrimRight(field, "\x00"))), nil
	default:
		return Value{}, ErrInvalidParameter
	}
}

// SetAttr encodes val into attribute i of r per schema. A STRING value is
// written as exactly typeLength bytes (truncated or zero-padded); no
// trailing NUL is guaranteed unless the value is shorter than the field.
func SetAttr(r *Record, schema *Schema, i int, val Value) error {
	if i < 0 || i >= len(schema.Attributes) {
		return ErrInvalidParameter
	}
	off, err := schema.Offset(i)
	if err != nil {
		return err
	}
	attr := schema.Attributes[i]
	w := attr.Width()
	if w < 0 || off+w > len(r.Data) {
		return ErrInvalidParameter
	}

	field := r.Data[off : off+w]
	switch attr.Type {
	case INT:
		page0Order.PutUint32(field, uint32(val.I))
	case FLOAT:
		page0Order.PutUint32(field, math.Float32bits(val.F))
	case BOOL:
		if val.B {
			field[0] = 1
		} else {
			field[0] = 0
		}
	case STRING:
		n := copy(field, val.S)
		for i := n; i < len(field); i++ {
			field[i] = 0
		}
	default:
		return ErrInvalidParameter
	}
	return nil
}
