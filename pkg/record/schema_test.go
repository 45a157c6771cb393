package record

import "testing"

func testSchema() *Schema {
	return NewSchema([]Attribute{
		{Name: "id", Type: INT},
		{Name: "balance", Type: FLOAT},
		{Name: "active", Type: BOOL},
		{Name: "name", Type: STRING, TypeLength: 20},
	}, []int{0})
}

func TestRecordSizeAndOffset(t *testing.T) {
	s := testSchema()
	size, err := s.RecordSize()
	if err != nil {
		t.Fatalf("RecordSize: %v", err)
	}
	want := 1 + 4 + 4 + 1 + 20
	if size != want {
		t.Fatalf("RecordSize() = %d, want %d", size, want)
	}

	offsets := []int{1, 5, 9, 10}
	for i, want := range offsets {
		got, err := s.Offset(i)
		if err != nil {
			t.Fatalf("Offset(%d): %v", i, err)
		}
		if got != want {
			t.Fatalf("Offset(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestOffsetOutOfRange(t *testing.T) {
	s := testSchema()
	if _, err := s.Offset(-1); err != ErrInvalidParameter {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := s.Offset(len(s.Attributes)); err != ErrInvalidParameter {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestPage0RoundTrip(t *testing.T) {
	s := testSchema()
	buf, err := s.SerializePage0(42, 7)
	if err != nil {
		t.Fatalf("SerializePage0: %v", err)
	}

	got, meta, err := DeserializePage0(buf)
	if err != nil {
		t.Fatalf("DeserializePage0: %v", err)
	}
	if meta.TupleCount != 42 || meta.FirstFreePage != 7 {
		t.Fatalf("meta = %+v, want TupleCount=42 FirstFreePage=7", meta)
	}
	if len(got.Attributes) != len(s.Attributes) {
		t.Fatalf("got %d attributes, want %d", len(got.Attributes), len(s.Attributes))
	}
	for i, want := range s.Attributes {
		a := got.Attributes[i]
		if a.Name != want.Name || a.Type != want.Type || a.TypeLength != want.TypeLength {
			t.Fatalf("attribute %d = %+v, want %+v", i, a, want)
		}
	}
	// KeyAttrs is advisory only and is not persisted to page 0.
	if len(got.KeyAttrs) != 0 {
		t.Fatalf("expected KeyAttrs to be empty after deserialisation, got %v", got.KeyAttrs)
	}
}

func TestDeserializePage0WrongSize(t *testing.T) {
	if _, _, err := DeserializePage0(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}
