package record

import "testing"

func TestGetSetAttrRoundTrip(t *testing.T) {
	s := testSchema()
	rec, err := NewRecord(s)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	rec.Data[0] = tombstoneOccupied

	values := []Value{
		NewIntValue(17),
		NewFloatValue(3.5),
		NewBoolValue(true),
		NewStringValue("alice"),
	}
	for i, v := range values {
		if err := SetAttr(rec, s, i, v); err != nil {
			t.Fatalf("SetAttr(%d): %v", i, err)
		}
	}

	for i, want := range values {
		got, err := GetAttr(rec, s, i)
		if err != nil {
			t.Fatalf("GetAttr(%d): %v", i, err)
		}
		if got.Type != want.Type {
			t.Fatalf("attr %d type = %v, want %v", i, got.Type, want.Type)
		}
		switch want.Type {
		case INT:
			if got.I != want.I {
				t.Fatalf("attr %d = %d, want %d", i, got.I, want.I)
			}
		case FLOAT:
			if got.F != want.F {
				t.Fatalf("attr %d = %v, want %v", i, got.F, want.F)
			}
		case BOOL:
			if got.B != want.B {
				t.Fatalf("attr %d = %v, want %v", i, got.B, want.B)
			}
		case STRING:
			if got.S != want.S {
				t.Fatalf("attr %d = %q, want %q", i, got.S, want.S)
			}
		}
	}
}

func TestSetAttrStringTruncatesAndPads(t *testing.T) {
	s := NewSchema([]Attribute{{Name: "name", Type: STRING, TypeLength: 4}}, nil)
	rec, err := NewRecord(s)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	if err := SetAttr(rec, s, 0, NewStringValue("hello")); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
	got, err := GetAttr(rec, s, 0)
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if got.S != "hell" {
		t.Fatalf("expected truncation to 'hell', got %q", got.S)
	}

	if err := SetAttr(rec, s, 0, NewStringValue("ab")); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
	got, err = GetAttr(rec, s, 0)
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if got.S != "ab" {
		t.Fatalf("expected zero-padded 'ab', got %q", got.S)
	}
}

func TestGetAttrOutOfRange(t *testing.T) {
	s := testSchema()
	rec, _ := NewRecord(s)
	if _, err := GetAttr(rec, s, -1); err != ErrInvalidParameter {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := GetAttr(rec, s, len(s.Attributes)); err != ErrInvalidParameter {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestIsOccupied(t *testing.T) {
	s := testSchema()
	rec, err := NewRecord(s)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if rec.isOccupied() {
		t.Fatalf("freshly allocated record should not be occupied")
	}
	rec.Data[0] = tombstoneOccupied
	if !rec.isOccupied() {
		t.Fatalf("expected record to be occupied after setting tombstone byte")
	}
}
