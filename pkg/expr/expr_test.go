package expr

import (
	"testing"

	"slotdb/pkg/record"
)

func testSchema() *record.Schema {
	return record.NewSchema([]record.Attribute{
		{Name: "id", Type: record.INT},
		{Name: "balance", Type: record.FLOAT},
		{Name: "active", Type: record.BOOL},
	}, nil)
}

func testRecord(t *testing.T, schema *record.Schema, id int32, balance float32, active bool) *record.Record {
	t.Helper()
	rec, err := record.NewRecord(schema)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	rec.Data[0] = 1
	if err := record.SetAttr(rec, schema, 0, record.NewIntValue(id)); err != nil {
		t.Fatalf("SetAttr id: %v", err)
	}
	if err := record.SetAttr(rec, schema, 1, record.NewFloatValue(balance)); err != nil {
		t.Fatalf("SetAttr balance: %v", err)
	}
	if err := record.SetAttr(rec, schema, 2, record.NewBoolValue(active)); err != nil {
		t.Fatalf("SetAttr active: %v", err)
	}
	return rec
}

func TestLiteralAndColumn(t *testing.T) {
	schema := testSchema()
	rec := testRecord(t, schema, 7, 1.5, true)

	lit := Literal{Value: record.NewIntValue(7)}
	v, err := lit.Eval(rec, schema)
	if err != nil {
		t.Fatalf("Literal.Eval: %v", err)
	}
	if v.I != 7 {
		t.Fatalf("Literal = %d, want 7", v.I)
	}

	col := Column{Index: 0}
	v, err = col.Eval(rec, schema)
	if err != nil {
		t.Fatalf("Column.Eval: %v", err)
	}
	if v.I != 7 {
		t.Fatalf("Column = %d, want 7", v.I)
	}
}

func TestBinaryArithmetic(t *testing.T) {
	schema := testSchema()
	rec := testRecord(t, schema, 10, 2.5, false)

	expr := Binary{Op: Add, Left: Column{Index: 0}, Right: Literal{Value: record.NewIntValue(5)}}
	v, err := expr.Eval(rec, schema)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.I != 15 {
		t.Fatalf("10 + 5 = %d, want 15", v.I)
	}

	div := Binary{Op: Div, Left: Literal{Value: record.NewIntValue(4)}, Right: Literal{Value: record.NewIntValue(0)}}
	if _, err := div.Eval(rec, schema); err == nil {
		t.Fatalf("expected division-by-zero error")
	}
}

func TestBinaryComparison(t *testing.T) {
	schema := testSchema()
	rec := testRecord(t, schema, 10, 2.5, false)

	cmp := Binary{Op: Gt, Left: Column{Index: 0}, Right: Literal{Value: record.NewIntValue(5)}}
	v, err := cmp.Eval(rec, schema)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Type != record.BOOL || !v.B {
		t.Fatalf("10 > 5 should be true, got %v", v)
	}
}

func TestBinaryTypeMismatch(t *testing.T) {
	schema := testSchema()
	rec := testRecord(t, schema, 10, 2.5, false)

	bad := Binary{Op: Add, Left: Column{Index: 0}, Right: Column{Index: 1}}
	if _, err := bad.Eval(rec, schema); err == nil {
		t.Fatalf("expected type mismatch error adding INT to FLOAT")
	}
}

func TestLogicalShortCircuit(t *testing.T) {
	schema := testSchema()
	rec := testRecord(t, schema, 10, 2.5, false)

	// Right side would error (column 0 is INT, not BOOL); AND must
	// short-circuit on a false left side before evaluating it.
	l := Logical{
		Op:    And,
		Left:  Literal{Value: record.NewBoolValue(false)},
		Right: Column{Index: 0},
	}
	v, err := l.Eval(rec, schema)
	if err != nil {
		t.Fatalf("expected AND to short-circuit without error, got %v", err)
	}
	if v.B {
		t.Fatalf("false AND x should be false")
	}

	o := Logical{
		Op:    Or,
		Left:  Literal{Value: record.NewBoolValue(true)},
		Right: Column{Index: 0},
	}
	v, err = o.Eval(rec, schema)
	if err != nil {
		t.Fatalf("expected OR to short-circuit without error, got %v", err)
	}
	if !v.B {
		t.Fatalf("true OR x should be true")
	}
}

func TestNot(t *testing.T) {
	schema := testSchema()
	rec := testRecord(t, schema, 10, 2.5, true)

	n := Not{Expr: Column{Index: 2}}
	v, err := n.Eval(rec, schema)
	if err != nil {
		t.Fatalf("Not.Eval: %v", err)
	}
	if v.B {
		t.Fatalf("NOT true should be false")
	}
}

func TestTruePredicateMatchesEverything(t *testing.T) {
	schema := testSchema()
	rec := testRecord(t, schema, 1, 1, false)

	v, err := True.Eval(rec, schema)
	if err != nil {
		t.Fatalf("True.Eval: %v", err)
	}
	if !v.B {
		t.Fatalf("True predicate should evaluate to true")
	}
}
