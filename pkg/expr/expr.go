// Package expr implements the expression-evaluator collaborator that
// scans filter on: a small arithmetic and comparison tree over
// record.Value, grounded on the binary-expression evaluator in
// SimonWaldherr/tinySQL's engine (evalBinary / evalComparisonBinary /
// evalArithmeticBinary).
//
// Every node type here implements record.Predicate, so any of them can be
// passed straight to record.StartScan.
package expr

import (
	"fmt"

	"slotdb/pkg/record"
)

// Expr is the common type of every node in an expression tree.
type Expr interface {
	Eval(rec *record.Record, schema *record.Schema) (record.Value, error)
}

// Literal is a constant value.
type Literal struct {
	Value record.Value
}

func (l Literal) Eval(*record.Record, *record.Schema) (record.Value, error) {
	return l.Value, nil
}

// Column references an attribute by its zero-based index in the schema
// passed at evaluation time.
type Column struct {
	Index int
}

func (c Column) Eval(rec *record.Record, schema *record.Schema) (record.Value, error) {
	return record.GetAttr(rec, schema, c.Index)
}

// BinOp is an arithmetic or comparison operator.
type BinOp string

const (
	Add BinOp = "+"
	Sub BinOp = "-"
	Mul BinOp = "*"
	Div BinOp = "/"

	Eq BinOp = "="
	Ne BinOp = "<>"
	Lt BinOp = "<"
	Le BinOp = "<="
	Gt BinOp = ">"
	Ge BinOp = ">="
)

// Binary evaluates Left and Right and combines them with Op. Comparison
// operators always yield a BOOL value; arithmetic operators yield a
// value of the operands' shared numeric type.
type Binary struct {
	Op    BinOp
	Left  Expr
	Right Expr
}

func (b Binary) Eval(rec *record.Record, schema *record.Schema) (record.Value, error) {
	lv, err := b.Left.Eval(rec, schema)
	if err != nil {
		return record.Value{}, err
	}
	rv, err := b.Right.Eval(rec, schema)
	if err != nil {
		return record.Value{}, err
	}

	switch b.Op {
	case Add, Sub, Mul, Div:
		return evalArithmetic(b.Op, lv, rv)
	case Eq, Ne, Lt, Le, Gt, Ge:
		return evalComparison(b.Op, lv, rv)
	default:
		return record.Value{}, fmt.Errorf("expr: unknown operator %q", b.Op)
	}
}

func evalArithmetic(op BinOp, lv, rv record.Value) (record.Value, error) {
	if lv.Type != rv.Type {
		return record.Value{}, fmt.Errorf("%w: %s vs %s", record.ErrCompareValueOfDifferentDatatype, lv.Type, rv.Type)
	}

	switch lv.Type {
	case record.INT:
		var res int32
		switch op {
		case Add:
			res = lv.I + rv.I
		case Sub:
			res = lv.I - rv.I
		case Mul:
			res = lv.I * rv.I
		case Div:
			if rv.I == 0 {
				return record.Value{}, fmt.Errorf("expr: division by zero")
			}
			res = lv.I / rv.I
		}
		return record.NewIntValue(res), nil
	case record.FLOAT:
		var res float32
		switch op {
		case Add:
			res = lv.F + rv.F
		case Sub:
			res = lv.F - rv.F
		case Mul:
			res = lv.F * rv.F
		case Div:
			if rv.F == 0 {
				return record.Value{}, fmt.Errorf("expr: division by zero")
			}
			res = lv.F / rv.F
		}
		return record.NewFloatValue(res), nil
	default:
		return record.Value{}, fmt.Errorf("expr: operator %q not defined for %s", op, lv.Type)
	}
}

func evalComparison(op BinOp, lv, rv record.Value) (record.Value, error) {
	cmp, err := record.Compare(lv, rv)
	if err != nil {
		return record.Value{}, err
	}

	var result bool
	switch op {
	case Eq:
		result = cmp == 0
	case Ne:
		result = cmp != 0
	case Lt:
		result = cmp < 0
	case Le:
		result = cmp <= 0
	case Gt:
		result = cmp > 0
	case Ge:
		result = cmp >= 0
	}
	return record.NewBoolValue(result), nil
}

// LogicalOp is a boolean connective.
type LogicalOp string

const (
	And LogicalOp = "AND"
	Or  LogicalOp = "OR"
)

// Logical combines two BOOL sub-expressions with AND/OR.
type Logical struct {
	Op    LogicalOp
	Left  Expr
	Right Expr
}

func (l Logical) Eval(rec *record.Record, schema *record.Schema) (record.Value, error) {
	lv, err := l.Left.Eval(rec, schema)
	if err != nil {
		return record.Value{}, err
	}
	if lv.Type != record.BOOL {
		return record.Value{}, fmt.Errorf("expr: logical operand is %s, not BOOL", lv.Type)
	}

	// Short-circuit, matching the usual evaluator contract.
	if l.Op == And && !lv.B {
		return record.NewBoolValue(false), nil
	}
	if l.Op == Or && lv.B {
		return record.NewBoolValue(true), nil
	}

	rv, err := l.Right.Eval(rec, schema)
	if err != nil {
		return record.Value{}, err
	}
	if rv.Type != record.BOOL {
		return record.Value{}, fmt.Errorf("expr: logical operand is %s, not BOOL", rv.Type)
	}

	switch l.Op {
	case And:
		return record.NewBoolValue(lv.B && rv.B), nil
	case Or:
		return record.NewBoolValue(lv.B || rv.B), nil
	default:
		return record.Value{}, fmt.Errorf("expr: unknown logical operator %q", l.Op)
	}
}

// Not negates a BOOL sub-expression.
type Not struct {
	Expr Expr
}

func (n Not) Eval(rec *record.Record, schema *record.Schema) (record.Value, error) {
	v, err := n.Expr.Eval(rec, schema)
	if err != nil {
		return record.Value{}, err
	}
	if v.Type != record.BOOL {
		return record.Value{}, fmt.Errorf("expr: NOT operand is %s, not BOOL", v.Type)
	}
	return record.NewBoolValue(!v.B), nil
}

// True is a predicate that matches every record - useful for full-table
// scans and as the trivial substitute predicate described in the
// engine's design notes.
var True Expr = Literal{Value: record.NewBoolValue(true)}
