// Command pagedb is an interactive REPL over a single open table, for
// manually exercising the storage engine without writing Go: a
// bufio.Scanner read loop dispatching on the first whitespace-separated
// token.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"slotdb/pkg/expr"
	"slotdb/pkg/record"
)

const banner = `
pagedb - paged heap table shell
Type 'help' for available commands, 'exit' to quit.

`

type repl struct {
	tbl     *record.Table
	path    string
	scanner *bufio.Scanner
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: pagedb <table-file>")
		os.Exit(1)
	}

	r := &repl{path: os.Args[1], scanner: bufio.NewScanner(os.Stdin)}
	fmt.Print(banner)
	if err := r.run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (r *repl) run() error {
	defer func() {
		if r.tbl != nil {
			r.tbl.Close()
		}
	}()

	for {
		fmt.Print("pagedb> ")
		if !r.scanner.Scan() {
			break
		}
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])

		var err error
		switch cmd {
		case "help", "?":
			r.help()
		case "exit", "quit":
			return nil
		case "create":
			err = r.create(fields[1:])
		case "open":
			err = r.open(fields[1:])
		case "insert":
			err = r.insert(fields[1:])
		case "get":
			err = r.get(fields[1:])
		case "delete":
			err = r.delete(fields[1:])
		case "scan":
			err = r.scan(fields[1:])
		case "stats":
			err = r.stats()
		case "close":
			err = r.close()
		default:
			err = fmt.Errorf("unknown command %q (type 'help')", cmd)
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
	return r.scanner.Err()
}

func (r *repl) help() {
	fmt.Print(`commands:
  create <int|string:len>...   create the table file with this schema, column 0 is the key
  open [capacity]              open the table file (default buffer pool capacity 64)
  insert <values...>           insert one record, one value per schema column
  get <page> <slot>            print the record at this address
  delete <page> <slot>         tombstone the record at this address
  scan [col op value]          scan all live records, optionally filtered (op is one of = <> < <= > >=)
  stats                        print tuple count and buffer pool I/O counters
  close                        close the table
  exit                         quit the shell
`)
}

func (r *repl) create(spec []string) error {
	if len(spec) == 0 {
		return fmt.Errorf("usage: create <int|string:len>...")
	}
	attrs := make([]record.Attribute, len(spec))
	for i, s := range spec {
		if s == "int" {
			attrs[i] = record.Attribute{Name: fmt.Sprintf("c%d", i), Type: record.INT}
			continue
		}
		if s == "float" {
			attrs[i] = record.Attribute{Name: fmt.Sprintf("c%d", i), Type: record.FLOAT}
			continue
		}
		if s == "bool" {
			attrs[i] = record.Attribute{Name: fmt.Sprintf("c%d", i), Type: record.BOOL}
			continue
		}
		if strings.HasPrefix(s, "string:") {
			n, err := strconv.Atoi(strings.TrimPrefix(s, "string:"))
			if err != nil {
				return fmt.Errorf("bad string length in %q: %w", s, err)
			}
			attrs[i] = record.Attribute{Name: fmt.Sprintf("c%d", i), Type: record.STRING, TypeLength: n}
			continue
		}
		return fmt.Errorf("unrecognised column spec %q", s)
	}
	schema := record.NewSchema(attrs, []int{0})
	if err := record.CreateTable(r.path, schema); err != nil {
		return err
	}
	fmt.Printf("created %s with %d columns\n", r.path, len(attrs))
	return nil
}

func (r *repl) open(args []string) error {
	capacity := record.DefaultBufferPoolCapacity
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad capacity %q: %w", args[0], err)
		}
		capacity = n
	}
	tbl, err := record.OpenTable(r.path, capacity)
	if err != nil {
		return err
	}
	r.tbl = tbl
	fmt.Printf("opened %s, %d tuples, %d columns\n", r.path, tbl.NumTuples(), len(tbl.Schema.Attributes))
	return nil
}

func (r *repl) requireOpen() error {
	if r.tbl == nil {
		return fmt.Errorf("no table open, run 'open' first")
	}
	return nil
}

func (r *repl) insert(values []string) error {
	if err := r.requireOpen(); err != nil {
		return err
	}
	schema := r.tbl.Schema
	if len(values) != len(schema.Attributes) {
		return fmt.Errorf("expected %d values, got %d", len(schema.Attributes), len(values))
	}

	rec, err := record.NewRecord(schema)
	if err != nil {
		return err
	}
	for i, raw := range values {
		v, err := parseValue(schema.Attributes[i].Type, raw)
		if err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		if err := record.SetAttr(rec, schema, i, v); err != nil {
			return err
		}
	}
	if err := r.tbl.InsertRecord(rec); err != nil {
		return err
	}
	fmt.Printf("inserted at page=%d slot=%d\n", rec.ID.Page, rec.ID.Slot)
	return nil
}

func parseValue(t record.DataType, raw string) (record.Value, error) {
	switch t {
	case record.INT:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return record.Value{}, err
		}
		return record.NewIntValue(int32(n)), nil
	case record.FLOAT:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return record.Value{}, err
		}
		return record.NewFloatValue(float32(f)), nil
	case record.BOOL:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return record.Value{}, err
		}
		return record.NewBoolValue(b), nil
	default:
		return record.NewStringValue(raw), nil
	}
}

func parseRID(args []string) (record.RID, error) {
	if len(args) != 2 {
		return record.RID{}, fmt.Errorf("expected <page> <slot>")
	}
	page, err := strconv.Atoi(args[0])
	if err != nil {
		return record.RID{}, fmt.Errorf("bad page %q: %w", args[0], err)
	}
	slot, err := strconv.Atoi(args[1])
	if err != nil {
		return record.RID{}, fmt.Errorf("bad slot %q: %w", args[1], err)
	}
	return record.RID{Page: page, Slot: slot}, nil
}

func (r *repl) get(args []string) error {
	if err := r.requireOpen(); err != nil {
		return err
	}
	rid, err := parseRID(args)
	if err != nil {
		return err
	}
	rec, err := record.NewRecord(r.tbl.Schema)
	if err != nil {
		return err
	}
	if err := r.tbl.GetRecord(rid, rec); err != nil {
		return err
	}
	rec.ID = rid
	printRecord(r.tbl.Schema, rec)
	return nil
}

func (r *repl) delete(args []string) error {
	if err := r.requireOpen(); err != nil {
		return err
	}
	rid, err := parseRID(args)
	if err != nil {
		return err
	}
	if err := r.tbl.DeleteRecord(rid); err != nil {
		return err
	}
	fmt.Println("deleted")
	return nil
}

func (r *repl) scan(args []string) error {
	if err := r.requireOpen(); err != nil {
		return err
	}

	var pred expr.Expr = expr.True
	if len(args) > 0 {
		if len(args) != 3 {
			return fmt.Errorf("usage: scan [col op value]")
		}
		col, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad column %q: %w", args[0], err)
		}
		op := expr.BinOp(args[1])
		val, err := parseValue(r.tbl.Schema.Attributes[col].Type, args[2])
		if err != nil {
			return fmt.Errorf("bad value %q: %w", args[2], err)
		}
		pred = expr.Binary{Op: op, Left: expr.Column{Index: col}, Right: expr.Literal{Value: val}}
	}

	scan, err := record.StartScan(r.tbl, pred)
	if err != nil {
		return err
	}
	defer scan.Close()

	out, err := record.NewRecord(r.tbl.Schema)
	if err != nil {
		return err
	}
	count := 0
	for {
		if err := scan.Next(out); err == record.ErrNoMoreTuples {
			break
		} else if err != nil {
			return err
		}
		printRecord(r.tbl.Schema, out)
		count++
	}
	fmt.Printf("%d matching records\n", count)
	return nil
}

func printRecord(schema *record.Schema, rec *record.Record) {
	fmt.Printf("(page=%d slot=%d)", rec.ID.Page, rec.ID.Slot)
	for i, a := range schema.Attributes {
		v, err := record.GetAttr(rec, schema, i)
		if err != nil {
			fmt.Printf(" %s=<error: %v>", a.Name, err)
			continue
		}
		fmt.Printf(" %s=%s", a.Name, v.String())
	}
	fmt.Println()
}

func (r *repl) stats() error {
	if err := r.requireOpen(); err != nil {
		return err
	}
	capacity, readIO, writeIO := r.tbl.PoolStats()
	fmt.Printf("tuples=%d buffer_capacity=%d read_io=%d write_io=%d\n",
		r.tbl.NumTuples(), capacity, readIO, writeIO)
	return nil
}

func (r *repl) close() error {
	if err := r.requireOpen(); err != nil {
		return err
	}
	err := r.tbl.Close()
	r.tbl = nil
	return err
}
