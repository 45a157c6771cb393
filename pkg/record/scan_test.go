package record

import "testing"

// alwaysTrue is the trivial substitute predicate used by tests that don't
// care about filtering, matching every record unconditionally.
type alwaysTrue struct{}

func (alwaysTrue) Eval(*Record, *Schema) (Value, error) { return NewBoolValue(true), nil }

// nameEquals matches records whose "name" attribute (index 3 in
// testSchema) equals want.
type nameEquals struct{ want string }

func (p nameEquals) Eval(rec *Record, schema *Schema) (Value, error) {
	v, err := GetAttr(rec, schema, 3)
	if err != nil {
		return Value{}, err
	}
	return NewBoolValue(v.S == p.want), nil
}

func TestStartScanRejectsNilPredicate(t *testing.T) {
	tbl, _ := newTestTable(t)
	defer tbl.Close()

	if _, err := StartScan(tbl, nil); err != ErrScanConditionNotFound {
		t.Fatalf("expected ErrScanConditionNotFound, got %v", err)
	}
}

// TestScanVisitsAllMatchingRecords: a scan over a table with some deleted
// (tombstoned) slots must skip them and
// return only live, matching records, then ErrNoMoreTuples.
func TestScanVisitsAllMatchingRecords(t *testing.T) {
	tbl, _ := newTestTable(t)
	defer tbl.Close()

	names := []string{"alice", "bob", "carol", "dave"}
	var ids []RID
	for i, n := range names {
		rec := personRecord(t, tbl, int32(i), n)
		if err := tbl.InsertRecord(rec); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	// Delete "bob" to leave a tombstoned slot mid-table.
	if err := tbl.DeleteRecord(ids[1]); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}

	scan, err := StartScan(tbl, alwaysTrue{})
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	defer scan.Close()

	var seen []string
	out, _ := NewRecord(tbl.Schema)
	for {
		err := scan.Next(out)
		if err == ErrNoMoreTuples {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		name, err := GetAttr(out, tbl.Schema, 3)
		if err != nil {
			t.Fatalf("GetAttr: %v", err)
		}
		seen = append(seen, name.S)
	}

	want := map[string]bool{"alice": true, "carol": true, "dave": true}
	if len(seen) != len(want) {
		t.Fatalf("scan visited %v, want 3 live records from %v", seen, want)
	}
	for _, n := range seen {
		if !want[n] {
			t.Fatalf("scan unexpectedly visited tombstoned/missing record %q", n)
		}
	}
}

func TestScanWithFilterPredicate(t *testing.T) {
	tbl, _ := newTestTable(t)
	defer tbl.Close()

	for i, n := range []string{"alice", "bob", "alice"} {
		rec := personRecord(t, tbl, int32(i), n)
		if err := tbl.InsertRecord(rec); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
	}

	scan, err := StartScan(tbl, nameEquals{want: "alice"})
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	defer scan.Close()

	count := 0
	out, _ := NewRecord(tbl.Schema)
	for {
		if err := scan.Next(out); err == ErrNoMoreTuples {
			break
		} else if err != nil {
			t.Fatalf("Next: %v", err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 matching records, got %d", count)
	}
}

func TestScanEmptyTable(t *testing.T) {
	tbl, _ := newTestTable(t)
	defer tbl.Close()

	scan, err := StartScan(tbl, alwaysTrue{})
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	defer scan.Close()

	out, _ := NewRecord(tbl.Schema)
	if err := scan.Next(out); err != ErrNoMoreTuples {
		t.Fatalf("expected ErrNoMoreTuples on empty table, got %v", err)
	}
}
