package record

import "slotdb/pkg/storage"

// Predicate is the expression-evaluator collaborator a scan filters
// records through. It is deliberately a narrow interface (see DESIGN.md)
// so tests can substitute trivial always-true/always-false predicates
// without depending on a real expression tree.
type Predicate interface {
	Eval(rec *Record, schema *Schema) (Value, error)
}

// Scan holds the cursor and bookkeeping for one in-progress table scan.
type Scan struct {
	table      *Table
	cursor     RID
	pred       Predicate
	tupleSnap  int
	safetyLeft int
}

// StartScan begins a scan of t filtered by pred. pred must not be nil.
func StartScan(t *Table, pred Predicate) (*Scan, error) {
	if pred == nil {
		return nil, ErrScanConditionNotFound
	}
	safety := (t.firstFreePage+2)*t.slotsPerPage + 2
	return &Scan{
		table:      t,
		cursor:     RID{Page: 1, Slot: -1},
		pred:       pred,
		tupleSnap:  t.tupleCount,
		safetyLeft: safety,
	}, nil
}

// Next advances the scan to the next matching record, copying it into
// out. It returns ErrNoMoreTuples once the table is exhausted.
func (s *Scan) Next(out *Record) error {
	t := s.table

	for {
		if s.safetyLeft <= 0 {
			return ErrNoMoreTuples
		}
		s.safetyLeft--

		s.cursor.Slot++
		if s.cursor.Slot >= t.slotsPerPage {
			s.cursor.Slot = 0
			s.cursor.Page++
		}
		if s.cursor.Page > t.firstFreePage+1 {
			return ErrNoMoreTuples
		}

		handle, err := t.bp.PinPage(storage.PageNum(s.cursor.Page))
		if err != nil {
			return err
		}

		off := t.slotOffset(s.cursor.Slot)
		if handle.Data[off] == tombstoneFree {
			if err := t.bp.UnpinPage(storage.PageNum(s.cursor.Page)); err != nil {
				return err
			}
			continue
		}

		if len(out.Data) != t.recordSize {
			out.Data = make([]byte, t.recordSize)
		}
		copy(out.Data, handle.Data[off:off+t.recordSize])
		out.ID = s.cursor

		result, evalErr := s.pred.Eval(out, t.Schema)
		if uerr := t.bp.UnpinPage(storage.PageNum(s.cursor.Page)); uerr != nil {
			return uerr
		}
		if evalErr != nil {
			return evalErr
		}
		if result.Type == BOOL && result.B {
			return nil
		}
	}
}

// Close releases the scan's bookkeeping. It does not touch the table's
// counters or flush anything.
func (s *Scan) Close() {
	s.table = nil
	s.pred = nil
}
