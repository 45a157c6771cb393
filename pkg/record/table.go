package record

import (
	"time"

	"slotdb/pkg/storage"
)

// DefaultBufferPoolCapacity is the number of frames OpenTable allocates
// when it is not told otherwise.
const DefaultBufferPoolCapacity = 64

// Table is a single open heap table: its reconstructed schema, its
// counters, and the buffer pool over its page file. Unlike the engine
// this was adapted from, the buffer pool belongs to the Table handle
// rather than to a process-wide global, so a process may hold more than
// one table open at once (see DESIGN.md) - each Table still follows the
// single-threaded, caller-serialised discipline of storage.BufferPool.
type Table struct {
	name          string
	Schema        *Schema
	bp            *storage.BufferPool
	recordSize    int
	slotsPerPage  int
	tupleCount    int
	firstFreePage int

	opListener func(op string, d time.Duration, success bool)
}

// CreateTable creates the page file for name and writes a fresh page 0
// (tupleCount=0, firstFreePage=1) describing schema. The table is not
// left open; call OpenTable next.
func CreateTable(name string, schema *Schema) error {
	if err := storage.CreatePageFile(name); err != nil {
		return err
	}

	var fh storage.FileHandle
	if err := storage.OpenPageFile(name, &fh); err != nil {
		return err
	}
	defer storage.ClosePageFile(&fh)

	page0, err := schema.SerializePage0(0, 1)
	if err != nil {
		return err
	}
	return fh.WriteBlock(0, page0)
}

// OpenTable opens an existing table, reconstructing its schema and
// counters from page 0 through a fresh buffer pool of capacity frames
// (DefaultBufferPoolCapacity if capacity <= 0), using LRU replacement.
func OpenTable(name string, capacity int) (*Table, error) {
	if capacity <= 0 {
		capacity = DefaultBufferPoolCapacity
	}

	bp, err := storage.InitBufferPool(name, capacity, storage.LRU)
	if err != nil {
		return nil, err
	}

	handle, err := bp.PinPage(0)
	if err != nil {
		bp.ShutdownBufferPool()
		return nil, err
	}
	schema, meta, err := DeserializePage0(handle.Data)
	if uerr := bp.UnpinPage(0); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		bp.ShutdownBufferPool()
		return nil, err
	}
	// Page 0 was only read, not modified, so ForcePage is a noop here
	// unless some other code path already dirtied it.
	if err := bp.ForcePage(0); err != nil {
		bp.ShutdownBufferPool()
		return nil, err
	}

	size, err := schema.RecordSize()
	if err != nil {
		bp.ShutdownBufferPool()
		return nil, err
	}

	t := &Table{
		name:          name,
		Schema:        schema,
		bp:            bp,
		recordSize:    size,
		slotsPerPage:  storage.PageSize / size,
		tupleCount:    meta.TupleCount,
		firstFreePage: meta.FirstFreePage,
	}
	if t.firstFreePage < 1 {
		t.firstFreePage = 1
	}
	return t, nil
}

// Close shuts down the table's buffer pool, flushing any dirty frames.
func (t *Table) Close() error {
	return t.bp.ShutdownBufferPool()
}

// DeleteTable destroys the page file backing a (closed) table.
func DeleteTable(name string) error {
	return storage.DestroyPageFile(name)
}

// NumTuples returns the cached tuple count, or -1 if t is nil.
func (t *Table) NumTuples() int {
	if t == nil {
		return -1
	}
	return t.tupleCount
}

// SlotsPerPage returns floor(PAGE_SIZE / recordSize(schema)) for this
// table.
func (t *Table) SlotsPerPage() int { return t.slotsPerPage }

// PoolStats reports the underlying buffer pool's capacity and I/O
// counters, for the admin/metrics surface.
func (t *Table) PoolStats() (capacity, readIO, writeIO int) {
	return t.bp.Capacity(), t.bp.GetNumReadIO(), t.bp.GetNumWriteIO()
}

// SetPoolListener installs fn as the underlying buffer pool's activity
// listener (see storage.BufferPool.Listener), for observers such as
// pkg/admin's event feed. Pass nil to stop observing.
func (t *Table) SetPoolListener(fn func(storage.PoolEvent)) {
	t.bp.Listener = fn
}

// SetOpListener installs fn to be called after every InsertRecord,
// DeleteRecord, and UpdateRecord with the operation name, its duration,
// and whether it succeeded, for observers such as pkg/metrics's
// Collector. Pass nil to stop observing.
func (t *Table) SetOpListener(fn func(op string, d time.Duration, success bool)) {
	t.opListener = fn
}

func (t *Table) timeOp(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if t.opListener != nil {
		t.opListener(op, time.Since(start), err == nil)
	}
	return err
}

func (t *Table) slotOffset(slot int) int { return slot * t.recordSize }

// validateRID rejects any RID that cannot address a real slot: page 0 is
// schema metadata, not record storage, and slot must fall within
// slotsPerPage. This guards every RID-addressed operation against the
// out-of-range indices that would otherwise index past the 4096-byte
// frame buffer.
func (t *Table) validateRID(rid RID) error {
	if rid.Page < 1 || rid.Slot < 0 || rid.Slot >= t.slotsPerPage {
		return ErrInvalidParameter
	}
	return nil
}

// persistCounters writes the current tupleCount and firstFreePage to
// page 0. It pins page 0 and overwrites the whole frame with a fresh
// page-0 image serialised from t.Schema and the counters, so the schema
// half is rewritten from memory rather than read back from the frame.
// A failure here is a hard error, never silently dropped.
func (t *Table) persistCounters() error {
	handle, err := t.bp.PinPage(0)
	if err != nil {
		return err
	}
	page0, err := t.Schema.SerializePage0(t.tupleCount, t.firstFreePage)
	if err != nil {
		t.bp.UnpinPage(0)
		return err
	}
	copy(handle.Data, page0)
	if err := t.bp.MarkDirty(0); err != nil {
		t.bp.UnpinPage(0)
		return err
	}
	return t.bp.UnpinPage(0)
}

// InsertRecord stores rec in the first free slot at or after
// firstFreePage, growing the file with new pages as needed. On success
// rec.ID is set to the chosen RID and the table's counters are persisted.
func (t *Table) InsertRecord(rec *Record) error {
	return t.timeOp("insert", func() error { return t.insertRecord(rec) })
}

func (t *Table) insertRecord(rec *Record) error {
	if len(rec.Data) != t.recordSize {
		return ErrInvalidParameter
	}

	page := t.firstFreePage
	var rid RID
	for {
		handle, err := t.bp.PinPage(storage.PageNum(page))
		if err != nil {
			return err
		}

		slot := -1
		for s := 0; s < t.slotsPerPage; s++ {
			off := t.slotOffset(s)
			if handle.Data[off] == tombstoneFree {
				slot = s
				break
			}
		}

		if slot < 0 {
			if err := t.bp.UnpinPage(storage.PageNum(page)); err != nil {
				return err
			}
			page++
			continue
		}

		off := t.slotOffset(slot)
		handle.Data[off] = tombstoneOccupied
		copy(handle.Data[off+1:off+t.recordSize], rec.Data[1:])
		if err := t.bp.MarkDirty(storage.PageNum(page)); err != nil {
			t.bp.UnpinPage(storage.PageNum(page))
			return err
		}
		if err := t.bp.UnpinPage(storage.PageNum(page)); err != nil {
			return err
		}
		rid = RID{Page: page, Slot: slot}
		break
	}

	rec.ID = rid
	t.tupleCount++
	t.firstFreePage = rid.Page
	return t.persistCounters()
}

// DeleteRecord marks rid's slot free, lowering firstFreePage to encourage
// its reuse, and persists the counters.
func (t *Table) DeleteRecord(rid RID) error {
	return t.timeOp("delete", func() error { return t.deleteRecord(rid) })
}

func (t *Table) deleteRecord(rid RID) error {
	if err := t.validateRID(rid); err != nil {
		return err
	}
	handle, err := t.bp.PinPage(storage.PageNum(rid.Page))
	if err != nil {
		return err
	}
	off := t.slotOffset(rid.Slot)
	handle.Data[off] = tombstoneFree
	if err := t.bp.MarkDirty(storage.PageNum(rid.Page)); err != nil {
		t.bp.UnpinPage(storage.PageNum(rid.Page))
		return err
	}
	if err := t.bp.UnpinPage(storage.PageNum(rid.Page)); err != nil {
		return err
	}

	if t.tupleCount > 0 {
		t.tupleCount--
	}
	if rid.Page < t.firstFreePage {
		t.firstFreePage = rid.Page
	}
	return t.persistCounters()
}

// UpdateRecord overwrites the slot at rec.ID with rec's attribute bytes.
// The tombstone is always written as occupied, since an update implies
// the record already exists.
func (t *Table) UpdateRecord(rec *Record) error {
	return t.timeOp("update", func() error { return t.updateRecord(rec) })
}

func (t *Table) updateRecord(rec *Record) error {
	if len(rec.Data) != t.recordSize {
		return ErrInvalidParameter
	}
	if err := t.validateRID(rec.ID); err != nil {
		return err
	}
	handle, err := t.bp.PinPage(storage.PageNum(rec.ID.Page))
	if err != nil {
		return err
	}
	off := t.slotOffset(rec.ID.Slot)
	handle.Data[off] = tombstoneOccupied
	copy(handle.Data[off+1:off+t.recordSize], rec.Data[1:])
	if err := t.bp.MarkDirty(storage.PageNum(rec.ID.Page)); err != nil {
		t.bp.UnpinPage(storage.PageNum(rec.ID.Page))
		return err
	}
	return t.bp.UnpinPage(storage.PageNum(rec.ID.Page))
}

// GetRecord copies the record at rid into out. It fails with
// ErrInvalidParameter for an out-of-range page/slot, and with
// ErrNoTupleWithGivenRid if the slot is free.
func (t *Table) GetRecord(rid RID, out *Record) error {
	if err := t.validateRID(rid); err != nil {
		return err
	}
	handle, err := t.bp.PinPage(storage.PageNum(rid.Page))
	if err != nil {
		return err
	}
	off := t.slotOffset(rid.Slot)
	if handle.Data[off] == tombstoneFree {
		t.bp.UnpinPage(storage.PageNum(rid.Page))
		return ErrNoTupleWithGivenRid
	}

	if len(out.Data) != t.recordSize {
		out.Data = make([]byte, t.recordSize)
	}
	copy(out.Data, handle.Data[off:off+t.recordSize])
	out.ID = rid
	return t.bp.UnpinPage(storage.PageNum(rid.Page))
}
