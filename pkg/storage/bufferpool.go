package storage

// frame is one cached page. Frames live at a fixed slot index for the
// lifetime of the pool: eviction overwrites a frame's contents in place
// rather than moving it, which is what lets the stats accessors below
// (GetFrameContents, GetDirtyFlags, GetFixCounts) report frames in a
// stable slot order, and lets FIFO and CLOCK walk the slots with a
// circular hand (see replacement.go).
type frame struct {
	slot      int // fixed index into BufferPool.frames, set once at creation
	occupied  bool
	pageNum   PageNum
	data      []byte
	dirty     bool
	pinCount  int
	lastTouch uint64 // LRU
	refCount  int    // LFU
	refBit    bool   // CLOCK
}

// BufferPool is a fixed-capacity cache of pages from a single page file.
// It is not safe for concurrent use - per the engine's single-threaded
// model, callers are responsible for serialising their own access to a
// given pool.
type BufferPool struct {
	fileName string
	fh       *FileHandle
	capacity int
	frames   []*frame
	index    map[PageNum]int // pageNum -> slot index, occupied frames only
	strategy strategy
	tick     uint64
	reads    uint64
	writes   uint64

	// Listener, if set, is invoked synchronously after every pin, unpin,
	// evict, and flush. It must not call back into the pool - it exists so
	// an external observer (see pkg/admin's event feed) can watch pool
	// activity without the pool itself depending on anything concurrent.
	Listener func(PoolEvent)
}

// PoolEvent describes one occurrence of pool activity: a page being
// pinned, unpinned, evicted to make room, or flushed back to disk.
type PoolEvent struct {
	Op   string // "pin", "unpin", "evict", "flush"
	Page PageNum
}

func (bp *BufferPool) notify(op string, n PageNum) {
	if bp.Listener != nil {
		bp.Listener(PoolEvent{Op: op, Page: n})
	}
}

// InitBufferPool creates a buffer pool of the given capacity over fileName
// using the given replacement strategy. No frames are pre-allocated.
func InitBufferPool(fileName string, numPages int, kind StrategyKind) (*BufferPool, error) {
	var fh FileHandle
	if err := OpenPageFile(fileName, &fh); err != nil {
		return nil, err
	}

	return &BufferPool{
		fileName: fileName,
		fh:       &fh,
		capacity: numPages,
		frames:   make([]*frame, 0, numPages),
		index:    make(map[PageNum]int, numPages),
		strategy: newStrategy(kind),
	}, nil
}

// ShutdownBufferPool flushes the pool and releases its frames. If any
// frame is still pinned, it fails with PinnedPagesInBuffer and performs no
// destructive action - the pool is left exactly as it was so the caller
// can unpin the offending page and retry.
func (bp *BufferPool) ShutdownBufferPool() error {
	if err := bp.ForceFlushPool(); err != nil {
		return err
	}

	for _, f := range bp.frames {
		if f.occupied && f.pinCount > 0 {
			return newErr("ShutdownBufferPool", PinnedPagesInBuffer, nil)
		}
	}

	bp.frames = nil
	bp.index = nil
	if err := ClosePageFile(bp.fh); err != nil {
		return err
	}
	bp.fh = nil
	bp.fileName = ""
	return nil
}

// ForceFlushPool writes back every dirty, unpinned frame and clears its
// dirty flag. It stops at the first I/O error encountered.
func (bp *BufferPool) ForceFlushPool() error {
	for _, f := range bp.frames {
		if f.occupied && f.dirty && f.pinCount == 0 {
			if err := bp.writeFrame(f); err != nil {
				return err
			}
			f.dirty = false
			bp.notify("flush", f.pageNum)
		}
	}
	return nil
}

// PinPage pins page n, growing the underlying file if necessary, and
// returns a handle onto the frame's buffer. The handle is only valid
// until the matching UnpinPage call.
func (bp *BufferPool) PinPage(n PageNum) (PageHandle, error) {
	if idx, ok := bp.index[n]; ok {
		f := bp.frames[idx]
		f.pinCount++
		bp.tick++
		bp.strategy.touch(f, bp.tick)
		bp.notify("pin", n)
		return PageHandle{PageNum: n, Data: f.data}, nil
	}

	if err := bp.fh.EnsureCapacity(int(n) + 1); err != nil {
		return PageHandle{}, err
	}

	if len(bp.frames) < bp.capacity {
		f := &frame{slot: len(bp.frames)}
		if err := bp.readInto(n, f); err != nil {
			return PageHandle{}, err
		}
		f.occupied = true
		f.pinCount = 1
		bp.frames = append(bp.frames, f)
		bp.index[n] = len(bp.frames) - 1
		bp.tick++
		bp.strategy.touch(f, bp.tick)
		f.refBit = false // CLOCK: only a re-reference (a hit) sets the bit
		bp.notify("pin", n)
		return PageHandle{PageNum: n, Data: f.data}, nil
	}

	victim, ok := bp.strategy.pickVictim(bp.frames)
	if !ok {
		return PageHandle{}, newErr("PinPage", PinnedPagesInBuffer, nil)
	}
	if victim.dirty {
		if err := bp.writeFrame(victim); err != nil {
			return PageHandle{}, err
		}
		bp.notify("flush", victim.pageNum)
	}
	bp.notify("evict", victim.pageNum)
	delete(bp.index, victim.pageNum)

	if err := bp.readInto(n, victim); err != nil {
		return PageHandle{}, err
	}
	victim.occupied = true
	victim.dirty = false
	victim.pinCount = 1
	victim.refCount = 0
	bp.index[n] = victim.slot
	bp.tick++
	bp.strategy.touch(victim, bp.tick)
	victim.refBit = false // CLOCK: only a re-reference (a hit) sets the bit
	bp.notify("pin", n)
	return PageHandle{PageNum: n, Data: victim.data}, nil
}

// UnpinPage decrements the pin count of page n.
func (bp *BufferPool) UnpinPage(n PageNum) error {
	f, err := bp.frameFor("UnpinPage", n)
	if err != nil {
		return err
	}
	if f.pinCount <= 0 {
		return newErr("UnpinPage", Generic, nil)
	}
	f.pinCount--
	bp.notify("unpin", n)
	return nil
}

// MarkDirty marks page n's frame dirty.
func (bp *BufferPool) MarkDirty(n PageNum) error {
	f, err := bp.frameFor("MarkDirty", n)
	if err != nil {
		return err
	}
	f.dirty = true
	return nil
}

// ForcePage synchronously writes page n back to disk if it is dirty,
// regardless of its pin count, and clears its dirty flag. It is a noop
// on a clean page.
func (bp *BufferPool) ForcePage(n PageNum) error {
	f, err := bp.frameFor("ForcePage", n)
	if err != nil {
		return err
	}
	if !f.dirty {
		return nil
	}
	if err := bp.writeFrame(f); err != nil {
		return err
	}
	f.dirty = false
	bp.notify("flush", n)
	return nil
}

func (bp *BufferPool) frameFor(op string, n PageNum) (*frame, error) {
	idx, ok := bp.index[n]
	if !ok {
		return nil, newErr(op, Generic, nil)
	}
	return bp.frames[idx], nil
}

func (bp *BufferPool) readInto(n PageNum, f *frame) error {
	buf := make([]byte, PageSize)
	if err := bp.fh.ReadBlock(int(n), buf); err != nil {
		return err
	}
	f.data = buf
	f.pageNum = n
	bp.reads++
	return nil
}

func (bp *BufferPool) writeFrame(f *frame) error {
	if err := bp.fh.WriteBlock(int(f.pageNum), f.data); err != nil {
		return err
	}
	bp.writes++
	return nil
}

// Capacity returns the pool's frame capacity.
func (bp *BufferPool) Capacity() int { return bp.capacity }

// GetNumReadIO returns the number of pages read from disk.
func (bp *BufferPool) GetNumReadIO() int { return int(bp.reads) }

// GetNumWriteIO returns the number of pages written to disk.
func (bp *BufferPool) GetNumWriteIO() int { return int(bp.writes) }

// GetFrameContents returns, in slot order, the page number held by each
// frame. Unused slots (beyond the frames allocated so far) read 0.
func (bp *BufferPool) GetFrameContents() []PageNum {
	out := make([]PageNum, bp.capacity)
	for i, f := range bp.frames {
		if f.occupied {
			out[i] = f.pageNum
		}
	}
	return out
}

// GetDirtyFlags returns, in slot order, whether each frame is dirty.
func (bp *BufferPool) GetDirtyFlags() []bool {
	out := make([]bool, bp.capacity)
	for i, f := range bp.frames {
		out[i] = f.occupied && f.dirty
	}
	return out
}

// GetFixCounts returns, in slot order, each frame's pin count.
func (bp *BufferPool) GetFixCounts() []int {
	out := make([]int, bp.capacity)
	for i, f := range bp.frames {
		if f.occupied {
			out[i] = f.pinCount
		}
	}
	return out
}
