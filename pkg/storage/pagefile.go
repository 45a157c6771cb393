package storage

import (
	"fmt"
	"io"
	"os"
)

// FileHandle is the storage manager's handle on a single page file. It owns
// the underlying OS file, the running page count, and a cursor used by the
// relative read helpers (ReadFirstBlock, ReadNextBlock, ...).
//
// A FileHandle is not safe for concurrent use; callers must serialise their
// own access the way the rest of this engine does (see the package doc on
// BufferPool).
type FileHandle struct {
	name       string
	file       *os.File
	totalPages int
	cursor     int
}

// CreatePageFile creates (or truncates) the named file and writes exactly
// one zeroed page to it. It does not leave the file open; call
// OpenPageFile afterwards.
func CreatePageFile(name string) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return newErr("CreatePageFile", FileNotFound, err)
	}
	defer f.Close()

	buf := make([]byte, PageSize)
	n, err := f.Write(buf)
	if err != nil {
		return newErr("CreatePageFile", WriteFailed, err)
	}
	if n != PageSize {
		return newErr("CreatePageFile", WriteFailed, io.ErrShortWrite)
	}
	if err := f.Sync(); err != nil {
		return newErr("CreatePageFile", WriteFailed, err)
	}
	return nil
}

// OpenPageFile opens name read/write and initialises fh to describe it.
// totalPages is set to ceil(fileSize / PageSize), with a floor of 1, and
// the cursor starts at 0.
func OpenPageFile(name string, fh *FileHandle) error {
	f, err := os.OpenFile(name, os.O_RDWR, 0644)
	if err != nil {
		return newErr("OpenPageFile", FileNotFound, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return newErr("OpenPageFile", FileNotFound, err)
	}

	total := int(info.Size() / PageSize)
	if info.Size()%PageSize != 0 {
		total++
	}
	if total < 1 {
		total = 1
	}

	fh.name = name
	fh.file = f
	fh.totalPages = total
	fh.cursor = 0
	return nil
}

// ClosePageFile flushes and closes the underlying stream. It is idempotent
// on a zeroed handle.
func ClosePageFile(fh *FileHandle) error {
	if fh == nil || fh.file == nil {
		return nil
	}
	if err := fh.file.Sync(); err != nil {
		return newErr("ClosePageFile", FileCloseFailed, err)
	}
	if err := fh.file.Close(); err != nil {
		return newErr("ClosePageFile", FileCloseFailed, err)
	}
	fh.file = nil
	fh.name = ""
	return nil
}

// DestroyPageFile removes the named page file.
func DestroyPageFile(name string) error {
	if err := os.Remove(name); err != nil {
		return newErr("DestroyPageFile", FileNotFound, err)
	}
	return nil
}

// TotalPages returns the number of pages currently in the file.
func (fh *FileHandle) TotalPages() int { return fh.totalPages }

// Name returns the page file's path.
func (fh *FileHandle) Name() string { return fh.name }

// GetBlockPos returns the current cursor.
func (fh *FileHandle) GetBlockPos() int { return fh.cursor }

// ReadBlock reads page n into buf, which must be exactly PageSize bytes.
// On success the cursor is set to n.
func (fh *FileHandle) ReadBlock(n int, buf []byte) error {
	if fh.file == nil {
		return newErr("ReadBlock", FileHandleNotInit, nil)
	}
	if n < 0 || n >= fh.totalPages || buf == nil {
		return newErr("ReadBlock", ReadNonExistingPage, nil)
	}
	if len(buf) != PageSize {
		return newErr("ReadBlock", InvalidParameter, nil)
	}

	read, err := fh.file.ReadAt(buf, int64(n)*PageSize)
	if err != nil && err != io.EOF {
		return newErr("ReadBlock", ReadNonExistingPage, err)
	}
	if read != PageSize {
		return newErr("ReadBlock", ReadNonExistingPage, io.ErrUnexpectedEOF)
	}

	fh.cursor = n
	return nil
}

// ReadFirstBlock reads page 0.
func (fh *FileHandle) ReadFirstBlock(buf []byte) error { return fh.ReadBlock(0, buf) }

// ReadPreviousBlock reads the page immediately before the cursor.
func (fh *FileHandle) ReadPreviousBlock(buf []byte) error { return fh.ReadBlock(fh.cursor-1, buf) }

// ReadCurrentBlock re-reads the page at the cursor.
func (fh *FileHandle) ReadCurrentBlock(buf []byte) error { return fh.ReadBlock(fh.cursor, buf) }

// ReadNextBlock reads the page immediately after the cursor.
func (fh *FileHandle) ReadNextBlock(buf []byte) error { return fh.ReadBlock(fh.cursor+1, buf) }

// ReadLastBlock reads the final page in the file.
func (fh *FileHandle) ReadLastBlock(buf []byte) error { return fh.ReadBlock(fh.totalPages-1, buf) }

// WriteBlock writes buf (exactly PageSize bytes) to page n, flushing
// before returning, and sets the cursor to n.
func (fh *FileHandle) WriteBlock(n int, buf []byte) error {
	if fh.file == nil {
		return newErr("WriteBlock", FileHandleNotInit, nil)
	}
	if n < 0 || n >= fh.totalPages || buf == nil {
		return newErr("WriteBlock", InvalidParameter, nil)
	}
	if len(buf) != PageSize {
		return newErr("WriteBlock", InvalidParameter, nil)
	}

	written, err := fh.file.WriteAt(buf, int64(n)*PageSize)
	if err != nil {
		return newErr("WriteBlock", WriteFailed, err)
	}
	if written != PageSize {
		return newErr("WriteBlock", WriteFailed, io.ErrShortWrite)
	}
	if err := fh.file.Sync(); err != nil {
		return newErr("WriteBlock", WriteFailed, err)
	}

	fh.cursor = n
	return nil
}

// WriteCurrentBlock writes buf at the cursor.
func (fh *FileHandle) WriteCurrentBlock(buf []byte) error { return fh.WriteBlock(fh.cursor, buf) }

// AppendEmptyBlock appends one zeroed page to the file, growing totalPages
// by one and moving the cursor to the new last page.
func (fh *FileHandle) AppendEmptyBlock() error {
	if fh.file == nil {
		return newErr("AppendEmptyBlock", FileHandleNotInit, nil)
	}

	buf := make([]byte, PageSize)
	offset := int64(fh.totalPages) * PageSize
	written, err := fh.file.WriteAt(buf, offset)
	if err != nil {
		return newErr("AppendEmptyBlock", WriteFailed, err)
	}
	if written != PageSize {
		return newErr("AppendEmptyBlock", WriteFailed, io.ErrShortWrite)
	}
	if err := fh.file.Sync(); err != nil {
		return newErr("AppendEmptyBlock", WriteFailed, err)
	}

	fh.totalPages++
	fh.cursor = fh.totalPages - 1
	return nil
}

// EnsureCapacity appends zeroed pages, one at a time, until the file has
// at least n pages. It is a no-op if the file already satisfies n. A
// failure partway through leaves the file enlarged up to the last
// successful append - growth is not rolled back (see DESIGN.md).
func (fh *FileHandle) EnsureCapacity(n int) error {
	for fh.totalPages < n {
		if err := fh.AppendEmptyBlock(); err != nil {
			return fmt.Errorf("EnsureCapacity: grew to %d of %d pages: %w", fh.totalPages, n, err)
		}
	}
	return nil
}
