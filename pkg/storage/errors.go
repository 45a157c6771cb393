package storage

import "fmt"

// Code is the shared return-code space used end to end by the storage
// manager and the buffer pool built on top of it, carried inside a Go
// error value so callers can use errors.Is/errors.As instead of
// comparing ints.
type Code int

const (
	// OK is never wrapped into an error; it exists only to document the
	// return-code space in one place.
	OK Code = iota
	FileNotFound
	FileHandleNotInit
	FileCloseFailed
	WriteFailed
	ReadNonExistingPage
	PinnedPagesInBuffer
	InvalidParameter
	MemoryAllocationError
	Generic
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case FileNotFound:
		return "FileNotFound"
	case FileHandleNotInit:
		return "FileHandleNotInit"
	case FileCloseFailed:
		return "FileCloseFailed"
	case WriteFailed:
		return "WriteFailed"
	case ReadNonExistingPage:
		return "ReadNonExistingPage"
	case PinnedPagesInBuffer:
		return "PinnedPagesInBuffer"
	case InvalidParameter:
		return "InvalidParameter"
	case MemoryAllocationError:
		return "MemoryAllocationError"
	default:
		return "Error"
	}
}

// Error wraps a Code with the operation that produced it and, optionally,
// the underlying cause (a short read, an os.PathError, ...).
type Error struct {
	Op   string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("storage: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, SomeCode) work by comparing against a bare Code
// wrapped in the same shape - see CodeOf.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

func newErr(op string, code Code, cause error) error {
	return &Error{Op: op, Code: code, Err: cause}
}

// CodeOf extracts the Code carried by err, defaulting to Generic when err
// does not originate from this package.
func CodeOf(err error) Code {
	var se *Error
	if ok := asStorageError(err, &se); ok {
		return se.Code
	}
	return Generic
}

func asStorageError(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Sentinel code values usable with errors.Is, e.g.:
//
//	if errors.Is(err, storage.ErrFileNotFound) { ... }
var (
	ErrFileNotFound         = &Error{Code: FileNotFound}
	ErrFileHandleNotInit    = &Error{Code: FileHandleNotInit}
	ErrFileCloseFailed      = &Error{Code: FileCloseFailed}
	ErrWriteFailed          = &Error{Code: WriteFailed}
	ErrReadNonExistingPage  = &Error{Code: ReadNonExistingPage}
	ErrPinnedPagesInBuffer  = &Error{Code: PinnedPagesInBuffer}
	ErrInvalidParameter     = &Error{Code: InvalidParameter}
	ErrMemoryAllocationError = &Error{Code: MemoryAllocationError}
)
