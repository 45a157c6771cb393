package record

import "errors"

// Sentinel errors for the record manager's semantic error cases (§7 of the
// spec). Argument/resource/protocol errors from the storage layer below
// propagate unwrapped - callers can still match them with errors.Is
// against storage's sentinel errors (storage.ErrFileNotFound, ...) or
// read their code with storage.CodeOf.
var (
	// ErrNoMoreTuples is returned by Scan.Next once the scan is exhausted.
	ErrNoMoreTuples = errors.New("record: no more tuples")

	// ErrNoTupleWithGivenRid is returned by Table.GetRecord when the slot
	// at the given RID is free.
	ErrNoTupleWithGivenRid = errors.New("record: no tuple with given rid")

	// ErrScanConditionNotFound is returned by StartScan when the
	// predicate is nil.
	ErrScanConditionNotFound = errors.New("record: scan condition not found")

	// ErrCompareValueOfDifferentDatatype is returned when a predicate
	// compares two values of different DataTypes.
	ErrCompareValueOfDifferentDatatype = errors.New("record: compare value of different datatype")

	// ErrInvalidParameter covers out-of-range attribute/RID indices and
	// nil arguments that aren't covered by a more specific sentinel.
	ErrInvalidParameter = errors.New("record: invalid parameter")
)
