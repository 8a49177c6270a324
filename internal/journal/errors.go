package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptedJournal means a line could not be decoded.
	ErrCorruptedJournal = errors.New("journal: file is corrupted")

	// ErrChecksumMismatch means a record's checksum does not match its fields.
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")

	// ErrSequenceGap means seq did not increase by one within a run.
	ErrSequenceGap = errors.New("journal: sequence gap")

	// ErrJournalClosed is returned by operations on a closed journal.
	ErrJournalClosed = errors.New("journal: already closed")

	// ErrSyncFailed means fsync failed.
	ErrSyncFailed = errors.New("journal: sync to disk failed")
)

// ChecksumError describes a record whose checksum is wrong.
type ChecksumError struct {
	Line     int
	Seq      uint64
	Expected uint32
	Actual   uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("journal: checksum mismatch at line %d seq=%d (expected=0x%08x, got=0x%08x)",
		e.Line, e.Seq, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// CorruptionError describes a line that is not a valid record.
type CorruptionError struct {
	Line  int
	Cause error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("journal: corrupted record at line %d: %v", e.Line, e.Cause)
}

func (e *CorruptionError) Unwrap() []error {
	return []error{ErrCorruptedJournal, e.Cause}
}
