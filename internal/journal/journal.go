// ============================================================================
// Trace Journal
// ============================================================================
//
// Package: internal/journal
// File: journal.go
// Purpose: Append-only JSON lines log of trace events, one record per state
//          transition, with a CRC32 checksum on every record.
//
// Record:
//   {"seq":1,"run_id":"...","tick":0,"job_id":1,"from":"NOT_ARRIVED","to":"READY","checksum":123}
//
//   seq restarts at 1 for every run and increases by one per record, so a
//   file holding several runs can be checked run by run on replay.
//
// Writes are buffered and flushed when the buffer fills or on Flush/Close.
// The journal is a trace.Sink; since Emit cannot fail, the first write error
// is kept and reported by Err, Flush and Close.
//
// ============================================================================

package journal

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sync"

	"github.com/ChuLiYu/cpu-sched/internal/trace"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
)

// DefaultBufferSize is the number of records held before a flush.
const DefaultBufferSize = 256

// Record is one journaled transition.
type Record struct {
	Seq      uint64         `json:"seq"`
	RunID    string         `json:"run_id"`
	Tick     int            `json:"tick"`
	JobID    int            `json:"job_id"`
	From     types.JobState `json:"from"`
	To       types.JobState `json:"to"`
	Checksum uint32         `json:"checksum"`
}

// Event converts the record back to a trace event.
func (r Record) Event() trace.Event {
	return trace.Event{Tick: r.Tick, JobID: r.JobID, From: r.From, To: r.To}
}

// Checksum computes the CRC32-IEEE of the record's fields.
func Checksum(r Record) uint32 {
	data := fmt.Sprintf("%d|%s|%d|%d|%s|%s", r.Seq, r.RunID, r.Tick, r.JobID, r.From, r.To)
	return crc32.ChecksumIEEE([]byte(data))
}

// Verify reports whether the stored checksum matches the record.
func Verify(r Record) bool {
	return r.Checksum == Checksum(r)
}

type file interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

// Journal appends records for a single run.
type Journal struct {
	mu      sync.Mutex
	file    file
	encoder *json.Encoder
	path    string
	runID   string
	seq     uint64

	buffer     []Record
	bufferSize int
	err        error
	closed     bool
}

// Open opens path for appending, creating it if needed.
func Open(path, runID string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	return newJournal(f, path, runID, DefaultBufferSize), nil
}

func newJournal(f file, path, runID string, bufferSize int) *Journal {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Journal{
		file:       f,
		encoder:    json.NewEncoder(f),
		path:       path,
		runID:      runID,
		buffer:     make([]Record, 0, bufferSize),
		bufferSize: bufferSize,
	}
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Append journals one event.
func (j *Journal) Append(ev trace.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}
	if j.err != nil {
		return j.err
	}

	j.seq++
	rec := Record{
		Seq:   j.seq,
		RunID: j.runID,
		Tick:  ev.Tick,
		JobID: ev.JobID,
		From:  ev.From,
		To:    ev.To,
	}
	rec.Checksum = Checksum(rec)
	j.buffer = append(j.buffer, rec)

	if len(j.buffer) >= j.bufferSize {
		return j.flushLocked()
	}
	return nil
}

// Emit implements trace.Sink.
func (j *Journal) Emit(ev trace.Event) {
	_ = j.Append(ev)
}

var _ trace.Sink = (*Journal)(nil)

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// LastSeq returns the sequence number of the last appended record.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Flush writes buffered records and syncs the file.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	return j.flushLocked()
}

// Close flushes and closes the file. A closed journal cannot be reused.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	j.closed = true

	flushErr := j.flushLocked()
	if err := j.file.Close(); err != nil && flushErr == nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return flushErr
}

// flushLocked assumes j.mu is held.
func (j *Journal) flushLocked() error {
	if j.err != nil {
		return j.err
	}
	for _, rec := range j.buffer {
		if err := j.encoder.Encode(rec); err != nil {
			j.err = fmt.Errorf("failed to write journal record %d: %w", rec.Seq, err)
			return j.err
		}
	}
	j.buffer = j.buffer[:0]
	if err := j.file.Sync(); err != nil {
		j.err = fmt.Errorf("%w: %v", ErrSyncFailed, err)
		return j.err
	}
	return nil
}
