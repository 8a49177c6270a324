package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Handler receives replayed records in file order. Returning an error stops
// the replay.
type Handler func(rec Record) error

// Replay reads path from the start, verifying each record's checksum and
// that seq restarts at 1 for a new run and then increases by one.
func Replay(path string, handler Handler) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var (
		lineNo  int
		runID   string
		lastSeq uint64
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return &CorruptionError{Line: lineNo, Cause: err}
		}
		if !Verify(rec) {
			return &ChecksumError{Line: lineNo, Seq: rec.Seq, Expected: Checksum(rec), Actual: rec.Checksum}
		}

		if rec.RunID != runID {
			runID = rec.RunID
			lastSeq = 0
		}
		if rec.Seq != lastSeq+1 {
			return fmt.Errorf("%w: line %d run %s expected seq=%d, got %d", ErrSequenceGap, lineNo, rec.RunID, lastSeq+1, rec.Seq)
		}
		lastSeq = rec.Seq

		if err := handler(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &CorruptionError{Line: lineNo + 1, Cause: err}
	}
	return nil
}
