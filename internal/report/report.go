// ============================================================================
// Run Report
// ============================================================================
//
// Package: internal/report
// File: report.go
// Purpose: Summarizes a finished run and persists it as JSON or YAML.
//
// Persistence:
//   1. Serialize (JSON indented, or YAML for .yaml/.yml paths)
//   2. Write to <path>.tmp
//   3. os.Rename onto <path>, so readers never see a half written report
//
// Load checks the schema version and reports undecodable files as
// ErrCorruptedReport.
//
// ============================================================================

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ChuLiYu/cpu-sched/internal/engine"
	"github.com/ChuLiYu/cpu-sched/pkg/types"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the current report layout.
const SchemaVersion = 1

var (
	ErrCorruptedReport     = errors.New("report file is corrupted")
	ErrIncompatibleVersion = errors.New("report schema version is incompatible")
	ErrReportNotFound      = errors.New("report file not found")
)

// JobReport is one row of the per-job table.
type JobReport struct {
	ID         int `json:"id" yaml:"id"`
	Arrival    int `json:"arrival" yaml:"arrival"`
	Burst      int `json:"burst" yaml:"burst"`
	Completion int `json:"completion" yaml:"completion"`
	Turnaround int `json:"turnaround" yaml:"turnaround"`
	Waiting    int `json:"waiting" yaml:"waiting"`
}

// Report summarizes one run.
type Report struct {
	SchemaVer int       `json:"schema_version" yaml:"schema_version"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	Algorithm types.Algorithm `json:"algorithm" yaml:"algorithm"`
	Quantum   int             `json:"quantum,omitempty" yaml:"quantum,omitempty"`
	Source    string          `json:"source" yaml:"source"`

	Jobs          []JobReport `json:"jobs" yaml:"jobs"`
	Makespan      int         `json:"makespan" yaml:"makespan"`
	AvgTurnaround float64     `json:"avg_turnaround" yaml:"avg_turnaround"`
	AvgWaiting    float64     `json:"avg_waiting" yaml:"avg_waiting"`
	Throughput    float64     `json:"throughput" yaml:"throughput"` // jobs per tick
	Preemptions   int         `json:"preemptions" yaml:"preemptions"`
	Requeues      int         `json:"requeues" yaml:"requeues"`
}

// Build summarizes res.
func Build(runID, source string, res engine.Result) Report {
	r := Report{
		SchemaVer:   SchemaVersion,
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		Algorithm:   res.Algorithm,
		Quantum:     res.Quantum,
		Source:      source,
		Jobs:        make([]JobReport, 0, len(res.Jobs)),
		Makespan:    res.Elapsed,
		Preemptions: res.Preemptions,
		Requeues:    res.Requeues,
	}

	turnaround, waiting := 0, 0
	for _, j := range res.Jobs {
		r.Jobs = append(r.Jobs, JobReport{
			ID:         j.ID,
			Arrival:    j.Arrival,
			Burst:      j.Burst,
			Completion: j.Completion,
			Turnaround: j.Turnaround(),
			Waiting:    j.Waiting(),
		})
		turnaround += j.Turnaround()
		waiting += j.Waiting()
	}
	if n := len(res.Jobs); n > 0 {
		r.AvgTurnaround = float64(turnaround) / float64(n)
		r.AvgWaiting = float64(waiting) / float64(n)
		if res.Elapsed > 0 {
			r.Throughput = float64(n) / float64(res.Elapsed)
		}
	}
	return r
}

// Manager reads and writes one report file.
type Manager struct {
	path string
	mu   sync.Mutex
}

// NewManager returns a manager for path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the report path.
func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(m.path))
	return ext == ".yaml" || ext == ".yml"
}

// Write stores r atomically.
func (m *Manager) Write(r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.SchemaVer = SchemaVersion

	var (
		data []byte
		err  error
	)
	if m.isYAML() {
		data, err = yaml.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp report: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename report: %w", err)
	}
	return nil
}

// Load reads the report back.
func (m *Manager) Load() (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var r Report
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, fmt.Errorf("%w: %s", ErrReportNotFound, m.path)
		}
		return r, fmt.Errorf("failed to read report: %w", err)
	}

	if m.isYAML() {
		err = yaml.Unmarshal(data, &r)
	} else {
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return r, fmt.Errorf("%w: %v", ErrCorruptedReport, err)
	}
	if r.SchemaVer != SchemaVersion {
		return r, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, r.SchemaVer, SchemaVersion)
	}
	return r, nil
}

// Exists reports whether the report file exists.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}
