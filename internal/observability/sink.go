// Package observability records the trace of a solve run: every prompt sent,
// every response received, and the errors in between, as JSON lines.
package observability

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase names stamped on events.
const (
	PhaseStatement = "statement"
	PhaseTheory    = "theory"
	PhaseCriteria  = "criteria"
	PhaseDraft     = "draft"
	PhaseVerify    = "verify"
	PhaseDecide    = "decide"
	PhaseRepair    = "repair"
	PhaseContinue  = "continue"
	PhaseDecompose = "decompose"
	PhaseIntegrate = "integrate"
	PhaseRecover   = "recover"
	PhaseFinal     = "final"
	PhaseTrim      = "trim"
)

// Event is one entry in a run trace.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Task      string         `json:"task,omitempty"`
	Depth     int            `json:"depth"`
	Phase     string         `json:"phase"`
	Prompt    string         `json:"prompt,omitempty"`
	Response  string         `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Sink receives trace events.
type Sink interface {
	Record(ev Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Record(Event) {}

// OrNop returns s, or a NopSink when s is nil, so callers never need a nil
// check.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink{}
	}
	return s
}

// JSONSink writes one JSON object per event. Safe for concurrent use.
type JSONSink struct {
	mu    sync.Mutex
	w     io.Writer
	runID string
}

// NewJSONSink creates a sink writing to w, stamping every event with a fresh
// run ID.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w, runID: uuid.NewString()}
}

// RunID returns the identifier stamped on this sink's events.
func (s *JSONSink) RunID() string {
	return s.runID
}

// Record implements Sink. Marshal or write failures are dropped; tracing
// never fails a solve.
func (s *JSONSink) Record(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.RunID = s.runID

	s.mu.Lock()
	defer s.mu.Unlock()
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.w.Write(append(line, '\n'))
}
