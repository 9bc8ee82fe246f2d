package api

import (
	"sync"
	"time"
)

// Run phases reported by /status.
const (
	PhaseIdle       = "idle"
	PhaseExtracting = "extracting"
	PhaseWriting    = "writing"
	PhaseDone       = "done"
	PhaseFailed     = "failed"
)

// RunStatus is a snapshot of the current or last sync run.
type RunStatus struct {
	Phase      string    `json:"phase"`
	Checkpoint string    `json:"checkpoint,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Entities   int       `json:"entities"`
	Relations  int       `json:"relations"`
	Marker     string    `json:"marker,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Tracker records run progress for the status endpoint. It is safe for
// concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	status RunStatus
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{status: RunStatus{Phase: PhaseIdle}}
}

// Begin starts a new run in the given phase.
func (t *Tracker) Begin(phase, checkpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = RunStatus{Phase: phase, Checkpoint: checkpoint, StartedAt: time.Now().UTC()}
}

// AddEntities counts entities processed by the current run.
func (t *Tracker) AddEntities(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Entities += n
}

// AddRelations counts relations processed by the current run.
func (t *Tracker) AddRelations(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Relations += n
}

// Finish ends the current run. A nil err marks it done with the given
// resume marker.
func (t *Tracker) Finish(marker string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.FinishedAt = time.Now().UTC()
	if err != nil {
		t.status.Phase = PhaseFailed
		t.status.Error = err.Error()
		return
	}
	t.status.Phase = PhaseDone
	t.status.Marker = marker
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
