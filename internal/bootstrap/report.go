package bootstrap

import (
	"time"
)

// Report summarizes one InitializeAll run.
type Report struct {
	RunID      string            `json:"run_id"`
	Mode       string            `json:"mode"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Duration   time.Duration     `json:"duration"`
	Ready      bool              `json:"ready"`
	Subsystems []SubsystemReport `json:"subsystems"`
}

// SubsystemReport is the outcome of one subsystem within a run, in run
// order.
type SubsystemReport struct {
	Name         string         `json:"name"`
	State        State          `json:"state"`
	Status       StatusSnapshot `json:"status"`
	Measurements []Measurement  `json:"measurements"`
	Duration     time.Duration  `json:"duration"`
	Error        string         `json:"error,omitempty"`
}

// Subsystem returns the entry for name.
func (r *Report) Subsystem(name string) (SubsystemReport, bool) {
	for _, s := range r.Subsystems {
		if s.Name == name {
			return s, true
		}
	}
	return SubsystemReport{}, false
}

// Statuses returns the status snapshots keyed by subsystem name.
func (r *Report) Statuses() map[string]StatusSnapshot {
	out := make(map[string]StatusSnapshot, len(r.Subsystems))
	for _, s := range r.Subsystems {
		out[s.Name] = s.Status
	}
	return out
}

// Failed returns the names of subsystems that did not become ready, in run
// order.
func (r *Report) Failed() []string {
	var names []string
	for _, s := range r.Subsystems {
		if !s.Status.Ready() {
			names = append(names, s.Name)
		}
	}
	return names
}
