package models

import "time"

// Stage names reported by the engine
const (
	StageExecution = "execution"
	StageExit      = "exit"
)

// CycleReport summarizes one engine invocation for the scheduler/operator.
// Every signal or trade touched by a cycle is accounted for in exactly one
// counter: nothing is dropped silently.
type CycleReport struct {
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Execution stage outcomes
	Executed int `json:"executed,omitempty"`
	Rejected int `json:"rejected,omitempty"`
	Failed   int `json:"failed,omitempty"`

	// Exit stage outcomes
	Closed    int `json:"closed,omitempty"`
	StillOpen int `json:"still_open,omitempty"`

	// Items left untouched this cycle after a recoverable I/O failure; they
	// stay in their non-terminal state and are retried next cycle.
	Skipped int `json:"skipped,omitempty"`
}

// Processed returns the total number of items the cycle accounted for.
func (r *CycleReport) Processed() int {
	return r.Executed + r.Rejected + r.Failed + r.Closed + r.StillOpen + r.Skipped
}
