package updater

import (
	"sync"
	"time"
)

// Stage is where an updater is in its cycle.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageFetching   Stage = "fetching"
	StageParsing    Stage = "parsing"
	StageMatching   Stage = "matching"
	StageCommitting Stage = "committing"
)

// Status is a point-in-time view of one updater for operators.
type Status struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	Frequency   string    `json:"frequency"`
	Stage       Stage     `json:"stage"`
	Runs        int       `json:"runs"`
	Failures    int       `json:"failures"`
	LastRun     time.Time `json:"last_run,omitzero"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	LastRunID   string    `json:"last_run_id,omitempty"`

	// Counts of the last completed cycle.
	Applied   int `json:"applied"`
	Expired   int `json:"expired"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Unmatched int `json:"unmatched"`
	Held      int `json:"held"`
}

// runState is the mutable half of Status, shared between the cycle
// goroutine and status readers.
type runState struct {
	mu sync.Mutex
	st Status
}

func (r *runState) stage(s Stage) {
	r.mu.Lock()
	r.st.Stage = s
	r.mu.Unlock()
}

func (r *runState) begin(runID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.Runs++
	r.st.LastRun = at
	r.st.LastRunID = runID
	r.st.Stage = StageFetching
}

// finish records the outcome of a cycle and returns to idle. c is nil
// when the cycle ended before anything was committed.
func (r *runState) finish(c *cycleCounts, held int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.Stage = StageIdle
	if err != nil {
		r.st.Failures++
		r.st.LastError = err.Error()
	} else {
		r.st.LastSuccess = r.st.LastRun
		r.st.LastError = ""
	}
	if c == nil {
		return
	}
	r.st.Applied = c.applied
	r.st.Expired = c.expired
	r.st.Failed = c.failed
	r.st.Skipped = c.skipped
	r.st.Unmatched = c.unmatched
	r.st.Held = held
}

func (r *runState) snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st
}

type cycleCounts struct {
	applied, expired, failed int
	skipped, unmatched       int
}
