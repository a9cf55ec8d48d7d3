package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle state of a table (and, for the terminal states,
// of a whole multi-table run).
type Phase int

const (
	PhasePending Phase = iota
	PhaseIntrospecting
	PhaseSynthesizing
	PhaseApplying
	PhaseCompleted
	PhasePartiallyFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseIntrospecting:
		return "introspecting"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhaseApplying:
		return "applying"
	case PhaseCompleted:
		return "completed"
	case PhasePartiallyFailed:
		return "partially failed"
	default:
		return "unknown"
	}
}

// SyncReport summarises one sync or provision run against one tenant. Every
// run gets a fresh report; nothing is carried over between runs.
type SyncReport struct {
	RunID          uuid.UUID
	Tenant         string
	Created        int
	Skipped        int
	Failed         int
	PerTableErrors map[string]string
	State          Phase
	Error          string // tenant-level failure, e.g. source tables could not be listed
	StartedAt      time.Time
	Duration       time.Duration
}

func newReport(tenant string) *SyncReport {
	return &SyncReport{
		RunID:          uuid.New(),
		Tenant:         tenant,
		PerTableErrors: make(map[string]string),
		State:          PhasePending,
		StartedAt:      time.Now(),
	}
}

// Total is the number of tables the run looked at.
func (r *SyncReport) Total() int {
	return r.Created + r.Skipped + r.Failed
}

// FailedTables returns the failed table names in alphabetical order.
func (r *SyncReport) FailedTables() []string {
	names := make([]string, 0, len(r.PerTableErrors))
	for name := range r.PerTableErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *SyncReport) record(table string, created bool, err error) {
	switch {
	case err != nil:
		r.Failed++
		r.PerTableErrors[table] = err.Error()
	case created:
		r.Created++
	default:
		r.Skipped++
	}
}

func (r *SyncReport) fail(err error) {
	r.Error = err.Error()
}

func (r *SyncReport) finish() {
	r.Duration = time.Since(r.StartedAt)
	if r.Failed > 0 || r.Error != "" {
		r.State = PhasePartiallyFailed
	} else {
		r.State = PhaseCompleted
	}
}
