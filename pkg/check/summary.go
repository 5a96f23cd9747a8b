// pkg/check/summary.go

package check

import (
	"errors"
	"time"
)

// ErrSummaryFrozen is returned when a result is recorded after the run ended.
var ErrSummaryFrozen = errors.New("run summary is frozen")

// Summary aggregates the results of one run. It is owned by the
// orchestrator, updated between checks and frozen when the run ends.
type Summary struct {
	// Total is the number of checks the run attempted, skipped ones included.
	Total int
	// Results are in execution order, one per check.
	Results []Result

	FixesAttempted bool
	FixesSucceeded bool
	RebootRequired bool
	OverallPassed  bool

	// Target is the inspected host, LogPath the diagnostics log.
	Target  string
	LogPath string

	Started  time.Time
	Finished time.Time

	byID   map[ID]int
	frozen bool
}

// NewSummary creates an empty summary. An empty run passes.
func NewSummary() *Summary {
	return &Summary{
		OverallPassed: true,
		Started:       time.Now(),
		byID:          make(map[ID]int),
	}
}

// Record adds the final result of a check.
func (s *Summary) Record(res Result) error {
	if s.frozen {
		return ErrSummaryFrozen
	}
	if i, ok := s.byID[res.ID]; ok {
		// A check has one final result per run.
		s.Results[i] = res
	} else {
		s.byID[res.ID] = len(s.Results)
		s.Results = append(s.Results, res)
		s.Total++
	}
	s.recompute()
	return nil
}

func (s *Summary) recompute() {
	s.OverallPassed = true
	s.FixesAttempted, s.FixesSucceeded, s.RebootRequired = false, false, false
	for _, res := range s.Results {
		if res.Outcome == Fail {
			s.OverallPassed = false
		}
		s.FixesAttempted = s.FixesAttempted || res.Attempted
		s.FixesSucceeded = s.FixesSucceeded || res.Succeeded
		s.RebootRequired = s.RebootRequired || res.RequiresReboot
	}
}

// Freeze ends the run. Further Record calls fail.
func (s *Summary) Freeze() {
	if !s.frozen {
		s.frozen = true
		s.Finished = time.Now()
	}
}

// Frozen reports whether the run has ended.
func (s *Summary) Frozen() bool {
	return s.frozen
}

// Result returns the result recorded for id.
func (s *Summary) Result(id ID) (Result, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Result{}, false
	}
	return s.Results[i], true
}

// Count returns how many results have outcome o.
func (s *Summary) Count(o Outcome) int {
	n := 0
	for _, res := range s.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// ExitCode is 0 when the run passed and 1 otherwise.
func (s *Summary) ExitCode() int {
	if s.OverallPassed {
		return 0
	}
	return 1
}
