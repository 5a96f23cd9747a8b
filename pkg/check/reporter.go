// pkg/check/reporter.go

package check

import "gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"

// Reporter receives the events of a run in order. Implementations own
// presentation and logging; they must not modify the values passed in.
type Reporter interface {
	// RunStarted is called once with the checks about to run.
	RunStarted(specs []Spec)
	// CheckStarted is called before a check's probe runs.
	CheckStarted(spec Spec)
	// RemediationStarted is called with the failed result and the planned fixes.
	RemediationStarted(failed Result, plan []remediation.Request)
	// RemediationFinished is called once the fix routines returned.
	RemediationFinished(id ID, out remediation.Outcome)
	// ManualIntervention is called when a failure cannot be fixed automatically.
	ManualIntervention(id ID, reason string)
	// CheckFinished is called with the final result of a check.
	CheckFinished(res Result)
	// RunFinished is called with the frozen summary.
	RunFinished(s *Summary)
}

// NopReporter ignores every event.
type NopReporter struct{}

func (NopReporter) RunStarted([]Spec) {}
func (NopReporter) CheckStarted(Spec) {}
func (NopReporter) RemediationStarted(Result, []remediation.Request) {}
func (NopReporter) RemediationFinished(ID, remediation.Outcome) {}
func (NopReporter) ManualIntervention(ID, string) {}
func (NopReporter) CheckFinished(Result) {}
func (NopReporter) RunFinished(*Summary) {}
