// pkg/report/multi.go

package report

import (
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
)

// Multi fans every event out to each reporter in order.
type Multi []check.Reporter

// RunStarted implements check.Reporter.
func (m Multi) RunStarted(specs []check.Spec) {
	for _, r := range m {
		r.RunStarted(specs)
	}
}

// CheckStarted implements check.Reporter.
func (m Multi) CheckStarted(spec check.Spec) {
	for _, r := range m {
		r.CheckStarted(spec)
	}
}

// RemediationStarted implements check.Reporter.
func (m Multi) RemediationStarted(failed check.Result, plan []remediation.Request) {
	for _, r := range m {
		r.RemediationStarted(failed, plan)
	}
}

// RemediationFinished implements check.Reporter.
func (m Multi) RemediationFinished(id check.ID, out remediation.Outcome) {
	for _, r := range m {
		r.RemediationFinished(id, out)
	}
}

// ManualIntervention implements check.Reporter.
func (m Multi) ManualIntervention(id check.ID, reason string) {
	for _, r := range m {
		r.ManualIntervention(id, reason)
	}
}

// CheckFinished implements check.Reporter.
func (m Multi) CheckFinished(res check.Result) {
	for _, r := range m {
		r.CheckFinished(res)
	}
}

// RunFinished implements check.Reporter.
func (m Multi) RunFinished(s *check.Summary) {
	for _, r := range m {
		r.RunFinished(s)
	}
}
