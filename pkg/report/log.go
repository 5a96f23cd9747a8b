// pkg/report/log.go

package report

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
)

// Log writes one diagnostics log entry per event.
type Log struct {
	log logrus.FieldLogger
}

// NewLog creates a log reporter.
func NewLog(log logrus.FieldLogger) *Log {
	return &Log{log: log}
}

// RunStarted implements check.Reporter.
func (l *Log) RunStarted(specs []check.Spec) {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.ID.String()
	}
	l.log.Infof("Running %d checks: %s", len(specs), strings.Join(names, ", "))
}

// CheckStarted implements check.Reporter.
func (l *Log) CheckStarted(spec check.Spec) {
	l.log.WithField("check", spec.ID.String()).Infof("Check %s started", spec.ID.Title())
}

// RemediationStarted implements check.Reporter.
func (l *Log) RemediationStarted(failed check.Result, plan []remediation.Request) {
	steps := make([]string, len(plan))
	for i, req := range plan {
		steps[i] = req.String()
	}
	l.log.WithFields(logrus.Fields{
		"check": failed.ID.String(),
		"plan":  strings.Join(steps, "; "),
	}).Infof("Remediation started for %s", failed.ID.Title())
}

// RemediationFinished implements check.Reporter.
func (l *Log) RemediationFinished(id check.ID, out remediation.Outcome) {
	invoked := make([]string, len(out.Invoked))
	for i, c := range out.Invoked {
		invoked[i] = c.String()
	}
	entry := l.log.WithFields(logrus.Fields{
		"check":    id.String(),
		"category": out.Category.String(),
		"invoked":  strings.Join(invoked, ","),
		"reboot":   out.RequiresReboot,
	})
	if out.Succeeded {
		entry.Info("Remediation succeeded")
		return
	}
	entry.WithError(out.Err).Error("Remediation failed")
}

// ManualIntervention implements check.Reporter.
func (l *Log) ManualIntervention(id check.ID, reason string) {
	l.log.WithField("check", id.String()).Warnf("Manual intervention required: %s", reason)
}

// CheckFinished implements check.Reporter.
func (l *Log) CheckFinished(res check.Result) {
	entry := l.log.WithFields(logrus.Fields{
		"check":    res.ID.String(),
		"duration": res.Duration.Round(time.Millisecond).String(),
	})
	if len(res.Suggestions) > 0 {
		entry = entry.WithField("suggestion", strings.Join(res.Suggestions, " | "))
	}
	if res.Attempted {
		entry = entry.WithFields(logrus.Fields{"fix_attempted": true, "fix_succeeded": res.Succeeded})
	}

	switch res.Outcome {
	case check.Fail:
		entry.Errorf("Check %s FAIL: %s", res.ID.Title(), res.Detail)
	case check.Warn:
		entry.Warnf("Check %s WARN: %s", res.ID.Title(), res.Detail)
	default:
		entry.Infof("Check %s %s: %s", res.ID.Title(), res.Outcome, res.Detail)
	}

	for _, f := range res.Findings {
		l.log.WithFields(logrus.Fields{
			"check":    res.ID.String(),
			"measured": f.Measured,
			"required": f.Required,
		}).Debugf("%s %s: %s", f.Outcome, f.Requirement, f.Message)
	}
}

// RunFinished implements check.Reporter.
func (l *Log) RunFinished(s *check.Summary) {
	verdict := "FAILED"
	if s.OverallPassed {
		verdict = "PASSED"
	}
	entry := l.log.WithFields(logrus.Fields{
		"total":           s.Total,
		"passed":          s.Count(check.Pass),
		"warnings":        s.Count(check.Warn),
		"failed":          s.Count(check.Fail),
		"skipped":         s.Count(check.Skipped),
		"fixes_attempted": s.FixesAttempted,
		"fixes_succeeded": s.FixesSucceeded,
		"reboot_required": s.RebootRequired,
	})
	entry.Infof("Run finished: %s", verdict)
}
