// pkg/check/runner.go

package check

import (
	"context"
	"fmt"
	"time"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
)

// DetailModuleNotFound is the detail of a check whose probe is missing.
const DetailModuleNotFound = "module not found"

// Dispatcher plans and runs remediations. *remediation.Dispatcher
// implements it.
type Dispatcher interface {
	Plan(c remediation.Category, fixes []remediation.Request) ([]remediation.Request, error)
	Dispatch(ctx context.Context, c remediation.Category, fixes []remediation.Request) remediation.Outcome
}

// ConfirmFunc asks the operator whether a planned remediation may change
// the host. Returning false skips the remediation.
type ConfirmFunc func(id ID, plan []remediation.Request) bool

// Runner executes one check:
//
//	NotRun -> Running -> {Passed, Failed, Warned}
//	Failed -> Remediating -> Re-running -> {Passed, Failed}
//
// The remediation path is taken at most once per check, only when auto-fix
// is enabled and the check has a remediation category.
type Runner struct {
	dispatcher Dispatcher
	autoFix    bool
	confirm    ConfirmFunc
	reporter   Reporter
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAutoFix enables the remediation protocol.
func WithAutoFix(enabled bool) RunnerOption {
	return func(r *Runner) { r.autoFix = enabled }
}

// WithConfirm sets the prompt asked before each remediation. Without it
// remediations run unprompted.
func WithConfirm(fn ConfirmFunc) RunnerOption {
	return func(r *Runner) { r.confirm = fn }
}

// WithReporter sets the event sink.
func WithReporter(rep Reporter) RunnerOption {
	return func(r *Runner) { r.reporter = rep }
}

// NewRunner creates a runner. dispatcher may be nil when auto-fix is off.
func NewRunner(dispatcher Dispatcher, opts ...RunnerOption) *Runner {
	r := &Runner{dispatcher: dispatcher, reporter: NopReporter{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes spec and returns its final result. Failures never escape as
// errors or panics.
func (r *Runner) Run(ctx context.Context, spec Spec) Result {
	start := time.Now()
	r.reporter.CheckStarted(spec)

	var res Result
	if spec.Probe == nil {
		// Nothing was diagnosed, so there is nothing to remediate.
		res = Result{ID: spec.ID, Outcome: Fail, Detail: DetailModuleNotFound}
	} else {
		rep := r.probe(ctx, spec)
		res = resultFromReport(spec.ID, rep)
		if res.Outcome == Fail && spec.Remediation != remediation.None {
			res = r.remediate(ctx, spec, rep, res)
		}
	}

	res.Duration = time.Since(start)
	r.reporter.CheckFinished(res)
	return res
}

func (r *Runner) remediate(ctx context.Context, spec Spec, rep Report, res Result) Result {
	if !r.autoFix {
		if len(rep.Fixes) > 0 {
			res.Suggestions = append(res.Suggestions, "Re-run with --auto-fix to attempt an automatic fix.")
		}
		return res
	}
	if r.dispatcher == nil {
		return r.manual(res, "no remediation dispatcher configured")
	}

	plan, err := r.dispatcher.Plan(spec.Remediation, rep.Fixes)
	if err != nil {
		return r.manual(res, err.Error())
	}

	if r.confirm != nil && !r.confirm(spec.ID, plan) {
		return r.manual(res, "remediation declined by operator")
	}

	r.reporter.RemediationStarted(res, plan)
	out := r.dispatcher.Dispatch(ctx, spec.Remediation, rep.Fixes)
	r.reporter.RemediationFinished(spec.ID, out)

	if !out.Attempted {
		reason := "no remediation was run"
		if out.Err != nil {
			reason = out.Err.Error()
		}
		return r.manual(res, reason)
	}

	res.Attempted = true
	res.Remediated = out.Invoked
	res.RequiresReboot = out.RequiresReboot

	if !out.Succeeded {
		// The original failure is kept.
		return r.manual(res, fmt.Sprintf("remediation failed: %v", out.Err))
	}

	// Exactly one re-check. A second failure is terminal.
	final := resultFromReport(spec.ID, r.probe(ctx, spec))
	final.Attempted = true
	final.Remediated = out.Invoked
	final.RequiresReboot = out.RequiresReboot
	final.Succeeded = final.Outcome == Pass
	if final.Outcome == Fail {
		return r.manual(final, "check still failing after remediation")
	}
	return final
}

func (r *Runner) manual(res Result, reason string) Result {
	res.ManualIntervention = reason
	r.reporter.ManualIntervention(res.ID, reason)
	return res
}

// probe runs the spec's probe, turning a panic into a Fail report.
func (r *Runner) probe(ctx context.Context, spec Spec) (rep Report) {
	defer func() {
		if p := recover(); p != nil {
			rep = Report{Outcome: Fail, Detail: fmt.Sprintf("check crashed: %v", p)}
		}
	}()
	return spec.Probe.Probe(ctx, spec.Params)
}

func resultFromReport(id ID, rep Report) Result {
	return Result{
		ID:          id,
		Outcome:     rep.Outcome,
		Detail:      rep.Summary(),
		Findings:    rep.Findings,
		Suggestions: rep.Suggestions(),
	}
}
