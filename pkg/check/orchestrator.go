// pkg/check/orchestrator.go

package check

import (
	"context"
	"fmt"
	"sort"
)

// DetailSkipped is the detail of a check excluded by the operator.
const DetailSkipped = "skipped by operator"

// Orchestrator runs every check in the fixed order
//
//	OS -> Hardware -> Filesystem -> Limits -> Network -> Software
//
// one at a time. Remediations mutate shared host state, so checks never
// run concurrently.
type Orchestrator struct {
	specs    []Spec
	runner   *Runner
	reporter Reporter
	skip     map[ID]bool
	target   string
	logPath  string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSkip marks checks to be reported as Skipped without running.
func WithSkip(ids ...ID) OrchestratorOption {
	return func(o *Orchestrator) {
		for _, id := range ids {
			o.skip[id] = true
		}
	}
}

// WithRunReporter sets the reporter for run level events.
func WithRunReporter(rep Reporter) OrchestratorOption {
	return func(o *Orchestrator) { o.reporter = rep }
}

// WithTarget records the inspected host in the summary.
func WithTarget(host string) OrchestratorOption {
	return func(o *Orchestrator) { o.target = host }
}

// WithLogPath records the log file path in the summary.
func WithLogPath(path string) OrchestratorOption {
	return func(o *Orchestrator) { o.logPath = path }
}

// NewOrchestrator sorts specs into execution order. Each check id may
// appear once.
func NewOrchestrator(runner *Runner, specs []Spec, opts ...OrchestratorOption) (*Orchestrator, error) {
	seen := make(map[ID]bool, len(specs))
	ordered := make([]Spec, len(specs))
	copy(ordered, specs)
	for _, spec := range ordered {
		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate check %s", spec.ID)
		}
		seen[spec.ID] = true
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	o := &Orchestrator{
		specs:    ordered,
		runner:   runner,
		reporter: NopReporter{},
		skip:     make(map[ID]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Specs returns the checks in execution order.
func (o *Orchestrator) Specs() []Spec {
	return append([]Spec(nil), o.specs...)
}

// Run executes all checks and returns the frozen summary.
func (o *Orchestrator) Run(ctx context.Context) *Summary {
	summary := NewSummary()
	summary.Target = o.target
	summary.LogPath = o.logPath

	o.reporter.RunStarted(o.Specs())

	for _, spec := range o.specs {
		var res Result
		if o.skip[spec.ID] {
			res = Result{ID: spec.ID, Outcome: Skipped, Detail: DetailSkipped}
			o.reporter.CheckFinished(res)
		} else {
			res = o.runner.Run(ctx, spec)
		}
		o.record(summary, res)
	}

	summary.Freeze()
	o.reporter.RunFinished(summary)
	return summary
}

// record adds res to the summary. A result that cannot be recorded is
// reported so it does not vanish silently.
func (o *Orchestrator) record(summary *Summary, res Result) {
	if err := summary.Record(res); err != nil {
		o.reporter.ManualIntervention(res.ID, fmt.Sprintf("result of %s not recorded: %v", res.ID, err))
	}
}
