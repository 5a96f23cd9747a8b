// pkg/check/types.go

// Package check is the orchestration core of preinstall-check: the model of
// a requirement check, the runner that executes one check with the
// fix-and-recheck protocol, and the orchestrator that runs every check in a
// fixed order and aggregates the verdict.
package check

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
)

// ID identifies one check. The numeric order is the execution order.
type ID int

const (
	OS ID = iota
	Hardware
	Filesystem
	Limits
	Network
	Software
)

var idNames = []string{"os", "hardware", "filesystem", "limits", "network", "software"}

// AllIDs returns every check id in execution order.
func AllIDs() []ID {
	return []ID{OS, Hardware, Filesystem, Limits, Network, Software}
}

// String returns the short name of the check.
func (id ID) String() string {
	if id >= 0 && int(id) < len(idNames) {
		return idNames[id]
	}
	return fmt.Sprintf("check(%d)", int(id))
}

// Title returns the display name of the check.
func (id ID) Title() string {
	switch id {
	case OS:
		return "Operating System"
	case Hardware:
		return "Hardware"
	case Filesystem:
		return "Filesystem"
	case Limits:
		return "System Limits"
	case Network:
		return "Network"
	case Software:
		return "Software"
	}
	return id.String()
}

// ParseID maps a check name to its ID.
func ParseID(s string) (ID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range idNames {
		if name == s {
			return ID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown check %q (valid: %s)", s, strings.Join(idNames, ", "))
}

// Outcome is the verdict of a check or a single finding.
type Outcome int

const (
	Pass Outcome = iota
	Warn
	Fail
	Skipped
)

// String returns the upper-case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	case Fail:
		return "FAIL"
	case Skipped:
		return "SKIPPED"
	}
	return "UNKNOWN"
}

// severity orders outcomes for aggregation. Skipped never dominates.
func (o Outcome) severity() int {
	switch o {
	case Fail:
		return 3
	case Warn:
		return 2
	case Pass:
		return 1
	}
	return 0
}

// Worse returns the more severe of a and b.
func Worse(a, b Outcome) Outcome {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// Finding is one evaluated requirement inside a check.
type Finding struct {
	Requirement string
	Outcome     Outcome
	Measured    string
	Required    string
	Message     string
	Suggestion  string
}

// Report is what a probe returns. Fixes is the structured payload handed to
// the remediation dispatcher when the check fails.
type Report struct {
	Outcome  Outcome
	Detail   string
	Findings []Finding
	Fixes    []remediation.Request
}

// Add records a finding and folds its outcome into the report.
func (r *Report) Add(f Finding) {
	r.Findings = append(r.Findings, f)
	r.Outcome = Worse(r.Outcome, f.Outcome)
}

// AddFix records a remediation request for the dispatcher.
func (r *Report) AddFix(req remediation.Request) {
	r.Fixes = append(r.Fixes, req)
}

// Summary renders the detail line for the report: the messages of the
// findings that match the overall outcome.
func (r *Report) Summary() string {
	if r.Detail != "" {
		return r.Detail
	}
	var msgs []string
	for _, f := range r.Findings {
		if f.Outcome == r.Outcome {
			msgs = append(msgs, f.Message)
		}
	}
	if len(msgs) == 0 {
		return "no requirements configured"
	}
	return strings.Join(msgs, "; ")
}

// Suggestions returns the suggestions of non-passing findings.
func (r *Report) Suggestions() []string {
	var out []string
	for _, f := range r.Findings {
		if f.Outcome != Pass && f.Suggestion != "" {
			out = append(out, f.Suggestion)
		}
	}
	return out
}

// Param is one named, typed probe parameter.
type Param struct {
	Name  string
	Value any
}

// Params is the ordered parameter list of a check.
type Params []Param

func (p Params) lookup(name string) (any, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return nil, false
}

// String returns a string parameter.
func (p Params) String(name string) (string, bool) {
	v, ok := p.lookup(name)
	s, isString := v.(string)
	return s, ok && isString && s != ""
}

// Int returns an int parameter.
func (p Params) Int(name string) (int, bool) {
	v, ok := p.lookup(name)
	i, isInt := v.(int)
	return i, ok && isInt
}

// Float returns a float64 parameter.
func (p Params) Float(name string) (float64, bool) {
	v, ok := p.lookup(name)
	f, isFloat := v.(float64)
	return f, ok && isFloat
}

// Bool returns a bool parameter.
func (p Params) Bool(name string) (bool, bool) {
	v, ok := p.lookup(name)
	b, isBool := v.(bool)
	return b, ok && isBool
}

// Strings returns a list parameter.
func (p Params) Strings(name string) []string {
	v, _ := p.lookup(name)
	s, _ := v.([]string)
	return s
}

// Probe inspects the host for one check. Probes must not touch
// orchestration state. A probe that cannot determine an answer reports
// Warn, never Pass.
type Probe interface {
	Probe(ctx context.Context, params Params) Report
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context, params Params) Report

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context, params Params) Report {
	return f(ctx, params)
}

// Spec describes one check. It is built once when the orchestrator is set
// up and never modified afterwards.
type Spec struct {
	ID          ID
	Description string
	// Probe is nil when the check implementation is not available.
	Probe       Probe
	Remediation remediation.Category
	Params      Params
}

// Result is the final outcome of one check.
type Result struct {
	ID             ID
	Outcome        Outcome
	Detail         string
	Findings       []Finding
	Suggestions    []string
	Attempted      bool
	Succeeded      bool
	RequiresReboot bool
	// Remediated lists the routines that ran, in order.
	Remediated []remediation.Category
	// ManualIntervention explains why a failure was not fixed automatically.
	ManualIntervention string
	Duration           time.Duration
}
