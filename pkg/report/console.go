// pkg/report/console.go

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
)

// Console prints check progress and the final summary for the operator.
type Console struct {
	out      io.Writer
	styles   Styles
	progress bool
	verbose  bool
	bar      *progressbar.ProgressBar
	started  time.Time
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithStyles overrides the detected styles.
func WithStyles(s Styles) ConsoleOption {
	return func(c *Console) { c.styles = s }
}

// WithProgress enables or disables the progress bar.
func WithProgress(enabled bool) ConsoleOption {
	return func(c *Console) { c.progress = enabled }
}

// WithVerbose prints every finding, not only the failing ones.
func WithVerbose(enabled bool) ConsoleOption {
	return func(c *Console) { c.verbose = enabled }
}

// NewConsole creates a console reporter. Colours and the progress bar are
// only used when out is a terminal and NO_COLOR is unset.
func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	tty := IsTTY(out)
	c := &Console{out: out, styles: PlainStyles(), progress: tty}
	if tty && !NoColor() {
		c.styles = DefaultStyles()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunStarted implements check.Reporter.
func (c *Console) RunStarted(specs []check.Spec) {
	c.started = time.Now()
	fmt.Fprintf(c.out, "Starting pre-installation checks (%d checks)...\n", len(specs))
	if !c.progress {
		return
	}
	c.bar = progressbar.NewOptions(len(specs),
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionEnableColorCodes(!NoColor()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription("[cyan]Running pre-installation checks[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// CheckStarted implements check.Reporter.
func (c *Console) CheckStarted(spec check.Spec) {
	if c.bar != nil {
		c.bar.Describe(fmt.Sprintf("[cyan]Checking[reset] %s", spec.ID.Title()))
		return
	}
	if c.verbose {
		fmt.Fprintf(c.out, "Checking %s...\n", spec.ID.Title())
	}
}

// RemediationStarted implements check.Reporter.
func (c *Console) RemediationStarted(failed check.Result, plan []remediation.Request) {
	c.clearBar()
	steps := make([]string, len(plan))
	for i, req := range plan {
		steps[i] = req.String()
	}
	fmt.Fprintf(c.out, "%s %s: %s\n", c.styles.Fail.Render("[FAIL]"), failed.ID.Title(), failed.Detail)
	fmt.Fprintf(c.out, "  -> Attempting automatic fix: %s\n", strings.Join(steps, "; "))
}

// RemediationFinished implements check.Reporter.
func (c *Console) RemediationFinished(_ check.ID, out remediation.Outcome) {
	c.clearBar()
	switch {
	case out.Succeeded:
		fmt.Fprintln(c.out, "  -> Fix applied, re-running check")
	case out.Err != nil:
		fmt.Fprintf(c.out, "  -> Fix failed: %v\n", out.Err)
	default:
		fmt.Fprintln(c.out, "  -> No fix was applied")
	}
}

// ManualIntervention implements check.Reporter.
func (c *Console) ManualIntervention(_ check.ID, reason string) {
	c.clearBar()
	fmt.Fprintf(c.out, "  %s %s\n", c.styles.Notice.Render("! Manual intervention required:"), reason)
}

// CheckFinished implements check.Reporter.
func (c *Console) CheckFinished(res check.Result) {
	c.clearBar()
	fmt.Fprintf(c.out, "%s %s: %s\n", c.styles.Badge(res.Outcome), res.ID.Title(), res.Detail)
	for _, f := range res.Findings {
		if f.Outcome == check.Pass && !c.verbose {
			continue
		}
		if len(res.Findings) > 1 || c.verbose {
			fmt.Fprintf(c.out, "    %s %s\n", c.styles.Badge(f.Outcome), f.Message)
		}
	}
	for _, s := range res.Suggestions {
		fmt.Fprintf(c.out, "    %s %s\n", c.styles.Dim.Render("Suggestion:"), s)
	}
	if c.bar != nil {
		_ = c.bar.Add(1)
	}
}

// RunFinished implements check.Reporter.
func (c *Console) RunFinished(s *check.Summary) {
	if c.bar != nil {
		_ = c.bar.Finish()
		c.clearBar()
		c.bar = nil
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.styles.Header.Render("Pre-installation Check Summary"))
	fmt.Fprintln(c.out, strings.Repeat("-", 40))
	if s.Target != "" {
		fmt.Fprintf(c.out, "Host:            %s\n", s.Target)
	}
	fmt.Fprintf(c.out, "Checks run:      %d\n", s.Total)
	fmt.Fprintf(c.out, "Passed:          %d\n", s.Count(check.Pass))
	fmt.Fprintf(c.out, "Warnings:        %d\n", s.Count(check.Warn))
	fmt.Fprintf(c.out, "Failed:          %d\n", s.Count(check.Fail))
	if skipped := s.Count(check.Skipped); skipped > 0 {
		fmt.Fprintf(c.out, "Skipped:         %d\n", skipped)
	}
	if s.FixesAttempted {
		fixed := "no"
		if s.FixesSucceeded {
			fixed = "yes"
		}
		fmt.Fprintf(c.out, "Fixes attempted: yes (succeeded: %s)\n", fixed)
	}
	if !s.Started.IsZero() && !s.Finished.IsZero() {
		fmt.Fprintf(c.out, "Duration:        %s\n", s.Finished.Sub(s.Started).Round(time.Millisecond))
	}

	if s.RebootRequired {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, c.styles.Notice.Render("A reboot (or a fresh login session) is required for the applied fixes to take full effect."))
	}

	fmt.Fprintln(c.out)
	if s.OverallPassed {
		fmt.Fprintln(c.out, c.styles.Pass.Render("RESULT: PASSED - the host is ready for installation"))
	} else {
		fmt.Fprintln(c.out, c.styles.Fail.Render("RESULT: FAILED - resolve the failed checks before installing"))
	}
	if s.LogPath != "" {
		fmt.Fprintf(c.out, "Full details: %s\n", s.LogPath)
	}
}

func (c *Console) clearBar() {
	if c.bar != nil {
		_ = c.bar.Clear()
	}
}
