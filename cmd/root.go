// cmd/root.go

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/checks/preinstall"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/logging"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/report"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

// Version is the tool version written to the banner and the log header.
var Version = "1.0.0"

// errChecksFailed makes the process exit 1 without printing an error; the
// summary already explains what failed.
var errChecksFailed = errors.New("one or more checks failed")

// errConfig marks errors that stop the run before any check executes.
var errConfig = errors.New("configuration error")

type options struct {
	configPath     string
	node           string
	logPath        string
	verbose        bool
	autoFix        bool
	nonInteractive bool
	skipChecks     []string
	timeout        int
	fixTimeout     int
	reportPath     string
	lockFile       string

	target      string
	sshUser     string
	sshPort     string
	sshKey      string
	sshPassword string
}

// ExecutorFactory opens the executor for the inspected host. The returned
// function releases it.
type ExecutorFactory func(o *options) (utils.CommandExecutor, func() error, error)

// App holds what a command invocation talks to. Tests replace the
// executor factory and the streams.
type App struct {
	Stdout      io.Writer
	Stderr      io.Writer
	Stdin       io.Reader
	NewExecutor ExecutorFactory

	helpShown bool
}

// NewApp creates an App wired to the process streams.
func NewApp() *App {
	return &App{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Stdin:       os.Stdin,
		NewExecutor: defaultExecutor,
	}
}

// Execute executes the root command and returns the process exit code
func Execute() int {
	return NewApp().Execute(os.Args[1:])
}

// Execute runs the command line args and returns the exit code.
func (a *App) Execute(args []string) int {
	root := a.NewRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	switch {
	case a.helpShown:
		// Usage was requested, nothing ran.
		return 1
	case err == nil:
		return 0
	case errors.Is(err, errChecksFailed):
		return 1
	}
	fmt.Fprintf(a.Stderr, "Error: %v\n", err)
	return 1
}

// NewRootCmd builds the command tree.
func (a *App) NewRootCmd() *cobra.Command {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:   "preinstall-check",
		Short: "Pre-installation readiness check for platform nodes",
		Long: `A pre-installation readiness tool that verifies a host meets the
requirements of its node type before the platform is installed. Failed
checks can optionally be fixed automatically and re-checked.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChecks(cmd.Context(), o)
		},
	}
	rootCmd.SetOut(a.Stdout)
	rootCmd.SetErr(a.Stderr)
	rootCmd.SetIn(a.Stdin)

	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		a.helpShown = true
		defaultHelp(cmd, args)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&o.logPath, "log", "diagnostics.log", "Append-only diagnostics log file")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "Enable verbose output")
	pf.IntVarP(&o.timeout, "timeout", "t", 30, "Timeout in seconds for individual check commands")
	pf.IntVar(&o.fixTimeout, "fix-timeout", 1800, "Timeout in seconds for individual fix commands such as package installs (0 disables)")
	pf.StringVar(&o.lockFile, "lock-file", filepath.Join(os.TempDir(), "preinstall-check.lock"), "Lock file preventing concurrent runs")
	pf.StringVar(&o.target, "target", "", "Check a remote host over SSH instead of the local machine")
	pf.StringVar(&o.sshUser, "ssh-user", "root", "SSH user for --target")
	pf.StringVar(&o.sshPort, "ssh-port", "22", "SSH port for --target")
	pf.StringVar(&o.sshKey, "ssh-key", "", "SSH private key file for --target")
	pf.StringVar(&o.sshPassword, "ssh-password", "", "SSH password for --target (default $PREINSTALL_SSH_PASSWORD)")

	f := rootCmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "config.ini", "Requirement definitions file")
	f.StringVarP(&o.node, "node", "n", "", "Node type profile ("+nodeTypeNames()+")")
	f.BoolVar(&o.autoFix, "auto-fix", false, "Attempt an automatic fix of failed checks and re-check once")
	f.BoolVar(&o.nonInteractive, "non-interactive", false, "Do not ask before a fix changes the host")
	f.StringSliceVarP(&o.skipChecks, "skip", "s", nil, "Checks to skip ("+checkNames()+")")
	f.StringVarP(&o.reportPath, "report", "o", "", "Write an AsciiDoc readiness report to this file")

	rootCmd.AddCommand(a.newRemediateCmd(o))
	return rootCmd
}

func nodeTypeNames() string {
	names := make([]string, 0, len(config.NodeTypes))
	for _, n := range config.NodeTypes {
		names = append(names, n.String())
	}
	return strings.Join(names, ", ")
}

func checkNames() string {
	names := make([]string, 0, len(check.AllIDs()))
	for _, id := range check.AllIDs() {
		names = append(names, id.String())
	}
	return strings.Join(names, ", ")
}

// defaultExecutor runs on the local machine, or over SSH with --target.
func defaultExecutor(o *options) (utils.CommandExecutor, func() error, error) {
	timeout := time.Duration(o.timeout) * time.Second
	if o.target == "" {
		return utils.NewLocalExecutor(timeout), func() error { return nil }, nil
	}

	password := o.sshPassword
	if password == "" {
		password = os.Getenv("PREINSTALL_SSH_PASSWORD")
	}
	remote, err := utils.NewRemoteExecutor(&utils.SSHConfig{
		Host:     o.target,
		Port:     o.sshPort,
		User:     o.sshUser,
		Password: password,
		KeyFile:  o.sshKey,
		Timeout:  timeout,
	}, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", o.target, err)
	}
	return remote, remote.Close, nil
}

// session is the state shared by the root and remediate commands: the log
// file and the executor of the inspected host.
type session struct {
	log       *logrus.Logger
	exec      utils.CommandExecutor
	closeLog  io.Closer
	closeExec func() error
	lock      *utils.RunLock
}

func (s *session) Close() {
	if s.closeExec != nil {
		_ = s.closeExec()
	}
	if s.lock != nil {
		_ = s.lock.Release()
	}
	if s.closeLog != nil {
		_ = s.closeLog.Close()
	}
}

// openLog opens the log and writes the run header. Nothing has been
// validated yet.
func (a *App) openLog(o *options, autoFix bool) (*session, error) {
	log, closer, err := logging.Open(o.logPath, o.verbose)
	if err != nil {
		return nil, err
	}

	host := o.target
	if host == "" {
		host, _ = os.Hostname()
	}
	node := strings.ToUpper(strings.TrimSpace(o.node))
	if node == "" {
		node = config.NodeDefault.String()
	}
	h := logging.Header{
		Version: Version,
		Started: time.Now(),
		Host:    host,
		Config:  o.configPath,
		Node:    node,
		AutoFix: autoFix,
	}
	if u, err := user.Current(); err == nil {
		h.User = u.Username
	}
	logging.WriteHeader(log, h)
	return &session{log: log, closeLog: closer}, nil
}

// connect takes the run lock and opens the executor.
func (a *App) connect(s *session, o *options) error {
	lock := utils.NewRunLock(o.lockFile)
	if err := lock.Acquire(); err != nil {
		return err
	}
	s.lock = lock

	exec, closeExec, err := a.NewExecutor(o)
	if err != nil {
		return err
	}
	s.exec, s.closeExec = exec, closeExec
	return nil
}

// fatal logs err and returns it tagged as a configuration error.
func fatal(s *session, err error) error {
	s.log.Errorf("Configuration error: %v", err)
	return fmt.Errorf("%w: %w", errConfig, err)
}

func (a *App) runChecks(ctx context.Context, o *options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := a.openLog(o, o.autoFix)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	defer s.Close()

	node, err := config.ParseNodeType(o.node)
	if err != nil {
		return fatal(s, err)
	}
	req, err := config.Load(o.configPath, node)
	if err != nil {
		return fatal(s, err)
	}
	skip, err := parseSkip(o.skipChecks)
	if err != nil {
		return fatal(s, err)
	}
	if err := a.connect(s, o); err != nil {
		return fatal(s, err)
	}

	if node != config.NodeDefault && !req.ProfileFound {
		s.log.Warnf("No [%s] section in %s, using DEFAULT requirements", node, o.configPath)
		fmt.Fprintf(a.Stdout, "Warning: no [%s] section in %s, using DEFAULT requirements\n", node, o.configPath)
	}
	if o.autoFix && !utils.IsPrivileged(ctx, s.exec) {
		s.log.Warn("Not running as root: automatic fixes that change the host will fail")
		fmt.Fprintln(a.Stdout, "Warning: not running as root, automatic fixes that change the host will fail")
	}
	if o.verbose {
		a.printSettings(req)
	}
	for _, st := range req.Settings() {
		s.log.WithField("section", st.Section).Debugf("%s = %s", st.Key, st.Value)
	}

	dispatcher := remediation.NewDispatcher()
	remediation.NewHost(remediationExecutor(s.exec, o), s.log).Register(dispatcher)

	rep := report.Multi{
		report.NewConsole(a.Stdout, report.WithVerbose(o.verbose)),
		report.NewLog(s.log),
	}
	runnerOpts := []check.RunnerOption{check.WithAutoFix(o.autoFix), check.WithReporter(rep)}
	if o.autoFix && !o.nonInteractive {
		runnerOpts = append(runnerOpts, check.WithConfirm(a.prompt()))
	}
	runner := check.NewRunner(dispatcher, runnerOpts...)

	orch, err := check.NewOrchestrator(runner,
		preinstall.Specs(req, preinstall.Probes(s.exec)),
		check.WithSkip(skip...),
		check.WithRunReporter(rep),
		check.WithTarget(s.exec.GetHostname()),
		check.WithLogPath(logPathFor(o.logPath)),
	)
	if err != nil {
		return fatal(s, err)
	}
	summary := orch.Run(ctx)

	if o.reportPath != "" || compressRequested() {
		if err := a.writeReport(s, o, node, summary); err != nil {
			s.log.WithError(err).Error("Failed to write report")
			fmt.Fprintf(a.Stderr, "Warning: %v\n", err)
		}
	}

	if summary.ExitCode() != 0 {
		return errChecksFailed
	}
	return nil
}

// remediationExecutor bounds fix commands by --fix-timeout, not --timeout.
func remediationExecutor(exec utils.CommandExecutor, o *options) utils.CommandExecutor {
	return utils.WithCommandTimeout(exec, time.Duration(o.fixTimeout)*time.Second)
}

func parseSkip(names []string) ([]check.ID, error) {
	var ids []check.ID
	for _, name := range names {
		id, err := check.ParseID(name)
		if err != nil {
			return nil, fmt.Errorf("invalid --skip value: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func logPathFor(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (a *App) printSettings(req *config.Requirements) {
	fmt.Fprintf(a.Stdout, "Configuration %s (node type %s):\n", req.Path, req.Node)
	settings := req.Settings()
	if len(settings) == 0 {
		fmt.Fprintln(a.Stdout, "  (no requirements configured)")
	}
	for _, st := range settings {
		fmt.Fprintf(a.Stdout, "  %-18s = %s  [%s]\n", st.Key, st.Value, st.Section)
	}
	fmt.Fprintln(a.Stdout)
}

// prompt asks before a remediation changes the host. Anything but yes,
// including end of input, declines.
func (a *App) prompt() check.ConfirmFunc {
	in := bufio.NewReader(a.Stdin)
	return func(id check.ID, plan []remediation.Request) bool {
		steps := make([]string, len(plan))
		for i, req := range plan {
			steps[i] = req.String()
		}
		fmt.Fprintf(a.Stdout, "%s failed. Apply automatic fix (%s)? [y/N]: ", id.Title(), strings.Join(steps, "; "))
		answer, _ := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func (a *App) writeReport(s *session, o *options, node config.NodeType, summary *check.Summary) error {
	reportPath := o.reportPath
	if reportPath == "" {
		reportPath = generateDefaultOutputFilename(summary.Target)
	}

	r := report.NewAsciiDocReport(reportPath)
	r.Initialize(summary.Target, node.String(), fmt.Sprintf("Pre-installation Readiness Report: %s", summary.Target))
	r.AddSummary(summary)
	path, err := r.Generate()
	if err != nil {
		return err
	}
	s.log.Infof("Report written to %s", path)
	fmt.Fprintf(a.Stdout, "Report saved to: %s\n", path)

	jsonPath, err := report.SaveResults(path, summary, node.String())
	if err != nil {
		return err
	}
	s.log.Infof("Results written to %s", jsonPath)

	bundle, err := compressReportIfNeeded(path, jsonPath, o.logPath)
	if err != nil {
		return err
	}
	if bundle != "" {
		s.log.Infof("Report bundle written to %s", bundle)
		fmt.Fprintf(a.Stdout, "Report bundle saved to: %s\n", bundle)
	}
	return nil
}

// generateDefaultOutputFilename generates a default report filename based on hostname
func generateDefaultOutputFilename(hostname string) string {
	if hostname == "" {
		hostname = "unknown-host"
	}
	timestamp := time.Now().Format("20060102-150405")

	return filepath.Join("reports", fmt.Sprintf("%s-preinstall-check-%s.adoc",
		sanitizeFilename(hostname), timestamp))
}

// sanitizeFilename removes or replaces characters that are problematic in filenames
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(filename)
}

func compressRequested() bool {
	compress := os.Getenv("COMPRESS_REPORT")
	return compress == "true" || compress == "1"
}

// compressReportIfNeeded bundles the report, its results and the log into
// a password-protected zip when COMPRESS_REPORT is set. REPORT_PASSWORD is
// required; without it the bundle is not written.
func compressReportIfNeeded(reportPath string, extra ...string) (string, error) {
	if !compressRequested() {
		return "", nil
	}

	password := os.Getenv("REPORT_PASSWORD")
	if password == "" {
		return "", fmt.Errorf("COMPRESS_REPORT is set but REPORT_PASSWORD is empty, report not compressed")
	}

	files := append([]string{reportPath}, extra...)
	compressedPath, err := utils.BundleWithPassword(reportPath+".zip", password, files...)
	if err != nil {
		return "", fmt.Errorf("failed to compress report: %w", err)
	}

	if os.Getenv("REMOVE_UNCOMPRESSED") == "true" {
		os.Remove(reportPath)
	}
	return compressedPath, nil
}
