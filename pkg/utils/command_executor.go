// pkg/utils/command_executor.go

package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrTimeout is returned when a command exceeds its time bound.
var ErrTimeout = errors.New("command timed out")

// CommandExecutor runs commands and moves files on the inspected host.
// Probes and remediations only touch the host through it, so the same
// checks run locally, over SSH, or against a fake in tests.
type CommandExecutor interface {
	// RunCommand runs name with args and returns combined stdout/stderr.
	// A non-zero exit status is returned as an error together with the
	// output produced.
	RunCommand(ctx context.Context, name string, args ...string) (string, error)

	// ReadFile returns the content of path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the content of path, creating parent directories.
	WriteFile(ctx context.Context, path string, data []byte) error

	// LookPath reports whether the named tool is installed.
	LookPath(ctx context.Context, name string) bool

	GetHostname() string
	IsLocal() bool
}

// LocalExecutor executes commands on the machine the tool runs on
type LocalExecutor struct {
	hostname string
	timeout  time.Duration
}

// NewLocalExecutor creates a new local executor. Every command gets at most
// timeout to complete; zero disables the bound.
func NewLocalExecutor(timeout time.Duration) *LocalExecutor {
	e := &LocalExecutor{timeout: timeout}
	hostname, err := e.RunCommand(context.Background(), "hostname", "-f")
	if err != nil || strings.TrimSpace(hostname) == "" {
		hostname, err = os.Hostname()
		if err != nil {
			hostname = "localhost"
		}
	}
	e.hostname = strings.TrimSpace(hostname)
	return e
}

// RunCommand executes a command locally
func (e *LocalExecutor) RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	// Probes parse command output, keep it in the C locale.
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return string(output), fmt.Errorf("%w after %s: %s", ErrTimeout, e.timeout, commandLine(name, args))
		}
		return string(output), fmt.Errorf("command '%s' failed: %w", commandLine(name, args), err)
	}
	return string(output), nil
}

// Timeout returns the per command bound.
func (e *LocalExecutor) Timeout() time.Duration {
	return e.timeout
}

// WithTimeout returns a copy of e bounding every command by timeout.
func (e *LocalExecutor) WithTimeout(timeout time.Duration) CommandExecutor {
	return &LocalExecutor{hostname: e.hostname, timeout: timeout}
}

// ReadFile reads a local file
func (e *LocalExecutor) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes a local file
func (e *LocalExecutor) WriteFile(_ context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}

// LookPath checks the local PATH
func (e *LocalExecutor) LookPath(_ context.Context, name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// GetHostname returns the hostname
func (e *LocalExecutor) GetHostname() string {
	return e.hostname
}

// IsLocal returns true for local executor
func (e *LocalExecutor) IsLocal() bool {
	return true
}

// WithCommandTimeout returns exec with its per command bound replaced by
// timeout; zero disables the bound. Executors that have no bound are
// returned as they are.
func WithCommandTimeout(exec CommandExecutor, timeout time.Duration) CommandExecutor {
	if b, ok := exec.(interface {
		WithTimeout(time.Duration) CommandExecutor
	}); ok {
		return b.WithTimeout(timeout)
	}
	return exec
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>*?()[]{}!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
