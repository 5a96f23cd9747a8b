// pkg/utils/fake_executor.go

package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrFakeCommand is returned by FakeExecutor for commands with no response.
var ErrFakeCommand = errors.New("fake: no response registered")

// FakeExecutor is an in-memory CommandExecutor for tests. Commands are
// matched on their full command line ("name arg1 arg2"). Every call is
// recorded so tests can assert what touched the host.
type FakeExecutor struct {
	mu        sync.Mutex
	hostname  string
	responses map[string]func() (string, error)
	files     map[string][]byte
	tools     map[string]bool
	calls     []string
	writes    []string
}

// NewFakeExecutor creates an empty fake host.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		hostname:  "fake-host",
		responses: make(map[string]func() (string, error)),
		files:     make(map[string][]byte),
		tools:     make(map[string]bool),
	}
}

// On registers a fixed response for cmdline.
func (f *FakeExecutor) On(cmdline, output string, err error) *FakeExecutor {
	return f.OnFunc(cmdline, func() (string, error) { return output, err })
}

// OnFunc registers a dynamic response for cmdline.
func (f *FakeExecutor) OnFunc(cmdline string, fn func() (string, error)) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = fn
	return f
}

// WithFile seeds a file.
func (f *FakeExecutor) WithFile(path, content string) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = []byte(content)
	return f
}

// WithTools marks tools as installed.
func (f *FakeExecutor) WithTools(names ...string) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.tools[n] = true
	}
	return f
}

// RunCommand returns the registered response.
func (f *FakeExecutor) RunCommand(_ context.Context, name string, args ...string) (string, error) {
	cmdline := commandLine(name, args)

	f.mu.Lock()
	f.calls = append(f.calls, cmdline)
	fn, ok := f.responses[cmdline]
	f.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFakeCommand, cmdline)
	}
	return fn()
}

// ReadFile returns a seeded file.
func (f *FakeExecutor) ReadFile(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

// WriteFile stores data and records the write.
func (f *FakeExecutor) WriteFile(_ context.Context, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = append([]byte(nil), data...)
	f.writes = append(f.writes, path)
	return nil
}

// LookPath reports tools registered with WithTools.
func (f *FakeExecutor) LookPath(_ context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tools[name]
}

// GetHostname returns the fake hostname.
func (f *FakeExecutor) GetHostname() string { return f.hostname }

// IsLocal returns true.
func (f *FakeExecutor) IsLocal() bool { return true }

// Calls returns every command line run so far.
func (f *FakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Writes returns every path written so far.
func (f *FakeExecutor) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// Ran reports whether a call starting with prefix was made.
func (f *FakeExecutor) Ran(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// File returns a file's current content.
func (f *FakeExecutor) File(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	return string(data), ok
}
