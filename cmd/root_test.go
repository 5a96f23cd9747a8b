package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

type harness struct {
	app    *App
	out    *bytes.Buffer
	errOut *bytes.Buffer
	fake   *utils.FakeExecutor
	dir    string
	opened int
}

func newHarness(t *testing.T, fake *utils.FakeExecutor) *harness {
	t.Helper()
	h := &harness{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}, fake: fake, dir: t.TempDir()}
	h.app = &App{
		Stdout: h.out,
		Stderr: h.errOut,
		Stdin:  strings.NewReader(""),
		NewExecutor: func(*options) (utils.CommandExecutor, func() error, error) {
			h.opened++
			return h.fake, func() error { return nil }, nil
		},
	}
	return h
}

func (h *harness) writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (h *harness) run(args ...string) int {
	base := []string{
		"--log", filepath.Join(h.dir, "diagnostics.log"),
		"--lock-file", filepath.Join(h.dir, "run.lock"),
	}
	return h.app.Execute(append(args, base...))
}

func (h *harness) log(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, "diagnostics.log"))
	require.NoError(t, err)
	return string(data)
}

func TestRoot_HardwareShortfallFailsRun(t *testing.T) {
	// Given a config requiring 16 vCPUs on a host with 8
	h := newHarness(t, utils.NewFakeExecutor().On("nproc", "8\n", nil))
	cfg := h.writeConfig(t, "[DEFAULT]\nvcpus = 16\n")

	// When the checks run
	code := h.run("--config", cfg)

	// Then the hardware check fails with both numbers and the run exits 1
	assert.Equal(t, 1, code)
	out := h.out.String()
	assert.Contains(t, out, "[FAIL] Hardware: 8 vCPUs available, 16 required")
	assert.Contains(t, out, "RESULT: FAILED")
	assert.Contains(t, out, "Full details: ")
	assert.Empty(t, h.errOut.String(), "failed checks are not an error")
	assert.Contains(t, h.log(t), "ERROR: Check Hardware FAIL: 8 vCPUs available, 16 required")
}

func TestRoot_PassingRunExitsZero(t *testing.T) {
	h := newHarness(t, utils.NewFakeExecutor().On("nproc", "32\n", nil))
	cfg := h.writeConfig(t, "[DEFAULT]\nvcpus = 16\n")

	assert.Equal(t, 0, h.run("--config", cfg))
	assert.Contains(t, h.out.String(), "RESULT: PASSED")
}

func TestRoot_InvalidNodeStopsBeforeChecks(t *testing.T) {
	h := newHarness(t, utils.NewFakeExecutor())
	cfg := h.writeConfig(t, "[DEFAULT]\nvcpus = 16\n")

	code := h.run("--config", cfg, "--node", "BOGUS")

	assert.Equal(t, 1, code)
	assert.Zero(t, h.opened, "no host was contacted")
	assert.Contains(t, h.errOut.String(), "invalid node type")

	log := h.log(t)
	assert.Contains(t, log, "Node type: BOGUS")
	assert.Contains(t, log, "Configuration error")
	assert.NotContains(t, log, "Check ")
	assert.NotContains(t, h.out.String(), "Starting pre-installation checks")
}

func TestRoot_MissingConfig(t *testing.T) {
	h := newHarness(t, utils.NewFakeExecutor())

	code := h.run("--config", filepath.Join(h.dir, "absent.ini"))

	assert.Equal(t, 1, code)
	assert.Contains(t, h.errOut.String(), "configuration file not found")
	assert.Zero(t, h.opened)
}

func TestRoot_InvalidSkip(t *testing.T) {
	h := newHarness(t, utils.NewFakeExecutor())
	cfg := h.writeConfig(t, "[DEFAULT]\n")

	assert.Equal(t, 1, h.run("--config", cfg, "--skip", "kernel"))
	assert.Contains(t, h.errOut.String(), "invalid --skip value")
}

func TestRoot_HelpExitsOne(t *testing.T) {
	h := newHarness(t, utils.NewFakeExecutor())

	assert.Equal(t, 1, h.app.Execute([]string{"--help"}))
	assert.Contains(t, h.out.String(), "--auto-fix")
	assert.Zero(t, h.opened)
}

func TestRoot_AutoFixRemediatesLimits(t *testing.T) {
	// Given open files below the requirement and root on the host
	fake := utils.NewFakeExecutor().
		On("id -u", "0\n", nil).
		WithFile(utils.LimitsConf, "* soft nofile 1024\n").
		On("ls -1 "+utils.LimitsDir, "99-preinstall.conf\n", nil)
	h := newHarness(t, fake)
	cfg := h.writeConfig(t, "[DEFAULT]\nopen_files = 65536\n")

	// When the run is allowed to fix without asking
	code := h.run("--config", cfg, "--auto-fix", "--non-interactive")

	// Then the limits are rewritten, re-checked and a reboot is announced
	assert.Equal(t, 0, code)
	content, ok := fake.File("/etc/security/limits.d/99-preinstall.conf")
	require.True(t, ok)
	assert.Contains(t, content, "nofile 65536")
	out := h.out.String()
	assert.Contains(t, out, "Fix applied, re-running check")
	assert.Contains(t, out, "A reboot (or a fresh login session) is required")
	assert.Contains(t, out, "RESULT: PASSED")
}

func TestRoot_WithoutAutoFixSuggestsIt(t *testing.T) {
	fake := utils.NewFakeExecutor().WithFile(utils.LimitsConf, "* soft nofile 1024\n* hard nofile 1024\n")
	h := newHarness(t, fake)
	cfg := h.writeConfig(t, "[DEFAULT]\nopen_files = 65536\n")

	assert.Equal(t, 1, h.run("--config", cfg))
	assert.Contains(t, h.out.String(), "Re-run with --auto-fix")
	assert.Empty(t, fake.Writes())
}

func TestRoot_DeclinedPromptLeavesHostAlone(t *testing.T) {
	fake := utils.NewFakeExecutor().
		On("id -u", "0\n", nil).
		WithFile(utils.LimitsConf, "* soft nofile 1024\n* hard nofile 1024\n")
	h := newHarness(t, fake)
	h.app.Stdin = strings.NewReader("n\n")
	cfg := h.writeConfig(t, "[DEFAULT]\nopen_files = 65536\n")

	code := h.run("--config", cfg, "--auto-fix")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.out.String(), "Apply automatic fix (ulimits 65536,0,*)? [y/N]")
	assert.Contains(t, h.out.String(), "remediation declined by operator")
	assert.Empty(t, fake.Writes())
}

func TestRoot_WritesReport(t *testing.T) {
	h := newHarness(t, utils.NewFakeExecutor().On("nproc", "8\n", nil))
	cfg := h.writeConfig(t, "[DEFAULT]\nvcpus = 16\n")
	reportPath := filepath.Join(h.dir, "reports", "node.adoc")

	code := h.run("--config", cfg, "--report", reportPath, "--skip", "network")

	assert.Equal(t, 1, code)
	doc, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "8 vCPUs available, 16 required")
	assert.FileExists(t, filepath.Join(h.dir, "reports", ".data", "node.adoc.json"))
}

func TestRemediate_UnknownCategory(t *testing.T) {
	h := newHarness(t, utils.NewFakeExecutor())

	code := h.run("remediate", "kernel")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.out.String(), "manual intervention required")
	assert.Zero(t, h.opened, "nothing was touched")
	assert.Contains(t, h.log(t), "Manual intervention required")
}

func TestRemediate_Ulimits(t *testing.T) {
	fake := utils.NewFakeExecutor().On("id -u", "0\n", nil)
	h := newHarness(t, fake)

	code := h.run("remediate", "ulimits", "65536", "4096")

	assert.Equal(t, 0, code)
	assert.Contains(t, h.out.String(), "Remediation ulimits succeeded")
	_, ok := fake.File("/etc/security/limits.d/99-preinstall.conf")
	assert.True(t, ok)
}

func TestCompressReportRequiresPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.adoc")
	require.NoError(t, os.WriteFile(path, []byte("= r\n"), 0644))

	t.Setenv("COMPRESS_REPORT", "true")
	t.Setenv("REPORT_PASSWORD", "")
	_, err := compressReportIfNeeded(path)
	assert.Error(t, err)

	t.Setenv("REPORT_PASSWORD", "s3cret")
	bundle, err := compressReportIfNeeded(path)
	require.NoError(t, err)
	assert.Equal(t, path+".zip", bundle)
	assert.FileExists(t, bundle)
}

func TestRemediationExecutor_UsesFixTimeout(t *testing.T) {
	checks := utils.NewLocalExecutor(30 * time.Second)

	tests := []struct {
		name       string
		fixTimeout int
		want       time.Duration
	}{
		{"long bound", 1800, 30 * time.Minute},
		{"unbounded", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixes := remediationExecutor(checks, &options{fixTimeout: tt.fixTimeout})

			local, ok := fixes.(*utils.LocalExecutor)
			require.True(t, ok)
			assert.Equal(t, tt.want, local.Timeout())
			assert.Equal(t, 30*time.Second, checks.Timeout(), "check commands keep their bound")
		})
	}
}

func TestCompressRequested(t *testing.T) {
	for value, want := range map[string]bool{"true": true, "1": true, "false": false, "0": false, "": false} {
		t.Setenv("COMPRESS_REPORT", value)
		assert.Equal(t, want, compressRequested(), "COMPRESS_REPORT=%q", value)
	}
}

func TestRoot_CompressFalseWritesNoReport(t *testing.T) {
	t.Setenv("COMPRESS_REPORT", "false")
	h := newHarness(t, utils.NewFakeExecutor().On("nproc", "32\n", nil))
	cfg := h.writeConfig(t, "[DEFAULT]\nvcpus = 16\n")

	assert.Equal(t, 0, h.run("--config", cfg))
	assert.NotContains(t, h.out.String(), "Report saved to")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "node-1.example.com", sanitizeFilename("node/1.example.com"))
	assert.Equal(t, "a_b", sanitizeFilename("a b"))
}
