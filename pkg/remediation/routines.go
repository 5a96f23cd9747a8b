// pkg/remediation/routines.go

package remediation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

var (
	// ErrNotPrivileged is returned before any change when root is missing.
	ErrNotPrivileged = errors.New("root privileges are required")

	// ErrMissingParameter is returned for requests without their params.
	ErrMissingParameter = errors.New("missing remediation parameter")

	// ErrUnsupported is returned when the host offers no way to apply a fix.
	ErrUnsupported = errors.New("not supported on this host")
)

// DefaultLimitsFile is the drop-in the ulimits routine owns.
const DefaultLimitsFile = utils.LimitsDir + "/99-preinstall.conf"

// Host holds the routines that change a host. Every routine first checks
// whether the condition already holds and returns nil if so; only then is
// root required.
type Host struct {
	exec       utils.CommandExecutor
	log        logrus.FieldLogger
	limitsFile string
}

// NewHost creates the remediation routines for a host.
func NewHost(exec utils.CommandExecutor, log logrus.FieldLogger) *Host {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Host{exec: exec, log: log, limitsFile: DefaultLimitsFile}
}

// Register binds all routines to d.
func (h *Host) Register(d *Dispatcher) {
	routines := map[Category]RemediatorFunc{
		Locale:       h.FixLocale,
		Ulimits:      h.FixUlimits,
		Packages:     h.FixPackages,
		Repositories: h.FixRepositories,
		Java:         h.FixJava,
		TimeSync:     h.FixTimeSync,
	}
	for c, fn := range routines {
		// Leaf categories always register.
		_ = d.Register(c, fn)
	}
}

func (h *Host) requireRoot(ctx context.Context, c Category) error {
	if utils.IsPrivileged(ctx, h.exec) {
		return nil
	}
	h.log.WithField("category", c.String()).Error("Remediation refused: root privileges are required")
	return ErrNotPrivileged
}

// FixLocale generates and activates the requested locale.
func (h *Host) FixLocale(ctx context.Context, req Request) error {
	if len(req.Params) == 0 || req.Params[0] == "" {
		return fmt.Errorf("%w: locale", ErrMissingParameter)
	}
	want := utils.NormalizeLocale(req.Params[0])

	installed, err := utils.InstalledLocales(ctx, h.exec)
	if err != nil {
		return fmt.Errorf("failed to list locales: %w", err)
	}
	current, _ := utils.SystemLocale(ctx, h.exec)

	isInstalled := slices.Contains(installed, want)
	isActive := current == want
	if isInstalled && isActive {
		h.log.WithField("locale", want).Info("Locale already installed and active")
		return nil
	}

	if err := h.requireRoot(ctx, Locale); err != nil {
		return err
	}

	if !isInstalled {
		if err := h.generateLocale(ctx, want); err != nil {
			return err
		}
		h.log.WithField("locale", want).Info("Locale generated")
	}

	if !isActive {
		if h.exec.LookPath(ctx, "localectl") {
			if out, err := h.exec.RunCommand(ctx, "localectl", "set-locale", "LANG="+req.Params[0]); err != nil {
				return fmt.Errorf("localectl set-locale failed: %w: %s", err, strings.TrimSpace(out))
			}
		} else if err := h.exec.WriteFile(ctx, "/etc/locale.conf", []byte("LANG="+req.Params[0]+"\n")); err != nil {
			return fmt.Errorf("failed to write /etc/locale.conf: %w", err)
		}
		h.log.WithField("locale", want).Info("System locale activated")
	}
	return nil
}

func (h *Host) generateLocale(ctx context.Context, locale string) error {
	if h.exec.LookPath(ctx, "locale-gen") {
		lang, charset := utils.SplitLocale(locale)
		name := lang
		if charset != "" {
			name = lang + "." + charset
		}
		if out, err := h.exec.RunCommand(ctx, "locale-gen", name); err != nil {
			return fmt.Errorf("locale-gen failed: %w: %s", err, strings.TrimSpace(out))
		}
		return nil
	}
	if h.exec.LookPath(ctx, "localedef") {
		lang, charset := utils.SplitLocale(locale)
		args := []string{"-i", lang}
		if charset != "" {
			args = append(args, "-f", charset)
		}
		args = append(args, locale)
		if out, err := h.exec.RunCommand(ctx, "localedef", args...); err != nil {
			return fmt.Errorf("localedef failed: %w: %s", err, strings.TrimSpace(out))
		}
		return nil
	}
	return fmt.Errorf("%w: neither locale-gen nor localedef is installed", ErrUnsupported)
}

// FixUlimits rewrites the nofile/nproc entries for the user in the
// preinstall drop-in file. A zero value leaves that item alone.
func (h *Host) FixUlimits(ctx context.Context, req Request) error {
	if len(req.Params) < 2 {
		return fmt.Errorf("%w: open files and max processes", ErrMissingParameter)
	}
	openFiles, err := strconv.Atoi(req.Params[0])
	if err != nil {
		return fmt.Errorf("invalid open files value %q: %w", req.Params[0], err)
	}
	maxProcs, err := strconv.Atoi(req.Params[1])
	if err != nil {
		return fmt.Errorf("invalid max processes value %q: %w", req.Params[1], err)
	}
	user := "*"
	if len(req.Params) > 2 && req.Params[2] != "" {
		user = req.Params[2]
	}

	var current string
	if data, err := h.exec.ReadFile(ctx, h.limitsFile); err == nil {
		current = string(data)
	}
	items := make(map[string]int, 2)
	if openFiles > 0 {
		items["nofile"] = openFiles
	}
	if maxProcs > 0 {
		items["nproc"] = maxProcs
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: open files and max processes are both zero", ErrMissingParameter)
	}
	updated := rewriteLimits(current, user, items)
	if updated == current {
		h.log.WithField("file", h.limitsFile).Info("Limits entries already in place")
		return nil
	}

	if err := h.requireRoot(ctx, Ulimits); err != nil {
		return err
	}
	if err := h.exec.WriteFile(ctx, h.limitsFile, []byte(updated)); err != nil {
		return fmt.Errorf("failed to write %s: %w", h.limitsFile, err)
	}
	h.log.WithFields(logrus.Fields{
		"file":   h.limitsFile,
		"user":   user,
		"nofile": openFiles,
		"nproc":  maxProcs,
	}).Info("Limits entries rewritten")
	return nil
}

// rewriteLimits drops every entry for user and the given items and appends
// soft and hard entries with the required values. Other lines are kept.
func rewriteLimits(content, user string, items map[string]int) string {
	var kept []string
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 4 && fields[0] == user {
			if _, managed := items[fields[2]]; managed {
				continue
			}
		}
		if line == "" && len(kept) == 0 {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		kept = append(kept, "# Managed by preinstall-check")
	}

	names := make([]string, 0, len(items))
	for item := range items {
		names = append(names, item)
	}
	slices.Sort(names)
	for _, item := range names {
		for _, typ := range []string{"soft", "hard"} {
			kept = append(kept, fmt.Sprintf("%s %s %s %d", user, typ, item, items[item]))
		}
	}
	return strings.Join(kept, "\n") + "\n"
}

// FixPackages installs the packages that are not installed yet.
func (h *Host) FixPackages(ctx context.Context, req Request) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("%w: package names", ErrMissingParameter)
	}
	pm, err := utils.DetectPackageManager(ctx, h.exec)
	if err != nil {
		return err
	}

	var missing []string
	for _, name := range req.Params {
		if !pm.IsInstalled(ctx, h.exec, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		h.log.Info("All requested packages already installed")
		return nil
	}

	if err := h.requireRoot(ctx, Packages); err != nil {
		return err
	}
	h.log.WithFields(logrus.Fields{"manager": pm.Name, "packages": strings.Join(missing, ",")}).Info("Installing packages")
	if out, err := pm.Install(ctx, h.exec, missing...); err != nil {
		return fmt.Errorf("%s install failed: %w: %s", pm.Name, err, lastLine(out))
	}
	return nil
}

// FixRepositories enables the repositories that are not enabled yet.
func (h *Host) FixRepositories(ctx context.Context, req Request) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("%w: repository ids", ErrMissingParameter)
	}
	pm, err := utils.DetectPackageManager(ctx, h.exec)
	if err != nil {
		return err
	}
	enabled, err := pm.EnabledRepositories(ctx, h.exec)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			return fmt.Errorf("%w: %s has no named repositories", ErrUnsupported, pm.Name)
		}
		return fmt.Errorf("failed to list repositories: %w", err)
	}

	var missing []string
	for _, id := range req.Params {
		if !slices.Contains(enabled, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		h.log.Info("All requested repositories already enabled")
		return nil
	}

	if err := h.requireRoot(ctx, Repositories); err != nil {
		return err
	}
	var errs []error
	for _, id := range missing {
		if out, err := pm.EnableRepository(ctx, h.exec, id); err != nil {
			errs = append(errs, fmt.Errorf("enable %s: %w: %s", id, err, lastLine(out)))
			continue
		}
		h.log.WithField("repository", id).Info("Repository enabled")
	}
	return errors.Join(errs...)
}

// FixJava installs a runtime for the first acceptable version that
// installs cleanly.
func (h *Host) FixJava(ctx context.Context, req Request) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("%w: java versions", ErrMissingParameter)
	}
	if major, _, found := utils.JavaMajorVersion(ctx, h.exec); found && slices.Contains(req.Params, major) {
		h.log.WithField("version", major).Info("Acceptable java runtime already installed")
		return nil
	}

	if err := h.requireRoot(ctx, Java); err != nil {
		return err
	}
	pm, err := utils.DetectPackageManager(ctx, h.exec)
	if err != nil {
		return err
	}

	var errs []error
	for _, version := range req.Params {
		pkg := pm.JavaPackage(version)
		out, err := pm.Install(ctx, h.exec, pkg)
		if err == nil {
			h.log.WithFields(logrus.Fields{"version": version, "package": pkg}).Info("Java runtime installed")
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w: %s", pkg, err, lastLine(out)))
	}
	return errors.Join(errs...)
}

// FixTimeSync enables and starts the first time sync daemon available,
// installing chrony when none is.
func (h *Host) FixTimeSync(ctx context.Context, _ Request) error {
	if svc, ok := utils.ActiveTimeSyncService(ctx, h.exec); ok {
		h.log.WithField("service", svc).Info("Time sync already active")
		return nil
	}
	if !h.exec.LookPath(ctx, "systemctl") {
		return fmt.Errorf("%w: systemctl not found", ErrUnsupported)
	}

	if err := h.requireRoot(ctx, TimeSync); err != nil {
		return err
	}

	service := ""
	for _, svc := range utils.TimeSyncServices {
		if _, err := h.exec.RunCommand(ctx, "systemctl", "cat", svc+".service"); err == nil {
			service = svc
			break
		}
	}
	if service == "" {
		pm, err := utils.DetectPackageManager(ctx, h.exec)
		if err != nil {
			return err
		}
		if out, err := pm.Install(ctx, h.exec, "chrony"); err != nil {
			return fmt.Errorf("chrony install failed: %w: %s", err, lastLine(out))
		}
		service = "chronyd"
		if pm.Family() == "deb" {
			service = "chrony"
		}
	}

	if out, err := h.exec.RunCommand(ctx, "systemctl", "enable", "--now", service); err != nil {
		return fmt.Errorf("failed to enable %s: %w: %s", service, err, lastLine(out))
	}
	h.log.WithField("service", service).Info("Time sync service enabled")
	return nil
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
