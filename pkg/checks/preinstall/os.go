// pkg/checks/preinstall/os.go

package preinstall

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

// OSProbe checks the distribution and the system locale.
type OSProbe struct {
	exec utils.CommandExecutor
}

// Probe implements check.Probe.
func (p *OSProbe) Probe(ctx context.Context, params check.Params) check.Report {
	var rep check.Report
	if supported := params.Strings(config.KeySupportedOS); len(supported) > 0 {
		rep.Add(p.checkRelease(ctx, supported))
	}
	if locale, ok := params.String(config.KeyLocale); ok {
		p.checkLocale(ctx, &rep, locale)
	}
	return rep
}

func (p *OSProbe) checkRelease(ctx context.Context, supported []string) check.Finding {
	const requirement = "Supported operating system"

	rel, err := utils.ReadOSRelease(ctx, p.exec)
	if err != nil || rel.ID == "" {
		return indeterminate(requirement, "Could not read /etc/os-release",
			"Ensure /etc/os-release is present and readable.")
	}

	measured := rel.ID + ":" + rel.VersionID
	f := check.Finding{
		Requirement: requirement,
		Measured:    measured,
		Required:    strings.Join(supported, ", "),
	}
	if releaseSupported(rel, supported) {
		f.Outcome = check.Pass
		f.Message = fmt.Sprintf("%s is supported", displayName(rel))
		return f
	}
	f.Outcome = check.Fail
	f.Message = fmt.Sprintf("%s (%s) is not supported, required one of %s", displayName(rel), measured, f.Required)
	f.Suggestion = "Install one of the supported operating system versions."
	return f
}

// releaseSupported matches id:version entries. A version matches itself and
// its minor releases ("8" matches "8.9"); an entry without version matches
// every release of the distribution.
func releaseSupported(rel utils.OSRelease, supported []string) bool {
	for _, entry := range supported {
		id, version, _ := strings.Cut(strings.ToLower(entry), ":")
		if strings.TrimSpace(id) != rel.ID {
			continue
		}
		version = strings.TrimSpace(version)
		if version == "" || rel.VersionID == version || strings.HasPrefix(rel.VersionID, version+".") {
			return true
		}
	}
	return false
}

func displayName(rel utils.OSRelease) string {
	if rel.PrettyName != "" {
		return rel.PrettyName
	}
	return rel.ID + " " + rel.VersionID
}

func (p *OSProbe) checkLocale(ctx context.Context, rep *check.Report, locale string) {
	const requirement = "System locale"
	want := utils.NormalizeLocale(locale)

	if !p.exec.LookPath(ctx, "locale") {
		rep.Add(indeterminate(requirement, "The locale command is not available",
			"Install glibc-common (RHEL) or locales (Debian/Ubuntu) to inspect locales."))
		return
	}
	installed, err := utils.InstalledLocales(ctx, p.exec)
	if err != nil {
		rep.Add(indeterminate(requirement, "Could not list installed locales",
			"Run 'locale -a' manually to check the installed locales."))
		return
	}

	if !slices.Contains(installed, want) {
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Fail,
			Measured:    "not installed",
			Required:    locale,
			Message:     fmt.Sprintf("Locale %s is not installed", locale),
			Suggestion:  fmt.Sprintf("Generate the locale with 'localedef -i %s' or run with --auto-fix.", locale),
		})
		rep.AddFix(remediation.LocaleRequest(locale))
		return
	}

	current, err := utils.SystemLocale(ctx, p.exec)
	if err != nil || current == "" {
		rep.Add(indeterminate(requirement, fmt.Sprintf("Locale %s is installed but the system locale could not be determined", locale),
			"Check the system locale with 'localectl status'."))
		return
	}
	if current != want {
		// Installed but inactive does not block installation and is not
		// fixed automatically.
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Warn,
			Measured:    current,
			Required:    locale,
			Message:     fmt.Sprintf("Locale %s is installed but the system locale is %s", locale, current),
			Suggestion:  fmt.Sprintf("Activate the locale manually with 'localectl set-locale LANG=%s'.", locale),
		})
		return
	}
	rep.Add(check.Finding{
		Requirement: requirement,
		Outcome:     check.Pass,
		Measured:    current,
		Required:    locale,
		Message:     fmt.Sprintf("Locale %s is installed and active", locale),
	})
}
