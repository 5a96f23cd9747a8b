// pkg/checks/preinstall/software.go

package preinstall

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

// SoftwareProbe checks packages, repositories and the Java runtime. Its
// fixes feed the composite software remediation.
type SoftwareProbe struct {
	exec utils.CommandExecutor
}

// Probe implements check.Probe.
func (p *SoftwareProbe) Probe(ctx context.Context, params check.Params) check.Report {
	var rep check.Report

	packages := params.Strings(config.KeyPackages)
	repos := params.Strings(config.KeyRepositories)
	if len(packages) > 0 || len(repos) > 0 {
		pm, err := utils.DetectPackageManager(ctx, p.exec)
		if err != nil {
			rep.Add(indeterminate("Package manager", "No supported package manager found",
				"Install dnf, yum, apt-get or zypper to inspect software."))
		} else {
			if len(packages) > 0 {
				p.checkPackages(ctx, &rep, pm, packages)
			}
			if len(repos) > 0 {
				p.checkRepositories(ctx, &rep, pm, repos)
			}
		}
	}

	if versions := params.Strings(config.KeyJavaVersions); len(versions) > 0 {
		p.checkJava(ctx, &rep, versions)
	}
	return rep
}

func (p *SoftwareProbe) checkPackages(ctx context.Context, rep *check.Report, pm utils.PackageManager, packages []string) {
	const requirement = "Required packages"

	var missing []string
	for _, name := range packages {
		if !pm.IsInstalled(ctx, p.exec, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Fail,
			Measured:    "missing " + strings.Join(missing, ", "),
			Required:    strings.Join(packages, ", "),
			Message:     fmt.Sprintf("Missing packages: %s", strings.Join(missing, ", ")),
			Suggestion:  fmt.Sprintf("Install with '%s install %s' or run with --auto-fix.", pm.Name, strings.Join(missing, " ")),
		})
		rep.AddFix(remediation.PackagesRequest(missing...))
		return
	}
	rep.Add(check.Finding{
		Requirement: requirement,
		Outcome:     check.Pass,
		Required:    strings.Join(packages, ", "),
		Message:     fmt.Sprintf("All %d required packages are installed", len(packages)),
	})
}

func (p *SoftwareProbe) checkRepositories(ctx context.Context, rep *check.Report, pm utils.PackageManager, repos []string) {
	const requirement = "Enabled repositories"

	enabled, err := pm.EnabledRepositories(ctx, p.exec)
	if errors.Is(err, errors.ErrUnsupported) {
		rep.Add(indeterminate(requirement, fmt.Sprintf("%s has no named repositories", pm.Name),
			"Verify the apt sources manually."))
		return
	}
	if err != nil {
		rep.Add(indeterminate(requirement, "Could not list enabled repositories",
			fmt.Sprintf("Run '%s repolist' manually.", pm.Name)))
		return
	}

	var missing []string
	for _, id := range repos {
		if !slices.Contains(enabled, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Fail,
			Measured:    "disabled " + strings.Join(missing, ", "),
			Required:    strings.Join(repos, ", "),
			Message:     fmt.Sprintf("Repositories not enabled: %s", strings.Join(missing, ", ")),
			Suggestion:  "Enable the repositories with subscription-manager or dnf config-manager, or run with --auto-fix.",
		})
		rep.AddFix(remediation.RepositoriesRequest(missing...))
		return
	}
	rep.Add(check.Finding{
		Requirement: requirement,
		Outcome:     check.Pass,
		Required:    strings.Join(repos, ", "),
		Message:     fmt.Sprintf("All %d required repositories are enabled", len(repos)),
	})
}

func (p *SoftwareProbe) checkJava(ctx context.Context, rep *check.Report, versions []string) {
	const requirement = "Java runtime"
	required := strings.Join(versions, " or ")

	major, raw, found := utils.JavaMajorVersion(ctx, p.exec)
	switch {
	case !found:
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Fail,
			Measured:    "not installed",
			Required:    required,
			Message:     fmt.Sprintf("Java is not installed, version %s required", required),
			Suggestion:  "Install an OpenJDK runtime or run with --auto-fix.",
		})
		rep.AddFix(remediation.JavaRequest(versions...))
	case major == "":
		rep.Add(indeterminate(requirement, "Could not determine the installed Java version",
			"Run 'java -version' manually."))
	case !slices.Contains(versions, major):
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Fail,
			Measured:    major,
			Required:    required,
			Message:     fmt.Sprintf("Java %s is installed (%s), version %s required", major, raw, required),
			Suggestion:  fmt.Sprintf("Install Java %s and select it with 'alternatives --config java'.", required),
		})
		rep.AddFix(remediation.JavaRequest(versions...))
	default:
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Pass,
			Measured:    major,
			Required:    required,
			Message:     fmt.Sprintf("Java %s is installed", major),
		})
	}
}
