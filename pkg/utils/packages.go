// pkg/utils/packages.go

package utils

import (
	"context"
	"errors"
	"strings"
)

// ErrNoPackageManager is returned when no supported package manager exists.
var ErrNoPackageManager = errors.New("no supported package manager found")

// PackageManager describes how to query and install packages on a host.
type PackageManager struct {
	// Name is the package manager binary (dnf, yum, apt-get, zypper).
	Name string
}

// Family returns "rpm" or "deb".
func (pm PackageManager) Family() string {
	if pm.Name == "apt-get" {
		return "deb"
	}
	return "rpm"
}

// DetectPackageManager returns the first supported package manager found.
func DetectPackageManager(ctx context.Context, exec CommandExecutor) (PackageManager, error) {
	for _, name := range []string{"dnf", "yum", "apt-get", "zypper"} {
		if exec.LookPath(ctx, name) {
			return PackageManager{Name: name}, nil
		}
	}
	return PackageManager{}, ErrNoPackageManager
}

// IsInstalled queries the package database for name.
func (pm PackageManager) IsInstalled(ctx context.Context, exec CommandExecutor, name string) bool {
	if pm.Family() == "deb" {
		out, err := exec.RunCommand(ctx, "dpkg-query", "-W", "-f=${Status}", name)
		return err == nil && strings.Contains(out, "install ok installed")
	}
	_, err := exec.RunCommand(ctx, "rpm", "-q", name)
	return err == nil
}

// Install installs names non-interactively.
func (pm PackageManager) Install(ctx context.Context, exec CommandExecutor, names ...string) (string, error) {
	var args []string
	switch pm.Name {
	case "apt-get":
		args = append([]string{"install", "-y"}, names...)
	case "zypper":
		args = append([]string{"--non-interactive", "install"}, names...)
	default:
		args = append([]string{"install", "-y"}, names...)
	}
	return exec.RunCommand(ctx, pm.Name, args...)
}

// EnableRepository enables a named repository. It returns ErrUnsupported
// for package managers without named repositories.
func (pm PackageManager) EnableRepository(ctx context.Context, exec CommandExecutor, id string) (string, error) {
	switch pm.Name {
	case "dnf":
		return exec.RunCommand(ctx, "dnf", "config-manager", "--set-enabled", id)
	case "yum":
		return exec.RunCommand(ctx, "yum-config-manager", "--enable", id)
	case "zypper":
		return exec.RunCommand(ctx, "zypper", "modifyrepo", "--enable", id)
	}
	return "", errors.ErrUnsupported
}

// EnabledRepositories lists enabled repository ids.
func (pm PackageManager) EnabledRepositories(ctx context.Context, exec CommandExecutor) ([]string, error) {
	var out string
	var err error
	switch pm.Name {
	case "dnf":
		out, err = exec.RunCommand(ctx, "dnf", "repolist", "--enabled")
	case "yum":
		out, err = exec.RunCommand(ctx, "yum", "repolist", "enabled")
	case "zypper":
		out, err = exec.RunCommand(ctx, "zypper", "--no-refresh", "repos", "-E")
		if err == nil {
			return parseZypperRepos(out), nil
		}
	default:
		return nil, errors.ErrUnsupported
	}
	if err != nil {
		return nil, err
	}
	return parseRepolist(out), nil
}

// JavaPackage returns the runtime package name for a major version.
func (pm PackageManager) JavaPackage(version string) string {
	switch pm.Name {
	case "apt-get":
		return "openjdk-" + version + "-jre-headless"
	case "zypper":
		return "java-" + version + "-openjdk-headless"
	}
	if version == "8" {
		return "java-1.8.0-openjdk-headless"
	}
	return "java-" + version + "-openjdk-headless"
}

// parseRepolist extracts the first column of dnf/yum repolist output.
func parseRepolist(out string) []string {
	var ids []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "repo", "repolist:", "loaded", "last", "updating":
			continue
		}
		if strings.HasSuffix(fields[0], ":") {
			continue
		}
		// yum prints "id/arch"
		id := strings.SplitN(fields[0], "/", 2)[0]
		ids = append(ids, strings.TrimPrefix(id, "!"))
	}
	return ids
}

// parseZypperRepos extracts the alias column of zypper repos output.
func parseZypperRepos(out string) []string {
	var ids []string
	for _, line := range strings.Split(out, "\n") {
		cols := strings.Split(line, "|")
		if len(cols) < 3 {
			continue
		}
		alias := strings.TrimSpace(cols[1])
		if alias == "" || alias == "Alias" {
			continue
		}
		ids = append(ids, alias)
	}
	return ids
}
