// pkg/utils/facts.go
// Host facts shared by probes and remediations

package utils

import (
	"bufio"
	"context"
	"regexp"
	"strings"
)

// NormalizeLocale folds the spellings glibc accepts for one locale into a
// single form: "en_US.UTF-8", "en_US.utf8" and "en_US.UTF8" all become
// "en_US.utf8".
func NormalizeLocale(name string) string {
	name = strings.TrimSpace(name)
	lang, codeset, hasCodeset := strings.Cut(name, ".")
	if !hasCodeset {
		return lang
	}
	codeset, modifier, hasModifier := strings.Cut(codeset, "@")
	codeset = strings.ToLower(strings.ReplaceAll(codeset, "-", ""))
	out := lang + "." + codeset
	if hasModifier {
		out += "@" + modifier
	}
	return out
}

// SplitLocale returns the language and charset parts used by localedef:
// "en_US.utf8" gives ("en_US", "UTF-8").
func SplitLocale(name string) (string, string) {
	lang, codeset, ok := strings.Cut(NormalizeLocale(name), ".")
	if !ok {
		return lang, ""
	}
	codeset, _, _ = strings.Cut(codeset, "@")
	if codeset == "utf8" {
		return lang, "UTF-8"
	}
	return lang, strings.ToUpper(codeset)
}

// InstalledLocales lists the locales known to the C library, normalised.
func InstalledLocales(ctx context.Context, exec CommandExecutor) ([]string, error) {
	out, err := exec.RunCommand(ctx, "locale", "-a")
	if err != nil {
		return nil, err
	}
	var locales []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			locales = append(locales, NormalizeLocale(line))
		}
	}
	return locales, nil
}

// SystemLocale returns the configured system LANG, normalised. It asks
// localectl first and falls back to the distribution config files.
func SystemLocale(ctx context.Context, exec CommandExecutor) (string, error) {
	if exec.LookPath(ctx, "localectl") {
		out, err := exec.RunCommand(ctx, "localectl", "status")
		if err == nil {
			for _, line := range strings.Split(out, "\n") {
				if _, value, ok := strings.Cut(line, "LANG="); ok {
					if fields := strings.Fields(value); len(fields) > 0 {
						return NormalizeLocale(fields[0]), nil
					}
				}
			}
		}
	}

	var lastErr error
	for _, path := range []string{"/etc/locale.conf", "/etc/default/locale"} {
		data, err := exec.ReadFile(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}
		if lang := envValue(string(data), "LANG"); lang != "" {
			return NormalizeLocale(lang), nil
		}
	}
	return "", lastErr
}

// envValue reads KEY=value from shell-style configuration content.
func envValue(content, key string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) != key {
			continue
		}
		return strings.Trim(strings.TrimSpace(v), `"'`)
	}
	return ""
}

// OSRelease holds the identifying fields of /etc/os-release.
type OSRelease struct {
	ID         string
	VersionID  string
	PrettyName string
}

// ReadOSRelease parses /etc/os-release on the host.
func ReadOSRelease(ctx context.Context, exec CommandExecutor) (OSRelease, error) {
	data, err := exec.ReadFile(ctx, "/etc/os-release")
	if err != nil {
		return OSRelease{}, err
	}
	content := string(data)
	return OSRelease{
		ID:         strings.ToLower(envValue(content, "ID")),
		VersionID:  envValue(content, "VERSION_ID"),
		PrettyName: envValue(content, "PRETTY_NAME"),
	}, nil
}

var javaVersionPattern = regexp.MustCompile(`version "([^"]+)"`)

// JavaMajorVersion runs java -version and returns the major version
// ("1.8.0_292" gives "8", "17.0.2" gives "17"). found is false when no
// java binary is on the PATH.
func JavaMajorVersion(ctx context.Context, exec CommandExecutor) (major string, raw string, found bool) {
	if !exec.LookPath(ctx, "java") {
		return "", "", false
	}
	out, err := exec.RunCommand(ctx, "java", "-version")
	if err != nil && out == "" {
		return "", "", true
	}
	return ParseJavaMajor(out), strings.TrimSpace(firstLine(out)), true
}

// ParseJavaMajor extracts the major version from java -version output.
func ParseJavaMajor(output string) string {
	m := javaVersionPattern.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	parts := strings.Split(m[1], ".")
	if parts[0] == "1" && len(parts) > 1 {
		return parts[1]
	}
	major, _, _ := strings.Cut(parts[0], "-")
	return major
}

// TimeSyncServices are the supported time sync daemons, in preference order.
var TimeSyncServices = []string{"chronyd", "systemd-timesyncd", "ntpd"}

// ActiveTimeSyncService returns the first running time sync daemon.
func ActiveTimeSyncService(ctx context.Context, exec CommandExecutor) (string, bool) {
	for _, svc := range TimeSyncServices {
		out, _ := exec.RunCommand(ctx, "systemctl", "is-active", svc)
		if strings.TrimSpace(out) == "active" {
			return svc, true
		}
	}
	return "", false
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
