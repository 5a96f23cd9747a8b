package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLocale(t *testing.T) {
	tests := map[string]string{
		"en_US.UTF-8":    "en_US.utf8",
		"en_US.utf8":     "en_US.utf8",
		" en_US.UTF8 ":   "en_US.utf8",
		"de_DE.UTF-8@eu": "de_DE.utf8@eu",
		"C":              "C",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLocale(in), in)
	}
}

func TestSplitLocale(t *testing.T) {
	lang, charset := SplitLocale("en_US.UTF-8")
	assert.Equal(t, "en_US", lang)
	assert.Equal(t, "UTF-8", charset)

	lang, charset = SplitLocale("POSIX")
	assert.Equal(t, "POSIX", lang)
	assert.Empty(t, charset)
}

func TestSystemLocale(t *testing.T) {
	t.Run("localectl", func(t *testing.T) {
		fake := NewFakeExecutor().
			WithTools("localectl").
			On("localectl status", "   System Locale: LANG=en_US.UTF-8\n       VC Keymap: us\n", nil)

		got, err := SystemLocale(context.Background(), fake)
		require.NoError(t, err)
		assert.Equal(t, "en_US.utf8", got)
	})

	t.Run("debian fallback", func(t *testing.T) {
		fake := NewFakeExecutor().WithFile("/etc/default/locale", "# generated\nLANG=\"de_DE.UTF-8\"\n")

		got, err := SystemLocale(context.Background(), fake)
		require.NoError(t, err)
		assert.Equal(t, "de_DE.utf8", got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := SystemLocale(context.Background(), NewFakeExecutor())
		assert.Error(t, err)
	})
}

func TestParseJavaMajor(t *testing.T) {
	tests := map[string]string{
		`openjdk version "1.8.0_292"`:              "8",
		`openjdk version "17.0.2" 2022-01-18`:      "17",
		`java version "21-ea" 2023-09-19`:          "21",
		`openjdk version "11.0.21" 2023-10-17 LTS`: "11",
		"command not found":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseJavaMajor(in), in)
	}
}

func TestReadOSRelease(t *testing.T) {
	fake := NewFakeExecutor().WithFile("/etc/os-release",
		"NAME=\"Red Hat Enterprise Linux\"\nID=\"rhel\"\nVERSION_ID=\"9.4\"\nPRETTY_NAME=\"Red Hat Enterprise Linux 9.4 (Plow)\"\n")

	rel, err := ReadOSRelease(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, OSRelease{ID: "rhel", VersionID: "9.4", PrettyName: "Red Hat Enterprise Linux 9.4 (Plow)"}, rel)
}

func TestParseRepolist(t *testing.T) {
	dnf := `Updating Subscription Management repositories.
repo id                                   repo name
rhel-9-for-x86_64-appstream-rpms          Red Hat Enterprise Linux 9 for x86_64 - AppStream (RPMs)
rhel-9-for-x86_64-baseos-rpms             Red Hat Enterprise Linux 9 for x86_64 - BaseOS (RPMs)
`
	assert.Equal(t, []string{"rhel-9-for-x86_64-appstream-rpms", "rhel-9-for-x86_64-baseos-rpms"}, parseRepolist(dnf))

	yum := `Loaded plugins: product-id
repo id                      repo name                 status
!epel/x86_64                 Extra Packages            13,000
rhel-7-server-rpms/7Server   Red Hat Enterprise Linux  30,000
repolist: 43,000
`
	assert.Equal(t, []string{"epel", "rhel-7-server-rpms"}, parseRepolist(yum))
}

func TestParseZypperRepos(t *testing.T) {
	out := `#  | Alias          | Name           | Enabled | GPG Check | Refresh
---+----------------+----------------+---------+-----------+--------
 1 | repo-oss       | Main Repository| Yes     | (r ) Yes  | Yes
 2 | repo-update    | Main Update    | Yes     | (r ) Yes  | Yes
`
	assert.Equal(t, []string{"repo-oss", "repo-update"}, parseZypperRepos(out))
}

func TestDetectPackageManager(t *testing.T) {
	pm, err := DetectPackageManager(context.Background(), NewFakeExecutor().WithTools("yum", "apt-get"))
	require.NoError(t, err)
	assert.Equal(t, "yum", pm.Name)
	assert.Equal(t, "rpm", pm.Family())

	_, err = DetectPackageManager(context.Background(), NewFakeExecutor())
	assert.ErrorIs(t, err, ErrNoPackageManager)
}

func TestJavaPackage(t *testing.T) {
	assert.Equal(t, "java-1.8.0-openjdk-headless", PackageManager{Name: "dnf"}.JavaPackage("8"))
	assert.Equal(t, "java-17-openjdk-headless", PackageManager{Name: "dnf"}.JavaPackage("17"))
	assert.Equal(t, "openjdk-17-jre-headless", PackageManager{Name: "apt-get"}.JavaPackage("17"))
}

func TestActiveTimeSyncService(t *testing.T) {
	fake := NewFakeExecutor().
		On("systemctl is-active chronyd", "inactive\n", nil).
		On("systemctl is-active systemd-timesyncd", "active\n", nil)

	svc, ok := ActiveTimeSyncService(context.Background(), fake)
	assert.True(t, ok)
	assert.Equal(t, "systemd-timesyncd", svc)
}
