package remediation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

func rootHost() *utils.FakeExecutor {
	return utils.NewFakeExecutor().On("id -u", "0\n", nil)
}

func userHost() *utils.FakeExecutor {
	return utils.NewFakeExecutor().On("id -u", "1000\n", nil)
}

func TestFixUlimits_WritesDropIn(t *testing.T) {
	// Given a root session and no drop-in yet
	fake := rootHost()
	h := NewHost(fake, nil)

	// When the ulimits routine runs
	err := h.FixUlimits(context.Background(), UlimitsRequest(65536, 4096, ""))

	// Then the drop-in holds soft and hard entries for both items
	require.NoError(t, err)
	content, ok := fake.File(DefaultLimitsFile)
	require.True(t, ok)
	assert.Equal(t, "# Managed by preinstall-check\n"+
		"* soft nofile 65536\n"+
		"* hard nofile 65536\n"+
		"* soft nproc 4096\n"+
		"* hard nproc 4096\n", content)
}

func TestFixUlimits_Idempotent(t *testing.T) {
	fake := rootHost()
	h := NewHost(fake, nil)
	req := UlimitsRequest(65536, 4096, "oracle")

	require.NoError(t, h.FixUlimits(context.Background(), req))
	first, _ := fake.File(DefaultLimitsFile)

	require.NoError(t, h.FixUlimits(context.Background(), req))
	second, _ := fake.File(DefaultLimitsFile)

	assert.Equal(t, first, second)
	assert.Len(t, fake.Writes(), 1, "second run must not write")
}

func TestFixUlimits_RequiresRoot(t *testing.T) {
	fake := userHost()
	h := NewHost(fake, nil)

	err := h.FixUlimits(context.Background(), UlimitsRequest(65536, 4096, ""))

	assert.ErrorIs(t, err, ErrNotPrivileged)
	assert.Empty(t, fake.Writes())
}

func TestFixUlimits_SatisfiedWithoutRoot(t *testing.T) {
	// An already applied fix is a no-op even for unprivileged users.
	fake := userHost().WithFile(DefaultLimitsFile, rewriteLimits("", "*", map[string]int{"nofile": 1024, "nproc": 512}))
	h := NewHost(fake, nil)

	err := h.FixUlimits(context.Background(), UlimitsRequest(1024, 512, ""))

	assert.NoError(t, err)
	assert.Empty(t, fake.Writes())
}

func TestFixUlimits_BadParams(t *testing.T) {
	h := NewHost(rootHost(), nil)

	err := h.FixUlimits(context.Background(), Request{Category: Ulimits, Params: []string{"65536"}})
	assert.ErrorIs(t, err, ErrMissingParameter)

	err = h.FixUlimits(context.Background(), Request{Category: Ulimits, Params: []string{"lots", "4096"}})
	assert.Error(t, err)
}

func TestRewriteLimits_KeepsForeignLines(t *testing.T) {
	content := "# site limits\n" +
		"oracle soft nofile 1024\n" +
		"oracle soft stack 10240\n" +
		"* hard nofile 2048\n"

	got := rewriteLimits(content, "oracle", map[string]int{"nofile": 65536})

	assert.Equal(t, "# site limits\n"+
		"oracle soft stack 10240\n"+
		"* hard nofile 2048\n"+
		"oracle soft nofile 65536\n"+
		"oracle hard nofile 65536\n", got)
}

func TestFixLocale_AlreadyActive(t *testing.T) {
	fake := userHost().
		WithTools("localectl").
		On("locale -a", "C\nC.utf8\nen_US.utf8\n", nil).
		On("localectl status", "   System Locale: LANG=en_US.UTF-8\n", nil)
	h := NewHost(fake, nil)

	assert.NoError(t, h.FixLocale(context.Background(), LocaleRequest("en_US.UTF-8")))
	assert.False(t, fake.Ran("localectl set-locale"))
}

func TestFixLocale_GeneratesAndActivates(t *testing.T) {
	fake := rootHost().
		WithTools("localectl", "localedef").
		On("locale -a", "C\nC.utf8\n", nil).
		On("localectl status", "   System Locale: LANG=C.UTF-8\n", nil).
		On("localedef -i en_US -f UTF-8 en_US.utf8", "", nil).
		On("localectl set-locale LANG=en_US.UTF-8", "", nil)
	h := NewHost(fake, nil)

	require.NoError(t, h.FixLocale(context.Background(), LocaleRequest("en_US.UTF-8")))
	assert.True(t, fake.Ran("localedef -i en_US"))
	assert.True(t, fake.Ran("localectl set-locale LANG=en_US.UTF-8"))
}

func TestFixLocale_RequiresRoot(t *testing.T) {
	fake := userHost().
		On("locale -a", "C\n", nil).
		WithFile("/etc/locale.conf", "LANG=C\n")
	h := NewHost(fake, nil)

	err := h.FixLocale(context.Background(), LocaleRequest("en_US.UTF-8"))
	assert.ErrorIs(t, err, ErrNotPrivileged)
	assert.Empty(t, fake.Writes())
}

func TestFixPackages_InstallsOnlyMissing(t *testing.T) {
	fake := rootHost().
		WithTools("dnf").
		On("rpm -q tar", "tar-1.34", nil).
		On("rpm -q unzip", "package unzip is not installed", errors.New("exit status 1")).
		On("dnf install -y unzip", "Complete!", nil)
	h := NewHost(fake, nil)

	require.NoError(t, h.FixPackages(context.Background(), PackagesRequest("tar", "unzip")))
	assert.True(t, fake.Ran("dnf install -y unzip"))
	assert.False(t, fake.Ran("dnf install -y tar"))
}

func TestFixRepositories_AptUnsupported(t *testing.T) {
	fake := rootHost().WithTools("apt-get")
	h := NewHost(fake, nil)

	err := h.FixRepositories(context.Background(), RepositoriesRequest("universe"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFixJava_AcceptableVersionIsNoop(t *testing.T) {
	fake := userHost().
		WithTools("java").
		On("java -version", `openjdk version "17.0.9" 2023-10-17`, nil)
	h := NewHost(fake, nil)

	assert.NoError(t, h.FixJava(context.Background(), JavaRequest("11", "17")))
}

func TestFixJava_TriesVersionsInOrder(t *testing.T) {
	fake := rootHost().
		WithTools("dnf").
		On("dnf install -y java-11-openjdk-headless", "No match", errors.New("exit status 1")).
		On("dnf install -y java-17-openjdk-headless", "Complete!", nil)
	h := NewHost(fake, nil)

	require.NoError(t, h.FixJava(context.Background(), JavaRequest("11", "17")))
	assert.True(t, fake.Ran("dnf install -y java-17-openjdk-headless"))
}

func TestFixTimeSync_EnablesInstalledService(t *testing.T) {
	fake := rootHost().
		WithTools("systemctl").
		On("systemctl is-active chronyd", "inactive", errors.New("exit status 3")).
		On("systemctl is-active systemd-timesyncd", "inactive", errors.New("exit status 3")).
		On("systemctl is-active ntpd", "inactive", errors.New("exit status 3")).
		On("systemctl cat chronyd.service", "[Unit]", nil).
		On("systemctl enable --now chronyd", "", nil)
	h := NewHost(fake, nil)

	require.NoError(t, h.FixTimeSync(context.Background(), TimeSyncRequest()))
	assert.True(t, fake.Ran("systemctl enable --now chronyd"))
}

func TestFixTimeSync_AlreadyActive(t *testing.T) {
	fake := userHost().On("systemctl is-active chronyd", "active\n", nil)
	h := NewHost(fake, nil)

	assert.NoError(t, h.FixTimeSync(context.Background(), TimeSyncRequest()))
	assert.False(t, fake.Ran("systemctl enable"))
}

func TestHost_RegisterBindsEveryLeaf(t *testing.T) {
	d := NewDispatcher()
	NewHost(rootHost(), nil).Register(d)

	for _, c := range []Category{Locale, Ulimits, Packages, Repositories, Java, TimeSync} {
		_, err := d.Plan(c, []Request{{Category: c}})
		assert.NoError(t, err, c.String())
	}
}
