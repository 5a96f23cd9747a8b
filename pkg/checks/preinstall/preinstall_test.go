package preinstall

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

var errExit = errors.New("exit status 1")

const meminfo16G = "MemTotal:       16303488 kB\nMemFree:         1000000 kB\n"

func TestHardware_TooFewVCPUs(t *testing.T) {
	// Given a host with 8 vCPUs and a requirement of 16
	fake := utils.NewFakeExecutor().On("nproc", "8\n", nil)
	probe := &HardwareProbe{exec: fake}

	// When the hardware check runs
	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyVCPUs, Value: 16}})

	// Then it fails naming both values
	assert.Equal(t, check.Fail, rep.Outcome)
	assert.Contains(t, rep.Summary(), "8")
	assert.Contains(t, rep.Summary(), "16")
	assert.Empty(t, rep.Fixes)
}

func TestHardware_CPUInfoFallbackAndMemory(t *testing.T) {
	fake := utils.NewFakeExecutor().
		On("nproc", "", errExit).
		WithFile("/proc/cpuinfo", "processor\t: 0\nmodel name\t: x\n\nprocessor\t: 1\n").
		WithFile("/proc/meminfo", meminfo16G)
	probe := &HardwareProbe{exec: fake}

	rep := probe.Probe(context.Background(), check.Params{
		{Name: config.KeyVCPUs, Value: 2},
		{Name: config.KeyMemoryGB, Value: 32.0},
	})

	require.Len(t, rep.Findings, 2)
	assert.Equal(t, check.Pass, rep.Findings[0].Outcome)
	assert.Equal(t, check.Fail, rep.Findings[1].Outcome)
	assert.Equal(t, "15.55 GiB", rep.Findings[1].Measured)
	assert.Equal(t, check.Fail, rep.Outcome)
}

func TestHardware_Indeterminate(t *testing.T) {
	probe := &HardwareProbe{exec: utils.NewFakeExecutor()}

	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyVCPUs, Value: 4}})

	assert.Equal(t, check.Warn, rep.Outcome, "missing tools never pass silently")
	assert.NotEmpty(t, rep.Suggestions())
}

func TestOS_LocaleInstalledButInactiveWarns(t *testing.T) {
	// Given en_US.utf8 installed while the system locale is C.UTF-8
	fake := utils.NewFakeExecutor().
		WithTools("locale", "localectl").
		On("locale -a", "C\nC.utf8\nen_US.utf8\nPOSIX\n", nil).
		On("localectl status", "   System Locale: LANG=C.UTF-8\n", nil)
	probe := &OSProbe{exec: fake}

	// When the OS check runs
	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyLocale, Value: "en_US.utf8"}})

	// Then it warns with a manual suggestion
	assert.Equal(t, check.Warn, rep.Outcome)
	require.NotEmpty(t, rep.Suggestions())
	assert.Contains(t, rep.Suggestions()[0], "localectl set-locale LANG=en_US.utf8")
}

func TestOS_UnsupportedReleaseDoesNotRequestLocaleFix(t *testing.T) {
	// Given an unsupported release and an installed but inactive locale
	fake := utils.NewFakeExecutor().
		WithTools("locale", "localectl").
		WithFile("/etc/os-release", "ID=\"rhel\"\nVERSION_ID=\"7.9\"\n").
		On("locale -a", "C\nen_US.utf8\n", nil).
		On("localectl status", "   System Locale: LANG=C.UTF-8\n", nil)
	probe := &OSProbe{exec: fake}

	// When the OS check runs
	rep := probe.Probe(context.Background(), check.Params{
		{Name: config.KeySupportedOS, Value: []string{"rhel:8", "rhel:9"}},
		{Name: config.KeyLocale, Value: "en_US.utf8"},
	})

	// Then the release fails and nothing is offered that would change the locale
	assert.Equal(t, check.Fail, rep.Outcome)
	assert.Empty(t, rep.Fixes)
}

func TestOS_LocaleNotInstalledFails(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithTools("locale").
		On("locale -a", "C\nPOSIX\n", nil)
	probe := &OSProbe{exec: fake}

	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyLocale, Value: "en_US.UTF-8"}})

	assert.Equal(t, check.Fail, rep.Outcome)
	assert.Equal(t, []remediation.Request{remediation.LocaleRequest("en_US.UTF-8")}, rep.Fixes)
}

func TestOS_LocaleActive(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithTools("locale").
		On("locale -a", "en_US.utf8\n", nil).
		WithFile("/etc/locale.conf", "LANG=\"en_US.UTF-8\"\n")
	probe := &OSProbe{exec: fake}

	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyLocale, Value: "en_US.UTF-8"}})
	assert.Equal(t, check.Pass, rep.Outcome)
}

func TestOS_SupportedRelease(t *testing.T) {
	tests := []struct {
		name      string
		osRelease string
		want      check.Outcome
	}{
		{"minor release of supported major", "ID=\"rhel\"\nVERSION_ID=\"9.4\"\n", check.Pass},
		{"exact version", "ID=ubuntu\nVERSION_ID=\"22.04\"\n", check.Pass},
		{"unsupported major", "ID=\"rhel\"\nVERSION_ID=\"7.9\"\n", check.Fail},
		{"similar prefix", "ID=\"rhel\"\nVERSION_ID=\"80.1\"\n", check.Fail},
		{"unreadable", "", check.Warn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := utils.NewFakeExecutor()
			if tt.osRelease != "" {
				fake.WithFile("/etc/os-release", tt.osRelease)
			}
			probe := &OSProbe{exec: fake}

			rep := probe.Probe(context.Background(), check.Params{
				{Name: config.KeySupportedOS, Value: []string{"rhel:8", "rhel:9", "ubuntu:22.04"}},
			})
			assert.Equal(t, tt.want, rep.Outcome)
		})
	}
}

func TestFilesystem_DataMount(t *testing.T) {
	const header = "Filesystem     Type 1024-blocks    Used Available Capacity Mounted on\n"
	fake := utils.NewFakeExecutor().
		WithTools("df").
		On("df -PTk /data", header+"/dev/sdb1      ext4   104857600 1048576  52428800       2% /data\n", nil).
		On("df -PTk /", header+"/dev/sda1      xfs     10475520 2345678   2097152      23% /\n", nil)
	probe := &FilesystemProbe{exec: fake}

	rep := probe.Probe(context.Background(), check.Params{
		{Name: config.KeyDataMount, Value: "/data/"},
		{Name: config.KeyDataMinFreeGB, Value: 40.0},
		{Name: config.KeyRootMinFreeGB, Value: 5.0},
		{Name: config.KeyFilesystemTypes, Value: []string{"xfs"}},
	})

	require.Len(t, rep.Findings, 4)
	assert.Equal(t, check.Pass, rep.Findings[0].Outcome, "mount point")
	assert.Equal(t, check.Fail, rep.Findings[1].Outcome, "ext4 is not allowed")
	assert.Equal(t, check.Pass, rep.Findings[2].Outcome, "50 GiB free on /data")
	assert.Equal(t, check.Fail, rep.Findings[3].Outcome, "2 GiB free on /")
	assert.Equal(t, "2.00 GiB", rep.Findings[3].Measured)
}

func TestFilesystem_DataNotSeparateMount(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithTools("df").
		On("df -PTk /data", "Filesystem Type 1024-blocks Used Available Capacity Mounted on\n/dev/sda1 xfs 100 10 90 10% /\n", nil)
	probe := &FilesystemProbe{exec: fake}

	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyDataMount, Value: "/data"}})

	assert.Equal(t, check.Fail, rep.Outcome)
	assert.Contains(t, rep.Summary(), "not a separate mount point")
}

func TestFilesystem_NoDF(t *testing.T) {
	probe := &FilesystemProbe{exec: utils.NewFakeExecutor()}
	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyRootMinFreeGB, Value: 1.0}})
	assert.Equal(t, check.Warn, rep.Outcome)
}

func TestParseDF_MountWithSpaces(t *testing.T) {
	info, err := parseDF("Filesystem Type 1024-blocks Used Available Capacity Mounted on\n//nas/share cifs 100 10 90 10% /mnt/my share\n")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/my share", info.MountedOn)
	assert.Equal(t, int64(90), info.AvailableKiB)

	_, err = parseDF("garbage")
	assert.Error(t, err)
}

func TestLimits_BelowRequiredRequestsFix(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithFile(utils.LimitsConf, "* soft nofile 1024\n* hard nofile 4096\n* - nproc 8192\n").
		On("ls -1 "+utils.LimitsDir, "", nil)
	probe := &LimitsProbe{exec: fake}

	rep := probe.Probe(context.Background(), check.Params{
		{Name: config.KeyLimitsUser, Value: "*"},
		{Name: config.KeyOpenFiles, Value: 65536},
		{Name: config.KeyMaxProcesses, Value: 4096},
	})

	assert.Equal(t, check.Fail, rep.Outcome)
	require.Len(t, rep.Findings, 2)
	assert.Equal(t, check.Fail, rep.Findings[0].Outcome)
	assert.Equal(t, check.Pass, rep.Findings[1].Outcome)
	assert.Equal(t, []remediation.Request{remediation.UlimitsRequest(65536, 4096, "*")}, rep.Fixes)
}

func TestLimits_FixThenRecheckPasses(t *testing.T) {
	// The probe reads the drop-in the ulimits routine writes.
	fake := utils.NewFakeExecutor().
		On("id -u", "0\n", nil).
		WithFile(utils.LimitsConf, "* soft nofile 1024\n").
		OnFunc("ls -1 "+utils.LimitsDir, func() (string, error) { return "99-preinstall.conf\n", nil })
	probe := &LimitsProbe{exec: fake}
	params := check.Params{{Name: config.KeyOpenFiles, Value: 65536}, {Name: config.KeyMaxProcesses, Value: 4096}}

	before := probe.Probe(context.Background(), params)
	require.Equal(t, check.Fail, before.Outcome)

	d := remediation.NewDispatcher()
	remediation.NewHost(fake, nil).Register(d)
	out := d.Dispatch(context.Background(), remediation.Ulimits, before.Fixes)
	require.True(t, out.Succeeded, "%v", out.Err)

	after := probe.Probe(context.Background(), params)
	assert.Equal(t, check.Pass, after.Outcome)
}

func TestLimits_FixWithoutLimitsConfThenRecheckPasses(t *testing.T) {
	// No limits.conf on the host, so only the drop-in can satisfy the re-check.
	fake := utils.NewFakeExecutor().
		On("id -u", "0\n", nil).
		On("sh -c ulimit -Sn", "1024\n", nil).
		On("ls -1 "+utils.LimitsDir, "99-preinstall.conf\n", nil)
	probe := &LimitsProbe{exec: fake}
	params := check.Params{{Name: config.KeyOpenFiles, Value: 65536}}

	before := probe.Probe(context.Background(), params)
	require.Equal(t, check.Fail, before.Outcome)

	d := remediation.NewDispatcher()
	remediation.NewHost(fake, nil).Register(d)
	out := d.Dispatch(context.Background(), remediation.Ulimits, before.Fixes)
	require.True(t, out.Succeeded, "%v", out.Err)

	after := probe.Probe(context.Background(), params)
	assert.Equal(t, check.Pass, after.Outcome)
	assert.Equal(t, "65536", after.Findings[0].Measured)
}

func TestLimits_LiveFallback(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithFile(utils.LimitsConf, "# empty\n").
		On("sh -c ulimit -Sn", "unlimited\n", nil)
	probe := &LimitsProbe{exec: fake}

	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyOpenFiles, Value: 65536}})

	assert.Equal(t, check.Pass, rep.Outcome)
	assert.Equal(t, "unlimited", rep.Findings[0].Measured)
}

func TestNetwork_HostIsQuotedForTheShell(t *testing.T) {
	fake := utils.NewFakeExecutor().WithTools("bash", "timeout")
	probe := NewNetworkProbe(fake)

	rep := probe.Probe(context.Background(), check.Params{
		{Name: config.KeyRequiredHosts, Value: []string{"db;touch /tmp/x:5432"}},
	})

	assert.Equal(t, check.Fail, rep.Outcome)
	assert.Contains(t, fake.Calls(), "timeout 5 bash -c <'/dev/tcp/db;touch /tmp/x/5432'")
}

func TestNetwork(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithTools("bash", "timeout", "ping", "curl", "systemctl").
		On("timeout 5 bash -c </dev/tcp/db.example.com/5432", "", nil).
		On("timeout 5 bash -c </dev/tcp/ldap.example.com/636", "", errors.New("exit status 124")).
		On("ping -c 1 -W 5 gw.example.com", "1 received", nil).
		On("curl -sS -o /dev/null -w %{http_code} --max-time 5 https://example.com", "000", errExit).
		On("systemctl is-active chronyd", "active", nil)
	probe := NewNetworkProbe(fake)

	rep := probe.Probe(context.Background(), check.Params{
		{Name: config.KeyRequiredHosts, Value: []string{"db.example.com:5432", "ldap.example.com:636", "gw.example.com"}},
		{Name: config.KeyInternetURL, Value: "https://example.com"},
		{Name: config.KeyTimeSync, Value: true},
	})

	require.Len(t, rep.Findings, 5)
	assert.Equal(t, check.Pass, rep.Findings[0].Outcome)
	assert.Equal(t, check.Fail, rep.Findings[1].Outcome)
	assert.Equal(t, check.Pass, rep.Findings[2].Outcome)
	assert.Equal(t, check.Warn, rep.Findings[3].Outcome, "internet access is informational")
	assert.Equal(t, check.Pass, rep.Findings[4].Outcome)
	assert.Empty(t, rep.Fixes)
}

func TestNetwork_InternetOnlyNeverFails(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithTools("curl").
		On("curl -sS -o /dev/null -w %{http_code} --max-time 5 https://example.com", "", errExit)

	rep := NewNetworkProbe(fake).Probe(context.Background(), check.Params{
		{Name: config.KeyInternetURL, Value: "https://example.com"},
	})
	assert.Equal(t, check.Warn, rep.Outcome)
}

func TestNetwork_TimeSyncInactive(t *testing.T) {
	fake := utils.NewFakeExecutor().WithTools("systemctl")

	rep := NewNetworkProbe(fake).Probe(context.Background(), check.Params{{Name: config.KeyTimeSync, Value: true}})

	assert.Equal(t, check.Fail, rep.Outcome)
	assert.Equal(t, []remediation.Request{remediation.TimeSyncRequest()}, rep.Fixes)
}

func TestSoftware(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithTools("dnf", "java").
		On("rpm -q tar", "tar-1.34", nil).
		On("rpm -q unzip", "package unzip is not installed", errExit).
		On("dnf repolist --enabled", "repo id   repo name\nbaseos    BaseOS\n", nil).
		On("java -version", "openjdk version \"1.8.0_292\"\n", nil)
	probe := &SoftwareProbe{exec: fake}

	rep := probe.Probe(context.Background(), check.Params{
		{Name: config.KeyPackages, Value: []string{"tar", "unzip"}},
		{Name: config.KeyRepositories, Value: []string{"baseos", "appstream"}},
		{Name: config.KeyJavaVersions, Value: []string{"11", "17"}},
	})

	assert.Equal(t, check.Fail, rep.Outcome)
	assert.Equal(t, []remediation.Request{
		remediation.PackagesRequest("unzip"),
		remediation.RepositoriesRequest("appstream"),
		remediation.JavaRequest("11", "17"),
	}, rep.Fixes)
}

func TestSoftware_NoPackageManagerWarns(t *testing.T) {
	probe := &SoftwareProbe{exec: utils.NewFakeExecutor()}

	rep := probe.Probe(context.Background(), check.Params{{Name: config.KeyPackages, Value: []string{"tar"}}})

	assert.Equal(t, check.Warn, rep.Outcome)
	assert.Empty(t, rep.Fixes)
}

func TestSoftware_JavaAcceptable(t *testing.T) {
	fake := utils.NewFakeExecutor().
		WithTools("java").
		On("java -version", "openjdk version \"17.0.9\" 2023-10-17\n", nil)

	rep := (&SoftwareProbe{exec: fake}).Probe(context.Background(), check.Params{
		{Name: config.KeyJavaVersions, Value: []string{"17"}},
	})
	assert.Equal(t, check.Pass, rep.Outcome)
}

func TestSpecs(t *testing.T) {
	req := &config.Requirements{VCPUs: 16, LimitsUser: "*", OpenFiles: 1024, TimeSync: true}
	probes := Probes(utils.NewFakeExecutor())
	delete(probes, check.Filesystem)

	specs := Specs(req, probes)

	require.Len(t, specs, 6)
	for i, id := range check.AllIDs() {
		assert.Equal(t, id, specs[i].ID)
	}
	assert.Nil(t, specs[check.Filesystem].Probe)
	assert.Equal(t, remediation.Locale, specs[check.OS].Remediation)
	assert.Equal(t, remediation.None, specs[check.Hardware].Remediation)
	assert.Equal(t, remediation.Software, specs[check.Software].Remediation)

	v, ok := specs[check.Hardware].Params.Int(config.KeyVCPUs)
	assert.True(t, ok)
	assert.Equal(t, 16, v)
	_, ok = specs[check.Hardware].Params.Float(config.KeyMemoryGB)
	assert.False(t, ok, "unset requirements are not passed")
	b, _ := specs[check.Network].Params.Bool(config.KeyTimeSync)
	assert.True(t, b)
}

func TestEmptyRequirementsPass(t *testing.T) {
	for id, probe := range Probes(utils.NewFakeExecutor()) {
		rep := probe.Probe(context.Background(), nil)
		assert.Equal(t, check.Pass, rep.Outcome, id.String())
	}
}
