// pkg/checks/preinstall/checks.go

package preinstall

/*
This file serves as an index to the pre-installation probes and builds the
check specs from the resolved requirements.

Available checks, in execution order:
- Operating System (os.go) - Distribution and version, required locale installed and active
- Hardware (hardware.go) - vCPU count, total memory
- Filesystem (filesystem.go) - Data mount point, filesystem type, free space on data, / and /tmp
- System Limits (limits.go) - Configured nofile/nproc limits for the install user
- Network (network.go) - Required hosts reachable, internet connectivity, time synchronisation
- Software (software.go) - Required packages, enabled repositories, Java runtime

Every probe reaches the host through a utils.CommandExecutor, so the same
checks run locally or over SSH.
*/

import (
	"fmt"
	"strconv"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

// Probes returns the probe of every check for the host behind exec.
func Probes(exec utils.CommandExecutor) map[check.ID]check.Probe {
	return map[check.ID]check.Probe{
		check.OS:         &OSProbe{exec: exec},
		check.Hardware:   &HardwareProbe{exec: exec},
		check.Filesystem: &FilesystemProbe{exec: exec},
		check.Limits:     &LimitsProbe{exec: exec},
		check.Network:    NewNetworkProbe(exec),
		check.Software:   &SoftwareProbe{exec: exec},
	}
}

// remediations maps checks to their fix category.
var remediations = map[check.ID]remediation.Category{
	check.OS:       remediation.Locale,
	check.Limits:   remediation.Ulimits,
	check.Network:  remediation.TimeSync,
	check.Software: remediation.Software,
}

var descriptions = map[check.ID]string{
	check.OS:         "Validates the distribution, version and system locale.",
	check.Hardware:   "Validates the vCPU count and total memory.",
	check.Filesystem: "Validates the data mount point and free space on data, / and /tmp.",
	check.Limits:     "Validates the open files and process limits of the install user.",
	check.Network:    "Validates reachability of required hosts, internet access and time sync.",
	check.Software:   "Validates required packages, repositories and the Java runtime.",
}

// Specs builds the check specs for req. A check missing from probes gets
// a nil probe and fails as "module not found".
func Specs(req *config.Requirements, probes map[check.ID]check.Probe) []check.Spec {
	specs := make([]check.Spec, 0, len(check.AllIDs()))
	for _, id := range check.AllIDs() {
		specs = append(specs, check.Spec{
			ID:          id,
			Description: descriptions[id],
			Probe:       probes[id],
			Remediation: remediations[id],
			Params:      paramsFor(id, req),
		})
	}
	return specs
}

func paramsFor(id check.ID, req *config.Requirements) check.Params {
	var p check.Params
	addString := func(name, v string) {
		if v != "" {
			p = append(p, check.Param{Name: name, Value: v})
		}
	}
	addInt := func(name string, v int) {
		if v > 0 {
			p = append(p, check.Param{Name: name, Value: v})
		}
	}
	addFloat := func(name string, v float64) {
		if v > 0 {
			p = append(p, check.Param{Name: name, Value: v})
		}
	}
	addList := func(name string, v []string) {
		if len(v) > 0 {
			p = append(p, check.Param{Name: name, Value: v})
		}
	}

	switch id {
	case check.OS:
		addList(config.KeySupportedOS, req.SupportedOS)
		addString(config.KeyLocale, req.Locale)
	case check.Hardware:
		addInt(config.KeyVCPUs, req.VCPUs)
		addFloat(config.KeyMemoryGB, req.MemoryGB)
	case check.Filesystem:
		addString(config.KeyDataMount, req.DataMount)
		addFloat(config.KeyDataMinFreeGB, req.DataMinFreeGB)
		addFloat(config.KeyRootMinFreeGB, req.RootMinFreeGB)
		addFloat(config.KeyTmpMinFreeGB, req.TmpMinFreeGB)
		addList(config.KeyFilesystemTypes, req.FilesystemTypes)
	case check.Limits:
		addString(config.KeyLimitsUser, req.LimitsUser)
		addInt(config.KeyOpenFiles, req.OpenFiles)
		addInt(config.KeyMaxProcesses, req.MaxProcesses)
	case check.Network:
		addList(config.KeyRequiredHosts, req.RequiredHosts)
		addString(config.KeyInternetURL, req.InternetURL)
		if req.TimeSync {
			p = append(p, check.Param{Name: config.KeyTimeSync, Value: true})
		}
	case check.Software:
		addList(config.KeyPackages, req.Packages)
		addList(config.KeyRepositories, req.Repositories)
		addList(config.KeyJavaVersions, req.JavaVersions)
	}
	return p
}

const kibPerGiB = 1024 * 1024

// gib renders a size in KiB as GiB with two decimals.
func gib(kib int64) string {
	return strconv.FormatFloat(float64(kib)/kibPerGiB, 'f', 2, 64) + " GiB"
}

// belowGiB compares a KiB measurement to a GiB requirement at the
// precision shown to the operator.
func belowGiB(kib int64, required float64) bool {
	measured, _ := strconv.ParseFloat(strconv.FormatFloat(float64(kib)/kibPerGiB, 'f', 2, 64), 64)
	return measured < required
}

func gibRequired(v float64) string {
	return fmt.Sprintf("%.2f GiB", v)
}

// indeterminate is the finding of a requirement that could not be evaluated.
func indeterminate(requirement, message, suggestion string) check.Finding {
	return check.Finding{
		Requirement: requirement,
		Outcome:     check.Warn,
		Message:     message,
		Suggestion:  suggestion,
	}
}
