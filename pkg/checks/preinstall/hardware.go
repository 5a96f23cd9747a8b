// pkg/checks/preinstall/hardware.go

package preinstall

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

// HardwareProbe checks the vCPU count and memory size.
type HardwareProbe struct {
	exec utils.CommandExecutor
}

// Probe implements check.Probe.
func (p *HardwareProbe) Probe(ctx context.Context, params check.Params) check.Report {
	var rep check.Report
	if vcpus, ok := params.Int(config.KeyVCPUs); ok {
		rep.Add(p.checkCPU(ctx, vcpus))
	}
	if memory, ok := params.Float(config.KeyMemoryGB); ok {
		rep.Add(p.checkMemory(ctx, memory))
	}
	return rep
}

func (p *HardwareProbe) checkCPU(ctx context.Context, required int) check.Finding {
	const requirement = "vCPUs"

	count, err := p.cpuCount(ctx)
	if err != nil {
		return indeterminate(requirement, "Could not determine the number of vCPUs",
			"Ensure nproc is installed or /proc/cpuinfo is readable.")
	}

	f := check.Finding{
		Requirement: requirement,
		Measured:    strconv.Itoa(count),
		Required:    strconv.Itoa(required),
	}
	if count < required {
		f.Outcome = check.Fail
		f.Message = fmt.Sprintf("%d vCPUs available, %d required", count, required)
		f.Suggestion = fmt.Sprintf("Assign at least %d vCPUs to this node.", required)
		return f
	}
	f.Outcome = check.Pass
	f.Message = fmt.Sprintf("%d vCPUs available (%d required)", count, required)
	return f
}

func (p *HardwareProbe) cpuCount(ctx context.Context) (int, error) {
	if out, err := p.exec.RunCommand(ctx, "nproc"); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(out)); err == nil && n > 0 {
			return n, nil
		}
	}

	data, err := p.exec.ReadFile(ctx, "/proc/cpuinfo")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		if key, _, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(key) == "processor" {
			count++
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("no processor entries in /proc/cpuinfo")
	}
	return count, nil
}

func (p *HardwareProbe) checkMemory(ctx context.Context, required float64) check.Finding {
	const requirement = "Memory"

	totalKiB, err := memTotal(ctx, p.exec)
	if err != nil {
		return indeterminate(requirement, "Could not determine total memory",
			"Check if /proc/meminfo is readable.")
	}

	f := check.Finding{
		Requirement: requirement,
		Measured:    gib(totalKiB),
		Required:    gibRequired(required),
	}
	if belowGiB(totalKiB, required) {
		f.Outcome = check.Fail
		f.Message = fmt.Sprintf("%s memory available, %s required", f.Measured, f.Required)
		f.Suggestion = fmt.Sprintf("Increase the memory of this node to at least %s.", f.Required)
		return f
	}
	f.Outcome = check.Pass
	f.Message = fmt.Sprintf("%s memory available (%s required)", f.Measured, f.Required)
	return f
}

// memTotal returns MemTotal from /proc/meminfo in KiB.
func memTotal(ctx context.Context, exec utils.CommandExecutor) (int64, error) {
	data, err := exec.ReadFile(ctx, "/proc/meminfo")
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				return strconv.ParseInt(parts[1], 10, 64)
			}
		}
	}
	return 0, fmt.Errorf("MemTotal not found in /proc/meminfo")
}
