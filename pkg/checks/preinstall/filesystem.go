// pkg/checks/preinstall/filesystem.go

package preinstall

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

// FilesystemProbe checks the data mount and free space. It is the only
// check that inspects the data mount.
type FilesystemProbe struct {
	exec utils.CommandExecutor
}

// mountInfo is one line of df -PTk output.
type mountInfo struct {
	Device       string
	Type         string
	AvailableKiB int64
	MountedOn    string
}

// Probe implements check.Probe.
func (p *FilesystemProbe) Probe(ctx context.Context, params check.Params) check.Report {
	var rep check.Report

	dataMount, hasData := params.String(config.KeyDataMount)
	dataFree, _ := params.Float(config.KeyDataMinFreeGB)
	rootFree, hasRoot := params.Float(config.KeyRootMinFreeGB)
	tmpFree, hasTmp := params.Float(config.KeyTmpMinFreeGB)
	if !hasData && !hasRoot && !hasTmp {
		return rep
	}

	if !p.exec.LookPath(ctx, "df") {
		rep.Add(indeterminate("Filesystem", "The df command is not available",
			"Install coreutils to inspect filesystems."))
		return rep
	}

	if hasData {
		p.checkDataMount(ctx, &rep, path.Clean(dataMount), dataFree, params.Strings(config.KeyFilesystemTypes))
	}
	if hasRoot {
		p.checkFree(ctx, &rep, "/", rootFree)
	}
	if hasTmp {
		p.checkFree(ctx, &rep, "/tmp", tmpFree)
	}
	return rep
}

func (p *FilesystemProbe) checkDataMount(ctx context.Context, rep *check.Report, mount string, minFree float64, types []string) {
	requirement := "Data mount " + mount

	info, err := p.df(ctx, mount)
	if err != nil {
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Fail,
			Measured:    "missing",
			Required:    "mounted",
			Message:     fmt.Sprintf("Data mount %s does not exist", mount),
			Suggestion:  fmt.Sprintf("Create and mount the data filesystem on %s.", mount),
		})
		return
	}

	if info.MountedOn != mount {
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Fail,
			Measured:    "part of " + info.MountedOn,
			Required:    "separate mount point",
			Message:     fmt.Sprintf("%s is not a separate mount point (it is on %s)", mount, info.MountedOn),
			Suggestion:  fmt.Sprintf("Mount a dedicated filesystem on %s.", mount),
		})
	} else {
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Pass,
			Measured:    info.Device,
			Message:     fmt.Sprintf("%s is mounted from %s", mount, info.Device),
		})
	}

	if len(types) > 0 {
		f := check.Finding{
			Requirement: "Filesystem type of " + mount,
			Measured:    info.Type,
			Required:    strings.Join(types, ", "),
		}
		if slices.Contains(types, info.Type) {
			f.Outcome = check.Pass
			f.Message = fmt.Sprintf("%s uses %s", mount, info.Type)
		} else {
			f.Outcome = check.Fail
			f.Message = fmt.Sprintf("%s uses %s, required one of %s", mount, info.Type, f.Required)
			f.Suggestion = fmt.Sprintf("Reformat %s with one of: %s.", mount, f.Required)
		}
		rep.Add(f)
	}

	if minFree > 0 {
		rep.Add(freeFinding(mount, info, minFree))
	}
}

func (p *FilesystemProbe) checkFree(ctx context.Context, rep *check.Report, mount string, minFree float64) {
	info, err := p.df(ctx, mount)
	if err != nil {
		rep.Add(indeterminate("Free space on "+mount, fmt.Sprintf("Could not determine free space on %s", mount),
			fmt.Sprintf("Run 'df -h %s' manually.", mount)))
		return
	}
	rep.Add(freeFinding(mount, info, minFree))
}

func freeFinding(mount string, info mountInfo, minFree float64) check.Finding {
	f := check.Finding{
		Requirement: "Free space on " + mount,
		Measured:    gib(info.AvailableKiB),
		Required:    gibRequired(minFree),
	}
	if belowGiB(info.AvailableKiB, minFree) {
		f.Outcome = check.Fail
		f.Message = fmt.Sprintf("%s free on %s, %s required", f.Measured, mount, f.Required)
		f.Suggestion = fmt.Sprintf("Free up or extend %s to at least %s available.", mount, f.Required)
		return f
	}
	f.Outcome = check.Pass
	f.Message = fmt.Sprintf("%s free on %s (%s required)", f.Measured, mount, f.Required)
	return f
}

func (p *FilesystemProbe) df(ctx context.Context, target string) (mountInfo, error) {
	out, err := p.exec.RunCommand(ctx, "df", "-PTk", target)
	if err != nil {
		return mountInfo{}, err
	}
	return parseDF(out)
}

// parseDF reads the data line of POSIX df -T output:
//
//	Filesystem Type 1024-blocks Used Available Capacity Mounted on
func parseDF(out string) (mountInfo, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return mountInfo{}, fmt.Errorf("unexpected df output: %q", out)
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 7 {
		return mountInfo{}, fmt.Errorf("unexpected df line: %q", lines[len(lines)-1])
	}
	avail, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return mountInfo{}, fmt.Errorf("invalid available blocks %q: %w", fields[4], err)
	}
	return mountInfo{
		Device:       fields[0],
		Type:         fields[1],
		AvailableKiB: avail,
		MountedOn:    strings.Join(fields[6:], " "),
	}, nil
}
