// pkg/checks/preinstall/limits.go

package preinstall

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

// LimitsProbe checks the pam_limits configuration of the install user.
// Configured values are read rather than the live ulimit of this session,
// so a re-check after the limits file was rewritten sees the new values.
type LimitsProbe struct {
	exec utils.CommandExecutor
}

type limitItem struct {
	item     string
	label    string
	ulimit   string
	required int
}

// Probe implements check.Probe.
func (p *LimitsProbe) Probe(ctx context.Context, params check.Params) check.Report {
	var rep check.Report

	openFiles, _ := params.Int(config.KeyOpenFiles)
	maxProcs, _ := params.Int(config.KeyMaxProcesses)
	if openFiles == 0 && maxProcs == 0 {
		return rep
	}
	user, ok := params.String(config.KeyLimitsUser)
	if !ok {
		user = config.DefaultLimitsUser
	}

	entries, err := utils.ReadLimits(ctx, p.exec)
	if err != nil {
		entries = nil
	}

	failed := false
	for _, it := range []limitItem{
		{item: "nofile", label: "Open files", ulimit: "-Sn", required: openFiles},
		{item: "nproc", label: "Max user processes", ulimit: "-Su", required: maxProcs},
	} {
		if it.required == 0 {
			continue
		}
		f := p.checkItem(ctx, entries, user, it)
		failed = failed || f.Outcome == check.Fail
		rep.Add(f)
	}

	if failed {
		// The routine rewrites both items, so pass every configured value.
		rep.AddFix(remediation.UlimitsRequest(openFiles, maxProcs, user))
	}
	return rep
}

func (p *LimitsProbe) checkItem(ctx context.Context, entries []utils.LimitEntry, user string, it limitItem) check.Finding {
	requirement := fmt.Sprintf("%s (%s) for %s", it.label, it.item, user)

	soft, hard, ok := utils.EffectiveLimit(entries, user, it.item)
	source := "limits configuration"
	if !ok {
		live, err := p.liveLimit(ctx, it.ulimit)
		if err != nil {
			return indeterminate(requirement, fmt.Sprintf("Could not determine the %s limit", it.item),
				fmt.Sprintf("Check %s and 'ulimit %s' manually.", utils.LimitsConf, it.ulimit))
		}
		soft, hard, source = live, live, "current session"
	}

	effective := min(soft, hard)
	f := check.Finding{
		Requirement: requirement,
		Measured:    utils.FormatLimit(effective),
		Required:    strconv.Itoa(it.required),
	}
	if effective < int64(it.required) {
		f.Outcome = check.Fail
		f.Message = fmt.Sprintf("%s limit for %s is %s (soft %s, hard %s, from %s), %d required",
			it.item, user, f.Measured, utils.FormatLimit(soft), utils.FormatLimit(hard), source, it.required)
		f.Suggestion = fmt.Sprintf("Add '%s - %s %d' to %s or run with --auto-fix.", user, it.item, it.required, remediation.DefaultLimitsFile)
		return f
	}
	f.Outcome = check.Pass
	f.Message = fmt.Sprintf("%s limit for %s is %s (%d required)", it.item, user, f.Measured, it.required)
	return f
}

func (p *LimitsProbe) liveLimit(ctx context.Context, flag string) (int64, error) {
	out, err := p.exec.RunCommand(ctx, "sh", "-c", "ulimit "+flag)
	if err != nil {
		return 0, err
	}
	v := strings.TrimSpace(out)
	if v == "unlimited" {
		return utils.Unlimited, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
