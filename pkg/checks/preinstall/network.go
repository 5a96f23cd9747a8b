// pkg/checks/preinstall/network.go

package preinstall

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/config"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/utils"
)

// DefaultConnectTimeout bounds every connectivity test.
const DefaultConnectTimeout = 5 * time.Second

// NetworkProbe checks required hosts, internet access and time sync.
// Internet access is informational: its failures are always warnings.
type NetworkProbe struct {
	exec           utils.CommandExecutor
	connectTimeout time.Duration
}

// NewNetworkProbe creates a network probe with the default connect timeout.
func NewNetworkProbe(exec utils.CommandExecutor) *NetworkProbe {
	return &NetworkProbe{exec: exec, connectTimeout: DefaultConnectTimeout}
}

// Probe implements check.Probe.
func (p *NetworkProbe) Probe(ctx context.Context, params check.Params) check.Report {
	var rep check.Report
	for _, target := range params.Strings(config.KeyRequiredHosts) {
		rep.Add(p.checkHost(ctx, target))
	}
	if url, ok := params.String(config.KeyInternetURL); ok {
		rep.Add(p.checkInternet(ctx, url))
	}
	if want, _ := params.Bool(config.KeyTimeSync); want {
		p.checkTimeSync(ctx, &rep)
	}
	return rep
}

func (p *NetworkProbe) seconds() string {
	return strconv.Itoa(max(1, int(p.connectTimeout/time.Second)))
}

func (p *NetworkProbe) checkHost(ctx context.Context, target string) check.Finding {
	requirement := "Reachability of " + target
	host, port := splitHostPort(target)

	f := check.Finding{Requirement: requirement, Required: "reachable"}
	if port != "" {
		if !p.exec.LookPath(ctx, "bash") || !p.exec.LookPath(ctx, "timeout") {
			return indeterminate(requirement, "bash and timeout are required for TCP tests",
				"Install bash and coreutils, or test the port manually with nc.")
		}
		_, err := p.exec.RunCommand(ctx, "timeout", p.seconds(), "bash", "-c",
			"<"+utils.ShellQuote("/dev/tcp/"+host+"/"+port))
		if err != nil {
			f.Outcome = check.Fail
			f.Measured = "unreachable"
			f.Message = fmt.Sprintf("Cannot connect to %s:%s", host, port)
			f.Suggestion = fmt.Sprintf("Check routing and firewall rules towards %s port %s.", host, port)
			return f
		}
		f.Outcome = check.Pass
		f.Measured = "reachable"
		f.Message = fmt.Sprintf("Connected to %s:%s", host, port)
		return f
	}

	if !p.exec.LookPath(ctx, "ping") {
		return indeterminate(requirement, "The ping command is not available",
			"Install iputils or configure host:port to test over TCP.")
	}
	if _, err := p.exec.RunCommand(ctx, "ping", "-c", "1", "-W", p.seconds(), host); err != nil {
		f.Outcome = check.Fail
		f.Measured = "unreachable"
		f.Message = fmt.Sprintf("Host %s does not answer ping", host)
		f.Suggestion = fmt.Sprintf("Verify name resolution and routing for %s.", host)
		return f
	}
	f.Outcome = check.Pass
	f.Measured = "reachable"
	f.Message = fmt.Sprintf("Host %s answers ping", host)
	return f
}

// splitHostPort accepts "host", "host:port" and "[v6]:port".
func splitHostPort(target string) (string, string) {
	if host, port, err := net.SplitHostPort(target); err == nil {
		return host, port
	}
	return strings.Trim(target, "[]"), ""
}

// checkInternet never fails: internet access is not mandatory for
// installation.
func (p *NetworkProbe) checkInternet(ctx context.Context, url string) check.Finding {
	const requirement = "Internet connectivity"

	if !p.exec.LookPath(ctx, "curl") {
		return indeterminate(requirement, "The curl command is not available",
			"Install curl to test internet connectivity.")
	}
	out, err := p.exec.RunCommand(ctx, "curl", "-sS", "-o", "/dev/null", "-w", "%{http_code}",
		"--max-time", p.seconds(), url)
	code := strings.TrimSpace(out)
	if err != nil || code == "" || code == "000" {
		return check.Finding{
			Requirement: requirement,
			Outcome:     check.Warn,
			Measured:    "unreachable",
			Required:    url,
			Message:     fmt.Sprintf("%s is not reachable (informational)", url),
			Suggestion:  "Configure a proxy if the installation needs internet access.",
		}
	}
	return check.Finding{
		Requirement: requirement,
		Outcome:     check.Pass,
		Measured:    "HTTP " + code,
		Required:    url,
		Message:     fmt.Sprintf("%s answered HTTP %s", url, code),
	}
}

func (p *NetworkProbe) checkTimeSync(ctx context.Context, rep *check.Report) {
	const requirement = "Time synchronisation"

	if !p.exec.LookPath(ctx, "systemctl") {
		rep.Add(indeterminate(requirement, "systemctl is not available to inspect time sync services",
			"Verify manually that chronyd or ntpd is running."))
		return
	}
	if svc, ok := utils.ActiveTimeSyncService(ctx, p.exec); ok {
		rep.Add(check.Finding{
			Requirement: requirement,
			Outcome:     check.Pass,
			Measured:    svc,
			Required:    "active",
			Message:     fmt.Sprintf("%s is active", svc),
		})
		return
	}
	rep.Add(check.Finding{
		Requirement: requirement,
		Outcome:     check.Fail,
		Measured:    "inactive",
		Required:    strings.Join(utils.TimeSyncServices, " or "),
		Message:     "No time synchronisation service is active",
		Suggestion:  "Enable chronyd with 'systemctl enable --now chronyd' or run with --auto-fix.",
	})
	rep.AddFix(remediation.TimeSyncRequest())
}
