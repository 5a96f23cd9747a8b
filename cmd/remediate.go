// cmd/remediate.go

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/remediation"
)

func (a *App) newRemediateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remediate CATEGORY [PARAM...]",
		Short: "Run a single remediation routine",
		Long: `Run one remediation routine without a check in front of it.

Categories and their parameters:
  locale        LOCALE
  ulimits       OPEN_FILES MAX_PROCESSES [USER]
  packages      NAME...
  repositories  ID...
  java          VERSION...
  time_sync`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRemediate(cmd.Context(), o, args[0], args[1:])
		},
	}
}

func (a *App) runRemediate(ctx context.Context, o *options, name string, params []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := a.openLog(o, true)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	defer s.Close()

	req := remediation.Request{Category: remediation.ParseCategory(name), Params: params}
	log := s.log.WithField("category", req.Category.String())

	dispatcher := remediation.NewDispatcher()
	if req.Category != remediation.Unknown {
		// Unknown categories never reach a host.
		if err := a.connect(s, o); err != nil {
			return fatal(s, err)
		}
		remediation.NewHost(remediationExecutor(s.exec, o), s.log).Register(dispatcher)
	}

	log.Infof("Remediation requested: %s", strings.TrimSpace(name+" "+strings.Join(params, " ")))
	out := dispatcher.Remediate(ctx, req)

	switch {
	case out.Succeeded:
		log.Info("Remediation succeeded")
		fmt.Fprintf(a.Stdout, "Remediation %s succeeded\n", req.Category)
		if out.RequiresReboot {
			fmt.Fprintln(a.Stdout, "A reboot (or a fresh login session) is required for the change to take full effect.")
		}
		return nil
	case !out.Attempted:
		log.WithError(out.Err).Warn("Manual intervention required")
		fmt.Fprintf(a.Stdout, "Remediation %q not run: manual intervention required (%v)\n", name, out.Err)
	default:
		log.WithError(out.Err).Error("Remediation failed")
		fmt.Fprintf(a.Stdout, "Remediation %s failed: %v\nManual intervention required.\n", req.Category, out.Err)
	}
	return errChecksFailed
}
