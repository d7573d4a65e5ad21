package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/governance"
	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/internal/staleness"
)

// NewTriageCommand creates the triage subcommand.
func NewTriageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage [intake-file]",
		Short: "Gate and fan out Lane B intakes into per-repo work items",
		Long: `Run each intake in the Lane B inbox through the governance gate and
emit one work item per matched repo. Lane A-origin intakes fail closed on
missing approvals, version mismatches, stale scopes, or insufficient
knowledge; refusals leave a triage artifact and a ledger line instead of
work items. Pass a single intake file to triage just that one.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			reg, err := registry.Load(rc.Layout)
			if err != nil {
				return err
			}

			intakes, err := collectIntakes(rc, args)
			if err != nil {
				return err
			}

			if len(intakes) == 0 {
				fmt.Fprintln(cobraCmd.OutOrStdout(), "inbox is empty")

				return nil
			}

			policy := staleness.New(rc.Git, rc.Config.Staleness)
			triage := governance.NewTriage(governance.NewGate(policy))

			for _, intake := range intakes {
				result, runErr := triage.Run(cobraCmd.Context(), rc.Layout, reg.Active(), intake)
				if runErr != nil {
					return runErr
				}

				name := filepath.Base(intake)

				if !result.OK {
					fmt.Fprintf(cobraCmd.OutOrStdout(), "%s %s: %s\n",
						color.RedString("REFUSED"), name, result.ReasonCode)

					continue
				}

				fmt.Fprintf(cobraCmd.OutOrStdout(), "%s %s: %d work items\n",
					color.GreenString("triaged"), name, len(result.Items))
			}

			return nil
		},
	}

	return cmd
}

// collectIntakes resolves the intake list: an explicit file argument, or
// every regular file at the top of the Lane B inbox.
func collectIntakes(rc *runContext, args []string) ([]string, error) {
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return nil, fmt.Errorf("resolve intake path: %w", err)
		}

		return []string{abs}, nil
	}

	entries, err := os.ReadDir(rc.Layout.LaneBInbox())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read inbox: %w", err)
	}

	var intakes []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		intakes = append(intakes, filepath.Join(rc.Layout.LaneBInbox(), entry.Name()))
	}

	sort.Strings(intakes)

	return intakes, nil
}
