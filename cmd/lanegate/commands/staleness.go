package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/internal/staleness"
)

// NewStalenessCommand creates the staleness subcommand.
func NewStalenessCommand() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:           "staleness",
		Short:         "Evaluate knowledge freshness for a scope",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			reg, err := registry.Load(rc.Layout)
			if err != nil {
				return err
			}

			policy := staleness.New(rc.Git, rc.Config.Staleness)

			verdict, err := policy.Evaluate(cobraCmd.Context(), rc.Layout, reg.Active(), scope)
			if err != nil {
				return err
			}

			out := cobraCmd.OutOrStdout()

			switch {
			case verdict.HardStale:
				fmt.Fprintf(out, "%s: %s\n", scope, color.RedString("hard stale"))
			case verdict.Stale:
				fmt.Fprintf(out, "%s: %s\n", scope, color.YellowString("stale"))
			default:
				fmt.Fprintf(out, "%s: %s\n", scope, color.GreenString("fresh"))
			}

			for _, reason := range verdict.Reasons {
				fmt.Fprintf(out, "  - %s\n", reason)
			}

			for _, detail := range verdict.Details {
				fmt.Fprintf(out, "    %s\n", detail)
			}

			if len(verdict.StaleRepos) > 0 {
				fmt.Fprintf(out, "stale repos: %v\n", verdict.StaleRepos)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "system", "scope to evaluate: system or repo:<id>")

	return cmd
}
