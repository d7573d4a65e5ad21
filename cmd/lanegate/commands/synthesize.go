package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/internal/synthesize"
)

// NewSynthesizeCommand creates the synthesize subcommand.
func NewSynthesizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "synthesize",
		Short:         "Fold per-repo scans into the system integration map and gaps",
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

			return rc.withLock("synthesize", func() error {
				integration, gaps, runErr := synthesize.New().Run(rc.Layout, reg.Active())
				if runErr != nil {
					return runErr
				}

				fmt.Fprintf(cobraCmd.OutOrStdout(),
					"synthesized %d repos: %d cross-repo contracts, %d gaps\n",
					len(integration.Inputs), len(integration.CrossRepoContracts), len(gaps.Gaps))

				return nil
			})
		},
	}

	return cmd
}
