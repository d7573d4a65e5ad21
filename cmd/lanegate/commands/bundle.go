package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/bundle"
	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/internal/staleness"
)

// NewBundleCommand creates the bundle subcommand.
func NewBundleCommand() *cobra.Command {
	var (
		scope          string
		outBase        string
		forceStale     bool
		overrideBy     string
		overrideReason string
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Seal a reproducible knowledge bundle for a scope",
		Long: `Collect the scope's knowledge files, normalize them, and seal them
under a content-addressed bundle id. A stale scope refuses to bundle unless
--force-stale carries an attributed override.`,
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
			builder := bundle.New(rc.Git, policy)

			return rc.withLock("bundle", func() error {
				result, buildErr := builder.Build(cobraCmd.Context(), rc.Layout, bundle.Request{
					Scope:   scope,
					Repos:   reg.Active(),
					OutBase: outBase,
					Override: staleness.Override{
						Force:  forceStale,
						By:     overrideBy,
						Reason: overrideReason,
					},
				})
				if buildErr != nil {
					return buildErr
				}

				fmt.Fprintf(cobraCmd.OutOrStdout(), "sealed %s (%s files)\n",
					result.BundleID, humanize.Comma(int64(result.FileCount)))
				fmt.Fprintf(cobraCmd.OutOrStdout(), "dir: %s\n", result.Dir)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "system", "bundle scope: system or repo:<id>")
	cmd.Flags().StringVar(&outBase, "out-base", "", "output base directory (default <lane_a>/bundles)")
	cmd.Flags().BoolVar(&forceStale, "force-stale", false, "bundle even when the scope is stale")
	cmd.Flags().StringVar(&overrideBy, "by", "", "who authorizes the stale override")
	cmd.Flags().StringVar(&overrideReason, "reason", "", "why the stale override is justified")

	return cmd
}
