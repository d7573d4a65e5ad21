package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/knowledge"
	"github.com/opsgovern/lanegate/internal/layout"
)

// NewSufficiencyCommand creates the sufficiency subcommand group.
func NewSufficiencyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sufficiency",
		Short:         "Read and set per-scope knowledge sufficiency",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newSufficiencyShowCommand())
	cmd.AddCommand(newSufficiencySetCommand())

	return cmd
}

// resolveKnowledgeVersion defaults an empty version to the current pointer.
func resolveKnowledgeVersion(l *layout.Layout, knowledgeVersion string) (string, error) {
	if knowledgeVersion != "" {
		return knowledgeVersion, nil
	}

	current, err := knowledge.LoadVersion(l)
	if err != nil {
		return "", err
	}

	return current.Current, nil
}

func newSufficiencyShowCommand() *cobra.Command {
	var (
		scope            string
		knowledgeVersion string
	)

	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Print the sufficiency record and delivery verdict",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			resolved, err := resolveKnowledgeVersion(rc.Layout, knowledgeVersion)
			if err != nil {
				return err
			}

			record, err := knowledge.LoadSufficiency(rc.Layout, scope, resolved)
			if err != nil {
				return err
			}

			allowed, err := knowledge.DeliveryAllowed(rc.Layout, scope, resolved)
			if err != nil {
				return err
			}

			return printJSON(cobraCmd.OutOrStdout(), map[string]any{
				"record":           record,
				"delivery_allowed": allowed,
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "system", "scope: system or repo:<id>")
	cmd.Flags().StringVar(&knowledgeVersion, "knowledge-version", "", "version to query (default: current pointer)")

	return cmd
}

func newSufficiencySetCommand() *cobra.Command {
	var (
		scope            string
		knowledgeVersion string
		status           string
		reasons          string
	)

	cmd := &cobra.Command{
		Use:           "set",
		Short:         "Record a sufficiency verdict for (scope, version)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			resolved, err := resolveKnowledgeVersion(rc.Layout, knowledgeVersion)
			if err != nil {
				return err
			}

			return rc.withLock("sufficiency-set", func() error {
				record, setErr := knowledge.SetSufficiency(rc.Layout, scope, resolved, status, reasons, time.Now())
				if setErr != nil {
					return setErr
				}

				fmt.Fprintf(cobraCmd.OutOrStdout(), "sufficiency for %s at %s is %s\n",
					record.Scope, record.KnowledgeVersion, record.Status)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "system", "scope: system or repo:<id>")
	cmd.Flags().StringVar(&knowledgeVersion, "knowledge-version", "", "version to record (default: current pointer)")
	cmd.Flags().StringVar(&status, "status", "", "insufficient, partial, or sufficient")
	cmd.Flags().StringVar(&reasons, "reasons", "", "free-form justification")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}
