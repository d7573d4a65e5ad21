package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/depgraph"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// NewGraphCommand creates the graph subcommand group.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "graph",
		Short:         "Inspect and approve the repo dependency graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newGraphStatusCommand())
	cmd.AddCommand(newGraphApproveCommand())

	return cmd
}

func newGraphStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the effective dependency graph and its approval state",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			effective, err := depgraph.Load(rc.Layout)
			if err != nil {
				return err
			}

			status := color.YellowString(effective.Status)
			if effective.Approved {
				status = color.GreenString(effective.Status)
			}

			out := cobraCmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s\n", status)
			fmt.Fprintf(out, "nodes: %d, edges: %d, external projects: %d\n",
				len(effective.Graph.Nodes), len(effective.Graph.Edges),
				len(effective.Graph.ExternalProjects))

			if len(effective.Graph.Edges) == 0 {
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.AppendHeader(table.Row{"From", "To", "Type"})

			for _, edge := range effective.Graph.Edges {
				tw.AppendRow(table.Row{edge.From, edge.To, edge.Type})
			}

			tw.Render()

			return nil
		},
	}
}

func newGraphApproveCommand() *cobra.Command {
	var approvedBy string

	cmd := &cobra.Command{
		Use:           "approve",
		Short:         "Approve the dependency graph override, unblocking scans",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			return rc.withLock("graph-approve", func() error {
				var override model.GraphOverride

				readErr := persist.ReadJSON(rc.Layout.DependencyGraphOverridePath(), &override)
				if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
					return readErr
				}

				override.Version = model.DocVersion
				override.Status = model.OverrideStatusApproved
				override.ApprovedBy = approvedBy
				override.ApprovedAt = model.NowRFC3339(time.Now())

				writeErr := persist.WriteJSON(rc.Layout.DependencyGraphOverridePath(), &override)
				if writeErr != nil {
					return writeErr
				}

				fmt.Fprintf(cobraCmd.OutOrStdout(), "dependency graph approved by %s\n", approvedBy)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&approvedBy, "by", "", "who is approving the graph")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}
