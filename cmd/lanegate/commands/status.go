package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/knowledge"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/internal/staleness"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// NewStatusCommand creates the status subcommand.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show the knowledge base at a glance",
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

			out := cobraCmd.OutOrStdout()

			doc, err := knowledge.LoadVersion(rc.Layout)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "knowledge version: %s\n", doc.Current)

			policy := staleness.New(rc.Git, rc.Config.Staleness)

			verdict, err := policy.Evaluate(cobraCmd.Context(), rc.Layout, reg.Active(), model.ScopeSystem)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "system freshness: %s\n", freshnessLabel(verdict))

			latest := loadLatestBundles(rc)

			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.AppendHeader(table.Row{"Repo", "Team", "Branch", "Scanned", "Facts", "Bundle"})

			for _, repo := range reg.Active() {
				tw.AppendRow(repoStatusRow(rc, repo, latest))
			}

			tw.Render()

			return nil
		},
	}

	return cmd
}

func freshnessLabel(verdict *model.Staleness) string {
	switch {
	case verdict.HardStale:
		return color.RedString("hard stale")
	case verdict.Stale:
		return color.YellowString("stale")
	default:
		return color.GreenString("fresh")
	}
}

// loadLatestBundles reads LATEST.json; a missing file means nothing has
// been sealed yet.
func loadLatestBundles(rc *runContext) model.LatestBundles {
	latest := model.LatestBundles{Scopes: map[string]model.LatestBundleEntry{}}

	err := persist.ReadJSON(rc.Layout.LatestBundlesPath(), &latest)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return model.LatestBundles{Scopes: map[string]model.LatestBundleEntry{}}
	}

	return latest
}

func repoStatusRow(rc *runContext, repo model.Repo, latest model.LatestBundles) table.Row {
	scanned := "never"
	facts := "-"

	var doc model.KnowledgeScan

	err := persist.ReadJSON(rc.Layout.ScanPath(repo.RepoID), &doc)
	if err == nil {
		facts = humanize.Comma(int64(len(doc.Facts)))

		ts, parseErr := time.Parse(time.RFC3339, doc.ScannedAt)
		if parseErr == nil {
			scanned = humanize.Time(ts)
		} else {
			scanned = doc.ScannedAt
		}
	}

	bundleID := "-"
	if entry, ok := latest.Scopes["repo:"+repo.RepoID]; ok {
		bundleID = entry.BundleID
	}

	return table.Row{repo.RepoID, repo.TeamID, repo.ActiveBranch, scanned, facts, bundleID}
}
