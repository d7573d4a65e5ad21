package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/indexer"
	"github.com/opsgovern/lanegate/internal/registry"
)

// NewIndexCommand creates the index subcommand.
func NewIndexCommand() *cobra.Command {
	var repoID string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build repo indexes and contract fingerprints",
		Long: `Walk every active repo at its active branch head and write
repo_index.json plus repo_fingerprints.json under the knowledge root.`,
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

			repos, err := selectRepos(reg, repoID)
			if err != nil {
				return err
			}

			deps, err := loadProjectDeps(rc.Layout)
			if err != nil {
				return err
			}

			return rc.withLock("index", func() error {
				ix := indexer.New(rc.Git)

				for _, repo := range repos {
					index, fingerprints, buildErr := ix.Build(cobraCmd.Context(), indexer.Request{
						RepoID:         repo.RepoID,
						RepoAbs:        rc.Layout.RepoAbs(repo.Path),
						ActiveBranch:   repo.ActiveBranch,
						SiblingRepoIDs: siblingIDs(reg.Active(), repo.RepoID),
						DependsOn:      deps[repo.RepoID],
						Workers:        rc.Config.Pipeline.Workers,
					})
					if buildErr != nil {
						return buildErr
					}

					writeErr := indexer.Write(rc.Layout, index, fingerprints)
					if writeErr != nil {
						return writeErr
					}

					fmt.Fprintf(cobraCmd.OutOrStdout(), "indexed %s at %s (%s fingerprints)\n",
						repo.RepoID, index.CommitSHA, humanize.Comma(int64(len(index.Fingerprints))))
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&repoID, "repo-id", "", "index a single repo instead of every active repo")

	return cmd
}
