package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/eventlog"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/pkg/ghcli"
)

// NewEventsCommand creates the events subcommand group.
func NewEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "events",
		Short:         "Append to and read the merge event log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newEventsLogCommand())
	cmd.AddCommand(newEventsSummaryCommand())
	cmd.AddCommand(newEventsCheckpointCommand())

	return cmd
}

func newEventsLogCommand() *cobra.Command {
	var (
		repoID     string
		prNumber   int
		mergeSHA   string
		baseBranch string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:           "log",
		Short:         "Append one merge event to the current segment",
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

			gh := &ghcli.Client{Timeout: time.Duration(rc.Config.Git.ExternalTimeoutMS) * time.Millisecond}
			producer := eventlog.NewProducer(rc.Git, gh)

			if baseBranch == "" {
				baseBranch = repos[0].ActiveBranch
			}

			event := model.MergeEvent{
				RepoID:         repoID,
				PRNumber:       prNumber,
				MergeCommitSHA: mergeSHA,
				BaseBranch:     baseBranch,
			}

			result, err := producer.LogMergeEvent(cobraCmd.Context(), rc.Layout, event, eventlog.LogOptions{
				RepoAbs: rc.Layout.RepoAbs(repos[0].Path),
				DryRun:  dryRun,
			})
			if err != nil {
				return err
			}

			if dryRun {
				return printJSON(cobraCmd.OutOrStdout(), result.Event)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "logged %s to %s (paths via %s)\n",
				result.Event.ID, result.SegmentPath, result.PathSource)

			return nil
		},
	}

	cmd.Flags().StringVar(&repoID, "repo-id", "", "repo the merge landed in")
	cmd.Flags().IntVar(&prNumber, "pr", 0, "pull request number")
	cmd.Flags().StringVar(&mergeSHA, "sha", "", "merge commit sha")
	cmd.Flags().StringVar(&baseBranch, "base", "", "base branch (default: the repo's active branch)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and print the event without appending")
	_ = cmd.MarkFlagRequired("repo-id")
	_ = cmd.MarkFlagRequired("pr")
	_ = cmd.MarkFlagRequired("sha")

	return cmd
}

func newEventsSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "summary",
		Short:         "Rebuild the latest-merge-per-repo summary from all segments",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			summary, warnings, err := eventlog.NewSummarizer().Run(rc.Layout)
			if err != nil {
				return err
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "summarized %d repos (%d malformed lines skipped)\n",
				len(summary.MergeEvents), warnings)

			return nil
		},
	}
}

func newEventsCheckpointCommand() *cobra.Command {
	var (
		consumer string
		advance  bool
	)

	cmd := &cobra.Command{
		Use:           "checkpoint",
		Short:         "Read events since a consumer's checkpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			checkpoint, err := eventlog.LoadCheckpoint(rc.Layout, consumer)
			if err != nil {
				return err
			}

			events, next, err := eventlog.ReadSince(rc.Layout, checkpoint)
			if err != nil {
				return err
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "%d new events for %s since %s:%d\n",
				len(events), consumer, checkpoint.LastReadSegment, checkpoint.LastReadOffset)

			if !advance {
				return nil
			}

			err = eventlog.SaveCheckpoint(rc.Layout, next, time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "checkpoint advanced to %s:%d\n",
				next.LastReadSegment, next.LastReadOffset)

			return nil
		},
	}

	cmd.Flags().StringVar(&consumer, "consumer", "", "consumer name the checkpoint belongs to")
	cmd.Flags().BoolVar(&advance, "advance", false, "persist the new checkpoint after reading")
	_ = cmd.MarkFlagRequired("consumer")

	return cmd
}
