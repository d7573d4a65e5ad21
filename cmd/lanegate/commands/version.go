package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/knowledge"
	"github.com/opsgovern/lanegate/pkg/version"
)

// bumpKinds maps the CLI-facing kind names to the bump reasons recorded in
// version history.
var bumpKinds = map[string]string{
	"major": knowledge.BumpMajor,
	"minor": knowledge.BumpMinor,
	"patch": knowledge.BumpPatch,
}

// NewVersionCommand creates the version subcommand group. Bare `version`
// prints the binary build info; the subcommands manage the knowledge
// version pointer.
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "version",
		Short:         "Show build info and manage the knowledge version pointer",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cobraCmd *cobra.Command, _ []string) {
			fmt.Fprintf(cobraCmd.OutOrStdout(), "lanegate %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}

	cmd.AddCommand(newVersionShowCommand())
	cmd.AddCommand(newVersionBumpCommand())
	cmd.AddCommand(newVersionSetCommand())

	return cmd
}

func newVersionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the knowledge version pointer and its history",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			doc, err := knowledge.LoadVersion(rc.Layout)
			if err != nil {
				return err
			}

			return printJSON(cobraCmd.OutOrStdout(), doc)
		},
	}
}

func newVersionBumpCommand() *cobra.Command {
	var (
		kind  string
		scope string
		notes string
	)

	cmd := &cobra.Command{
		Use:           "bump",
		Short:         "Bump the knowledge version pointer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			bumpKind, ok := bumpKinds[kind]
			if !ok {
				return fmt.Errorf("unknown bump kind %q: want major, minor, or patch", kind)
			}

			rc, err := newRunContext()
			if err != nil {
				return err
			}

			return rc.withLock("version-bump", func() error {
				doc, bumpErr := knowledge.Bump(rc.Layout, bumpKind, scope, notes, time.Now())
				if bumpErr != nil {
					return bumpErr
				}

				fmt.Fprintf(cobraCmd.OutOrStdout(), "knowledge version is now %s\n", doc.Current)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "minor", "bump kind: major, minor, or patch")
	cmd.Flags().StringVar(&scope, "scope", "system", "scope the bump applies to")
	cmd.Flags().StringVar(&notes, "notes", "", "what changed in this version")

	return cmd
}

func newVersionSetCommand() *cobra.Command {
	var (
		toVersion string
		scope     string
		notes     string
	)

	cmd := &cobra.Command{
		Use:           "set",
		Short:         "Set the knowledge version pointer explicitly",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			return rc.withLock("version-set", func() error {
				doc, setErr := knowledge.SetExplicit(rc.Layout, toVersion, scope, notes, time.Now())
				if setErr != nil {
					return setErr
				}

				fmt.Fprintf(cobraCmd.OutOrStdout(), "knowledge version is now %s\n", doc.Current)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&toVersion, "to", "", "target version, e.g. v2 or v2.1")
	cmd.Flags().StringVar(&scope, "scope", "system", "scope the change applies to")
	cmd.Flags().StringVar(&notes, "notes", "", "why the pointer moved")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
