package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/registry"
)

// seedProject creates an ops layout with a two-repo registry and points
// AI_PROJECT_ROOT at it.
func seedProject(t *testing.T) *layout.Layout {
	t.Helper()

	root := t.TempDir()

	l, err := layout.New(filepath.Join(root, "ops"))
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(l.ConfigDir(), 0o755))

	reposJSON := `{"version":1,"repos":[
		{"repo_id":"svc-a","path":"svc-a","active_branch":"main","team_id":"core","status":"active"},
		{"repo_id":"svc-b","path":"svc-b","active_branch":"main","team_id":"core","status":"active"}
	]}`
	require.NoError(t, os.WriteFile(l.ReposConfig(), []byte(reposJSON), 0o644))

	t.Setenv("AI_PROJECT_ROOT", l.OpsRoot)

	return l
}

// execute runs a command with args and captures stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer

	cmd.SetOut(&buf)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return buf.String(), err
}

func TestCommands_Exist(t *testing.T) {
	t.Parallel()

	checks := map[string]string{
		NewIndexCommand().Use:       "index",
		NewScanCommand().Use:        "scan",
		NewSynthesizeCommand().Use:  "synthesize",
		NewGraphCommand().Use:       "graph",
		NewBundleCommand().Use:      "bundle",
		NewEventsCommand().Use:      "events",
		NewStalenessCommand().Use:   "staleness",
		NewVersionCommand().Use:     "version",
		NewSufficiencyCommand().Use: "sufficiency",
		NewStatusCommand().Use:      "status",
		NewMCPCommand().Use:         "mcp",
	}

	for got, want := range checks {
		assert.Equal(t, want, got)
	}

	assert.Equal(t, "triage [intake-file]", NewTriageCommand().Use)
}

func TestMCPCommand_Flags(t *testing.T) {
	t.Parallel()

	cmd := NewMCPCommand()

	debug := cmd.Flags().Lookup("debug")
	require.NotNil(t, debug)
	assert.Equal(t, "false", debug.DefValue)

	diag := cmd.Flags().Lookup("diag-addr")
	require.NotNil(t, diag)
	assert.Empty(t, diag.DefValue)
}

func TestVersionCommand_PrintsBuildInfo(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewVersionCommand())

	require.NoError(t, err)
	assert.Contains(t, out, "lanegate dev")
}

func TestVersionBump_MovesPointer(t *testing.T) {
	seedProject(t)

	out, err := execute(t, NewVersionCommand(), "bump", "--kind", "minor", "--notes", "initial scans landed")

	require.NoError(t, err)
	assert.Contains(t, out, "knowledge version is now v0.1")
}

func TestGraphApprove_ThenStatusShowsApproved(t *testing.T) {
	seedProject(t)

	out, err := execute(t, NewGraphCommand(), "approve", "--by", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "approved by ops")

	out, err = execute(t, NewGraphCommand(), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "approved")
}

func TestSufficiencySet_ThenShow(t *testing.T) {
	seedProject(t)

	_, err := execute(t, NewSufficiencyCommand(),
		"set", "--scope", "system", "--status", "sufficient", "--reasons", "all scans fresh")
	require.NoError(t, err)

	out, err := execute(t, NewSufficiencyCommand(), "show", "--scope", "system")
	require.NoError(t, err)
	assert.Contains(t, out, `"delivery_allowed": true`)
	assert.Contains(t, out, `"status": "sufficient"`)
}

func TestTriage_EmptyInbox(t *testing.T) {
	seedProject(t)

	out, err := execute(t, NewTriageCommand())

	require.NoError(t, err)
	assert.Contains(t, out, "inbox is empty")
}

func TestSiblingIDs_ExcludesSelf(t *testing.T) {
	t.Parallel()

	active := []model.Repo{{RepoID: "svc-a"}, {RepoID: "svc-b"}, {RepoID: "svc-c"}}

	assert.Equal(t, []string{"svc-a", "svc-c"}, siblingIDs(active, "svc-b"))
}

func TestSelectRepos_UnknownRepoFails(t *testing.T) {
	l := seedProject(t)

	reg, err := registry.Load(l)
	require.NoError(t, err)

	_, err = selectRepos(reg, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	repos, err := selectRepos(reg, "")
	require.NoError(t, err)
	assert.Len(t, repos, 2)
}

func TestLoadProjectDeps_MissingFileIsEmpty(t *testing.T) {
	l := seedProject(t)

	deps, err := loadProjectDeps(l)

	require.NoError(t, err)
	assert.Empty(t, deps)
}
