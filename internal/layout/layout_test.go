package layout_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/internal/layout"
)

func TestNew_RequiresOpsSuffix(t *testing.T) {
	t.Parallel()

	_, err := layout.New("/project/ai")

	require.ErrorIs(t, err, layout.ErrProjectRootShape)

	_, err = layout.New("relative/ops")

	require.ErrorIs(t, err, layout.ErrProjectRootShape)
}

func TestNew_DerivesSiblingRoots(t *testing.T) {
	t.Parallel()

	l, err := layout.New("/project/ops")

	require.NoError(t, err)
	assert.Equal(t, "/project/ops", l.OpsRoot)
	assert.Equal(t, filepath.Join("/project", "knowledge"), l.KnowledgeRoot)
	assert.Equal(t, filepath.Join("/project", "repos"), l.ReposRoot)
}

func TestWellKnownPaths(t *testing.T) {
	t.Parallel()

	l, err := layout.New("/p/ops")
	require.NoError(t, err)

	assert.Equal(t, "/p/ops/ai/lane_a/locks/lane-a-orchestrate.lock.json", l.OrchestrateLock())
	assert.Equal(t, "/p/ops/ai/lane_a/events/segments", l.EventSegmentsDir())
	assert.Equal(t, "/p/ops/ai/lane_a/bundles/LATEST.json", l.LatestBundlesPath())
	assert.Equal(t, "/p/ops/config/REPOS.json", l.ReposConfig())
	assert.Equal(t, "/p/knowledge/evidence/index/repos/svc-a/repo_index.json", l.RepoIndexPath("svc-a"))
	assert.Equal(t, "/p/knowledge/ssot/repos/svc-a/scan.json", l.ScanPath("svc-a"))
	assert.Equal(t, "/p/ops/ai/lane_a/intake_approvals/processed", l.IntakeApprovalsProcessedDir())
}

func TestFromEnv(t *testing.T) {
	t.Setenv(layout.EnvProjectRoot, "/p/ops")

	l, err := layout.FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "/p/ops", l.OpsRoot)

	t.Setenv(layout.EnvProjectRoot, "")

	_, err = layout.FromEnv()

	require.ErrorIs(t, err, layout.ErrProjectRootUnset)
}

func TestFSSafeTimestamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "20260210_120000", layout.FSSafeTimestamp("2026-02-10T12:00:00Z"))
}
