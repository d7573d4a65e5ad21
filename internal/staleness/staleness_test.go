package staleness_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/internal/config"
	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/eventlog"
	"github.com/opsgovern/lanegate/internal/indexer"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/ledger"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/scan"
	"github.com/opsgovern/lanegate/internal/staleness"
	"github.com/opsgovern/lanegate/pkg/gitcli"
	"github.com/opsgovern/lanegate/pkg/persist"
)

var graceCfg = config.StalenessConfig{SoftWindowHours: 24, SoftMaxMerges: 3}

// seedScanned builds a project with one fully indexed and scanned repo.
func seedScanned(t *testing.T) (*layout.Layout, model.Repo) {
	t.Helper()

	root := t.TempDir()

	l, err := layout.New(filepath.Join(root, "ops"))
	require.NoError(t, err)

	repoDir := filepath.Join(root, "repos", "svc-a")
	require.NoError(t, os.MkdirAll(repoDir, 0o755))

	gitcli.RunTestGit(t, repoDir, "init", "-q", "-b", "main")
	gitcli.CommitTestFiles(t, repoDir, map[string]string{
		"package.json": `{"name":"svc-a"}` + "\n",
		"src/index.ts": "export {}\n",
	}, "initial")

	repo := model.Repo{RepoID: "svc-a", Path: "svc-a", ActiveBranch: "main", Status: model.RepoStatusActive}

	index, fingerprints, err := indexer.New(gitcli.NewClient()).Build(context.Background(), indexer.Request{
		RepoID: repo.RepoID, RepoAbs: repoDir, ActiveBranch: "main",
	})
	require.NoError(t, err)
	require.NoError(t, indexer.Write(l, index, fingerprints))

	_, err = scan.New(gitcli.NewClient()).ScanRepo(context.Background(), l, repo)
	require.NoError(t, err)

	return l, repo
}

func stalenessNew() *staleness.Policy {
	return staleness.New(gitcli.NewClient(), graceCfg)
}

func stalenessOverride(force bool, by, reason string) staleness.Override {
	return staleness.Override{Force: force, By: by, Reason: reason}
}

func TestEvaluate_FreshRepo(t *testing.T) {
	t.Parallel()

	l, repo := seedScanned(t)

	verdict, err := stalenessNew().Evaluate(context.Background(), l, []model.Repo{repo}, "system")

	require.NoError(t, err)
	assert.False(t, verdict.Stale)
	assert.False(t, verdict.HardStale)
	assert.Empty(t, verdict.StaleRepos)
	assert.True(t, persist.Exists(l.StalenessPath()))
}

func TestEvaluate_HeadMovedIsSoftWithinGrace(t *testing.T) {
	t.Parallel()

	l, repo := seedScanned(t)

	gitcli.CommitTestFiles(t, l.RepoAbs(repo.Path), map[string]string{"README.md": "new\n"}, "doc change")

	verdict, err := stalenessNew().Evaluate(context.Background(), l, []model.Repo{repo}, "system")

	require.NoError(t, err)
	assert.True(t, verdict.Stale)
	assert.False(t, verdict.HardStale)
	assert.Equal(t, []string{"svc-a"}, verdict.StaleRepos)
	assert.Contains(t, verdict.Reasons, "svc-a:"+staleness.ReasonHeadMoved)
	assert.Contains(t, strings.Join(verdict.Details, "\n"), "head moved")

	assert.FileExists(t, filepath.Join(l.RefreshHintsDir(), "RH-system.json"))
}

func TestEvaluate_HardAfterGraceWindow(t *testing.T) {
	t.Parallel()

	l, repo := seedScanned(t)

	gitcli.CommitTestFiles(t, l.RepoAbs(repo.Path), map[string]string{"README.md": "new\n"}, "doc change")

	future := func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }

	verdict, err := stalenessNew().WithClock(future).Evaluate(context.Background(), l, []model.Repo{repo}, "system")

	require.NoError(t, err)
	assert.True(t, verdict.Stale)
	assert.True(t, verdict.HardStale)
}

func TestEvaluate_HardPastMergeBudget(t *testing.T) {
	t.Parallel()

	l, repo := seedScanned(t)

	producer := eventlog.NewProducer(gitcli.NewClient(), nil)

	for i := 0; i < 4; i++ {
		_, err := producer.LogMergeEvent(context.Background(), l, model.MergeEvent{
			RepoID:         repo.RepoID,
			PRNumber:       i + 1,
			MergeCommitSHA: "abcdef0123456789",
			BaseBranch:     "main",
			AffectedPaths:  []string{"x.txt"},
			Timestamp:      "2999-01-01T00:00:00Z",
		}, eventlog.LogOptions{})
		require.NoError(t, err)
	}

	verdict, err := stalenessNew().Evaluate(context.Background(), l, []model.Repo{repo}, "repo:svc-a")

	require.NoError(t, err)
	assert.True(t, verdict.Stale)
	assert.True(t, verdict.HardStale)
	assert.Contains(t, verdict.Reasons, "svc-a:"+staleness.ReasonMergeAfterScan)
	assert.Contains(t, strings.Join(verdict.Details, "\n"), "4 merge event(s)")

	assert.FileExists(t, filepath.Join(l.RefreshHintsDir(), "RH-repo-svc-a.json"))
}

func TestEvaluate_MergeAfterRefreshEmitsMachineReason(t *testing.T) {
	t.Parallel()

	l, repo := seedScanned(t)

	producer := eventlog.NewProducer(gitcli.NewClient(), nil)

	_, err := producer.LogMergeEvent(context.Background(), l, model.MergeEvent{
		RepoID:         repo.RepoID,
		PRNumber:       7,
		MergeCommitSHA: "abcdef0123456789",
		BaseBranch:     "main",
		AffectedPaths:  []string{"src/index.ts"},
		Timestamp:      "2999-01-01T00:00:00Z",
	}, eventlog.LogOptions{})
	require.NoError(t, err)

	verdict, err := stalenessNew().Evaluate(context.Background(), l, []model.Repo{repo}, "repo:svc-a")

	require.NoError(t, err)
	assert.True(t, verdict.Stale)
	assert.Equal(t, []string{"svc-a:merge_after_last_refresh"}, verdict.Reasons)
	assert.Equal(t, []string{"svc-a: 1 merge event(s) after last scan"}, verdict.Details)
}

func TestEvaluate_FingerprintDriftWithDetail(t *testing.T) {
	t.Parallel()

	l, repo := seedScanned(t)

	gitcli.CommitTestFiles(t, l.RepoAbs(repo.Path),
		map[string]string{"package.json": `{"name":"svc-a","version":"9.9.9"}` + "\n"}, "bump")

	verdict, err := stalenessNew().Evaluate(context.Background(), l, []model.Repo{repo}, "repo:svc-a")

	require.NoError(t, err)
	assert.True(t, verdict.Stale)

	assert.Contains(t, verdict.Reasons, "svc-a:"+staleness.ReasonFingerprintDrift)

	joined := strings.Join(verdict.Details, "\n")
	assert.Contains(t, joined, "fingerprint drift in package.json")
	assert.Contains(t, joined, "+")
}

func TestEvaluate_NeverScannedIsHard(t *testing.T) {
	t.Parallel()

	l, err := layout.New(filepath.Join(t.TempDir(), "ops"))
	require.NoError(t, err)

	repo := model.Repo{RepoID: "svc-a", Path: "svc-a", ActiveBranch: "main", Status: model.RepoStatusActive}

	verdict, err := stalenessNew().Evaluate(context.Background(), l, []model.Repo{repo}, "system")

	require.NoError(t, err)
	assert.True(t, verdict.Stale)
	assert.True(t, verdict.HardStale)
	assert.Equal(t, []string{"svc-a:" + staleness.ReasonNeverScanned}, verdict.Reasons)
	assert.Contains(t, verdict.Details[0], "never scanned")
}

func TestEvaluate_UnknownRepoScope(t *testing.T) {
	t.Parallel()

	l, repo := seedScanned(t)

	_, err := stalenessNew().Evaluate(context.Background(), l, []model.Repo{repo}, "repo:svc-zz")

	require.Error(t, err)
	assert.Equal(t, contract.KindMissingInput, contract.KindOf(err))
}

func TestGuard_RefusesAndWritesDecisionPacket(t *testing.T) {
	t.Parallel()

	l, _ := seedScanned(t)

	verdict := &model.Staleness{Stale: true, Reasons: []string{"svc-a:head_moved"}, StaleRepos: []string{"svc-a"}}

	err := stalenessNew().Guard(l, "repo:svc-a", "bundle", verdict, stalenessOverride(false, "", ""))

	require.Error(t, err)
	assert.Equal(t, contract.KindKnowledgeStale, contract.KindOf(err))

	entries, err := os.ReadDir(l.DecisionPacketsDir())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Name(), "repo_svc-a__knowledge_stale")
}

func TestGuard_OverrideAppendsLedgerLine(t *testing.T) {
	t.Parallel()

	l, _ := seedScanned(t)

	verdict := &model.Staleness{Stale: true, Reasons: []string{"svc-a:head_moved"}}

	err := stalenessNew().Guard(l, "system", "bundle", verdict, stalenessOverride(true, "ops", "hotfix bundle"))

	require.NoError(t, err)

	entries, err := ledger.Read(l.LaneALedger())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stale_override", entries[0]["action"])
	assert.Equal(t, "ops", entries[0]["by"])
	assert.Equal(t, "hotfix bundle", entries[0]["reason"])
}

func TestGuard_FreshScopePasses(t *testing.T) {
	t.Parallel()

	l, _ := seedScanned(t)

	err := stalenessNew().Guard(l, "system", "bundle", &model.Staleness{}, stalenessOverride(false, "", ""))

	assert.NoError(t, err)
}
