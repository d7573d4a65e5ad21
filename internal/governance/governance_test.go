package governance_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/internal/config"
	"github.com/opsgovern/lanegate/internal/governance"
	"github.com/opsgovern/lanegate/internal/indexer"
	"github.com/opsgovern/lanegate/internal/knowledge"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/ledger"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/scan"
	"github.com/opsgovern/lanegate/internal/staleness"
	"github.com/opsgovern/lanegate/pkg/gitcli"
	"github.com/opsgovern/lanegate/pkg/persist"
)

var gateGraceCfg = config.StalenessConfig{SoftWindowHours: 24, SoftMaxMerges: 3}

// seedGoverned builds a project with one fresh scanned repo and a sufficient
// system scope at the current knowledge version (v0).
func seedGoverned(t *testing.T) (*layout.Layout, model.Repo) {
	t.Helper()

	root := t.TempDir()

	l, err := layout.New(filepath.Join(root, "ops"))
	require.NoError(t, err)

	repoDir := filepath.Join(root, "repos", "svc-a")
	require.NoError(t, os.MkdirAll(repoDir, 0o755))

	gitcli.RunTestGit(t, repoDir, "init", "-q", "-b", "main")
	gitcli.CommitTestFiles(t, repoDir, map[string]string{
		"package.json": `{"name":"svc-a"}` + "\n",
	}, "initial")

	repo := model.Repo{
		RepoID: "svc-a", Path: "svc-a", ActiveBranch: "main", TeamID: "core",
		Status: model.RepoStatusActive, Keywords: []string{"checkout"},
	}

	index, fingerprints, err := indexer.New(gitcli.NewClient()).Build(context.Background(), indexer.Request{
		RepoID: repo.RepoID, RepoAbs: repoDir, ActiveBranch: "main",
	})
	require.NoError(t, err)
	require.NoError(t, indexer.Write(l, index, fingerprints))

	_, err = scan.New(gitcli.NewClient()).ScanRepo(context.Background(), l, repo)
	require.NoError(t, err)

	_, err = knowledge.SetSufficiency(l, "system", "v0", model.SufficiencySufficient, "seeded", time.Now().UTC())
	require.NoError(t, err)

	return l, repo
}

func writeApproval(t *testing.T, l *layout.Layout, approval model.IntakeApproval) {
	t.Helper()

	path := filepath.Join(l.IntakeApprovalsProcessedDir(), approval.ID+".json")
	require.NoError(t, persist.WriteJSON(path, approval))
}

func writeIntake(t *testing.T, l *layout.Layout, name, content string) string {
	t.Helper()

	path := filepath.Join(l.LaneBInbox(), name)
	require.NoError(t, os.MkdirAll(l.LaneBInbox(), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func newTriage() *governance.Triage {
	return governance.NewTriage(governance.NewGate(staleness.New(gitcli.NewClient(), gateGraceCfg)))
}

func approvedIntake(scope string) (model.IntakeApproval, string) {
	approval := model.IntakeApproval{
		ID: "IA-001", Scope: scope, KnowledgeVersion: "v0",
		ApprovedBy: "ops", ApprovedAt: "2026-08-24T09:00:00Z",
	}

	content := "origin: lane_a\n" +
		"scope: " + scope + "\n" +
		"intake_approval_id: IA-001\n" +
		"knowledge_version: v0\n" +
		"\n# Fix checkout flow\n\nDetails here.\n"

	return approval, content
}

func TestParseIntake_HeaderAndBody(t *testing.T) {
	t.Parallel()

	header, body := governance.ParseIntake([]byte(
		"Origin: lane_a\nSCOPE: repo:svc-a\nintake_approval_id:  IA-7 \nknowledge_version: v1.2\nsufficiency_override: TRUE\n\n# Title\nbody text\n"))

	assert.Equal(t, "lane_a", header.Origin)
	assert.Equal(t, "repo:svc-a", header.Scope)
	assert.Equal(t, "IA-7", header.IntakeApprovalID)
	assert.Equal(t, "v1.2", header.KnowledgeVersion)
	assert.True(t, header.SufficiencyOverride)
	assert.Equal(t, "# Title\nbody text\n", body)
	assert.Equal(t, "Title", governance.IntakeTitle(body))
}

func TestTriage_PassEmitsNarrowedItem(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	approval, content := approvedIntake("repo:svc-a")
	writeApproval(t, l, approval)
	intake := writeIntake(t, l, "intake-001.md", content)

	result, err := newTriage().Run(context.Background(), l, []model.Repo{repo}, intake)

	require.NoError(t, err)
	assert.True(t, result.OK)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "svc-a", result.Items[0].RepoID)
	assert.Equal(t, "Fix checkout flow", result.Items[0].Title)
	assert.Equal(t, "IA-001", result.Items[0].IntakeApprovalID)

	assert.FileExists(t, filepath.Join(l.LaneBTriagedDir(), result.Items[0].WorkID+".json"))
	assert.FileExists(t, filepath.Join(l.LaneBProcessedDir(), "intake-001.md"))
	assert.NoFileExists(t, intake)

	entries, err := ledger.Read(l.LaneBLedger())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "triaged", entries[0]["action"])
}

func TestTriage_VersionMismatchFailsClosed(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	approval, _ := approvedIntake("repo:svc-a")
	approval.KnowledgeVersion = "v1.1"
	writeApproval(t, l, approval)

	content := "origin: lane_a\nscope: repo:svc-a\nintake_approval_id: IA-001\nknowledge_version: v1.2\n\n# T\n"
	intake := writeIntake(t, l, "intake-002.md", content)

	result, err := newTriage().Run(context.Background(), l, []model.Repo{repo}, intake)

	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "knowledge_version_mismatch", result.ReasonCode)
	assert.Empty(t, result.Items)
	assert.FileExists(t, intake)

	artifacts, err := os.ReadDir(l.LaneBTriageDir())
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Contains(t, artifacts[0].Name(), "TRIAGE_FAILED-")

	entries, err := ledger.Read(l.LaneBLedger())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "triage_failed", entries[0]["action"])
	assert.Equal(t, "knowledge_version_mismatch", entries[0]["reason_code"])
}

func TestTriage_MissingApprovalIsGovernanceViolation(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	_, content := approvedIntake("repo:svc-a")
	intake := writeIntake(t, l, "intake-003.md", content)

	result, err := newTriage().Run(context.Background(), l, []model.Repo{repo}, intake)

	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "lane_a_governance_violation", result.ReasonCode)
}

func TestTriage_StaleScopeRefuses(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	gitcli.CommitTestFiles(t, l.RepoAbs(repo.Path), map[string]string{"README.md": "new\n"}, "doc change")

	approval, content := approvedIntake("repo:svc-a")
	writeApproval(t, l, approval)
	intake := writeIntake(t, l, "intake-004.md", content)

	result, err := newTriage().Run(context.Background(), l, []model.Repo{repo}, intake)

	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "knowledge_stale", result.ReasonCode)
}

func TestTriage_InsufficientWithoutOverrideRefuses(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	_, err := knowledge.SetSufficiency(l, "system", "v0", model.SufficiencyInsufficient, "reset", time.Now().UTC())
	require.NoError(t, err)

	approval, content := approvedIntake("repo:svc-a")
	writeApproval(t, l, approval)
	intake := writeIntake(t, l, "intake-005.md", content)

	result, err := newTriage().Run(context.Background(), l, []model.Repo{repo}, intake)

	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "lane_a_governance_violation", result.ReasonCode)
}

func TestTriage_SufficiencyOverrideIsAudited(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	_, err := knowledge.SetSufficiency(l, "system", "v0", model.SufficiencyInsufficient, "reset", time.Now().UTC())
	require.NoError(t, err)

	approval, content := approvedIntake("repo:svc-a")
	approval.SufficiencyOverride = true
	writeApproval(t, l, approval)
	intake := writeIntake(t, l, "intake-006.md", content)

	result, err := newTriage().Run(context.Background(), l, []model.Repo{repo}, intake)

	require.NoError(t, err)
	assert.True(t, result.OK)

	entries, err := ledger.Read(l.LaneBLedger())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "sufficiency_override", entries[0]["action"])
	assert.Equal(t, "triaged", entries[1]["action"])
}

func TestTriage_NonLaneAOriginSkipsGate(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	intake := writeIntake(t, l, "intake-007.md", "origin: human\n\n# Add checkout retries\n")

	result, err := newTriage().Run(context.Background(), l, []model.Repo{repo}, intake)

	require.NoError(t, err)
	assert.True(t, result.OK)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "svc-a", result.Items[0].RepoID)
}

func TestTriage_SystemScopeFansOutByKeyword(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	other := model.Repo{
		RepoID: "svc-b", Path: "svc-b", ActiveBranch: "main", TeamID: "core",
		Status: model.RepoStatusActive, Keywords: []string{"billing"},
	}

	intake := writeIntake(t, l, "intake-008.md", "origin: human\n\n# Checkout latency\n")

	result, err := newTriage().Run(context.Background(), l, []model.Repo{repo, other}, intake)

	require.NoError(t, err)
	assert.True(t, result.OK)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "svc-a", result.Items[0].RepoID)
}

func TestTriage_LedgerLinesAreClockStamped(t *testing.T) {
	t.Parallel()

	l, repo := seedGoverned(t)

	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	triage := newTriage().WithClock(func() time.Time { return fixed })

	intake := writeIntake(t, l, "intake-009.md", "origin: human\n\n# Fix checkout flow\n")

	result, err := triage.Run(context.Background(), l, []model.Repo{repo}, intake)

	require.NoError(t, err)
	assert.True(t, result.OK)

	entries, err := ledger.Read(l.LaneBLedger())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "triaged", entries[0]["action"])
	assert.Equal(t, model.NowRFC3339(fixed), entries[0]["at"])
}
