package eventlog_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/eventlog"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/gitcli"
)

func testLayout(t *testing.T) *layout.Layout {
	t.Helper()

	l, err := layout.New(filepath.Join(t.TempDir(), "ops"))
	require.NoError(t, err)

	return l
}

func clockAt(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func baseEvent(repoID string) model.MergeEvent {
	return model.MergeEvent{
		RepoID:         repoID,
		PRNumber:       7,
		MergeCommitSHA: "abcdef0123456789",
		BaseBranch:     "main",
		AffectedPaths:  []string{"b.txt", "a.txt", "a.txt"},
	}
}

func TestLogMergeEvent_AppendsValidatedLine(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	now := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)

	producer := eventlog.NewProducer(gitcli.NewClient(), nil).WithClock(clockAt(now))

	result, err := producer.LogMergeEvent(context.Background(), l, baseEvent("svc-a"), eventlog.LogOptions{})

	require.NoError(t, err)
	assert.Equal(t, eventlog.SourceCaller, result.PathSource)
	assert.Equal(t, []string{"a.txt", "b.txt"}, result.Event.AffectedPaths)
	assert.True(t, strings.HasPrefix(result.Event.ID, "EV-svc-a-20260824-093000-"))
	assert.Equal(t, filepath.Join(l.EventSegmentsDir(), "20260824-093000.jsonl"), result.SegmentPath)

	raw, err := os.ReadFile(result.SegmentPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 1)

	event, err := contract.ValidateMergeEvent([]byte(lines[0]))
	require.NoError(t, err)
	assert.Equal(t, "merge", event.Type)
}

func TestLogMergeEvent_EnrichmentsSurviveRoundTrip(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	event := baseEvent("svc-a")
	event.Obligations = "notify-qa"
	event.RiskLevel = "high"
	event.QAWaiver = map[string]any{"id": "QW-77", "approved_by": "qa-lead"}

	_, err := eventlog.NewProducer(gitcli.NewClient(), nil).LogMergeEvent(context.Background(), l, event, eventlog.LogOptions{})
	require.NoError(t, err)

	events, _, err := eventlog.ReadAll(l)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "notify-qa", events[0].Obligations)
	assert.Equal(t, "high", events[0].RiskLevel)
	assert.Equal(t, map[string]any{"id": "QW-77", "approved_by": "qa-lead"}, events[0].QAWaiver)
}

func TestLogMergeEvent_DryRunWritesNothing(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	producer := eventlog.NewProducer(gitcli.NewClient(), nil)

	result, err := producer.LogMergeEvent(context.Background(), l, baseEvent("svc-a"), eventlog.LogOptions{DryRun: true})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Event.ID)
	assert.NoFileExists(t, result.SegmentPath)
}

func TestLogMergeEvent_InvalidShapeRejected(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	event := baseEvent("svc-a")
	event.PRNumber = 0

	_, err := eventlog.NewProducer(gitcli.NewClient(), nil).LogMergeEvent(context.Background(), l, event, eventlog.LogOptions{})

	require.Error(t, err)
	assert.Equal(t, contract.KindContractViolation, contract.KindOf(err))
}

func TestLogMergeEvent_DerivesPathsFromGit(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	repo := gitcli.InitTestRepo(t, map[string]string{"README.md": "v1\n"})
	gitcli.CommitTestFiles(t, repo, map[string]string{"src/app.ts": "export {}\n"}, "add app")

	sha := strings.TrimSpace(gitcli.RunTestGit(t, repo, "rev-parse", "HEAD"))

	event := baseEvent("svc-a")
	event.MergeCommitSHA = sha
	event.AffectedPaths = nil

	result, err := eventlog.NewProducer(gitcli.NewClient(), nil).
		LogMergeEvent(context.Background(), l, event, eventlog.LogOptions{RepoAbs: repo})

	require.NoError(t, err)
	assert.Equal(t, eventlog.SourceGit, result.PathSource)
	assert.Equal(t, []string{"src/app.ts"}, result.Event.AffectedPaths)
}

func TestLogMergeEvent_DerivationFailureSurfacesKind(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	repo := gitcli.InitTestRepo(t, map[string]string{"README.md": "v1\n"})

	event := baseEvent("svc-a")
	event.MergeCommitSHA = "feedfacefeedface"
	event.AffectedPaths = nil

	_, err := eventlog.NewProducer(gitcli.NewClient(), nil).
		LogMergeEvent(context.Background(), l, event, eventlog.LogOptions{RepoAbs: repo})

	require.Error(t, err)
	assert.Equal(t, contract.KindGitFailed, contract.KindOf(err))
}

func TestSummarizer_LatestPerRepoWithTieBreaks(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	producer := eventlog.NewProducer(gitcli.NewClient(), nil)

	older := baseEvent("svc-a")
	older.ID = "EV-svc-a-20260824-090000-aaaaaaaa"
	older.Timestamp = "2026-08-24T09:00:00Z"
	older.MergeCommitSHA = "older00000000000"

	newer := baseEvent("svc-a")
	newer.ID = "EV-svc-a-20260824-090000-bbbbbbbb"
	newer.Timestamp = "2026-08-24T09:00:00Z"
	newer.MergeCommitSHA = "newer00000000000"
	newer.PRNumber = 8

	other := baseEvent("svc-b")
	other.Timestamp = "2026-08-24T10:00:00Z"

	for _, event := range []model.MergeEvent{older, newer, other} {
		_, err := producer.LogMergeEvent(context.Background(), l, event, eventlog.LogOptions{})
		require.NoError(t, err)
	}

	summary, warnings, err := eventlog.NewSummarizer().Run(l)

	require.NoError(t, err)
	assert.Zero(t, warnings)
	require.Len(t, summary.MergeEvents, 2)

	assert.Equal(t, "svc-a", summary.MergeEvents[0].RepoID)
	assert.Equal(t, "newer00000000000", summary.MergeEvents[0].LatestMergeCommit)
	assert.Equal(t, 8, summary.MergeEvents[0].LatestPRNumber)
	assert.Equal(t, "svc-b", summary.MergeEvents[1].RepoID)

	assert.FileExists(t, l.EventSummaryPath())
	assert.FileExists(t, l.KnowledgeEventSummaryPath())
}

func TestSummarizer_SkipsInvalidLinesWithWarning(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	segment := filepath.Join(l.EventSegmentsDir(), "20260824-080000.jsonl")
	require.NoError(t, fsx.AppendLine(segment, []byte("not json")))

	producer := eventlog.NewProducer(gitcli.NewClient(), nil)
	_, err := producer.LogMergeEvent(context.Background(), l, baseEvent("svc-a"), eventlog.LogOptions{})
	require.NoError(t, err)

	summary, warnings, err := eventlog.NewSummarizer().Run(l)

	require.NoError(t, err)
	assert.Equal(t, 1, warnings)
	assert.Len(t, summary.MergeEvents, 1)
}

func TestCheckpoint_RoundTripAndReadSince(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	now := time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)

	producer := eventlog.NewProducer(gitcli.NewClient(), nil).WithClock(clockAt(now))

	first := baseEvent("svc-a")
	_, err := producer.LogMergeEvent(context.Background(), l, first, eventlog.LogOptions{})
	require.NoError(t, err)

	checkpoint, err := eventlog.LoadCheckpoint(l, "staleness")
	require.NoError(t, err)
	assert.Empty(t, checkpoint.LastReadSegment)

	events, advanced, err := eventlog.ReadSince(l, checkpoint)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "20260824-110000.jsonl", advanced.LastReadSegment)
	assert.Equal(t, 1, advanced.LastReadOffset)

	require.NoError(t, eventlog.SaveCheckpoint(l, advanced, now))

	reloaded, err := eventlog.LoadCheckpoint(l, "staleness")
	require.NoError(t, err)
	assert.Equal(t, advanced.LastReadSegment, reloaded.LastReadSegment)

	events, _, err = eventlog.ReadSince(l, reloaded)
	require.NoError(t, err)
	assert.Empty(t, events)

	second := baseEvent("svc-a")
	_, err = producer.LogMergeEvent(context.Background(), l, second, eventlog.LogOptions{})
	require.NoError(t, err)

	events, advanced, err = eventlog.ReadSince(l, reloaded)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, advanced.LastReadOffset)
}
