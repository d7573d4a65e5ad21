// Package eventlog implements the append-only merge-event log: the Lane B
// producer, the Lane A summary consumer, and durable consumer checkpoints.
// Segments are UTC-named JSONL files; filename order equals time order.
package eventlog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/ghcli"
	"github.com/opsgovern/lanegate/pkg/gitcli"
)

// Affected-path derivation sources, most to least authoritative.
const (
	SourceCaller = "caller"
	SourceGitHub = "github"
	SourceGit    = "git"
	SourceNone   = "none"
)

// idRandBytes sizes the random id suffix (hex-encoded to 8 chars).
const idRandBytes = 4

// Producer appends validated merge events to the log.
type Producer struct {
	git *gitcli.Client
	gh  *ghcli.Client
	now func() time.Time
}

// NewProducer creates a producer. The gh client may be nil to skip the
// GitHub-API path derivation.
func NewProducer(git *gitcli.Client, gh *ghcli.Client) *Producer {
	return &Producer{git: git, gh: gh, now: time.Now}
}

// WithClock overrides the producer clock. Test hook.
func (p *Producer) WithClock(now func() time.Time) *Producer {
	p.now = now

	return p
}

// LogOptions tune one append.
type LogOptions struct {
	// RepoAbs enables affected-path derivation when the event carries none.
	RepoAbs string
	// DryRun validates and finalizes the event without touching the log.
	DryRun bool
}

// LogResult reports one append.
type LogResult struct {
	Event       model.MergeEvent
	SegmentPath string
	// PathSource names how affected_paths were obtained.
	PathSource string
}

// LogMergeEvent finalizes, validates, and appends one merge event as a
// single JSON line to the current UTC segment.
func (p *Producer) LogMergeEvent(ctx context.Context, l *layout.Layout, event model.MergeEvent, opts LogOptions) (*LogResult, error) {
	now := p.now().UTC()

	source := SourceCaller

	if len(event.AffectedPaths) == 0 {
		paths, pathSource, err := p.deriveAffectedPaths(ctx, opts.RepoAbs, &event)
		if err != nil {
			return nil, err
		}

		event.AffectedPaths, source = paths, pathSource
	}

	event.Version = model.DocVersion
	event.Type = "merge"
	event.AffectedPaths = sortUnique(event.AffectedPaths)

	if event.Timestamp == "" {
		event.Timestamp = model.NowRFC3339(now)
	}

	if event.ID == "" {
		event.ID = newEventID(event.RepoID, now)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return nil, contract.WrapError(contract.KindMalformed, err, "encode merge event")
	}

	_, err = contract.ValidateMergeEvent(line)
	if err != nil {
		return nil, err
	}

	segment := filepath.Join(l.EventSegmentsDir(), model.SegmentName(now))

	result := &LogResult{Event: event, SegmentPath: segment, PathSource: source}
	if opts.DryRun {
		return result, nil
	}

	err = fsx.AppendLine(segment, line)
	if err != nil {
		return nil, fmt.Errorf("append merge event: %w", err)
	}

	return result, nil
}

// deriveAffectedPaths resolves changed paths: GitHub listing first, then the
// merge commit's diff. A failed route falls through; when every route fails
// the last classified error surfaces.
func (p *Producer) deriveAffectedPaths(ctx context.Context, repoAbs string, event *model.MergeEvent) ([]string, string, error) {
	if repoAbs == "" {
		return nil, SourceNone, nil
	}

	var lastErr error

	if p.gh != nil && event.PRNumber > 0 {
		paths, err := p.gh.ListPRFiles(ctx, repoAbs, event.PRNumber)
		if err == nil {
			return paths, SourceGitHub, nil
		}

		lastErr = contract.WrapError(contract.GHKind(err), err,
			"list PR %d files for %s", event.PRNumber, event.RepoID)

		slog.Warn("gh path listing failed, falling back to git",
			"repo_id", event.RepoID, "pr", event.PRNumber, "error", err)
	}

	if event.MergeCommitSHA != "" {
		paths, err := p.git.DiffTreeNames(ctx, repoAbs, event.MergeCommitSHA)
		if err == nil {
			return paths, SourceGit, nil
		}

		lastErr = contract.WrapError(contract.GitKind(err), err,
			"diff-tree %.12s for %s", event.MergeCommitSHA, event.RepoID)

		slog.Warn("git path listing failed",
			"repo_id", event.RepoID, "sha", event.MergeCommitSHA, "error", err)
	}

	return nil, SourceNone, lastErr
}

func newEventID(repoID string, now time.Time) string {
	buf := make([]byte, idRandBytes)

	_, err := rand.Read(buf)
	if err != nil {
		return fmt.Sprintf("EV-%s-%s-%08x", repoID, now.Format("20060102-150405"), now.UnixNano()&0xffffffff)
	}

	return fmt.Sprintf("EV-%s-%s-%s", repoID, now.Format("20060102-150405"), hex.EncodeToString(buf))
}

func sortUnique(paths []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(paths))

	for _, path := range paths {
		if path == "" || seen[path] {
			continue
		}

		seen[path] = true
		out = append(out, path)
	}

	sort.Strings(out)

	return out
}
