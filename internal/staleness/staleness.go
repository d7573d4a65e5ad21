// Package staleness implements the freshness policy: per-scope verdicts,
// refresh hints, decision packets, and the guard that blocks governed
// operations on stale knowledge.
package staleness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/opsgovern/lanegate/internal/config"
	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/eventlog"
	"github.com/opsgovern/lanegate/internal/indexer"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/gitcli"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// Policy evaluates scope freshness against scans, git, and the event log.
type Policy struct {
	git *gitcli.Client
	cfg config.StalenessConfig
	now func() time.Time
}

// New creates a policy with the configured grace thresholds.
func New(git *gitcli.Client, cfg config.StalenessConfig) *Policy {
	return &Policy{git: git, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock. Test hook.
func (p *Policy) WithClock(now func() time.Time) *Policy {
	p.now = now

	return p
}

// Reason codes. A verdict reason is the machine-checkable token
// <repo_id>:<code>; the human-readable prose rides in Details.
const (
	ReasonNeverScanned     = "never_scanned"
	ReasonMergeAfterScan   = "merge_after_last_refresh"
	ReasonHeadMoved        = "head_moved"
	ReasonFingerprintDrift = "fingerprint_drift"
)

// repoVerdict is the per-repo evaluation before scope aggregation.
type repoVerdict struct {
	repoID  string
	stale   bool
	hard    bool
	reasons []string
	details []string
}

// flag marks the repo stale for a code, once per code, and records the
// prose detail.
func (rv *repoVerdict) flag(code, format string, args ...any) {
	rv.stale = true

	token := rv.repoID + ":" + code
	if !slices.Contains(rv.reasons, token) {
		rv.reasons = append(rv.reasons, token)
	}

	rv.details = append(rv.details, fmt.Sprintf("%s: %s", rv.repoID, fmt.Sprintf(format, args...)))
}

// Evaluate computes the verdict for a scope, writes staleness.json, and
// refreshes the scope's hint file when stale.
func (p *Policy) Evaluate(ctx context.Context, l *layout.Layout, repos []model.Repo, scope string) (*model.Staleness, error) {
	repoID, err := model.ParseScope(scope)
	if err != nil {
		return nil, contract.WrapError(contract.KindContractViolation, err, "staleness scope")
	}

	events, _, err := eventlog.ReadAll(l)
	if err != nil {
		return nil, err
	}

	targets := repos
	if repoID != "" {
		targets = nil

		for _, repo := range repos {
			if repo.RepoID == repoID {
				targets = []model.Repo{repo}

				break
			}
		}

		if targets == nil {
			return nil, contract.NewError(contract.KindMissingInput, "repo %s is not registered", repoID)
		}
	}

	verdict := &model.Staleness{Reasons: []string{}, StaleRepos: []string{}}

	for _, repo := range targets {
		rv := p.evaluateRepo(ctx, l, repo, events)

		if !rv.stale {
			continue
		}

		verdict.Stale = true
		verdict.StaleRepos = append(verdict.StaleRepos, rv.repoID)
		verdict.Reasons = append(verdict.Reasons, rv.reasons...)
		verdict.Details = append(verdict.Details, rv.details...)

		if rv.hard {
			verdict.HardStale = true
		}
	}

	sort.Strings(verdict.StaleRepos)
	sort.Strings(verdict.Reasons)
	sort.Strings(verdict.Details)

	err = persist.WriteJSON(l.StalenessPath(), verdict)
	if err != nil {
		return nil, err
	}

	if verdict.Stale {
		err = p.writeHint(l, scope, verdict)
		if err != nil {
			return nil, err
		}
	}

	return verdict, nil
}

func (p *Policy) evaluateRepo(ctx context.Context, l *layout.Layout, repo model.Repo, events []model.MergeEvent) repoVerdict {
	rv := repoVerdict{repoID: repo.RepoID}

	var scanDoc model.KnowledgeScan

	err := persist.ReadJSON(l.ScanPath(repo.RepoID), &scanDoc)
	if err != nil {
		rv.hard = true

		if errors.Is(err, os.ErrNotExist) {
			rv.flag(ReasonNeverScanned, "never scanned")
		} else {
			rv.flag(ReasonNeverScanned, "unreadable scan: %v", err)
		}

		return rv
	}

	repoAbs := l.RepoAbs(repo.Path)

	p.headMoved(ctx, repoAbs, repo, scanDoc.CommitSHA, &rv)

	merges := mergesAfter(events, repo.RepoID, scanDoc.ScannedAt)
	if merges > 0 {
		rv.flag(ReasonMergeAfterScan, "%d merge event(s) after last scan", merges)
	}

	p.fingerprintsDrifted(ctx, l, repoAbs, repo, scanDoc.CommitSHA, &rv)

	if rv.stale {
		rv.hard = p.pastGrace(scanDoc.ScannedAt, merges)
	}

	return rv
}

// headMoved checks whether the active branch head differs from the scanned
// commit. Git failures read as staleness, never as freshness.
func (p *Policy) headMoved(ctx context.Context, repoAbs string, repo model.Repo, scannedSHA string, rv *repoVerdict) {
	ref, err := p.git.ResolveRef(ctx, repoAbs, repo.ActiveBranch)
	if err != nil || ref == "" {
		rv.flag(ReasonHeadMoved, "branch %s unresolvable", repo.ActiveBranch)

		return
	}

	head, err := p.git.RevListOne(ctx, repoAbs, ref)
	if err != nil {
		rv.flag(ReasonHeadMoved, "head lookup failed: %v", err)

		return
	}

	if head != scannedSHA {
		rv.flag(ReasonHeadMoved, "head moved %.12s -> %.12s", scannedSHA, head)
	}
}

func (p *Policy) fingerprintsDrifted(ctx context.Context, l *layout.Layout, repoAbs string, repo model.Repo, scannedSHA string, rv *repoVerdict) {
	var fingerprints model.RepoFingerprints

	err := persist.ReadJSON(l.RepoFingerprintsPath(repo.RepoID), &fingerprints)
	if err != nil {
		rv.flag(ReasonFingerprintDrift, "fingerprints unreadable")

		return
	}

	ref, err := p.git.ResolveRef(ctx, repoAbs, repo.ActiveBranch)
	if err != nil || ref == "" {
		return
	}

	for _, entry := range fingerprints.Files {
		content, err := p.git.ShowFileAtRef(ctx, repoAbs, ref, entry.Path)
		if err != nil {
			rv.flag(ReasonFingerprintDrift, "fingerprinted file %s removed", entry.Path)

			continue
		}

		if indexer.Digest(content) != entry.SHA256 {
			rv.flag(ReasonFingerprintDrift, "fingerprint drift in %s%s",
				entry.Path, p.driftDetail(ctx, repoAbs, scannedSHA, ref, entry.Path))
		}
	}
}

// pastGrace decides soft versus hard: staleness within the time window and
// under the merge budget stays soft.
func (p *Policy) pastGrace(scannedAt string, merges int) bool {
	if merges > p.cfg.SoftMaxMerges {
		return true
	}

	scanned, err := time.Parse(time.RFC3339, scannedAt)
	if err != nil {
		return true
	}

	window := time.Duration(p.cfg.SoftWindowHours) * time.Hour

	return p.now().UTC().Sub(scanned.UTC()) > window
}

func mergesAfter(events []model.MergeEvent, repoID, scannedAt string) int {
	count := 0

	for _, event := range events {
		if event.RepoID == repoID && event.Timestamp > scannedAt {
			count++
		}
	}

	return count
}
