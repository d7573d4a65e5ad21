// Package scan produces the per-repo knowledge scan: evidence refs, derived
// facts, unknowns, and the scan report, all grounded on a fresh repo index.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/evidence"
	"github.com/opsgovern/lanegate/internal/indexer"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/gitcli"
	"github.com/opsgovern/lanegate/pkg/persist"
	"github.com/opsgovern/lanegate/pkg/pool"
)

// scanVersionFloor is the scan_version of a scan with no evidence.
const scanVersionFloor = 1

// Scanner runs knowledge scans through the git adapter.
type Scanner struct {
	git *gitcli.Client
	now func() time.Time
	// Workers bounds cross-repo scan concurrency.
	Workers int
}

// New creates a scanner.
func New(git *gitcli.Client) *Scanner {
	return &Scanner{git: git, now: time.Now}
}

// WithClock overrides the scanner clock. Test hook.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now

	return s
}

// RepoResult reports one repo's scan outcome.
type RepoResult struct {
	RepoID string
	Scan   *model.KnowledgeScan
	Err    error
}

// RunAll scans every repo in parallel, bounded by the pool cap. One repo's
// failure does not interrupt the others.
func (s *Scanner) RunAll(ctx context.Context, l *layout.Layout, repos []model.Repo) []RepoResult {
	results := pool.Map(ctx, repos, s.Workers, func(ctx context.Context, repo model.Repo, _ int) (*model.KnowledgeScan, error) {
		return s.ScanRepo(ctx, l, repo)
	})

	out := make([]RepoResult, len(results))
	for _, res := range results {
		out[res.Index] = RepoResult{RepoID: repos[res.Index].RepoID, Scan: res.Value, Err: res.Err}
	}

	return out
}

// ScanRepo scans one repo and persists scan.json, evidence_refs.jsonl, and
// SCAN_REPORT.md.
func (s *Scanner) ScanRepo(ctx context.Context, l *layout.Layout, repo model.Repo) (*model.KnowledgeScan, error) {
	index, fingerprints, err := loadIndexPair(l, repo.RepoID)
	if err != nil {
		return nil, err
	}

	repoAbs := l.RepoAbs(repo.Path)

	ref, err := s.git.ResolveRef(ctx, repoAbs, repo.ActiveBranch)
	if err != nil {
		return nil, contract.WrapError(contract.GitKind(err), err, "resolve ref for %s", repo.RepoID)
	}

	if ref == "" {
		return nil, contract.NewError(contract.KindMissingInput,
			"repo %s: branch %q not found locally", repo.RepoID, repo.ActiveBranch)
	}

	head, err := s.git.RevListOne(ctx, repoAbs, ref)
	if err != nil {
		return nil, contract.WrapError(contract.GitKind(err), err, "rev-list %s for %s", ref, repo.RepoID)
	}

	err = s.verifyFingerprints(ctx, repoAbs, ref, repo.RepoID, fingerprints)
	if err != nil {
		return nil, err
	}

	capturedAt := model.NowRFC3339(s.now())
	paths := evidence.CollectPaths(index, fingerprints)

	refs, err := evidence.BuildRefs(ctx, s.git, repoAbs, ref, head, repo.RepoID, paths, capturedAt)
	if err != nil {
		return nil, err
	}

	facts, unknowns := deriveFacts(repo.RepoID, index, refs)

	err = evidence.ValidateFacts(facts, refs)
	if err != nil {
		return nil, err
	}

	external, err := s.loadExternalKnowledge(index)
	if err != nil {
		return nil, err
	}

	allPaths, err := s.git.LsTreeNames(ctx, repoAbs, ref)
	if err != nil {
		return nil, contract.WrapError(contract.GitKind(err), err, "ls-tree %s for %s", ref, repo.RepoID)
	}

	doc := &model.KnowledgeScan{
		Version:           model.DocVersion,
		RepoID:            repo.RepoID,
		CommitSHA:         head,
		ScannedAt:         capturedAt,
		ScanVersion:       Version(repo.RepoID, index.Version, evidenceIDs(refs)),
		ExternalKnowledge: external,
		Facts:             facts,
		Unknowns:          unknowns,
		Contradictions:    []string{},
		Coverage: model.ScanCoverage{
			FilesSeen:    len(allPaths),
			FilesIndexed: len(index.Fingerprints),
		},
	}

	err = persist.WriteJSON(l.ScanPath(repo.RepoID), doc)
	if err != nil {
		return nil, err
	}

	err = evidence.WriteRefs(l.EvidenceRefsPath(repo.RepoID), refs)
	if err != nil {
		return nil, err
	}

	err = writeReport(l.ScanReportPath(repo.RepoID), doc, refs)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// Version derives the deterministic scan_version integer. A scan with no
// evidence always reports the floor version.
func Version(repoID string, indexVersion int, sortedEvidenceIDs []string) int {
	if len(sortedEvidenceIDs) == 0 {
		return scanVersionFloor
	}

	hash := sha256.New()
	fmt.Fprintf(hash, "%s\n%d\n", repoID, indexVersion)

	for _, id := range sortedEvidenceIDs {
		fmt.Fprintf(hash, "%s\n", id)
	}

	sum := hash.Sum(nil)

	// Fold to a positive int31 so the value survives JSON round-trips
	// unchanged on every platform.
	value := int(binary.BigEndian.Uint32(sum[:4]) & 0x7fffffff)
	if value < scanVersionFloor {
		value = scanVersionFloor
	}

	return value
}

func loadIndexPair(l *layout.Layout, repoID string) (*model.RepoIndex, *model.RepoFingerprints, error) {
	var index model.RepoIndex

	err := persist.ReadJSON(l.RepoIndexPath(repoID), &index)
	if err != nil {
		return nil, nil, contract.WrapError(contract.KindMissingInput, err,
			"repo index for %s; run the indexer first", repoID)
	}

	var fingerprints model.RepoFingerprints

	err = persist.ReadJSON(l.RepoFingerprintsPath(repoID), &fingerprints)
	if err != nil {
		return nil, nil, contract.WrapError(contract.KindMissingInput, err,
			"repo fingerprints for %s; run the indexer first", repoID)
	}

	return &index, &fingerprints, nil
}

// verifyFingerprints recomputes every fingerprint at the working ref. Any
// drift means the index no longer describes the bytes a scan would cite.
func (s *Scanner) verifyFingerprints(ctx context.Context, repoAbs, ref, repoID string, fingerprints *model.RepoFingerprints) error {
	for _, entry := range fingerprints.Files {
		content, err := s.git.ShowFileAtRef(ctx, repoAbs, ref, entry.Path)
		if err != nil {
			return contract.WrapError(contract.KindIndexOutOfDate, err,
				"repo %s: fingerprinted file %s unreadable at %s; re-run the indexer", repoID, entry.Path, ref)
		}

		if indexer.Digest(content) != entry.SHA256 {
			return contract.NewError(contract.KindIndexOutOfDate,
				"repo %s: fingerprint mismatch for %s at %s; re-run the indexer", repoID, entry.Path, ref)
		}
	}

	return nil
}

// externalBundleFiles are the artifacts a sibling project must expose for a
// cross-project dependency to load.
func externalBundleFiles(knowledgeRoot, repoID string) []string {
	return []string{
		filepath.Join(knowledgeRoot, "ssot", "repos", repoID, "scan.json"),
		filepath.Join(knowledgeRoot, "ssot", "repos", repoID, "evidence_refs.jsonl"),
		filepath.Join(knowledgeRoot, "evidence", "index", "repos", repoID, "repo_index.json"),
		filepath.Join(knowledgeRoot, "evidence", "index", "repos", repoID, "repo_fingerprints.json"),
	}
}

func (s *Scanner) loadExternalKnowledge(index *model.RepoIndex) ([]model.ExternalKnowledge, error) {
	external := []model.ExternalKnowledge{}

	if index.Dependencies == nil {
		return external, nil
	}

	for _, dep := range index.Dependencies.DependsOn {
		hash := sha256.New()

		for _, file := range externalBundleFiles(dep.KnowledgeAbsPath, dep.RepoID) {
			content, err := os.ReadFile(file)
			if err != nil {
				return nil, contract.WrapError(contract.KindExternalDependencyMissing, err,
					"project %s repo %s: %s; run --knowledge-index and --knowledge-scan in that project",
					dep.ProjectCode, dep.RepoID, file)
			}

			hash.Write(content)
		}

		external = append(external, model.ExternalKnowledge{
			ProjectCode: dep.ProjectCode,
			RepoID:      dep.RepoID,
			BundleID:    fmt.Sprintf("sha256-%x", hash.Sum(nil)),
			Path:        dep.KnowledgeAbsPath,
			LoadedAt:    model.NowRFC3339(s.now()),
		})
	}

	sort.Slice(external, func(i, j int) bool {
		if external[i].ProjectCode != external[j].ProjectCode {
			return external[i].ProjectCode < external[j].ProjectCode
		}

		return external[i].RepoID < external[j].RepoID
	})

	return external, nil
}

func evidenceIDs(refs []model.EvidenceRef) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.EvidenceID)
	}

	sort.Strings(ids)

	return ids
}
