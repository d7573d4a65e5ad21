// Package layout resolves the on-disk project layout: the OPS root (config
// plus both lanes) and the knowledge root, with every well-known path derived
// in one place so writers and readers cannot drift.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvProjectRoot names the environment variable holding the OPS root.
const EnvProjectRoot = "AI_PROJECT_ROOT"

// opsSuffix is the required trailing path element of the OPS root.
const opsSuffix = "ops"

// Sentinel errors for layout resolution.
var (
	// ErrProjectRootUnset indicates AI_PROJECT_ROOT is missing.
	ErrProjectRootUnset = errors.New("AI_PROJECT_ROOT is not set")
	// ErrProjectRootShape indicates the root does not end in /ops.
	ErrProjectRootShape = errors.New("AI_PROJECT_ROOT must be an absolute path ending in /ops")
)

// Layout holds the resolved roots of one project.
type Layout struct {
	// OpsRoot is the <ops> directory (config plus lanes).
	OpsRoot string
	// KnowledgeRoot is the system-of-record directory.
	KnowledgeRoot string
	// ReposRoot is the directory the registry's repo paths are relative to.
	ReposRoot string
}

// FromEnv resolves the layout from AI_PROJECT_ROOT. The knowledge and repos
// roots default to siblings of the ops root.
func FromEnv() (*Layout, error) {
	root := os.Getenv(EnvProjectRoot)
	if root == "" {
		return nil, ErrProjectRootUnset
	}

	return New(root)
}

// New builds a layout from an explicit ops root.
func New(opsRoot string) (*Layout, error) {
	cleaned := filepath.Clean(opsRoot)

	if !filepath.IsAbs(cleaned) || filepath.Base(cleaned) != opsSuffix {
		return nil, fmt.Errorf("%w: %q", ErrProjectRootShape, opsRoot)
	}

	parent := filepath.Dir(cleaned)

	return &Layout{
		OpsRoot:       cleaned,
		KnowledgeRoot: filepath.Join(parent, "knowledge"),
		ReposRoot:     filepath.Join(parent, "repos"),
	}, nil
}

// Config paths.

// ConfigDir returns <ops>/config.
func (l *Layout) ConfigDir() string { return filepath.Join(l.OpsRoot, "config") }

// ReposConfig returns <ops>/config/REPOS.json.
func (l *Layout) ReposConfig() string { return filepath.Join(l.ConfigDir(), "REPOS.json") }

// ProjectConfig returns <ops>/config/PROJECT.json.
func (l *Layout) ProjectConfig() string { return filepath.Join(l.ConfigDir(), "PROJECT.json") }

// Lane A paths.

// LaneARoot returns <ops>/ai/lane_a.
func (l *Layout) LaneARoot() string { return filepath.Join(l.OpsRoot, "ai", "lane_a") }

// LaneALocksDir returns the Lane A lock directory.
func (l *Layout) LaneALocksDir() string { return filepath.Join(l.LaneARoot(), "locks") }

// OrchestrateLock returns the Lane A orchestrate lock path.
func (l *Layout) OrchestrateLock() string {
	return filepath.Join(l.LaneALocksDir(), "lane-a-orchestrate.lock.json")
}

// BlockersDir returns the Lane A blockers directory.
func (l *Layout) BlockersDir() string { return filepath.Join(l.LaneARoot(), "blockers") }

// RefreshHintsDir returns the Lane A refresh-hints directory.
func (l *Layout) RefreshHintsDir() string { return filepath.Join(l.LaneARoot(), "refresh_hints") }

// DecisionPacketsDir returns the Lane A decision-packets directory.
func (l *Layout) DecisionPacketsDir() string { return filepath.Join(l.LaneARoot(), "decision_packets") }

// SufficiencyDir returns the Lane A sufficiency directory.
func (l *Layout) SufficiencyDir() string { return filepath.Join(l.LaneARoot(), "sufficiency") }

// IntakeApprovalsProcessedDir returns the processed IA directory.
func (l *Layout) IntakeApprovalsProcessedDir() string {
	return filepath.Join(l.LaneARoot(), "intake_approvals", "processed")
}

// EventSegmentsDir returns the event-log segment directory.
func (l *Layout) EventSegmentsDir() string {
	return filepath.Join(l.LaneARoot(), "events", "segments")
}

// EventCheckpointsDir returns the event-log checkpoint directory.
func (l *Layout) EventCheckpointsDir() string {
	return filepath.Join(l.LaneARoot(), "events", "checkpoints")
}

// EventSummaryPath returns the Lane A events summary path.
func (l *Layout) EventSummaryPath() string {
	return filepath.Join(l.LaneARoot(), "events", "summary", "events-summary.json")
}

// BundlesDir returns the Lane A bundles directory.
func (l *Layout) BundlesDir() string { return filepath.Join(l.LaneARoot(), "bundles") }

// LatestBundlesPath returns bundles/LATEST.json.
func (l *Layout) LatestBundlesPath() string { return filepath.Join(l.BundlesDir(), "LATEST.json") }

// LaneALedger returns the Lane A ledger path.
func (l *Layout) LaneALedger() string { return filepath.Join(l.LaneARoot(), "ledger.jsonl") }

// KnowledgeVersionPath returns the Lane A version pointer path.
func (l *Layout) KnowledgeVersionPath() string {
	return filepath.Join(l.LaneARoot(), "knowledge_version.json")
}

// StalenessPath returns the Lane A staleness view path.
func (l *Layout) StalenessPath() string { return filepath.Join(l.LaneARoot(), "staleness.json") }

// Lane B paths.

// LaneBRoot returns <ops>/ai/lane_b.
func (l *Layout) LaneBRoot() string { return filepath.Join(l.OpsRoot, "ai", "lane_b") }

// LaneBInbox returns the Lane B intake inbox.
func (l *Layout) LaneBInbox() string { return filepath.Join(l.LaneBRoot(), "inbox") }

// LaneBTriagedDir returns the triaged-items directory.
func (l *Layout) LaneBTriagedDir() string { return filepath.Join(l.LaneBInbox(), "triaged") }

// LaneBProcessedDir returns the processed-intake directory.
func (l *Layout) LaneBProcessedDir() string { return filepath.Join(l.LaneBInbox(), ".processed") }

// LaneBTriageDir returns the triage artifacts directory.
func (l *Layout) LaneBTriageDir() string { return filepath.Join(l.LaneBRoot(), "triage") }

// LaneBLedger returns the Lane B ledger path.
func (l *Layout) LaneBLedger() string { return filepath.Join(l.LaneBRoot(), "ledger.jsonl") }

// Knowledge paths.

// KnowledgeSSOTSystemDir returns <knowledge>/ssot/system.
func (l *Layout) KnowledgeSSOTSystemDir() string {
	return filepath.Join(l.KnowledgeRoot, "ssot", "system")
}

// KnowledgeSSOTRepoDir returns <knowledge>/ssot/repos/<id>.
func (l *Layout) KnowledgeSSOTRepoDir(repoID string) string {
	return filepath.Join(l.KnowledgeRoot, "ssot", "repos", repoID)
}

// KnowledgeViewsDir returns <knowledge>/views.
func (l *Layout) KnowledgeViewsDir() string { return filepath.Join(l.KnowledgeRoot, "views") }

// KnowledgeEvidenceDir returns <knowledge>/evidence.
func (l *Layout) KnowledgeEvidenceDir() string { return filepath.Join(l.KnowledgeRoot, "evidence") }

// RepoIndexPath returns the repo_index.json path for one repo.
func (l *Layout) RepoIndexPath(repoID string) string {
	return filepath.Join(l.KnowledgeEvidenceDir(), "index", "repos", repoID, "repo_index.json")
}

// RepoFingerprintsPath returns the repo_fingerprints.json path for one repo.
func (l *Layout) RepoFingerprintsPath(repoID string) string {
	return filepath.Join(l.KnowledgeEvidenceDir(), "index", "repos", repoID, "repo_fingerprints.json")
}

// ScanPath returns the scan.json path for one repo.
func (l *Layout) ScanPath(repoID string) string {
	return filepath.Join(l.KnowledgeSSOTRepoDir(repoID), "scan.json")
}

// EvidenceRefsPath returns the evidence_refs.jsonl path for one repo.
func (l *Layout) EvidenceRefsPath(repoID string) string {
	return filepath.Join(l.KnowledgeSSOTRepoDir(repoID), "evidence_refs.jsonl")
}

// ScanReportPath returns the SCAN_REPORT.md path for one repo.
func (l *Layout) ScanReportPath(repoID string) string {
	return filepath.Join(l.KnowledgeSSOTRepoDir(repoID), "SCAN_REPORT.md")
}

// IntegrationPath returns <knowledge>/ssot/system/integration.json.
func (l *Layout) IntegrationPath() string {
	return filepath.Join(l.KnowledgeSSOTSystemDir(), "integration.json")
}

// GapsPath returns <knowledge>/ssot/system/gaps.json.
func (l *Layout) GapsPath() string {
	return filepath.Join(l.KnowledgeSSOTSystemDir(), "gaps.json")
}

// IntegrationReportPath returns <knowledge>/ssot/system/integration.md.
func (l *Layout) IntegrationReportPath() string {
	return filepath.Join(l.KnowledgeSSOTSystemDir(), "integration.md")
}

// DependencyGraphPath returns the base graph path.
func (l *Layout) DependencyGraphPath() string {
	return filepath.Join(l.KnowledgeSSOTSystemDir(), "dependency_graph.json")
}

// DependencyGraphOverridePath returns the override path.
func (l *Layout) DependencyGraphOverridePath() string {
	return filepath.Join(l.KnowledgeSSOTSystemDir(), "dependency_graph.override.json")
}

// KnowledgeEventSummaryPath returns <knowledge>/events_summary.json.
func (l *Layout) KnowledgeEventSummaryPath() string {
	return filepath.Join(l.KnowledgeRoot, "events_summary.json")
}

// VersionMirrorJSONPath returns <knowledge>/VERSION.json.
func (l *Layout) VersionMirrorJSONPath() string {
	return filepath.Join(l.KnowledgeRoot, "VERSION.json")
}

// VersionMirrorMarkdownPath returns <knowledge>/VERSION.md.
func (l *Layout) VersionMirrorMarkdownPath() string {
	return filepath.Join(l.KnowledgeRoot, "VERSION.md")
}

// RepoAbs resolves a registry-relative repo path under the repos root.
func (l *Layout) RepoAbs(relPath string) string {
	return filepath.Join(l.ReposRoot, filepath.FromSlash(relPath))
}

// FSSafeTimestamp converts an RFC3339 timestamp into a filename-safe form.
func FSSafeTimestamp(ts string) string {
	replacer := strings.NewReplacer(":", "", "-", "", "T", "_", "Z", "", ".", "")

	return replacer.Replace(ts)
}
