// Package model defines the persisted document shapes of the governance
// engine. Every document carries version 1; timestamps are RFC3339 UTC
// unless a field documents otherwise.
package model

// DocVersion is the schema version stamped on every persisted document.
const DocVersion = 1

// Repo statuses.
const (
	RepoStatusActive   = "active"
	RepoStatusArchived = "archived"
)

// Repo is one registered source repository.
type Repo struct {
	RepoID       string   `json:"repo_id"`
	Path         string   `json:"path"`
	ActiveBranch string   `json:"active_branch"`
	TeamID       string   `json:"team_id"`
	Status       string   `json:"status"`
	Keywords     []string `json:"keywords,omitempty"`
}

// APISurface groups contract-bearing files discovered by the indexer.
type APISurface struct {
	OpenAPIFiles      []string `json:"openapi_files"`
	RoutesControllers []string `json:"routes_controllers"`
	EventsTopics      []string `json:"events_topics"`
}

// Hotspot is a path the indexer flags as governance-relevant.
type Hotspot struct {
	FilePath string `json:"file_path"`
	Reason   string `json:"reason"`
}

// BuildCommands groups build tooling discovered at the indexed ref.
type BuildCommands struct {
	Install       []string `json:"install"`
	Lint          []string `json:"lint"`
	Build         []string `json:"build"`
	Test          []string `json:"test"`
	EvidenceFiles []string `json:"evidence_files"`
}

// CrossRepoDependency is one outbound edge discovered in repo content.
type CrossRepoDependency struct {
	Type         string   `json:"type"`
	Target       string   `json:"target"`
	EvidenceRefs []string `json:"evidence_refs"`
}

// ExternalDependency declares a dependency on another project's knowledge.
type ExternalDependency struct {
	ProjectCode      string `json:"project_code"`
	RepoID           string `json:"repo_id"`
	KnowledgeAbsPath string `json:"knowledge_abs_path"`
}

// IndexDependencies holds cross-project dependency declarations.
type IndexDependencies struct {
	DependsOn []ExternalDependency `json:"depends_on,omitempty"`
}

// RepoIndex is the indexer output for one repo at one commit.
type RepoIndex struct {
	Version               int                   `json:"version"`
	RepoID                string                `json:"repo_id"`
	Ref                   string                `json:"ref"`
	CommitSHA             string                `json:"commit_sha"`
	ScannedAt             string                `json:"scanned_at"`
	Entrypoints           []string              `json:"entrypoints"`
	APISurface            APISurface            `json:"api_surface"`
	MigrationsSchema      []string              `json:"migrations_schema"`
	Hotspots              []Hotspot             `json:"hotspots"`
	BuildCommands         BuildCommands         `json:"build_commands"`
	CrossRepoDependencies []CrossRepoDependency `json:"cross_repo_dependencies"`
	Languages             map[string]int        `json:"languages,omitempty"`
	Dependencies          *IndexDependencies    `json:"dependencies,omitempty"`
	Fingerprints          map[string]string     `json:"fingerprints"`
}

// FingerprintEntry is one (path, sha256) pair at the indexed ref.
type FingerprintEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// RepoFingerprints is the standalone fingerprint document.
type RepoFingerprints struct {
	Version int                `json:"version"`
	RepoID  string             `json:"repo_id"`
	Files   []FingerprintEntry `json:"files"`
}

// EvidenceRef is a stable citation of a line range at a commit.
type EvidenceRef struct {
	EvidenceID string `json:"evidence_id"`
	RepoID     string `json:"repo_id"`
	FilePath   string `json:"file_path"`
	CommitSHA  string `json:"commit_sha"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Extractor  string `json:"extractor"`
	CapturedAt string `json:"captured_at"`
}

// Fact is a claim backed by at least one evidence ref.
type Fact struct {
	FactID      string   `json:"fact_id"`
	Claim       string   `json:"claim"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// ExternalKnowledge records one loaded cross-project bundle summary.
type ExternalKnowledge struct {
	ProjectCode string `json:"project_code"`
	RepoID      string `json:"repo_id"`
	BundleID    string `json:"bundle_id"`
	Path        string `json:"path"`
	LoadedAt    string `json:"loaded_at"`
}

// ScanCoverage summarizes how much of the repo the scan saw.
type ScanCoverage struct {
	FilesSeen    int `json:"files_seen"`
	FilesIndexed int `json:"files_indexed"`
}

// KnowledgeScan is the per-repo scan output.
type KnowledgeScan struct {
	Version           int                 `json:"version"`
	RepoID            string              `json:"repo_id"`
	CommitSHA         string              `json:"commit_sha"`
	ScannedAt         string              `json:"scanned_at"`
	ScanVersion       int                 `json:"scan_version"`
	ExternalKnowledge []ExternalKnowledge `json:"external_knowledge"`
	Facts             []Fact              `json:"facts"`
	Unknowns          []string            `json:"unknowns"`
	Contradictions    []string            `json:"contradictions"`
	Coverage          ScanCoverage        `json:"coverage"`
}

// IntegrationInput records one repo scan contributing to the system view.
type IntegrationInput struct {
	RepoID      string `json:"repo_id"`
	ScannedAt   string `json:"scanned_at"`
	ScanVersion int    `json:"scan_version"`
}

// IntegrationRepo summarizes one repo inside the integration map.
type IntegrationRepo struct {
	RepoID           string   `json:"repo_id"`
	Entrypoints      []string `json:"entrypoints"`
	APIContractFiles []string `json:"api_contract_files"`
	InfraFiles       []string `json:"infra_files"`
}

// IntegrationMap is the per-repo portion of the system view.
type IntegrationMap struct {
	Repos []IntegrationRepo `json:"repos"`
}

// Integration is the synthesized system document.
type Integration struct {
	Version            int                `json:"version"`
	Scope              string             `json:"scope"`
	GeneratedAt        string             `json:"generated_at"`
	Inputs             []IntegrationInput `json:"inputs"`
	IntegrationMap     IntegrationMap     `json:"integration_map"`
	CrossRepoContracts []string           `json:"cross_repo_contracts"`
	KnownUnknowns      []string           `json:"known_unknowns"`
}

// Gap is one synthesized knowledge gap.
type Gap struct {
	GapID  string `json:"gap_id"`
	Scope  string `json:"scope"`
	RepoID string `json:"repo_id,omitempty"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Gaps is the system-scope gaps document.
type Gaps struct {
	Version     int    `json:"version"`
	Scope       string `json:"scope"`
	GeneratedAt string `json:"generated_at"`
	Gaps        []Gap  `json:"gaps"`
}

// VersionHistoryEntry records one knowledge version transition.
type VersionHistoryEntry struct {
	V      string `json:"v"`
	At     string `json:"at"`
	Reason string `json:"reason"`
	Scope  string `json:"scope"`
	Notes  string `json:"notes,omitempty"`
}

// KnowledgeVersion is the monotone version pointer with history.
type KnowledgeVersion struct {
	Version int                   `json:"version"`
	Current string                `json:"current"`
	History []VersionHistoryEntry `json:"history"`
}

// Staleness is the per-scope freshness verdict.
type Staleness struct {
	Stale      bool     `json:"stale"`
	HardStale  bool     `json:"hard_stale"`
	Reasons    []string `json:"reasons"`
	Details    []string `json:"details,omitempty"`
	StaleRepos []string `json:"stale_repos"`
}

// Sufficiency statuses.
const (
	SufficiencyInsufficient = "insufficient"
	SufficiencyPartial      = "partial"
	SufficiencySufficient   = "sufficient"
)

// SufficiencyRecord states whether knowledge at (scope, version) is adequate
// for delivery.
type SufficiencyRecord struct {
	Version          int    `json:"version"`
	Scope            string `json:"scope"`
	KnowledgeVersion string `json:"knowledge_version"`
	Status           string `json:"status"`
	CapturedAt       string `json:"captured_at"`
	Reasons          string `json:"reasons,omitempty"`
}

// IntakeApproval authorizes a Lane A-origin intake.
type IntakeApproval struct {
	ID                  string `json:"id"`
	Scope               string `json:"scope"`
	KnowledgeVersion    string `json:"knowledge_version"`
	SufficiencyOverride bool   `json:"sufficiency_override,omitempty"`
	ApprovedBy          string `json:"approved_by"`
	ApprovedAt          string `json:"approved_at"`
}

// TriagedItem is one repo-scoped work item produced by intake triage.
type TriagedItem struct {
	Version          int    `json:"version"`
	WorkID           string `json:"work_id"`
	RepoID           string `json:"repo_id"`
	TeamID           string `json:"team_id,omitempty"`
	Scope            string `json:"scope"`
	Origin           string `json:"origin,omitempty"`
	KnowledgeVersion string `json:"knowledge_version,omitempty"`
	IntakeApprovalID string `json:"intake_approval_id,omitempty"`
	Title            string `json:"title"`
	IntakeFile       string `json:"intake_file"`
	CreatedAt        string `json:"created_at"`
}

// PRRef is the enriched pull-request reference on a merge event.
type PRRef struct {
	Number     int    `json:"number"`
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	URL        string `json:"url"`
	BaseBranch string `json:"base_branch"`
	HeadBranch string `json:"head_branch"`
}

// MergeEvent is one line of the append-only event log.
type MergeEvent struct {
	Version        int      `json:"version"`
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	RepoID         string   `json:"repo_id"`
	PRNumber       int      `json:"pr_number"`
	MergeCommitSHA string   `json:"merge_commit_sha"`
	BaseBranch     string   `json:"base_branch"`
	AffectedPaths  []string `json:"affected_paths"`
	Timestamp      string   `json:"timestamp"`

	// Optional enrichments. The waiver shape is caller-defined, so it
	// passes through as-is.
	WorkID       string         `json:"work_id,omitempty"`
	PR           *PRRef         `json:"pr,omitempty"`
	MergeSHA     string         `json:"merge_sha,omitempty"`
	ChangedPaths []string       `json:"changed_paths,omitempty"`
	Obligations  string         `json:"obligations,omitempty"`
	RiskLevel    string         `json:"risk_level,omitempty"`
	QAWaiver     map[string]any `json:"qa_waiver,omitempty"`
}

// Checkpoint is a durable consumer position inside the event log.
type Checkpoint struct {
	Version         int    `json:"version"`
	Consumer        string `json:"consumer"`
	LastReadSegment string `json:"last_read_segment"`
	LastReadOffset  int    `json:"last_read_offset"`
	UpdatedAt       string `json:"updated_at"`
}

// EventSummaryEntry is the compact latest-merge view for one repo.
type EventSummaryEntry struct {
	RepoID           string `json:"repo_id"`
	LatestMergeCommit string `json:"latest_merge_commit"`
	LatestPRNumber   int    `json:"latest_pr_number"`
	LatestTimestamp  string `json:"latest_timestamp"`
}

// EventSummary is the latest-per-repo merge view.
type EventSummary struct {
	Version     int                 `json:"version"`
	GeneratedAt string              `json:"generated_at"`
	MergeEvents []EventSummaryEntry `json:"merge_events"`
}

// DecisionPacket records a blocked operation awaiting a human decision.
type DecisionPacket struct {
	Version               int      `json:"version"`
	DecisionID            string   `json:"decision_id"`
	Scope                 string   `json:"scope"`
	BlockingState         string   `json:"blocking_state"`
	Trigger               string   `json:"trigger"`
	ContextSummary        string   `json:"context_summary"`
	Question              string   `json:"question"`
	ExpectedAnswerType    string   `json:"expected_answer_type"`
	Constraints           []string `json:"constraints"`
	Blocks                []string `json:"blocks"`
	AssumptionsIfUnanswered string `json:"assumptions_if_unanswered"`
	CreatedAt             string   `json:"created_at"`
	Status                string   `json:"status"`
}

// RefreshHint points an operator at the scope that needs re-scanning.
type RefreshHint struct {
	Version   int      `json:"version"`
	Scope     string   `json:"scope"`
	Reasons   []string `json:"reasons"`
	Details   []string `json:"details,omitempty"`
	Suggested []string `json:"suggested"`
	UpdatedAt string   `json:"updated_at"`
}

// GraphEdge is one directed dependency edge.
type GraphEdge struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	Type         string   `json:"type"`
	Contract     string   `json:"contract,omitempty"`
	Confidence   float64  `json:"confidence,omitempty"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

// Override statuses for the dependency graph.
const (
	OverrideStatusPending  = "pending"
	OverrideStatusApproved = "approved"
)

// DependencyGraph is the base or effective system graph.
type DependencyGraph struct {
	Version          int         `json:"version"`
	Nodes            []string    `json:"nodes"`
	Edges            []GraphEdge `json:"edges"`
	ExternalProjects []string    `json:"external_projects,omitempty"`
}

// GraphOverride is the human override applied over the base graph.
type GraphOverride struct {
	Version          int         `json:"version"`
	Status           string      `json:"status"`
	ApprovedBy       string      `json:"approved_by,omitempty"`
	ApprovedAt       string      `json:"approved_at,omitempty"`
	AddEdges         []GraphEdge `json:"add_edges,omitempty"`
	RemoveEdges      []GraphEdge `json:"remove_edges,omitempty"`
	ExternalProjects []string    `json:"external_projects,omitempty"`
}

// ManifestFile is one sealed file record inside a bundle manifest.
type ManifestFile struct {
	LogicalPath string `json:"logical_path"`
	SourcePath  string `json:"source_path"`
	SHA256      string `json:"sha256"`
	Bytes       int    `json:"bytes"`
}

// BundleManifest seals the content of one knowledge bundle.
type BundleManifest struct {
	Version     int            `json:"version"`
	Scope       string         `json:"scope"`
	GeneratedAt string         `json:"generated_at"`
	Files       []ManifestFile `json:"files"`
}

// EvidenceExcerpt is one sliced citation inside the derived evidence bundle.
type EvidenceExcerpt struct {
	EvidenceID string `json:"evidence_id"`
	FilePath   string `json:"file_path"`
	CommitSHA  string `json:"commit_sha"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Excerpt    string `json:"excerpt"`
}

// EvidenceBundle is the derived excerpt document for repo-scope bundles.
type EvidenceBundle struct {
	Version  int               `json:"version"`
	RepoID   string            `json:"repo_id"`
	Evidence []EvidenceExcerpt `json:"evidence"`
}

// BundleInfo is the BUNDLE.json summary written next to a sealed manifest.
type BundleInfo struct {
	Version        int    `json:"version"`
	BundleID       string `json:"bundle_id"`
	Scope          string `json:"scope"`
	ManifestSHA256 string `json:"manifest_sha256"`
	FileCount      int    `json:"file_count"`
	CreatedAt      string `json:"created_at"`
}

// LatestBundleEntry records the newest bundle for one scope.
type LatestBundleEntry struct {
	BundleID       string `json:"bundle_id"`
	ManifestSHA256 string `json:"manifest_sha256"`
	Path           string `json:"path"`
	CreatedAt      string `json:"created_at"`
}

// LatestBundles is the bundles/LATEST.json document.
type LatestBundles struct {
	Version int                          `json:"version"`
	Scopes  map[string]LatestBundleEntry `json:"scopes"`
}
