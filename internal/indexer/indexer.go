package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/src-d/enry/v2"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/gitcli"
	"github.com/opsgovern/lanegate/pkg/persist"
	"github.com/opsgovern/lanegate/pkg/pool"
)

// indexVersion is the RepoIndex schema version.
const indexVersion = 1

// maxSampledPaths caps per-category sampling of route/event paths.
const maxSampledPaths = 50

// Request identifies one repo to index.
type Request struct {
	RepoID       string
	RepoAbs      string
	ActiveBranch string
	// SiblingRepoIDs are the other registered repos, used for cross-repo
	// dependency discovery.
	SiblingRepoIDs []string
	// DependsOn carries cross-project dependency declarations into the index.
	DependsOn []model.ExternalDependency
	// Workers bounds fingerprint hashing concurrency.
	Workers int
}

// Indexer builds repo indexes through the git adapter.
type Indexer struct {
	git *gitcli.Client
	now func() time.Time
}

// New creates an indexer.
func New(git *gitcli.Client) *Indexer {
	return &Indexer{git: git, now: time.Now}
}

// WithClock overrides the indexer clock. Test hook.
func (ix *Indexer) WithClock(now func() time.Time) *Indexer {
	ix.now = now

	return ix
}

// Build indexes one repo at its resolved ref and returns the index and
// fingerprint documents. The result is deterministic for a fixed ref.
func (ix *Indexer) Build(ctx context.Context, req Request) (*model.RepoIndex, *model.RepoFingerprints, error) {
	ref, err := ix.git.ResolveRef(ctx, req.RepoAbs, req.ActiveBranch)
	if err != nil {
		return nil, nil, contract.WrapError(contract.GitKind(err), err, "resolve ref for %s", req.RepoID)
	}

	if ref == "" {
		return nil, nil, contract.NewError(contract.KindMissingInput,
			"repo %s: branch %q not found locally (neither refs/remotes/origin/%s nor refs/heads/%s)",
			req.RepoID, req.ActiveBranch, req.ActiveBranch, req.ActiveBranch)
	}

	head, err := ix.git.RevListOne(ctx, req.RepoAbs, ref)
	if err != nil {
		return nil, nil, contract.WrapError(contract.GitKind(err), err, "rev-list %s for %s", ref, req.RepoID)
	}

	allPaths, err := ix.git.LsTreeNames(ctx, req.RepoAbs, ref)
	if err != nil {
		return nil, nil, contract.WrapError(contract.GitKind(err), err, "ls-tree %s for %s", ref, req.RepoID)
	}

	sort.Strings(allPaths)

	var fingerprintPaths []string

	for _, relPath := range allPaths {
		if IsFingerprintWorthy(relPath) {
			fingerprintPaths = append(fingerprintPaths, relPath)
		}
	}

	contents, err := ix.hashPaths(ctx, req, ref, fingerprintPaths)
	if err != nil {
		return nil, nil, err
	}

	index := ix.assemble(req, ref, head, allPaths, fingerprintPaths, contents)

	fingerprints := &model.RepoFingerprints{
		Version: indexVersion,
		RepoID:  req.RepoID,
		Files:   make([]model.FingerprintEntry, 0, len(fingerprintPaths)),
	}

	for _, relPath := range fingerprintPaths {
		fingerprints.Files = append(fingerprints.Files, model.FingerprintEntry{
			Path:   relPath,
			SHA256: index.Fingerprints[relPath],
		})
	}

	return index, fingerprints, nil
}

// Write persists the index pair atomically under the knowledge root.
func Write(l *layout.Layout, index *model.RepoIndex, fingerprints *model.RepoFingerprints) error {
	err := persist.WriteJSON(l.RepoIndexPath(index.RepoID), index)
	if err != nil {
		return err
	}

	return persist.WriteJSON(l.RepoFingerprintsPath(index.RepoID), fingerprints)
}

// hashedFile pairs a path's content with its digest.
type hashedFile struct {
	content []byte
	sha256  string
}

func (ix *Indexer) hashPaths(ctx context.Context, req Request, ref string, paths []string) (map[string]hashedFile, error) {
	results := pool.Map(ctx, paths, req.Workers, func(ctx context.Context, relPath string, _ int) (hashedFile, error) {
		content, err := ix.git.ShowFileAtRef(ctx, req.RepoAbs, ref, relPath)
		if err != nil {
			return hashedFile{}, err
		}

		sum := sha256.Sum256(content)

		return hashedFile{content: content, sha256: hex.EncodeToString(sum[:])}, nil
	})

	contents := make(map[string]hashedFile, len(paths))

	for _, res := range results {
		if res.Err != nil {
			return nil, contract.WrapError(contract.GitKind(res.Err), res.Err,
				"hash %s at %s for %s", paths[res.Index], ref, req.RepoID)
		}

		contents[paths[res.Index]] = res.Value
	}

	return contents, nil
}

func (ix *Indexer) assemble(req Request, ref, head string, allPaths, fingerprintPaths []string, contents map[string]hashedFile) *model.RepoIndex {
	index := &model.RepoIndex{
		Version:      indexVersion,
		RepoID:       req.RepoID,
		Ref:          ref,
		CommitSHA:    head,
		ScannedAt:    model.NowRFC3339(ix.now()),
		Entrypoints:  []string{},
		APISurface:   model.APISurface{OpenAPIFiles: []string{}, RoutesControllers: []string{}, EventsTopics: []string{}},
		MigrationsSchema:      []string{},
		Hotspots:              []model.Hotspot{},
		CrossRepoDependencies: []model.CrossRepoDependency{},
		Languages:             map[string]int{},
		Fingerprints:          map[string]string{},
	}

	for _, relPath := range fingerprintPaths {
		index.Fingerprints[relPath] = contents[relPath].sha256
	}

	for _, relPath := range allPaths {
		if IsEntrypoint(relPath) {
			index.Entrypoints = append(index.Entrypoints, relPath)
		}

		if IsOpenAPIFile(relPath) || contractExtensions[path.Ext(relPath)] {
			index.APISurface.OpenAPIFiles = append(index.APISurface.OpenAPIFiles, relPath)
		}

		if IsRouteControllerFile(relPath) && len(index.APISurface.RoutesControllers) < maxSampledPaths {
			index.APISurface.RoutesControllers = append(index.APISurface.RoutesControllers, relPath)
		}

		if IsEventTopicFile(relPath) && len(index.APISurface.EventsTopics) < maxSampledPaths {
			index.APISurface.EventsTopics = append(index.APISurface.EventsTopics, relPath)
		}

		if IsMigrationFile(relPath) {
			index.MigrationsSchema = append(index.MigrationsSchema, relPath)
		}

		language := detectLanguage(relPath, contents)
		if language != "" {
			index.Languages[language]++
		}
	}

	ix.collectHotspots(index, fingerprintPaths)
	ix.collectBuildCommands(index, fingerprintPaths, contents)
	ix.collectCrossRepoDeps(index, req.SiblingRepoIDs, fingerprintPaths)

	if len(req.DependsOn) > 0 {
		index.Dependencies = &model.IndexDependencies{DependsOn: req.DependsOn}
	}

	return index
}

func detectLanguage(relPath string, contents map[string]hashedFile) string {
	var content []byte
	if hashed, ok := contents[relPath]; ok {
		content = hashed.content
	}

	language := enry.GetLanguage(path.Base(relPath), content)
	if language == enry.OtherLanguage {
		return ""
	}

	return language
}

// Hotspot reasons by rule.
const (
	reasonContainerBuild = "container build definition"
	reasonCIWorkflow     = "ci workflow"
	reasonDeployManifest = "deployment manifest"
	reasonMigration      = "schema migration"
)

func (ix *Indexer) collectHotspots(index *model.RepoIndex, fingerprintPaths []string) {
	for _, relPath := range fingerprintPaths {
		switch {
		case path.Base(relPath) == "Dockerfile":
			index.Hotspots = append(index.Hotspots, model.Hotspot{FilePath: relPath, Reason: reasonContainerBuild})
		case IsCIWorkflow(relPath):
			index.Hotspots = append(index.Hotspots, model.Hotspot{FilePath: relPath, Reason: reasonCIWorkflow})
		case strings.HasPrefix(relPath, "helm/") || strings.HasPrefix(relPath, "k8s/") || strings.HasPrefix(relPath, "kubernetes/"):
			index.Hotspots = append(index.Hotspots, model.Hotspot{FilePath: relPath, Reason: reasonDeployManifest})
		case IsMigrationFile(relPath):
			index.Hotspots = append(index.Hotspots, model.Hotspot{FilePath: relPath, Reason: reasonMigration})
		}
	}
}

func (ix *Indexer) collectBuildCommands(index *model.RepoIndex, fingerprintPaths []string, contents map[string]hashedFile) {
	commands := model.BuildCommands{
		Install:       []string{},
		Lint:          []string{},
		Build:         []string{},
		Test:          []string{},
		EvidenceFiles: []string{},
	}

	for _, relPath := range fingerprintPaths {
		if ciWorkflowPattern.MatchString(relPath) {
			ParseWorkflowCommands(&commands, relPath, contents[relPath].content)
		}
	}

	index.BuildCommands = commands
}

// collectCrossRepoDeps emits a path_reference edge whenever another
// registered repo's id appears as a path segment of a fingerprinted file.
func (ix *Indexer) collectCrossRepoDeps(index *model.RepoIndex, siblings, fingerprintPaths []string) {
	for _, sibling := range siblings {
		if sibling == index.RepoID {
			continue
		}

		for _, relPath := range fingerprintPaths {
			if !hasPathSegment(relPath, sibling) {
				continue
			}

			index.CrossRepoDependencies = append(index.CrossRepoDependencies, model.CrossRepoDependency{
				Type:         "path_reference",
				Target:       sibling,
				EvidenceRefs: []string{relPath},
			})

			break
		}
	}

	sort.Slice(index.CrossRepoDependencies, func(i, j int) bool {
		return index.CrossRepoDependencies[i].Target < index.CrossRepoDependencies[j].Target
	})
}

func hasPathSegment(relPath, segment string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if part == segment {
			return true
		}
	}

	return false
}

// Digest returns the hex sha256 of content. Exposed for scan-time
// fingerprint verification.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:])
}
