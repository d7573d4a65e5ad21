// Package evidence builds the citation layer under every knowledge scan:
// stable evidence refs over file byte ranges at a commit, and the fact
// identifiers that cite them.
package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/gitcli"
)

const (
	// maxExcerptLines caps the cited window of any single file.
	maxExcerptLines = 200

	// maxSampledPaths caps the per-category path samples drawn from an index.
	maxSampledPaths = 50

	// extractorName is stamped on every ref this package produces.
	extractorName = "repo_index"
)

// CollectPaths gathers the sorted-unique candidate file paths a scan may
// cite, drawn from the index surfaces and every fingerprint key. Paths that
// are not clean relative paths are dropped.
func CollectPaths(index *model.RepoIndex, fingerprints *model.RepoFingerprints) []string {
	seen := map[string]bool{}

	add := func(paths ...string) {
		for _, path := range paths {
			if !ValidRelPath(path) {
				continue
			}

			seen[path] = true
		}
	}

	add(index.Entrypoints...)

	for _, hotspot := range index.Hotspots {
		add(hotspot.FilePath)
	}

	add(index.APISurface.OpenAPIFiles...)
	add(sample(index.APISurface.RoutesControllers)...)
	add(sample(index.APISurface.EventsTopics)...)
	add(sample(index.MigrationsSchema)...)
	add(index.BuildCommands.EvidenceFiles...)

	for _, dep := range index.CrossRepoDependencies {
		add(dep.EvidenceRefs...)
	}

	for _, entry := range fingerprints.Files {
		add(entry.Path)
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	return paths
}

// ValidRelPath reports whether a path is safe to cite: relative, forward
// slashes only, no parent traversal.
func ValidRelPath(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return false
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return false
		}
	}

	return true
}

// BuildRefs reads every candidate path at ref and produces one EvidenceRef
// per file over its first lines. Any unreadable path fails the whole build,
// which keeps the evidence set referentially closed.
func BuildRefs(ctx context.Context, git *gitcli.Client, repoAbs, ref, commitSHA, repoID string, paths []string, capturedAt string) ([]model.EvidenceRef, error) {
	refs := make([]model.EvidenceRef, 0, len(paths))

	for _, path := range paths {
		content, err := git.ShowFileAtRef(ctx, repoAbs, ref, path)
		if err != nil {
			return nil, contract.WrapError(contract.KindEvidenceMissing, err,
				"read %s at %s in repo %s", path, ref, repoID)
		}

		endLine := lineCount(content)
		if endLine > maxExcerptLines {
			endLine = maxExcerptLines
		}

		refs = append(refs, model.EvidenceRef{
			EvidenceID: ID(repoID, commitSHA, path, 1, endLine),
			RepoID:     repoID,
			FilePath:   path,
			CommitSHA:  commitSHA,
			StartLine:  1,
			EndLine:    endLine,
			Extractor:  extractorName,
			CapturedAt: capturedAt,
		})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].FilePath < refs[j].FilePath })

	return refs, nil
}

// ID derives the stable evidence identifier for a cited range.
func ID(repoID, commitSHA, filePath string, startLine, endLine int) string {
	material := fmt.Sprintf("%s\n%s\n%s\n%d:%d", repoID, commitSHA, filePath, startLine, endLine)
	sum := sha256.Sum256([]byte(material))

	return "EVID_" + hex.EncodeToString(sum[:])[:12]
}

// FactID derives the stable fact identifier from a category prefix and its
// distinguishing parts.
func FactID(prefix string, parts ...string) string {
	material := prefix + "\n" + strings.Join(parts, "\n")
	sum := sha256.Sum256([]byte(material))

	return "F_" + hex.EncodeToString(sum[:])[:10]
}

// ValidateFacts checks the evidence closure: every fact cites at least one
// evidence id and every cited id exists in refs.
func ValidateFacts(facts []model.Fact, refs []model.EvidenceRef) error {
	known := make(map[string]bool, len(refs))
	for _, ref := range refs {
		known[ref.EvidenceID] = true
	}

	for _, fact := range facts {
		if len(fact.EvidenceIDs) == 0 {
			return contract.NewError(contract.KindContractViolation,
				"fact %s cites no evidence", fact.FactID)
		}

		for _, id := range fact.EvidenceIDs {
			if !known[id] {
				return contract.NewError(contract.KindContractViolation,
					"fact %s cites unknown evidence id %s", fact.FactID, id)
			}
		}
	}

	return nil
}

// WriteRefs serializes refs as JSONL, one object per line, atomically.
func WriteRefs(absPath string, refs []model.EvidenceRef) error {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	for _, ref := range refs {
		err := encoder.Encode(ref)
		if err != nil {
			return fmt.Errorf("encode evidence ref %s: %w", ref.EvidenceID, err)
		}
	}

	return fsx.WriteFileAtomic(absPath, buf.Bytes())
}

// ReadRefs loads a JSONL evidence refs file. Blank lines are skipped;
// malformed lines fail the load.
func ReadRefs(absPath string) ([]model.EvidenceRef, error) {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, contract.WrapError(contract.KindMissingInput, err, "evidence refs")
	}

	var refs []model.EvidenceRef

	for i, line := range bytes.Split(raw, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var ref model.EvidenceRef

		err = json.Unmarshal(line, &ref)
		if err != nil {
			return nil, contract.WrapError(contract.KindMalformed, err,
				"evidence refs line %d", i+1)
		}

		refs = append(refs, ref)
	}

	return refs, nil
}

// lineCount counts content lines; an empty file still spans one citable line.
func lineCount(content []byte) int {
	if len(content) == 0 {
		return 1
	}

	count := bytes.Count(content, []byte("\n"))
	if content[len(content)-1] != '\n' {
		count++
	}

	return count
}

func sample(paths []string) []string {
	if len(paths) > maxSampledPaths {
		return paths[:maxSampledPaths]
	}

	return paths
}
