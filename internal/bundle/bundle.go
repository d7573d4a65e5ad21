// Package bundle builds hash-sealed knowledge bundles: normalized content,
// canonical manifest, derived evidence excerpts, and the LATEST pointer.
package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/staleness"
	"github.com/opsgovern/lanegate/pkg/canonjson"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/gitcli"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// Builder assembles bundles behind the staleness guard.
type Builder struct {
	git    *gitcli.Client
	policy *staleness.Policy
	now    func() time.Time
}

// New creates a builder.
func New(git *gitcli.Client, policy *staleness.Policy) *Builder {
	return &Builder{git: git, policy: policy, now: time.Now}
}

// WithClock overrides the clock. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now

	return b
}

// Request identifies one bundle build.
type Request struct {
	Scope string
	// Repos is the registry's active set, used for freshness and repo
	// resolution.
	Repos []model.Repo
	// OutBase overrides the output directory; it must stay within the lane's
	// bundles directory.
	OutBase string
	// Override authorizes building over stale knowledge.
	Override staleness.Override
}

// Result describes one sealed bundle.
type Result struct {
	BundleID       string
	ManifestSHA256 string
	Dir            string
	FileCount      int
}

// Build seals one bundle for the request's scope. Re-running over unchanged
// knowledge produces the identical bundle id.
func (b *Builder) Build(ctx context.Context, l *layout.Layout, req Request) (*Result, error) {
	repoID, err := model.ParseScope(req.Scope)
	if err != nil {
		return nil, contract.WrapError(contract.KindContractViolation, err, "bundle scope")
	}

	verdict, err := b.policy.Evaluate(ctx, l, req.Repos, req.Scope)
	if err != nil {
		return nil, err
	}

	err = b.policy.Guard(l, req.Scope, "bundle", verdict, req.Override)
	if err != nil {
		return nil, err
	}

	outBase, err := b.resolveOutBase(l, req.OutBase)
	if err != nil {
		return nil, err
	}

	includes, err := collectIncludes(l, req.Scope, repoID)
	if err != nil {
		return nil, err
	}

	projectRoot := filepath.Dir(l.OpsRoot)
	manifest := &model.BundleManifest{
		Version:     model.DocVersion,
		Scope:       req.Scope,
		GeneratedAt: model.NowRFC3339(b.now()),
		Files:       make([]model.ManifestFile, 0, len(includes)+1),
	}
	contents := make(map[string][]byte, len(includes)+1)

	for _, include := range includes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := os.ReadFile(include.sourcePath)
		if err != nil {
			return nil, contract.WrapError(contract.KindMissingInput, err, "bundle input %s", include.logicalPath)
		}

		normalized, err := normalizeContent(include.logicalPath, raw)
		if err != nil {
			return nil, contract.WrapError(contract.KindMalformed, err, "normalize %s", include.logicalPath)
		}

		sourceRel, err := filepath.Rel(projectRoot, include.sourcePath)
		if err != nil {
			sourceRel = include.sourcePath
		}

		sum := sha256.Sum256(normalized)

		contents[include.logicalPath] = normalized
		manifest.Files = append(manifest.Files, model.ManifestFile{
			LogicalPath: include.logicalPath,
			SourcePath:  filepath.ToSlash(sourceRel),
			SHA256:      hex.EncodeToString(sum[:]),
			Bytes:       len(normalized),
		})
	}

	if repoID != "" {
		err = b.addEvidenceBundle(ctx, l, req, repoID, manifest, contents)
		if err != nil {
			return nil, err
		}
	}

	sortManifest(manifest)

	canonicalManifest, err := canonjson.CanonicalizeValue(manifest, canonjson.Options{LogicalPath: "manifest.json"})
	if err != nil {
		return nil, fmt.Errorf("canonicalize manifest: %w", err)
	}

	manifestSum := sha256.Sum256(canonicalManifest)
	manifestSHA := hex.EncodeToString(manifestSum[:])
	bundleID := "sha256-" + manifestSHA

	scopeDir, err := model.ScopeDir(req.Scope)
	if err != nil {
		return nil, err
	}

	bundleDir := filepath.Join(outBase, filepath.FromSlash(scopeDir), bundleID)

	err = b.writeOut(ctx, l, bundleDir, bundleID, manifestSHA, canonicalManifest, manifest, contents)
	if err != nil {
		return nil, err
	}

	err = b.updateLatest(l, req.Scope, scopeDir, bundleID, manifestSHA)
	if err != nil {
		return nil, err
	}

	return &Result{
		BundleID:       bundleID,
		ManifestSHA256: manifestSHA,
		Dir:            bundleDir,
		FileCount:      len(manifest.Files),
	}, nil
}

// resolveOutBase defaults to the lane bundles directory and sandboxes any
// caller-provided base under it.
func (b *Builder) resolveOutBase(l *layout.Layout, outBase string) (string, error) {
	if outBase == "" {
		return l.BundlesDir(), nil
	}

	abs, err := filepath.Abs(outBase)
	if err != nil {
		return "", err
	}

	if abs != l.BundlesDir() {
		err = fsx.EnsureWithin(l.BundlesDir(), abs)
		if err != nil {
			return "", contract.WrapError(contract.KindContractViolation, err, "bundle out base")
		}
	}

	return abs, nil
}

func (b *Builder) addEvidenceBundle(ctx context.Context, l *layout.Layout, req Request, repoID string, manifest *model.BundleManifest, contents map[string][]byte) error {
	repoAbs := ""

	for _, repo := range req.Repos {
		if repo.RepoID == repoID {
			repoAbs = l.RepoAbs(repo.Path)

			break
		}
	}

	if repoAbs == "" {
		return contract.NewError(contract.KindMissingInput, "repo %s is not registered", repoID)
	}

	doc, err := b.buildEvidenceBundle(ctx, l, repoAbs, repoID)
	if err != nil {
		return err
	}

	const logicalPath = "bundle/evidence_bundle.json"

	canonical, err := canonjson.CanonicalizeValue(doc, canonjson.Options{LogicalPath: logicalPath})
	if err != nil {
		return fmt.Errorf("canonicalize evidence bundle: %w", err)
	}

	sum := sha256.Sum256(canonical)

	contents[logicalPath] = canonical
	manifest.Files = append(manifest.Files, model.ManifestFile{
		LogicalPath: logicalPath,
		SourcePath:  "(derived)",
		SHA256:      hex.EncodeToString(sum[:]),
		Bytes:       len(canonical),
	})

	return nil
}

func (b *Builder) writeOut(ctx context.Context, l *layout.Layout, bundleDir, bundleID, manifestSHA string, canonicalManifest []byte, manifest *model.BundleManifest, contents map[string][]byte) error {
	err := fsx.WriteFileAtomic(filepath.Join(bundleDir, "manifest.json"), canonicalManifest)
	if err != nil {
		return err
	}

	meta := model.BundleInfo{
		Version:        model.DocVersion,
		BundleID:       bundleID,
		Scope:          manifest.Scope,
		ManifestSHA256: manifestSHA,
		FileCount:      len(manifest.Files),
		CreatedAt:      model.NowRFC3339(b.now()),
	}

	err = persist.WriteJSON(filepath.Join(bundleDir, "BUNDLE.json"), meta)
	if err != nil {
		return err
	}

	err = fsx.WriteFileAtomic(filepath.Join(bundleDir, "BUNDLE.md"), renderBundleMarkdown(meta, manifest))
	if err != nil {
		return err
	}

	for _, file := range manifest.Files {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := filepath.Join(bundleDir, "content", filepath.FromSlash(file.LogicalPath))

		err = fsx.EnsureWithin(bundleDir, target)
		if err != nil {
			return contract.WrapError(contract.KindContractViolation, err, "bundle content path %s", file.LogicalPath)
		}

		err = fsx.WriteFileAtomic(target, contents[file.LogicalPath])
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) updateLatest(l *layout.Layout, scope, scopeDir, bundleID, manifestSHA string) error {
	latest := model.LatestBundles{Version: model.DocVersion, Scopes: map[string]model.LatestBundleEntry{}}

	err := persist.ReadJSON(l.LatestBundlesPath(), &latest)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return contract.WrapError(contract.KindMalformed, err, "bundles LATEST.json")
	}

	if latest.Scopes == nil {
		latest.Scopes = map[string]model.LatestBundleEntry{}
	}

	latest.Version = model.DocVersion
	latest.Scopes[scope] = model.LatestBundleEntry{
		BundleID:       bundleID,
		ManifestSHA256: manifestSHA,
		Path:           scopeDir + "/" + bundleID,
		CreatedAt:      model.NowRFC3339(b.now()),
	}

	return persist.WriteJSON(l.LatestBundlesPath(), latest)
}

func sortManifest(manifest *model.BundleManifest) {
	sort.Slice(manifest.Files, func(i, j int) bool {
		return manifest.Files[i].LogicalPath < manifest.Files[j].LogicalPath
	})
}

func renderBundleMarkdown(meta model.BundleInfo, manifest *model.BundleManifest) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Bundle %s\n\n", meta.BundleID)
	fmt.Fprintf(&b, "- Scope: %s\n", meta.Scope)
	fmt.Fprintf(&b, "- Created at: %s\n", meta.CreatedAt)
	fmt.Fprintf(&b, "- Files: %s\n\n", humanize.Comma(int64(meta.FileCount)))
	b.WriteString("| Logical path | Bytes | SHA256 |\n|---|---|---|\n")

	for _, file := range manifest.Files {
		fmt.Fprintf(&b, "| %s | %s | %.12s |\n", file.LogicalPath, humanize.Comma(int64(file.Bytes)), file.SHA256)
	}

	return []byte(b.String())
}
