package bundle

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/evidence"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
)

// excerptCacheDir holds lz4-compressed excerpt slices keyed by evidence id.
// Entries are immutable: an evidence id pins (commit, path, range).
func excerptCacheDir(l *layout.Layout) string {
	return filepath.Join(l.LaneARoot(), "cache", "excerpts")
}

// buildEvidenceBundle derives the repo-scope excerpt document from the
// repo's evidence refs. Every ref must belong to the scoped repo.
func (b *Builder) buildEvidenceBundle(ctx context.Context, l *layout.Layout, repoAbs, repoID string) (*model.EvidenceBundle, error) {
	refs, err := evidence.ReadRefs(l.EvidenceRefsPath(repoID))
	if err != nil {
		return nil, err
	}

	doc := &model.EvidenceBundle{
		Version:  model.DocVersion,
		RepoID:   repoID,
		Evidence: make([]model.EvidenceExcerpt, 0, len(refs)),
	}

	for _, ref := range refs {
		if ref.RepoID != repoID {
			return nil, contract.NewError(contract.KindContractViolation,
				"evidence ref %s belongs to repo %s, not %s", ref.EvidenceID, ref.RepoID, repoID)
		}

		excerpt, err := b.sliceExcerpt(ctx, l, repoAbs, ref)
		if err != nil {
			return nil, err
		}

		doc.Evidence = append(doc.Evidence, model.EvidenceExcerpt{
			EvidenceID: ref.EvidenceID,
			FilePath:   ref.FilePath,
			CommitSHA:  ref.CommitSHA,
			StartLine:  ref.StartLine,
			EndLine:    ref.EndLine,
			Excerpt:    excerpt,
		})
	}

	return doc, nil
}

// sliceExcerpt resolves one ref's line window, via the compressed cache when
// the slice was already materialized.
func (b *Builder) sliceExcerpt(ctx context.Context, l *layout.Layout, repoAbs string, ref model.EvidenceRef) (string, error) {
	cachePath := filepath.Join(excerptCacheDir(l), ref.EvidenceID+".lz4")

	cached, err := readCompressed(cachePath)
	if err == nil {
		return cached, nil
	}

	content, err := b.git.ShowFileAtRef(ctx, repoAbs, ref.CommitSHA, ref.FilePath)
	if err != nil {
		return "", contract.WrapError(contract.KindEvidenceMissing, err,
			"slice %s at %.12s", ref.FilePath, ref.CommitSHA)
	}

	excerpt := sliceLines(content, ref.StartLine, ref.EndLine)

	err = writeCompressed(cachePath, excerpt)
	if err != nil {
		return "", err
	}

	return excerpt, nil
}

// sliceLines extracts the inclusive 1-based line window.
func sliceLines(content []byte, startLine, endLine int) string {
	lines := strings.Split(string(content), "\n")

	if startLine < 1 {
		startLine = 1
	}

	if endLine > len(lines) {
		endLine = len(lines)
	}

	if startLine > endLine {
		return ""
	}

	return strings.Join(lines[startLine-1:endLine], "\n")
}

func readCompressed(absPath string) (string, error) {
	file, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	decompressed, err := io.ReadAll(lz4.NewReader(file))
	if err != nil {
		return "", err
	}

	return string(decompressed), nil
}

func writeCompressed(absPath string, text string) error {
	var buf bytes.Buffer

	writer := lz4.NewWriter(&buf)

	_, err := writer.Write([]byte(text))
	if err != nil {
		return err
	}

	err = writer.Close()
	if err != nil {
		return err
	}

	return fsx.WriteFileAtomic(absPath, buf.Bytes())
}
