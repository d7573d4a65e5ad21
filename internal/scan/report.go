package scan

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
)

// reportFactLimit caps the fact listing inside the human report.
const reportFactLimit = 40

// writeReport renders the human-readable companion to scan.json.
func writeReport(absPath string, doc *model.KnowledgeScan, refs []model.EvidenceRef) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Scan Report: %s\n\n", doc.RepoID)
	fmt.Fprintf(&b, "- Commit: `%s`\n", doc.CommitSHA)
	fmt.Fprintf(&b, "- Scanned at: %s\n", doc.ScannedAt)
	fmt.Fprintf(&b, "- Scan version: %d\n", doc.ScanVersion)
	fmt.Fprintf(&b, "- Coverage: %s of %s files fingerprinted\n",
		humanize.Comma(int64(doc.Coverage.FilesIndexed)), humanize.Comma(int64(doc.Coverage.FilesSeen)))
	fmt.Fprintf(&b, "- Evidence refs: %s\n", humanize.Comma(int64(len(refs))))
	fmt.Fprintf(&b, "- Facts: %s\n\n", humanize.Comma(int64(len(doc.Facts))))

	if len(doc.ExternalKnowledge) > 0 {
		b.WriteString("## External knowledge\n\n")

		for _, ext := range doc.ExternalKnowledge {
			fmt.Fprintf(&b, "- %s/%s: %s\n", ext.ProjectCode, ext.RepoID, ext.BundleID)
		}

		b.WriteString("\n")
	}

	b.WriteString("## Facts\n\n")

	for i, fact := range doc.Facts {
		if i == reportFactLimit {
			fmt.Fprintf(&b, "- … and %s more\n", humanize.Comma(int64(len(doc.Facts)-reportFactLimit)))

			break
		}

		fmt.Fprintf(&b, "- `%s` %s\n", fact.FactID, fact.Claim)
	}

	if len(doc.Unknowns) > 0 {
		b.WriteString("\n## Unknowns\n\n")

		for _, unknown := range doc.Unknowns {
			fmt.Fprintf(&b, "- %s\n", unknown)
		}
	}

	b.WriteString("\n")

	return fsx.WriteFileAtomic(absPath, []byte(b.String()))
}
