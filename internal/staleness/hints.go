package staleness

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// hintFileName maps a scope to its RH-* file.
func hintFileName(scope string) string {
	return "RH-" + strings.ReplaceAll(scope, ":", "-") + ".json"
}

// writeHint refreshes the per-scope refresh hint with the current reasons
// and the operator commands that clear them.
func (p *Policy) writeHint(l *layout.Layout, scope string, verdict *model.Staleness) error {
	suggested := []string{"lanegate index", "lanegate scan"}

	for _, repoID := range verdict.StaleRepos {
		suggested = append(suggested, fmt.Sprintf("lanegate scan --repo-id %s", repoID))
	}

	hint := model.RefreshHint{
		Version:   model.DocVersion,
		Scope:     scope,
		Reasons:   verdict.Reasons,
		Details:   verdict.Details,
		Suggested: suggested,
		UpdatedAt: model.NowRFC3339(p.now()),
	}

	return persist.WriteJSON(filepath.Join(l.RefreshHintsDir(), hintFileName(scope)), hint)
}

// driftDetail summarizes how a fingerprinted file changed between the
// scanned commit and the working ref. Best effort; empty on any failure.
func (p *Policy) driftDetail(ctx context.Context, repoAbs, scannedSHA, ref, path string) string {
	before, err := p.git.ShowFileAtRef(ctx, repoAbs, scannedSHA, path)
	if err != nil {
		return ""
	}

	after, err := p.git.ShowFileAtRef(ctx, repoAbs, ref, path)
	if err != nil {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(before), string(after), false)

	var added, removed int

	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			added += len(diff.Text)
		case diffmatchpatch.DiffDelete:
			removed += len(diff.Text)
		}
	}

	if added == 0 && removed == 0 {
		return ""
	}

	return fmt.Sprintf(" (+%dB -%dB)", added, removed)
}
