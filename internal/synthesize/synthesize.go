// Package synthesize folds per-repo scans into the system view: the
// integration map, its baseline gaps, and a rendered summary.
package synthesize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/evidence"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// Claim prefixes the integration map extracts from scan facts.
const (
	prefixEntrypoint  = "Entrypoint: "
	prefixAPIContract = "API contract file: "
	prefixInfra       = "Fingerprinted infra: "
	prefixCrossRepo   = "Depends on repo "
)

// Synthesizer folds scans into the system documents.
type Synthesizer struct {
	now func() time.Time
}

// New creates a synthesizer.
func New() *Synthesizer {
	return &Synthesizer{now: time.Now}
}

// WithClock overrides the clock. Test hook.
func (s *Synthesizer) WithClock(now func() time.Time) *Synthesizer {
	s.now = now

	return s
}

// Run loads every active repo's scan and writes integration.json, gaps.json,
// and integration.md. A single missing scan aborts with the full missing
// list.
func (s *Synthesizer) Run(l *layout.Layout, repos []model.Repo) (*model.Integration, *model.Gaps, error) {
	scans := make(map[string]*model.KnowledgeScan, len(repos))

	var missing []string

	for _, repo := range repos {
		var doc model.KnowledgeScan

		err := persist.ReadJSON(l.ScanPath(repo.RepoID), &doc)
		if err != nil {
			missing = append(missing, repo.RepoID)

			continue
		}

		scans[repo.RepoID] = &doc
	}

	if len(missing) > 0 {
		sort.Strings(missing)

		return nil, nil, contract.NewError(contract.KindMissingInput,
			"scans missing for %s; run scan first", strings.Join(missing, ", "))
	}

	generatedAt := model.NowRFC3339(s.now())
	integration := s.assemble(repos, scans, generatedAt)
	gaps := s.deriveGaps(integration, scans, generatedAt)

	err := persist.WriteJSON(l.IntegrationPath(), integration)
	if err != nil {
		return nil, nil, err
	}

	err = persist.WriteJSON(l.GapsPath(), gaps)
	if err != nil {
		return nil, nil, err
	}

	err = writeReport(l.IntegrationReportPath(), integration, gaps)
	if err != nil {
		return nil, nil, err
	}

	return integration, gaps, nil
}

func (s *Synthesizer) assemble(repos []model.Repo, scans map[string]*model.KnowledgeScan, generatedAt string) *model.Integration {
	integration := &model.Integration{
		Version:            model.DocVersion,
		Scope:              model.ScopeSystem,
		GeneratedAt:        generatedAt,
		Inputs:             []model.IntegrationInput{},
		IntegrationMap:     model.IntegrationMap{Repos: []model.IntegrationRepo{}},
		CrossRepoContracts: []string{},
		KnownUnknowns:      []string{},
	}

	sorted := append([]model.Repo(nil), repos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RepoID < sorted[j].RepoID })

	for _, repo := range sorted {
		doc := scans[repo.RepoID]

		integration.Inputs = append(integration.Inputs, model.IntegrationInput{
			RepoID:      repo.RepoID,
			ScannedAt:   doc.ScannedAt,
			ScanVersion: doc.ScanVersion,
		})

		entry := model.IntegrationRepo{
			RepoID:           repo.RepoID,
			Entrypoints:      []string{},
			APIContractFiles: []string{},
			InfraFiles:       []string{},
		}

		for _, fact := range doc.Facts {
			switch {
			case strings.HasPrefix(fact.Claim, prefixEntrypoint):
				entry.Entrypoints = append(entry.Entrypoints, strings.TrimPrefix(fact.Claim, prefixEntrypoint))
			case strings.HasPrefix(fact.Claim, prefixAPIContract):
				entry.APIContractFiles = append(entry.APIContractFiles, strings.TrimPrefix(fact.Claim, prefixAPIContract))
			case strings.HasPrefix(fact.Claim, prefixInfra):
				entry.InfraFiles = append(entry.InfraFiles, strings.TrimPrefix(fact.Claim, prefixInfra))
			case strings.HasPrefix(fact.Claim, prefixCrossRepo):
				integration.CrossRepoContracts = append(integration.CrossRepoContracts,
					fmt.Sprintf("%s: %s", repo.RepoID, fact.Claim))
			}
		}

		integration.IntegrationMap.Repos = append(integration.IntegrationMap.Repos, entry)

		for _, unknown := range doc.Unknowns {
			integration.KnownUnknowns = append(integration.KnownUnknowns,
				fmt.Sprintf("%s: %s", repo.RepoID, unknown))
		}
	}

	sort.Strings(integration.CrossRepoContracts)
	sort.Strings(integration.KnownUnknowns)

	return integration
}

// deriveGaps runs the baseline gap generator: a missing-contract gap for any
// repo whose scan shows no API contract file.
func (s *Synthesizer) deriveGaps(integration *model.Integration, scans map[string]*model.KnowledgeScan, generatedAt string) *model.Gaps {
	gaps := &model.Gaps{
		Version:     model.DocVersion,
		Scope:       model.ScopeSystem,
		GeneratedAt: generatedAt,
		Gaps:        []model.Gap{},
	}

	for _, entry := range integration.IntegrationMap.Repos {
		if len(entry.APIContractFiles) > 0 {
			continue
		}

		scope := model.RepoScope(entry.RepoID)

		gaps.Gaps = append(gaps.Gaps, model.Gap{
			GapID:  evidence.FactID("gap_missing_contract", entry.RepoID, fmt.Sprint(scans[entry.RepoID].ScanVersion)),
			Scope:  scope,
			RepoID: entry.RepoID,
			Kind:   "missing_contract",
			Detail: fmt.Sprintf("repo %s exposes no API contract file; document or generate one", entry.RepoID),
		})
	}

	return gaps
}

func writeReport(absPath string, integration *model.Integration, gaps *model.Gaps) error {
	var b strings.Builder

	b.WriteString("# Integration Map\n\n")
	fmt.Fprintf(&b, "- Generated at: %s\n", integration.GeneratedAt)
	fmt.Fprintf(&b, "- Repos: %s\n", humanize.Comma(int64(len(integration.IntegrationMap.Repos))))
	fmt.Fprintf(&b, "- Gaps: %s\n\n", humanize.Comma(int64(len(gaps.Gaps))))

	for _, repo := range integration.IntegrationMap.Repos {
		fmt.Fprintf(&b, "## %s\n\n", repo.RepoID)
		fmt.Fprintf(&b, "- Entrypoints: %s\n", listOrNone(repo.Entrypoints))
		fmt.Fprintf(&b, "- API contracts: %s\n", listOrNone(repo.APIContractFiles))
		fmt.Fprintf(&b, "- Infra: %s\n\n", listOrNone(repo.InfraFiles))
	}

	if len(integration.CrossRepoContracts) > 0 {
		b.WriteString("## Cross-repo contracts\n\n")

		for _, contractLine := range integration.CrossRepoContracts {
			fmt.Fprintf(&b, "- %s\n", contractLine)
		}

		b.WriteString("\n")
	}

	if len(gaps.Gaps) > 0 {
		b.WriteString("## Gaps\n\n")

		for _, gap := range gaps.Gaps {
			fmt.Fprintf(&b, "- `%s` [%s] %s\n", gap.GapID, gap.Kind, gap.Detail)
		}

		b.WriteString("\n")
	}

	return fsx.WriteFileAtomic(absPath, []byte(b.String()))
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}

	return strings.Join(items, ", ")
}
