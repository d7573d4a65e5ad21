package scan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsgovern/lanegate/internal/evidence"
	"github.com/opsgovern/lanegate/internal/indexer"
	"github.com/opsgovern/lanegate/internal/model"
)

// deriveFacts maps the index surfaces to evidence-backed claims. Only paths
// present in the evidence set may be cited; surfaces without evidence are
// skipped rather than fabricated.
func deriveFacts(repoID string, index *model.RepoIndex, refs []model.EvidenceRef) ([]model.Fact, []string) {
	byPath := make(map[string]string, len(refs))
	for _, ref := range refs {
		byPath[ref.FilePath] = ref.EvidenceID
	}

	var facts []model.Fact

	cite := func(prefix, claimFormat, path string) {
		id, ok := byPath[path]
		if !ok {
			return
		}

		facts = append(facts, model.Fact{
			FactID:      evidence.FactID(prefix, repoID, path),
			Claim:       fmt.Sprintf(claimFormat, path),
			EvidenceIDs: []string{id},
		})
	}

	for _, path := range index.Entrypoints {
		cite("entrypoint", "Entrypoint: %s", path)
	}

	hasContract := false

	for _, path := range index.APISurface.OpenAPIFiles {
		cite("api_contract", "API contract file: %s", path)

		if _, ok := byPath[path]; ok {
			hasContract = true
		}
	}

	for _, path := range index.APISurface.RoutesControllers {
		cite("route_controller", "Route/controller file: %s", path)
	}

	for _, path := range index.APISurface.EventsTopics {
		cite("event_topic", "Event/topic file: %s", path)
	}

	for _, path := range index.MigrationsSchema {
		cite("migration", "Schema migration: %s", path)
	}

	facts = append(facts, buildCommandFacts(repoID, index, byPath)...)

	for _, dep := range index.CrossRepoDependencies {
		for _, path := range dep.EvidenceRefs {
			id, ok := byPath[path]
			if !ok {
				continue
			}

			facts = append(facts, model.Fact{
				FactID:      evidence.FactID("cross_repo", repoID, dep.Target, path),
				Claim:       fmt.Sprintf("Depends on repo %s (%s via %s)", dep.Target, dep.Type, path),
				EvidenceIDs: []string{id},
			})

			break
		}
	}

	for _, hotspot := range index.Hotspots {
		id, ok := byPath[hotspot.FilePath]
		if !ok {
			continue
		}

		facts = append(facts, model.Fact{
			FactID:      evidence.FactID("hotspot", repoID, hotspot.FilePath),
			Claim:       fmt.Sprintf("Hotspot (%s): %s", hotspot.Reason, hotspot.FilePath),
			EvidenceIDs: []string{id},
		})
	}

	for path := range index.Fingerprints {
		category := indexer.FingerprintCategory(path)
		if category == "" {
			continue
		}

		cite("fingerprint_"+category, "Fingerprinted "+category+": %s", path)
	}

	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Claim != facts[j].Claim {
			return facts[i].Claim < facts[j].Claim
		}

		return facts[i].FactID < facts[j].FactID
	})

	facts = dedupeFacts(facts)

	return facts, deriveUnknowns(hasContract, facts, refs)
}

func buildCommandFacts(repoID string, index *model.RepoIndex, byPath map[string]string) []model.Fact {
	groups := []struct {
		kind     string
		commands []string
	}{
		{"install", index.BuildCommands.Install},
		{"lint", index.BuildCommands.Lint},
		{"build", index.BuildCommands.Build},
		{"test", index.BuildCommands.Test},
	}

	var ids []string

	for _, file := range index.BuildCommands.EvidenceFiles {
		if id, ok := byPath[file]; ok {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return nil
	}

	var facts []model.Fact

	for _, group := range groups {
		if len(group.commands) == 0 {
			continue
		}

		facts = append(facts, model.Fact{
			FactID:      evidence.FactID("build_commands", repoID, group.kind),
			Claim:       fmt.Sprintf("Build commands (%s): %s", group.kind, strings.Join(group.commands, "; ")),
			EvidenceIDs: ids,
		})
	}

	return facts
}

// deriveUnknowns flags the absence of any API contract file when the scan
// produced at least one fact, citing the first evidence id as context.
func deriveUnknowns(hasContract bool, facts []model.Fact, refs []model.EvidenceRef) []string {
	unknowns := []string{}

	if !hasContract && len(facts) > 0 && len(refs) > 0 {
		unknowns = append(unknowns, fmt.Sprintf(
			"No API contract file (OpenAPI/GraphQL/proto) detected; the service API surface is unconfirmed (see %s)",
			refs[0].EvidenceID))
	}

	return unknowns
}

func dedupeFacts(facts []model.Fact) []model.Fact {
	seen := map[string]bool{}
	kept := facts[:0]

	for _, fact := range facts {
		if seen[fact.FactID] {
			continue
		}

		seen[fact.FactID] = true
		kept = append(kept, fact)
	}

	return kept
}
