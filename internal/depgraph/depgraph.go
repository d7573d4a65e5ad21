// Package depgraph loads the base dependency graph, applies the human
// override, and enforces the pre-scan approval gate.
package depgraph

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// blockerName is the file written under Lane A blockers when the gate
// refuses a scan.
const blockerName = "DEPS_NOT_APPROVED.json"

// Effective is the approved view consumed by the scanner.
type Effective struct {
	Graph    model.DependencyGraph
	Status   string
	Approved bool
}

// Load reads the base graph and override and produces the effective graph,
// deterministically sorted. A missing base graph yields an empty graph; a
// missing override leaves the graph pending approval.
func Load(l *layout.Layout) (*Effective, error) {
	var base model.DependencyGraph

	err := persist.ReadJSON(l.DependencyGraphPath(), &base)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, contract.WrapError(contract.KindMalformed, err, "dependency graph")
		}

		base = model.DependencyGraph{Version: model.DocVersion}
	}

	effective := &Effective{Graph: base, Status: model.OverrideStatusPending}

	raw, err := os.ReadFile(l.DependencyGraphOverridePath())
	if err == nil {
		override, validateErr := contract.ValidateGraphOverride(raw)
		if validateErr != nil {
			return nil, validateErr
		}

		apply(&effective.Graph, override)
		effective.Status = override.Status
	} else if !os.IsNotExist(err) {
		return nil, contract.WrapError(contract.KindMalformed, err, "dependency graph override")
	}

	effective.Approved = effective.Status == model.OverrideStatusApproved

	normalize(&effective.Graph)

	return effective, nil
}

// EnsureApproved enforces the pre-scan gate. When the effective graph is not
// approved and force is false, a DEPS_NOT_APPROVED blocker is written and a
// deps_not_approved error returned.
func EnsureApproved(l *layout.Layout, effective *Effective, force bool, now time.Time) error {
	if effective.Approved || force {
		return nil
	}

	blocker := map[string]any{
		"version":    model.DocVersion,
		"blocker":    "deps_not_approved",
		"status":     effective.Status,
		"created_at": model.NowRFC3339(now),
		"detail":     "dependency graph override must be approved before knowledge scans run",
		"resolution": "review dependency_graph.override.json, set status to approved, then re-run the scan",
	}

	err := persist.WriteJSON(filepath.Join(l.BlockersDir(), blockerName), blocker)
	if err != nil {
		return err
	}

	return contract.NewError(contract.KindDepsNotApproved,
		"dependency graph override status is %q; approve it or pass --force", effective.Status)
}

func apply(graph *model.DependencyGraph, override *model.GraphOverride) {
	for _, removed := range override.RemoveEdges {
		graph.Edges = removeEdge(graph.Edges, removed)
	}

	for _, added := range override.AddEdges {
		graph.Edges = removeEdge(graph.Edges, added)
		graph.Edges = append(graph.Edges, added)
	}

	for _, project := range override.ExternalProjects {
		graph.ExternalProjects = appendUnique(graph.ExternalProjects, project)
	}
}

func removeEdge(edges []model.GraphEdge, target model.GraphEdge) []model.GraphEdge {
	kept := edges[:0]

	for _, edge := range edges {
		if edge.From == target.From && edge.To == target.To && edge.Type == target.Type {
			continue
		}

		kept = append(kept, edge)
	}

	return kept
}

func normalize(graph *model.DependencyGraph) {
	nodes := map[string]bool{}
	for _, node := range graph.Nodes {
		nodes[node] = true
	}

	for _, edge := range graph.Edges {
		nodes[edge.From] = true
		nodes[edge.To] = true
	}

	graph.Nodes = graph.Nodes[:0]
	for node := range nodes {
		graph.Nodes = append(graph.Nodes, node)
	}

	sort.Strings(graph.Nodes)
	sort.Strings(graph.ExternalProjects)

	sort.Slice(graph.Edges, func(i, j int) bool {
		a, b := graph.Edges[i], graph.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}

		if a.To != b.To {
			return a.To < b.To
		}

		return a.Type < b.Type
	})
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}

	return append(list, value)
}
