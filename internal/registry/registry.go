// Package registry loads the active-repo list from <ops>/config/REPOS.json.
package registry

import (
	"os"
	"sort"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
)

// Registry is the loaded repo registry.
type Registry struct {
	repos []model.Repo
	byID  map[string]model.Repo
}

// Load reads and validates REPOS.json.
func Load(l *layout.Layout) (*Registry, error) {
	raw, err := os.ReadFile(l.ReposConfig())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, contract.WrapError(contract.KindMissingInput, err, "repo registry %s", l.ReposConfig())
		}

		return nil, contract.WrapError(contract.KindMalformed, err, "read repo registry")
	}

	doc, err := contract.ValidateRepoRegistry(raw)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Repo, len(doc.Repos))
	for _, repo := range doc.Repos {
		byID[repo.RepoID] = repo
	}

	return &Registry{repos: doc.Repos, byID: byID}, nil
}

// Active returns the active repos sorted by repo_id.
func (r *Registry) Active() []model.Repo {
	var active []model.Repo

	for _, repo := range r.repos {
		if repo.Status == model.RepoStatusActive {
			active = append(active, repo)
		}
	}

	sort.Slice(active, func(i, j int) bool { return active[i].RepoID < active[j].RepoID })

	return active
}

// ByID looks up one repo regardless of status.
func (r *Registry) ByID(repoID string) (model.Repo, bool) {
	repo, ok := r.byID[repoID]

	return repo, ok
}

// ActiveByID looks up one repo and reports whether it is active.
func (r *Registry) ActiveByID(repoID string) (model.Repo, bool) {
	repo, ok := r.byID[repoID]
	if !ok || repo.Status != model.RepoStatusActive {
		return model.Repo{}, false
	}

	return repo, true
}
