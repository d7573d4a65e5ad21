// Package commands wires the lanegate CLI subcommands over the pipeline
// packages: indexing, scanning, synthesis, bundling, the event log, and the
// Lane B governance gate.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/opsgovern/lanegate/internal/config"
	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/gitcli"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// runContext bundles the resolved layout, configuration, and git adapter
// that every subcommand needs.
type runContext struct {
	Layout *layout.Layout
	Config *config.Config
	Git    *gitcli.Client
}

// newRunContext resolves AI_PROJECT_ROOT and loads the runtime
// configuration.
func newRunContext() (*runContext, error) {
	l, err := layout.FromEnv()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		return nil, err
	}

	git := &gitcli.Client{Timeout: time.Duration(cfg.Git.TimeoutMS) * time.Millisecond}

	return &runContext{Layout: l, Config: cfg, Git: git}, nil
}

// withLock runs fn while holding the Lane A orchestrate lock. A lock older
// than the configured stale threshold is taken over.
func (rc *runContext) withLock(op string, fn func() error) error {
	lock := fsx.NewLock(rc.Layout.OrchestrateLock())
	staleAfter := time.Duration(rc.Config.Lock.StaleMinutes) * time.Minute

	err := lock.Acquire(staleAfter, map[string]any{"op": op, "pid": os.Getpid()})
	if err != nil {
		return err
	}

	runErr := fn()

	releaseErr := lock.Release()
	if runErr != nil {
		return runErr
	}

	return releaseErr
}

// selectRepos resolves --repo-id against the registry: empty means every
// active repo.
func selectRepos(reg *registry.Registry, repoID string) ([]model.Repo, error) {
	if repoID == "" {
		return reg.Active(), nil
	}

	repo, ok := reg.ActiveByID(repoID)
	if !ok {
		return nil, contract.NewError(contract.KindMissingInput,
			"repo %s is not an active registered repo", repoID)
	}

	return []model.Repo{repo}, nil
}

// siblingIDs returns every active repo id except self.
func siblingIDs(active []model.Repo, self string) []string {
	var out []string

	for _, repo := range active {
		if repo.RepoID != self {
			out = append(out, repo.RepoID)
		}
	}

	return out
}

// projectDeclarations is the subset of PROJECT.json the indexer consumes:
// per-repo cross-project dependency declarations.
type projectDeclarations struct {
	DependsOn map[string][]model.ExternalDependency `json:"depends_on,omitempty"`
}

// loadProjectDeps reads PROJECT.json; a missing file means no cross-project
// dependencies are declared.
func loadProjectDeps(l *layout.Layout) (map[string][]model.ExternalDependency, error) {
	var doc projectDeclarations

	err := persist.ReadJSON(l.ProjectConfig(), &doc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	return doc.DependsOn, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
