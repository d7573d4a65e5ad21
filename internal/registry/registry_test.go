package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/registry"
)

// seedLayout creates a project layout with the given REPOS.json content.
func seedLayout(t *testing.T, reposJSON string) *layout.Layout {
	t.Helper()

	root := t.TempDir()
	l, err := layout.New(filepath.Join(root, "ops"))
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(l.ConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(l.ReposConfig(), []byte(reposJSON), 0o644))

	return l
}

func TestLoad_SortsActiveAndSkipsArchived(t *testing.T) {
	t.Parallel()

	l := seedLayout(t, `{"version":1,"repos":[
		{"repo_id":"svc-b","path":"svc-b","active_branch":"main","team_id":"t1","status":"active"},
		{"repo_id":"svc-a","path":"svc-a","active_branch":"main","team_id":"t1","status":"active"},
		{"repo_id":"legacy","path":"legacy","active_branch":"master","team_id":"t2","status":"archived"}
	]}`)

	reg, err := registry.Load(l)

	require.NoError(t, err)

	active := reg.Active()

	require.Len(t, active, 2)
	assert.Equal(t, "svc-a", active[0].RepoID)
	assert.Equal(t, "svc-b", active[1].RepoID)

	_, ok := reg.ActiveByID("legacy")
	assert.False(t, ok)

	legacy, ok := reg.ByID("legacy")
	assert.True(t, ok)
	assert.Equal(t, "archived", legacy.Status)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l, err := layout.New(filepath.Join(root, "ops"))
	require.NoError(t, err)

	_, err = registry.Load(l)

	require.Error(t, err)
	assert.Equal(t, contract.KindMissingInput, contract.KindOf(err))
}

func TestLoad_ContractViolation(t *testing.T) {
	t.Parallel()

	l := seedLayout(t, `{"version":1,"repos":[{"repo_id":"BAD ID","path":"x","active_branch":"main","team_id":"t","status":"active"}]}`)

	_, err := registry.Load(l)

	require.Error(t, err)
	assert.Equal(t, contract.KindContractViolation, contract.KindOf(err))
}
