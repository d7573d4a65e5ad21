package contract_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/pkg/ghcli"
	"github.com/opsgovern/lanegate/pkg/gitcli"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	err := contract.NewError(contract.KindKnowledgeStale, "scope %s is stale", "system")

	assert.Equal(t, contract.KindKnowledgeStale, contract.KindOf(err))

	wrapped := fmt.Errorf("outer: %w", err)

	assert.Equal(t, contract.KindKnowledgeStale, contract.KindOf(wrapped))
	assert.Equal(t, contract.Kind(""), contract.KindOf(errors.New("plain")))
}

func TestGitKindAndGHKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, contract.KindTimeout, contract.GitKind(fmt.Errorf("show-ref: %w", gitcli.ErrTimeout)))
	assert.Equal(t, contract.KindGitFailed, contract.GitKind(gitcli.ErrGitFailed))
	assert.Equal(t, contract.KindGitFailed, contract.GitKind(errors.New("plain")))

	assert.Equal(t, contract.KindTimeout, contract.GHKind(fmt.Errorf("pr view: %w", ghcli.ErrTimeout)))
	assert.Equal(t, contract.KindGHFailed, contract.GHKind(ghcli.ErrGHFailed))
}

func TestValidateMergeEvent_Valid(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"version": 1,
		"id": "EV-repo-a-20260210-120000-a1b2c3d4",
		"type": "merge",
		"repo_id": "repo-a",
		"pr_number": 42,
		"merge_commit_sha": "abc1234",
		"base_branch": "main",
		"affected_paths": ["src/a.go"],
		"timestamp": "2026-02-10T12:00:00Z"
	}`)

	event, err := contract.ValidateMergeEvent(raw)

	require.NoError(t, err)
	assert.Equal(t, "repo-a", event.RepoID)
	assert.Equal(t, 42, event.PRNumber)
}

func TestValidateMergeEvent_Violations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"zero pr number", `{"version":1,"id":"x","type":"merge","repo_id":"a","pr_number":0,"merge_commit_sha":"abc1234","base_branch":"main","affected_paths":[],"timestamp":"t"}`},
		{"short sha", `{"version":1,"id":"x","type":"merge","repo_id":"a","pr_number":1,"merge_commit_sha":"ab","base_branch":"main","affected_paths":[],"timestamp":"t"}`},
		{"wrong type", `{"version":1,"id":"x","type":"push","repo_id":"a","pr_number":1,"merge_commit_sha":"abc1234","base_branch":"main","affected_paths":[],"timestamp":"t"}`},
		{"bad repo id", `{"version":1,"id":"x","type":"merge","repo_id":"Repo A","pr_number":1,"merge_commit_sha":"abc1234","base_branch":"main","affected_paths":[],"timestamp":"t"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := contract.ValidateMergeEvent([]byte(tc.raw))

			require.Error(t, err)
			assert.Equal(t, contract.KindContractViolation, contract.KindOf(err))
		})
	}
}

func TestValidateMergeEvent_Malformed(t *testing.T) {
	t.Parallel()

	_, err := contract.ValidateMergeEvent([]byte(`{"version":`))

	require.Error(t, err)
	assert.Equal(t, contract.KindMalformed, contract.KindOf(err))
}

func TestValidateIntakeApproval(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"id":"IA-001","scope":"repo:svc-a","knowledge_version":"v1.2","approved_by":"ops","approved_at":"2026-02-10T00:00:00Z"}`)

	approval, err := contract.ValidateIntakeApproval(raw)

	require.NoError(t, err)
	assert.Equal(t, "repo:svc-a", approval.Scope)

	_, err = contract.ValidateIntakeApproval([]byte(`{"id":"IA-001","scope":"repo:Bad Scope","knowledge_version":"v1","approved_by":"x","approved_at":"t"}`))

	require.Error(t, err)
	assert.Equal(t, contract.KindContractViolation, contract.KindOf(err))
}

func TestValidateRepoRegistry_DuplicateRepoID(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"version":1,"repos":[
		{"repo_id":"a","path":"a","active_branch":"main","team_id":"t1","status":"active"},
		{"repo_id":"a","path":"b","active_branch":"main","team_id":"t1","status":"active"}
	]}`)

	_, err := contract.ValidateRepoRegistry(raw)

	require.Error(t, err)
	assert.Equal(t, contract.KindContractViolation, contract.KindOf(err))
}

func TestValidateGraphOverride(t *testing.T) {
	t.Parallel()

	override, err := contract.ValidateGraphOverride([]byte(`{"version":1,"status":"approved","approved_by":"ops"}`))

	require.NoError(t, err)
	assert.Equal(t, "approved", override.Status)

	_, err = contract.ValidateGraphOverride([]byte(`{"version":1,"status":"rejected"}`))

	require.Error(t, err)
}
