package gitcli_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/pkg/gitcli"
)

func TestResolveRef_LocalBranch(t *testing.T) {
	t.Parallel()

	repo := gitcli.InitTestRepo(t, map[string]string{"README.md": "hello\n"})
	client := gitcli.NewClient()

	ref, err := client.ResolveRef(context.Background(), repo, "main")

	require.NoError(t, err)
	assert.Equal(t, "main", ref)
}

func TestResolveRef_MissingBranch(t *testing.T) {
	t.Parallel()

	repo := gitcli.InitTestRepo(t, map[string]string{"README.md": "hello\n"})
	client := gitcli.NewClient()

	ref, err := client.ResolveRef(context.Background(), repo, "no-such-branch")

	require.NoError(t, err)
	assert.Empty(t, ref)
}

func TestShowFileAtRef(t *testing.T) {
	t.Parallel()

	repo := gitcli.InitTestRepo(t, map[string]string{"svc/package.json": `{"name":"svc"}` + "\n"})
	client := gitcli.NewClient()

	content, err := client.ShowFileAtRef(context.Background(), repo, "main", "svc/package.json")

	require.NoError(t, err)
	assert.Equal(t, `{"name":"svc"}`+"\n", string(content))
}

func TestShowFileAtRef_MissingPath(t *testing.T) {
	t.Parallel()

	repo := gitcli.InitTestRepo(t, map[string]string{"README.md": "hi\n"})
	client := gitcli.NewClient()

	_, err := client.ShowFileAtRef(context.Background(), repo, "main", "missing.txt")

	require.ErrorIs(t, err, gitcli.ErrGitFailed)

	var cmdErr *gitcli.CmdError

	require.ErrorAs(t, err, &cmdErr)
	assert.NotEmpty(t, cmdErr.Stderr)
}

func TestRevListOneAndRevParseHead(t *testing.T) {
	t.Parallel()

	repo := gitcli.InitTestRepo(t, map[string]string{"README.md": "hi\n"})
	client := gitcli.NewClient()

	sha, err := client.RevListOne(context.Background(), repo, "main")
	require.NoError(t, err)
	require.Len(t, sha, 40)

	head, err := client.RevParseHead(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, sha, head)
}

func TestProbeWorkTree(t *testing.T) {
	t.Parallel()

	repo := gitcli.InitTestRepo(t, map[string]string{"README.md": "hi\n"})
	client := gitcli.NewClient()

	res := client.ProbeWorkTree(context.Background(), repo)

	assert.True(t, res.OK)
	assert.Len(t, res.Head, 40)

	res = client.ProbeWorkTree(context.Background(), t.TempDir())

	assert.False(t, res.OK)
	assert.False(t, res.DubiousOwnership)
}
