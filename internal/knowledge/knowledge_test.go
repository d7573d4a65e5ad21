package knowledge_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/knowledge"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/persist"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func testLayout(t *testing.T) *layout.Layout {
	t.Helper()

	l, err := layout.New(filepath.Join(t.TempDir(), "ops"))
	require.NoError(t, err)

	return l
}

func TestNext_BumpSemantics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		current string
		kind    string
		want    string
	}{
		{"v0", knowledge.BumpMajor, "v1"},
		{"v2.3.4", knowledge.BumpMajor, "v3"},
		{"v2", knowledge.BumpMinor, "v2.1"},
		{"v2.3", knowledge.BumpMinor, "v2.4"},
		{"v2.3.9", knowledge.BumpMinor, "v2.4"},
		{"v2", knowledge.BumpPatch, "v2.0.1"},
		{"v2.3", knowledge.BumpPatch, "v2.4"},
		{"v2.3.4", knowledge.BumpPatch, "v2.3.5"},
	}

	for _, tc := range cases {
		got, err := knowledge.Next(tc.current, tc.kind)

		require.NoError(t, err, "%s %s", tc.current, tc.kind)
		assert.Equal(t, tc.want, got, "%s %s", tc.current, tc.kind)
	}

	_, err := knowledge.Next("v1", "bump_sideways")
	assert.Equal(t, contract.KindContractViolation, contract.KindOf(err))
}

func TestBump_PersistsHistoryAndMirror(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	doc, err := knowledge.Bump(l, knowledge.BumpMajor, "system", "initial index", testNow)

	require.NoError(t, err)
	assert.Equal(t, "v1", doc.Current)
	require.Len(t, doc.History, 1)
	assert.Equal(t, "bump_major", doc.History[0].Reason)

	doc, err = knowledge.Bump(l, knowledge.BumpMinor, "repo:svc-a", "", testNow)

	require.NoError(t, err)
	assert.Equal(t, "v1.1", doc.Current)

	reloaded, err := knowledge.LoadVersion(l)
	require.NoError(t, err)
	assert.Equal(t, "v1.1", reloaded.Current)
	assert.Len(t, reloaded.History, 2)

	markdown, err := os.ReadFile(l.VersionMirrorMarkdownPath())
	require.NoError(t, err)
	assert.Contains(t, string(markdown), "# Knowledge Version: v1.1")
}

func TestBump_MirrorKeepsLastFifty(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	for i := 0; i < 55; i++ {
		_, err := knowledge.Bump(l, knowledge.BumpMajor, "system", "", testNow)
		require.NoError(t, err)
	}

	var mirror model.KnowledgeVersion
	require.NoError(t, persist.ReadJSON(l.VersionMirrorJSONPath(), &mirror))

	assert.Len(t, mirror.History, 50)
	assert.Equal(t, "v55", mirror.Current)

	full, err := knowledge.LoadVersion(l)
	require.NoError(t, err)
	assert.Len(t, full.History, 55)
}

func TestSetExplicit_RecordsFrom(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	_, err := knowledge.Bump(l, knowledge.BumpMajor, "system", "", testNow)
	require.NoError(t, err)

	doc, err := knowledge.SetExplicit(l, "v7.2", "system", "migration", testNow)

	require.NoError(t, err)
	assert.Equal(t, "v7.2", doc.Current)

	last := doc.History[len(doc.History)-1]
	assert.Equal(t, "set_explicit", last.Reason)
	assert.True(t, strings.Contains(last.Notes, "from=v1"))
	assert.True(t, strings.Contains(last.Notes, "migration"))

	_, err = knowledge.SetExplicit(l, "7.2", "system", "", testNow)
	assert.Equal(t, contract.KindContractViolation, contract.KindOf(err))
}

func TestSufficiency_DefaultsInsufficient(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	record, err := knowledge.LoadSufficiency(l, "repo:svc-a", "v1")

	require.NoError(t, err)
	assert.Equal(t, model.SufficiencyInsufficient, record.Status)
}

func TestSufficiency_ExplicitApproveOnly(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	_, err := knowledge.SetSufficiency(l, "repo:svc-a", "v1", model.SufficiencySufficient, "reviewed", testNow)
	require.NoError(t, err)

	record, err := knowledge.LoadSufficiency(l, "repo:svc-a", "v1")
	require.NoError(t, err)
	assert.Equal(t, model.SufficiencySufficient, record.Status)

	other, err := knowledge.LoadSufficiency(l, "repo:svc-a", "v2")
	require.NoError(t, err)
	assert.Equal(t, model.SufficiencyInsufficient, other.Status)

	_, err = knowledge.SetSufficiency(l, "repo:svc-a", "v1", "great", "", testNow)
	assert.Equal(t, contract.KindContractViolation, contract.KindOf(err))
}

func TestDeliveryAllowed(t *testing.T) {
	t.Parallel()

	l := testLayout(t)

	allowed, err := knowledge.DeliveryAllowed(l, "repo:svc-a", "v1")
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = knowledge.SetSufficiency(l, "repo:svc-a", "v1", model.SufficiencySufficient, "", testNow)
	require.NoError(t, err)

	allowed, err = knowledge.DeliveryAllowed(l, "repo:svc-a", "v1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = knowledge.DeliveryAllowed(l, "repo:svc-b", "v1")
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = knowledge.SetSufficiency(l, "system", "v1", model.SufficiencySufficient, "", testNow)
	require.NoError(t, err)

	allowed, err = knowledge.DeliveryAllowed(l, "repo:svc-b", "v1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
