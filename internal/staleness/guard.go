package staleness

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/ledger"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// Override authorizes bypassing a staleness refusal, with attribution.
type Override struct {
	Force  bool
	By     string
	Reason string
}

// Guard blocks an operation on a stale scope. Without an override it writes
// a decision packet and refuses; with one it appends a stale_override audit
// line and passes.
func (p *Policy) Guard(l *layout.Layout, scope, operation string, verdict *model.Staleness, override Override) error {
	if !verdict.Stale {
		return nil
	}

	if override.Force {
		return ledger.Append(l.LaneALedger(), ledger.Entry{
			"action": "stale_override",
			"scope":  scope,
			"op":     operation,
			"by":     override.By,
			"reason": override.Reason,
		}, p.now())
	}

	err := p.writeDecisionPacket(l, scope, operation, verdict)
	if err != nil {
		return err
	}

	return contract.NewError(contract.KindKnowledgeStale,
		"scope %s is stale (%s); refresh knowledge or pass a stale override", scope, strings.Join(verdict.Reasons, "; "))
}

// writeDecisionPacket records the blocked operation for a human decision,
// as a JSON document with a markdown rendering beside it.
func (p *Policy) writeDecisionPacket(l *layout.Layout, scope, operation string, verdict *model.Staleness) error {
	now := p.now()
	ts := layout.FSSafeTimestamp(model.NowRFC3339(now))
	scopeKey := strings.ReplaceAll(scope, ":", "_")
	state := "knowledge_stale"
	base := fmt.Sprintf("DP-%s__%s__%s", ts, scopeKey, state)

	packet := model.DecisionPacket{
		Version:       model.DocVersion,
		DecisionID:    base,
		Scope:         scope,
		BlockingState: state,
		Trigger:       operation,
		ContextSummary: fmt.Sprintf("scope %s is stale: %s",
			scope, strings.Join(verdict.Reasons, "; ")),
		Question:                "Refresh knowledge before proceeding, or authorize a stale override?",
		ExpectedAnswerType:      "refresh|override",
		Constraints:             []string{"override requires by and reason for the audit ledger"},
		Blocks:                  []string{operation},
		AssumptionsIfUnanswered: "the operation stays blocked",
		CreatedAt:               model.NowRFC3339(now),
		Status:                  "open",
	}

	err := persist.WriteJSON(filepath.Join(l.DecisionPacketsDir(), base+".json"), packet)
	if err != nil {
		return err
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# Decision: %s\n\n", base)
	fmt.Fprintf(&b, "- Scope: %s\n", scope)
	fmt.Fprintf(&b, "- Blocked operation: %s\n", operation)
	fmt.Fprintf(&b, "- State: %s\n\n", state)
	b.WriteString("## Reasons\n\n")

	for _, reason := range verdict.Reasons {
		fmt.Fprintf(&b, "- %s\n", reason)
	}

	for _, detail := range verdict.Details {
		fmt.Fprintf(&b, "  - %s\n", detail)
	}

	b.WriteString("\n" + packet.Question + "\n")

	return fsx.WriteFileAtomic(filepath.Join(l.DecisionPacketsDir(), base+".md"), []byte(b.String()))
}
