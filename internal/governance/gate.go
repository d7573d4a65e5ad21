package governance

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/knowledge"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/ledger"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/staleness"
)

// Gate validates a Lane A-origin intake before triage may proceed.
type Gate struct {
	policy *staleness.Policy
	now    func() time.Time
}

// NewGate creates a gate over the given freshness policy.
func NewGate(policy *staleness.Policy) *Gate {
	return &Gate{policy: policy, now: time.Now}
}

// WithClock overrides the clock. Test hook.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now

	return g
}

// Check runs every gate check in order. A nil error means the intake may be
// triaged; failures carry the kind Lane B records as the reason code.
func (g *Gate) Check(ctx context.Context, l *layout.Layout, repos []model.Repo, header *IntakeHeader) error {
	err := g.checkMetadata(header)
	if err != nil {
		return err
	}

	approval, err := g.loadApproval(l, header)
	if err != nil {
		return err
	}

	err = g.checkVersionLock(l, header)
	if err != nil {
		return err
	}

	verdict, err := g.policy.Evaluate(ctx, l, repos, header.Scope)
	if err != nil {
		return err
	}

	if verdict.Stale {
		return contract.NewError(contract.KindKnowledgeStale,
			"scope %s is stale; refresh knowledge before triaging this intake", header.Scope)
	}

	return g.checkSufficiency(l, header, approval)
}

// checkMetadata enforces header completeness and grammar.
func (g *Gate) checkMetadata(header *IntakeHeader) error {
	if header.IntakeApprovalID == "" {
		return contract.NewError(contract.KindLaneAGovernanceViolation,
			"intake header is missing intake_approval_id")
	}

	_, err := model.ParseScope(header.Scope)
	if err != nil {
		return contract.WrapError(contract.KindLaneAGovernanceViolation, err,
			"intake header scope %q", header.Scope)
	}

	if !model.VersionPattern.MatchString(header.KnowledgeVersion) {
		return contract.NewError(contract.KindLaneAGovernanceViolation,
			"intake header knowledge_version %q is not a valid version", header.KnowledgeVersion)
	}

	return nil
}

// loadApproval reads the processed IA file and requires a verbatim match on
// id, scope, and knowledge version.
func (g *Gate) loadApproval(l *layout.Layout, header *IntakeHeader) (*model.IntakeApproval, error) {
	path := filepath.Join(l.IntakeApprovalsProcessedDir(), header.IntakeApprovalID+".json")

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, contract.NewError(contract.KindLaneAGovernanceViolation,
				"intake approval %s has not been processed", header.IntakeApprovalID)
		}

		return nil, err
	}

	approval, err := contract.ValidateIntakeApproval(raw)
	if err != nil {
		return nil, err
	}

	if approval.ID != header.IntakeApprovalID || approval.Scope != header.Scope {
		return nil, contract.NewError(contract.KindLaneAGovernanceViolation,
			"intake approval %s does not match the intake header scope %s", approval.ID, header.Scope)
	}

	if approval.KnowledgeVersion != header.KnowledgeVersion {
		return nil, contract.NewError(contract.KindKnowledgeVersionMismatch,
			"intake approval %s is for knowledge version %s, header declares %s",
			approval.ID, approval.KnowledgeVersion, header.KnowledgeVersion)
	}

	return approval, nil
}

// checkVersionLock requires the header version to equal the current pointer.
func (g *Gate) checkVersionLock(l *layout.Layout, header *IntakeHeader) error {
	current, err := knowledge.LoadVersion(l)
	if err != nil {
		return err
	}

	if header.KnowledgeVersion != current.Current {
		return contract.NewError(contract.KindKnowledgeVersionMismatch,
			"intake header declares knowledge version %s, current is %s",
			header.KnowledgeVersion, current.Current)
	}

	return nil
}

// checkSufficiency requires delivery to be allowed at (scope, version); an
// IA-carried override bypasses with an audit ledger line.
func (g *Gate) checkSufficiency(l *layout.Layout, header *IntakeHeader, approval *model.IntakeApproval) error {
	allowed, err := knowledge.DeliveryAllowed(l, header.Scope, header.KnowledgeVersion)
	if err != nil {
		return err
	}

	if allowed {
		return nil
	}

	if approval.SufficiencyOverride {
		return ledger.Append(l.LaneBLedger(), ledger.Entry{
			"action":             "sufficiency_override",
			"intake_approval_id": approval.ID,
			"scope":              header.Scope,
			"knowledge_version":  header.KnowledgeVersion,
			"by":                 approval.ApprovedBy,
		}, g.now())
	}

	return contract.NewError(contract.KindLaneAGovernanceViolation,
		"knowledge at %s %s is not sufficient for delivery", header.Scope, header.KnowledgeVersion)
}
