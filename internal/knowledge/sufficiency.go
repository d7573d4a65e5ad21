package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// sufficiencyPath keys one record by (scope, knowledge_version).
func sufficiencyPath(l *layout.Layout, scope, knowledgeVersion string) string {
	scopeKey := strings.ReplaceAll(scope, ":", "_")

	return filepath.Join(l.SufficiencyDir(), fmt.Sprintf("%s__%s.json", scopeKey, knowledgeVersion))
}

// LoadSufficiency returns the record for (scope, version); an absent record
// reads as insufficient.
func LoadSufficiency(l *layout.Layout, scope, knowledgeVersion string) (*model.SufficiencyRecord, error) {
	_, err := model.ParseScope(scope)
	if err != nil {
		return nil, contract.WrapError(contract.KindContractViolation, err, "sufficiency scope")
	}

	var record model.SufficiencyRecord

	err = persist.ReadJSON(sufficiencyPath(l, scope, knowledgeVersion), &record)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &model.SufficiencyRecord{
				Version:          model.DocVersion,
				Scope:            scope,
				KnowledgeVersion: knowledgeVersion,
				Status:           model.SufficiencyInsufficient,
			}, nil
		}

		return nil, contract.WrapError(contract.KindMalformed, err, "sufficiency record")
	}

	return &record, nil
}

// SetSufficiency records a status for (scope, version). The sufficient
// status is only reachable through this explicit call, never as a scan or
// synthesize side effect.
func SetSufficiency(l *layout.Layout, scope, knowledgeVersion, status, reasons string, now time.Time) (*model.SufficiencyRecord, error) {
	_, err := model.ParseScope(scope)
	if err != nil {
		return nil, contract.WrapError(contract.KindContractViolation, err, "sufficiency scope")
	}

	switch status {
	case model.SufficiencyInsufficient, model.SufficiencyPartial, model.SufficiencySufficient:
	default:
		return nil, contract.NewError(contract.KindContractViolation, "unknown sufficiency status %q", status)
	}

	if !model.VersionPattern.MatchString(knowledgeVersion) {
		return nil, contract.NewError(contract.KindContractViolation,
			"version %q does not match v<int>[.int[.int]]", knowledgeVersion)
	}

	record := &model.SufficiencyRecord{
		Version:          model.DocVersion,
		Scope:            scope,
		KnowledgeVersion: knowledgeVersion,
		Status:           status,
		CapturedAt:       model.NowRFC3339(now),
		Reasons:          reasons,
	}

	err = persist.WriteJSON(sufficiencyPath(l, scope, knowledgeVersion), record)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// DeliveryAllowed reports whether Lane B may accept delivery for a scope at
// a version: system sufficiency covers everything, repo sufficiency covers
// that repo.
func DeliveryAllowed(l *layout.Layout, scope, knowledgeVersion string) (bool, error) {
	system, err := LoadSufficiency(l, model.ScopeSystem, knowledgeVersion)
	if err != nil {
		return false, err
	}

	if system.Status == model.SufficiencySufficient {
		return true, nil
	}

	if scope == model.ScopeSystem {
		return false, nil
	}

	record, err := LoadSufficiency(l, scope, knowledgeVersion)
	if err != nil {
		return false, err
	}

	return record.Status == model.SufficiencySufficient, nil
}
