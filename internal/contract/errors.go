// Package contract defines the closed set of error kinds surfaced by public
// operations and the schema validators for externally produced documents.
package contract

import (
	"errors"
	"fmt"

	"github.com/opsgovern/lanegate/pkg/ghcli"
	"github.com/opsgovern/lanegate/pkg/gitcli"
)

// Kind classifies a failure for callers and artifacts.
type Kind string

// The closed set of error kinds.
const (
	KindMissingInput              Kind = "missing_input"
	KindContractViolation         Kind = "contract_violation"
	KindEvidenceMissing           Kind = "evidence_missing"
	KindIndexOutOfDate            Kind = "index_out_of_date"
	KindKnowledgeStale            Kind = "knowledge_stale"
	KindKnowledgeVersionMismatch  Kind = "knowledge_version_mismatch"
	KindDepsNotApproved           Kind = "deps_not_approved"
	KindLaneAGovernanceViolation  Kind = "lane_a_governance_violation"
	KindExternalDependencyMissing Kind = "external_dependency_bundle_missing"
	KindGitFailed                 Kind = "git_failed"
	KindGHFailed                  Kind = "gh_failed"
	KindTimeout                   Kind = "timeout"
	KindMalformed                 Kind = "malformed"
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// GitKind classifies a git adapter failure. Deadline overruns get their
// own kind.
func GitKind(err error) Kind {
	if errors.Is(err, gitcli.ErrTimeout) {
		return KindTimeout
	}

	return KindGitFailed
}

// GHKind classifies a gh adapter failure.
func GHKind(err error) Kind {
	if errors.Is(err, ghcli.ErrTimeout) {
		return KindTimeout
	}

	return KindGHFailed
}

// KindOf extracts the kind from an error chain; unclassified errors report
// an empty kind.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	return ""
}
