package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ScopeSystem is the whole-portfolio scope.
const ScopeSystem = "system"

// repoScopePrefix prefixes repo-granular scopes.
const repoScopePrefix = "repo:"

// Validation patterns shared across documents.
var (
	// RepoIDPattern constrains repo identifiers.
	RepoIDPattern = regexp.MustCompile(`^[a-z0-9_\-]+$`)
	// VersionPattern constrains knowledge version strings.
	VersionPattern = regexp.MustCompile(`^v\d+(\.\d+(\.\d+)?)?$`)
)

// ErrInvalidScope indicates a scope string outside the grammar.
var ErrInvalidScope = errors.New("invalid scope")

// RepoScope builds the scope string for one repo.
func RepoScope(repoID string) string {
	return repoScopePrefix + repoID
}

// ParseScope validates a scope string and returns the repo id for repo
// scopes ("" for system scope).
func ParseScope(scope string) (string, error) {
	if scope == ScopeSystem {
		return "", nil
	}

	if strings.HasPrefix(scope, repoScopePrefix) {
		repoID := strings.TrimPrefix(scope, repoScopePrefix)
		if RepoIDPattern.MatchString(repoID) {
			return repoID, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidScope, scope)
}

// ScopeDir maps a scope to its bundle directory fragment: "system" or
// "repo/<id>".
func ScopeDir(scope string) (string, error) {
	repoID, err := ParseScope(scope)
	if err != nil {
		return "", err
	}

	if repoID == "" {
		return ScopeSystem, nil
	}

	return "repo/" + repoID, nil
}
