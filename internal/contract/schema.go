package contract

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/opsgovern/lanegate/internal/model"
)

// mergeEventSchema constrains one event-log line.
const mergeEventSchema = `{
  "type": "object",
  "required": ["version", "id", "type", "repo_id", "pr_number", "merge_commit_sha", "base_branch", "affected_paths", "timestamp"],
  "properties": {
    "version": {"const": 1},
    "id": {"type": "string", "minLength": 1},
    "type": {"const": "merge"},
    "repo_id": {"type": "string", "pattern": "^[a-z0-9_\\-]+$"},
    "pr_number": {"type": "integer", "minimum": 1},
    "merge_commit_sha": {"type": "string", "minLength": 7},
    "base_branch": {"type": "string", "minLength": 1},
    "affected_paths": {"type": "array", "items": {"type": "string"}},
    "timestamp": {"type": "string", "minLength": 1}
  }
}`

// intakeApprovalSchema constrains a processed IA document.
const intakeApprovalSchema = `{
  "type": "object",
  "required": ["id", "scope", "knowledge_version", "approved_by", "approved_at"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "scope": {"type": "string", "pattern": "^(system|repo:[a-z0-9_\\-]+)$"},
    "knowledge_version": {"type": "string", "pattern": "^v\\d+(\\.\\d+(\\.\\d+)?)?$"},
    "sufficiency_override": {"type": "boolean"},
    "approved_by": {"type": "string", "minLength": 1},
    "approved_at": {"type": "string", "minLength": 1}
  }
}`

// graphOverrideSchema constrains the dependency-graph override document.
const graphOverrideSchema = `{
  "type": "object",
  "required": ["version", "status"],
  "properties": {
    "version": {"const": 1},
    "status": {"enum": ["pending", "approved"]}
  }
}`

// repoRegistrySchema constrains REPOS.json.
const repoRegistrySchema = `{
  "type": "object",
  "required": ["version", "repos"],
  "properties": {
    "version": {"const": 1},
    "repos": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["repo_id", "path", "active_branch", "team_id", "status"],
        "properties": {
          "repo_id": {"type": "string", "pattern": "^[a-z0-9_\\-]+$"},
          "path": {"type": "string", "minLength": 1},
          "active_branch": {"type": "string", "minLength": 1},
          "team_id": {"type": "string", "minLength": 1},
          "status": {"enum": ["active", "archived"]},
          "keywords": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// validate runs raw bytes against a schema and reports violations.
func validate(schemaJSON string, raw []byte, what string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return WrapError(KindMalformed, err, "parse %s", what)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return NewError(KindContractViolation, "%s: %s", what, strings.Join(details, "; "))
	}

	return nil
}

// ValidateMergeEvent checks one event-log line and returns the decoded event.
func ValidateMergeEvent(raw []byte) (*model.MergeEvent, error) {
	err := validate(mergeEventSchema, raw, "merge event")
	if err != nil {
		return nil, err
	}

	var event model.MergeEvent

	err = json.Unmarshal(raw, &event)
	if err != nil {
		return nil, WrapError(KindMalformed, err, "decode merge event")
	}

	return &event, nil
}

// ValidateIntakeApproval checks an IA document and returns it.
func ValidateIntakeApproval(raw []byte) (*model.IntakeApproval, error) {
	err := validate(intakeApprovalSchema, raw, "intake approval")
	if err != nil {
		return nil, err
	}

	var approval model.IntakeApproval

	err = json.Unmarshal(raw, &approval)
	if err != nil {
		return nil, WrapError(KindMalformed, err, "decode intake approval")
	}

	return &approval, nil
}

// ValidateGraphOverride checks an override document and returns it.
func ValidateGraphOverride(raw []byte) (*model.GraphOverride, error) {
	err := validate(graphOverrideSchema, raw, "dependency graph override")
	if err != nil {
		return nil, err
	}

	var override model.GraphOverride

	err = json.Unmarshal(raw, &override)
	if err != nil {
		return nil, WrapError(KindMalformed, err, "decode dependency graph override")
	}

	return &override, nil
}

// RepoRegistry is the decoded REPOS.json document.
type RepoRegistry struct {
	Version int          `json:"version"`
	Repos   []model.Repo `json:"repos"`
}

// ValidateRepoRegistry checks REPOS.json and returns it.
func ValidateRepoRegistry(raw []byte) (*RepoRegistry, error) {
	err := validate(repoRegistrySchema, raw, "repo registry")
	if err != nil {
		return nil, err
	}

	var registry RepoRegistry

	err = json.Unmarshal(raw, &registry)
	if err != nil {
		return nil, WrapError(KindMalformed, err, "decode repo registry")
	}

	seen := map[string]bool{}
	for _, repo := range registry.Repos {
		if seen[repo.RepoID] {
			return nil, NewError(KindContractViolation, "repo registry: duplicate repo_id %q", repo.RepoID)
		}

		seen[repo.RepoID] = true
	}

	return &registry, nil
}
