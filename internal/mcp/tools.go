package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opsgovern/lanegate/internal/knowledge"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// Tool name constants.
const (
	ToolNameStaleness    = "lanegate_staleness"
	ToolNameVersion      = "lanegate_version"
	ToolNameLatestBundle = "lanegate_latest_bundle"
	ToolNameSufficiency  = "lanegate_sufficiency"
)

// Sentinel errors for tool input validation.
var (
	// ErrUnknownScope indicates a scope entry absent from LATEST.json.
	ErrUnknownScope = errors.New("no bundle recorded for scope")
)

// Input types (auto-generate JSON schemas via struct tags).

// StalenessInput is the input schema for the lanegate_staleness tool.
type StalenessInput struct {
	Scope string `json:"scope,omitempty" jsonschema:"scope to evaluate: system (default) or repo:<id>"`
}

// VersionInput is the input schema for the lanegate_version tool.
type VersionInput struct{}

// LatestBundleInput is the input schema for the lanegate_latest_bundle tool.
type LatestBundleInput struct {
	Scope string `json:"scope,omitempty" jsonschema:"optional scope filter: system or repo:<id>"`
}

// SufficiencyInput is the input schema for the lanegate_sufficiency tool.
type SufficiencyInput struct {
	Scope            string `json:"scope,omitempty"             jsonschema:"scope: system (default) or repo:<id>"`
	KnowledgeVersion string `json:"knowledge_version,omitempty" jsonschema:"version to query (default: current pointer)"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// defaultScope normalizes an empty scope to system.
func defaultScope(scope string) string {
	if scope == "" {
		return model.ScopeSystem
	}

	return scope
}

// handleStaleness evaluates live freshness for one scope.
func (s *Server) handleStaleness(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input StalenessInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	reg, err := registry.Load(s.layout)
	if err != nil {
		return errorResult(err)
	}

	verdict, err := s.staleness.Evaluate(ctx, s.layout, reg.Active(), defaultScope(input.Scope))
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(verdict)
}

// handleVersion reads the knowledge version pointer.
func (s *Server) handleVersion(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	_ VersionInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	doc, err := knowledge.LoadVersion(s.layout)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(doc)
}

// handleLatestBundle reads the newest sealed bundle per scope.
func (s *Server) handleLatestBundle(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input LatestBundleInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	latest := model.LatestBundles{Version: model.DocVersion, Scopes: map[string]model.LatestBundleEntry{}}

	err := persist.ReadJSON(s.layout.LatestBundlesPath(), &latest)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errorResult(err)
	}

	if input.Scope == "" {
		return jsonResult(latest)
	}

	entry, ok := latest.Scopes[input.Scope]
	if !ok {
		return errorResult(fmt.Errorf("%w: %s", ErrUnknownScope, input.Scope))
	}

	return jsonResult(entry)
}

// handleSufficiency reads the sufficiency record for (scope, version).
func (s *Server) handleSufficiency(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input SufficiencyInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	scope := defaultScope(input.Scope)

	version := input.KnowledgeVersion
	if version == "" {
		current, err := knowledge.LoadVersion(s.layout)
		if err != nil {
			return errorResult(err)
		}

		version = current.Current
	}

	record, err := knowledge.LoadSufficiency(s.layout, scope, version)
	if err != nil {
		return errorResult(err)
	}

	allowed, err := knowledge.DeliveryAllowed(s.layout, scope, version)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]any{
		"record":           record,
		"delivery_allowed": allowed,
	})
}
