// Package governance enforces the Lane A gate at the Lane B triage boundary:
// intake headers are parsed, checked against the processed intake approval,
// the version pointer, freshness, and sufficiency, and intakes are turned
// into repo-scoped triaged items.
package governance

import (
	"bufio"
	"bytes"
	"strings"
)

// OriginLaneA marks an intake that must pass the Lane A gate.
const OriginLaneA = "lane_a"

// IntakeHeader is the parsed key/value preamble of an intake file.
type IntakeHeader struct {
	Origin              string
	Scope               string
	IntakeApprovalID    string
	KnowledgeVersion    string
	SufficiencyOverride bool
}

// ParseIntake splits an intake file into its header and body. Header lines
// are "key: value" pairs at the top of the file; keys are case-insensitive
// and values are trimmed. The first line that is not a recognized pair ends
// the header.
func ParseIntake(raw []byte) (*IntakeHeader, string) {
	header := &IntakeHeader{}
	scanner := bufio.NewScanner(bytes.NewReader(raw))

	var consumed int

	for scanner.Scan() {
		line := scanner.Text()

		key, value, ok := splitHeaderLine(line)
		if !ok {
			break
		}

		switch key {
		case "origin":
			header.Origin = value
		case "scope":
			header.Scope = value
		case "intake_approval_id":
			header.IntakeApprovalID = value
		case "knowledge_version":
			header.KnowledgeVersion = value
		case "sufficiency_override":
			header.SufficiencyOverride = strings.EqualFold(value, "true")
		default:
			return header, bodyFrom(raw, consumed)
		}

		consumed += len(line) + 1
	}

	return header, bodyFrom(raw, consumed)
}

// splitHeaderLine parses one "key: value" line; keys are lowercased.
func splitHeaderLine(line string) (string, string, bool) {
	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}

	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}

	return key, strings.TrimSpace(value), true
}

func bodyFrom(raw []byte, offset int) string {
	if offset >= len(raw) {
		return ""
	}

	return strings.TrimLeft(string(raw[offset:]), "\n")
}

// IntakeTitle derives a display title from the intake body: the first
// markdown heading, or the first non-empty line.
func IntakeTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
	}

	return "(untitled intake)"
}
