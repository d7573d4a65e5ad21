// Package knowledge owns the monotone knowledge version pointer and its
// compact mirrors.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// initialVersion is the pointer value before any bump.
const initialVersion = "v0"

// mirrorHistoryLimit caps the compact mirror history.
const mirrorHistoryLimit = 50

// Bump reasons accepted by Bump.
const (
	BumpMajor = "bump_major"
	BumpMinor = "bump_minor"
	BumpPatch = "bump_patch"
)

// LoadVersion reads the version pointer, defaulting to the initial value
// when no record exists yet.
func LoadVersion(l *layout.Layout) (*model.KnowledgeVersion, error) {
	var doc model.KnowledgeVersion

	err := persist.ReadJSON(l.KnowledgeVersionPath(), &doc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &model.KnowledgeVersion{
				Version: model.DocVersion,
				Current: initialVersion,
				History: []model.VersionHistoryEntry{},
			}, nil
		}

		return nil, contract.WrapError(contract.KindMalformed, err, "knowledge version")
	}

	return &doc, nil
}

// Bump advances the pointer by kind, appends history, and refreshes the
// compact mirror.
func Bump(l *layout.Layout, kind, scope, notes string, now time.Time) (*model.KnowledgeVersion, error) {
	doc, err := LoadVersion(l)
	if err != nil {
		return nil, err
	}

	next, err := Next(doc.Current, kind)
	if err != nil {
		return nil, err
	}

	return commit(l, doc, next, kind, scope, notes, now)
}

// SetExplicit pins the pointer to an exact version. When the value changes,
// the prior value is recorded in the history notes.
func SetExplicit(l *layout.Layout, toVersion, scope, notes string, now time.Time) (*model.KnowledgeVersion, error) {
	if !model.VersionPattern.MatchString(toVersion) {
		return nil, contract.NewError(contract.KindContractViolation,
			"version %q does not match v<int>[.int[.int]]", toVersion)
	}

	doc, err := LoadVersion(l)
	if err != nil {
		return nil, err
	}

	if toVersion != doc.Current {
		from := fmt.Sprintf("from=%s", doc.Current)
		if notes == "" {
			notes = from
		} else {
			notes = notes + "; " + from
		}
	}

	return commit(l, doc, toVersion, "set_explicit", scope, notes, now)
}

// Next computes the successor of a version string for a bump kind.
func Next(current, kind string) (string, error) {
	segments, err := parse(current)
	if err != nil {
		return "", err
	}

	switch kind {
	case BumpMajor:
		return format([]int{segments[0] + 1}), nil
	case BumpMinor:
		if len(segments) == 1 {
			return format([]int{segments[0], 1}), nil
		}

		return format([]int{segments[0], segments[1] + 1}), nil
	case BumpPatch:
		if len(segments) == 1 {
			return format([]int{segments[0], 0, 1}), nil
		}

		segments[len(segments)-1]++

		return format(segments), nil
	default:
		return "", contract.NewError(contract.KindContractViolation, "unknown bump kind %q", kind)
	}
}

func commit(l *layout.Layout, doc *model.KnowledgeVersion, next, reason, scope, notes string, now time.Time) (*model.KnowledgeVersion, error) {
	doc.Version = model.DocVersion
	doc.Current = next
	doc.History = append(doc.History, model.VersionHistoryEntry{
		V:      next,
		At:     model.NowRFC3339(now),
		Reason: reason,
		Scope:  scope,
		Notes:  notes,
	})

	err := persist.WriteJSON(l.KnowledgeVersionPath(), doc)
	if err != nil {
		return nil, err
	}

	err = writeMirror(l, doc)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// writeMirror refreshes VERSION.json and VERSION.md with the last entries.
func writeMirror(l *layout.Layout, doc *model.KnowledgeVersion) error {
	history := doc.History
	if len(history) > mirrorHistoryLimit {
		history = history[len(history)-mirrorHistoryLimit:]
	}

	mirror := model.KnowledgeVersion{
		Version: model.DocVersion,
		Current: doc.Current,
		History: history,
	}

	err := persist.WriteJSON(l.VersionMirrorJSONPath(), mirror)
	if err != nil {
		return err
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# Knowledge Version: %s\n\n", doc.Current)

	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]

		fmt.Fprintf(&b, "- `%s` %s (%s, %s)", entry.V, entry.At, entry.Reason, entry.Scope)

		if entry.Notes != "" {
			fmt.Fprintf(&b, ": %s", entry.Notes)
		}

		b.WriteString("\n")
	}

	return fsx.WriteFileAtomic(l.VersionMirrorMarkdownPath(), []byte(b.String()))
}

func parse(version string) ([]int, error) {
	if !model.VersionPattern.MatchString(version) {
		return nil, contract.NewError(contract.KindContractViolation,
			"version %q does not match v<int>[.int[.int]]", version)
	}

	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	segments := make([]int, len(parts))

	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, contract.WrapError(contract.KindMalformed, err, "version segment %q", part)
		}

		segments[i] = value
	}

	return segments, nil
}

func format(segments []int) string {
	parts := make([]string, len(segments))
	for i, segment := range segments {
		parts[i] = strconv.Itoa(segment)
	}

	return "v" + strings.Join(parts, ".")
}
