package eventlog

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/opsgovern/lanegate/internal/contract"
	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/persist"
)

// Summarizer folds the event log into the latest-per-repo view.
type Summarizer struct {
	now func() time.Time
}

// NewSummarizer creates a summarizer.
func NewSummarizer() *Summarizer {
	return &Summarizer{now: time.Now}
}

// WithClock overrides the clock. Test hook.
func (s *Summarizer) WithClock(now func() time.Time) *Summarizer {
	s.now = now

	return s
}

// Run reads every segment in filename order, skips invalid lines with a
// warning, and writes the summary to both its Lane A home and the knowledge
// mirror. Returns the summary and the warning count.
func (s *Summarizer) Run(l *layout.Layout) (*model.EventSummary, int, error) {
	events, warnings, err := ReadAll(l)
	if err != nil {
		return nil, 0, err
	}

	latest := map[string]model.MergeEvent{}

	for _, event := range events {
		current, ok := latest[event.RepoID]
		if !ok || newer(event, current) {
			latest[event.RepoID] = event
		}
	}

	summary := &model.EventSummary{
		Version:     model.DocVersion,
		GeneratedAt: model.NowRFC3339(s.now()),
		MergeEvents: make([]model.EventSummaryEntry, 0, len(latest)),
	}

	for _, event := range latest {
		summary.MergeEvents = append(summary.MergeEvents, model.EventSummaryEntry{
			RepoID:            event.RepoID,
			LatestMergeCommit: event.MergeCommitSHA,
			LatestPRNumber:    event.PRNumber,
			LatestTimestamp:   event.Timestamp,
		})
	}

	sort.Slice(summary.MergeEvents, func(i, j int) bool {
		return summary.MergeEvents[i].RepoID < summary.MergeEvents[j].RepoID
	})

	err = persist.WriteJSON(l.EventSummaryPath(), summary)
	if err != nil {
		return nil, warnings, err
	}

	err = persist.WriteJSON(l.KnowledgeEventSummaryPath(), summary)
	if err != nil {
		return nil, warnings, err
	}

	return summary, warnings, nil
}

// newer orders two events for the same repo: greater timestamp wins, then
// greater id lexically.
func newer(candidate, current model.MergeEvent) bool {
	if candidate.Timestamp != current.Timestamp {
		return candidate.Timestamp > current.Timestamp
	}

	return candidate.ID > current.ID
}

// ReadAll loads every valid merge event across all segments in time order.
// Invalid lines are counted and logged, never fatal.
func ReadAll(l *layout.Layout) ([]model.MergeEvent, int, error) {
	segments, err := listSegments(l)
	if err != nil {
		return nil, 0, err
	}

	return readSegments(segments)
}

func readSegments(segments []string) ([]model.MergeEvent, int, error) {
	var (
		events   []model.MergeEvent
		warnings int
	)

	for _, segment := range segments {
		raw, err := os.ReadFile(segment)
		if err != nil {
			return nil, warnings, contract.WrapError(contract.KindMalformed, err, "read segment")
		}

		for i, line := range bytes.Split(raw, []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			event, err := contract.ValidateMergeEvent(line)
			if err != nil {
				warnings++

				slog.Warn("skipping invalid event line",
					"segment", filepath.Base(segment), "line", i+1, "error", err)

				continue
			}

			events = append(events, *event)
		}
	}

	return events, warnings, nil
}

// listSegments returns segment paths in ascending filename order, which is
// ascending time order because names encode UTC.
func listSegments(l *layout.Layout) ([]string, error) {
	entries, err := os.ReadDir(l.EventSegmentsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var segments []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}

		segments = append(segments, filepath.Join(l.EventSegmentsDir(), entry.Name()))
	}

	sort.Strings(segments)

	return segments, nil
}
