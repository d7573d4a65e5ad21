package eventlog

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/opsgovern/lanegate/internal/layout"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/persist"
)

func checkpointPath(l *layout.Layout, consumer string) string {
	return filepath.Join(l.EventCheckpointsDir(), consumer+".json")
}

// LoadCheckpoint returns a consumer's durable position. An unknown consumer
// starts from the beginning of the log.
func LoadCheckpoint(l *layout.Layout, consumer string) (*model.Checkpoint, error) {
	var checkpoint model.Checkpoint

	err := persist.ReadJSON(checkpointPath(l, consumer), &checkpoint)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &model.Checkpoint{Version: model.DocVersion, Consumer: consumer}, nil
		}

		return nil, err
	}

	return &checkpoint, nil
}

// SaveCheckpoint persists a consumer position atomically.
func SaveCheckpoint(l *layout.Layout, checkpoint *model.Checkpoint, now time.Time) error {
	checkpoint.Version = model.DocVersion
	checkpoint.UpdatedAt = model.NowRFC3339(now)

	return persist.WriteJSON(checkpointPath(l, checkpoint.Consumer), checkpoint)
}

// ReadSince returns the events after a consumer's checkpoint, along with the
// advanced checkpoint the caller should save once the batch is handled.
func ReadSince(l *layout.Layout, checkpoint *model.Checkpoint) ([]model.MergeEvent, *model.Checkpoint, error) {
	segments, err := listSegments(l)
	if err != nil {
		return nil, nil, err
	}

	advanced := &model.Checkpoint{
		Version:         model.DocVersion,
		Consumer:        checkpoint.Consumer,
		LastReadSegment: checkpoint.LastReadSegment,
		LastReadOffset:  checkpoint.LastReadOffset,
	}

	var out []model.MergeEvent

	for _, segment := range segments {
		name := filepath.Base(segment)

		if name < checkpoint.LastReadSegment {
			continue
		}

		events, _, err := readSegments([]string{segment})
		if err != nil {
			return nil, nil, err
		}

		start := 0
		if name == checkpoint.LastReadSegment {
			start = checkpoint.LastReadOffset
			if start > len(events) {
				start = len(events)
			}
		}

		out = append(out, events[start:]...)

		advanced.LastReadSegment = name
		advanced.LastReadOffset = len(events)
	}

	return out, advanced, nil
}
