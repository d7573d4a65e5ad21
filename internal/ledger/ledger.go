// Package ledger appends audit lines to the lane ledgers. Each line is one
// JSON object; the files are append-only.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/pkg/fsx"
)

// Entry is one audit line. The "at" key is stamped on append when absent.
type Entry map[string]any

// Append writes one entry to the ledger at absPath.
func Append(absPath string, entry Entry, now time.Time) error {
	if _, ok := entry["at"]; !ok {
		entry["at"] = model.NowRFC3339(now)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}

	err = fsx.AppendLine(absPath, line)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	return nil
}

// Read loads every entry of a ledger; a missing file is an empty ledger.
func Read(absPath string) ([]Entry, error) {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var entries []Entry

	for i, line := range bytes.Split(raw, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var entry Entry

		err = json.Unmarshal(line, &entry)
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", i+1, err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
