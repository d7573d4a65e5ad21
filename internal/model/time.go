package model

import (
	"fmt"
	"time"
)

// millisPerNano converts nanoseconds to milliseconds.
const millisPerNano = int(time.Millisecond)

// NowRFC3339 formats a time as RFC3339 UTC.
func NowRFC3339(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

// CompactTimestamp formats a time in the filesystem-safe form used by scan
// documents and segment names: YYYYMMDD_HHMMSSmmm.
func CompactTimestamp(now time.Time) string {
	utc := now.UTC()

	return fmt.Sprintf("%s%03d", utc.Format("20060102_150405"), utc.Nanosecond()/millisPerNano)
}

// SegmentName formats a time as an event-log segment file name:
// YYYYMMDD-HHMMSS.jsonl (UTC).
func SegmentName(now time.Time) string {
	return now.UTC().Format("20060102-150405") + ".jsonl"
}
