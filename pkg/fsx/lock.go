package fsx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockHeld indicates the lock file exists and is not stale.
var ErrLockHeld = errors.New("lock held")

// LockInfo is the metadata persisted inside a lock file.
type LockInfo struct {
	PID       int            `json:"pid"`
	Hostname  string         `json:"hostname"`
	StartedAt string         `json:"started_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Lock is a durable-file mutex. A lock older than its stale threshold may be
// taken over by unlinking and retrying once.
type Lock struct {
	path string
}

// NewLock creates a lock handle for the given file path.
func NewLock(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire creates the lock file exclusively. If the file already exists and
// its mtime is older than staleAfter, the stale holder is unlinked and
// acquisition retried exactly once.
func (l *Lock) Acquire(staleAfter time.Duration, metadata map[string]any) error {
	err := l.tryCreate(metadata)
	if err == nil {
		return nil
	}

	if !errors.Is(err, os.ErrExist) {
		return err
	}

	info, statErr := os.Stat(l.path)
	if statErr != nil {
		// Holder released between our attempts; retry once.
		if os.IsNotExist(statErr) {
			return l.tryCreate(metadata)
		}

		return fmt.Errorf("stat lock: %w", statErr)
	}

	if time.Since(info.ModTime()) <= staleAfter {
		return fmt.Errorf("%w: %s", ErrLockHeld, l.path)
	}

	removeErr := os.Remove(l.path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("takeover stale lock: %w", removeErr)
	}

	return l.tryCreate(metadata)
}

// Release removes the lock file. A missing file is success.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}

	return nil
}

func (l *Lock) tryCreate(metadata map[string]any) error {
	err := os.MkdirAll(filepath.Dir(l.path), dirPerm)
	if err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", os.ErrExist, l.path)
		}

		return fmt.Errorf("create lock: %w", err)
	}

	hostname, _ := os.Hostname()

	info := LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Metadata:  metadata,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(info)

	closeErr := file.Close()

	if encodeErr != nil {
		return fmt.Errorf("write lock info: %w", encodeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close lock: %w", closeErr)
	}

	return nil
}
