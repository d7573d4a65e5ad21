// Package fsx provides the filesystem substrate shared by every writer in the
// engine: temp-rename atomic writes, a path sandbox, and a durable file lock
// with stale takeover.
package fsx

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// dirPerm is the permission for created parent directories.
const dirPerm = 0o755

// filePerm is the permission for written files.
const filePerm = 0o644

// tmpCounter disambiguates concurrent temp files within one process.
var tmpCounter atomic.Uint64

// WriteFileAtomic writes data to absPath via a temp file in the same
// directory followed by a rename. The parent directory is created first.
// On failure no partial file remains at absPath.
func WriteFileAtomic(absPath string, data []byte) error {
	dir := filepath.Dir(absPath)

	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d.%x", absPath, os.Getpid(), tmpCounter.Add(1))

	err = os.WriteFile(tmpPath, data, filePerm)
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	err = os.Rename(tmpPath, absPath)
	if err != nil {
		removeErr := os.Remove(tmpPath)
		if removeErr != nil {
			return fmt.Errorf("rename temp file: %w (cleanup failed: %v)", err, removeErr)
		}

		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// AppendLine appends a single line (newline added if missing) to path using
// an append-mode open. The parent directory is created first. Appends are
// lock-free: O_APPEND writes of a single line are atomic at the OS level.
func AppendLine(path string, line []byte) error {
	err := os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return fmt.Errorf("open for append: %w", err)
	}

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}

	_, err = file.Write(line)
	if err != nil {
		file.Close()

		return fmt.Errorf("append line: %w", err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close after append: %w", err)
	}

	return nil
}
