package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideSandbox indicates a candidate path escapes its allowed base.
var ErrOutsideSandbox = errors.New("path escapes allowed base")

// EnsureWithin verifies that candidate, after cleaning and symlink
// resolution, equals base or is a strict descendant of it. Both paths must be
// absolute. Symlinks anywhere along the existing prefix of candidate are
// resolved; a resolved target outside base is rejected.
func EnsureWithin(base, candidate string) error {
	if !filepath.IsAbs(base) || !filepath.IsAbs(candidate) {
		return fmt.Errorf("%w: paths must be absolute", ErrOutsideSandbox)
	}

	resolvedBase, err := resolveExisting(base)
	if err != nil {
		return err
	}

	resolvedCandidate, err := resolveExisting(candidate)
	if err != nil {
		return err
	}

	if resolvedCandidate == resolvedBase {
		return nil
	}

	if !strings.HasPrefix(resolvedCandidate, resolvedBase+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s not under %s", ErrOutsideSandbox, candidate, base)
	}

	return nil
}

// resolveExisting resolves symlinks over the deepest existing ancestor of
// path and rejoins the non-existing suffix. This lets the sandbox validate
// output paths before they are created.
func resolveExisting(path string) (string, error) {
	cleaned := filepath.Clean(path)

	existing := cleaned

	var suffix []string

	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			if len(suffix) == 0 {
				return resolved, nil
			}

			// Rebuild the missing tail in reverse collection order.
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}

			return resolved, nil
		}

		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve %s: %w", existing, err)
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}

		suffix = append(suffix, filepath.Base(existing))
		existing = parent
	}
}
