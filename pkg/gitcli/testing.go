package gitcli

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// InitTestRepo creates a throwaway repository on branch main with one commit
// containing the given files and returns its absolute path. Intended for
// package tests across the module.
func InitTestRepo(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	RunTestGit(t, dir, "init", "-q", "-b", "main")

	CommitTestFiles(t, dir, files, "initial")

	return dir
}

// CommitTestFiles writes files into an existing test repository and commits
// them.
func CommitTestFiles(t *testing.T, dir string, files map[string]string, message string) {
	t.Helper()

	for path, content := range files {
		full := filepath.Join(dir, path)

		err := os.MkdirAll(filepath.Dir(full), 0o755)
		if err != nil {
			t.Fatalf("mkdir %s: %v", full, err)
		}

		err = os.WriteFile(full, []byte(content), 0o644)
		if err != nil {
			t.Fatalf("write %s: %v", full, err)
		}
	}

	RunTestGit(t, dir, "add", "-A")
	RunTestGit(t, dir, "commit", "-q", "--allow-empty", "-m", message)
}

// RunTestGit runs one git command inside dir with a pinned identity.
func RunTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}

	return string(out)
}
