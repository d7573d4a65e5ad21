// Package ghcli shells out to the GitHub CLI for the few lookups the event
// producer enriches from, with per-call timeouts.
package ghcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds one gh invocation.
const DefaultTimeout = 20 * time.Second

// Sentinel errors.
var (
	// ErrGHFailed indicates gh exited non-zero or is not installed.
	ErrGHFailed = errors.New("gh_failed")
	// ErrTimeout indicates the invocation exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// Client invokes the gh binary.
type Client struct {
	// Timeout bounds each invocation; zero means DefaultTimeout.
	Timeout time.Duration
}

// NewClient creates a gh client with the default timeout.
func NewClient() *Client {
	return &Client{Timeout: DefaultTimeout}
}

// ListPRFiles returns the changed file paths of a pull request, resolved
// through `gh pr view` in the repo working directory.
func (c *Client) ListPRFiles(ctx context.Context, repoAbs string, prNumber int) ([]string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, "gh", "pr", "view", fmt.Sprint(prNumber), "--json", "files")
	cmd.Dir = repoAbs
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: gh pr view %d", ErrTimeout, prNumber)
		}

		return nil, fmt.Errorf("%w: gh pr view %d: %v: %s", ErrGHFailed, prNumber, err, stderr.String())
	}

	var payload struct {
		Files []struct {
			Path string `json:"path"`
		} `json:"files"`
	}

	err = json.Unmarshal(stdout.Bytes(), &payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode gh pr view %d: %v", ErrGHFailed, prNumber, err)
	}

	paths := make([]string, 0, len(payload.Files))
	for _, file := range payload.Files {
		paths = append(paths, file.Path)
	}

	return paths, nil
}
