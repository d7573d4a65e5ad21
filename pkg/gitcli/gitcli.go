// Package gitcli is the read-only git adapter. Every operation shells out to
// the git CLI with a per-invocation safe.directory override, captures stdout
// and stderr, and honors a per-call timeout. Nothing here mutates a
// repository.
package gitcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 30 * time.Second

// Sentinel errors for git operations.
var (
	// ErrGitFailed indicates a non-zero git exit.
	ErrGitFailed = errors.New("git_failed")
	// ErrTimeout indicates the invocation exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// CmdError carries the captured output of a failed git invocation.
type CmdError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

// Error implements the error interface.
func (e *CmdError) Error() string {
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Stderr))
}

// Unwrap exposes the sentinel for errors.Is.
func (e *CmdError) Unwrap() error {
	return e.Err
}

// Client runs git subprocesses against local repositories.
type Client struct {
	// Timeout bounds each invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewClient creates a client with the default per-call timeout.
func NewClient() *Client {
	return &Client{Timeout: DefaultTimeout}
}

// run executes git with safe.directory pinned to repoAbs.
func (c *Client) run(ctx context.Context, repoAbs string, args ...string) ([]byte, []byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append([]string{"-c", "safe.directory=" + repoAbs, "-C", repoAbs}, args...)

	cmd := exec.CommandContext(runCtx, "git", full...)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		kind := ErrGitFailed
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			kind = ErrTimeout
		}

		return stdout.Bytes(), stderr.Bytes(), &CmdError{
			Args:   args,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    kind,
		}
	}

	return stdout.Bytes(), stderr.Bytes(), nil
}

// ResolveRef returns "origin/<branch>" when the remote-tracking ref exists,
// the bare branch name when only the local head exists, and "" when neither
// resolves.
func (c *Client) ResolveRef(ctx context.Context, repoAbs, branch string) (string, error) {
	if branch == "" {
		return "", nil
	}

	_, _, err := c.run(ctx, repoAbs, "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+branch)
	if err == nil {
		return "origin/" + branch, nil
	}

	if errors.Is(err, ErrTimeout) {
		return "", err
	}

	_, _, err = c.run(ctx, repoAbs, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return branch, nil
	}

	if errors.Is(err, ErrTimeout) {
		return "", err
	}

	return "", nil
}

// ShowFileAtRef returns the content of path at ref via `git show <ref>:<path>`.
func (c *Client) ShowFileAtRef(ctx context.Context, repoAbs, ref, path string) ([]byte, error) {
	stdout, _, err := c.run(ctx, repoAbs, "show", ref+":"+path)
	if err != nil {
		return nil, err
	}

	return stdout, nil
}

// RevListOne returns the single commit sha of `git rev-list -1 <ref>`.
func (c *Client) RevListOne(ctx context.Context, repoAbs, ref string) (string, error) {
	stdout, _, err := c.run(ctx, repoAbs, "rev-list", "-1", ref)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(stdout)), nil
}

// DiffTreeNames lists the paths touched by sha relative to its first parent.
func (c *Client) DiffTreeNames(ctx context.Context, repoAbs, sha string) ([]string, error) {
	stdout, _, err := c.run(ctx, repoAbs, "diff-tree", "--no-commit-id", "--name-only", "-r", sha+"^", sha)
	if err != nil {
		return nil, err
	}

	var paths []string

	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}

	return paths, nil
}

// LsTreeNames lists every blob path reachable at ref.
func (c *Client) LsTreeNames(ctx context.Context, repoAbs, ref string) ([]string, error) {
	stdout, _, err := c.run(ctx, repoAbs, "ls-tree", "-r", "--name-only", ref)
	if err != nil {
		return nil, err
	}

	var paths []string

	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}

	return paths, nil
}

// RevParseHead returns the sha of HEAD.
func (c *Client) RevParseHead(ctx context.Context, repoAbs string) (string, error) {
	stdout, _, err := c.run(ctx, repoAbs, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(stdout)), nil
}

// ProbeResult is the structured diagnosis of a work tree.
type ProbeResult struct {
	OK               bool   `json:"ok"`
	Head             string `json:"head,omitempty"`
	DubiousOwnership bool   `json:"dubious_ownership"`
	Detail           string `json:"detail,omitempty"`
}

// dubiousOwnershipMarker is the stderr fragment git emits for unowned repos.
const dubiousOwnershipMarker = "dubious ownership"

// ProbeWorkTree diagnoses whether cwd is a usable git work tree, detecting
// the dubious-ownership condition specifically. The probe deliberately omits
// the safe.directory override so the ownership check is observable.
func (c *Client) ProbeWorkTree(ctx context.Context, cwd string) ProbeResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", "-C", cwd, "rev-parse", "HEAD")

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return ProbeResult{OK: true, Head: strings.TrimSpace(stdout.String())}
	}

	if strings.Contains(stderr.String(), dubiousOwnershipMarker) {
		return ProbeResult{DubiousOwnership: true, Detail: strings.TrimSpace(stderr.String())}
	}

	return ProbeResult{Detail: strings.TrimSpace(stderr.String())}
}
