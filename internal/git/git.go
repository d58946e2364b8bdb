package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotmirror/dotmirror/internal/config"
)

// ErrMissing is returned when the git executable is not on PATH. This is
// fatal at startup of any publish path, before mappings are processed.
var ErrMissing = errors.New("git executable not found")

// PublishStatus classifies the result of a publish attempt.
type PublishStatus string

const (
	// NothingToCommit means the working copy already matched the mirror;
	// no version-control write command was issued.
	NothingToCommit PublishStatus = "nothing-to-commit"
	// Committed means a commit was created and pushed.
	Committed PublishStatus = "committed"
	// PushFailed means the commit exists locally but the push did not
	// complete. The mirror's file contents remain synced; nothing is
	// rolled back and the push is never retried automatically.
	PushFailed PublishStatus = "push-failed"
	// Failed means preparing or committing the working copy itself failed.
	Failed PublishStatus = "failed"
)

// PublishResult reports the outcome of a publish attempt.
type PublishResult struct {
	Status   PublishStatus
	CommitID string
	Reason   string
}

// Publisher stages the mirror, commits with a timestamped message and
// pushes to the configured remote.
type Publisher interface {
	// Available reports whether the external git tool can be invoked.
	Available() error
	// Publish runs the stage/commit/push sequence against the working copy
	// containing the mirror root.
	Publish(ctx context.Context, mirrorRoot string, target config.RepositoryConfig) *PublishResult
}

// ShellClient implements Publisher by shelling out to the git command
type ShellClient struct{}

// NewShellClient creates a new git client that uses the git command
func NewShellClient() *ShellClient {
	return &ShellClient{}
}

// Available checks that the git binary is on PATH.
func (c *ShellClient) Available() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("%w: %v", ErrMissing, err)
	}
	return nil
}

// Publish ensures a working copy exists at the mirror root, stages its
// full contents, commits with a second-resolution timestamp message and
// pushes to the configured branch, establishing upstream tracking on the
// first push. All failures are reported in the result with the underlying
// command output attached; a hung push blocks until ctx is cancelled.
func (c *ShellClient) Publish(ctx context.Context, mirrorRoot string, target config.RepositoryConfig) *PublishResult {
	if err := c.ensureRepo(ctx, mirrorRoot, target); err != nil {
		return &PublishResult{Status: Failed, Reason: err.Error()}
	}

	if err := c.run(exec.CommandContext(ctx, "git", "-C", mirrorRoot, "add", "-A", ".")); err != nil {
		return &PublishResult{Status: Failed, Reason: err.Error()}
	}

	staged, err := c.hasPendingChanges(ctx, mirrorRoot)
	if err != nil {
		return &PublishResult{Status: Failed, Reason: err.Error()}
	}
	if !staged {
		return &PublishResult{Status: NothingToCommit}
	}

	msg := "dotfiles sync " + time.Now().Format("2006-01-02 15:04:05")
	if err := c.run(exec.CommandContext(ctx, "git", "-C", mirrorRoot, "commit", "-m", msg)); err != nil {
		return &PublishResult{Status: Failed, Reason: err.Error()}
	}

	out, err := exec.CommandContext(ctx, "git", "-C", mirrorRoot, "rev-parse", "HEAD").Output()
	if err != nil {
		return &PublishResult{Status: Failed, Reason: fmt.Sprintf("git rev-parse failed: %v", err)}
	}
	commitID := strings.TrimSpace(string(out))

	// -u establishes upstream tracking on the first push and is a no-op
	// afterwards.
	if err := c.run(exec.CommandContext(ctx, "git", "-C", mirrorRoot, "push", "-u", "origin", target.Branch)); err != nil {
		return &PublishResult{Status: PushFailed, CommitID: commitID, Reason: err.Error()}
	}

	return &PublishResult{Status: Committed, CommitID: commitID}
}

// ensureRepo initializes a working copy at the mirror root if absent and
// keeps its origin remote pointed at the configured URL.
func (c *ShellClient) ensureRepo(ctx context.Context, mirrorRoot string, target config.RepositoryConfig) error {
	if err := os.MkdirAll(mirrorRoot, 0755); err != nil {
		return fmt.Errorf("failed to create mirror root: %w", err)
	}

	gitDir := filepath.Join(mirrorRoot, ".git")
	if _, err := os.Stat(gitDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat %s: %w", gitDir, err)
		}
		if err := c.run(exec.CommandContext(ctx, "git", "init", "-b", target.Branch, mirrorRoot)); err != nil {
			return fmt.Errorf("git init failed: %w", err)
		}
		if err := c.run(exec.CommandContext(ctx, "git", "-C", mirrorRoot, "remote", "add", "origin", target.URL)); err != nil {
			return fmt.Errorf("git remote add failed: %w", err)
		}
		return nil
	}

	// Existing working copy: re-point origin in case the configured URL
	// changed since initialization.
	if err := c.run(exec.CommandContext(ctx, "git", "-C", mirrorRoot, "remote", "set-url", "origin", target.URL)); err != nil {
		if err := c.run(exec.CommandContext(ctx, "git", "-C", mirrorRoot, "remote", "add", "origin", target.URL)); err != nil {
			return fmt.Errorf("git remote add failed: %w", err)
		}
	}

	return nil
}

// hasPendingChanges reports whether anything is staged beyond what is
// already committed, using porcelain status output as the contract.
func (c *ShellClient) hasPendingChanges(ctx context.Context, mirrorRoot string) (bool, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", mirrorRoot, "status", "--porcelain").Output()
	if err != nil {
		return false, fmt.Errorf("git status failed: %v", err)
	}
	return len(strings.TrimSpace(string(out))) > 0, nil
}

// run executes a command and returns an error with its output on failure
func (c *ShellClient) run(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
