package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination commits feed snapshots to a file in a local clone and pushes
// them to origin.
type GitDestination struct {
	repo    string // path to the local clone
	file    string // file path within the repo
	branch  string // branch to commit and push to
	message string
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local clone.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{
		repo:    repo,
		file:    file,
		branch:  branch,
		message: "feed: update export snapshot",
	}
}

// Write replaces the snapshot file, commits, and pushes. Identical snapshots
// produce no commit.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return fmt.Errorf("git checkout %s: %w", d.branch, err)
	}

	// The remote may not have the branch yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	path := filepath.Join(d.repo, d.file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", d.file, err)
	}

	if _, err := d.git(ctx, "add", d.file); err != nil {
		return fmt.Errorf("git add: %w", err)
	}

	status, err := d.git(ctx, "status", "--porcelain", "--", d.file)
	if err != nil {
		return fmt.Errorf("git status: %w", err)
	}
	if status == "" {
		return nil
	}

	if _, err := d.git(ctx, "commit", "-m", d.message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	if _, err := d.git(ctx, "push", "origin", d.branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// git runs a git command in the repo and returns its trimmed stdout. Stderr
// is folded into the error.
func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
