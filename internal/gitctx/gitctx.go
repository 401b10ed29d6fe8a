// Package gitctx associates sessions with the git state of their project
// directory by shelling out to git. All lookups are opportunistic: a
// missing binary, a non-repo path or a timeout yields no context, never
// an error the caller must handle.
package gitctx

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	probeTimeout = 5 * time.Second
	logTimeout   = 30 * time.Second
)

// RepoInfo is a snapshot of a repository's current state.
type RepoInfo struct {
	Branch string
	Commit string
	Remote string
}

// Commit is one entry from the repository history.
type Commit struct {
	SHA       string
	Author    string
	Timestamp time.Time
	Message   string
}

// IsRepo reports whether path is inside a git repository.
func IsRepo(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	_, err := run(path, probeTimeout, "rev-parse", "--git-dir")
	return err == nil
}

// Info returns the current branch, commit and origin remote for a path,
// or nil when the path is not a repository.
func Info(path string) *RepoInfo {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	branch, err := run(path, probeTimeout, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil
	}
	info := &RepoInfo{Branch: branch}
	// Commit and remote are best effort; an unborn branch or missing
	// origin still yields the branch name.
	info.Commit, _ = run(path, probeTimeout, "rev-parse", "HEAD")
	info.Remote, _ = run(path, probeTimeout, "remote", "get-url", "origin")
	return info
}

// CommitsInRange lists commits authored between start and end, newest
// first.
func CommitsInRange(path string, start, end time.Time) []Commit {
	if !IsRepo(path) {
		return nil
	}
	const layout = "2006-01-02T15:04:05"
	out, err := run(path, logTimeout, "log",
		"--after="+start.UTC().Format(layout),
		"--before="+end.UTC().Format(layout),
		"--format=%H|%an|%aI|%s")
	if err != nil {
		return nil
	}

	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "|", 4)
		if len(fields) < 4 {
			continue
		}
		c := Commit{SHA: fields[0], Author: fields[1], Message: fields[3]}
		if ts, err := time.Parse(time.RFC3339, fields[2]); err == nil {
			c.Timestamp = ts
		}
		commits = append(commits, c)
	}
	return commits
}

// ClosestCommit finds the commit nearest to t within +/- window, or nil
// when none exists.
func ClosestCommit(path string, t time.Time, window time.Duration) *Commit {
	commits := CommitsInRange(path, t.Add(-window), t.Add(window))

	var closest *Commit
	var smallest time.Duration
	for i := range commits {
		if commits[i].Timestamp.IsZero() {
			continue
		}
		diff := commits[i].Timestamp.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if closest == nil || diff < smallest {
			closest = &commits[i]
			smallest = diff
		}
	}
	return closest
}

func run(dir string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
