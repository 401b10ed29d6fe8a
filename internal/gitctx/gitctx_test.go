package gitctx

import (
	"os/exec"
	"testing"
	"time"
)

// newTestRepo creates a repo with one commit and returns its path.
func newTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()

	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(cmd.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	git("init", "-b", "main")
	git("commit", "--allow-empty", "-m", "initial commit")
	return dir
}

func TestIsRepo(t *testing.T) {
	repo := newTestRepo(t)
	if !IsRepo(repo) {
		t.Error("repo dir should be a repo")
	}
	if IsRepo(t.TempDir()) {
		t.Error("plain temp dir should not be a repo")
	}
	if IsRepo("/nonexistent/path") {
		t.Error("missing path should not be a repo")
	}
}

func TestInfo(t *testing.T) {
	repo := newTestRepo(t)

	info := Info(repo)
	if info == nil {
		t.Fatal("Info returned nil for a repo")
	}
	if info.Branch != "main" {
		t.Errorf("Branch = %q", info.Branch)
	}
	if len(info.Commit) != 40 {
		t.Errorf("Commit = %q, want full sha", info.Commit)
	}
	// No origin configured; remote stays empty rather than failing.
	if info.Remote != "" {
		t.Errorf("Remote = %q", info.Remote)
	}

	if Info(t.TempDir()) != nil {
		t.Error("Info should be nil outside a repo")
	}
}

func TestClosestCommit(t *testing.T) {
	repo := newTestRepo(t)

	now := time.Now()
	c := ClosestCommit(repo, now, 2*time.Hour)
	if c == nil {
		t.Fatal("expected to find the fresh commit")
	}
	if c.Message != "initial commit" || c.Author != "test" {
		t.Errorf("commit = %+v", c)
	}

	// A window far in the past finds nothing.
	if c := ClosestCommit(repo, now.Add(-24*time.Hour), time.Hour); c != nil {
		t.Errorf("expected no commit, got %+v", c)
	}
}
