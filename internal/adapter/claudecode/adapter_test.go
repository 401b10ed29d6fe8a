package claudecode

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

const sessionFixture = `{"type":"user","uuid":"u1","timestamp":"2026-01-15T10:00:00Z","cwd":"/Users/dev/code/myapp","gitBranch":"main","message":{"role":"user","content":"fix the login bug"}}
{"type":"assistant","uuid":"a1","timestamp":"2026-01-15T10:00:05Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"Let me look at the auth module."},{"type":"tool_use","id":"tc1","name":"Edit","input":{"filePath":"/Users/dev/code/myapp/auth.go","old":"a","new":"b"}}],"usage":{"input_tokens":1200,"output_tokens":80,"cache_read_input_tokens":400}}}
{"type":"user","uuid":"r1","timestamp":"2026-01-15T10:00:07Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tc1","content":[{"type":"text","text":"edit applied"}]}]}}
{"type":"user","uuid":"u2","timestamp":"2026-01-15T10:02:00Z","message":{"role":"user","content":"now add a test"}}
{"type":"assistant","uuid":"a2","timestamp":"2026-01-15T10:02:10Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"Done."}],"usage":{"input_tokens":300,"output_tokens":20}}}
not valid json
`

func writeSession(t *testing.T, root, project, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListSessions(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "-Users-dev-code-myapp", "abc123.jsonl", sessionFixture)
	writeSession(t, root, "-Users-dev-code-myapp", "agent-xyz.jsonl", sessionFixture)
	writeSession(t, root, "-Users-dev-code-other", "def456.jsonl", sessionFixture)

	a := New(root)
	refs, err := a.ListSessions(time.Time{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2 (agent files excluded)", len(refs))
	}
	for _, ref := range refs {
		if ref.ID == "agent-xyz" {
			t.Error("agent transcript should be skipped")
		}
	}
}

func TestListSessions_SinceFilter(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "-proj", "s1.jsonl", sessionFixture)

	a := New(root)
	all, err := a.ListSessions(time.Time{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d refs, want 1", len(all))
	}

	// A since before the mtime keeps the session, one after drops it.
	kept, _ := a.ListSessions(all[0].UpdatedAt.Add(-time.Hour))
	if len(kept) != 1 {
		t.Errorf("since before mtime: got %d refs, want 1", len(kept))
	}
	none, _ := a.ListSessions(all[0].UpdatedAt.Add(time.Hour))
	if len(none) != 0 {
		t.Errorf("since after mtime: got %d refs, want 0", len(none))
	}
}

func TestParseSession(t *testing.T) {
	root := t.TempDir()
	path := writeSession(t, root, "-Users-dev-code-myapp", "abc123.jsonl", sessionFixture)

	a := New(root)
	ref := model.SessionRef{ID: "abc123", Path: path, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s, err := a.ParseSession(ref)
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}

	if s.Source != model.SourceClaude || s.SourceID != "abc123" {
		t.Errorf("identity = %s/%s", s.Source, s.SourceID)
	}
	if s.ProjectPath != "/Users/dev/code/myapp" {
		t.Errorf("ProjectPath = %q", s.ProjectPath)
	}
	if s.ProjectName != "myapp" {
		t.Errorf("ProjectName = %q", s.ProjectName)
	}
	if s.Git == nil || s.Git.Branch != "main" {
		t.Errorf("Git = %+v", s.Git)
	}
	if s.Title != "fix the login bug" {
		t.Errorf("Title = %q", s.Title)
	}

	if len(s.Turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(s.Turns))
	}
	if len(s.Turns[0].Messages) != 3 || len(s.Turns[1].Messages) != 2 {
		t.Errorf("turn sizes = %d/%d, want 3/2",
			len(s.Turns[0].Messages), len(s.Turns[1].Messages))
	}

	if s.Stats.ToolCallCount != 1 {
		t.Errorf("ToolCallCount = %d, want 1", s.Stats.ToolCallCount)
	}
	if s.Stats.InputTokens != 1500 || s.Stats.OutputTokens != 100 {
		t.Errorf("tokens = %d/%d, want 1500/100", s.Stats.InputTokens, s.Stats.OutputTokens)
	}
	if len(s.Stats.FilesModified) != 1 || s.Stats.FilesModified[0] != "/Users/dev/code/myapp/auth.go" {
		t.Errorf("FilesModified = %v", s.Stats.FilesModified)
	}

	if len(s.Models) != 1 {
		t.Fatalf("got %d models, want 1", len(s.Models))
	}
	if s.Models[0].Provider != "anthropic" || s.Models[0].MessageCount != 2 {
		t.Errorf("model = %+v", s.Models[0])
	}

	// Tool result linked by id, carried as a tool-role message so it
	// stays inside the turn it answers.
	result := s.Turns[0].Messages[2]
	if result.Role != model.RoleTool {
		t.Errorf("result role = %q, want tool", result.Role)
	}
	parts := result.Parts
	if len(parts) != 1 {
		t.Fatalf("result message has %d parts", len(parts))
	}
	tr, ok := parts[0].(model.ToolResultPart)
	if !ok || tr.ToolID != "tc1" || tr.Output != "edit applied" {
		t.Errorf("tool result = %#v", parts[0])
	}
}

func TestParseSession_MissingFile(t *testing.T) {
	a := New(t.TempDir())
	_, err := a.ParseSession(model.SessionRef{ID: "x", Path: "/nonexistent/x.jsonl"})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseSession_EmptyFile(t *testing.T) {
	root := t.TempDir()
	path := writeSession(t, root, "-proj", "empty.jsonl", "")
	a := New(root)
	if _, err := a.ParseSession(model.SessionRef{ID: "empty", Path: path}); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestDecodeProjectPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"-Users-foo-code-myapp", "/Users/foo/code/myapp"},
		{"", ""},
		{"relative-path", "relative/path"},
	}
	for _, tt := range tests {
		if got := decodeProjectPath(tt.in); got != tt.want {
			t.Errorf("decodeProjectPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
