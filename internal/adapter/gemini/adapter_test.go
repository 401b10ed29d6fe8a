package gemini

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

func writeSession(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const mainSession = `{
	"sessionId":"sess-1",
	"startTime":"2026-01-10T09:00:00Z",
	"lastUpdated":"2026-01-10T09:30:00Z",
	"directories":["/home/dev/webapp"],
	"messages":[
		{"type":"user","id":"m1","timestamp":"2026-01-10T09:00:00Z","content":"/help"},
		{"type":"user","id":"m2","timestamp":"2026-01-10T09:01:00Z","content":"refactor the config loader"},
		{"type":"gemini","id":"m3","timestamp":"2026-01-10T09:02:00Z",
		 "content":[{"text":"On it. "},{"thought":"check call sites"}],
		 "model":"gemini-2.5-pro",
		 "tokens":{"input":800,"output":150,"cached":100},
		 "toolCalls":[
			{"id":"t1","name":"edit_file","args":{"path":"config.go"},"result":"edited","status":"success"},
			{"id":"t2","name":"run_tests","args":{},"result":"boom","status":"error"}
		 ]},
		{"type":"info","id":"m4","timestamp":"2026-01-10T09:03:00Z","content":"model switched"}
	]}`

func seedRoot(t *testing.T) string {
	root := t.TempDir()
	writeSession(t, root, "hash1/chats/session-1.json", mainSession)
	// Same session id replayed in another project dir, staler copy.
	writeSession(t, root, "hash2/chats/session-dup.json", `{
		"sessionId":"sess-1",
		"startTime":"2026-01-10T09:00:00Z",
		"lastUpdated":"2026-01-10T09:10:00Z",
		"messages":[{"type":"user","content":"refactor the config loader"}]}`)
	writeSession(t, root, "hash3/chats/session-2.json", `{
		"sessionId":"sess-2",
		"startTime":"2026-01-09T12:00:00Z",
		"lastUpdated":"2026-01-09T12:05:00Z",
		"messages":[{"type":"user","content":"hi"},{"type":"gemini","content":"hello"}]}`)
	// Tooling noise without a conversation must be skipped.
	writeSession(t, root, "hash4/chats/session-3.json", `{
		"sessionId":"sess-3",
		"messages":[{"type":"info","content":"startup"}]}`)
	return root
}

func TestListSessions(t *testing.T) {
	a := New(seedRoot(t))

	refs, err := a.ListSessions(time.Time{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}
	// Newest first, duplicate sess-1 collapsed to the latest copy.
	if refs[0].ID != "sess-1" || refs[1].ID != "sess-2" {
		t.Errorf("order = [%s %s]", refs[0].ID, refs[1].ID)
	}
	if !refs[0].UpdatedAt.Equal(time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("dedup kept stale copy: UpdatedAt = %v", refs[0].UpdatedAt)
	}

	since := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	recent, _ := a.ListSessions(since)
	if len(recent) != 1 || recent[0].ID != "sess-1" {
		t.Errorf("since filter: got %+v", recent)
	}
}

func TestParseSession(t *testing.T) {
	a := New(seedRoot(t))
	refs, _ := a.ListSessions(time.Time{})

	s, err := a.ParseSession(refs[0])
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}
	if s.Source != model.SourceGemini || s.SourceID != "sess-1" {
		t.Errorf("identity = %s/%s", s.Source, s.SourceID)
	}
	if s.ProjectPath != "/home/dev/webapp" || s.ProjectName != "webapp" {
		t.Errorf("project = %q/%q", s.ProjectPath, s.ProjectName)
	}
	// Slash commands are not titles.
	if s.Title != "refactor the config loader" {
		t.Errorf("Title = %q", s.Title)
	}
	if s.DurationMS != 30*60*1000 {
		t.Errorf("DurationMS = %d", s.DurationMS)
	}

	if len(s.Turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(s.Turns))
	}
	assistant := s.Turns[1].Messages[1]
	if assistant.Role != model.RoleAssistant || assistant.Model != "gemini-2.5-pro" {
		t.Fatalf("assistant message = %+v", assistant)
	}

	// Structured parts flatten to text plus placeholder.
	tp, ok := assistant.Parts[0].(model.TextPart)
	if !ok || tp.Content != "On it. [Thought: check call sites]" {
		t.Errorf("text part = %#v", assistant.Parts[0])
	}

	// Two tool calls, each paired with its result.
	if len(assistant.Parts) != 5 {
		t.Fatalf("assistant has %d parts, want 5", len(assistant.Parts))
	}
	tc, ok := assistant.Parts[1].(model.ToolCallPart)
	if !ok || tc.ToolName != "edit_file" || tc.ToolID != "t1" {
		t.Errorf("tool call = %#v", assistant.Parts[1])
	}
	tr, ok := assistant.Parts[2].(model.ToolResultPart)
	if !ok || tr.Output != "edited" || tr.IsError {
		t.Errorf("tool result = %#v", assistant.Parts[2])
	}
	failed, ok := assistant.Parts[4].(model.ToolResultPart)
	if !ok || !failed.IsError {
		t.Errorf("errored result = %#v", assistant.Parts[4])
	}

	if assistant.Usage == nil || assistant.Usage.InputTokens != 800 || assistant.Usage.OutputTokens != 150 {
		t.Errorf("usage = %+v", assistant.Usage)
	}
	if assistant.Usage.CachedTokens == nil || *assistant.Usage.CachedTokens != 100 {
		t.Errorf("cached = %+v", assistant.Usage.CachedTokens)
	}

	if len(s.Models) != 1 {
		t.Fatalf("models = %+v", s.Models)
	}
	m := s.Models[0]
	if m.ModelID != "google/gemini-2.5-pro" || m.Provider != "google" || m.MessageCount != 1 {
		t.Errorf("model = %+v", m)
	}
	if m.InputTokens != 800 || m.OutputTokens != 150 {
		t.Errorf("model totals = %+v", m)
	}
}

func TestParseSession_MissingFile(t *testing.T) {
	a := New(t.TempDir())
	_, err := a.ParseSession(model.SessionRef{ID: "x", Path: "/nonexistent/session-x.json"})
	if err == nil {
		t.Error("expected error for missing session file")
	}
}

func TestPartString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain string", `"hello"`, "hello"},
		{"joined list", `[{"text":"a"},{"text":"b"}]`, "ab"},
		{"function call", `{"functionCall":{"name":"grep"}}`, "[Function Call: grep]"},
		{"function response", `{"functionResponse":{}}`, "[Function Response: unknown]"},
		{"inline data", `{"inlineData":{"mimeType":"image/png"}}`, "<image/png>"},
		{"code result", `{"codeExecutionResult":{}}`, "[Code Execution Result]"},
		{"unknown object", `{"somethingElse":1}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := partString([]byte(tt.raw)); got != tt.want {
				t.Errorf("partString(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
