package ampcode

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

const capturedStream = `{"type":"system","subtype":"init","session_id":"T-abc123","cwd":"/home/dev/webapp"}
{"type":"user","session_id":"T-abc123","message":{"content":["fix the flaky login test"]}}
{"type":"assistant","session_id":"T-abc123","message":{"content":[{"type":"thinking","thinking":"find the test first"},{"type":"text","text":"Looking at the test."},{"type":"tool_use","id":"tu_1","name":"Read","input":{"file_path":"login_test.go"}}],"usage":{"input_tokens":900,"output_tokens":60,"cache_read_input_tokens":300}}}
{"type":"user","session_id":"T-abc123","message":{"content":[{"type":"tool_result","tool_use_id":"tu_1","content":[{"type":"text","text":"func TestLogin(t *testing.T) {"}]}]}}
{"type":"assistant","session_id":"T-abc123","message":{"content":[{"type":"text","text":"The test races on the session cookie. Fixed."}],"usage":{"input_tokens":1100,"output_tokens":90}}}
{"type":"result","subtype":"success","session_id":"T-abc123","duration_ms":45000,"usage":{"input_tokens":2000,"output_tokens":150}}
`

func writeStream(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListSessions(t *testing.T) {
	root := t.TempDir()
	writeStream(t, root, "session.jsonl", capturedStream)
	writeStream(t, root, "empty.jsonl", "")

	a := New(root)
	refs, err := a.ListSessions(time.Time{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %d refs, want 1", len(refs))
	}
	if refs[0].ID != "T-abc123" {
		t.Errorf("ID = %q, want session id from stream", refs[0].ID)
	}

	// mtime-based since filter.
	future := time.Now().Add(time.Hour)
	if refs, _ := a.ListSessions(future); len(refs) != 0 {
		t.Errorf("future since should exclude everything, got %d", len(refs))
	}
}

func TestListSessions_FilenameFallback(t *testing.T) {
	root := t.TempDir()
	writeStream(t, root, "my-capture.jsonl", `{"type":"user","message":{"content":["hi"]}}`)

	refs, _ := New(root).ListSessions(time.Time{})
	if len(refs) != 1 || refs[0].ID != "my-capture" {
		t.Errorf("refs = %+v", refs)
	}
}

func TestParseSession(t *testing.T) {
	root := t.TempDir()
	writeStream(t, root, "session.jsonl", capturedStream)

	a := New(root)
	refs, _ := a.ListSessions(time.Time{})
	s, err := a.ParseSession(refs[0])
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}

	if s.Source != model.SourceAmpcode || s.SourceID != "T-abc123" {
		t.Errorf("identity = %s/%s", s.Source, s.SourceID)
	}
	if s.ProjectPath != "/home/dev/webapp" || s.ProjectName != "webapp" {
		t.Errorf("project = %q/%q", s.ProjectPath, s.ProjectName)
	}
	if s.Title != "fix the flaky login test" {
		t.Errorf("Title = %q", s.Title)
	}
	if s.DurationMS != 45000 {
		t.Errorf("DurationMS = %d", s.DurationMS)
	}

	// Two user events, so two turns. System and result events do not
	// contribute messages.
	if len(s.Turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(s.Turns))
	}
	if len(s.Turns[0].Messages) != 2 || len(s.Turns[1].Messages) != 2 {
		t.Errorf("turn sizes = %d/%d", len(s.Turns[0].Messages), len(s.Turns[1].Messages))
	}

	assistant := s.Turns[0].Messages[1]
	if len(assistant.Parts) != 3 {
		t.Fatalf("assistant has %d parts, want 3", len(assistant.Parts))
	}
	if tp, ok := assistant.Parts[0].(model.TextPart); !ok || tp.Content != "[thinking] find the test first" {
		t.Errorf("thinking part = %#v", assistant.Parts[0])
	}
	tc, ok := assistant.Parts[2].(model.ToolCallPart)
	if !ok || tc.ToolName != "Read" || tc.ToolID != "tu_1" {
		t.Errorf("tool call = %#v", assistant.Parts[2])
	}

	// Tool result comes back inside the second user event.
	feedback := s.Turns[1].Messages[0]
	tr, ok := feedback.Parts[0].(model.ToolResultPart)
	if !ok || tr.ToolID != "tu_1" || tr.Output != "func TestLogin(t *testing.T) {" {
		t.Errorf("tool result = %#v", feedback.Parts[0])
	}

	if assistant.Usage == nil || assistant.Usage.InputTokens != 900 {
		t.Errorf("usage = %+v", assistant.Usage)
	}
	if assistant.Usage.CachedTokens == nil || *assistant.Usage.CachedTokens != 300 {
		t.Errorf("cached = %+v", assistant.Usage.CachedTokens)
	}

	// Per-message usage drives stats; the result totals only fill gaps.
	if s.Stats.InputTokens != 2000 || s.Stats.OutputTokens != 150 {
		t.Errorf("tokens = %d/%d, want 2000/150 from per-message sums", s.Stats.InputTokens, s.Stats.OutputTokens)
	}
	if s.Stats.ToolCallCount != 1 {
		t.Errorf("ToolCallCount = %d", s.Stats.ToolCallCount)
	}

	if len(s.Models) != 1 {
		t.Fatalf("models = %+v", s.Models)
	}
	m := s.Models[0]
	if m.ModelID != "anthropic/claude-sonnet-4" || m.MessageCount != 2 {
		t.Errorf("model = %+v", m)
	}
	// Result event totals are authoritative for the rollup.
	if m.InputTokens != 2000 || m.OutputTokens != 150 {
		t.Errorf("model totals = %+v", m)
	}
}

func TestParseSession_Empty(t *testing.T) {
	root := t.TempDir()
	path := writeStream(t, root, "empty.jsonl", "\n\n")
	_, err := New(root).ParseSession(model.SessionRef{ID: "empty", Path: path})
	if err == nil {
		t.Error("expected error for empty capture")
	}
}
