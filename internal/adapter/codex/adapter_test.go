package codex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

const modernFixture = `{"type":"session_meta","timestamp":"2026-02-01T09:00:00Z","payload":{"id":"rollout-abc","cwd":"/home/dev/proj","model_provider":"openai"}}
{"type":"event_msg","timestamp":"2026-02-01T09:00:01Z","payload":{"type":"user_message","message":"refactor the parser"}}
{"type":"response_item","timestamp":"2026-02-01T09:00:02Z","payload":{"type":"reasoning","summary":[{"type":"summary_text","text":"plan the change"}]}}
{"type":"response_item","timestamp":"2026-02-01T09:00:03Z","payload":{"type":"function_call","name":"shell","call_id":"c1","arguments":"{\"command\":[\"ls\"]}"}}
{"type":"response_item","timestamp":"2026-02-01T09:00:04Z","payload":{"type":"function_call_output","call_id":"c1","output":"{\"output\":\"main.go parser.go\",\"metadata\":{\"exit_code\":0}}"}}
{"type":"response_item","timestamp":"2026-02-01T09:00:05Z","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"All set."}]}}
{"type":"event_msg","timestamp":"2026-02-01T09:00:06Z","payload":{"type":"token_count","info":{"last_token_usage":{"input_tokens":900,"output_tokens":45}}}}
`

const legacyFixture = `{"id":"legacy-1","timestamp":"2026-02-01T08:00:00Z"}
{"type":"message","role":"user","content":[{"type":"input_text","text":"hello codex"}],"timestamp":"2026-02-01T08:00:01Z"}
{"type":"message","role":"assistant","content":[{"type":"text","text":"hello"}],"timestamp":"2026-02-01T08:00:02Z"}
{"type":"message","role":"developer","content":"be terse","timestamp":"2026-02-01T08:00:03Z"}
`

func writeRollout(t *testing.T, root, rel, content string) string {
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

func TestListSessions_WalksDateDirs(t *testing.T) {
	root := t.TempDir()
	writeRollout(t, root, "2026/02/01/rollout-a.jsonl", modernFixture)
	writeRollout(t, root, "2026/02/02/rollout-b.jsonl", legacyFixture)

	a := New(root)
	refs, err := a.ListSessions(time.Time{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}
}

func TestParseSession_Modern(t *testing.T) {
	root := t.TempDir()
	path := writeRollout(t, root, "2026/02/01/rollout-abc.jsonl", modernFixture)

	a := New(root)
	s, err := a.ParseSession(model.SessionRef{ID: "rollout-abc", Path: path})
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}

	if s.SourceID != "rollout-abc" {
		t.Errorf("SourceID = %q", s.SourceID)
	}
	if s.ProjectPath != "/home/dev/proj" || s.ProjectName != "proj" {
		t.Errorf("project = %q/%q", s.ProjectPath, s.ProjectName)
	}
	if s.Title != "refactor the parser" {
		t.Errorf("Title = %q", s.Title)
	}

	if len(s.Turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(s.Turns))
	}
	msgs := s.Turns[0].Messages
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}

	// Reasoning becomes prefixed assistant text.
	if tp, ok := msgs[1].Parts[0].(model.TextPart); !ok || tp.Content != "[Reasoning] plan the change" {
		t.Errorf("reasoning part = %#v", msgs[1].Parts[0])
	}

	// Function call arguments unwrap to structured JSON.
	tc, ok := msgs[2].Parts[0].(model.ToolCallPart)
	if !ok || tc.ToolName != "shell" || tc.ToolID != "c1" {
		t.Fatalf("tool call = %#v", msgs[2].Parts[0])
	}
	if string(tc.Input) != `{"command":["ls"]}` {
		t.Errorf("tool input = %s", tc.Input)
	}

	// The call's output follows as a tool-role result, unwrapped from its
	// {"output": ...} envelope.
	if msgs[3].Role != model.RoleTool {
		t.Errorf("output role = %q, want tool", msgs[3].Role)
	}
	tr, ok := msgs[3].Parts[0].(model.ToolResultPart)
	if !ok || tr.ToolID != "c1" || tr.Output != "main.go parser.go" {
		t.Errorf("tool result = %#v", msgs[3].Parts[0])
	}

	// Session-wide token count lands on the last assistant message.
	last := msgs[4]
	if last.Usage == nil || last.Usage.InputTokens != 900 || last.Usage.OutputTokens != 45 {
		t.Errorf("usage = %+v", last.Usage)
	}

	if len(s.Models) != 1 || s.Models[0].ModelID != "openai/codex" {
		t.Errorf("models = %+v", s.Models)
	}
	if s.Stats.ToolCallCount != 1 {
		t.Errorf("ToolCallCount = %d", s.Stats.ToolCallCount)
	}
}

func TestParseSession_Legacy(t *testing.T) {
	root := t.TempDir()
	path := writeRollout(t, root, "2026/02/01/legacy-1.jsonl", legacyFixture)

	a := New(root)
	s, err := a.ParseSession(model.SessionRef{ID: "legacy-1", Path: path})
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}

	if s.SourceID != "legacy-1" {
		t.Errorf("SourceID = %q", s.SourceID)
	}
	if len(s.Turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(s.Turns))
	}
	msgs := s.Turns[0].Messages
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[2].Role != model.RoleSystem {
		t.Errorf("developer role should normalize to system, got %s", msgs[2].Role)
	}
	if s.Title != "hello codex" {
		t.Errorf("Title = %q", s.Title)
	}
	// No session_meta, so no provider and no model rollup.
	if len(s.Models) != 0 {
		t.Errorf("models = %+v", s.Models)
	}
}

func TestOutputText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"plain text"`, "plain text"},
		{`"{\"output\":\"inner\",\"metadata\":{}}"`, "inner"},
		{`{"output":"direct object"}`, "direct object"},
		{``, ""},
	}
	for _, tt := range tests {
		if got := outputText([]byte(tt.in)); got != tt.want {
			t.Errorf("outputText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractTitle_SkipsContextPreamble(t *testing.T) {
	ts := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	turns := model.BuildTurns([]model.Message{
		{ID: "1", Role: model.RoleUser, Timestamp: ts,
			Parts: model.PartList{model.TextPart{Content: "<environment_context>stuff</environment_context>"}}},
		{ID: "2", Role: model.RoleUser, Timestamp: ts.Add(time.Second),
			Parts: model.PartList{model.TextPart{Content: "real question"}}},
	})
	if got := extractTitle(turns); got != "real question" {
		t.Errorf("extractTitle = %q", got)
	}
}
