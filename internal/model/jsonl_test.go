package model

import (
	"testing"
	"time"
)

func TestTurnsJSONL_RoundTrip(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	orig := BuildTurns([]Message{
		msgAt(RoleUser, base, TextPart{Content: "hello"}),
		msgAt(RoleAssistant, base.Add(time.Second), TextPart{Content: "hi"},
			ToolCallPart{ToolName: "bash", ToolID: "x"}),
		msgAt(RoleUser, base.Add(time.Minute), TextPart{Content: "more"}),
	})

	data, err := TurnsToJSONL(orig)
	if err != nil {
		t.Fatalf("TurnsToJSONL: %v", err)
	}

	got, err := TurnsFromJSONL(data)
	if err != nil {
		t.Fatalf("TurnsFromJSONL: %v", err)
	}
	if len(got) != len(orig) {
		t.Fatalf("got %d turns, want %d", len(got), len(orig))
	}
	for i := range orig {
		if got[i].ID != orig[i].ID || got[i].Index != orig[i].Index {
			t.Errorf("turn %d identity mismatch: %+v vs %+v", i, got[i], orig[i])
		}
		if len(got[i].Messages) != len(orig[i].Messages) {
			t.Errorf("turn %d has %d messages, want %d", i, len(got[i].Messages), len(orig[i].Messages))
		}
	}
	if got[0].Messages[1].Parts[1].(ToolCallPart).ToolName != "bash" {
		t.Error("tool call did not survive the round trip")
	}
}

func TestTurnsFromJSONL_UntaggedFallback(t *testing.T) {
	// Logs written before turn metadata existed regroup on user boundaries.
	raw := `{"id":"m1","role":"user","timestamp":"2026-01-15T10:00:00Z","parts":[{"type":"text","content":"a"}]}
{"id":"m2","role":"assistant","timestamp":"2026-01-15T10:00:01Z","parts":[{"type":"text","content":"b"}]}
{"id":"m3","role":"user","timestamp":"2026-01-15T10:01:00Z","parts":[{"type":"text","content":"c"}]}
`
	turns, err := TurnsFromJSONL([]byte(raw))
	if err != nil {
		t.Fatalf("TurnsFromJSONL: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if len(turns[0].Messages) != 2 || len(turns[1].Messages) != 1 {
		t.Errorf("turn sizes = %d/%d, want 2/1", len(turns[0].Messages), len(turns[1].Messages))
	}
}

func TestTurnsFromJSONL_Garbage(t *testing.T) {
	if _, err := TurnsFromJSONL([]byte("not json\n")); err == nil {
		t.Error("expected error for non-JSON content")
	}
}

func TestTurnsFromJSONL_Empty(t *testing.T) {
	turns, err := TurnsFromJSONL(nil)
	if err != nil {
		t.Fatalf("TurnsFromJSONL: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("got %d turns, want 0", len(turns))
	}
}
