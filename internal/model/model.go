// Package model defines the canonical session representation that every
// source adapter produces and the store persists.
package model

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SourceTool identifies which assistant produced a session.
type SourceTool string

const (
	SourceOpenCode SourceTool = "opencode"
	SourceClaude   SourceTool = "claude"
	SourceCodex    SourceTool = "codex"
	SourceCursor   SourceTool = "cursor"
	SourceGemini   SourceTool = "gemini"
	SourceAmpcode  SourceTool = "ampcode"
	SourcePi       SourceTool = "pi"
)

// ParseSourceTool validates a source name against the closed set.
func ParseSourceTool(s string) (SourceTool, error) {
	switch SourceTool(s) {
	case SourceOpenCode, SourceClaude, SourceCodex, SourceCursor,
		SourceGemini, SourceAmpcode, SourcePi:
		return SourceTool(s), nil
	}
	return "", fmt.Errorf("unknown source tool %q", s)
}

// SessionRef is a cheap handle produced by listing, before full parsing.
type SessionRef struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role of a message within a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// TokenUsage holds token counters for a single message.
type TokenUsage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	CachedTokens *int `json:"cached_tokens,omitempty"`
}

// ModelUsage aggregates usage for one model within a session.
// ModelID uses the provider/model format.
type ModelUsage struct {
	ModelID      string `json:"model_id"`
	Provider     string `json:"provider"`
	MessageCount int    `json:"message_count"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Part is an atomic content unit within a message. The concrete types are
// TextPart, ToolCallPart, ToolResultPart and FileChangePart; no other kinds
// exist, unmapped source content is coerced into one of these.
type Part interface {
	PartType() string
}

// TextPart is plain text content.
type TextPart struct {
	Content string `json:"content"`
}

func (TextPart) PartType() string { return "text" }

// ToolCallPart is a tool invocation. Input is the tool's raw argument
// payload and is deliberately untyped.
type ToolCallPart struct {
	ToolName string          `json:"tool_name"`
	ToolID   string          `json:"tool_id"`
	Input    json.RawMessage `json:"input,omitempty"`
}

func (ToolCallPart) PartType() string { return "tool_call" }

// ToolResultPart is the output of a prior tool call in the same session.
type ToolResultPart struct {
	ToolID  string `json:"tool_id"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
}

func (ToolResultPart) PartType() string { return "tool_result" }

// FileChangePart records a modification to a file.
type FileChangePart struct {
	Path string `json:"path"`
	Diff string `json:"diff,omitempty"`
}

func (FileChangePart) PartType() string { return "file_change" }

// Message is a single message within a turn. Part order is preserved from
// the source.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
	Model     string      `json:"model,omitempty"`
	Parts     PartList    `json:"parts"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// Turn is a contiguous span of messages beginning at a user utterance.
type Turn struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Messages  []Message `json:"messages"`
}

// GitContext is an optional repository snapshot attached after parsing.
type GitContext struct {
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	Remote string `json:"remote,omitempty"`
}

// SessionStats is derived from Turns at save time and never mutated
// independently of them.
type SessionStats struct {
	TurnCount     int      `json:"turn_count"`
	MessageCount  int      `json:"message_count"`
	InputTokens   int      `json:"input_tokens"`
	OutputTokens  int      `json:"output_tokens"`
	ToolCallCount int      `json:"tool_call_count"`
	FilesModified []string `json:"files_modified,omitempty"`
}

// UnifiedSession is the aggregate root. ID is a system-generated UUIDv7;
// (Source, SourceID) is the natural key used for import deduplication.
type UnifiedSession struct {
	ID         string     `json:"id"`
	Source     SourceTool `json:"source"`
	SourceID   string     `json:"source_id"`
	SourcePath string     `json:"source_path"`

	Title       string `json:"title,omitempty"`
	ProjectPath string `json:"project_path,omitempty"`
	ProjectName string `json:"project_name,omitempty"`

	Git *GitContext `json:"git,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	DurationMS int64     `json:"duration_ms,omitempty"`

	Stats  SessionStats `json:"stats"`
	Models []ModelUsage `json:"models,omitempty"`
	Turns  []Turn       `json:"turns"`
}

// ExtractText concatenates all text parts for full-text indexing.
func (s *UnifiedSession) ExtractText() string {
	var texts []string
	for _, turn := range s.Turns {
		for _, msg := range turn.Messages {
			for _, part := range msg.Parts {
				if tp, ok := part.(TextPart); ok {
					texts = append(texts, tp.Content)
				}
			}
		}
	}
	return strings.Join(texts, "\n")
}

// ToolCounts returns tool call counts keyed by tool name.
func (s *UnifiedSession) ToolCounts() map[string]int {
	counts := make(map[string]int)
	for _, turn := range s.Turns {
		for _, msg := range turn.Messages {
			for _, part := range msg.Parts {
				if tc, ok := part.(ToolCallPart); ok {
					counts[tc.ToolName]++
				}
			}
		}
	}
	return counts
}

// ExtractProjectName returns the last path component, or "unknown" for an
// empty or unusable path.
func ExtractProjectName(path string) string {
	if path == "" {
		return "unknown"
	}
	name := filepath.Base(strings.TrimRight(path, "/"))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "unknown"
	}
	return name
}
