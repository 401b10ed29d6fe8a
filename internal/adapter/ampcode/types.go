package ampcode

import "encoding/json"

// event is one line of `amp --execute --stream-json` output. The type
// field selects which of the remaining fields are populated.
type event struct {
	Type       string         `json:"type"`
	Subtype    string         `json:"subtype"`
	SessionID  string         `json:"session_id"`
	CWD        string         `json:"cwd"`
	Message    *streamMessage `json:"message"`
	Usage      *rawUsage      `json:"usage"`
	DurationMS int64          `json:"duration_ms"`
}

// streamMessage carries the content blocks of a user or assistant event.
// Content items are either bare strings or typed blocks.
type streamMessage struct {
	Content []json.RawMessage `json:"content"`
	Usage   *rawUsage         `json:"usage"`
}

type rawUsage struct {
	InputTokens          int  `json:"input_tokens"`
	OutputTokens         int  `json:"output_tokens"`
	CacheReadInputTokens *int `json:"cache_read_input_tokens"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	Name      string          `json:"name"`
	ID        string          `json:"id"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}
