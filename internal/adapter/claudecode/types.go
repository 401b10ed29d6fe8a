package claudecode

import "encoding/json"

// entry is one line of a Claude Code session JSONL file.
type entry struct {
	Type       string      `json:"type"`
	UUID       string      `json:"uuid"`
	ParentUUID string      `json:"parentUuid"`
	Timestamp  string      `json:"timestamp"`
	CWD        string      `json:"cwd"`
	GitBranch  string      `json:"gitBranch"`
	Version    string      `json:"version"`
	Message    *rawMessage `json:"message"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *rawUsage       `json:"usage"`
}

type rawUsage struct {
	InputTokens          int  `json:"input_tokens"`
	OutputTokens         int  `json:"output_tokens"`
	CacheReadInputTokens *int `json:"cache_read_input_tokens"`
}

// contentBlock is one element of a message's content array. Content on a
// tool_result block may itself be a string or a nested block list.
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Name      string          `json:"name"`
	ID        string          `json:"id"`
	Input     json.RawMessage `json:"input"`
	Content   json.RawMessage `json:"content"`
	ToolUseID string          `json:"tool_use_id"`
	IsError   bool            `json:"is_error"`
}
