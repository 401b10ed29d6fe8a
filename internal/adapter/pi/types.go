package pi

import "encoding/json"

// entry is one JSONL line. Pi records form a tree via id/parentId but are
// flattened chronologically here; some lines wrap the message payload,
// others carry it flat.
type entry struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
	payload
}

type payload struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	ToolCalls []toolCall      `json:"tool_calls"`
	Model     string          `json:"model"`
	Usage     *rawUsage       `json:"usage"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// rawUsage tolerates both the Anthropic and OpenAI counter names.
type rawUsage struct {
	InputTokens      int `json:"input_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// contentBlock is one element of a structured content list. Text is a
// pointer so a present-but-empty text key still maps to a text part.
type contentBlock struct {
	Type  string          `json:"type"`
	Text  *string         `json:"text"`
	Tool  json.RawMessage `json:"tool"`
	Name  string          `json:"name"`
	ID    string          `json:"id"`
	Input json.RawMessage `json:"input"`
}
