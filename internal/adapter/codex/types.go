package codex

import "encoding/json"

// event is one line of a Codex rollout file. Legacy rollouts put message
// fields at the top level; modern rollouts wrap everything in a payload.
type event struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp json.RawMessage `json:"timestamp"`
	CreatedAt json.RawMessage `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`

	// Legacy message fields.
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// payload covers the modern payload variants: session_meta, message,
// function_call, function_call_output, reasoning, user_message,
// agent_reasoning, token_count.
type payload struct {
	Type          string          `json:"type"`
	ID            string          `json:"id"`
	CWD           string          `json:"cwd"`
	ModelProvider string          `json:"model_provider"`
	Role          string          `json:"role"`
	Content       json.RawMessage `json:"content"`
	Summary       []summaryItem   `json:"summary"`
	Name          string          `json:"name"`
	CallID        string          `json:"call_id"`
	Arguments     json.RawMessage `json:"arguments"`
	Output        json.RawMessage `json:"output"`
	Message       string          `json:"message"`
	Text          string          `json:"text"`
	Info          *tokenInfo      `json:"info"`
}

type summaryItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type tokenInfo struct {
	LastTokenUsage  *rawUsage `json:"last_token_usage"`
	TotalTokenUsage *rawUsage `json:"total_token_usage"`
}

type rawUsage struct {
	InputTokens       int  `json:"input_tokens"`
	OutputTokens      int  `json:"output_tokens"`
	CachedInputTokens *int `json:"cached_input_tokens"`
}

// contentItem is one element of a message content array.
type contentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Name      string          `json:"name"`
	ID        string          `json:"id"`
	Arguments json.RawMessage `json:"arguments"`
}
