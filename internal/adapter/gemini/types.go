package gemini

import "encoding/json"

// sessionFile is one chats/session-*.json recording.
type sessionFile struct {
	SessionID   string   `json:"sessionId"`
	StartTime   string   `json:"startTime"`
	LastUpdated string   `json:"lastUpdated"`
	Summary     string   `json:"summary"`
	Directories []string `json:"directories"`
	Messages    []record `json:"messages"`
}

// record is one message. Content holds either a plain string or the
// part-list union that partString flattens.
type record struct {
	Type           string          `json:"type"`
	ID             string          `json:"id"`
	Timestamp      string          `json:"timestamp"`
	Content        json.RawMessage `json:"content"`
	DisplayContent json.RawMessage `json:"displayContent"`
	ToolCalls      []toolCall      `json:"toolCalls"`
	Tokens         *tokenData      `json:"tokens"`
	Model          string          `json:"model"`
}

type toolCall struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Args          json.RawMessage `json:"args"`
	Result        json.RawMessage `json:"result"`
	ResultDisplay json.RawMessage `json:"resultDisplay"`
	Status        string          `json:"status"`
}

type tokenData struct {
	Input  int  `json:"input"`
	Output int  `json:"output"`
	Cached *int `json:"cached"`
}
