package cursor

import "encoding/json"

// composerData is the JSON value of a composerData:<id> row. Version 1
// stores the conversation inline; version 3+ stores ordered headers whose
// bubbles live in separate bubbleId rows.
type composerData struct {
	ComposerID                  string          `json:"composerId"`
	Name                        string          `json:"name"`
	CreatedAt                   int64           `json:"createdAt"`
	LastUpdatedAt               int64           `json:"lastUpdatedAt"`
	Conversation                []bubble        `json:"conversation"`
	FullConversationHeadersOnly []bubbleHeader  `json:"fullConversationHeadersOnly"`
	Context                     *bubbleContext  `json:"context"`
	TokenCount                  json.RawMessage `json:"tokenCount"`
}

type bubbleHeader struct {
	BubbleID string `json:"bubbleId"`
	Type     int    `json:"type"`
}

// bubble is one message. Type 1 is user, 2 is assistant.
type bubble struct {
	BubbleID   string         `json:"bubbleId"`
	Type       int            `json:"type"`
	Text       string         `json:"text"`
	RichText   string         `json:"richText"`
	TokenCount *tokenCount    `json:"tokenCount"`
	Context    *bubbleContext `json:"context"`
}

type tokenCount struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

type bubbleContext struct {
	FileSelections   []fileSelection   `json:"fileSelections"`
	FolderSelections []json.RawMessage `json:"folderSelections"`
}

type fileSelection struct {
	URI  *uriRef `json:"uri"`
	Path string  `json:"path"`
}

type uriRef struct {
	Path string `json:"path"`
}

// lexicalNode is a node of the Lexical rich text editor tree.
type lexicalNode struct {
	Type     string        `json:"type"`
	Text     string        `json:"text"`
	Children []lexicalNode `json:"children"`
	Root     *lexicalNode  `json:"root"`
}
