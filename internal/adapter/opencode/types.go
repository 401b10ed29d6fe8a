package opencode

import "encoding/json"

// sessionFile is storage/session/<project>/ses_*.json.
type sessionFile struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Directory string    `json:"directory"`
	Time      timeStamp `json:"time"`
}

type timeStamp struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// messageFile is storage/message/<session-id>/msg_*.json. Provider, model
// and token counters live at the root, not under a nested body.
type messageFile struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Time       timeStamp  `json:"time"`
	ProviderID string     `json:"providerID"`
	ModelID    string     `json:"modelID"`
	Tokens     *tokenData `json:"tokens"`
}

type tokenData struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Cache  struct {
		Read  *int `json:"read"`
		Write *int `json:"write"`
	} `json:"cache"`
}

// partFile is storage/part/<message-id>/prt_*.json. A tool part carries
// its call state inline.
type partFile struct {
	ID     string     `json:"id"`
	Type   string     `json:"type"`
	Text   string     `json:"text"`
	Tool   string     `json:"tool"`
	CallID string     `json:"callID"`
	State  *toolState `json:"state"`
}

type toolState struct {
	Status string          `json:"status"`
	Input  json.RawMessage `json:"input"`
	Output json.RawMessage `json:"output"`
}
