// Package codex parses OpenAI Codex CLI rollout files from
// ~/.codex/sessions. Rollouts live in date-nested directories and come in
// two shapes: the legacy flat record format and the modern wrapped
// type/payload event format, detected per line by the wrapper
// discriminator.
package codex

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/model"
)

// Adapter reads Codex CLI rollout files.
type Adapter struct {
	root string
}

// New creates the adapter. An empty root uses the default location.
func New(root string) *Adapter {
	a := &Adapter{root: root}
	if a.root == "" {
		a.root = a.DefaultPath()
	}
	return a
}

func (a *Adapter) Name() string        { return "codex" }
func (a *Adapter) DisplayName() string { return "OpenAI Codex CLI" }
func (a *Adapter) Root() string        { return a.root }

func (a *Adapter) DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codex", "sessions")
}

func (a *Adapter) Available() bool {
	info, err := os.Stat(a.root)
	return err == nil && info.IsDir()
}

// ListSessions walks the date-nested session tree for rollout files.
func (a *Adapter) ListSessions(since time.Time) ([]model.SessionRef, error) {
	if _, err := os.Stat(a.root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat sessions dir: %w", err)
	}

	var refs []model.SessionRef
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}
		id := strings.TrimSuffix(d.Name(), ".jsonl")
		if ref, ok := adapter.StatRef(id, path, since); ok {
			refs = append(refs, ref)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk sessions dir: %w", err)
	}
	adapter.SortNewestFirst(refs)
	return refs, nil
}

// ParseSession converts one rollout to the canonical model.
func (a *Adapter) ParseSession(ref model.SessionRef) (*model.UnifiedSession, error) {
	var events []event
	err := adapter.ScanLines(ref.Path, func(line []byte) error {
		var e event
		if json.Unmarshal(line, &e) != nil {
			return nil // skip malformed lines
		}
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("session %s: no parsable records", ref.ID)
	}

	sourceID := ref.ID
	var projectPath, modelProvider string
	for _, e := range events {
		if e.Type == "session_meta" {
			var p payload
			if json.Unmarshal(e.Payload, &p) == nil {
				if p.ID != "" {
					sourceID = p.ID
				}
				projectPath = p.CWD
				modelProvider = p.ModelProvider
			}
			break
		}
		// Legacy rollouts carry the session id on the first bare record.
		if e.Type == "" && e.ID != "" && len(e.Timestamp) > 0 {
			sourceID = e.ID
			break
		}
	}

	turns := buildTurns(events)

	createdAt, updatedAt := ref.CreatedAt, ref.UpdatedAt
	if len(turns) > 0 {
		if !turns[0].StartedAt.IsZero() {
			createdAt = turns[0].StartedAt
		}
		if !turns[len(turns)-1].EndedAt.IsZero() {
			updatedAt = turns[len(turns)-1].EndedAt
		}
	}

	return &model.UnifiedSession{
		ID:          model.NewID(),
		Source:      model.SourceCodex,
		SourceID:    sourceID,
		SourcePath:  ref.Path,
		Title:       extractTitle(turns),
		ProjectPath: projectPath,
		ProjectName: projectName(projectPath),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		DurationMS:  updatedAt.Sub(createdAt).Milliseconds(),
		Stats:       model.ComputeStats(turns),
		Models:      buildModelUsage(turns, modelProvider),
		Turns:       turns,
	}, nil
}

func projectName(path string) string {
	if path == "" {
		return ""
	}
	return model.ExtractProjectName(path)
}

// buildTurns extracts messages from both formats and groups them on user
// boundaries. Session-wide token counts attach to the last assistant
// message, mirroring when the counter event is emitted.
func buildTurns(events []event) []model.Turn {
	var msgs []model.Message
	var usage *model.TokenUsage
	counter := 0

	nextID := func() string {
		id := fmt.Sprintf("msg_%d", counter)
		counter++
		return id
	}

	for _, e := range events {
		ts := eventTime(e)
		switch e.Type {
		case "response_item":
			var p payload
			if json.Unmarshal(e.Payload, &p) != nil {
				continue
			}
			switch p.Type {
			case "message":
				if m, ok := payloadMessage(p, ts, nextID); ok {
					msgs = append(msgs, m)
				}
			case "function_call":
				msgs = append(msgs, functionCallMessage(p, ts, nextID))
			case "function_call_output":
				msgs = append(msgs, functionOutputMessage(p, ts, nextID))
			case "reasoning":
				var texts []string
				for _, s := range p.Summary {
					if s.Type == "summary_text" && s.Text != "" {
						texts = append(texts, s.Text)
					}
				}
				if len(texts) > 0 {
					msgs = append(msgs, model.Message{
						ID:        nextID(),
						Role:      model.RoleAssistant,
						Timestamp: ts,
						Parts:     model.PartList{model.TextPart{Content: "[Reasoning] " + strings.Join(texts, " ")}},
					})
				}
			}
		case "event_msg":
			var p payload
			if json.Unmarshal(e.Payload, &p) != nil {
				continue
			}
			switch p.Type {
			case "user_message":
				if p.Message != "" {
					msgs = append(msgs, model.Message{
						ID:        nextID(),
						Role:      model.RoleUser,
						Timestamp: ts,
						Parts:     model.PartList{model.TextPart{Content: p.Message}},
					})
				}
			case "agent_reasoning":
				if p.Text != "" {
					msgs = append(msgs, model.Message{
						ID:        nextID(),
						Role:      model.RoleAssistant,
						Timestamp: ts,
						Parts:     model.PartList{model.TextPart{Content: "[Reasoning] " + p.Text}},
					})
				}
			case "token_count":
				if p.Info != nil {
					raw := p.Info.LastTokenUsage
					if raw == nil {
						raw = p.Info.TotalTokenUsage
					}
					if raw != nil {
						usage = &model.TokenUsage{
							InputTokens:  raw.InputTokens,
							OutputTokens: raw.OutputTokens,
							CachedTokens: raw.CachedInputTokens,
						}
					}
				}
			}
		case "message":
			// Legacy flat record.
			p := payload{Type: "message", ID: e.ID, Role: e.Role, Content: e.Content}
			if m, ok := payloadMessage(p, ts, nextID); ok {
				msgs = append(msgs, m)
			}
		}
	}

	if usage != nil {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == model.RoleAssistant {
				msgs[i].Usage = usage
				break
			}
		}
	}

	return model.BuildTurns(msgs)
}

// payloadMessage converts a message payload, normalizing the developer
// role to system. Content may be a plain string or an item array.
func payloadMessage(p payload, ts time.Time, nextID func() string) (model.Message, bool) {
	role := model.Role(p.Role)
	switch p.Role {
	case "developer":
		role = model.RoleSystem
	case "user", "assistant", "system":
	default:
		return model.Message{}, false
	}

	var items []contentItem
	var text string
	if json.Unmarshal(p.Content, &text) == nil {
		items = []contentItem{{Type: "input_text", Text: text}}
	} else if json.Unmarshal(p.Content, &items) != nil {
		return model.Message{}, false
	}

	var parts model.PartList
	for _, item := range items {
		switch item.Type {
		case "input_text", "output_text", "text":
			if item.Text != "" {
				parts = append(parts, model.TextPart{Content: item.Text})
			}
		case "tool_call":
			name := item.Name
			if name == "" {
				name = "unknown"
			}
			parts = append(parts, model.ToolCallPart{
				ToolName: name,
				ToolID:   item.ID,
				Input:    item.Arguments,
			})
		}
	}
	if len(parts) == 0 {
		return model.Message{}, false
	}

	id := p.ID
	if id == "" {
		id = nextID()
	}
	return model.Message{ID: id, Role: role, Timestamp: ts, Parts: parts}, true
}

func functionCallMessage(p payload, ts time.Time, nextID func() string) model.Message {
	name := p.Name
	if name == "" {
		name = "unknown"
	}
	callID := p.CallID
	if callID == "" {
		callID = "call_0"
	}

	// Arguments arrive as a JSON-encoded string; unwrap to the object when
	// possible so the stored input is structured.
	input := p.Arguments
	var argStr string
	if json.Unmarshal(p.Arguments, &argStr) == nil {
		if json.Valid([]byte(argStr)) {
			input = json.RawMessage(argStr)
		} else {
			quoted, _ := json.Marshal(map[string]string{"raw": argStr})
			input = quoted
		}
	}

	return model.Message{
		ID:        nextID(),
		Role:      model.RoleAssistant,
		Timestamp: ts,
		Parts: model.PartList{model.ToolCallPart{
			ToolName: name,
			ToolID:   callID,
			Input:    input,
		}},
	}
}

func functionOutputMessage(p payload, ts time.Time, nextID func() string) model.Message {
	callID := p.CallID
	if callID == "" {
		callID = "call_0"
	}
	return model.Message{
		ID:        nextID(),
		Role:      model.RoleTool,
		Timestamp: ts,
		Parts: model.PartList{model.ToolResultPart{
			ToolID: callID,
			Output: outputText(p.Output),
		}},
	}
}

// outputText flattens a function_call_output payload. The field is a
// plain string, sometimes JSON-encoding an {"output": ...} wrapper.
func outputText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var wrapped struct {
		Output string `json:"output"`
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if json.Unmarshal([]byte(s), &wrapped) == nil && wrapped.Output != "" {
			return wrapped.Output
		}
		return s
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Output != "" {
		return wrapped.Output
	}
	return string(raw)
}

// eventTime reads timestamp or created_at, accepting unix seconds or
// RFC3339 strings; absent timestamps fall back to parse time.
func eventTime(e event) time.Time {
	raw := e.Timestamp
	if len(raw) == 0 {
		raw = e.CreatedAt
	}
	if len(raw) == 0 {
		return time.Now().UTC()
	}
	var unix float64
	if json.Unmarshal(raw, &unix) == nil {
		sec := int64(unix)
		nsec := int64((unix - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return adapter.ParseTimestamp(s)
	}
	return time.Now().UTC()
}

// extractTitle takes the first real user text, skipping injected context
// preambles. Codex titles are capped shorter than other sources.
func extractTitle(turns []model.Turn) string {
	for _, turn := range turns {
		for _, msg := range turn.Messages {
			if msg.Role != model.RoleUser {
				continue
			}
			for _, part := range msg.Parts {
				tp, ok := part.(model.TextPart)
				if !ok {
					continue
				}
				text := strings.TrimSpace(tp.Content)
				if text == "" ||
					strings.HasPrefix(text, "<environment_context>") ||
					strings.HasPrefix(text, "<user_instructions>") {
					continue
				}
				if len(text) > 60 {
					return text[:57] + "..."
				}
				return text
			}
		}
	}
	return ""
}

// buildModelUsage aggregates everything under one provider/codex entry;
// Codex keeps a single model per session.
func buildModelUsage(turns []model.Turn, provider string) []model.ModelUsage {
	if provider == "" {
		return nil
	}
	mu := model.ModelUsage{ModelID: provider + "/codex", Provider: provider}
	for _, turn := range turns {
		for _, msg := range turn.Messages {
			if msg.Role != model.RoleAssistant {
				continue
			}
			mu.MessageCount++
			if msg.Usage != nil {
				mu.InputTokens += msg.Usage.InputTokens
				mu.OutputTokens += msg.Usage.OutputTokens
			}
		}
	}
	if mu.MessageCount == 0 {
		return nil
	}
	return []model.ModelUsage{mu}
}
