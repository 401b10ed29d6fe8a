// Package gemini parses Google Gemini CLI chat recordings from
// ~/.gemini/tmp/<project-hash>/chats/session-*.json.
package gemini

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/model"
)

const sessionFilePrefix = "session-"

// Adapter reads Gemini CLI session files.
type Adapter struct {
	root string
}

// New creates the adapter. An empty root uses the default location,
// respecting the GEMINI_CLI_HOME override.
func New(root string) *Adapter {
	a := &Adapter{root: root}
	if a.root == "" {
		a.root = a.DefaultPath()
	}
	return a
}

func (a *Adapter) Name() string        { return "gemini" }
func (a *Adapter) DisplayName() string { return "Google Gemini CLI" }
func (a *Adapter) Root() string        { return a.root }

func (a *Adapter) DefaultPath() string {
	home := os.Getenv("GEMINI_CLI_HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".gemini", "tmp")
}

// Available probes for the gemini binary, the global settings file, or
// recorded session files.
func (a *Adapter) Available() bool {
	if _, err := exec.LookPath("gemini"); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(a.root), "settings.json")); err == nil {
		return true
	}
	return len(a.sessionFiles()) > 0
}

func (a *Adapter) sessionFiles() []string {
	matches, err := filepath.Glob(filepath.Join(a.root, "*", "chats", sessionFilePrefix+"*.json"))
	if err != nil {
		return nil
	}
	return matches
}

// ListSessions reads session metadata. The same session id can appear in
// several project hash directories; the most recently updated copy wins.
func (a *Adapter) ListSessions(since time.Time) ([]model.SessionRef, error) {
	if _, err := os.Stat(a.root); err != nil {
		return nil, nil
	}

	byID := make(map[string]model.SessionRef)
	for _, path := range a.sessionFiles() {
		var sf sessionFile
		if readJSON(path, &sf) != nil {
			continue
		}
		if !hasConversation(sf.Messages) {
			continue
		}

		id := sf.SessionID
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(path), ".json")
		}

		created := parseTime(sf.StartTime)
		updated := parseTime(sf.LastUpdated)
		if created.IsZero() || updated.IsZero() {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if created.IsZero() {
				created = info.ModTime().UTC()
			}
			if updated.IsZero() {
				updated = info.ModTime().UTC()
			}
		}
		if !since.IsZero() && !updated.After(since) {
			continue
		}

		ref := model.SessionRef{ID: id, Path: path, CreatedAt: created, UpdatedAt: updated}
		if existing, ok := byID[id]; !ok || ref.UpdatedAt.After(existing.UpdatedAt) {
			byID[id] = ref
		}
	}

	refs := make([]model.SessionRef, 0, len(byID))
	for _, ref := range byID {
		refs = append(refs, ref)
	}
	adapter.SortNewestFirst(refs)
	return refs, nil
}

// ParseSession converts one recording to the canonical model.
func (a *Adapter) ParseSession(ref model.SessionRef) (*model.UnifiedSession, error) {
	var sf sessionFile
	if err := readJSON(ref.Path, &sf); err != nil {
		return nil, fmt.Errorf("load gemini session %s: %w", ref.ID, err)
	}
	if sf.Messages == nil {
		return nil, fmt.Errorf("gemini session %s: no messages array", ref.ID)
	}

	var b model.TurnBuilder
	for i, rec := range sf.Messages {
		if msg, ok := convertMessage(rec, i); ok {
			b.Add(msg)
		}
	}
	turns := b.Finish()

	sessionID := sf.SessionID
	if sessionID == "" {
		sessionID = ref.ID
	}
	created := parseTime(sf.StartTime)
	if created.IsZero() {
		created = ref.CreatedAt
	}
	updated := parseTime(sf.LastUpdated)
	if updated.IsZero() {
		updated = ref.UpdatedAt
	}

	projectPath := ""
	for _, dir := range sf.Directories {
		if strings.TrimSpace(dir) != "" {
			projectPath = dir
			break
		}
	}

	return &model.UnifiedSession{
		ID:          model.NewID(),
		Source:      model.SourceGemini,
		SourceID:    sessionID,
		SourcePath:  ref.Path,
		Title:       extractTitle(&sf, turns),
		ProjectPath: projectPath,
		ProjectName: projectName(projectPath),
		CreatedAt:   created,
		UpdatedAt:   updated,
		DurationMS:  updated.Sub(created).Milliseconds(),
		Stats:       model.ComputeStats(turns),
		Models:      buildModelUsage(turns),
		Turns:       turns,
	}, nil
}

func projectName(path string) string {
	if path == "" {
		return ""
	}
	return model.ExtractProjectName(path)
}

func hasConversation(messages []record) bool {
	for _, m := range messages {
		if m.Type == "user" || m.Type == "gemini" {
			return true
		}
	}
	return false
}

func convertMessage(rec record, index int) (model.Message, bool) {
	var role model.Role
	switch rec.Type {
	case "user":
		role = model.RoleUser
	case "gemini":
		role = model.RoleAssistant
	case "info", "warning", "error":
		role = model.RoleSystem
	default:
		return model.Message{}, false
	}

	id := rec.ID
	if id == "" {
		id = fmt.Sprintf("msg_%d", index)
	}
	ts := parseTime(rec.Timestamp)
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	text := partString(rec.Content)
	if text == "" && len(rec.DisplayContent) > 0 {
		text = partString(rec.DisplayContent)
	}

	var parts model.PartList
	if text != "" {
		parts = append(parts, model.TextPart{Content: text})
	}
	if rec.Type == "gemini" {
		parts = append(parts, toolParts(rec.ToolCalls)...)
	}

	var modelID string
	if rec.Type == "gemini" {
		modelID = rec.Model
	}

	return model.Message{
		ID:        id,
		Role:      role,
		Timestamp: ts,
		Model:     modelID,
		Parts:     parts,
		Usage:     parseUsage(rec.Tokens),
	}, true
}

func toolParts(calls []toolCall) model.PartList {
	var parts model.PartList
	for _, call := range calls {
		name := call.Name
		if name == "" {
			name = "unknown"
		}
		parts = append(parts, model.ToolCallPart{
			ToolName: name,
			ToolID:   call.ID,
			Input:    call.Args,
		})

		result := partString(call.Result)
		if result == "" && len(call.ResultDisplay) > 0 {
			result = string(call.ResultDisplay)
		}
		if result != "" {
			parts = append(parts, model.ToolResultPart{
				ToolID:  call.ID,
				Output:  result,
				IsError: call.Status == "error" || call.Status == "cancelled",
			})
		}
	}
	return parts
}

// partString flattens Gemini's part-list union: plain strings pass
// through, structured parts collapse to bracketed placeholders.
func partString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		var sb strings.Builder
		for _, item := range list {
			sb.WriteString(partString(item))
		}
		return sb.String()
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	switch {
	case hasKey(obj, "videoMetadata"):
		return "[Video Metadata]"
	case hasKey(obj, "thought"):
		var thought string
		json.Unmarshal(obj["thought"], &thought)
		return "[Thought: " + thought + "]"
	case hasKey(obj, "codeExecutionResult"):
		return "[Code Execution Result]"
	case hasKey(obj, "executableCode"):
		return "[Executable Code]"
	case hasKey(obj, "fileData"):
		return "[File Data]"
	case hasKey(obj, "functionCall"):
		return "[Function Call: " + nameOf(obj["functionCall"]) + "]"
	case hasKey(obj, "functionResponse"):
		return "[Function Response: " + nameOf(obj["functionResponse"]) + "]"
	case hasKey(obj, "inlineData"):
		var inline struct {
			MimeType string `json:"mimeType"`
		}
		json.Unmarshal(obj["inlineData"], &inline)
		if inline.MimeType == "" {
			inline.MimeType = "inline_data"
		}
		return "<" + inline.MimeType + ">"
	case hasKey(obj, "text"):
		var text string
		json.Unmarshal(obj["text"], &text)
		return text
	}
	return ""
}

func hasKey(obj map[string]json.RawMessage, key string) bool {
	_, ok := obj[key]
	return ok
}

func nameOf(raw json.RawMessage) string {
	var v struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &v) != nil || v.Name == "" {
		return "unknown"
	}
	return v.Name
}

func parseUsage(tokens *tokenData) *model.TokenUsage {
	if tokens == nil {
		return nil
	}
	return &model.TokenUsage{
		InputTokens:  tokens.Input,
		OutputTokens: tokens.Output,
		CachedTokens: tokens.Cached,
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// extractTitle prefers the recorded summary, then the first user text
// that is not a slash or help command.
func extractTitle(sf *sessionFile, turns []model.Turn) string {
	if summary := strings.TrimSpace(sf.Summary); summary != "" {
		return summary
	}
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
				if text == "" || strings.HasPrefix(text, "/") || strings.HasPrefix(text, "?") {
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

// buildModelUsage aggregates assistant messages, defaulting the provider
// to google for bare model names.
func buildModelUsage(turns []model.Turn) []model.ModelUsage {
	byModel := make(map[string]*model.ModelUsage)
	var order []string
	for _, turn := range turns {
		for _, msg := range turn.Messages {
			if msg.Role != model.RoleAssistant || msg.Model == "" {
				continue
			}
			provider := "google"
			modelID := msg.Model
			if i := strings.IndexByte(msg.Model, '/'); i > 0 {
				provider = msg.Model[:i]
			} else {
				modelID = provider + "/" + msg.Model
			}
			mu, ok := byModel[modelID]
			if !ok {
				mu = &model.ModelUsage{ModelID: modelID, Provider: provider}
				byModel[modelID] = mu
				order = append(order, modelID)
			}
			mu.MessageCount++
			if msg.Usage != nil {
				mu.InputTokens += msg.Usage.InputTokens
				mu.OutputTokens += msg.Usage.OutputTokens
			}
		}
	}
	out := make([]model.ModelUsage, 0, len(order))
	for _, id := range order {
		out = append(out, *byModel[id])
	}
	return out
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
