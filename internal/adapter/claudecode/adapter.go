// Package claudecode parses Claude Code sessions from ~/.claude/projects.
// Each session is a JSONL file of wrapped message records inside a
// directory named after the dash-encoded project path.
package claudecode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/model"
)

// Adapter reads Claude Code session files.
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

func (a *Adapter) Name() string        { return "claude" }
func (a *Adapter) DisplayName() string { return "Claude Code" }
func (a *Adapter) Root() string        { return a.root }

func (a *Adapter) DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude", "projects")
}

func (a *Adapter) Available() bool {
	info, err := os.Stat(a.root)
	return err == nil && info.IsDir()
}

// ListSessions walks the project directories for session files, skipping
// agent-*.jsonl subagent transcripts.
func (a *Adapter) ListSessions(since time.Time) ([]model.SessionRef, error) {
	dirs, err := os.ReadDir(a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	var refs []model.SessionRef
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(a.root, dir.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if !strings.HasSuffix(name, ".jsonl") || strings.HasPrefix(name, "agent-") {
				continue
			}
			path := filepath.Join(a.root, dir.Name(), name)
			if ref, ok := adapter.StatRef(strings.TrimSuffix(name, ".jsonl"), path, since); ok {
				refs = append(refs, ref)
			}
		}
	}
	adapter.SortNewestFirst(refs)
	return refs, nil
}

// ParseSession converts one session file to the canonical model.
func (a *Adapter) ParseSession(ref model.SessionRef) (*model.UnifiedSession, error) {
	var entries []entry
	err := adapter.ScanLines(ref.Path, func(line []byte) error {
		var e entry
		if json.Unmarshal(line, &e) != nil {
			return nil // skip malformed lines
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("session %s: no parsable records", ref.ID)
	}

	var projectPath, gitBranch string
	for _, e := range entries {
		if projectPath == "" && e.CWD != "" {
			projectPath = e.CWD
		}
		if gitBranch == "" && e.GitBranch != "" {
			gitBranch = e.GitBranch
		}
		if projectPath != "" && gitBranch != "" {
			break
		}
	}
	if projectPath == "" {
		projectPath = decodeProjectPath(filepath.Base(filepath.Dir(ref.Path)))
	}

	var b model.TurnBuilder
	for _, e := range entries {
		if msg, ok := parseMessage(e); ok {
			b.Add(msg)
		}
	}
	turns := b.Finish()

	var git *model.GitContext
	if gitBranch != "" {
		git = &model.GitContext{Branch: gitBranch}
	}

	return &model.UnifiedSession{
		ID:          model.NewID(),
		Source:      model.SourceClaude,
		SourceID:    ref.ID,
		SourcePath:  ref.Path,
		Title:       adapter.TitleFromTurns(turns),
		ProjectPath: projectPath,
		ProjectName: model.ExtractProjectName(projectPath),
		Git:         git,
		CreatedAt:   ref.CreatedAt,
		UpdatedAt:   ref.UpdatedAt,
		DurationMS:  adapter.Duration(turns),
		Stats:       model.ComputeStats(turns),
		Models:      model.AggregateModelUsage(turns, "anthropic"),
		Turns:       turns,
	}, nil
}

func parseMessage(e entry) (model.Message, bool) {
	if e.Message == nil {
		return model.Message{}, false
	}

	parts := parseContent(e.Message.Content)

	role := model.Role(e.Message.Role)
	switch role {
	case model.RoleUser, model.RoleAssistant, model.RoleSystem, model.RoleTool:
	default:
		if e.Type == "tool_result" {
			role = model.RoleTool
		} else {
			role = model.RoleUser
		}
	}
	// Tool results come back under the user role with content arrays of
	// only tool_result blocks; they belong to the turn in progress, not a
	// new one.
	if role == model.RoleUser && onlyToolResults(parts) {
		role = model.RoleTool
	}

	var usage *model.TokenUsage
	if u := e.Message.Usage; u != nil {
		usage = &model.TokenUsage{
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			CachedTokens: u.CacheReadInputTokens,
		}
	}

	id := e.UUID
	if id == "" {
		id = model.NewID()
	}
	return model.Message{
		ID:        id,
		Role:      role,
		Timestamp: adapter.ParseTimestamp(e.Timestamp),
		Model:     e.Message.Model,
		Parts:     parts,
		Usage:     usage,
	}, true
}

func onlyToolResults(parts model.PartList) bool {
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if _, ok := p.(model.ToolResultPart); !ok {
			return false
		}
	}
	return true
}

// parseContent handles both plain-string content and block arrays.
func parseContent(raw json.RawMessage) model.PartList {
	if len(raw) == 0 {
		return nil
	}

	var text string
	if json.Unmarshal(raw, &text) == nil {
		if text == "" {
			return nil
		}
		return model.PartList{model.TextPart{Content: text}}
	}

	var blocks []contentBlock
	if json.Unmarshal(raw, &blocks) != nil {
		return nil
	}

	var parts model.PartList
	for _, block := range blocks {
		switch block.Type {
		case "text", "thinking":
			if block.Text != "" {
				parts = append(parts, model.TextPart{Content: block.Text})
			}
		case "tool_use":
			name := block.Name
			if name == "" {
				name = "unknown"
			}
			parts = append(parts, model.ToolCallPart{
				ToolName: name,
				ToolID:   block.ID,
				Input:    block.Input,
			})
		case "tool_result":
			parts = append(parts, model.ToolResultPart{
				ToolID:  block.ToolUseID,
				Output:  resultText(block.Content),
				IsError: block.IsError,
			})
		}
	}
	return parts
}

// resultText flattens a tool_result content field, which is either a
// string or a list of text blocks.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []contentBlock
	if json.Unmarshal(raw, &blocks) != nil {
		return ""
	}
	var texts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// decodeProjectPath reverses Claude Code's dash encoding of the project
// directory, e.g. "-Users-foo-code-myapp" -> "/Users/foo/code/myapp".
func decodeProjectPath(encoded string) string {
	if encoded == "" {
		return ""
	}
	if strings.HasPrefix(encoded, "-") {
		return "/" + strings.ReplaceAll(encoded[1:], "-", "/")
	}
	return strings.ReplaceAll(encoded, "-", "/")
}
