// Package pi parses Pi Coding Agent sessions from ~/.pi/agent/sessions.
// Project directories encode the working directory as --path--with--dashes.
package pi

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/model"
)

// Adapter reads Pi session files.
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

func (a *Adapter) Name() string        { return "pi" }
func (a *Adapter) DisplayName() string { return "Pi Coding Agent" }
func (a *Adapter) Root() string        { return a.root }

func (a *Adapter) DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pi", "agent", "sessions")
}

func (a *Adapter) Available() bool {
	_, err := os.Stat(a.root)
	return err == nil
}

// ListSessions walks the session tree for JSONL files. Pi records no
// session-level timestamps, so file times apply.
func (a *Adapter) ListSessions(since time.Time) ([]model.SessionRef, error) {
	if _, err := os.Stat(a.root); err != nil {
		return nil, nil
	}

	var refs []model.SessionRef
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return err
		}
		id := strings.TrimSuffix(d.Name(), ".jsonl")
		if ref, ok := adapter.StatRef(id, path, since); ok {
			refs = append(refs, ref)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk pi sessions: %w", err)
	}
	adapter.SortNewestFirst(refs)
	return refs, nil
}

// ParseSession converts one session file to the canonical model.
func (a *Adapter) ParseSession(ref model.SessionRef) (*model.UnifiedSession, error) {
	var entries []entry
	err := adapter.ScanLines(ref.Path, func(line []byte) error {
		var e entry
		if json.Unmarshal(line, &e) == nil {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load pi session %s: %w", ref.ID, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("pi session %s: no entries in %s", ref.ID, ref.Path)
	}

	// Entries form a parent-linked tree; timestamp order is the flattened
	// conversation order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})

	var b model.TurnBuilder
	for _, e := range entries {
		if msg, ok := convertEntry(e); ok {
			b.Add(msg)
		}
	}
	turns := b.Finish()

	projectPath := ""
	parent := filepath.Base(filepath.Dir(ref.Path))
	if strings.HasPrefix(parent, "-") {
		projectPath = decodePiPath(parent)
	}
	projectName := ""
	if projectPath != "" {
		projectName = model.ExtractProjectName(projectPath)
	}

	return &model.UnifiedSession{
		ID:          model.NewID(),
		Source:      model.SourcePi,
		SourceID:    ref.ID,
		SourcePath:  ref.Path,
		Title:       adapter.TitleFromTurns(turns),
		ProjectPath: projectPath,
		ProjectName: projectName,
		CreatedAt:   ref.CreatedAt,
		UpdatedAt:   ref.UpdatedAt,
		DurationMS:  adapter.Duration(turns),
		Stats:       model.ComputeStats(turns),
		Models:      model.AggregateModelUsage(turns, "pi"),
		Turns:       turns,
	}, nil
}

// decodePiPath reverses Pi's directory encoding: --Users-foo-code-myapp
// becomes /Users/foo/code/myapp.
func decodePiPath(encoded string) string {
	if encoded == "" {
		return ""
	}
	clean := strings.TrimSuffix(encoded, "--")
	if strings.HasPrefix(clean, "--") {
		clean = clean[2:]
	} else {
		clean = strings.TrimPrefix(clean, "-")
	}
	decoded := strings.ReplaceAll(clean, "-", "/")
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}
	return decoded
}

// convertEntry maps one record to a message, tolerating both the wrapped
// and flat layouts. Metadata lines and empty messages are dropped.
func convertEntry(e entry) (model.Message, bool) {
	data := e.payload
	if len(e.Message) > 0 {
		if json.Unmarshal(e.Message, &data) != nil {
			return model.Message{}, false
		}
	} else if e.Role == "" && len(e.Content) == 0 {
		return model.Message{}, false
	}

	role := model.Role(data.Role)
	switch role {
	case model.RoleUser, model.RoleAssistant, model.RoleSystem, model.RoleTool:
	default:
		role = model.RoleUser
	}

	parts := contentParts(data.Content)
	for _, tc := range data.ToolCalls {
		name := tc.Function.Name
		if name == "" {
			name = "unknown"
		}
		parts = append(parts, model.ToolCallPart{
			ToolName: name,
			ToolID:   tc.ID,
			Input:    tc.Function.Arguments,
		})
	}
	if len(parts) == 0 {
		return model.Message{}, false
	}

	var usage *model.TokenUsage
	if data.Usage != nil {
		usage = &model.TokenUsage{
			InputTokens:  firstNonZero(data.Usage.InputTokens, data.Usage.PromptTokens),
			OutputTokens: firstNonZero(data.Usage.OutputTokens, data.Usage.CompletionTokens),
		}
	}

	id := e.ID
	if id == "" {
		id = model.NewID()
	}
	return model.Message{
		ID:        id,
		Role:      role,
		Timestamp: adapter.ParseTimestamp(e.Timestamp),
		Model:     data.Model,
		Parts:     parts,
		Usage:     usage,
	}, true
}

// contentParts decodes the content union: a bare string, or a list of
// strings and typed blocks.
func contentParts(raw json.RawMessage) model.PartList {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return nil
		}
		return model.PartList{model.TextPart{Content: s}}
	}

	var list []json.RawMessage
	if json.Unmarshal(raw, &list) != nil {
		return nil
	}
	var parts model.PartList
	for _, item := range list {
		var text string
		if json.Unmarshal(item, &text) == nil {
			parts = append(parts, model.TextPart{Content: text})
			continue
		}
		var block contentBlock
		if json.Unmarshal(item, &block) != nil {
			continue
		}
		switch {
		case block.Text != nil:
			parts = append(parts, model.TextPart{Content: *block.Text})
		case len(block.Tool) > 0 || strings.Contains(block.Type, "tool_use"):
			name := block.Name
			if name == "" {
				name = "unknown"
			}
			parts = append(parts, model.ToolCallPart{
				ToolName: name,
				ToolID:   block.ID,
				Input:    block.Input,
			})
		}
	}
	return parts
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}
