// Package opencode parses OpenCode sessions from its storage file tree:
// session/<project>/ses_*.json, message/<session-id>/msg_*.json and
// part/<message-id>/prt_*.json, all with millisecond timestamps.
package opencode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/model"
)

// Adapter reads OpenCode storage.
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

func (a *Adapter) Name() string        { return "opencode" }
func (a *Adapter) DisplayName() string { return "OpenCode" }
func (a *Adapter) Root() string        { return a.root }

func (a *Adapter) DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "opencode", "storage")
}

func (a *Adapter) Available() bool {
	info, err := os.Stat(a.root)
	return err == nil && info.IsDir()
}

// ListSessions reads session metadata files. Timestamps come from the
// session record itself rather than file mtimes.
func (a *Adapter) ListSessions(since time.Time) ([]model.SessionRef, error) {
	sessionBase := filepath.Join(a.root, "session")
	dirs, err := os.ReadDir(sessionBase)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	var refs []model.SessionRef
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(sessionBase, dir.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if !strings.HasPrefix(name, "ses_") || !strings.HasSuffix(name, ".json") {
				continue
			}
			path := filepath.Join(sessionBase, dir.Name(), name)
			var sf sessionFile
			if err := readJSON(path, &sf); err != nil {
				continue
			}
			if sf.Time.Created == 0 || sf.Time.Updated == 0 {
				continue
			}
			updated := time.UnixMilli(sf.Time.Updated).UTC()
			if !since.IsZero() && !updated.After(since) {
				continue
			}
			id := sf.ID
			if id == "" {
				id = strings.TrimSuffix(name, ".json")
			}
			refs = append(refs, model.SessionRef{
				ID:        id,
				Path:      path,
				CreatedAt: time.UnixMilli(sf.Time.Created).UTC(),
				UpdatedAt: updated,
			})
		}
	}
	adapter.SortNewestFirst(refs)
	return refs, nil
}

// ParseSession loads the session record plus its message and part files.
func (a *Adapter) ParseSession(ref model.SessionRef) (*model.UnifiedSession, error) {
	var sf sessionFile
	if err := readJSON(ref.Path, &sf); err != nil {
		return nil, fmt.Errorf("load session %s: %w", ref.ID, err)
	}

	sessionID := sf.ID
	if sessionID == "" {
		sessionID = ref.ID
	}

	msgs := a.loadMessages(sessionID)
	turns := model.BuildTurns(msgs)

	var durationMS int64
	if sf.Time.Created != 0 && sf.Time.Updated != 0 {
		durationMS = sf.Time.Updated - sf.Time.Created
	}

	return &model.UnifiedSession{
		ID:          model.NewID(),
		Source:      model.SourceOpenCode,
		SourceID:    sessionID,
		SourcePath:  ref.Path,
		Title:       sf.Title,
		ProjectPath: sf.Directory,
		ProjectName: projectName(sf.Directory),
		CreatedAt:   ref.CreatedAt,
		UpdatedAt:   ref.UpdatedAt,
		DurationMS:  durationMS,
		Stats:       model.ComputeStats(turns),
		Models:      model.AggregateModelUsage(turns, "opencode"),
		Turns:       turns,
	}, nil
}

func projectName(path string) string {
	if path == "" {
		return ""
	}
	return model.ExtractProjectName(path)
}

// loadMessages reads and linearizes a session's messages by creation time.
// Unreadable individual files are skipped.
func (a *Adapter) loadMessages(sessionID string) []model.Message {
	msgDir := filepath.Join(a.root, "message", sessionID)
	files, err := os.ReadDir(msgDir)
	if err != nil {
		return nil
	}

	var raws []messageFile
	for _, f := range files {
		name := f.Name()
		if !strings.HasPrefix(name, "msg_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		var mf messageFile
		if err := readJSON(filepath.Join(msgDir, name), &mf); err != nil {
			continue
		}
		if mf.ID == "" {
			mf.ID = strings.TrimSuffix(name, ".json")
		}
		raws = append(raws, mf)
	}
	sort.Slice(raws, func(i, j int) bool { return raws[i].Time.Created < raws[j].Time.Created })

	msgs := make([]model.Message, 0, len(raws))
	for _, mf := range raws {
		msgs = append(msgs, a.convertMessage(mf))
	}
	return msgs
}

func (a *Adapter) convertMessage(mf messageFile) model.Message {
	role := model.Role(mf.Role)
	switch role {
	case model.RoleUser, model.RoleAssistant, model.RoleSystem, model.RoleTool:
	default:
		role = model.RoleUser
	}

	var modelID string
	if mf.ProviderID != "" && mf.ModelID != "" {
		modelID = mf.ProviderID + "/" + mf.ModelID
	}

	var usage *model.TokenUsage
	if mf.Tokens != nil {
		usage = &model.TokenUsage{
			InputTokens:  mf.Tokens.Input,
			OutputTokens: mf.Tokens.Output,
			CachedTokens: mf.Tokens.Cache.Read,
		}
	}

	return model.Message{
		ID:        mf.ID,
		Role:      role,
		Timestamp: time.UnixMilli(mf.Time.Created).UTC(),
		Model:     modelID,
		Parts:     a.loadParts(mf.ID),
		Usage:     usage,
	}
}

// loadParts expands a message's part files. A tool part becomes a tool
// call plus, when output exists, a matching tool result.
func (a *Adapter) loadParts(messageID string) model.PartList {
	partDir := filepath.Join(a.root, "part", messageID)
	files, err := os.ReadDir(partDir)
	if err != nil {
		return nil
	}

	var parts model.PartList
	for _, f := range files {
		name := f.Name()
		if !strings.HasPrefix(name, "prt_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		var pf partFile
		if err := readJSON(filepath.Join(partDir, name), &pf); err != nil {
			continue
		}
		switch pf.Type {
		case "text":
			if pf.Text != "" {
				parts = append(parts, model.TextPart{Content: pf.Text})
			}
		case "tool":
			tool := pf.Tool
			if tool == "" {
				tool = "unknown"
			}
			callID := pf.CallID
			if callID == "" {
				callID = pf.ID
			}
			var input json.RawMessage
			if pf.State != nil {
				input = pf.State.Input
			}
			parts = append(parts, model.ToolCallPart{ToolName: tool, ToolID: callID, Input: input})

			if pf.State != nil && len(pf.State.Output) > 0 {
				parts = append(parts, model.ToolResultPart{
					ToolID:  callID,
					Output:  outputString(pf.State.Output),
					IsError: pf.State.Status == "error",
				})
			}
		}
	}
	return parts
}

// outputString renders a tool output, unquoting plain strings and keeping
// structured values as JSON.
func outputString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
