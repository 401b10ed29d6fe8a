// Package ampcode parses captured Amp CLI stream-JSON recordings.
//
// Amp keeps sessions server side, so there is nothing to read in place.
// Users capture sessions into a local cache directory:
//
//	amp --execute "prompt" --stream-json > ~/.sagg/cache/ampcode/session.jsonl
//
// Each file is one session in the Anthropic stream-JSON dialect.
package ampcode

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

// Adapter reads captured Amp session files.
type Adapter struct {
	root string
}

// New creates the adapter. An empty root uses the default cache location.
func New(root string) *Adapter {
	a := &Adapter{root: root}
	if a.root == "" {
		a.root = a.DefaultPath()
	}
	return a
}

func (a *Adapter) Name() string        { return "ampcode" }
func (a *Adapter) DisplayName() string { return "Ampcode" }
func (a *Adapter) Root() string        { return a.root }

func (a *Adapter) DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sagg", "cache", "ampcode")
}

// Available probes for the amp binary, stored credentials, or captured
// sessions in the cache.
func (a *Adapter) Available() bool {
	if _, err := exec.LookPath("amp"); err == nil {
		return true
	}
	home, _ := os.UserHomeDir()
	if _, err := os.Stat(filepath.Join(home, ".local", "share", "amp", "secrets.json")); err == nil {
		return true
	}
	matches, _ := filepath.Glob(filepath.Join(a.root, "*.jsonl"))
	return len(matches) > 0
}

// ListSessions scans the cache directory. Stream JSON carries no
// per-message timestamps, so file mtimes stand in for both created and
// updated times.
func (a *Adapter) ListSessions(since time.Time) ([]model.SessionRef, error) {
	if _, err := os.Stat(a.root); err != nil {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(a.root, "*.jsonl"))
	if err != nil {
		return nil, err
	}

	var refs []model.SessionRef
	for _, path := range matches {
		events := loadEvents(path)
		if len(events) == 0 {
			continue
		}
		ref, ok := adapter.StatRef(sessionID(events, path), path, since)
		if !ok {
			continue
		}
		refs = append(refs, ref)
	}
	adapter.SortNewestFirst(refs)
	return refs, nil
}

// ParseSession converts one captured stream to the canonical model.
func (a *Adapter) ParseSession(ref model.SessionRef) (*model.UnifiedSession, error) {
	events := loadEvents(ref.Path)
	if len(events) == 0 {
		return nil, fmt.Errorf("ampcode session %s: no stream events in %s", ref.ID, ref.Path)
	}

	var initEvent, resultEvent *event
	for i := range events {
		switch {
		case events[i].Type == "system" && events[i].Subtype == "init":
			if initEvent == nil {
				initEvent = &events[i]
			}
		case events[i].Type == "result":
			if resultEvent == nil {
				resultEvent = &events[i]
			}
		}
	}

	turns := buildTurns(events, ref.CreatedAt)
	stats := model.ComputeStats(turns)

	var durationMS int64
	if resultEvent != nil {
		durationMS = resultEvent.DurationMS
		// The result event carries authoritative totals when per-message
		// usage was absent from the stream.
		if resultEvent.Usage != nil {
			if stats.InputTokens == 0 {
				stats.InputTokens = resultEvent.Usage.InputTokens
			}
			if stats.OutputTokens == 0 {
				stats.OutputTokens = resultEvent.Usage.OutputTokens
			}
		}
	}

	var cwd string
	if initEvent != nil {
		cwd = initEvent.CWD
	}
	projectName := ""
	if cwd != "" {
		projectName = model.ExtractProjectName(cwd)
	}

	return &model.UnifiedSession{
		ID:          model.NewID(),
		Source:      model.SourceAmpcode,
		SourceID:    sessionID(events, ref.Path),
		SourcePath:  ref.Path,
		Title:       adapter.TitleFromTurns(turns),
		ProjectPath: cwd,
		ProjectName: projectName,
		CreatedAt:   ref.CreatedAt,
		UpdatedAt:   ref.UpdatedAt,
		DurationMS:  durationMS,
		Stats:       stats,
		Models:      buildModelUsage(events, resultEvent),
		Turns:       turns,
	}, nil
}

// loadEvents reads a stream file, skipping lines that do not decode.
// Returns nil when the file is unreadable.
func loadEvents(path string) []event {
	var events []event
	err := adapter.ScanLines(path, func(line []byte) error {
		var ev event
		if json.Unmarshal(line, &ev) == nil {
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return events
}

// sessionID prefers the T-{uuid} id announced in the stream, falling back
// to the file name.
func sessionID(events []event, path string) string {
	for _, ev := range events {
		if ev.SessionID != "" {
			return ev.SessionID
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// buildTurns converts the user and assistant events. Every message is
// stamped with the session time since the stream has no timestamps.
func buildTurns(events []event, ts time.Time) []model.Turn {
	var b model.TurnBuilder
	counter := 0
	for _, ev := range events {
		var msg model.Message
		switch ev.Type {
		case "user":
			msg = userMessage(ev, counter, ts)
		case "assistant":
			msg = assistantMessage(ev, counter, ts)
		default:
			continue
		}
		b.Add(msg)
		counter++
	}
	return b.Finish()
}

// userMessage converts a user event. In the stream dialect user events
// carry both typed prompts and the tool results fed back to the model.
func userMessage(ev event, order int, ts time.Time) model.Message {
	var parts model.PartList
	if ev.Message != nil {
		for _, item := range ev.Message.Content {
			var s string
			if json.Unmarshal(item, &s) == nil {
				parts = append(parts, model.TextPart{Content: s})
				continue
			}
			var block contentBlock
			if json.Unmarshal(item, &block) != nil || block.Type != "tool_result" {
				continue
			}
			toolID := block.ToolUseID
			if toolID == "" {
				toolID = "unknown"
			}
			parts = append(parts, model.ToolResultPart{
				ToolID:  toolID,
				Output:  resultText(block.Content),
				IsError: block.IsError,
			})
		}
	}
	return model.Message{
		ID:        fmt.Sprintf("msg_%d", order),
		Role:      model.RoleUser,
		Timestamp: ts,
		Parts:     parts,
	}
}

func assistantMessage(ev event, order int, ts time.Time) model.Message {
	var parts model.PartList
	var usage *model.TokenUsage
	if ev.Message != nil {
		for _, item := range ev.Message.Content {
			var block contentBlock
			if json.Unmarshal(item, &block) != nil {
				continue
			}
			switch block.Type {
			case "text":
				if block.Text != "" {
					parts = append(parts, model.TextPart{Content: block.Text})
				}
			case "thinking":
				if block.Thinking != "" {
					parts = append(parts, model.TextPart{Content: "[thinking] " + block.Thinking})
				}
			case "tool_use":
				name := block.Name
				if name == "" {
					name = "unknown"
				}
				toolID := block.ID
				if toolID == "" {
					toolID = "unknown"
				}
				parts = append(parts, model.ToolCallPart{
					ToolName: name,
					ToolID:   toolID,
					Input:    block.Input,
				})
			}
		}
		if u := ev.Message.Usage; u != nil {
			usage = &model.TokenUsage{
				InputTokens:  u.InputTokens,
				OutputTokens: u.OutputTokens,
				CachedTokens: u.CacheReadInputTokens,
			}
		}
	}
	return model.Message{
		ID:        fmt.Sprintf("msg_%d", order),
		Role:      model.RoleAssistant,
		Timestamp: ts,
		Parts:     parts,
		Usage:     usage,
	}
}

// resultText flattens tool result content, which is either a string or a
// list of text blocks.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []contentBlock
	if json.Unmarshal(raw, &blocks) == nil {
		texts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			texts = append(texts, b.Text)
		}
		return strings.Join(texts, "\n")
	}
	return string(raw)
}

// buildModelUsage rolls everything up under Amp's default model, since the
// stream never names one per message. The result event's totals win over
// summed per-message usage.
func buildModelUsage(events []event, resultEvent *event) []model.ModelUsage {
	count := 0
	totalIn, totalOut := 0, 0
	for _, ev := range events {
		if ev.Type != "assistant" {
			continue
		}
		count++
		if ev.Message != nil && ev.Message.Usage != nil {
			totalIn += ev.Message.Usage.InputTokens
			totalOut += ev.Message.Usage.OutputTokens
		}
	}
	if resultEvent != nil && resultEvent.Usage != nil {
		totalIn = resultEvent.Usage.InputTokens
		totalOut = resultEvent.Usage.OutputTokens
	}
	if count == 0 {
		return nil
	}
	return []model.ModelUsage{{
		ModelID:      "anthropic/claude-sonnet-4",
		Provider:     "anthropic",
		MessageCount: count,
		InputTokens:  totalIn,
		OutputTokens: totalOut,
	}}
}
