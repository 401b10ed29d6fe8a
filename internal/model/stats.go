package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// ComputeStats derives session statistics from turns. Stats are always
// recomputed from turns, never carried forward.
func ComputeStats(turns []Turn) SessionStats {
	stats := SessionStats{TurnCount: len(turns)}
	seen := make(map[string]bool)
	for _, turn := range turns {
		stats.MessageCount += len(turn.Messages)
		for _, msg := range turn.Messages {
			if msg.Usage != nil {
				stats.InputTokens += msg.Usage.InputTokens
				stats.OutputTokens += msg.Usage.OutputTokens
			}
			for _, part := range msg.Parts {
				switch p := part.(type) {
				case ToolCallPart:
					stats.ToolCallCount++
					if path := editedFilePath(p); path != "" && !seen[path] {
						seen[path] = true
						stats.FilesModified = append(stats.FilesModified, path)
					}
				case FileChangePart:
					if p.Path != "" && !seen[p.Path] {
						seen[p.Path] = true
						stats.FilesModified = append(stats.FilesModified, p.Path)
					}
				}
			}
		}
	}
	sort.Strings(stats.FilesModified)
	return stats
}

// editedFilePath pulls the target path out of a file-editing tool call.
func editedFilePath(tc ToolCallPart) string {
	switch tc.ToolName {
	case "Edit", "Write", "MultiEdit", "NotebookEdit", "edit", "write":
	default:
		return ""
	}
	var input struct {
		FilePath      string `json:"filePath"`
		FilePathSnake string `json:"file_path"`
		NotebookPath  string `json:"notebook_path"`
	}
	if len(tc.Input) == 0 || json.Unmarshal(tc.Input, &input) != nil {
		return ""
	}
	for _, p := range []string{input.FilePath, input.FilePathSnake, input.NotebookPath} {
		if p != "" {
			return p
		}
	}
	return ""
}

// AggregateModelUsage rolls up per-message usage by model id. Only messages
// carrying both a model and usage counters contribute. A model id without a
// provider prefix is attributed to defaultProvider. Results are ordered by
// first appearance.
func AggregateModelUsage(turns []Turn, defaultProvider string) []ModelUsage {
	byModel := make(map[string]*ModelUsage)
	var order []string
	for _, turn := range turns {
		for _, msg := range turn.Messages {
			if msg.Model == "" || msg.Usage == nil {
				continue
			}
			mu, ok := byModel[msg.Model]
			if !ok {
				provider := defaultProvider
				if i := strings.IndexByte(msg.Model, '/'); i > 0 {
					provider = msg.Model[:i]
				}
				mu = &ModelUsage{ModelID: msg.Model, Provider: provider}
				byModel[msg.Model] = mu
				order = append(order, msg.Model)
			}
			mu.MessageCount++
			mu.InputTokens += msg.Usage.InputTokens
			mu.OutputTokens += msg.Usage.OutputTokens
		}
	}
	out := make([]ModelUsage, 0, len(order))
	for _, id := range order {
		out = append(out, *byModel[id])
	}
	return out
}
