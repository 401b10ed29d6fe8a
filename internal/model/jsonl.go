package model

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// contentLine is one record of a session's content log. Turn id and index
// are recorded alongside each message so read-back reproduces the exact
// segmentation the adapter chose at parse time.
type contentLine struct {
	TurnID    string `json:"turn_id,omitempty"`
	TurnIndex *int   `json:"turn_index,omitempty"`
	Message
}

// TurnsToJSONL serializes turns to the content log format, one message per
// line.
func TurnsToJSONL(turns []Turn) ([]byte, error) {
	var buf bytes.Buffer
	for _, turn := range turns {
		idx := turn.Index
		for _, msg := range turn.Messages {
			line := contentLine{TurnID: turn.ID, TurnIndex: &idx, Message: msg}
			b, err := json.Marshal(line)
			if err != nil {
				return nil, fmt.Errorf("marshal message %s: %w", msg.ID, err)
			}
			buf.Write(b)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// TurnsFromJSONL rebuilds turns from a content log. Lines carrying turn
// metadata are grouped by their recorded index; logs written before the
// metadata existed fall back to generic user-boundary regrouping, which
// guarantees message order but not the original segmentation.
func TurnsFromJSONL(data []byte) ([]Turn, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var lines []contentLine
	tagged := true
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var line contentLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return nil, fmt.Errorf("decode content line: %w", err)
		}
		if line.TurnIndex == nil {
			tagged = false
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan content log: %w", err)
	}

	if !tagged {
		msgs := make([]Message, 0, len(lines))
		for _, l := range lines {
			msgs = append(msgs, l.Message)
		}
		return BuildTurns(msgs), nil
	}

	var turns []Turn
	for _, l := range lines {
		idx := *l.TurnIndex
		if len(turns) == 0 || turns[len(turns)-1].Index != idx {
			turns = append(turns, Turn{ID: l.TurnID, Index: idx})
		}
		t := &turns[len(turns)-1]
		t.Messages = append(t.Messages, l.Message)
		if t.StartedAt.IsZero() {
			t.StartedAt = l.Timestamp
		}
		t.EndedAt = l.Timestamp
	}
	return turns, nil
}
