package adapter

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

// maxLineSize bounds a single record line; tool outputs can be large.
const maxLineSize = 10 * 1024 * 1024

// StatRef builds a SessionRef from file metadata, applying the since
// filter. ok is false when the file is filtered out or cannot be stated.
func StatRef(id, path string, since time.Time) (ref model.SessionRef, ok bool) {
	info, err := os.Stat(path)
	if err != nil {
		return model.SessionRef{}, false
	}
	updated := info.ModTime().UTC()
	if !since.IsZero() && !updated.After(since) {
		return model.SessionRef{}, false
	}
	return model.SessionRef{
		ID:        id,
		Path:      path,
		CreatedAt: createdTime(info).UTC(),
		UpdatedAt: updated,
	}, true
}

// createdTime approximates file creation time. Birth time is not exposed
// portably, so mtime stands in; adapters that know better override
// CreatedAt from record timestamps.
func createdTime(info os.FileInfo) time.Time {
	return info.ModTime()
}

// SortNewestFirst orders refs by update time descending.
func SortNewestFirst(refs []model.SessionRef) {
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].UpdatedAt.After(refs[j].UpdatedAt)
	})
}

// ScanLines reads a file line by line, invoking fn for each non-empty
// line. An unreadable file is an error; fn decides what to do with
// individual lines.
func ScanLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

// ParseTimestamp parses an RFC3339 timestamp, tolerating a trailing Z and
// fractional seconds. A missing or unparsable value falls back to now;
// repeated parses of such a record yield different synthetic timestamps.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// TitleFromTurns takes the first user text as the session title, truncated
// at 100 characters.
func TitleFromTurns(turns []model.Turn) string {
	for _, turn := range turns {
		for _, msg := range turn.Messages {
			if msg.Role != model.RoleUser {
				continue
			}
			for _, part := range msg.Parts {
				if tp, ok := part.(model.TextPart); ok && tp.Content != "" {
					return TruncateTitle(tp.Content)
				}
			}
		}
	}
	return ""
}

// TruncateTitle caps a title at 100 characters with an ellipsis.
func TruncateTitle(s string) string {
	const max = 100
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// Duration returns the span from the first turn's start to the last
// turn's end in milliseconds, 0 when there are no turns.
func Duration(turns []model.Turn) int64 {
	if len(turns) == 0 {
		return 0
	}
	first := turns[0].StartedAt
	last := turns[len(turns)-1].EndedAt
	if last.IsZero() {
		last = turns[len(turns)-1].StartedAt
	}
	return last.Sub(first).Milliseconds()
}
