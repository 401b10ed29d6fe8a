// Package cursor parses Cursor sessions out of the state.vscdb key-value
// store. Composer metadata sits under composerData:<id> keys; depending on
// the data version the messages are inline or in bubbleId:<composerId>:<id>
// rows ordered by a header list.
package cursor

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/model"
)

// Adapter reads the Cursor state database.
type Adapter struct {
	dbPath string
}

// New creates the adapter. An empty path uses the platform default.
func New(dbPath string) *Adapter {
	a := &Adapter{dbPath: dbPath}
	if a.dbPath == "" {
		a.dbPath = a.DefaultPath()
	}
	return a
}

func (a *Adapter) Name() string        { return "cursor" }
func (a *Adapter) DisplayName() string { return "Cursor" }
func (a *Adapter) Root() string        { return a.dbPath }

func (a *Adapter) DefaultPath() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Cursor", "User", "globalStorage", "state.vscdb")
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "Cursor", "User", "globalStorage", "state.vscdb")
		}
		return filepath.Join(home, "AppData", "Roaming", "Cursor", "User", "globalStorage", "state.vscdb")
	default:
		return filepath.Join(home, ".config", "Cursor", "User", "globalStorage", "state.vscdb")
	}
}

func (a *Adapter) Available() bool {
	_, err := os.Stat(a.dbPath)
	return err == nil
}

// open connects read-only; Cursor may hold the database concurrently.
func (a *Adapter) open() (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", a.dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cursor db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(time.Second)
	return db, nil
}

// ListSessions scans composerData rows. Timestamps come from the records;
// entries without a creation time are skipped.
func (a *Adapter) ListSessions(since time.Time) ([]model.SessionRef, error) {
	if !a.Available() {
		return nil, nil
	}
	db, err := a.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT key, value FROM cursorDiskKV WHERE key LIKE 'composerData:%'")
	if err != nil {
		return nil, fmt.Errorf("query composers: %w", err)
	}
	defer rows.Close()

	var refs []model.SessionRef
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan composer row: %w", err)
		}
		if !value.Valid {
			continue
		}
		var data composerData
		if json.Unmarshal([]byte(value.String), &data) != nil {
			continue
		}
		if data.CreatedAt == 0 {
			continue
		}
		created := time.UnixMilli(data.CreatedAt).UTC()
		updated := created
		if data.LastUpdatedAt != 0 {
			updated = time.UnixMilli(data.LastUpdatedAt).UTC()
		}
		if !since.IsZero() && !updated.After(since) {
			continue
		}
		refs = append(refs, model.SessionRef{
			ID:        strings.TrimPrefix(key, "composerData:"),
			Path:      a.dbPath,
			CreatedAt: created,
			UpdatedAt: updated,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate composers: %w", err)
	}
	adapter.SortNewestFirst(refs)
	return refs, nil
}

// ParseSession loads one composer and its bubbles.
func (a *Adapter) ParseSession(ref model.SessionRef) (*model.UnifiedSession, error) {
	db, err := a.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var value string
	err = db.QueryRow("SELECT value FROM cursorDiskKV WHERE key = ?", "composerData:"+ref.ID).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", ref.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("load composer %s: %w", ref.ID, err)
	}

	var data composerData
	if err := json.Unmarshal([]byte(value), &data); err != nil {
		return nil, fmt.Errorf("decode composer %s: %w", ref.ID, err)
	}

	bubbles, err := a.loadBubbles(db, ref.ID, &data)
	if err != nil {
		return nil, err
	}
	return a.convert(ref, &data, bubbles), nil
}

// loadBubbles picks the right storage location per data version.
func (a *Adapter) loadBubbles(db *sql.DB, composerID string, data *composerData) ([]bubble, error) {
	if len(data.Conversation) > 0 {
		return data.Conversation, nil
	}

	prefix := "bubbleId:" + composerID + ":"
	rows, err := db.Query("SELECT key, value FROM cursorDiskKV WHERE key LIKE ?", prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("query bubbles: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]bubble)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan bubble row: %w", err)
		}
		var b bubble
		if json.Unmarshal([]byte(value), &b) != nil {
			continue
		}
		id := strings.TrimPrefix(key, prefix)
		if b.BubbleID == "" {
			b.BubbleID = id
		}
		byID[id] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bubbles: %w", err)
	}

	if len(data.FullConversationHeadersOnly) > 0 {
		// Header order is the conversation order; a missing bubble leaves
		// an empty placeholder so the header sequence stays intact.
		out := make([]bubble, 0, len(data.FullConversationHeadersOnly))
		for _, h := range data.FullConversationHeadersOnly {
			if b, ok := byID[h.BubbleID]; ok {
				out = append(out, b)
			} else {
				out = append(out, bubble{BubbleID: h.BubbleID, Type: h.Type})
			}
		}
		return out, nil
	}

	// No headers: order heuristically by type then id, there are no
	// reliable per-bubble timestamps.
	out := make([]bubble, 0, len(byID))
	for _, b := range byID {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].BubbleID < out[j].BubbleID
	})
	return out, nil
}

func (a *Adapter) convert(ref model.SessionRef, data *composerData, bubbles []bubble) *model.UnifiedSession {
	var msgs []model.Message
	var inputTokens, outputTokens int
	var projectPath string
	files := make(map[string]bool)

	for _, b := range bubbles {
		if b.TokenCount != nil {
			inputTokens += b.TokenCount.InputTokens
			outputTokens += b.TokenCount.OutputTokens
		}
		if b.Context != nil {
			collectFiles(b.Context, files)
			if projectPath == "" {
				projectPath = projectPathFromContext(b.Context)
			}
		}

		text := strings.TrimSpace(extractText(b))
		if text == "" {
			continue
		}
		var role model.Role
		switch b.Type {
		case 1:
			role = model.RoleUser
		case 2:
			role = model.RoleAssistant
		default:
			continue
		}
		// Bubbles carry no reliable timestamps; the session creation time
		// stands in for every message.
		msgs = append(msgs, model.Message{
			ID:        b.BubbleID,
			Role:      role,
			Timestamp: ref.CreatedAt,
			Parts:     model.PartList{model.TextPart{Content: text}},
		})
	}
	turns := model.BuildTurns(msgs)

	if data.Context != nil {
		collectFiles(data.Context, files)
		if projectPath == "" {
			projectPath = folderSelectionPath(data.Context)
		}
	}

	// Version 1 keeps token counts at the session level only.
	if inputTokens == 0 && outputTokens == 0 && len(data.TokenCount) > 0 {
		var tc tokenCount
		if json.Unmarshal(data.TokenCount, &tc) == nil {
			inputTokens, outputTokens = tc.InputTokens, tc.OutputTokens
		} else {
			var n int
			if json.Unmarshal(data.TokenCount, &n) == nil {
				outputTokens = n
			}
		}
	}

	title := data.Name
	if title == "" {
		title = extractTitle(turns)
	}

	stats := model.ComputeStats(turns)
	stats.InputTokens = inputTokens
	stats.OutputTokens = outputTokens
	stats.FilesModified = sortedKeys(files)

	sourceID := data.ComposerID
	if sourceID == "" {
		sourceID = ref.ID
	}

	return &model.UnifiedSession{
		ID:          model.NewID(),
		Source:      model.SourceCursor,
		SourceID:    sourceID,
		SourcePath:  ref.Path,
		Title:       title,
		ProjectPath: projectPath,
		ProjectName: projectName(projectPath),
		CreatedAt:   ref.CreatedAt,
		UpdatedAt:   ref.UpdatedAt,
		DurationMS:  ref.UpdatedAt.Sub(ref.CreatedAt).Milliseconds(),
		Stats:       stats,
		Turns:       turns,
	}
}

func projectName(path string) string {
	if path == "" {
		return ""
	}
	return model.ExtractProjectName(path)
}

// extractText prefers the plain text field, falling back to the Lexical
// rich text document.
func extractText(b bubble) string {
	if strings.TrimSpace(b.Text) != "" {
		return b.Text
	}
	rich := b.RichText
	if rich == "" {
		return ""
	}
	if strings.HasPrefix(rich, "{") {
		var node lexicalNode
		if json.Unmarshal([]byte(rich), &node) == nil {
			return lexicalText(&node)
		}
	}
	return rich
}

func lexicalText(node *lexicalNode) string {
	var texts []string
	var walk func(n *lexicalNode)
	walk = func(n *lexicalNode) {
		if n == nil {
			return
		}
		if n.Type == "text" && n.Text != "" {
			texts = append(texts, n.Text)
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
		walk(n.Root)
	}
	walk(node)
	return strings.Join(texts, " ")
}

func collectFiles(ctx *bubbleContext, files map[string]bool) {
	for _, sel := range ctx.FileSelections {
		switch {
		case sel.URI != nil && sel.URI.Path != "":
			files[sel.URI.Path] = true
		case sel.Path != "":
			files[sel.Path] = true
		}
	}
}

// projectPathFromContext walks up from the first selected file looking for
// a repository or package root.
func projectPathFromContext(ctx *bubbleContext) string {
	for _, sel := range ctx.FileSelections {
		var path string
		if sel.URI != nil {
			path = sel.URI.Path
		}
		if path == "" {
			path = sel.Path
		}
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		for dir != "/" && dir != "." {
			base := filepath.Base(dir)
			if base == "Documents" || base == "Users" || base == "home" {
				break
			}
			if fileExists(filepath.Join(dir, ".git")) || fileExists(filepath.Join(dir, "package.json")) {
				return dir
			}
			dir = filepath.Dir(dir)
		}
		if parent := filepath.Dir(filepath.Dir(path)); parent != "." && parent != "/" {
			return parent
		}
	}
	return ""
}

func folderSelectionPath(ctx *bubbleContext) string {
	for _, raw := range ctx.FolderSelections {
		var obj struct {
			Path string `json:"path"`
		}
		if json.Unmarshal(raw, &obj) == nil && obj.Path != "" {
			return obj.Path
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// extractTitle takes the first user text, skipping leading @ mentions.
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
				if strings.HasPrefix(text, "@") {
					for _, line := range strings.Split(text, "\n") {
						if !strings.HasPrefix(strings.TrimSpace(line), "@") {
							text = strings.TrimSpace(line)
							break
						}
					}
				}
				if text == "" {
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
