package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
	"github.com/jayshah5696/sagg/internal/store"
)

// seedStore creates a database with one claude and one codex session and
// returns its path.
func seedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db.sqlite")
	st, err := store.Open(dbPath, filepath.Join(dir, "sessions"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	created := time.Now().UTC().Add(-time.Hour)
	for _, s := range []*model.UnifiedSession{
		{ID: model.NewID(), Source: model.SourceClaude, SourceID: "c1",
			Title: "claude session", CreatedAt: created, UpdatedAt: created},
		{ID: model.NewID(), Source: model.SourceCodex, SourceID: "x1",
			Title: "codex session", CreatedAt: created, UpdatedAt: created},
	} {
		if err := st.Save(s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	return dbPath
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sagg %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestListCommand_SourceFilter(t *testing.T) {
	dbPath := seedStore(t)

	out := runCommand(t, "list", "--db", dbPath, "--source", "claude")
	if !strings.Contains(out, "claude session") {
		t.Errorf("output missing claude session: %q", out)
	}
	if strings.Contains(out, "codex session") {
		t.Errorf("source filter leaked codex session: %q", out)
	}

	out = runCommand(t, "list", "--db", dbPath)
	if !strings.Contains(out, "claude session") || !strings.Contains(out, "codex session") {
		t.Errorf("unfiltered output = %q", out)
	}
}

func TestOpenStore_RelocatedDB(t *testing.T) {
	dir := t.TempDir()
	opts := &rootOptions{dbPath: filepath.Join(dir, "db.sqlite")}

	st, err := opts.openStore()
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.Close()

	// Content logs live next to the relocated database, not in ~/.sagg.
	if got, want := st.SessionsDir(), filepath.Join(dir, "sessions"); got != want {
		t.Errorf("SessionsDir = %q, want %q", got, want)
	}
}
