package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/model"
	"github.com/jayshah5696/sagg/internal/store"
)

// fakeAdapter serves canned sessions and records the since values it was
// listed with.
type fakeAdapter struct {
	name      string
	available bool
	refs      []model.SessionRef
	sessions  map[string]*model.UnifiedSession
	listErr   error
	parseErr  map[string]error
	listCalls []time.Time
}

func (f *fakeAdapter) Name() string        { return f.name }
func (f *fakeAdapter) DisplayName() string { return f.name }
func (f *fakeAdapter) DefaultPath() string { return "/nonexistent/" + f.name }
func (f *fakeAdapter) Root() string        { return f.DefaultPath() }
func (f *fakeAdapter) Available() bool     { return f.available }

func (f *fakeAdapter) ListSessions(since time.Time) ([]model.SessionRef, error) {
	f.listCalls = append(f.listCalls, since)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeAdapter) ParseSession(ref model.SessionRef) (*model.UnifiedSession, error) {
	if err := f.parseErr[ref.ID]; err != nil {
		return nil, err
	}
	sess, ok := f.sessions[ref.ID]
	if !ok {
		return nil, errors.New("no such session")
	}
	return sess, nil
}

func newFake(name string, ids ...string) *fakeAdapter {
	f := &fakeAdapter{
		name:      name,
		available: true,
		sessions:  make(map[string]*model.UnifiedSession),
		parseErr:  make(map[string]error),
	}
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range ids {
		ts := created.Add(time.Duration(i) * time.Minute)
		f.refs = append(f.refs, model.SessionRef{ID: id, Path: "/x/" + id, CreatedAt: ts, UpdatedAt: ts})
		f.sessions[id] = &model.UnifiedSession{
			ID:        model.NewID(),
			Source:    model.SourceTool(name),
			SourceID:  id,
			Title:     "session " + id,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
	}
	return f
}

func newTestSyncer(t *testing.T, adapters ...adapter.Adapter) (*Syncer, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "db.sqlite"), filepath.Join(dir, "sessions"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(adapter.NewRegistry(adapters...), st, log), st
}

func TestSyncOnce_ImportThenSkip(t *testing.T) {
	fake := newFake("claude", "s1", "s2", "s3")
	syncer, st := newTestSyncer(t, fake)
	ctx := context.Background()

	results, err := syncer.SyncOnce(ctx, "", false)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if r := results["claude"]; r.New != 3 || r.Skipped != 0 || r.Errors != 0 {
		t.Fatalf("first result = %+v", r)
	}
	for _, id := range []string{"s1", "s2", "s3"} {
		if ok, _ := st.Exists(model.SourceClaude, id); !ok {
			t.Errorf("session %s not stored", id)
		}
	}

	// The same sessions again: everything skips, nothing duplicates.
	results, err = syncer.SyncOnce(ctx, "", false)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if r := results["claude"]; r.New != 0 || r.Skipped != 3 || r.Errors != 0 {
		t.Fatalf("second result = %+v", r)
	}

	// Second listing used the first pass's start as watermark.
	if len(fake.listCalls) != 2 || !fake.listCalls[0].IsZero() || fake.listCalls[1].IsZero() {
		t.Errorf("listCalls = %v", fake.listCalls)
	}

	state, err := st.SyncState(model.SourceClaude)
	if err != nil || state == nil {
		t.Fatalf("SyncState: %+v, %v", state, err)
	}
	if state.SessionCount != 3 {
		t.Errorf("SessionCount = %d, want 3", state.SessionCount)
	}
}

func TestSyncOnce_DryRun(t *testing.T) {
	fake := newFake("codex", "s1", "s2")
	syncer, st := newTestSyncer(t, fake)

	results, err := syncer.SyncOnce(context.Background(), "", true)
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if r := results["codex"]; r.New != 2 {
		t.Fatalf("result = %+v", r)
	}

	if ok, _ := st.Exists(model.SourceCodex, "s1"); ok {
		t.Error("dry run stored a session")
	}
	state, _ := st.SyncState(model.SourceCodex)
	if state != nil {
		t.Errorf("dry run advanced watermark: %+v", state)
	}
}

func TestSyncOnce_ErrorsDoNotAbort(t *testing.T) {
	fake := newFake("pi", "good1", "bad", "good2")
	fake.parseErr["bad"] = errors.New("truncated file")
	syncer, st := newTestSyncer(t, fake)

	results, err := syncer.SyncOnce(context.Background(), "pi", false)
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if r := results["pi"]; r.New != 2 || r.Errors != 1 {
		t.Fatalf("result = %+v", r)
	}

	// The watermark still advances so good sessions are not re-parsed.
	state, _ := st.SyncState(model.SourceTool("pi"))
	if state == nil || state.SessionCount != 2 {
		t.Errorf("SyncState = %+v", state)
	}
}

func TestSyncOnce_ListFailure(t *testing.T) {
	fake := newFake("gemini")
	fake.listErr = errors.New("permission denied")
	syncer, _ := newTestSyncer(t, fake)

	results, err := syncer.SyncOnce(context.Background(), "", false)
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if r := results["gemini"]; r.Errors != 1 || r.New != 0 {
		t.Errorf("result = %+v", r)
	}
}

func TestSyncOnce_NamedSource(t *testing.T) {
	claude := newFake("claude", "c1")
	codex := newFake("codex", "x1")
	syncer, st := newTestSyncer(t, claude, codex)

	results, err := syncer.SyncOnce(context.Background(), "codex", false)
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if len(results) != 1 || results["codex"].New != 1 {
		t.Fatalf("results = %+v", results)
	}
	if ok, _ := st.Exists(model.SourceClaude, "c1"); ok {
		t.Error("named sync touched another source")
	}

	if _, err := syncer.SyncOnce(context.Background(), "warp", false); err == nil {
		t.Error("unknown source should error")
	}
}

func TestSyncOnce_SkipsUnavailable(t *testing.T) {
	offline := newFake("cursor", "c1")
	offline.available = false
	online := newFake("claude", "s1")
	syncer, _ := newTestSyncer(t, offline, online)

	results, err := syncer.SyncOnce(context.Background(), "", false)
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if _, ok := results["cursor"]; ok {
		t.Error("unavailable adapter was synced")
	}
	if results["claude"].New != 1 {
		t.Errorf("results = %+v", results)
	}

	if _, err := syncer.SyncOnce(context.Background(), "cursor", false); err == nil {
		t.Error("naming an unavailable source should error")
	}
}

func TestSourceForPath(t *testing.T) {
	roots := map[string]string{
		"/home/u/.claude/projects":   "claude",
		"/home/u/cursor/state.vscdb": "cursor",
	}
	cases := []struct {
		path string
		want string
	}{
		{"/home/u/.claude/projects/p1/abc.jsonl", "claude"},
		{"/home/u/.claude/projects", "claude"},
		{"/home/u/cursor/state.vscdb-wal", "cursor"},
		{"/home/u/cursor/other.db", ""},
		{"/home/u/.claude/projects-backup/x", ""},
	}
	for _, tc := range cases {
		if got := sourceForPath(roots, tc.path); got != tc.want {
			t.Errorf("sourceForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
