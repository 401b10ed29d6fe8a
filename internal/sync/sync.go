// Package sync pulls sessions from source tools into the store,
// incrementally via per-source watermarks and continuously via
// filesystem watching.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jayshah5696/sagg/internal/adapter"
	"github.com/jayshah5696/sagg/internal/gitctx"
	"github.com/jayshah5696/sagg/internal/model"
	"github.com/jayshah5696/sagg/internal/store"
)

// Result tallies one adapter's sync pass.
type Result struct {
	New     int
	Skipped int
	Errors  int
}

// Syncer coordinates adapters and the store.
type Syncer struct {
	registry *adapter.Registry
	store    *store.Store
	log      *slog.Logger
}

// New creates a syncer. A nil logger uses slog.Default.
func New(registry *adapter.Registry, st *store.Store, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{registry: registry, store: st, log: log}
}

// SyncOnce runs one sync pass and returns per-source results. An empty
// source syncs every available adapter; a named source must exist in the
// registry. When dryRun is set nothing is saved and watermarks do not
// advance.
func (s *Syncer) SyncOnce(ctx context.Context, source string, dryRun bool) (map[string]Result, error) {
	var adapters []adapter.Adapter
	if source != "" {
		a, ok := s.registry.Get(source)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", source)
		}
		if !a.Available() {
			return nil, fmt.Errorf("source %q is not available on this machine", source)
		}
		adapters = []adapter.Adapter{a}
	} else {
		adapters = s.registry.Available()
	}

	results := make(map[string]Result, len(adapters))
	for _, a := range adapters {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results[a.Name()] = s.syncAdapter(ctx, a, dryRun)
	}
	return results, nil
}

// syncAdapter imports everything the adapter lists past its watermark.
// Individual session failures are tallied, never fatal.
func (s *Syncer) syncAdapter(ctx context.Context, a adapter.Adapter, dryRun bool) Result {
	var res Result
	source := model.SourceTool(a.Name())
	started := time.Now()

	var since time.Time
	var prevCount int
	state, err := s.store.SyncState(source)
	if err != nil {
		s.log.Warn("reading sync state", "source", a.Name(), "error", err)
	} else if state != nil {
		since = state.LastSyncAt
		prevCount = state.SessionCount
	}

	refs, err := a.ListSessions(since)
	if err != nil {
		s.log.Warn("listing sessions", "source", a.Name(), "error", err)
		res.Errors++
		return res
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			return res
		}
		exists, err := s.store.Exists(source, ref.ID)
		if err != nil {
			s.log.Warn("checking session", "source", a.Name(), "session", ref.ID, "error", err)
			res.Errors++
			continue
		}
		if exists {
			res.Skipped++
			continue
		}

		sess, err := a.ParseSession(ref)
		if err != nil {
			s.log.Warn("parsing session", "source", a.Name(), "session", ref.ID, "error", err)
			res.Errors++
			continue
		}
		enrichGit(sess)

		if !dryRun {
			if err := s.store.Save(sess); err != nil {
				s.log.Warn("saving session", "source", a.Name(), "session", ref.ID, "error", err)
				res.Errors++
				continue
			}
		}
		res.New++
	}

	if !dryRun {
		if err := s.store.SetSyncState(source, started, prevCount+res.New); err != nil {
			s.log.Warn("recording sync state", "source", a.Name(), "error", err)
			res.Errors++
		}
	}

	s.log.Debug("sync pass complete", "source", a.Name(),
		"new", res.New, "skipped", res.Skipped, "errors", res.Errors)
	return res
}

// enrichGit fills in repository context for sessions whose adapter could
// not provide it. Best effort: no repo, no context.
func enrichGit(sess *model.UnifiedSession) {
	if sess.Git != nil || sess.ProjectPath == "" {
		return
	}
	if info := gitctx.Info(sess.ProjectPath); info != nil {
		sess.Git = &model.GitContext{
			Branch: info.Branch,
			Commit: info.Commit,
			Remote: info.Remote,
		}
	}
}
