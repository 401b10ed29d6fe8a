// Package bundle moves sessions between machines as gzip-compressed
// JSONL files: one header record, one record per session, and a footer
// whose checksum covers every preceding line.
package bundle

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jayshah5696/sagg/internal/model"
	"github.com/jayshah5696/sagg/internal/store"
)

// Version of the bundle wire format.
const Version = 1

// exportLimit caps a single export. Large enough to mean "everything".
const exportLimit = 100000

// ErrIntegrity marks a bundle whose checksum or counts do not match its
// contents.
var ErrIntegrity = errors.New("bundle integrity check failed")

// Strategy decides what happens when an imported session already exists
// under its natural key.
type Strategy string

const (
	StrategySkip    Strategy = "skip"
	StrategyReplace Strategy = "replace"
)

type header struct {
	Type         string `json:"type"`
	Version      int    `json:"version"`
	MachineID    string `json:"machine_id"`
	ExportedAt   string `json:"exported_at"`
	SessionCount int    `json:"session_count"`
}

type footer struct {
	Type         string `json:"type"`
	Checksum     string `json:"checksum"`
	SessionCount int    `json:"session_count"`
}

// sessionRecord inlines the session fields next to the type tag.
type sessionRecord struct {
	Type string `json:"type"`
	*model.UnifiedSession
}

// MachineID returns this machine's stable random identifier, creating
// and persisting one under ~/.sagg on first use.
func MachineID() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(home, ".sagg", "machine_id")

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", err
	}
	return id, nil
}

// ExportFilter narrows which sessions an export includes. Zero values
// mean no filtering.
type ExportFilter struct {
	Source  string
	Project string
	Since   time.Time
}

// Export writes matching sessions to a bundle at path and returns how
// many it wrote.
func Export(st *store.Store, path string, filter ExportFilter) (int, error) {
	sessions, err := st.List(store.ListFilter{
		Source:  model.SourceTool(filter.Source),
		Project: filter.Project,
		Since:   filter.Since,
		Limit:   exportLimit,
	})
	if err != nil {
		return 0, err
	}

	machineID, err := MachineID()
	if err != nil {
		return 0, err
	}

	lines := make([]string, 0, len(sessions)+2)
	headerJSON, err := json.Marshal(header{
		Type:         "header",
		Version:      Version,
		MachineID:    machineID,
		ExportedAt:   time.Now().UTC().Format(time.RFC3339),
		SessionCount: len(sessions),
	})
	if err != nil {
		return 0, err
	}
	lines = append(lines, string(headerJSON))

	for _, sess := range sessions {
		// List rows are metadata-only; the bundle carries full turns.
		full, err := st.Get(sess.ID)
		if err != nil {
			return 0, fmt.Errorf("loading session %s: %w", sess.ID, err)
		}
		data, err := json.Marshal(sessionRecord{Type: "session", UnifiedSession: full})
		if err != nil {
			return 0, err
		}
		lines = append(lines, string(data))
	}

	body := strings.Join(lines, "\n")
	sum := sha256.Sum256([]byte(body))
	footerJSON, err := json.Marshal(footer{
		Type:         "footer",
		Checksum:     "sha256:" + hex.EncodeToString(sum[:]),
		SessionCount: len(sessions),
	})
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	gz := gzip.NewWriter(f)
	if _, err := io.WriteString(gz, body+"\n"+string(footerJSON)+"\n"); err != nil {
		f.Close()
		return 0, err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// ImportResult tallies one import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

// Import loads sessions from a bundle into the store. The checksum is
// verified first unless force is set. Per-session failures are collected
// in the result, not fatal.
func Import(st *store.Store, path string, strategy Strategy, force bool) (*ImportResult, error) {
	if strategy != StrategySkip && strategy != StrategyReplace {
		return nil, fmt.Errorf("unknown import strategy %q", strategy)
	}
	if !force {
		if err := Verify(path); err != nil {
			return nil, err
		}
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: too few lines", ErrIntegrity)
	}

	var hdr header
	if err := json.Unmarshal([]byte(lines[0]), &hdr); err != nil || hdr.Type != "header" {
		return nil, fmt.Errorf("%w: first line is not a header", ErrIntegrity)
	}
	originMachine := hdr.MachineID
	if originMachine == "" {
		originMachine = "unknown"
	}

	result := &ImportResult{}
	for _, line := range lines[1 : len(lines)-1] {
		var rec sessionRecord
		rec.UnifiedSession = &model.UnifiedSession{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("parsing session record: %v", err))
			continue
		}
		if rec.Type != "session" {
			continue
		}
		sess := rec.UnifiedSession

		exists, err := st.Exists(sess.Source, sess.SourceID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("checking %s: %v", sess.SourceID, err))
			continue
		}
		if exists && strategy == StrategySkip {
			result.Skipped++
			continue
		}

		if err := st.SaveImported(sess, originMachine, path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("saving %s: %v", sess.SourceID, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// Verify checks a bundle's checksum and session count without touching
// any store. A nil return means the bundle is intact.
func Verify(path string) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}
	if len(lines) < 2 {
		return fmt.Errorf("%w: too few lines", ErrIntegrity)
	}

	var ftr footer
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &ftr); err != nil || ftr.Type != "footer" {
		return fmt.Errorf("%w: last line is not a footer", ErrIntegrity)
	}
	stored, ok := strings.CutPrefix(ftr.Checksum, "sha256:")
	if !ok {
		return fmt.Errorf("%w: unrecognized checksum format", ErrIntegrity)
	}

	body := strings.Join(lines[:len(lines)-1], "\n")
	sum := sha256.Sum256([]byte(body))
	if hex.EncodeToString(sum[:]) != stored {
		return fmt.Errorf("%w: checksum mismatch", ErrIntegrity)
	}
	if got := len(lines) - 2; got != ftr.SessionCount {
		return fmt.Errorf("%w: footer claims %d sessions, bundle has %d", ErrIntegrity, ftr.SessionCount, got)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n"), nil
}
