package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

// Stats is the global rollup across all stored sessions.
type Stats struct {
	TotalSessions     int
	SessionsBySource  map[string]int
	TotalInputTokens  int
	TotalOutputTokens int
	TotalTurns        int
	ModelsUsed        []model.ModelUsage
	ToolsUsed         map[string]int
}

// Stats aggregates counts and token totals across every session.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{
		SessionsBySource: make(map[string]int),
		ToolsUsed:        make(map[string]int),
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&stats.TotalSessions); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := s.db.Query("SELECT source, COUNT(*) FROM sessions GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		stats.SessionsBySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var input, output, turns sql.NullInt64
	err = s.db.QueryRow(
		"SELECT SUM(input_tokens), SUM(output_tokens), SUM(turn_count) FROM sessions",
	).Scan(&input, &output, &turns)
	if err != nil {
		return nil, fmt.Errorf("sum tokens: %w", err)
	}
	stats.TotalInputTokens = int(input.Int64)
	stats.TotalOutputTokens = int(output.Int64)
	stats.TotalTurns = int(turns.Int64)

	modelRows, err := s.db.Query(`
		SELECT model_id, provider,
		       SUM(message_count), SUM(input_tokens), SUM(output_tokens)
		FROM session_models
		GROUP BY model_id, provider
		ORDER BY SUM(input_tokens) + SUM(output_tokens) DESC`)
	if err != nil {
		return nil, fmt.Errorf("aggregate models: %w", err)
	}
	defer modelRows.Close()
	for modelRows.Next() {
		var m model.ModelUsage
		if err := modelRows.Scan(&m.ModelID, &m.Provider, &m.MessageCount, &m.InputTokens, &m.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan model rollup: %w", err)
		}
		stats.ModelsUsed = append(stats.ModelsUsed, m)
	}
	if err := modelRows.Err(); err != nil {
		return nil, err
	}

	toolRows, err := s.db.Query(`
		SELECT tool_name, SUM(call_count)
		FROM session_tools
		GROUP BY tool_name
		ORDER BY SUM(call_count) DESC`)
	if err != nil {
		return nil, fmt.Errorf("aggregate tools: %w", err)
	}
	defer toolRows.Close()
	for toolRows.Next() {
		var name string
		var count int
		if err := toolRows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan tool rollup: %w", err)
		}
		stats.ToolsUsed[name] = count
	}
	return stats, toolRows.Err()
}

// DayStats is one day's activity in a SessionsByDay result.
type DayStats struct {
	Count  int
	Tokens int
}

// SessionsByDay groups session counts and token totals by UTC day,
// keyed "2006-01-02", for sessions created at or after since.
func (s *Store) SessionsByDay(since time.Time) (map[string]DayStats, error) {
	rows, err := s.db.Query(`
		SELECT date(created_at, 'unixepoch') AS day,
		       COUNT(*),
		       COALESCE(SUM(input_tokens + output_tokens), 0)
		FROM sessions
		WHERE created_at >= ?
		GROUP BY day`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("sessions by day: %w", err)
	}
	defer rows.Close()

	days := make(map[string]DayStats)
	for rows.Next() {
		var day string
		var ds DayStats
		if err := rows.Scan(&day, &ds.Count, &ds.Tokens); err != nil {
			return nil, fmt.Errorf("scan day stats: %w", err)
		}
		days[day] = ds
	}
	return days, rows.Err()
}

// SetBudget sets the token limit for a period ("daily" or "weekly").
func (s *Store) SetBudget(period string, limit int) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO budgets (period, token_limit, created_at) VALUES (?, ?, ?)",
		period, limit, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

// Budget returns the token limit for a period; ok is false when unset.
func (s *Store) Budget(period string) (limit int, ok bool, err error) {
	err = s.db.QueryRow("SELECT token_limit FROM budgets WHERE period = ?", period).Scan(&limit)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read budget: %w", err)
	}
	return limit, true, nil
}

// ClearBudget removes the budget for a period.
func (s *Store) ClearBudget(period string) error {
	if _, err := s.db.Exec("DELETE FROM budgets WHERE period = ?", period); err != nil {
		return fmt.Errorf("clear budget: %w", err)
	}
	return nil
}

// UsageForPeriod sums input+output tokens for sessions created since the
// start of the current UTC day ("daily") or since Monday of the current
// UTC week ("weekly"). Unknown periods report zero.
func (s *Store) UsageForPeriod(period string) (int, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case "daily":
	case "weekly":
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		start = start.AddDate(0, 0, -daysSinceMonday)
	default:
		return 0, nil
	}

	var total int
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(input_tokens + output_tokens), 0)
		FROM sessions
		WHERE created_at >= ?`, start.Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("usage for period: %w", err)
	}
	return total, nil
}
