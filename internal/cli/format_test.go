package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"24h", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := parseDuration(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("parseDuration(%q) = %v, %v", tc.in, got, err)
		}
	}

	for _, bad := range []string{"", "7", "d7", "7 d", "7m", "-1d"} {
		if _, err := parseDuration(bad); err == nil {
			t.Errorf("parseDuration(%q) should fail", bad)
		}
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Now()
	cases := []struct {
		age  time.Duration
		want string
	}{
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{3 * 7 * 24 * time.Hour, "3w ago"},
	}
	for _, tc := range cases {
		if got := formatAge(now.Add(-tc.age)); got != tc.want {
			t.Errorf("formatAge(-%v) = %q, want %q", tc.age, got, tc.want)
		}
	}
}

func TestFormatTokens(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1500, "1.5k"},
		{2300000, "2.3M"},
	}
	for _, tc := range cases {
		if got := formatTokens(tc.in); got != tc.want {
			t.Errorf("formatTokens(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPrintSessionsTable(t *testing.T) {
	var buf strings.Builder
	printSessionsTable(&buf, nil)
	if !strings.Contains(buf.String(), "No sessions found") {
		t.Errorf("empty table output = %q", buf.String())
	}

	buf.Reset()
	sessions := []*model.UnifiedSession{{
		ID:        "0195f0ab-1111-7000-8000-000000000001",
		Source:    model.SourceClaude,
		Title:     "fix the parser",
		CreatedAt: time.Now().Add(-time.Hour),
	}}
	printSessionsTable(&buf, sessions)
	out := buf.String()
	if !strings.Contains(out, "0195f0ab-111...") || !strings.Contains(out, "fix the parser") {
		t.Errorf("table output = %q", out)
	}
	if !strings.Contains(out, "1h ago") {
		t.Errorf("table output missing age: %q", out)
	}
}
