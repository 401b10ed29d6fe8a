package cli

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

var durationRe = regexp.MustCompile(`^(\d+)([hdw])$`)

// parseDuration reads shorthand like 7d, 2w or 24h.
func parseDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: use a form like 7d, 2w or 24h", s)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
}

// formatAge renders a timestamp as 5m ago, 2h ago, 3d ago or 1w ago.
func formatAge(t time.Time) string {
	secs := time.Since(t).Seconds()
	switch {
	case secs < 3600:
		return fmt.Sprintf("%dm ago", int(secs/60))
	case secs < 86400:
		return fmt.Sprintf("%dh ago", int(secs/3600))
	case secs < 604800:
		return fmt.Sprintf("%dd ago", int(secs/86400))
	default:
		return fmt.Sprintf("%dw ago", int(secs/604800))
	}
}

func truncateID(id string, length int) string {
	if len(id) <= length {
		return id
	}
	return id[:length] + "..."
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length]
}

func formatTokens(n int) string {
	switch {
	case n >= 1000000:
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	case n >= 1000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	default:
		return strconv.Itoa(n)
	}
}

func printSessionsTable(w io.Writer, sessions []*model.UnifiedSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tTITLE\tPROJECT\tAGE")
	for _, sess := range sessions {
		title := sess.Title
		if title == "" {
			title = "Untitled"
		}
		project := sess.ProjectName
		if project == "" {
			project = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(sess.ID, 12), sess.Source, truncate(title, 40), project, formatAge(sess.CreatedAt))
	}
	tw.Flush()
}

func printSessionDetail(w io.Writer, sess *model.UnifiedSession) {
	fmt.Fprintf(w, "Session %s\n", sess.ID)
	fmt.Fprintf(w, "  Source:   %s (%s)\n", sess.Source, sess.SourceID)
	if sess.Title != "" {
		fmt.Fprintf(w, "  Title:    %s\n", sess.Title)
	}
	if sess.ProjectName != "" {
		fmt.Fprintf(w, "  Project:  %s (%s)\n", sess.ProjectName, sess.ProjectPath)
	}
	if sess.Git != nil {
		fmt.Fprintf(w, "  Git:      %s @ %s\n", sess.Git.Branch, truncateID(sess.Git.Commit, 8))
	}
	fmt.Fprintf(w, "  Created:  %s\n", sess.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if sess.DurationMS > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", (time.Duration(sess.DurationMS) * time.Millisecond).Round(time.Second))
	}
	fmt.Fprintf(w, "  Turns:    %d (%d messages)\n", sess.Stats.TurnCount, sess.Stats.MessageCount)
	fmt.Fprintf(w, "  Tokens:   %s in / %s out\n",
		formatTokens(sess.Stats.InputTokens), formatTokens(sess.Stats.OutputTokens))
	if sess.Stats.ToolCallCount > 0 {
		fmt.Fprintf(w, "  Tools:    %d calls\n", sess.Stats.ToolCallCount)
	}
	for _, mu := range sess.Models {
		fmt.Fprintf(w, "  Model:    %s (%d messages, %s in / %s out)\n",
			mu.ModelID, mu.MessageCount, formatTokens(mu.InputTokens), formatTokens(mu.OutputTokens))
	}
	if len(sess.Stats.FilesModified) > 0 {
		fmt.Fprintf(w, "  Files:    %d modified\n", len(sess.Stats.FilesModified))
		for _, f := range sess.Stats.FilesModified {
			fmt.Fprintf(w, "    %s\n", f)
		}
	}
}
