package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jayshah5696/sagg/internal/model"
	"github.com/jayshah5696/sagg/internal/store"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var source, project, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			filter := store.ListFilter{Source: model.SourceTool(source), Project: project, Limit: limit}
			if since != "" {
				d, err := parseDuration(since)
				if err != nil {
					return err
				}
				filter.Since = time.Now().Add(-d)
			}
			sessions, err := st.List(filter)
			if err != nil {
				return err
			}
			printSessionsTable(cmd.OutOrStdout(), sessions)
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Filter by source")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Filter by project name or path")
	cmd.Flags().StringVar(&since, "since", "", "Only sessions newer than a duration (7d, 2w, 24h)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum sessions to show")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := resolveSession(st, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(sess, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printSessionDetail(cmd.OutOrStdout(), sess)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across titles, projects and conversation text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.Search(args[0], limit)
			if err != nil {
				return err
			}
			printSessionsTable(cmd.OutOrStdout(), sessions)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum results")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its content log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := resolveSession(st, args[0])
			if err != nil {
				return err
			}
			if err := st.Delete(sess.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", sess.ID)
			return nil
		},
	}
}

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources and their availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTOOL\tSTATUS\tPATH")
			for _, a := range opts.buildRegistry().All() {
				status := "not found"
				if a.Available() {
					status = "available"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Name(), a.DisplayName(), status, a.Root())
			}
			return tw.Flush()
		},
	}
}

// resolveSession accepts a full id or an unambiguous prefix.
func resolveSession(st *store.Store, id string) (*model.UnifiedSession, error) {
	sess, err := st.Get(id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	all, err := st.List(store.ListFilter{Limit: 100000})
	if err != nil {
		return nil, err
	}
	var matches []*model.UnifiedSession
	for _, s := range all {
		if strings.HasPrefix(s.ID, id) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no session matches %q", id)
	case 1:
		return st.Get(matches[0].ID)
	default:
		return nil, fmt.Errorf("%q matches %d sessions, use a longer prefix", id, len(matches))
	}
}
