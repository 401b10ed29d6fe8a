package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jayshah5696/sagg/internal/bundle"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var source, project, since string

	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export sessions to a portable bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			filter := bundle.ExportFilter{Source: source, Project: project}
			if since != "" {
				d, err := parseDuration(since)
				if err != nil {
					return err
				}
				filter.Since = time.Now().Add(-d)
			}
			n, err := bundle.Export(st, args[0], filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d sessions to %s\n", n, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Only export one source")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Filter by project name or path")
	cmd.Flags().StringVar(&since, "since", "", "Only sessions newer than a duration (7d, 2w, 24h)")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var strategy string
	var force bool

	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import sessions from a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := bundle.Import(st, args[0], bundle.Strategy(strategy), force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d sessions, skipped %d\n", res.Imported, res.Skipped)
			for _, msg := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", msg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "skip", "Duplicate handling: skip or replace")
	cmd.Flags().BoolVar(&force, "force", false, "Import even when the integrity check fails")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <path>",
		Short: "Verify a bundle's integrity without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bundle.Verify(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
}
