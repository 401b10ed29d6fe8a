package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	saggsync "github.com/jayshah5696/sagg/internal/sync"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var source string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import new sessions from every available source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			syncer := saggsync.New(opts.buildRegistry(), st, nil)
			results, err := syncer.SyncOnce(cmd.Context(), source, dryRun)
			if err != nil {
				return err
			}

			var total saggsync.Result
			for name, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new, %d skipped, %d errors\n",
					name, res.New, res.Skipped, res.Errors)
				total.New += res.New
				total.Skipped += res.Skipped
				total.Errors += res.Errors
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d sessions would be imported\n", total.New)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d sessions (%d skipped, %d errors)\n",
					total.New, total.Skipped, total.Errors)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Sync a single source")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count importable sessions without saving")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously import sessions as source files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			events := make(chan saggsync.Event, 16)
			go func() {
				for ev := range events {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new, %d skipped, %d errors\n",
						ev.Source, ev.New, ev.Skipped, ev.Errors)
				}
			}()

			fmt.Fprintln(cmd.OutOrStdout(), "watching for session changes (ctrl-c to stop)")
			syncer := saggsync.New(opts.buildRegistry(), st, nil)
			err = syncer.Watch(ctx, debounce, events)
			close(events)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "Quiet period before re-syncing after a change")
	return cmd
}
