package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/flight-logger/backend/internal/storage/models"
)

func newSyncCommand(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sync [calendar-id]",
		Short: "Sync one calendar, or every enabled calendar, and print the results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("pass a calendar id or --all")
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.syncService()
			ctx := cmd.Context()

			var results []models.SyncResult
			if all {
				results, err = svc.SyncAllEnabled(ctx)
			} else {
				var result *models.SyncResult
				result, err = svc.SyncCalendar(ctx, args[0])
				if result != nil {
					results = append(results, *result)
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderSyncResults(results, time.Now()))
			for _, r := range results {
				for _, msg := range r.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", r.CalendarName, msg)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Sync every enabled calendar")
	return cmd
}

func renderSyncResults(results []models.SyncResult, now time.Time) string {
	headers := []string{"Calendar", "Events", "Flights", "New", "Imported", "Failed", "Skipped", "Synced"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		skipped := r.SkippedAlreadyPending + r.SkippedAlreadyImported + r.SkippedRecentlyRejected
		synced := humanize.RelTime(r.SyncedAt, now, "ago", "from now")
		if r.FetchFailed {
			synced = "fetch failed"
		}
		rows = append(rows, []string{
			r.CalendarName,
			humanize.Comma(int64(r.TotalEventsFound)),
			strconv.Itoa(r.TotalFutureFlights),
			strconv.Itoa(r.NewPendingFlights),
			strconv.Itoa(r.AutoImportedFlights),
			strconv.Itoa(r.AutoImportFailures),
			strconv.Itoa(skipped),
			synced,
		})
	}
	return renderTable(headers, rows, aligns)
}
