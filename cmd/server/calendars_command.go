package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/flight-logger/backend/internal/storage/models"
)

func newCalendarsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List configured calendar sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			calendars, err := a.sources.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(calendars) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No calendars configured")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCalendars(calendars, time.Now()))
			return nil
		},
	}
}

func renderCalendars(calendars []models.CalendarSource, now time.Time) string {
	headers := []string{"ID", "User", "Name", "Enabled", "Auto", "Every", "Status", "Last sync"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

	rows := make([][]string, 0, len(calendars))
	for _, c := range calendars {
		last := "never"
		if c.LastSyncAt != nil {
			last = humanize.RelTime(*c.LastSyncAt, now, "ago", "from now")
		}
		status := c.SyncStatus
		if c.SyncError != nil {
			status += ": " + *c.SyncError
		}
		rows = append(rows, []string{
			c.ID,
			c.UserID,
			c.Name,
			yesNo(c.Enabled),
			yesNo(c.AutoImport),
			strconv.Itoa(c.SyncIntervalMin) + "m",
			status,
			last,
		})
	}
	return renderTable(headers, rows, aligns)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
