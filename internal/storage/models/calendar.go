// Package models contains the domain models for the application.
package models

import (
	"time"
)

// CalendarSource represents a user's external calendar feed (iCal URL)
// that is scanned for flights.
type CalendarSource struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	Enabled         bool       `json:"enabled"`
	AutoImport      bool       `json:"auto_import"`
	SyncIntervalMin int        `json:"sync_interval_min"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	SyncStatus      string     `json:"sync_status"`
	SyncError       *string    `json:"sync_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SyncStatus constants
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// CalendarEvent represents a parsed event from an iCal feed. It only lives
// for the duration of one sync run.
type CalendarEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
}

// SyncResult contains the results of a calendar sync operation.
type SyncResult struct {
	CalendarID              string           `json:"calendar_id"`
	CalendarName            string           `json:"calendar_name"`
	TotalEventsFound        int              `json:"total_events_found"`
	TotalFutureEvents       int              `json:"total_future_events"`
	TotalFutureFlights      int              `json:"total_future_flights"`
	NewPendingFlights       int              `json:"new_pending_flights"`
	AutoImportedFlights     int              `json:"auto_imported_flights"`
	AutoImportFailures      int              `json:"auto_import_failures"`
	SkippedAlreadyPending   int              `json:"skipped_already_pending"`
	SkippedAlreadyImported  int              `json:"skipped_already_imported"`
	SkippedRecentlyRejected int              `json:"skipped_recently_rejected"`
	FetchFailed             bool             `json:"fetch_failed"`
	Errors                  []string         `json:"errors"`
	DetectedFlights         []DetectedFlight `json:"detected_flights"`
	SyncedAt                time.Time        `json:"synced_at"`
}

// DetectedFlight is one classified candidate from a sync run.
type DetectedFlight struct {
	Candidate       ParsedFlightCandidate `json:"candidate"`
	Status          string                `json:"status"`
	PendingFlightID *string               `json:"pending_flight_id,omitempty"`
	MatchedID       *string               `json:"matched_id,omitempty"`
}

// SyncOutcome is returned by a sync trigger: either a completed result or a
// background acknowledgement.
type SyncOutcome struct {
	Result         *SyncResult `json:"result,omitempty"`
	BackgroundSync bool        `json:"background_sync"`
	Message        string      `json:"message,omitempty"`
}
