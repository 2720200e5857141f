// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/flight-logger/backend/internal/api/middleware"
	"github.com/flight-logger/backend/internal/calendar"
	"github.com/flight-logger/backend/internal/storage"
	"github.com/flight-logger/backend/internal/storage/models"
	"github.com/flight-logger/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{Status: status, DBConnected: dbConnected})
	}
}

// StatusResponse represents the per-user system status.
type StatusResponse struct {
	CalendarsCount     int        `json:"calendars_count"`
	CalendarsWithError int        `json:"calendars_with_error"`
	PendingReviewCount int        `json:"pending_review_count"`
	WebSocketClients   int        `json:"websocket_clients"`
	NextSyncAt         *time.Time `json:"next_sync_at,omitempty"`
}

// Status returns a handler that summarizes the user's ingestion state.
func Status(sources *storage.CalendarSourceRepository, pending *storage.PendingFlightRepository, hub *websocket.Hub, scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middleware.UserID(ctx)

		calendars, err := sources.ListByUser(ctx, userID)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}

		page, err := pending.ListByUser(ctx, userID, storage.PendingFilterReviewable, 1, 0)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}

		resp := StatusResponse{
			CalendarsCount:     len(calendars),
			PendingReviewCount: page.Total,
			WebSocketClients:   hub.ClientCount(),
		}
		for _, cal := range calendars {
			if cal.SyncStatus == models.SyncStatusError {
				resp.CalendarsWithError++
			}
			if scheduler == nil {
				continue
			}
			if next := scheduler.GetNextRun(cal.ID); next != nil && (resp.NextSyncAt == nil || next.Before(*resp.NextSyncAt)) {
				resp.NextSyncAt = next
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
