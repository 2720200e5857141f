package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/flight-logger/backend/internal/api/middleware"
	"github.com/flight-logger/backend/internal/calendar"
	"github.com/flight-logger/backend/internal/storage"
	"github.com/flight-logger/backend/internal/storage/models"
)

// Calendar request types

type CreateCalendarRequest struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	SyncIntervalMin int    `json:"sync_interval_min"`
	AutoImport      bool   `json:"auto_import"`
}

// UpdateCalendarRequest carries a partial update; nil fields are unchanged.
type UpdateCalendarRequest struct {
	Name            *string `json:"name"`
	URL             *string `json:"url"`
	Enabled         *bool   `json:"enabled"`
	AutoImport      *bool   `json:"auto_import"`
	SyncIntervalMin *int    `json:"sync_interval_min"`
}

const minSyncIntervalMin = 5

// ListCalendars returns the user's calendar sources.
func ListCalendars(sources *storage.CalendarSourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calendars, err := sources.ListByUser(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
		if calendars == nil {
			calendars = []models.CalendarSource{}
		}
		writeJSON(w, http.StatusOK, calendars)
	}
}

// CreateCalendar adds a calendar source and schedules it.
func CreateCalendar(sources *storage.CalendarSourceRepository, scheduler *calendar.Scheduler, defaultIntervalMin int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateCalendarRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.URL = strings.TrimSpace(req.URL)
		if req.Name == "" || req.URL == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name and URL are required")
			return
		}
		if !validFeedURL(req.URL) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "URL must be an http, https or webcal address")
			return
		}

		if req.SyncIntervalMin == 0 {
			req.SyncIntervalMin = defaultIntervalMin
		}
		if req.SyncIntervalMin < minSyncIntervalMin {
			req.SyncIntervalMin = minSyncIntervalMin
		}

		cal := &models.CalendarSource{
			UserID:          middleware.UserID(r.Context()),
			Name:            req.Name,
			URL:             req.URL,
			Enabled:         true,
			AutoImport:      req.AutoImport,
			SyncIntervalMin: req.SyncIntervalMin,
		}
		if err := sources.Create(r.Context(), cal); err != nil {
			middleware.WriteServiceError(w, err)
			return
		}

		if scheduler != nil {
			scheduler.ScheduleCalendar(*cal)
		}

		writeJSON(w, http.StatusCreated, cal)
	}
}

// GetCalendar returns a single calendar source.
func GetCalendar(sources *storage.CalendarSourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal, ok := ownedCalendar(w, r, sources)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, cal)
	}
}

// UpdateCalendar applies a partial update and reschedules the source.
func UpdateCalendar(sources *storage.CalendarSourceRepository, scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal, ok := ownedCalendar(w, r, sources)
		if !ok {
			return
		}

		var req UpdateCalendarRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name cannot be empty")
				return
			}
			cal.Name = strings.TrimSpace(*req.Name)
		}
		if req.URL != nil {
			if !validFeedURL(strings.TrimSpace(*req.URL)) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "URL must be an http, https or webcal address")
				return
			}
			cal.URL = strings.TrimSpace(*req.URL)
		}
		if req.Enabled != nil {
			cal.Enabled = *req.Enabled
		}
		if req.AutoImport != nil {
			cal.AutoImport = *req.AutoImport
		}
		if req.SyncIntervalMin != nil {
			cal.SyncIntervalMin = max(*req.SyncIntervalMin, minSyncIntervalMin)
		}

		if err := sources.Update(r.Context(), cal); err != nil {
			middleware.WriteServiceError(w, err)
			return
		}

		if scheduler != nil {
			scheduler.ScheduleCalendar(*cal)
		}

		writeJSON(w, http.StatusOK, cal)
	}
}

// DeleteCalendar removes a calendar source. Flights already imported from it
// are kept.
func DeleteCalendar(sources *storage.CalendarSourceRepository, scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal, ok := ownedCalendar(w, r, sources)
		if !ok {
			return
		}

		if err := sources.Delete(r.Context(), cal.ID); err != nil {
			middleware.WriteServiceError(w, err)
			return
		}

		if scheduler != nil {
			scheduler.UnscheduleCalendar(cal.ID)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// SyncCalendar runs a sync of the calendar. With ?mode=background an
// auto-import source is synced asynchronously and only an acknowledgement
// is returned.
func SyncCalendar(sources *storage.CalendarSourceRepository, syncService *calendar.SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal, ok := ownedCalendar(w, r, sources)
		if !ok {
			return
		}

		mode := calendar.SyncModeManual
		if r.URL.Query().Get("mode") == "background" {
			mode = calendar.SyncModeBackground
		}

		outcome, err := syncService.Trigger(r.Context(), cal.ID, mode)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}

		if outcome.BackgroundSync {
			writeJSON(w, http.StatusAccepted, outcome)
			return
		}
		writeJSON(w, http.StatusOK, outcome.Result)
	}
}

// ownedCalendar loads the {id} calendar and writes a 404 unless it belongs
// to the requesting user.
func ownedCalendar(w http.ResponseWriter, r *http.Request, sources *storage.CalendarSourceRepository) (*models.CalendarSource, bool) {
	id := mux.Vars(r)["id"]

	cal, err := sources.GetByID(r.Context(), id)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return nil, false
	}
	if cal == nil || cal.UserID != middleware.UserID(r.Context()) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Calendar not found")
		return nil, false
	}
	return cal, true
}

func validFeedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "webcal":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
