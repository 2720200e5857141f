// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flight-logger/backend/internal/api/handlers"
	"github.com/flight-logger/backend/internal/api/middleware"
	"github.com/flight-logger/backend/internal/calendar"
	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/review"
	"github.com/flight-logger/backend/internal/storage"
	"github.com/flight-logger/backend/internal/websocket"
)

// Services are the dependencies of the HTTP API. Scheduler may be nil.
type Services struct {
	DB          *storage.DB
	Sources     *storage.CalendarSourceRepository
	Pending     *storage.PendingFlightRepository
	Flights     *storage.FlightRepository
	References  *storage.ReferenceRepository
	Sync        *calendar.SyncService
	Scheduler   *calendar.Scheduler
	Review      *review.Service
	Builder     *flight.Builder
	Reconciler  *flight.Reconciler
	Hub         *websocket.Hub
	Broadcaster *websocket.EventBroadcaster

	StaticDir          string
	DefaultIntervalMin int
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods("GET")

	// Everything else acts on behalf of the proxy-authenticated user.
	user := api.NewRoute().Subrouter()
	user.Use(middleware.RequireUser)

	user.HandleFunc("/status", handlers.Status(s.Sources, s.Pending, s.Hub, s.Scheduler)).Methods("GET")

	// WebSocket endpoint
	user.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")

	// Calendar endpoints
	user.HandleFunc("/calendars", handlers.ListCalendars(s.Sources)).Methods("GET")
	user.HandleFunc("/calendars", handlers.CreateCalendar(s.Sources, s.Scheduler, s.DefaultIntervalMin)).Methods("POST")
	user.HandleFunc("/calendars/{id}", handlers.GetCalendar(s.Sources)).Methods("GET")
	user.HandleFunc("/calendars/{id}", handlers.UpdateCalendar(s.Sources, s.Scheduler)).Methods("PATCH")
	user.HandleFunc("/calendars/{id}", handlers.DeleteCalendar(s.Sources, s.Scheduler)).Methods("DELETE")
	user.HandleFunc("/calendars/{id}/sync", handlers.SyncCalendar(s.Sources, s.Sync)).Methods("POST")

	// Pending flight review endpoints
	user.HandleFunc("/pending-flights", handlers.ListPendingFlights(s.Pending)).Methods("GET")
	user.HandleFunc("/pending-flights/bulk-approve", handlers.BulkApprovePendingFlights(s.Review)).Methods("POST")
	user.HandleFunc("/pending-flights/bulk-reject", handlers.BulkRejectPendingFlights(s.Review)).Methods("POST")
	user.HandleFunc("/pending-flights/{id}/approve", handlers.ApprovePendingFlight(s.Review)).Methods("POST")
	user.HandleFunc("/pending-flights/{id}/reject", handlers.RejectPendingFlight(s.Review)).Methods("POST")
	user.HandleFunc("/pending-flights/{id}/restore", handlers.RestorePendingFlight(s.Review)).Methods("POST")

	// Flight log endpoints
	user.HandleFunc("/flights", handlers.ListFlights(s.Flights)).Methods("GET")
	user.HandleFunc("/airframes/{id}/tracked-flights",
		handlers.IngestTrackedFlight(s.References, s.Flights, s.Builder, s.Reconciler, s.Broadcaster)).Methods("POST")

	// Serve static frontend files
	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
