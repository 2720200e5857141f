package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flight-logger/backend/internal/api/middleware"
	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/logger"
	"github.com/flight-logger/backend/internal/storage"
	"github.com/flight-logger/backend/internal/storage/models"
	"github.com/flight-logger/backend/internal/websocket"
)

// TrackedFlightRequest is an externally tracked flight of an airframe.
type TrackedFlightRequest struct {
	AirlineCode      *string    `json:"airline_code"`
	FlightNumber     *int       `json:"flight_number"`
	DepartureAirport string     `json:"departure_airport"`
	ArrivalAirport   string     `json:"arrival_airport"`
	OutTime          time.Time  `json:"out_time"`
	InTime           time.Time  `json:"in_time"`
	OutTimeActual    *time.Time `json:"out_time_actual"`
	InTimeActual     *time.Time `json:"in_time_actual"`
}

// TrackedFlightResponse reports the stored row and the reconciliation that
// followed. Removed may include the new row itself when a user flight
// already covers it.
type TrackedFlightResponse struct {
	Flight  *models.Flight `json:"flight"`
	Removed int            `json:"removed"`
}

// ListFlights returns the user's flight log, most recent first.
func ListFlights(flights *storage.FlightRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, err := queryInt(q.Get("limit"), defaultPageLimit)
		if err != nil || limit <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "limit must be a positive integer")
			return
		}
		offset, err := queryInt(q.Get("offset"), 0)
		if err != nil || offset < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "offset must be a non-negative integer")
			return
		}

		list, err := flights.ListByUser(r.Context(), middleware.UserID(r.Context()), min(limit, maxPageLimit), offset)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
		if list == nil {
			list = []models.Flight{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// IngestTrackedFlight stores a tracked flight for the {id} airframe and
// reconciles the airframe's tracked rows against user flights.
func IngestTrackedFlight(
	refs *storage.ReferenceRepository,
	flights *storage.FlightRepository,
	builder *flight.Builder,
	reconciler *flight.Reconciler,
	broadcaster *websocket.EventBroadcaster,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		airframe, err := refs.GetAirframe(ctx, mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
		if airframe == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Airframe not found")
			return
		}

		var req TrackedFlightRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		candidate := models.ParsedFlightCandidate{
			AirlineCode:      req.AirlineCode,
			FlightNumber:     req.FlightNumber,
			DepartureAirport: &req.DepartureAirport,
			ArrivalAirport:   &req.ArrivalAirport,
		}
		if !req.OutTime.IsZero() {
			candidate.OutTime = &req.OutTime
		}
		if !req.InTime.IsZero() {
			candidate.InTime = &req.InTime
		}

		f, err := builder.Build(ctx, "", candidate, nil)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
		f.UserID = nil
		f.AirframeID = &airframe.ID
		f.AircraftTypeID = airframe.AircraftTypeID
		f.OutTimeActual = req.OutTimeActual
		f.InTimeActual = req.InTimeActual

		if err := flights.Create(ctx, f); err != nil {
			middleware.WriteServiceError(w, err)
			return
		}

		removed, err := reconciler.Reconcile(ctx, airframe.ID, flight.WindowOf(f))
		if err != nil {
			logger.Warn("tracked flight reconciliation failed", "airframe_id", airframe.ID, "error", err)
		}
		if broadcaster != nil {
			broadcaster.BroadcastTrackedReconciled(airframe.ID, removed)
		}

		writeJSON(w, http.StatusCreated, TrackedFlightResponse{Flight: f, Removed: removed})
	}
}
