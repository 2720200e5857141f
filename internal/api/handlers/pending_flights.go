package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flight-logger/backend/internal/api/middleware"
	"github.com/flight-logger/backend/internal/review"
	"github.com/flight-logger/backend/internal/storage"
	"github.com/flight-logger/backend/internal/storage/models"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	maxBulkIDs       = 500
)

// BulkRequest lists the pending flight ids of a bulk operation.
type BulkRequest struct {
	IDs []string `json:"ids"`
}

// ListPendingFlights returns one page of the user's pending flights.
// ?status selects reviewable (default), rejected, auto_imported, or all.
func ListPendingFlights(pending *storage.PendingFlightRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, err := queryInt(q.Get("limit"), defaultPageLimit)
		if err != nil || limit <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(limit, maxPageLimit)

		offset, err := queryInt(q.Get("offset"), 0)
		if err != nil || offset < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "offset must be a non-negative integer")
			return
		}

		status := q.Get("status")
		switch status {
		case storage.PendingFilterReviewable, storage.PendingFilterRejected,
			storage.PendingFilterImported, storage.PendingFilterAll:
		default:
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "unknown status filter")
			return
		}

		page, err := pending.ListByUser(r.Context(), middleware.UserID(r.Context()), status, limit, offset)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// ApprovePendingFlight moves a pending flight into the flight log. The body
// may carry reviewer overrides.
func ApprovePendingFlight(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var overrides *models.FlightOverrides
		if r.ContentLength != 0 {
			var o models.FlightOverrides
			if err := json.NewDecoder(r.Body).Decode(&o); err != nil && !errors.Is(err, io.EOF) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
				return
			} else if err == nil {
				overrides = &o
			}
		}

		f, err := svc.Approve(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"], overrides)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	}
}

// RejectPendingFlight rejects a pending flight.
func RejectPendingFlight(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Reject(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RestorePendingFlight puts a rejected pending flight back into review.
func RestorePendingFlight(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Restore(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// BulkApprovePendingFlights approves several pending flights and reports
// the outcome per id.
func BulkApprovePendingFlights(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := decodeBulk(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, svc.BulkApprove(r.Context(), middleware.UserID(r.Context()), ids))
	}
}

// BulkRejectPendingFlights rejects several pending flights and reports the
// outcome per id.
func BulkRejectPendingFlights(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := decodeBulk(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, svc.BulkReject(r.Context(), middleware.UserID(r.Context()), ids))
	}
}

func decodeBulk(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return nil, false
	}
	if len(req.IDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "ids are required")
		return nil, false
	}
	if len(req.IDs) > maxBulkIDs {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "too many ids")
		return nil, false
	}
	return req.IDs, true
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
