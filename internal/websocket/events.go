package websocket

import (
	"fmt"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/logger"
	"github.com/flight-logger/backend/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastCalendarSyncCompleted sends a calendar sync completed event.
// Runs with new flights to review also raise a notification.
func (b *EventBroadcaster) BroadcastCalendarSyncCompleted(result models.SyncResult) {
	payload := CalendarSyncPayload{
		CalendarID:              result.CalendarID,
		CalendarName:            result.CalendarName,
		EventsFound:             result.TotalEventsFound,
		FutureFlights:           result.TotalFutureFlights,
		NewPendingFlights:       result.NewPendingFlights,
		AutoImportedFlights:     result.AutoImportedFlights,
		AutoImportFailures:      result.AutoImportFailures,
		SkippedAlreadyPending:   result.SkippedAlreadyPending,
		SkippedAlreadyImported:  result.SkippedAlreadyImported,
		SkippedRecentlyRejected: result.SkippedRecentlyRejected,
		ErrorCount:              len(result.Errors),
	}
	b.broadcast(NewMessage(TypeCalendarSyncCompleted, payload))

	toReview := result.NewPendingFlights - result.AutoImportedFlights
	if toReview > 0 {
		b.BroadcastNotification("info", "New flights detected",
			fmt.Sprintf("%d flight(s) from %s are waiting for review", toReview, result.CalendarName))
	}
}

// BroadcastCalendarSyncError sends a calendar sync error event.
func (b *EventBroadcaster) BroadcastCalendarSyncError(calendarID, calendarName string, err error) {
	payload := CalendarSyncErrorPayload{
		CalendarID:   calendarID,
		CalendarName: calendarName,
		Error:        flight.Kind(err),
		Message:      err.Error(),
	}
	b.broadcast(NewMessage(TypeCalendarSyncError, payload))
}

// BroadcastPendingChanged sends a pending.changed event after review
// decisions.
func (b *EventBroadcaster) BroadcastPendingChanged(action string, ids []string) {
	b.broadcast(NewMessage(TypePendingChanged, PendingChangedPayload{Action: action, IDs: ids}))
}

// BroadcastTrackedReconciled sends a tracked.reconciled event when tracked
// flights were removed.
func (b *EventBroadcaster) BroadcastTrackedReconciled(airframeID string, removed int) {
	if removed == 0 {
		return
	}
	b.broadcast(NewMessage(TypeTrackedReconciled, TrackedReconciledPayload{AirframeID: airframeID, Removed: removed}))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}
	b.broadcast(NewMessage(TypeNotification, payload))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		logger.Error("failed to encode websocket message", "type", msg.Type, "error", err)
		return
	}

	b.hub.Broadcast(data)
}
