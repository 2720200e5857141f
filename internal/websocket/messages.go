package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeCalendarSyncCompleted MessageType = "calendar.sync_completed"
	TypeCalendarSyncError     MessageType = "calendar.sync_error"
	TypePendingChanged        MessageType = "pending.changed"
	TypeTrackedReconciled     MessageType = "tracked.reconciled"
	TypeNotification          MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// CalendarSyncPayload is the payload for calendar.sync_completed events.
type CalendarSyncPayload struct {
	CalendarID              string `json:"calendar_id"`
	CalendarName            string `json:"calendar_name"`
	EventsFound             int    `json:"events_found"`
	FutureFlights           int    `json:"future_flights"`
	NewPendingFlights       int    `json:"new_pending_flights"`
	AutoImportedFlights     int    `json:"auto_imported_flights"`
	AutoImportFailures      int    `json:"auto_import_failures"`
	SkippedAlreadyPending   int    `json:"skipped_already_pending"`
	SkippedAlreadyImported  int    `json:"skipped_already_imported"`
	SkippedRecentlyRejected int    `json:"skipped_recently_rejected"`
	ErrorCount              int    `json:"error_count"`
}

// CalendarSyncErrorPayload is the payload for calendar.sync_error events.
type CalendarSyncErrorPayload struct {
	CalendarID   string `json:"calendar_id"`
	CalendarName string `json:"calendar_name"`
	Error        string `json:"error"`
	Message      string `json:"message"`
}

// PendingChangedPayload is the payload for pending.changed events.
type PendingChangedPayload struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids"`
}

// TrackedReconciledPayload is the payload for tracked.reconciled events.
type TrackedReconciledPayload struct {
	AirframeID string `json:"airframe_id"`
	Removed    int    `json:"removed"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
