package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/storage/models"
)

// CalendarSourceRepository provides data access for calendar sources.
type CalendarSourceRepository struct {
	BaseRepository
}

// NewCalendarSourceRepository creates a new calendar source repository.
func NewCalendarSourceRepository(db *DB) *CalendarSourceRepository {
	return &CalendarSourceRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const calendarSourceColumns = `
	id, user_id, name, url, enabled, auto_import, sync_interval_min,
	last_sync_at, sync_status, sync_error, created_at, updated_at`

func scanCalendarSource(row rowScanner, cal *models.CalendarSource) error {
	return row.Scan(
		&cal.ID, &cal.UserID, &cal.Name, &cal.URL, &cal.Enabled, &cal.AutoImport,
		&cal.SyncIntervalMin, &cal.LastSyncAt, &cal.SyncStatus, &cal.SyncError,
		&cal.CreatedAt, &cal.UpdatedAt,
	)
}

// Create inserts a new calendar source.
func (r *CalendarSourceRepository) Create(ctx context.Context, cal *models.CalendarSource) error {
	cal.ID = GenerateID()
	cal.CreatedAt = r.Now()
	cal.UpdatedAt = cal.CreatedAt
	cal.SyncStatus = models.SyncStatusPending

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO calendar_sources (
			id, user_id, name, url, enabled, auto_import, sync_interval_min,
			sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cal.ID, cal.UserID, cal.Name, cal.URL, cal.Enabled, cal.AutoImport,
		cal.SyncIntervalMin, cal.SyncStatus, cal.CreatedAt, cal.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting calendar source: %w", err)
	}

	return nil
}

// GetByID retrieves a calendar source by its ID.
func (r *CalendarSourceRepository) GetByID(ctx context.Context, id string) (*models.CalendarSource, error) {
	cal := &models.CalendarSource{}

	err := scanCalendarSource(r.DB().QueryRowContext(ctx,
		`SELECT`+calendarSourceColumns+` FROM calendar_sources WHERE id = ?`, id), cal)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying calendar source: %w", err)
	}

	return cal, nil
}

// ListByUser retrieves the calendar sources owned by a user.
func (r *CalendarSourceRepository) ListByUser(ctx context.Context, userID string) ([]models.CalendarSource, error) {
	return r.list(ctx, `SELECT`+calendarSourceColumns+`
		FROM calendar_sources WHERE user_id = ? ORDER BY name`, userID)
}

// List retrieves every calendar source.
func (r *CalendarSourceRepository) List(ctx context.Context) ([]models.CalendarSource, error) {
	return r.list(ctx, `SELECT`+calendarSourceColumns+` FROM calendar_sources ORDER BY name`)
}

// ListEnabled retrieves all enabled calendar sources, least recently synced first.
func (r *CalendarSourceRepository) ListEnabled(ctx context.Context) ([]models.CalendarSource, error) {
	return r.list(ctx, `SELECT`+calendarSourceColumns+`
		FROM calendar_sources
		WHERE enabled = 1
		ORDER BY last_sync_at ASC NULLS FIRST`)
}

func (r *CalendarSourceRepository) list(ctx context.Context, query string, args ...any) ([]models.CalendarSource, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying calendar sources: %w", err)
	}
	defer rows.Close()

	var sources []models.CalendarSource
	for rows.Next() {
		var cal models.CalendarSource
		if err := scanCalendarSource(rows, &cal); err != nil {
			return nil, fmt.Errorf("scanning calendar source: %w", err)
		}
		sources = append(sources, cal)
	}

	return sources, rows.Err()
}

// Update persists the editable fields of a calendar source.
func (r *CalendarSourceRepository) Update(ctx context.Context, cal *models.CalendarSource) error {
	cal.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_sources SET
			name = ?, url = ?, enabled = ?, auto_import = ?, sync_interval_min = ?, updated_at = ?
		WHERE id = ?
	`,
		cal.Name, cal.URL, cal.Enabled, cal.AutoImport, cal.SyncIntervalMin, cal.UpdatedAt, cal.ID,
	)

	if err != nil {
		return fmt.Errorf("updating calendar source: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("calendar source %s: %w", cal.ID, flight.ErrNotFound)
	}

	return nil
}

// UpdateSyncStatus records the outcome of a sync. last_sync_at only moves on
// success.
func (r *CalendarSourceRepository) UpdateSyncStatus(ctx context.Context, id string, status string, syncError *string) error {
	now := r.Now()
	var lastSyncAt any
	if status == models.SyncStatusSuccess {
		lastSyncAt = now
	}

	_, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_sources SET
			sync_status = ?, sync_error = ?, last_sync_at = COALESCE(?, last_sync_at), updated_at = ?
		WHERE id = ?
	`, status, syncError, lastSyncAt, now, id)

	if err != nil {
		return fmt.Errorf("updating sync status: %w", err)
	}

	return nil
}

// Delete removes a calendar source. Its pending flights cascade; imported
// flights keep their data and lose the source link.
func (r *CalendarSourceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM calendar_sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting calendar source: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("calendar source %s: %w", id, flight.ErrNotFound)
	}

	return nil
}
