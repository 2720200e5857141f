package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flight-logger/backend/internal/logger"
	"github.com/flight-logger/backend/internal/storage/models"
)

// Scheduler manages periodic calendar sync jobs.
type Scheduler struct {
	cron        *cron.Cron
	syncService *SyncService
	sources     SourceStore

	// Track jobs per calendar
	jobs      map[string]cron.EntryID
	intervals map[string]int
	jobsMu    sync.RWMutex

	defaultIntervalMin int
}

// NewScheduler creates a new calendar sync scheduler.
func NewScheduler(syncService *SyncService, sources SourceStore, defaultIntervalMin int) *Scheduler {
	if defaultIntervalMin <= 0 {
		defaultIntervalMin = 15
	}

	return &Scheduler{
		cron:               cron.New(cron.WithSeconds()),
		syncService:        syncService,
		sources:            sources,
		jobs:               make(map[string]cron.EntryID),
		intervals:          make(map[string]int),
		defaultIntervalMin: defaultIntervalMin,
	}
}

// Start schedules every enabled calendar plus the housekeeping jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	sources, err := s.sources.ListEnabled(ctx)
	if err != nil {
		return err
	}

	for _, src := range sources {
		s.ScheduleCalendar(src)
	}

	// Pick up added, removed, or edited calendars.
	if _, err := s.cron.AddFunc("@every 5m", func() {
		s.refreshSchedules(context.Background())
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("@every 1h", func() {
		if _, err := s.syncService.PurgeExpiredRejections(context.Background()); err != nil {
			logger.Error("failed to purge expired rejections", "error", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("calendar scheduler started", "calendars", len(sources))

	return nil
}

// Stop shuts down the scheduler and waits for running jobs and background
// syncs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.syncService.Wait()
	logger.Info("calendar scheduler stopped")
}

// ScheduleCalendar adds or updates a calendar's sync schedule.
func (s *Scheduler) ScheduleCalendar(src models.CalendarSource) {
	if !src.Enabled {
		s.UnscheduleCalendar(src.ID)
		return
	}

	interval := src.SyncIntervalMin
	if interval <= 0 {
		interval = s.defaultIntervalMin
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if existingID, exists := s.jobs[src.ID]; exists {
		if s.intervals[src.ID] == interval {
			return
		}
		s.cron.Remove(existingID)
		delete(s.jobs, src.ID)
	}

	id := src.ID
	entryID, err := s.cron.AddFunc(minutesToCronSpec(interval), func() {
		s.syncCalendar(id)
	})
	if err != nil {
		logger.Error("failed to schedule calendar", "calendar_id", src.ID, "error", err)
		return
	}

	s.jobs[src.ID] = entryID
	s.intervals[src.ID] = interval
	logger.Debug("scheduled calendar", "calendar_id", src.ID, "name", src.Name, "interval_min", interval)
}

// UnscheduleCalendar removes a calendar from the sync schedule.
func (s *Scheduler) UnscheduleCalendar(calendarID string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if entryID, exists := s.jobs[calendarID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, calendarID)
		delete(s.intervals, calendarID)
		logger.Debug("unscheduled calendar", "calendar_id", calendarID)
	}
}

// syncCalendar runs one scheduled sync. Outcome events are published by the
// sync service itself.
func (s *Scheduler) syncCalendar(calendarID string) {
	if _, err := s.syncService.Trigger(context.Background(), calendarID, SyncModeScheduled); err != nil {
		logger.Error("scheduled calendar sync failed", "calendar_id", calendarID, "error", err)
	}
}

// refreshSchedules reloads calendar schedules from the database.
func (s *Scheduler) refreshSchedules(ctx context.Context) {
	sources, err := s.sources.ListEnabled(ctx)
	if err != nil {
		logger.Error("failed to refresh calendar schedules", "error", err)
		return
	}

	current := make(map[string]bool)
	for _, src := range sources {
		current[src.ID] = true
		s.ScheduleCalendar(src)
	}

	s.jobsMu.Lock()
	for id, entryID := range s.jobs {
		if !current[id] {
			s.cron.Remove(entryID)
			delete(s.jobs, id)
			delete(s.intervals, id)
			logger.Debug("removed schedule for calendar", "calendar_id", id)
		}
	}
	s.jobsMu.Unlock()
}

// minutesToCronSpec converts minutes to a cron spec.
func minutesToCronSpec(minutes int) string {
	if minutes <= 0 {
		minutes = 15
	}
	return "@every " + (time.Duration(minutes) * time.Minute).String()
}

// GetScheduledCalendars returns a list of currently scheduled calendar IDs.
func (s *Scheduler) GetScheduledCalendars() []string {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// GetNextRun returns the next scheduled run time for a calendar.
func (s *Scheduler) GetNextRun(calendarID string) *time.Time {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	if entryID, exists := s.jobs[calendarID]; exists {
		entry := s.cron.Entry(entryID)
		if !entry.Next.IsZero() {
			return &entry.Next
		}
	}
	return nil
}
