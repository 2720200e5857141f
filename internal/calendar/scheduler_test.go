package calendar

import (
	"sort"
	"testing"
)

func TestMinutesToCronSpec(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{15, "@every 15m0s"},
		{60, "@every 1h0m0s"},
		{90, "@every 1h30m0s"},
		{0, "@every 15m0s"},
		{-5, "@every 15m0s"},
	}

	for _, tt := range tests {
		if got := minutesToCronSpec(tt.minutes); got != tt.want {
			t.Errorf("minutesToCronSpec(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestSchedulerScheduleCalendar(t *testing.T) {
	h := newSyncHarness(testSource(false), nil)
	s := NewScheduler(h.svc, h.sources, 30)

	a := testSource(false)
	b := testSource(false)
	b.ID = "cal-2"
	b.SyncIntervalMin = 0

	s.ScheduleCalendar(a)
	s.ScheduleCalendar(b)

	ids := s.GetScheduledCalendars()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "cal-1" || ids[1] != "cal-2" {
		t.Fatalf("GetScheduledCalendars() = %v, want [cal-1 cal-2]", ids)
	}
	if s.intervals["cal-2"] != 30 {
		t.Errorf("cal-2 interval = %d, want default 30", s.intervals["cal-2"])
	}

	first := s.jobs["cal-1"]
	s.ScheduleCalendar(a)
	if s.jobs["cal-1"] != first {
		t.Error("unchanged interval replaced the cron entry")
	}

	a.SyncIntervalMin = 60
	s.ScheduleCalendar(a)
	if s.jobs["cal-1"] == first || s.intervals["cal-1"] != 60 {
		t.Error("changed interval did not replace the cron entry")
	}

	a.Enabled = false
	s.ScheduleCalendar(a)
	if _, ok := s.jobs["cal-1"]; ok {
		t.Error("disabled calendar is still scheduled")
	}

	s.UnscheduleCalendar("cal-2")
	if ids := s.GetScheduledCalendars(); len(ids) != 0 {
		t.Errorf("GetScheduledCalendars() = %v, want empty", ids)
	}
	if next := s.GetNextRun("cal-2"); next != nil {
		t.Errorf("GetNextRun() = %v, want nil", next)
	}
}
