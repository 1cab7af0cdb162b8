package session

import (
	"testing"
	"time"
)

func TestProfile_SyncStreak(t *testing.T) {
	now := time.Date(2026, 10, 16, 22, 30, 0, 0, time.UTC)
	tests := []struct {
		name       string
		last       string
		streak     int
		wantStreak int
		wantDate   string
	}{
		{"first visit", "", 0, 1, "2026-10-16"},
		{"same day", "2026-10-16", 5, 5, "2026-10-16"},
		{"yesterday", "2026-10-15", 5, 6, "2026-10-16"},
		{"gap", "2026-10-13", 5, 1, "2026-10-16"},
		{"corrupt date", "someday", 5, 1, "2026-10-16"},
		{"future date", "2026-10-20", 5, 5, "2026-10-20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Profile{Streak: tt.streak, LastActiveDate: tt.last}
			p.SyncStreak(now)
			if p.Streak != tt.wantStreak {
				t.Errorf("Streak = %d, want %d", p.Streak, tt.wantStreak)
			}
			if p.LastActiveDate != tt.wantDate {
				t.Errorf("LastActiveDate = %q, want %q", p.LastActiveDate, tt.wantDate)
			}
		})
	}
}

func TestProfile_DailyLocked(t *testing.T) {
	day := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	var p Profile
	if p.DailyLocked(day) {
		t.Fatal("DailyLocked() = true before any mission")
	}
	p.MarkMissionComplete(day)
	if !p.DailyLocked(day.Add(10 * time.Hour)) {
		t.Error("DailyLocked() = false later the same day")
	}
	if p.DailyLocked(day.Add(24 * time.Hour)) {
		t.Error("DailyLocked() = true on the next day")
	}
}

func TestProfile_MarkSeenAndClone(t *testing.T) {
	var p Profile
	at := time.Date(2026, 10, 16, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	p.MarkSeen(7, at)

	got, ok := p.History[7]
	if !ok {
		t.Fatal("question 7 not in history")
	}
	if !got.Equal(at) || got.Location() != time.UTC {
		t.Errorf("History[7] = %v, want %v in UTC", got, at)
	}

	c := p.Clone()
	c.MarkSeen(8, at)
	if _, ok := p.History[8]; ok {
		t.Error("Clone shares the history map")
	}
}
