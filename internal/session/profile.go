package session

import (
	"maps"
	"time"
)

const dateLayout = "2006-01-02"

// Profile is the learner state that outlives a run: which questions were
// shown and when, the day streak and the daily mission.
type Profile struct {
	History                  map[int64]time.Time `json:"history"`
	Streak                   int                 `json:"streak"`
	LastActiveDate           string              `json:"last_active_date,omitempty"`
	LastMissionCompletedDate string              `json:"last_mission_completed_date,omitempty"`
}

// NewProfile returns an empty profile.
func NewProfile() Profile {
	return Profile{History: make(map[int64]time.Time)}
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	c := p
	c.History = maps.Clone(p.History)
	if c.History == nil {
		c.History = make(map[int64]time.Time)
	}
	return c
}

// MarkSeen records that question id was shown at now.
func (p *Profile) MarkSeen(id int64, now time.Time) {
	if p.History == nil {
		p.History = make(map[int64]time.Time)
	}
	p.History[id] = now.UTC()
}

// SyncStreak updates the day streak for a visit at now. Days are UTC
// calendar days: a visit the day after the last one extends the streak, a
// longer gap restarts it at 1.
func (p *Profile) SyncStreak(now time.Time) {
	today := now.UTC().Format(dateLayout)
	if p.LastActiveDate == "" {
		p.Streak = 1
		p.LastActiveDate = today
		return
	}
	if p.LastActiveDate == today {
		return
	}

	last, err := time.Parse(dateLayout, p.LastActiveDate)
	if err != nil {
		p.Streak = 1
		p.LastActiveDate = today
		return
	}
	day, _ := time.Parse(dateLayout, today)
	switch diff := int(day.Sub(last).Hours() / 24); {
	case diff == 1:
		p.Streak++
		p.LastActiveDate = today
	case diff > 1:
		p.Streak = 1
		p.LastActiveDate = today
	}
}

// MarkMissionComplete records that the daily mission was completed at now.
func (p *Profile) MarkMissionComplete(now time.Time) {
	p.LastMissionCompletedDate = now.UTC().Format(dateLayout)
}

// DailyLocked reports whether the daily mission was already completed on
// the day of now.
func (p Profile) DailyLocked(now time.Time) bool {
	return p.LastMissionCompletedDate == now.UTC().Format(dateLayout)
}
