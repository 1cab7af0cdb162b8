// Package progress keeps per-device practice statistics: totals, the day
// streak, daily counters, a short per-day history and the per-topic
// question queues used by focus practice.
package progress

import (
	"math"
	"time"
)

// HistoryLimit caps DeviceStats.History.
const HistoryLimit = 60

// dateLayout is the local calendar date key, YYYY-MM-DD.
const dateLayout = "2006-01-02"

// DayEntry aggregates the sessions of one local calendar day.
type DayEntry struct {
	Date      string `json:"date"`
	Sessions  int    `json:"sessions"`
	Questions int    `json:"questions"`
	Correct   int    `json:"correct"`
}

// DeviceStats is the persisted progress document.
type DeviceStats struct {
	Sessions       int        `json:"sessions"`
	TotalQuestions int        `json:"total_questions"`
	TotalCorrect   int        `json:"total_correct"`
	LastPlayed     *time.Time `json:"last_played,omitempty"`
	Streak         int        `json:"streak"`
	LastStreakDate string     `json:"last_streak_date,omitempty"`
	DailySessions  int        `json:"daily_sessions"`
	DailyQuestions int        `json:"daily_questions"`
	History        []DayEntry `json:"history,omitempty"`
}

// Accuracy returns the all-time percentage of correct answers, rounded.
func (s DeviceStats) Accuracy() int {
	return percent(s.TotalCorrect, s.TotalQuestions)
}

// WeeklyStats aggregates the last seven local days, today included.
type WeeklyStats struct {
	DaysPracticed int `json:"days_practiced"`
	TotalSessions int `json:"total_sessions"`
	AvgAccuracy   int `json:"avg_accuracy"`
}

// GoalProgress reports today's answered questions against the daily goal.
type GoalProgress struct {
	Goal      int  `json:"goal"`
	Answered  int  `json:"answered"`
	Remaining int  `json:"remaining"`
	Met       bool `json:"met"`
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}

// nextStreak applies the day-streak rule: same day keeps the streak,
// exactly yesterday extends it, anything else restarts at 1.
func nextStreak(current int, lastDate, today, yesterday string) int {
	switch lastDate {
	case today:
		return current
	case yesterday:
		return current + 1
	default:
		return 1
	}
}
