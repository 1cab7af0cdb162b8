// Package persist mirrors the practice run and learner profile to the
// device key-value store so a restart resumes mid-run.
package persist

import (
	"maps"
	"slices"
	"time"

	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/session"
)

// SchemaVersion is the RunSnapshot layout written by this build.
const SchemaVersion = 2

// RunSnapshot is the persisted run and profile. The attempt cache is never
// part of it; only the current attempt id is.
type RunSnapshot struct {
	Version int `json:"version"`

	// Run
	Mode        session.Mode          `json:"mode"`
	Questions   []content.Question    `json:"questions"`
	Index       int                   `json:"index"`
	AttemptID   int64                 `json:"attempt_id,omitempty"`
	Ladder      []session.LadderLevel `json:"ladder"`
	Results     []session.Result      `json:"results"`
	XP          int                   `json:"xp"`
	Correct     int                   `json:"correct"`
	Wrong       int                   `json:"wrong"`
	BonusXP     int                   `json:"bonus_xp"`
	UsedIDs     []int64               `json:"used_ids"`
	Daily       bool                  `json:"daily"`
	Lifelines   session.Lifelines     `json:"lifelines"`
	DoubleArmed bool                  `json:"double_armed"`
	Spares      []content.Question    `json:"spares"`
	Feedback    *content.Feedback     `json:"feedback,omitempty"`
	Remaining   int                   `json:"remaining,omitempty"`

	// Profile
	History                  map[int64]time.Time `json:"history"`
	Streak                   int                 `json:"streak"`
	LastActiveDate           string              `json:"last_active_date,omitempty"`
	LastMissionCompletedDate string              `json:"last_mission_completed_date,omitempty"`
}

// Empty returns a snapshot with no run and an empty profile.
func Empty() RunSnapshot {
	return RunSnapshot{Version: SchemaVersion, History: make(map[int64]time.Time)}
}

// Capture builds a snapshot from the runner state.
func Capture(s session.Snapshot, p session.Profile, attemptID int64) RunSnapshot {
	return RunSnapshot{
		Version:                  SchemaVersion,
		Mode:                     s.Mode,
		Questions:                s.Questions,
		Index:                    s.Index,
		AttemptID:                attemptID,
		Ladder:                   s.Ladder,
		Results:                  s.Results,
		XP:                       s.XP,
		Correct:                  s.Correct,
		Wrong:                    s.Wrong,
		BonusXP:                  s.BonusXP,
		UsedIDs:                  s.UsedIDs,
		Daily:                    s.Daily,
		Lifelines:                s.Lifelines,
		DoubleArmed:              s.DoubleArmed,
		Spares:                   s.Spares,
		Feedback:                 s.Feedback,
		Remaining:                max(s.Remaining, 0),
		History:                  maps.Clone(p.History),
		Streak:                   p.Streak,
		LastActiveDate:           p.LastActiveDate,
		LastMissionCompletedDate: p.LastMissionCompletedDate,
	}
}

// Run returns the run part, ready for session.Runner.Restore.
func (rs RunSnapshot) Run() session.Snapshot {
	return session.Snapshot{
		Mode:        rs.Mode,
		Daily:       rs.Daily,
		Questions:   slices.Clone(rs.Questions),
		Index:       rs.Index,
		Results:     slices.Clone(rs.Results),
		XP:          rs.XP,
		Correct:     rs.Correct,
		Wrong:       rs.Wrong,
		BonusXP:     rs.BonusXP,
		Ladder:      slices.Clone(rs.Ladder),
		Lifelines:   rs.Lifelines,
		DoubleArmed: rs.DoubleArmed,
		Spares:      slices.Clone(rs.Spares),
		UsedIDs:     slices.Clone(rs.UsedIDs),
		Feedback:    rs.Feedback,
		Remaining:   rs.Remaining,
	}
}

// Profile returns the profile part.
func (rs RunSnapshot) Profile() session.Profile {
	p := session.Profile{
		History:                  maps.Clone(rs.History),
		Streak:                   rs.Streak,
		LastActiveDate:           rs.LastActiveDate,
		LastMissionCompletedDate: rs.LastMissionCompletedDate,
	}
	if p.History == nil {
		p.History = make(map[int64]time.Time)
	}
	return p
}

// HasRun reports whether a run is installed.
func (rs RunSnapshot) HasRun() bool {
	return len(rs.Questions) > 0
}

// resetRun drops every run field and keeps the profile.
func (rs *RunSnapshot) resetRun() {
	*rs = RunSnapshot{
		Version:                  SchemaVersion,
		History:                  rs.History,
		Streak:                   rs.Streak,
		LastActiveDate:           rs.LastActiveDate,
		LastMissionCompletedDate: rs.LastMissionCompletedDate,
	}
	if rs.History == nil {
		rs.History = make(map[int64]time.Time)
	}
}
