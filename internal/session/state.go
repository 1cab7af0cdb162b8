package session

import (
	"errors"
	"fmt"

	"github.com/b2english/tensequest/internal/content"
)

var (
	// ErrRunReset is returned by Submit when the run was reset or replaced
	// while the answer was being graded. The late result is discarded.
	ErrRunReset = errors.New("session: run was reset")

	// ErrNoSpares is returned when the swap lifeline finds no spare
	// question. The lifeline is consumed anyway.
	ErrNoSpares = errors.New("session: no spare questions left")

	// ErrNoQuestions is returned by Start for an empty question list.
	ErrNoQuestions = errors.New("session: no questions to play")

	// ErrUnknownLifeline is returned for a lifeline kind that does not exist.
	ErrUnknownLifeline = errors.New("session: unknown lifeline")
)

// State is the state machine position of a run.
type State string

const (
	StateIdle     State = "idle"     // No run installed
	StateRunning  State = "running"  // Waiting for an answer
	StateFeedback State = "feedback" // Showing the graded answer
	StateFinished State = "finished" // Past the last question
)

// Mode selects the rules of a run.
type Mode string

const (
	ModeClassic     Mode = "classic"
	ModeMillionaire Mode = "millionaire"
	ModeFocus       Mode = "focus"
)

// ParseMode parses a mode name. The empty string is classic.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeClassic:
		return ModeClassic, nil
	case ModeMillionaire:
		return ModeMillionaire, nil
	case ModeFocus:
		return ModeFocus, nil
	}
	return "", fmt.Errorf("unknown mode %q (want classic, millionaire or focus)", s)
}

// Phase is the quest stage of a classic run.
type Phase string

const (
	PhaseWarmup Phase = "warmup"
	PhaseMain   Phase = "main"
	PhaseBoss   Phase = "boss"
)

// PhaseAt returns the phase of the question at index.
func PhaseAt(index int) Phase {
	switch {
	case index < 2:
		return PhaseWarmup
	case index < 5:
		return PhaseMain
	default:
		return PhaseBoss
	}
}

// LadderStatus is the state of one millionaire level.
type LadderStatus string

const (
	LevelLocked  LadderStatus = "locked"
	LevelCurrent LadderStatus = "current"
	LevelCleared LadderStatus = "cleared"
	LevelFailed  LadderStatus = "failed"
)

// LadderLevel is one rung of a millionaire run.
type LadderLevel struct {
	Level    int              `json:"level"`
	Question content.Question `json:"question"`
	Status   LadderStatus     `json:"status"`
	XPReward int              `json:"xp_reward"`
}

// Result is the graded outcome of one question.
type Result struct {
	QuestionID int64 `json:"question_id"`
	IsCorrect  bool  `json:"is_correct"`
	XPAwarded  int   `json:"xp_awarded"`
	TimeMs     int64 `json:"time_ms,omitempty"`
}

// Lifeline is a one-shot run helper.
type Lifeline string

const (
	LifelineSwap   Lifeline = "swap"
	LifelineTime   Lifeline = "time"
	LifelineDouble Lifeline = "double"
)

// Lifelines records which lifelines were consumed this run.
type Lifelines struct {
	Swap   bool `json:"swap"`
	Time   bool `json:"time"`
	Double bool `json:"double"`
}

func (l *Lifelines) used(kind Lifeline) *bool {
	switch kind {
	case LifelineSwap:
		return &l.Swap
	case LifelineTime:
		return &l.Time
	case LifelineDouble:
		return &l.Double
	}
	return nil
}

// Progress is the position of a run for display.
type Progress struct {
	Fraction float64 `json:"fraction"`
	Label    string  `json:"label"`
}

// Snapshot is a copy of the run state. It is what the UI renders and what
// gets persisted.
type Snapshot struct {
	// Seq orders the snapshots of one runner. A higher Seq was taken later
	// and reflects every mutation of a lower one.
	Seq uint64 `json:"-"`

	State       State              `json:"state"`
	Mode        Mode               `json:"mode"`
	Daily       bool               `json:"daily"`
	Questions   []content.Question `json:"questions"`
	Index       int                `json:"index"`
	Results     []Result           `json:"results"`
	XP          int                `json:"xp"`
	Correct     int                `json:"correct"`
	Wrong       int                `json:"wrong"`
	BonusXP     int                `json:"bonus_xp"`
	Ladder      []LadderLevel      `json:"ladder,omitempty"`
	Lifelines   Lifelines          `json:"lifelines"`
	DoubleArmed bool               `json:"double_armed"`
	Spares      []content.Question `json:"spares,omitempty"`
	UsedIDs     []int64            `json:"used_ids"`
	Feedback    *content.Feedback  `json:"feedback,omitempty"`

	// Remaining is the countdown in seconds, or -1 when none is armed.
	Remaining int `json:"remaining"`

	Phase    Phase    `json:"phase"`
	Progress Progress `json:"progress"`
}

// Finished reports whether the snapshot is past its last question.
func (s Snapshot) Finished() bool {
	return len(s.Questions) > 0 && s.Index >= len(s.Questions)
}

// Current returns the question on screen.
func (s Snapshot) Current() (content.Question, bool) {
	if s.Index < 0 || s.Index >= len(s.Questions) {
		return content.Question{}, false
	}
	return s.Questions[s.Index], true
}
