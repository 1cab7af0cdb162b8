// Package session implements the practice run state machine: question
// progression, grading hand-off, millionaire ladder, lifelines and the
// per-question countdown.
package session

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/b2english/tensequest/internal/content"
)

// DefaultBudget is the per-question countdown of a millionaire run, in
// seconds. The time lifeline adds one more budget.
const DefaultBudget = 30

// Grader grades one answer against the backend.
type Grader interface {
	Grade(ctx context.Context, q content.Question, given string, elapsed time.Duration) (*content.Feedback, error)
}

// Options configures a Runner.
type Options struct {
	// Budget is the countdown per millionaire question in seconds.
	// Default: DefaultBudget.
	Budget int

	// TickInterval drives the background countdown. Zero disables it;
	// callers then step the countdown with Tick.
	TickInterval time.Duration

	Now    func() time.Time
	Rand   *rand.Rand
	Logger *zap.Logger

	// OnChange is called with a fresh snapshot after every mutation,
	// outside the runner lock.
	OnChange func(Snapshot)

	// OnReset is called after ResetRun, outside the runner lock. It clears
	// run-scoped caches such as the attempt cache.
	OnReset func()
}

// StartOptions describes a new run.
type StartOptions struct {
	Questions []content.Question
	Spares    []content.Question
	Rewards   []int
	Mode      Mode
	Daily     bool
}

// Runner owns one practice run. Every entry point, whether a user action,
// a countdown tick or a late grading result, goes through its mutex.
type Runner struct {
	grader    Grader
	budget    int
	now       func() time.Time
	rnd       *rand.Rand
	logger    *zap.Logger
	onChange  func(Snapshot)
	onReset   func()
	countdown *Countdown

	mu          sync.Mutex
	state       State
	mode        Mode
	daily       bool
	questions   []content.Question
	index       int
	results     []Result
	xp          int
	correct     int
	wrong       int
	bonus       int
	ladder      []LadderLevel
	lifelines   Lifelines
	doubleArmed bool
	spares      []content.Question
	usedIDs     []int64
	feedback    *content.Feedback
	remaining   int
	timedOut    bool
	pending     bool
	cancel      context.CancelFunc
	runEpoch    uint64
	tickEpoch   uint64
	shownAt     time.Time
	profile     Profile
	seq         uint64
}

// NewRunner creates an idle runner.
func NewRunner(grader Grader, opts Options) *Runner {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Runner{
		grader:    grader,
		budget:    opts.Budget,
		now:       opts.Now,
		rnd:       opts.Rand,
		logger:    opts.Logger,
		onChange:  opts.OnChange,
		onReset:   opts.OnReset,
		state:     StateIdle,
		mode:      ModeClassic,
		remaining: -1,
		profile:   NewProfile(),
	}
	if opts.TickInterval > 0 {
		r.countdown = NewCountdown(opts.TickInterval, r.tickAt)
	}
	return r
}

// Start installs a new run, discarding whatever was running.
func (r *Runner) Start(opts StartOptions) error {
	if len(opts.Questions) == 0 {
		return ErrNoQuestions
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeClassic
	}

	r.mu.Lock()
	r.resetLocked()
	r.mode = mode
	r.daily = opts.Daily

	qs := slices.Clone(opts.Questions)
	if mode == ModeMillionaire {
		// Ladder order is level order; only the options move, once.
		for i := range qs {
			qs[i] = r.shuffleOptions(qs[i])
		}
		r.ladder = make([]LadderLevel, len(qs))
		for i, q := range qs {
			reward := (i + 1) * 100
			if i < len(opts.Rewards) {
				reward = opts.Rewards[i]
			}
			status := LevelLocked
			if i == 0 {
				status = LevelCurrent
			}
			r.ladder[i] = LadderLevel{Level: i + 1, Question: q, Status: status, XPReward: reward}
		}
	} else {
		slices.SortStableFunc(qs, func(a, b content.Question) int {
			return cmp.Compare(a.SortOrder, b.SortOrder)
		})
	}
	r.questions = qs
	r.spares = slices.Clone(opts.Spares)
	r.state = StateRunning
	r.showCurrentLocked()
	if mode == ModeMillionaire {
		r.remaining = r.budget
		r.armCountdownLocked()
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Debug("run started",
		zap.String("mode", string(mode)),
		zap.Int("questions", len(qs)),
		zap.Int("spares", len(opts.Spares)),
		zap.Bool("daily", opts.Daily),
	)
	r.notify(snap)
	return nil
}

// Submit grades answer for the current question. It is a no-op returning
// (nil, nil) when no question is waiting for an answer or another
// submission is in flight. A grading error leaves the run untouched so the
// same question can be submitted again.
func (r *Runner) Submit(ctx context.Context, answer string) (*content.Feedback, error) {
	r.mu.Lock()
	if r.state != StateRunning || r.pending || r.index >= len(r.questions) {
		r.mu.Unlock()
		return nil, nil
	}
	q := r.questions[r.index]
	epoch := r.runEpoch
	elapsed := r.now().Sub(r.shownAt)
	ctx, cancel := context.WithCancel(ctx)
	r.pending = true
	r.cancel = cancel
	r.mu.Unlock()

	fb, err := r.grader.Grade(ctx, q, answer, elapsed)
	cancel()

	r.mu.Lock()
	if epoch != r.runEpoch {
		r.mu.Unlock()
		r.logger.Debug("discarding grading result of a reset run", zap.Int64("question_id", q.ID))
		return nil, ErrRunReset
	}
	r.pending = false
	r.cancel = nil
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if fb == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("grading question %d: empty feedback", q.ID)
	}
	r.recordLocked(q, *fb, elapsed)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return fb, nil
}

func (r *Runner) recordLocked(q content.Question, fb content.Feedback, elapsed time.Duration) {
	res := Result{QuestionID: q.ID, IsCorrect: fb.IsCorrect, XPAwarded: fb.XPAwarded}
	if elapsed > 0 {
		res.TimeMs = elapsed.Milliseconds()
	}

	replaced := false
	if r.mode == ModeFocus {
		// Focus allows retries; the newest answer for a question wins.
		if i := slices.IndexFunc(r.results, func(x Result) bool { return x.QuestionID == q.ID }); i >= 0 {
			r.unapply(r.results[i])
			r.results[i] = res
			replaced = true
		}
	}
	if !replaced {
		r.results = append(r.results, res)
	}

	xp := fb.XPAwarded
	if r.doubleArmed && fb.IsCorrect {
		r.bonus += xp
		xp *= 2
	}
	r.doubleArmed = false
	r.xp += xp
	if fb.IsCorrect {
		r.correct++
		r.profile.MarkSeen(q.ID, r.now())
	} else {
		r.wrong++
	}

	r.feedback = &fb
	r.state = StateFeedback
	r.stopCountdownLocked()

	if r.mode != ModeMillionaire || r.index >= len(r.ladder) {
		return
	}
	if fb.IsCorrect {
		r.ladder[r.index].Status = LevelCleared
		r.ladder[r.index].XPReward = fb.XPAwarded
		if r.index+1 < len(r.ladder) {
			r.ladder[r.index+1].Status = LevelCurrent
		}
		return
	}
	r.ladder[r.index].Status = LevelFailed
	r.logger.Debug("sudden death", zap.Int("level", r.ladder[r.index].Level))
	r.index = len(r.questions)
	r.state = StateFinished
}

func (r *Runner) unapply(res Result) {
	r.xp -= res.XPAwarded
	if res.IsCorrect {
		r.correct--
	} else {
		r.wrong--
	}
}

// Timeout fails the current millionaire level when the countdown ran out.
// It fires at most once per question and never while an answer is being
// graded or shown.
func (r *Runner) Timeout() bool {
	r.mu.Lock()
	ok := r.timeoutLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	if ok {
		r.notify(snap)
	}
	return ok
}

func (r *Runner) timeoutLocked() bool {
	if r.mode != ModeMillionaire || r.state != StateRunning || r.pending || r.timedOut {
		return false
	}
	r.timedOut = true
	if r.index < len(r.ladder) {
		r.ladder[r.index].Status = LevelFailed
	}
	r.logger.Debug("question timed out", zap.Int("index", r.index))
	r.index = len(r.questions)
	r.state = StateFinished
	r.remaining = 0
	r.stopCountdownLocked()
	return true
}

// Tick steps the countdown by one second.
func (r *Runner) Tick() {
	r.mu.Lock()
	changed := r.tickLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	if changed {
		r.notify(snap)
	}
}

// tickAt is the background countdown callback. Ticks of an older epoch
// belong to a question that is no longer current.
func (r *Runner) tickAt(epoch uint64) {
	r.mu.Lock()
	if epoch != r.tickEpoch {
		r.mu.Unlock()
		return
	}
	changed := r.tickLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	if changed {
		r.notify(snap)
	}
}

func (r *Runner) tickLocked() bool {
	if r.state != StateRunning || r.remaining < 0 {
		return false
	}
	if r.remaining > 0 {
		r.remaining--
	}
	if r.remaining > 0 {
		return true
	}
	if r.mode != ModeMillionaire {
		r.remaining = -1
		r.stopCountdownLocked()
		return true
	}
	// While an answer is being graded the timeout is held back and retried
	// on the next tick.
	r.timeoutLocked()
	return true
}

// Advance moves past the shown feedback to the next question, or finishes
// the run after the last one.
func (r *Runner) Advance() bool {
	r.mu.Lock()
	if r.state != StateFeedback {
		r.mu.Unlock()
		return false
	}
	r.feedback = nil
	r.index++
	if r.index >= len(r.questions) {
		r.index = len(r.questions)
		r.state = StateFinished
		r.stopCountdownLocked()
	} else {
		r.state = StateRunning
		r.timedOut = false
		if r.index < len(r.ladder) && r.ladder[r.index].Status == LevelLocked {
			r.ladder[r.index].Status = LevelCurrent
		}
		r.showCurrentLocked()
		if r.mode == ModeMillionaire {
			r.remaining = r.budget
			r.armCountdownLocked()
		} else {
			// Extra time outside millionaire covers one question only.
			r.remaining = -1
			r.stopCountdownLocked()
		}
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return true
}

// Retry clears a wrong answer in focus mode so the question can be tried
// again.
func (r *Runner) Retry() bool {
	r.mu.Lock()
	if r.mode != ModeFocus || r.state != StateFeedback || r.feedback == nil || r.feedback.IsCorrect {
		r.mu.Unlock()
		return false
	}
	r.feedback = nil
	r.state = StateRunning
	r.shownAt = r.now()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return true
}

// UseLifeline consumes a lifeline. Using one twice, or outside a question,
// is a no-op. A swap with no spare left still consumes the lifeline and
// returns ErrNoSpares.
func (r *Runner) UseLifeline(kind Lifeline) error {
	r.mu.Lock()
	used := r.lifelines.used(kind)
	if used == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownLifeline, kind)
	}
	if *used || r.state != StateRunning || r.pending {
		r.mu.Unlock()
		return nil
	}
	*used = true

	var err error
	switch kind {
	case LifelineSwap:
		if len(r.spares) == 0 {
			err = ErrNoSpares
			break
		}
		next := r.spares[0]
		r.spares = r.spares[1:]
		if r.mode == ModeMillionaire {
			next = r.shuffleOptions(next)
		}
		r.questions[r.index] = next
		if r.index < len(r.ladder) {
			r.ladder[r.index].Question = next
		}
		r.showCurrentLocked()
	case LifelineTime:
		if r.remaining < 0 {
			r.remaining = r.budget
			r.armCountdownLocked()
		} else {
			r.remaining += r.budget
		}
	case LifelineDouble:
		r.doubleArmed = true
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return err
}

// ResetRun abandons the run: in-flight grading is cancelled, the
// countdown stopped, and the runner goes back to idle. The profile is kept.
func (r *Runner) ResetRun() {
	r.mu.Lock()
	r.resetLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if r.onReset != nil {
		r.onReset()
	}
	r.notify(snap)
}

func (r *Runner) resetLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.pending = false
	r.runEpoch++
	r.stopCountdownLocked()

	r.state = StateIdle
	r.mode = ModeClassic
	r.daily = false
	r.questions = nil
	r.index = 0
	r.results = nil
	r.xp, r.correct, r.wrong, r.bonus = 0, 0, 0, 0
	r.ladder = nil
	r.lifelines = Lifelines{}
	r.doubleArmed = false
	r.spares = nil
	r.usedIDs = nil
	r.feedback = nil
	r.remaining = -1
	r.timedOut = false
}

// Restore installs a persisted run and profile without marking anything
// seen. The index is clamped to the question list.
func (r *Runner) Restore(s Snapshot, p Profile) {
	r.mu.Lock()
	r.resetLocked()
	r.profile = p.Clone()

	r.mode = s.Mode
	if r.mode == "" {
		r.mode = ModeClassic
	}
	r.daily = s.Daily
	r.questions = slices.Clone(s.Questions)
	r.index = min(max(s.Index, 0), len(r.questions))
	r.results = slices.Clone(s.Results)
	r.xp, r.correct, r.wrong, r.bonus = s.XP, s.Correct, s.Wrong, s.BonusXP
	r.ladder = slices.Clone(s.Ladder)
	r.lifelines = s.Lifelines
	r.doubleArmed = s.DoubleArmed
	r.spares = slices.Clone(s.Spares)
	r.usedIDs = slices.Clone(s.UsedIDs)
	if s.Feedback != nil {
		fb := *s.Feedback
		r.feedback = &fb
	}
	r.shownAt = r.now()

	switch {
	case len(r.questions) == 0:
		r.state = StateIdle
	case r.index >= len(r.questions):
		r.state = StateFinished
	case r.feedback != nil:
		r.state = StateFeedback
	default:
		r.state = StateRunning
		switch {
		case s.Remaining > 0:
			r.remaining = s.Remaining
		case r.mode == ModeMillionaire:
			r.remaining = r.budget
		}
		if r.remaining >= 0 {
			r.armCountdownLocked()
		}
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
}

// Close stops the countdown and waits for its goroutine. In-flight grading
// is cancelled.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.stopCountdownLocked()
	r.mu.Unlock()

	if r.countdown != nil {
		r.countdown.Wait()
	}
}

// Current returns the question waiting for an answer or being reviewed.
func (r *Runner) Current() (content.Question, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index >= len(r.questions) {
		return content.Question{}, false
	}
	return r.questions[r.index], true
}

// Progress returns how far the run is.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progressLocked()
}

func (r *Runner) progressLocked() Progress {
	n := len(r.questions)
	if n == 0 {
		return Progress{Label: "0/0"}
	}
	return Progress{
		Fraction: float64(r.index) / float64(n),
		Label:    fmt.Sprintf("%d/%d", min(r.index+1, n), n),
	}
}

// Ladder returns a copy of the millionaire ladder.
func (r *Runner) Ladder() []LadderLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ladder)
}

// Phase returns the quest phase of the current question.
func (r *Runner) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return PhaseAt(r.index)
}

// State returns the state machine position.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsFinished reports whether the run is past its last question.
func (r *Runner) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.questions) > 0 && r.index == len(r.questions)
}

// Snapshot returns a copy of the run state.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Runner) snapshotLocked() Snapshot {
	r.seq++
	s := Snapshot{
		Seq:         r.seq,
		State:       r.state,
		Mode:        r.mode,
		Daily:       r.daily,
		Questions:   slices.Clone(r.questions),
		Index:       r.index,
		Results:     slices.Clone(r.results),
		XP:          r.xp,
		Correct:     r.correct,
		Wrong:       r.wrong,
		BonusXP:     r.bonus,
		Ladder:      slices.Clone(r.ladder),
		Lifelines:   r.lifelines,
		DoubleArmed: r.doubleArmed,
		Spares:      slices.Clone(r.spares),
		UsedIDs:     slices.Clone(r.usedIDs),
		Remaining:   r.remaining,
		Phase:       PhaseAt(r.index),
		Progress:    r.progressLocked(),
	}
	if r.feedback != nil {
		fb := *r.feedback
		s.Feedback = &fb
	}
	return s
}

// Profile returns a copy of the learner profile.
func (r *Runner) Profile() Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile.Clone()
}

// SyncStreak updates the day streak for a visit now.
func (r *Runner) SyncStreak() Profile {
	r.mu.Lock()
	r.profile.SyncStreak(r.now())
	p := r.profile.Clone()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return p
}

// MarkMissionComplete records today's daily mission as done.
func (r *Runner) MarkMissionComplete() {
	r.mu.Lock()
	r.profile.MarkMissionComplete(r.now())
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
}

// DailyLocked reports whether today's daily mission is already done.
func (r *Runner) DailyLocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile.DailyLocked(r.now())
}

// showCurrentLocked records the question at index as shown. The exposure
// history is updated before any answer for it can be recorded.
func (r *Runner) showCurrentLocked() {
	if r.index >= len(r.questions) {
		return
	}
	q := r.questions[r.index]
	now := r.now()
	r.profile.MarkSeen(q.ID, now)
	if !slices.Contains(r.usedIDs, q.ID) {
		r.usedIDs = append(r.usedIDs, q.ID)
	}
	r.shownAt = now
}

func (r *Runner) shuffleOptions(q content.Question) content.Question {
	if !q.IsChoice() || len(q.Options) < 2 {
		return q
	}
	opts := slices.Clone(q.Options)
	r.rnd.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	q.Options = opts
	return q
}

func (r *Runner) armCountdownLocked() {
	r.tickEpoch++
	if r.countdown != nil {
		r.countdown.Start(r.tickEpoch)
	}
}

func (r *Runner) stopCountdownLocked() {
	r.tickEpoch++
	if r.countdown != nil {
		r.countdown.Stop()
	}
}

func (r *Runner) notify(s Snapshot) {
	if r.onChange != nil {
		r.onChange(s)
	}
}
