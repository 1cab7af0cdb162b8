// Package practice wires the run state machine to the backend, the
// attempt cache, the run snapshot and the device progress. Controller is
// the handle given to the UI layer.
package practice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/b2english/tensequest/internal/answer"
	"github.com/b2english/tensequest/internal/attempt"
	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/metrics"
	"github.com/b2english/tensequest/internal/persist"
	"github.com/b2english/tensequest/internal/progress"
	"github.com/b2english/tensequest/internal/selection"
	"github.com/b2english/tensequest/internal/session"
	"github.com/b2english/tensequest/internal/store"
)

var (
	// ErrDailyLocked is returned when today's daily mission was already
	// completed.
	ErrDailyLocked = errors.New("daily mission already completed today")

	// ErrUnknownTopic is returned by StartFocus for a topic without a bank.
	ErrUnknownTopic = errors.New("unknown focus topic")
)

// DefaultFocusCount is the number of questions in a focus session.
const DefaultFocusCount = 10

// Options configures a Controller.
type Options struct {
	// Policy names the classic selection policy: strict (default) or lru.
	Policy string

	Selection selection.Config

	// Budget and TickInterval drive the millionaire countdown. A zero
	// TickInterval leaves ticking to the caller.
	Budget       int
	TickInterval time.Duration

	// Events receives one entry per completed session. Optional.
	Events store.EventRepo

	Now    func() time.Time
	Logger *zap.Logger
}

// Summary describes a completed session.
type Summary struct {
	SessionID string               `json:"session_id"`
	Mode      session.Mode         `json:"mode"`
	Daily     bool                 `json:"daily"`
	Questions int                  `json:"questions"`
	Correct   int                  `json:"correct"`
	XP        int                  `json:"xp"`
	BonusXP   int                  `json:"bonus_xp"`
	Duration  time.Duration        `json:"duration"`
	Stats     progress.DeviceStats `json:"stats"`
}

// Controller owns one learner's practice state.
type Controller struct {
	svc      content.Service
	runner   *session.Runner
	attempts *attempt.Reconciler
	bridge   *persist.Bridge
	progress *progress.Store
	events   store.EventRepo
	classic  selection.Policy
	ladder   selection.Policy
	now      func() time.Time
	logger   *zap.Logger

	saveMu   sync.Mutex
	savedSeq uint64

	// install serializes the start generation check with installing the
	// pool, so an Abandon cannot land between the two.
	install sync.Mutex

	mu          sync.Mutex
	startGen    uint64
	cancelStart context.CancelFunc
	sessionID   string
	startedAt   time.Time
	focus       bool
	completed   bool
	summary     *Summary
	user        *content.User
}

// New creates a Controller. kv holds the run snapshot; prog holds device
// stats and focus queues.
func New(svc content.Service, kv store.KV, prog *progress.Store, opts Options) (*Controller, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	selCfg := opts.Selection
	selCfg.Logger = opts.Logger.Named("selection")
	if selCfg.Now == nil {
		selCfg.Now = opts.Now
	}
	classic, err := selection.NewPolicy(opts.Policy, selCfg)
	if err != nil {
		return nil, err
	}
	if classic.Name() == selection.PolicyLadder {
		return nil, fmt.Errorf("policy %q is reserved for millionaire runs", opts.Policy)
	}

	c := &Controller{
		svc:      svc,
		bridge:   persist.NewBridge(kv, opts.Logger.Named("persist")),
		progress: prog,
		events:   opts.Events,
		classic:  classic,
		ladder:   selection.NewLadderPolicy(selCfg),
		now:      opts.Now,
		logger:   opts.Logger,
	}
	c.attempts = attempt.New(svc, attempt.Options{Logger: opts.Logger.Named("attempt")})
	c.runner = session.NewRunner(grader{c}, session.Options{
		Budget:       opts.Budget,
		TickInterval: opts.TickInterval,
		Now:          opts.Now,
		Logger:       opts.Logger.Named("session"),
		OnChange:     c.onChange,
		OnReset:      c.attempts.Reset,
	})
	return c, nil
}

// grader routes focus questions to the local answer key and everything
// else to the backend.
type grader struct{ c *Controller }

func (g grader) Grade(ctx context.Context, q content.Question, given string, elapsed time.Duration) (*content.Feedback, error) {
	g.c.mu.Lock()
	focus := g.c.focus
	g.c.mu.Unlock()
	if focus {
		return answer.LocalGrader{}.Grade(ctx, q, given, elapsed)
	}
	return g.c.attempts.Grade(ctx, q, given, elapsed)
}

// onChange mirrors every runner mutation to the snapshot store and
// completes the session once the run is over, whichever path ended it.
// Notifications arrive outside the runner lock, so one that was overtaken
// by a newer snapshot is dropped.
func (c *Controller) onChange(s session.Snapshot) {
	c.saveMu.Lock()
	if s.Seq <= c.savedSeq {
		c.saveMu.Unlock()
		return
	}
	c.savedSeq = s.Seq
	snap := persist.Capture(s, c.runner.Profile(), c.attempts.Current())
	c.bridge.Save(context.Background(), snap)
	c.saveMu.Unlock()

	if s.State == session.StateFinished {
		c.complete(context.Background())
	}
}

// Open restores the persisted run and syncs the day streak.
func (c *Controller) Open(ctx context.Context) session.Snapshot {
	snap, repaired := c.bridge.Load(ctx)
	if repaired {
		c.logger.Info("discarded an inconsistent saved run")
	}

	c.mu.Lock()
	c.focus = snap.Mode == session.ModeFocus
	// A finished run was recorded when it finished.
	c.completed = snap.HasRun() && snap.Index >= len(snap.Questions)
	if snap.HasRun() {
		c.sessionID = uuid.NewString()
		c.startedAt = c.now()
	}
	c.mu.Unlock()

	c.attempts.SetCurrent(snap.AttemptID)
	c.runner.Restore(snap.Run(), snap.Profile())
	c.runner.SyncStreak()

	s := c.runner.Snapshot()
	c.logger.Debug("practice state opened",
		zap.String("state", string(s.State)),
		zap.Int("index", s.Index),
		zap.Int("questions", len(s.Questions)),
	)
	return s
}

// StartSession abandons any run and starts a classic or millionaire run.
func (c *Controller) StartSession(ctx context.Context, mode session.Mode, daily bool) (session.Snapshot, error) {
	if mode == "" {
		mode = session.ModeClassic
	}
	if mode == session.ModeFocus {
		return session.Snapshot{}, errors.New("focus sessions are started with StartFocus")
	}
	if daily && c.runner.DailyLocked() {
		return session.Snapshot{}, ErrDailyLocked
	}

	c.Abandon()
	ctx, gen, done := c.startScope(ctx)
	defer done()

	activities, err := c.svc.ListActivities(ctx)
	if err != nil {
		return session.Snapshot{}, c.startErr(gen, err)
	}
	policy := c.classic
	if mode == session.ModeMillionaire {
		policy = c.ladder
	}
	pool, err := policy.Select(ctx, c.svc, activities, selection.History(c.runner.Profile().History))
	if err != nil {
		return session.Snapshot{}, c.startErr(gen, err)
	}

	attemptID, err := c.svc.StartAttempt(ctx, pool.SeedActivityID)
	if err != nil {
		return session.Snapshot{}, c.startErr(gen, err)
	}

	c.install.Lock()
	defer c.install.Unlock()
	if !c.isCurrentStart(gen) {
		return session.Snapshot{}, session.ErrRunReset
	}
	c.attempts.Prime(pool.SeedActivityID, attemptID)
	c.begin(false)
	if err := c.runner.Start(session.StartOptions{
		Questions: pool.Questions,
		Spares:    pool.Spares,
		Rewards:   pool.Rewards,
		Mode:      mode,
		Daily:     daily,
	}); err != nil {
		return session.Snapshot{}, err
	}

	c.logger.Info("session started",
		zap.String("session_id", c.SessionID()),
		zap.String("mode", string(mode)),
		zap.String("policy", policy.Name()),
		zap.Int("questions", len(pool.Questions)),
		zap.Bool("daily", daily),
	)
	return c.runner.Snapshot(), nil
}

// StartFocus starts a local practice run over a built-in bank. Questions
// rotate through a persisted per-topic queue so a session does not repeat
// the previous one until the bank is exhausted.
func (c *Controller) StartFocus(ctx context.Context, topic string, count int) (session.Snapshot, error) {
	bank := content.FocusBank(topic)
	if bank == nil {
		return session.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	if count <= 0 {
		count = DefaultFocusCount
	}

	byID := make(map[string]content.Question, len(bank))
	pool := make([]string, 0, len(bank))
	for _, q := range bank {
		id := strconv.FormatInt(q.ID, 10)
		byID[id] = q
		pool = append(pool, id)
	}
	picked := c.progress.PickQuestions(ctx, topic, count, pool)
	qs := make([]content.Question, 0, len(picked))
	for i, id := range picked {
		q := byID[id]
		q.SortOrder = i
		qs = append(qs, q)
	}

	c.Abandon()
	c.install.Lock()
	defer c.install.Unlock()
	c.begin(true)
	if err := c.runner.Start(session.StartOptions{Questions: qs, Mode: session.ModeFocus}); err != nil {
		return session.Snapshot{}, err
	}
	c.logger.Info("focus session started",
		zap.String("session_id", c.SessionID()),
		zap.String("topic", topic),
		zap.Int("questions", len(qs)),
	)
	return c.runner.Snapshot(), nil
}

// startScope derives the context of one start. Abandon cancels it and
// moves the generation on, which turns the start stale.
func (c *Controller) startScope(ctx context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.startGen++
	gen := c.startGen
	c.cancelStart = cancel
	c.mu.Unlock()
	return ctx, gen, func() {
		c.mu.Lock()
		if c.startGen == gen {
			c.cancelStart = nil
		}
		c.mu.Unlock()
		cancel()
	}
}

func (c *Controller) isCurrentStart(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startGen == gen
}

// startErr reports a failure of a start that was abandoned meanwhile as
// session.ErrRunReset.
func (c *Controller) startErr(gen uint64, err error) error {
	if !c.isCurrentStart(gen) {
		return session.ErrRunReset
	}
	return err
}

func (c *Controller) begin(focus bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = uuid.NewString()
	c.startedAt = c.now()
	c.focus = focus
	c.completed = false
	c.summary = nil
}

// Submit grades answer for the current question. Collaborator errors are
// returned as they came, typically a *content.APIError.
func (c *Controller) Submit(ctx context.Context, given string) (*content.Feedback, error) {
	fb, err := c.runner.Submit(ctx, given)
	if err != nil || fb == nil {
		return fb, err
	}

	c.mu.Lock()
	focus := c.focus
	c.mu.Unlock()
	if !focus {
		c.Refresh(ctx)
	}
	return fb, nil
}

// Advance moves to the next question. Advancing past the last one
// completes the session.
func (c *Controller) Advance() bool {
	return c.runner.Advance()
}

// Timeout fails the current millionaire level, which completes the session.
func (c *Controller) Timeout() bool {
	return c.runner.Timeout()
}

// Tick steps the countdown.
func (c *Controller) Tick() {
	c.runner.Tick()
}

// Retry clears a wrong answer in focus mode.
func (c *Controller) Retry() bool {
	return c.runner.Retry()
}

// UseLifeline consumes a lifeline of the current run.
func (c *Controller) UseLifeline(kind session.Lifeline) error {
	return c.runner.UseLifeline(kind)
}

// Abandon resets the run. In-flight grading and any start in progress are
// cancelled and the attempt cache cleared.
func (c *Controller) Abandon() {
	c.install.Lock()
	defer c.install.Unlock()

	c.mu.Lock()
	c.startGen++
	cancel := c.cancelStart
	c.cancelStart = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.runner.ResetRun()
	c.mu.Lock()
	c.sessionID = ""
	c.focus = false
	c.completed = false
	c.mu.Unlock()
}

// complete records a finished run exactly once.
func (c *Controller) complete(ctx context.Context) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	c.completed = true
	sessionID := c.sessionID
	duration := c.now().Sub(c.startedAt)
	c.mu.Unlock()

	snap := c.runner.Snapshot()
	total := len(snap.Results)
	stats := c.progress.SaveSession(ctx, snap.Correct, total)

	if c.events != nil {
		err := c.events.AppendSessionEvent(ctx, store.SessionEventData{
			SessionID:       sessionID,
			Mode:            string(snap.Mode),
			Daily:           snap.Daily,
			QuestionsServed: total,
			CorrectAnswers:  snap.Correct,
			XP:              snap.XP,
			DurationSecs:    int(duration.Seconds()),
		})
		if err != nil {
			c.logger.Warn("append session event", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if snap.Daily {
		c.runner.MarkMissionComplete()
	}
	metrics.SessionsCompletedTotal.WithLabelValues(string(snap.Mode)).Inc()

	sum := &Summary{
		SessionID: sessionID,
		Mode:      snap.Mode,
		Daily:     snap.Daily,
		Questions: total,
		Correct:   snap.Correct,
		XP:        snap.XP,
		BonusXP:   snap.BonusXP,
		Duration:  duration,
		Stats:     stats,
	}
	c.mu.Lock()
	c.summary = sum
	c.mu.Unlock()

	c.logger.Info("session completed",
		zap.String("session_id", sessionID),
		zap.String("mode", string(snap.Mode)),
		zap.Int("correct", snap.Correct),
		zap.Int("questions", total),
		zap.Int("xp", snap.XP),
		zap.Int("streak", stats.Streak),
	)
}

// Refresh fetches the learner profile to pick up the backend XP total.
// Failures are logged and nil is returned.
func (c *Controller) Refresh(ctx context.Context) *content.User {
	u, err := c.svc.Me(ctx)
	if err != nil {
		c.logger.Warn("refresh user profile", zap.Error(err))
		return nil
	}
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
	return u
}

// User returns the last fetched learner profile, if any.
func (c *Controller) User() *content.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Snapshot returns the run state.
func (c *Controller) Snapshot() session.Snapshot {
	return c.runner.Snapshot()
}

// Profile returns the learner profile.
func (c *Controller) Profile() session.Profile {
	return c.runner.Profile()
}

// SessionID returns the id of the current session, or "".
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Summary returns the summary of the last completed session, or nil.
func (c *Controller) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Stats returns device stats with their weekly and daily aggregates.
func (c *Controller) Stats(ctx context.Context) (progress.DeviceStats, progress.WeeklyStats, progress.GoalProgress) {
	st := c.progress.Stats(ctx)
	return st, c.progress.WeeklyStats(st), c.progress.DailyGoal(st)
}

// Close stops the countdown.
func (c *Controller) Close() {
	c.runner.Close()
}
