package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b2english/tensequest/internal/content"
)

var testNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type gradeFunc func(ctx context.Context, q content.Question, given string) (*content.Feedback, error)

func (f gradeFunc) Grade(ctx context.Context, q content.Question, given string, _ time.Duration) (*content.Feedback, error) {
	return f(ctx, q, given)
}

// keyGrader marks an answer correct when it equals the question's answer.
func keyGrader() gradeFunc {
	return func(_ context.Context, q content.Question, given string) (*content.Feedback, error) {
		if given == q.Answer {
			return &content.Feedback{IsCorrect: true, XPAwarded: q.XPReward}, nil
		}
		return &content.Feedback{IsCorrect: false, CorrectAnswer: q.Answer}, nil
	}
}

// blockingGrader holds every call until released or cancelled.
type blockingGrader struct {
	entered chan struct{}
	release chan *content.Feedback
}

func newBlockingGrader() *blockingGrader {
	return &blockingGrader{entered: make(chan struct{}, 1), release: make(chan *content.Feedback)}
}

func (b *blockingGrader) Grade(ctx context.Context, _ content.Question, _ string, _ time.Duration) (*content.Feedback, error) {
	b.entered <- struct{}{}
	select {
	case fb := <-b.release:
		return fb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func question(id int64, sortOrder int) content.Question {
	return content.Question{
		ID:         id,
		ActivityID: 1,
		Kind:       content.KindFillBlank,
		Answer:     "ok",
		XPReward:   10,
		SortOrder:  sortOrder,
	}
}

func questions(n int) []content.Question {
	qs := make([]content.Question, n)
	for i := range qs {
		qs[i] = question(int64(i+1), i)
	}
	return qs
}

func newRunner(g Grader, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	return NewRunner(g, opts)
}

func TestStart_SortsAndMarksSeen(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	err := r.Start(StartOptions{Questions: []content.Question{question(30, 3), question(10, 1), question(20, 2)}})
	require.NoError(t, err)

	snap := r.Snapshot()
	var ids []int64
	for _, q := range snap.Questions {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []int64{10, 20, 30}, ids)
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, ModeClassic, snap.Mode)
	assert.Equal(t, []int64{10}, snap.UsedIDs)
	assert.Equal(t, -1, snap.Remaining)
	assert.Equal(t, PhaseWarmup, snap.Phase)
	assert.Equal(t, Progress{Fraction: 0, Label: "1/3"}, snap.Progress)
	assert.Empty(t, snap.Ladder)

	p := r.Profile()
	assert.Equal(t, testNow, p.History[10])
	assert.NotContains(t, p.History, int64(20))
}

func TestStart_NoQuestions(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	if err := r.Start(StartOptions{}); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("Start() error = %v, want ErrNoQuestions", err)
	}
	assert.Equal(t, StateIdle, r.State())
}

func TestIsFinished_Boundary(t *testing.T) {
	const n = 4
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(n)}))
	ctx := context.Background()

	for i := range n {
		if r.IsFinished() {
			t.Fatalf("IsFinished() = true at index %d, want false", i)
		}
		fb, err := r.Submit(ctx, "ok")
		require.NoError(t, err)
		require.NotNil(t, fb)
		require.True(t, r.Advance())
	}

	assert.True(t, r.IsFinished())
	snap := r.Snapshot()
	assert.Equal(t, n, snap.Index)
	assert.Equal(t, StateFinished, snap.State)
	assert.Equal(t, 40, snap.XP)
	assert.Equal(t, n, snap.Correct)
	assert.Len(t, snap.Results, n)
	assert.Equal(t, Progress{Fraction: 1, Label: "4/4"}, snap.Progress)

	_, ok := r.Current()
	assert.False(t, ok)
}

func TestPhaseAt(t *testing.T) {
	tests := []struct {
		index int
		want  Phase
	}{
		{0, PhaseWarmup},
		{1, PhaseWarmup},
		{2, PhaseMain},
		{4, PhaseMain},
		{5, PhaseBoss},
		{9, PhaseBoss},
	}
	for _, tt := range tests {
		if got := PhaseAt(tt.index); got != tt.want {
			t.Errorf("PhaseAt(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeClassic, false},
		{"classic", ModeClassic, false},
		{"millionaire", ModeMillionaire, false},
		{"focus", ModeFocus, false},
		{"arcade", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMillionaire_SuddenDeath(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(5), Mode: ModeMillionaire}))
	ctx := context.Background()

	for range 2 {
		_, err := r.Submit(ctx, "ok")
		require.NoError(t, err)
		require.True(t, r.Advance())
	}
	fb, err := r.Submit(ctx, "wrong")
	require.NoError(t, err)
	assert.False(t, fb.IsCorrect)

	ladder := r.Ladder()
	require.Len(t, ladder, 5)
	assert.Equal(t, LevelCleared, ladder[0].Status)
	assert.Equal(t, LevelCleared, ladder[1].Status)
	assert.Equal(t, LevelFailed, ladder[2].Status)
	assert.Equal(t, LevelLocked, ladder[3].Status)
	assert.Equal(t, LevelLocked, ladder[4].Status)

	snap := r.Snapshot()
	assert.Equal(t, 5, snap.Index)
	assert.Equal(t, StateFinished, snap.State)
	assert.True(t, r.IsFinished())
	assert.Equal(t, 20, snap.XP)
	assert.Equal(t, 1, snap.Wrong)
	require.NotNil(t, snap.Feedback)

	assert.False(t, r.Advance(), "Advance after sudden death")
}

func TestMillionaire_LadderRewardsAndUnlock(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{
		Questions: questions(3),
		Rewards:   []int{100, 200, 300},
		Mode:      ModeMillionaire,
	}))

	ladder := r.Ladder()
	assert.Equal(t, []LadderStatus{LevelCurrent, LevelLocked, LevelLocked},
		[]LadderStatus{ladder[0].Status, ladder[1].Status, ladder[2].Status})
	assert.Equal(t, 300, ladder[2].XPReward)
	assert.Equal(t, 3, ladder[2].Level)

	_, err := r.Submit(context.Background(), "ok")
	require.NoError(t, err)
	ladder = r.Ladder()
	assert.Equal(t, LevelCleared, ladder[0].Status)
	assert.Equal(t, 10, ladder[0].XPReward)
	assert.Equal(t, LevelCurrent, ladder[1].Status)
}

func TestMillionaire_OptionsShuffledOnce(t *testing.T) {
	q := content.Question{
		ID: 1, ActivityID: 1, Kind: content.KindMCQ,
		Options: content.Options{"a", "b", "c", "d", "e", "f"}, Answer: "a", XPReward: 10,
	}
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: []content.Question{q}, Mode: ModeMillionaire}))

	first, ok := r.Current()
	require.True(t, ok)
	assert.ElementsMatch(t, q.Options, first.Options)
	again, _ := r.Current()
	assert.Equal(t, first.Options, again.Options)
	assert.Equal(t, first.Options, r.Ladder()[0].Question.Options)
	assert.Equal(t, content.Options{"a", "b", "c", "d", "e", "f"}, q.Options, "caller slice must not be reordered")
}

func TestDoubleXP_OneShot(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(3)}))
	ctx := context.Background()

	require.NoError(t, r.UseLifeline(LifelineDouble))
	require.NoError(t, r.UseLifeline(LifelineDouble))

	_, err := r.Submit(ctx, "ok")
	require.NoError(t, err)
	snap := r.Snapshot()
	assert.Equal(t, 20, snap.XP)
	assert.Equal(t, 10, snap.BonusXP)
	assert.False(t, snap.DoubleArmed)
	assert.Equal(t, 10, snap.Results[0].XPAwarded)

	require.True(t, r.Advance())
	require.NoError(t, r.UseLifeline(LifelineDouble))
	_, err = r.Submit(ctx, "ok")
	require.NoError(t, err)

	snap = r.Snapshot()
	assert.Equal(t, 30, snap.XP)
	assert.Equal(t, 10, snap.BonusXP)
}

func TestDoubleXP_DisarmedByWrongAnswer(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))
	ctx := context.Background()

	require.NoError(t, r.UseLifeline(LifelineDouble))
	_, err := r.Submit(ctx, "nope")
	require.NoError(t, err)
	require.True(t, r.Advance())
	_, err = r.Submit(ctx, "ok")
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, 10, snap.XP)
	assert.Equal(t, 0, snap.BonusXP)
}

func TestMillionaire_DoubleXPCreditedBeforeSuddenDeath(t *testing.T) {
	calls := 0
	g := gradeFunc(func(context.Context, content.Question, string) (*content.Feedback, error) {
		calls++
		if calls == 1 {
			return &content.Feedback{IsCorrect: true, XPAwarded: 50}, nil
		}
		return &content.Feedback{IsCorrect: false}, nil
	})
	r := newRunner(g, Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(3), Mode: ModeMillionaire}))
	ctx := context.Background()

	require.NoError(t, r.UseLifeline(LifelineDouble))
	_, err := r.Submit(ctx, "x")
	require.NoError(t, err)
	require.True(t, r.Advance())
	_, err = r.Submit(ctx, "x")
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, 100, snap.XP)
	assert.Equal(t, 50, snap.BonusXP)
	assert.True(t, snap.Finished())
	assert.Equal(t, LevelFailed, snap.Ladder[1].Status)
}

func TestSubmit_ErrorLeavesRunUntouched(t *testing.T) {
	boom := &content.APIError{Status: 500, Message: "boom"}
	fail := true
	g := gradeFunc(func(ctx context.Context, q content.Question, given string) (*content.Feedback, error) {
		if fail {
			return nil, boom
		}
		return keyGrader()(ctx, q, given)
	})
	r := newRunner(g, Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))
	before := r.Snapshot()

	_, err := r.Submit(context.Background(), "ok")
	assert.Same(t, boom, err)
	assert.Equal(t, before, r.Snapshot())

	fail = false
	fb, err := r.Submit(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, fb.IsCorrect)
	assert.Equal(t, StateFeedback, r.State())
}

func TestSubmit_WrongStateIsNoop(t *testing.T) {
	calls := 0
	g := gradeFunc(func(ctx context.Context, q content.Question, given string) (*content.Feedback, error) {
		calls++
		return keyGrader()(ctx, q, given)
	})
	r := newRunner(g, Options{})
	ctx := context.Background()

	fb, err := r.Submit(ctx, "ok")
	assert.Nil(t, fb)
	assert.NoError(t, err)

	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))
	_, err = r.Submit(ctx, "ok")
	require.NoError(t, err)

	// Feedback is showing.
	fb, err = r.Submit(ctx, "ok")
	assert.Nil(t, fb)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, r.Retry(), "Retry outside focus mode")
}

func TestSubmit_DuplicateWhilePending(t *testing.T) {
	g := newBlockingGrader()
	r := newRunner(g, Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), "ok")
		done <- err
	}()
	<-g.entered

	fb, err := r.Submit(context.Background(), "ok")
	assert.Nil(t, fb)
	assert.NoError(t, err)

	g.release <- &content.Feedback{IsCorrect: true, XPAwarded: 10}
	require.NoError(t, <-done)
	assert.Len(t, r.Snapshot().Results, 1)
}

func TestSubmit_LateResultAfterReset(t *testing.T) {
	g := newBlockingGrader()
	resets := 0
	r := newRunner(g, Options{OnReset: func() { resets++ }})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), "ok")
		done <- err
	}()
	<-g.entered

	r.ResetRun()
	err := <-done
	assert.ErrorIs(t, err, ErrRunReset)

	snap := r.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Results)
	assert.Equal(t, 0, snap.XP)
	assert.Equal(t, 1, resets)
}

func TestTimeout(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(3), Mode: ModeMillionaire}))

	require.True(t, r.Timeout())
	assert.False(t, r.Timeout(), "second timeout must not fire")

	ladder := r.Ladder()
	assert.Equal(t, LevelFailed, ladder[0].Status)
	assert.Equal(t, LevelLocked, ladder[1].Status)
	assert.True(t, r.IsFinished())
	assert.Empty(t, r.Snapshot().Results)

	c := newRunner(keyGrader(), Options{})
	require.NoError(t, c.Start(StartOptions{Questions: questions(3)}))
	assert.False(t, c.Timeout(), "classic runs never time out")
}

func TestTimeout_NoopWhileFeedbackShown(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(3), Mode: ModeMillionaire}))
	_, err := r.Submit(context.Background(), "ok")
	require.NoError(t, err)

	assert.False(t, r.Timeout())
	assert.Equal(t, LevelCleared, r.Ladder()[0].Status)
}

func TestTick_CountsDownToTimeout(t *testing.T) {
	r := newRunner(keyGrader(), Options{Budget: 3})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2), Mode: ModeMillionaire}))
	assert.Equal(t, 3, r.Snapshot().Remaining)

	r.Tick()
	r.Tick()
	assert.Equal(t, 1, r.Snapshot().Remaining)
	assert.False(t, r.IsFinished())

	r.Tick()
	assert.True(t, r.IsFinished())
	assert.Equal(t, LevelFailed, r.Ladder()[0].Status)
}

func TestTick_TimeoutHeldWhileGrading(t *testing.T) {
	g := newBlockingGrader()
	r := newRunner(g, Options{Budget: 1})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2), Mode: ModeMillionaire}))

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), "ok")
		done <- err
	}()
	<-g.entered

	r.Tick()
	assert.False(t, r.IsFinished(), "timeout must wait for the pending answer")

	g.release <- &content.Feedback{IsCorrect: true, XPAwarded: 10}
	require.NoError(t, <-done)
	assert.Equal(t, StateFeedback, r.State())
	assert.Equal(t, LevelCleared, r.Ladder()[0].Status)

	r.Tick()
	assert.Equal(t, StateFeedback, r.State())
}

func TestAdvance_ResetsBudget(t *testing.T) {
	r := newRunner(keyGrader(), Options{Budget: 5})
	require.NoError(t, r.Start(StartOptions{Questions: questions(3), Mode: ModeMillionaire}))

	r.Tick()
	r.Tick()
	_, err := r.Submit(context.Background(), "ok")
	require.NoError(t, err)
	require.True(t, r.Advance())

	snap := r.Snapshot()
	assert.Equal(t, 5, snap.Remaining)
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, LevelCurrent, snap.Ladder[1].Status)
	assert.Equal(t, []int64{1, 2}, snap.UsedIDs)
	assert.Contains(t, r.Profile().History, int64(2))
}

func TestAdvance_RequiresFeedback(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	assert.False(t, r.Advance())
	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))
	assert.False(t, r.Advance())
	assert.Equal(t, 0, r.Snapshot().Index)
}

func TestUseLifeline_Swap(t *testing.T) {
	spare := question(99, 0)
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{
		Questions: questions(3),
		Spares:    []content.Question{spare, question(98, 0)},
		Mode:      ModeMillionaire,
	}))

	require.NoError(t, r.UseLifeline(LifelineSwap))
	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, int64(99), cur.ID)

	snap := r.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, int64(99), snap.Ladder[0].Question.ID)
	assert.Equal(t, LevelCurrent, snap.Ladder[0].Status)
	assert.True(t, snap.Lifelines.Swap)
	assert.Len(t, snap.Spares, 1)
	assert.Contains(t, snap.UsedIDs, int64(99))
	assert.Contains(t, r.Profile().History, int64(99))

	require.NoError(t, r.UseLifeline(LifelineSwap))
	cur, _ = r.Current()
	assert.Equal(t, int64(99), cur.ID, "second swap must be a no-op")
}

func TestUseLifeline_SwapWithoutSpares(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))

	err := r.UseLifeline(LifelineSwap)
	assert.ErrorIs(t, err, ErrNoSpares)
	assert.True(t, r.Snapshot().Lifelines.Swap)

	cur, _ := r.Current()
	assert.Equal(t, int64(1), cur.ID)
	assert.NoError(t, r.UseLifeline(LifelineSwap))
}

func TestUseLifeline_Time(t *testing.T) {
	m := newRunner(keyGrader(), Options{Budget: 30})
	require.NoError(t, m.Start(StartOptions{Questions: questions(2), Mode: ModeMillionaire}))
	m.Tick()
	require.NoError(t, m.UseLifeline(LifelineTime))
	assert.Equal(t, 59, m.Snapshot().Remaining)

	c := newRunner(keyGrader(), Options{Budget: 30})
	require.NoError(t, c.Start(StartOptions{Questions: questions(2)}))
	require.NoError(t, c.UseLifeline(LifelineTime))
	assert.Equal(t, 30, c.Snapshot().Remaining)
}

func TestUseLifeline_TimeEndsWithQuestionOutsideMillionaire(t *testing.T) {
	r := newRunner(keyGrader(), Options{Budget: 30})
	require.NoError(t, r.Start(StartOptions{Questions: questions(3)}))
	require.NoError(t, r.UseLifeline(LifelineTime))
	_, err := r.Submit(context.Background(), "ok")
	require.NoError(t, err)
	require.True(t, r.Advance())

	snap := r.Snapshot()
	assert.Equal(t, -1, snap.Remaining)

	// A run saved after the advance does not bring the countdown back.
	restored := newRunner(keyGrader(), Options{Budget: 30})
	snap.Remaining = max(snap.Remaining, 0)
	restored.Restore(snap, r.Profile())
	assert.Equal(t, StateRunning, restored.State())
	assert.Equal(t, -1, restored.Snapshot().Remaining)
}

func TestUseLifeline_Unknown(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))
	assert.ErrorIs(t, r.UseLifeline("skip"), ErrUnknownLifeline)
}

func TestUseLifeline_IdleIsNoop(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.UseLifeline(LifelineDouble))
	assert.False(t, r.Snapshot().Lifelines.Double)
}

func TestFocus_RetryOverwritesResult(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2), Mode: ModeFocus}))
	ctx := context.Background()

	fb, err := r.Submit(ctx, "nope")
	require.NoError(t, err)
	require.False(t, fb.IsCorrect)
	require.True(t, r.Retry())
	assert.Equal(t, StateRunning, r.State())

	_, err = r.Submit(ctx, "ok")
	require.NoError(t, err)
	assert.False(t, r.Retry(), "retry after a correct answer")

	snap := r.Snapshot()
	require.Len(t, snap.Results, 1)
	assert.True(t, snap.Results[0].IsCorrect)
	assert.Equal(t, 1, snap.Correct)
	assert.Equal(t, 0, snap.Wrong)
	assert.Equal(t, 10, snap.XP)
}

func TestResetRun(t *testing.T) {
	resets := 0
	r := newRunner(keyGrader(), Options{OnReset: func() { resets++ }})
	require.NoError(t, r.Start(StartOptions{Questions: questions(2), Spares: questions(1), Mode: ModeMillionaire, Daily: true}))
	require.NoError(t, r.UseLifeline(LifelineDouble))

	r.ResetRun()
	snap := r.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Questions)
	assert.Empty(t, snap.Ladder)
	assert.Empty(t, snap.Spares)
	assert.False(t, snap.Daily)
	assert.Equal(t, Lifelines{}, snap.Lifelines)
	assert.False(t, snap.DoubleArmed)
	assert.Equal(t, -1, snap.Remaining)
	assert.Equal(t, 1, resets)
	assert.Contains(t, r.Profile().History, int64(1), "profile survives a reset")
}

func TestRestore(t *testing.T) {
	tests := []struct {
		name      string
		snap      Snapshot
		wantState State
		wantIndex int
	}{
		{"empty", Snapshot{}, StateIdle, 0},
		{"running", Snapshot{Questions: questions(3), Index: 1}, StateRunning, 1},
		{"feedback", Snapshot{Questions: questions(3), Index: 1, Feedback: &content.Feedback{IsCorrect: true}}, StateFeedback, 1},
		{"index past end", Snapshot{Questions: questions(3), Index: 7}, StateFinished, 3},
		{"negative index", Snapshot{Questions: questions(3), Index: -2}, StateRunning, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(keyGrader(), Options{})
			p := NewProfile()
			p.Streak = 4
			r.Restore(tt.snap, p)

			snap := r.Snapshot()
			if snap.State != tt.wantState {
				t.Errorf("State = %q, want %q", snap.State, tt.wantState)
			}
			if snap.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", snap.Index, tt.wantIndex)
			}
			if got := r.Profile().Streak; got != 4 {
				t.Errorf("Streak = %d, want 4", got)
			}
		})
	}
}

func TestOnChange(t *testing.T) {
	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	r := newRunner(keyGrader(), Options{OnChange: func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, s)
	}})

	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))
	_, err := r.Submit(context.Background(), "ok")
	require.NoError(t, err)
	r.Advance()
	r.ResetRun()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 4)
	assert.Equal(t, StateRunning, snaps[0].State)
	assert.Equal(t, StateFeedback, snaps[1].State)
	assert.Equal(t, 1, snaps[2].Index)
	assert.Equal(t, StateIdle, snaps[3].State)
}

func TestSnapshot_SeqIncreases(t *testing.T) {
	var seqs []uint64
	r := newRunner(keyGrader(), Options{OnChange: func(s Snapshot) {
		seqs = append(seqs, s.Seq)
	}})

	require.NoError(t, r.Start(StartOptions{Questions: questions(2)}))
	_, err := r.Submit(context.Background(), "ok")
	require.NoError(t, err)
	r.Advance()

	require.Len(t, seqs, 3)
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
	}
	assert.Greater(t, r.Snapshot().Seq, seqs[2])
}

func TestDailyMission(t *testing.T) {
	r := newRunner(keyGrader(), Options{})
	assert.False(t, r.DailyLocked())
	r.MarkMissionComplete()
	assert.True(t, r.DailyLocked())

	p := r.SyncStreak()
	assert.Equal(t, 1, p.Streak)
	assert.Equal(t, "2026-10-16", p.LastActiveDate)
}
