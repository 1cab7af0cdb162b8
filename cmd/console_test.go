package cmd

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/practice"
	"github.com/b2english/tensequest/internal/progress"
	"github.com/b2english/tensequest/internal/selection"
	"github.com/b2english/tensequest/internal/session"
	"github.com/b2english/tensequest/internal/store"
)

func newTestController(t *testing.T) *practice.Controller {
	t.Helper()
	m := content.NewMock(
		content.Activity{ID: 1, Difficulty: 1},
		content.Activity{ID: 2, Difficulty: 2},
		content.Activity{ID: 3, Difficulty: 3},
	)
	for a := int64(1); a <= 3; a++ {
		for j := int64(1); j <= 4; j++ {
			m.AddQuestions(content.Question{
				ID:         a*100 + j,
				ActivityID: a,
				Kind:       content.KindChoice,
				Prompt:     content.PromptFromText("She ___ tea."),
				Options:    content.Options{"drink", "drinks"},
				XPReward:   10,
				Answer:     "drinks",
			})
		}
	}

	kv := store.NewMemoryKV()
	now := func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	sel := selection.DefaultConfig()
	sel.Rand = rand.New(rand.NewPCG(5, 6))
	ctrl, err := practice.New(m, kv, progress.New(kv, progress.Options{Now: now}), practice.Options{Selection: sel, Now: now})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	ctrl.Open(context.Background())
	return ctrl
}

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

// typeLine types line into the console and presses Enter.
func typeLine(c *console, line string) tea.Cmd {
	for _, r := range line {
		c.Update(keyPress(r))
	}
	_, cmd := c.Update(specialKey(tea.KeyEnter))
	return cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestConsole_PlaysToTheEnd(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(t)
	_, err := ctrl.StartSession(ctx, session.ModeClassic, false)
	require.NoError(t, err)

	c := newConsole(ctx, ctrl)
	assert.Contains(t, c.content(), "1) drink")

	// Option 2 is "drinks"; Enter moves on.
	var cmd tea.Cmd
	for i := 0; i < 6; i++ {
		typeLine(c, "2")
		if i == 0 {
			assert.Contains(t, c.content(), "Correct! +10 XP")
		}
		_, cmd = c.Update(specialKey(tea.KeyEnter))
	}

	assert.True(t, isQuit(cmd), "expected the console to quit after the last question")
	assert.Contains(t, c.content(), "Session complete: 6/6 correct, 60 XP.")
	assert.Equal(t, session.StateFinished, ctrl.Snapshot().State)
}

func TestConsole_QuitKeepsRun(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(t)
	_, err := ctrl.StartSession(ctx, session.ModeClassic, false)
	require.NoError(t, err)

	c := newConsole(ctx, ctrl)
	typeLine(c, "drink")
	assert.Contains(t, c.content(), "Not quite. The answer is: drinks")

	_, cmd := c.Update(specialKey(tea.KeyEscape))
	assert.True(t, isQuit(cmd))
	assert.Contains(t, c.content(), "Run saved.")

	snap := ctrl.Snapshot()
	assert.Equal(t, session.StateFeedback, snap.State)
	assert.Equal(t, 1, snap.Wrong)
}

func TestConsole_Lifeline(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(t)
	_, err := ctrl.StartSession(ctx, session.ModeMillionaire, false)
	require.NoError(t, err)

	c := newConsole(ctx, ctrl)
	assert.Contains(t, c.content(), "Lifelines: :swap :time :double")

	cmd := typeLine(c, ":double")
	assert.False(t, isQuit(cmd))
	assert.Contains(t, c.content(), "Double XP armed")
	assert.True(t, ctrl.Snapshot().DoubleArmed)
	assert.Empty(t, c.input.Value())
}

func TestConsole_CountdownExpiresWithoutKeyPress(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(t)
	_, err := ctrl.StartSession(ctx, session.ModeMillionaire, false)
	require.NoError(t, err)

	c := newConsole(ctx, ctrl)
	// A running countdown schedules the next redraw.
	_, cmd := c.Update(timerTickMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.Contains(t, c.content(), "[30s]")

	for i := 0; i < 1000 && ctrl.Snapshot().State == session.StateRunning; i++ {
		ctrl.Tick()
	}
	require.Equal(t, session.StateFinished, ctrl.Snapshot().State)

	_, cmd = c.Update(timerTickMsg(time.Now()))
	assert.True(t, isQuit(cmd))
	assert.Contains(t, c.content(), "Time is up!")
	assert.Contains(t, c.content(), "Session complete: 0/0 correct, 0 XP.")
}

func TestConsole_FocusRetry(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(t)
	_, err := ctrl.StartFocus(ctx, content.TopicPresentSimple, 3)
	require.NoError(t, err)

	c := newConsole(ctx, ctrl)
	typeLine(c, "definitely wrong")
	require.Equal(t, session.StateFeedback, ctrl.Snapshot().State)
	assert.Contains(t, c.content(), "r to retry")

	c.Update(keyPress('r'))
	assert.Equal(t, session.StateRunning, ctrl.Snapshot().State)
	assert.Equal(t, 0, ctrl.Snapshot().Index)
}

func TestChoiceAnswer(t *testing.T) {
	choice := content.Question{Kind: content.KindMCQ, Options: content.Options{"go", "goes"}}
	fill := content.Question{Kind: content.KindFillBlank}

	tests := []struct {
		name string
		q    content.Question
		line string
		want string
	}{
		{"option number", choice, "2", "goes"},
		{"option text", choice, "goes", "goes"},
		{"out of range", choice, "3", "3"},
		{"zero", choice, "0", "0"},
		{"fill blank digits", fill, "2", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := choiceAnswer(tt.q, tt.line); got != tt.want {
				t.Errorf("choiceAnswer(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}
