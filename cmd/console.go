package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/practice"
	"github.com/b2english/tensequest/internal/session"
)

const savedNotice = "Run saved. Come back any time."

// timerTickMsg redraws the run so countdown changes show without a key press.
type timerTickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return timerTickMsg(t)
	})
}

// console is a terminal driver over a Controller. It only collects input
// and renders state; every rule lives in the controller.
type console struct {
	ctx    context.Context
	ctrl   *practice.Controller
	input  textinput.Model
	notice string
	saved  bool
}

func newConsole(ctx context.Context, ctrl *practice.Controller) *console {
	in := textinput.New()
	in.Placeholder = "answer, :swap, :time, :double or :quit"
	in.CharLimit = 120
	in.Focus()
	return &console{ctx: ctx, ctrl: ctrl, input: in}
}

// runConsole drives the installed run until it finishes or the learner
// quits. An unfinished run stays saved.
func runConsole(ctx context.Context, ctrl *practice.Controller, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(newConsole(ctx, ctrl),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	_, err := p.Run()
	return err
}

func (c *console) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

func (c *console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case timerTickMsg:
		if c.over() {
			return c, tea.Quit
		}
		return c, tickCmd()
	case tea.KeyPressMsg:
		return c.handleKey(msg)
	}
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

// over reports whether there is nothing left to play.
func (c *console) over() bool {
	s := c.ctrl.Snapshot().State
	return s == session.StateIdle || s == session.StateFinished
}

func (c *console) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if c.over() {
		return c, tea.Quit
	}
	switch msg.String() {
	case "ctrl+c", "esc":
		return c.quit()
	}

	snap := c.ctrl.Snapshot()
	if snap.State == session.StateFeedback {
		switch msg.String() {
		case "enter":
			c.notice = ""
			c.ctrl.Advance()
		case "r":
			if canRetry(snap) {
				c.notice = ""
				c.ctrl.Retry()
			}
		}
		if c.over() {
			return c, tea.Quit
		}
		return c, nil
	}

	if msg.String() != "enter" {
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		return c, cmd
	}

	line := strings.TrimSpace(c.input.Value())
	c.input.Reset()
	if line == ":quit" {
		return c.quit()
	}
	if kind, isLifeline := strings.CutPrefix(line, ":"); isLifeline {
		c.useLifeline(session.Lifeline(kind))
		return c, nil
	}
	if line == "" {
		return c, nil
	}

	q, _ := snap.Current()
	c.notice = ""
	fb, err := c.ctrl.Submit(c.ctx, choiceAnswer(q, line))
	if err != nil {
		c.notice = errorNotice(err)
		return c, nil
	}
	if fb == nil && c.over() {
		return c, tea.Quit
	}
	return c, nil
}

func (c *console) quit() (tea.Model, tea.Cmd) {
	c.saved = true
	return c, tea.Quit
}

func (c *console) useLifeline(kind session.Lifeline) {
	if err := c.ctrl.UseLifeline(kind); err != nil {
		c.notice = fmt.Sprintf("Cannot use that: %v", err)
		return
	}
	switch kind {
	case session.LifelineSwap:
		c.notice = "Question swapped."
	case session.LifelineTime:
		c.notice = "Extra time added."
	case session.LifelineDouble:
		c.notice = "Double XP armed for this question."
	}
}

func (c *console) View() tea.View {
	return tea.NewView(c.content())
}

func (c *console) content() string {
	var b strings.Builder
	snap := c.ctrl.Snapshot()
	switch snap.State {
	case session.StateFinished:
		if snap.Mode == session.ModeMillionaire && snap.Remaining == 0 {
			b.WriteString("Time is up!\n")
		}
		c.writeSummary(&b, snap)
	case session.StateFeedback:
		q, _ := snap.Current()
		writeQuestion(&b, snap, q)
		writeFeedback(&b, snap)
		if canRetry(snap) {
			b.WriteString("r to retry, Enter to continue, Esc to stop\n")
		} else {
			b.WriteString("Enter to continue, Esc to stop\n")
		}
	case session.StateRunning:
		q, _ := snap.Current()
		writeQuestion(&b, snap, q)
		b.WriteString(c.input.View())
		b.WriteString("\n")
	}
	if c.notice != "" {
		b.WriteString(c.notice)
		b.WriteString("\n")
	}
	if c.saved {
		b.WriteString(savedNotice)
		b.WriteString("\n")
	}
	return b.String()
}

func canRetry(snap session.Snapshot) bool {
	return snap.Mode == session.ModeFocus && snap.Feedback != nil && !snap.Feedback.IsCorrect
}

func writeQuestion(b *strings.Builder, snap session.Snapshot, q content.Question) {
	header := snap.Progress.Label
	switch {
	case snap.Mode == session.ModeMillionaire && snap.Index < len(snap.Ladder):
		lvl := snap.Ladder[snap.Index]
		header = fmt.Sprintf("Level %d for %d XP", lvl.Level, lvl.XPReward)
		if snap.Remaining >= 0 {
			header += fmt.Sprintf(" [%ds]", snap.Remaining)
		}
	case snap.Mode == session.ModeClassic:
		header += " " + strings.ToUpper(string(snap.Phase))
	}
	fmt.Fprintf(b, "%s   XP %d\n", header, snap.XP)
	fmt.Fprintln(b, q.Prompt.Text())

	switch {
	case q.IsChoice():
		for i, opt := range q.Options {
			fmt.Fprintf(b, "  %d) %s\n", i+1, opt)
		}
	case len(q.Options) > 0:
		fmt.Fprintf(b, "  Words: %s\n", strings.Join(q.Options, " / "))
	}
	if snap.Mode == session.ModeMillionaire {
		var left []string
		for _, l := range []struct {
			kind session.Lifeline
			used bool
		}{
			{session.LifelineSwap, snap.Lifelines.Swap},
			{session.LifelineTime, snap.Lifelines.Time},
			{session.LifelineDouble, snap.Lifelines.Double},
		} {
			if !l.used {
				left = append(left, ":"+string(l.kind))
			}
		}
		if len(left) > 0 {
			fmt.Fprintf(b, "  Lifelines: %s\n", strings.Join(left, " "))
		}
	}
}

func writeFeedback(b *strings.Builder, snap session.Snapshot) {
	fb := snap.Feedback
	if fb == nil {
		return
	}
	if fb.IsCorrect {
		fmt.Fprintf(b, "Correct! +%d XP\n", fb.XPAwarded)
		return
	}
	if fb.CorrectAnswer != "" {
		fmt.Fprintf(b, "Not quite. The answer is: %s\n", fb.CorrectAnswer)
	} else {
		b.WriteString("Not quite.\n")
	}
	if q, ok := snap.Current(); ok && q.Explanation != "" {
		fmt.Fprintln(b, q.Explanation)
	}
}

func errorNotice(err error) string {
	switch {
	case content.IsForbidden(err):
		return "You do not have permission to answer this activity."
	case content.IsUnauthorized(err):
		return "Your session expired. Update backend.token and try again."
	default:
		return fmt.Sprintf("Could not submit your answer: %v. Try again.", err)
	}
}

func (c *console) writeSummary(b *strings.Builder, snap session.Snapshot) {
	sum := c.ctrl.Summary()
	if sum == nil {
		fmt.Fprintf(b, "Run over: %d/%d correct, %d XP.\n", snap.Correct, len(snap.Results), snap.XP)
		return
	}
	fmt.Fprintf(b, "Session complete: %d/%d correct, %d XP", sum.Correct, sum.Questions, sum.XP)
	if sum.BonusXP > 0 {
		fmt.Fprintf(b, " (%d bonus)", sum.BonusXP)
	}
	b.WriteString(".\n")
	fmt.Fprintf(b, "Day streak: %d. Accuracy so far: %d%%.\n", sum.Stats.Streak, sum.Stats.Accuracy())
	if sum.Daily {
		b.WriteString("Daily mission complete. See you tomorrow!\n")
	}
}

// choiceAnswer maps a 1-based option number to the option text for choice
// questions. Anything else is sent as typed.
func choiceAnswer(q content.Question, line string) string {
	if !q.IsChoice() {
		return line
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(q.Options) {
		return line
	}
	return q.Options[n-1]
}
