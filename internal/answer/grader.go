package answer

import (
	"context"
	"time"

	"github.com/b2english/tensequest/internal/content"
)

// LocalGrader grades questions that carry their own answer. It is used by
// focus practice, which never talks to the backend.
type LocalGrader struct{}

// Grade compares given with q.Answer and awards q.XPReward when correct.
func (LocalGrader) Grade(ctx context.Context, q content.Question, given string, _ time.Duration) (*content.Feedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fb := &content.Feedback{CorrectAnswer: q.Answer}
	if Match(q, given) {
		fb.IsCorrect = true
		fb.XPAwarded = q.XPReward
	}
	return fb, nil
}
