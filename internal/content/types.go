package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Question kinds as sent by the backend. Several spellings of multiple
// choice exist in older seed data.
const (
	KindChoice           = "choice"
	KindMCQ              = "mcq"
	KindMultipleChoice   = "multiple_choice"
	KindTrueFalse        = "true_false"
	KindSentenceOrdering = "sentence_ordering"
	KindFillBlank        = "fill_blank"
	KindOrderWords       = "order_words"
	KindText             = "text"
)

// Activity is a backend exercise grouping. Only ID and Difficulty matter
// to the engine; the rest is carried for display.
type Activity struct {
	ID          int64  `json:"id"`
	TenseID     int64  `json:"tense_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Difficulty  int    `json:"difficulty"`
	IsActive    bool   `json:"is_active"`
}

// Question is immutable once fetched; identity is ID.
type Question struct {
	ID          int64   `json:"id"`
	ActivityID  int64   `json:"activity_id"`
	Kind        string  `json:"kind"`
	Prompt      Prompt  `json:"prompt"`
	Options     Options `json:"options,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
	XPReward    int     `json:"xp_reward"`
	SortOrder   int     `json:"sort_order"`

	// Answer is only known for locally authored questions (focus mode).
	// Remote questions are graded by the backend.
	Answer string `json:"answer,omitempty"`
}

// IsChoice reports whether the question is answered by picking an option.
func (q Question) IsChoice() bool {
	return IsChoiceKind(q.Kind)
}

// IsChoiceKind reports whether kind is one of the multiple-choice spellings.
func IsChoiceKind(kind string) bool {
	switch kind {
	case KindChoice, KindMCQ, KindMultipleChoice, KindTrueFalse:
		return true
	}
	return false
}

// Options is the list of choices for a question. The backend contract
// types it as "any", so decoding tolerates non-list shapes by treating
// them as absent.
type Options []string

// UnmarshalJSON accepts a list of strings or scalars. Objects, numbers and
// null decode to nil.
func (o *Options) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		*o = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case nil:
			continue
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	*o = out
	return nil
}

// Feedback is the grading result for one submission.
type Feedback struct {
	IsCorrect     bool   `json:"is_correct"`
	XPAwarded     int    `json:"xp_awarded"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// User is the authenticated learner profile.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	TotalXP  int    `json:"total_xp"`
}

// UserStats is returned without a schema by the backend.
type UserStats map[string]any

// SubmitRequest is the wire shape of an answer submission.
type SubmitRequest struct {
	AttemptID  int64   `json:"attempt_id"`
	QuestionID int64   `json:"question_id"`
	UserAnswer *string `json:"user_answer"`
	TimeMs     *int64  `json:"time_ms"`
}

// Catalog lists the practice content.
type Catalog interface {
	ListActivities(ctx context.Context) ([]Activity, error)
	ListQuestions(ctx context.Context, activityID int64) ([]Question, error)
}

// Grading creates attempts and grades answers against them.
type Grading interface {
	StartAttempt(ctx context.Context, activityID int64) (int64, error)
	SubmitAnswer(ctx context.Context, req SubmitRequest) (*Feedback, error)
}

// Profiles reads learner totals.
type Profiles interface {
	Me(ctx context.Context) (*User, error)
	UserStats(ctx context.Context, userID int64) (UserStats, error)
}

// Service is the full backend collaborator.
type Service interface {
	Catalog
	Grading
	Profiles
}

// NewSubmitRequest builds a submission. An empty answer is sent as null and
// a non-positive elapsed time is omitted.
func NewSubmitRequest(attemptID, questionID int64, answer string, elapsed time.Duration) SubmitRequest {
	req := SubmitRequest{
		AttemptID:  attemptID,
		QuestionID: questionID,
		UserAnswer: nullableAnswer(answer),
	}
	if elapsed > 0 {
		ms := elapsed.Milliseconds()
		req.TimeMs = &ms
	}
	return req
}

// nullableAnswer converts an empty answer to a JSON null, as the backend
// expects for unanswered submissions.
func nullableAnswer(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
