package content

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// Mock is a deterministic in-memory Service for tests and offline play.
// Attempts are numbered from 1; submitting against an unknown or expired
// attempt returns a 404 APIError, like the real backend.
type Mock struct {
	mu sync.Mutex

	activities []Activity
	questions  map[int64][]Question
	listErrs   map[int64]error
	submitErrs []error
	startErrs  []error

	nextAttempt int64
	attempts    map[int64]int64 // attempt id -> activity id
	user        User

	StartCalls  []int64
	Submissions []SubmitRequest
}

var _ Service = (*Mock)(nil)

// NewMock creates a Mock serving the given activities. Questions are added
// with AddQuestions.
func NewMock(activities ...Activity) *Mock {
	return &Mock{
		activities: activities,
		questions:  make(map[int64][]Question),
		listErrs:   make(map[int64]error),
		attempts:   make(map[int64]int64),
		user:       User{ID: 1, Username: "offline"},
	}
}

// NewOfflineMock builds a Mock from the built-in banks, one activity per
// question kind so the three difficulty bands are populated.
func NewOfflineMock() *Mock {
	groups := map[string]int64{KindMCQ: 1, KindFillBlank: 2, KindOrderWords: 3}
	m := NewMock(
		Activity{ID: 1, Type: KindMCQ, Title: "Pick the verb form", Difficulty: 1, IsActive: true},
		Activity{ID: 2, Type: KindFillBlank, Title: "Fill the gap", Difficulty: 2, IsActive: true},
		Activity{ID: 3, Type: KindOrderWords, Title: "Build the sentence", Difficulty: 3, IsActive: true},
	)
	for _, topic := range Topics() {
		for i, q := range FocusBank(topic) {
			q.ActivityID = groups[q.Kind]
			q.SortOrder = i
			m.AddQuestions(q)
		}
	}
	return m
}

// AddQuestions registers questions under their ActivityID.
func (m *Mock) AddQuestions(qs ...Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range qs {
		m.questions[q.ActivityID] = append(m.questions[q.ActivityID], q)
	}
}

// FailList makes ListQuestions for activityID return err.
func (m *Mock) FailList(activityID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErrs[activityID] = err
}

// QueueSubmitError makes the next SubmitAnswer call return err.
func (m *Mock) QueueSubmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErrs = append(m.submitErrs, err)
}

// QueueStartError makes the next StartAttempt call return err.
func (m *Mock) QueueStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErrs = append(m.startErrs, err)
}

// Expire forgets an attempt so later submissions against it get a 404.
func (m *Mock) Expire(attemptID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, attemptID)
}

// SubmitCount returns the number of SubmitAnswer calls made.
func (m *Mock) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Submissions)
}

func (m *Mock) ListActivities(ctx context.Context) ([]Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Activity, len(m.activities))
	copy(out, m.activities)
	return out, nil
}

func (m *Mock) ListQuestions(ctx context.Context, activityID int64) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listErrs[activityID]; err != nil {
		return nil, err
	}
	qs := m.questions[activityID]
	out := make([]Question, len(qs))
	copy(out, qs)
	return out, nil
}

func (m *Mock) StartAttempt(ctx context.Context, activityID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls = append(m.StartCalls, activityID)
	if len(m.startErrs) > 0 {
		err := m.startErrs[0]
		m.startErrs = m.startErrs[1:]
		return 0, err
	}
	m.nextAttempt++
	m.attempts[m.nextAttempt] = activityID
	return m.nextAttempt, nil
}

func (m *Mock) SubmitAnswer(ctx context.Context, req SubmitRequest) (*Feedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submissions = append(m.Submissions, req)

	if len(m.submitErrs) > 0 {
		err := m.submitErrs[0]
		m.submitErrs = m.submitErrs[1:]
		return nil, err
	}
	if _, ok := m.attempts[req.AttemptID]; !ok {
		return nil, &APIError{Status: http.StatusNotFound, Message: "Attempt not found"}
	}

	q, ok := m.findLocked(req.QuestionID)
	if !ok {
		return nil, &APIError{Status: http.StatusNotFound, Message: "Question not found"}
	}

	given := ""
	if req.UserAnswer != nil {
		given = *req.UserAnswer
	}
	fb := &Feedback{CorrectAnswer: q.Answer}
	if q.Answer != "" && strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(q.Answer)) {
		fb.IsCorrect = true
		fb.XPAwarded = q.XPReward
		m.user.TotalXP += q.XPReward
	}
	return fb, nil
}

func (m *Mock) Me(ctx context.Context) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user
	return &u, nil
}

func (m *Mock) UserStats(ctx context.Context, userID int64) (UserStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if userID != m.user.ID {
		return nil, &APIError{Status: http.StatusForbidden, Message: "Not allowed"}
	}
	return UserStats{"total_xp": m.user.TotalXP, "attempts": len(m.attempts)}, nil
}

func (m *Mock) findLocked(questionID int64) (Question, bool) {
	for _, qs := range m.questions {
		for _, q := range qs {
			if q.ID == questionID {
				return q, true
			}
		}
	}
	return Question{}, false
}
