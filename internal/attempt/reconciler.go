// Package attempt maps answered questions to backend attempts. Attempts are
// opened lazily per activity, cached for the run and replaced when the
// backend reports one gone.
package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/b2english/tensequest/internal/answer"
	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/metrics"
)

// ErrNoFeedback is returned when grading succeeded without a result.
var ErrNoFeedback = errors.New("attempt: grading returned no feedback")

// Options configures a Reconciler.
type Options struct {
	Policy RetryPolicy
	Logger *zap.Logger
}

// Reconciler owns the attempt cache of one run. The cache is never
// persisted; only the current attempt id is.
type Reconciler struct {
	grading content.Grading
	policy  RetryPolicy
	logger  *zap.Logger

	mu      sync.Mutex
	cache   map[int64]int64 // activity id -> attempt id
	current int64
}

// New creates a Reconciler. A zero Options.Policy selects
// DefaultRetryPolicy.
func New(grading content.Grading, opts Options) *Reconciler {
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = DefaultRetryPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reconciler{
		grading: grading,
		policy:  opts.Policy,
		logger:  opts.Logger,
		cache:   make(map[int64]int64),
	}
}

// SubmitInput is one answer to submit.
type SubmitInput struct {
	ActivityID int64
	QuestionID int64
	Answer     string
	Elapsed    time.Duration
}

// Resolve returns the cached attempt of activityID, starting one when
// none is cached.
func (r *Reconciler) Resolve(ctx context.Context, activityID int64) (int64, error) {
	r.mu.Lock()
	id, ok := r.cache[activityID]
	r.mu.Unlock()
	if ok {
		return id, nil
	}
	return r.renew(ctx, activityID)
}

// renew starts a fresh attempt and replaces the cache entry.
func (r *Reconciler) renew(ctx context.Context, activityID int64) (int64, error) {
	id, err := r.grading.StartAttempt(ctx, activityID)
	if err != nil {
		return 0, err
	}
	r.Prime(activityID, id)
	return id, nil
}

// Submit sends one answer. When the retry policy allows it, a failed
// submission is re-sent once against a freshly started attempt. Errors are
// returned unmodified.
func (r *Reconciler) Submit(ctx context.Context, in SubmitInput) (*content.Feedback, error) {
	for attempt := 0; ; attempt++ {
		var (
			id  int64
			err error
		)
		if attempt == 0 {
			id, err = r.Resolve(ctx, in.ActivityID)
		} else {
			id, err = r.renew(ctx, in.ActivityID)
		}
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		req := content.NewSubmitRequest(id, in.QuestionID, in.Answer, in.Elapsed)
		fb, err := r.grading.SubmitAnswer(ctx, req)
		if err == nil && fb == nil {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			return nil, ErrNoFeedback
		}
		if err == nil {
			if fb.IsCorrect {
				metrics.SubmissionsTotal.WithLabelValues("correct").Inc()
			} else {
				metrics.SubmissionsTotal.WithLabelValues("incorrect").Inc()
			}
			return fb, nil
		}

		if !r.policy.Allows(attempt, err) {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.AttemptRetriesTotal.Inc()
		r.logger.Warn("attempt expired, retrying with a new one",
			zap.Int64("activity_id", in.ActivityID),
			zap.Int64("attempt_id", id),
			zap.Error(err),
		)
	}
}

// Grade submits a learner answer for q, normalized for the backend.
func (r *Reconciler) Grade(ctx context.Context, q content.Question, given string, elapsed time.Duration) (*content.Feedback, error) {
	return r.Submit(ctx, SubmitInput{
		ActivityID: q.ActivityID,
		QuestionID: q.ID,
		Answer:     answer.ForSubmission(q, given),
		Elapsed:    elapsed,
	})
}

// Prime caches an attempt that was started elsewhere and makes it current.
func (r *Reconciler) Prime(activityID, attemptID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[activityID] = attemptID
	r.current = attemptID
}

// Cached returns the cached attempt of activityID.
func (r *Reconciler) Cached(activityID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.cache[activityID]
	return id, ok
}

// Current returns the most recently started or primed attempt, or 0.
func (r *Reconciler) Current() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetCurrent restores the current attempt id from a snapshot without
// touching the cache.
func (r *Reconciler) SetCurrent(attemptID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = attemptID
}

// Reset drops every cached attempt.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
	r.current = 0
}
