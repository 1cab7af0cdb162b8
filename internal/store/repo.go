package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// SessionEventData captures one finished practice session.
type SessionEventData struct {
	SessionID       string
	Mode            string
	Daily           bool
	QuestionsServed int
	CorrectAnswers  int
	XP              int
	DurationSecs    int
}

// SessionEvent is a stored SessionEventData.
type SessionEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	SessionEventData
}

// EventRepo provides append access to the session log.
type EventRepo interface {
	// AppendSessionEvent records a finished session.
	AppendSessionEvent(ctx context.Context, data SessionEventData) error

	// QuerySessionEvents returns sessions newest first.
	QuerySessionEvents(ctx context.Context, opts QueryOpts) ([]SessionEvent, error)

	// ClearSessionEvents deletes the whole log.
	ClearSessionEvents(ctx context.Context) error
}
