package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const sessionEventsTable = "session_events"

type eventRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

// sessionEventRow is one session_events row as scanned by entsql.ScanSlice.
type sessionEventRow struct {
	ID           int64  `sql:"id"`
	Sequence     int64  `sql:"sequence"`
	Timestamp    int64  `sql:"timestamp"`
	SessionID    string `sql:"session_id"`
	Mode         string `sql:"mode"`
	Daily        bool   `sql:"daily"`
	Questions    int    `sql:"questions"`
	Correct      int    `sql:"correct"`
	XP           int    `sql:"xp"`
	DurationSecs int    `sql:"duration_secs"`
}

func (r sessionEventRow) event() SessionEvent {
	return SessionEvent{
		ID:        r.ID,
		Sequence:  r.Sequence,
		Timestamp: time.UnixMilli(r.Timestamp),
		SessionEventData: SessionEventData{
			SessionID:       r.SessionID,
			Mode:            r.Mode,
			Daily:           r.Daily,
			QuestionsServed: r.Questions,
			CorrectAnswers:  r.Correct,
			XP:              r.XP,
			DurationSecs:    r.DurationSecs,
		},
	}
}

func (r *eventRepo) AppendSessionEvent(ctx context.Context, data SessionEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(sessionEventsTable).
		Set("sequence", seqNum).
		Set("timestamp", time.Now().UnixMilli()).
		Set("session_id", data.SessionID).
		Set("mode", data.Mode).
		Set("daily", data.Daily).
		Set("questions", data.QuestionsServed).
		Set("correct", data.CorrectAnswers).
		Set("xp", data.XP).
		Set("duration_secs", data.DurationSecs).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save session event: %w", err)
	}
	return nil
}

func (r *eventRepo) QuerySessionEvents(ctx context.Context, opts QueryOpts) ([]SessionEvent, error) {
	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From.UnixMilli()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", opts.To.UnixMilli()))
	}

	sel := entsql.Dialect(dialect.SQLite).
		Select("id", "sequence", "timestamp", "session_id", "mode", "daily",
			"questions", "correct", "xp", "duration_secs").
		From(entsql.Table(sessionEventsTable)).
		OrderBy(entsql.Desc("sequence"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var scanned []sessionEventRow
	if err := entsql.ScanSlice(rows, &scanned); err != nil {
		return nil, fmt.Errorf("scan session events: %w", err)
	}
	events := make([]SessionEvent, 0, len(scanned))
	for _, row := range scanned {
		events = append(events, row.event())
	}
	return events, nil
}

func (r *eventRepo) ClearSessionEvents(ctx context.Context) error {
	query, args := entsql.Dialect(dialect.SQLite).Delete(sessionEventsTable).Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("clear session events: %w", err)
	}
	return nil
}
