package selection

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/b2english/tensequest/internal/content"
)

// LRUPolicy widens the pool to several activities per band and ranks every
// question by novelty: never-shown questions first in random order, then
// shown ones from least to most recently shown.
type LRUPolicy struct {
	cfg Config
	p   *picker
}

// NewLRUPolicy creates an LRUPolicy.
func NewLRUPolicy(cfg Config) *LRUPolicy {
	cfg = cfg.withDefaults()
	return &LRUPolicy{cfg: cfg, p: &picker{rnd: cfg.Rand}}
}

func (l *LRUPolicy) Name() string { return PolicyLRU }

type ranked struct {
	q    content.Question
	rank float64
}

// Select tolerates individual fetch failures; it fails only when nothing
// selectable remains.
func (l *LRUPolicy) Select(ctx context.Context, catalog content.Catalog, activities []content.Activity, history History) (Pool, error) {
	low, mid, high := Bands(activities)
	bands := [][]content.Activity{
		l.p.activities(low, l.cfg.ActivitiesPerBand),
		l.p.activities(mid, l.cfg.ActivitiesPerBand),
		l.p.activities(high, l.cfg.ActivitiesPerBand),
	}

	fetched := fetchTolerant(ctx, catalog, uniqueIDs(bands...), PolicyLRU, l.cfg.Logger)
	if err := ctx.Err(); err != nil {
		return Pool{}, err
	}

	var merged []content.Question
	for _, band := range bands {
		var qs []content.Question
		for _, act := range band {
			qs = append(qs, fetched[act.ID]...)
		}
		merged = append(merged, dedupe(filterValid(qs), nil)...)
	}

	pool := l.rank(merged, history)
	if len(pool) == 0 {
		return Pool{}, ErrEmptyPool
	}

	size := min(l.cfg.PoolSize, len(pool))
	out := Pool{
		Questions:      pool[:size],
		Spares:         pool[size:],
		SeedActivityID: pool[0].ActivityID,
	}
	l.cfg.Logger.Debug("lru pool selected",
		zap.Int("candidates", len(merged)),
		zap.Int("selected", size),
		zap.Int("spares", len(out.Spares)),
	)
	observe(PolicyLRU, out)
	return out, nil
}

// rank orders qs by ascending rank and drops repeated ids. Unseen questions
// rank in [0, 1); seen ones rank at their last-seen Unix milliseconds,
// which is always larger.
func (l *LRUPolicy) rank(qs []content.Question, history History) []content.Question {
	items := make([]ranked, len(qs))
	for i, q := range qs {
		if last, ok := history[q.ID]; ok {
			items[i] = ranked{q: q, rank: float64(last.UnixMilli())}
		} else {
			items[i] = ranked{q: q, rank: l.p.float()}
		}
	}
	slices.SortStableFunc(items, func(a, b ranked) int { return cmp.Compare(a.rank, b.rank) })

	out := make([]content.Question, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if seen[it.q.ID] {
			continue
		}
		seen[it.q.ID] = true
		out = append(out, it.q)
	}
	return out
}
