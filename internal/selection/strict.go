package selection

import (
	"context"

	"github.com/b2english/tensequest/internal/content"
)

// StrictPolicy takes one random activity per difficulty band and samples a
// fixed number of questions from each, skipping questions shown within the
// recent window unless that would empty the band.
type StrictPolicy struct {
	cfg Config
	p   *picker
}

// NewStrictPolicy creates a StrictPolicy.
func NewStrictPolicy(cfg Config) *StrictPolicy {
	cfg = cfg.withDefaults()
	return &StrictPolicy{cfg: cfg, p: &picker{rnd: cfg.Rand}}
}

func (s *StrictPolicy) Name() string { return PolicyStrict }

// Select fetches the three band activities in parallel. Any fetch failure
// fails the selection.
func (s *StrictPolicy) Select(ctx context.Context, catalog content.Catalog, activities []content.Activity, history History) (Pool, error) {
	if len(activities) == 0 {
		return Pool{}, ErrEmptyPool
	}

	sorted := sortByDifficulty(activities)
	low, mid, high := Bands(activities)

	warmup, ok := s.p.activity(low)
	if !ok {
		warmup = sorted[0]
	}
	mainAct, ok := s.p.activity(mid)
	if !ok {
		mainAct = sorted[len(sorted)/2]
	}
	boss, ok := s.p.activity(high)
	if !ok {
		boss = sorted[len(sorted)-1]
	}

	fetched, err := fetchAll(ctx, catalog, uniqueIDs([]content.Activity{warmup, mainAct, boss}))
	if err != nil {
		return Pool{}, err
	}

	cutoff := s.cfg.Now().Add(-s.cfg.RecentWindow)
	var pool Pool
	used := map[int64]bool{}
	for i, act := range []content.Activity{warmup, mainAct, boss} {
		candidates := dedupe(filterValid(fetched[act.ID]), used)
		fresh := make([]content.Question, 0, len(candidates))
		for _, q := range candidates {
			if !isRecent(history, q, cutoff) {
				fresh = append(fresh, q)
			}
		}
		if len(fresh) == 0 {
			fresh = candidates
		}

		picked, rest := s.p.sample(fresh, s.cfg.BandCounts[i])
		pool.Questions = append(pool.Questions, picked...)
		for _, q := range picked {
			used[q.ID] = true
		}
		pool.Spares = append(pool.Spares, rest...)
	}

	if len(pool.Questions) == 0 {
		return Pool{}, ErrEmptyPool
	}
	// Nothing already in the run may come back through a swap.
	pool.Spares = dedupe(pool.Spares, idSet(pool.Questions))
	pool.SeedActivityID = mainAct.ID
	observe(PolicyStrict, pool)
	return pool, nil
}
