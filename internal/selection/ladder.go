package selection

import (
	"context"

	"github.com/b2english/tensequest/internal/content"
)

// XPPerLevel is the ladder reward step: level n pays n × XPPerLevel.
const XPPerLevel = 100

// LadderPolicy builds a millionaire run: one question per level, with
// levels climbing from the low band to the high band.
type LadderPolicy struct {
	cfg Config
	p   *picker
}

// NewLadderPolicy creates a LadderPolicy.
func NewLadderPolicy(cfg Config) *LadderPolicy {
	cfg = cfg.withDefaults()
	return &LadderPolicy{cfg: cfg, p: &picker{rnd: cfg.Rand}}
}

func (l *LadderPolicy) Name() string { return PolicyLadder }

// bandFor maps a 1-based level to its band: the first third of the levels
// draw from low, the second third from mid, the rest from high.
func (l *LadderPolicy) bandFor(level int, low, mid, high []content.Activity) []content.Activity {
	switch {
	case level <= l.cfg.Levels/3:
		return low
	case level <= 2*l.cfg.Levels/3:
		return mid
	default:
		return high
	}
}

// Select picks a random activity per level, fetches the distinct ones in
// parallel, then a random unused question per level, preferring ones not
// shown recently. Levels with nothing left are skipped.
func (l *LadderPolicy) Select(ctx context.Context, catalog content.Catalog, activities []content.Activity, history History) (Pool, error) {
	if len(activities) == 0 {
		return Pool{}, ErrEmptyPool
	}
	low, mid, high := Bands(activities)

	type slot struct {
		level    int
		activity int64
	}
	slots := make([]slot, 0, l.cfg.Levels)
	var acts []content.Activity
	for level := 1; level <= l.cfg.Levels; level++ {
		band := l.bandFor(level, low, mid, high)
		if len(band) == 0 {
			band = activities
		}
		act, _ := l.p.activity(band)
		slots = append(slots, slot{level: level, activity: act.ID})
		acts = append(acts, act)
	}

	fetched, err := fetchAll(ctx, catalog, uniqueIDs(acts))
	if err != nil {
		return Pool{}, err
	}

	cutoff := l.cfg.Now().Add(-l.cfg.RecentWindow)
	used := map[int64]bool{}
	var pool Pool
	for _, s := range slots {
		candidates := dedupe(filterValid(fetched[s.activity]), used)
		var fresh []content.Question
		for _, q := range candidates {
			if !isRecent(history, q, cutoff) {
				fresh = append(fresh, q)
			}
		}
		if len(fresh) == 0 {
			fresh = candidates
		}
		if len(fresh) == 0 {
			continue
		}
		q := fresh[l.p.intN(len(fresh))]
		used[q.ID] = true
		pool.Questions = append(pool.Questions, q)
		// Skipped slots close up, so the reward follows the level shown.
		pool.Rewards = append(pool.Rewards, len(pool.Questions)*XPPerLevel)
	}

	if len(pool.Questions) == 0 {
		return Pool{}, ErrEmptyPool
	}

	var leftovers []content.Question
	for _, id := range uniqueIDs(acts) {
		leftovers = append(leftovers, filterValid(fetched[id])...)
	}
	pool.Spares = l.p.shuffle(dedupe(leftovers, used))
	pool.SeedActivityID = pool.Questions[0].ActivityID
	observe(PolicyLadder, pool)
	return pool, nil
}
