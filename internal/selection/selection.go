// Package selection builds the question pool of a practice run from the
// backend catalog and the learner's exposure history.
package selection

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/metrics"
)

// ErrEmptyPool is returned when no selectable question could be gathered.
var ErrEmptyPool = errors.New("no questions could be loaded, try again")

// Policy names accepted by NewPolicy.
const (
	PolicyStrict = "strict"
	PolicyLRU    = "lru"
	PolicyLadder = "ladder"
)

// History maps a question id to when it was last shown.
type History map[int64]time.Time

// Pool is the outcome of a selection.
type Pool struct {
	// Questions is the ordered run.
	Questions []content.Question

	// Spares are valid questions that did not make the run, used by the
	// swap lifeline.
	Spares []content.Question

	// Rewards holds the per-level XP of a ladder run, parallel to Questions.
	Rewards []int

	// SeedActivityID is the activity whose attempt is opened up front.
	SeedActivityID int64
}

// Policy selects a run from the catalog.
type Policy interface {
	Name() string
	Select(ctx context.Context, catalog content.Catalog, activities []content.Activity, history History) (Pool, error)
}

// Config tunes the policies. Zero values select the defaults.
type Config struct {
	// PoolSize is the run length of the LRU policy. Default: 20.
	PoolSize int

	// ActivitiesPerBand is how many activities the LRU policy samples per
	// band. Default: 3.
	ActivitiesPerBand int

	// BandCounts is how many questions the strict policy takes from the
	// low, mid and high bands. Default: 2, 3, 1.
	BandCounts [3]int

	// RecentWindow is how long a shown question counts as recent.
	// Default: 7 days.
	RecentWindow time.Duration

	// Levels is the ladder length. Default: 15.
	Levels int

	Now    func() time.Time
	Rand   *rand.Rand
	Logger *zap.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:          20,
		ActivitiesPerBand: 3,
		BandCounts:        [3]int{2, 3, 1},
		RecentWindow:      7 * 24 * time.Hour,
		Levels:            15,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.ActivitiesPerBand <= 0 {
		c.ActivitiesPerBand = d.ActivitiesPerBand
	}
	if c.BandCounts == [3]int{} {
		c.BandCounts = d.BandCounts
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = d.RecentWindow
	}
	if c.Levels <= 0 {
		c.Levels = d.Levels
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// NewPolicy returns the classic-mode policy called name. An empty name
// selects the strict policy.
func NewPolicy(name string, cfg Config) (Policy, error) {
	switch name {
	case "", PolicyStrict:
		return NewStrictPolicy(cfg), nil
	case PolicyLRU:
		return NewLRUPolicy(cfg), nil
	case PolicyLadder:
		return NewLadderPolicy(cfg), nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q", name)
	}
}

// Bands sorts activities by difficulty and splits them into thirds of
// ceil(n/3). Trailing bands may be short or empty.
func Bands(activities []content.Activity) (low, mid, high []content.Activity) {
	sorted := sortByDifficulty(activities)
	third := (len(sorted) + 2) / 3
	low = sorted[:min(third, len(sorted))]
	mid = sorted[min(third, len(sorted)):min(2*third, len(sorted))]
	high = sorted[min(2*third, len(sorted)):]
	return low, mid, high
}

func sortByDifficulty(activities []content.Activity) []content.Activity {
	sorted := slices.Clone(activities)
	slices.SortStableFunc(sorted, func(a, b content.Activity) int {
		return cmp.Compare(a.Difficulty, b.Difficulty)
	})
	return sorted
}

// Valid reports whether q can be shown: option-based kinds need options.
func Valid(q content.Question) bool {
	if q.IsChoice() || q.Kind == content.KindSentenceOrdering {
		return len(q.Options) > 0
	}
	return true
}

func filterValid(qs []content.Question) []content.Question {
	out := make([]content.Question, 0, len(qs))
	for _, q := range qs {
		if Valid(q) {
			out = append(out, q)
		}
	}
	return out
}

func dedupe(qs []content.Question, exclude map[int64]bool) []content.Question {
	seen := make(map[int64]bool, len(qs))
	out := make([]content.Question, 0, len(qs))
	for _, q := range qs {
		if seen[q.ID] || exclude[q.ID] {
			continue
		}
		seen[q.ID] = true
		out = append(out, q)
	}
	return out
}

func idSet(qs []content.Question) map[int64]bool {
	m := make(map[int64]bool, len(qs))
	for _, q := range qs {
		m[q.ID] = true
	}
	return m
}

// picker serializes access to the shared random source.
type picker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (p *picker) intN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.IntN(n)
}

func (p *picker) float() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64()
}

// shuffle returns a Fisher-Yates shuffled copy of qs.
func (p *picker) shuffle(qs []content.Question) []content.Question {
	out := slices.Clone(qs)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// sample returns k random questions from qs and the rest, via a partial
// Fisher-Yates shuffle.
func (p *picker) sample(qs []content.Question, k int) (picked, rest []content.Question) {
	out := slices.Clone(qs)
	k = min(k, len(out))
	p.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + p.rnd.IntN(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	p.mu.Unlock()
	return out[:k], out[k:]
}

func (p *picker) activity(acts []content.Activity) (content.Activity, bool) {
	if len(acts) == 0 {
		return content.Activity{}, false
	}
	return acts[p.intN(len(acts))], true
}

// activities returns up to k distinct random activities from acts.
func (p *picker) activities(acts []content.Activity, k int) []content.Activity {
	if len(acts) <= k {
		return acts
	}
	out := slices.Clone(acts)
	p.mu.Lock()
	p.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	p.mu.Unlock()
	return out[:k]
}

func isRecent(history History, q content.Question, cutoff time.Time) bool {
	last, ok := history[q.ID]
	return ok && !last.Before(cutoff)
}

// fetchAll loads the questions of every activity in ids concurrently. The
// first failure cancels the rest and is returned.
func fetchAll(ctx context.Context, catalog content.Catalog, ids []int64) (map[int64][]content.Question, error) {
	results := make([][]content.Question, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			qs, err := catalog.ListQuestions(gctx, id)
			if err != nil {
				return fmt.Errorf("list questions of activity %d: %w", id, err)
			}
			results[i] = qs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[int64][]content.Question, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out, nil
}

// fetchTolerant loads the questions of every activity concurrently. A
// failed fetch contributes nothing and is logged.
func fetchTolerant(ctx context.Context, catalog content.Catalog, ids []int64, policy string, logger *zap.Logger) map[int64][]content.Question {
	results := make([][]content.Question, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			qs, err := catalog.ListQuestions(ctx, id)
			if err != nil {
				metrics.FetchFailuresTotal.WithLabelValues(policy).Inc()
				logger.Warn("question fetch failed, skipping activity",
					zap.Int64("activity_id", id),
					zap.Error(err),
				)
				return nil
			}
			results[i] = qs
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[int64][]content.Question, len(ids))
	for i, id := range ids {
		out[id] = append(out[id], results[i]...)
	}
	return out
}

func uniqueIDs(acts ...[]content.Activity) []int64 {
	var ids []int64
	seen := map[int64]bool{}
	for _, group := range acts {
		for _, a := range group {
			if !seen[a.ID] {
				seen[a.ID] = true
				ids = append(ids, a.ID)
			}
		}
	}
	return ids
}

func observe(policy string, pool Pool) {
	metrics.PoolSize.WithLabelValues(policy).Observe(float64(len(pool.Questions)))
}
