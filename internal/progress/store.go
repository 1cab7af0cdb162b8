package progress

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/b2english/tensequest/internal/store"
)

const (
	statsKey    = "progress:stats"
	queuePrefix = "progress:queue:"
)

// DefaultDailyGoal is the number of questions a learner aims for per day.
const DefaultDailyGoal = 20

// Options configures a Store. Zero values select the defaults.
type Options struct {
	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// Location defines calendar days. Default: time.Local.
	Location *time.Location

	// DailyGoal is the daily question target. Default: DefaultDailyGoal.
	DailyGoal int

	// Rand drives queue shuffles. Default: randomly seeded.
	Rand *rand.Rand

	Logger *zap.Logger
}

// Store reads and writes DeviceStats and topic queues. Every read path
// degrades to defaults and every write failure is logged, so callers never
// see a storage error.
type Store struct {
	kv   store.KV
	opts Options

	// mu makes each read-modify-write a single turn and guards opts.Rand.
	mu sync.Mutex
}

// New creates a Store over kv.
func New(kv store.KV, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DailyGoal <= 0 {
		opts.DailyGoal = DefaultDailyGoal
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{kv: kv, opts: opts}
}

func (s *Store) today() string {
	return s.opts.Now().In(s.opts.Location).Format(dateLayout)
}

func (s *Store) yesterday() string {
	return s.opts.Now().In(s.opts.Location).AddDate(0, 0, -1).Format(dateLayout)
}

// Stats returns the persisted stats, or zero stats when nothing is stored
// or the document cannot be read.
func (s *Store) Stats(ctx context.Context) DeviceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) DeviceStats {
	raw, ok, err := s.kv.Get(ctx, statsKey)
	if err != nil {
		s.opts.Logger.Warn("read progress stats", zap.Error(err))
		return DeviceStats{}
	}
	if !ok || raw == "" {
		return DeviceStats{}
	}
	var st DeviceStats
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.opts.Logger.Warn("corrupt progress stats, using defaults", zap.Error(err))
		return DeviceStats{}
	}
	return st
}

// SaveSession records a completed session of total questions with correct
// answers and returns the updated stats. The result is returned even when
// it could not be written.
func (s *Store) SaveSession(ctx context.Context, correct, total int) DeviceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.loadLocked(ctx)
	now := s.opts.Now()
	today := s.today()

	if st.LastStreakDate != today {
		st.DailySessions = 0
		st.DailyQuestions = 0
		if st.LastStreakDate == "" {
			st.Streak = 1
		} else {
			st.Streak = nextStreak(st.Streak, st.LastStreakDate, today, s.yesterday())
		}
	}

	st.Sessions++
	st.TotalQuestions += total
	st.TotalCorrect += correct
	st.DailySessions++
	st.DailyQuestions += total
	st.LastPlayed = &now
	st.LastStreakDate = today
	st.History = addToHistory(st.History, today, correct, total)

	b, err := json.Marshal(st)
	if err != nil {
		s.opts.Logger.Error("encode progress stats", zap.Error(err))
		return st
	}
	if err := s.kv.Set(ctx, statsKey, string(b)); err != nil {
		s.opts.Logger.Warn("write progress stats", zap.Error(err))
	}
	return st
}

func addToHistory(history []DayEntry, date string, correct, total int) []DayEntry {
	idx := slices.IndexFunc(history, func(e DayEntry) bool { return e.Date == date })
	if idx < 0 {
		history = append(history, DayEntry{Date: date})
		idx = len(history) - 1
	}
	history[idx].Sessions++
	history[idx].Questions += total
	history[idx].Correct += correct

	sort.SliceStable(history, func(i, j int) bool { return history[i].Date < history[j].Date })
	if len(history) > HistoryLimit {
		history = slices.Clone(history[len(history)-HistoryLimit:])
	}
	return history
}

// WeeklyStats aggregates history entries dated within the last seven
// local days, today included.
func (s *Store) WeeklyStats(st DeviceStats) WeeklyStats {
	cutoff := s.opts.Now().In(s.opts.Location).AddDate(0, 0, -6).Format(dateLayout)

	var w WeeklyStats
	var questions, correct int
	for _, e := range st.History {
		if e.Date < cutoff {
			continue
		}
		w.DaysPracticed++
		w.TotalSessions += e.Sessions
		questions += e.Questions
		correct += e.Correct
	}
	w.AvgAccuracy = percent(correct, questions)
	return w
}

// DailyGoal reports today's progress toward the configured goal. Daily
// counters from an earlier day count as zero.
func (s *Store) DailyGoal(st DeviceStats) GoalProgress {
	g := GoalProgress{Goal: s.opts.DailyGoal}
	if st.LastStreakDate == s.today() {
		g.Answered = st.DailyQuestions
	}
	g.Remaining = max(g.Goal-g.Answered, 0)
	g.Met = g.Answered >= g.Goal
	return g
}

// Reset removes the stats and every topic queue.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, statsKey); err != nil {
		s.opts.Logger.Warn("delete progress stats", zap.Error(err))
	}
	keys, err := s.kv.Keys(ctx, queuePrefix)
	if err != nil {
		s.opts.Logger.Warn("list topic queues", zap.Error(err))
		return
	}
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			s.opts.Logger.Warn("delete topic queue", zap.String("key", k), zap.Error(err))
		}
	}
}
