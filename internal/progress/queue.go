package progress

import (
	"context"
	"encoding/json"
	"slices"

	"go.uber.org/zap"
)

// topicQueue is a persisted shuffle of a topic's question pool. Draws walk
// the queue from Cursor; when it runs out the pool is reshuffled.
type topicQueue struct {
	Pool   []string `json:"pool"` // sorted membership, to detect pool changes
	Order  []string `json:"order"`
	Cursor int      `json:"cursor"`
}

// PickQuestions draws up to count distinct ids from pool for topic. Within
// one shuffle cycle no id repeats; across cycles the order is re-randomized.
// The result never holds more than len(pool) ids. When the queue cannot be
// read or written the ids are sampled without persistence.
func (s *Store) PickQuestions(ctx context.Context, topic string, count int, pool []string) []string {
	pool = dedupe(pool)
	if count <= 0 || len(pool) == 0 {
		return nil
	}
	count = min(count, len(pool))

	s.mu.Lock()
	defer s.mu.Unlock()

	key := queuePrefix + topic
	q, ok := s.loadQueueLocked(ctx, key)
	if !ok {
		return s.sampleLocked(pool, count)
	}

	sorted := slices.Sorted(slices.Values(pool))
	if !slices.Equal(q.Pool, sorted) || q.Cursor < 0 || q.Cursor > len(q.Order) {
		q = topicQueue{Pool: sorted, Order: s.shuffledLocked(pool)}
	}

	out := make([]string, 0, count)
	taken := make(map[string]bool, count)
	for len(out) < count {
		if q.Cursor >= len(q.Order) {
			q.Order = s.shuffledLocked(pool)
			q.Cursor = 0
		}
		id := q.Order[q.Cursor]
		q.Cursor++
		if taken[id] {
			continue
		}
		taken[id] = true
		out = append(out, id)
	}

	b, err := json.Marshal(q)
	if err == nil {
		err = s.kv.Set(ctx, key, string(b))
	}
	if err != nil {
		s.opts.Logger.Warn("write topic queue", zap.String("topic", topic), zap.Error(err))
	}
	return out
}

// loadQueueLocked returns the stored queue. ok is false only when storage
// is unavailable or the document is corrupt; a missing queue is an empty
// one.
func (s *Store) loadQueueLocked(ctx context.Context, key string) (topicQueue, bool) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.opts.Logger.Warn("read topic queue", zap.String("key", key), zap.Error(err))
		return topicQueue{}, false
	}
	if !found {
		return topicQueue{}, true
	}
	var q topicQueue
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		s.opts.Logger.Warn("corrupt topic queue", zap.String("key", key), zap.Error(err))
		return topicQueue{}, false
	}
	return q, true
}

func (s *Store) sampleLocked(pool []string, count int) []string {
	return s.shuffledLocked(pool)[:count]
}

func (s *Store) shuffledLocked(pool []string) []string {
	out := slices.Clone(pool)
	s.opts.Rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
