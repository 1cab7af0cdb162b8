package persist

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/b2english/tensequest/internal/store"
)

const snapshotKey = "run:snapshot"

// Bridge reads and writes the RunSnapshot. Storage failures are logged and
// never returned from Save or Load.
type Bridge struct {
	kv     store.KV
	logger *zap.Logger
}

// NewBridge creates a Bridge over kv.
func NewBridge(kv store.KV, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{kv: kv, logger: logger}
}

// Save overwrites the stored snapshot.
func (b *Bridge) Save(ctx context.Context, snap RunSnapshot) {
	snap.Version = SchemaVersion
	raw, err := json.Marshal(snap)
	if err != nil {
		b.logger.Warn("encode run snapshot", zap.Error(err))
		return
	}
	if err := b.kv.Set(ctx, snapshotKey, string(raw)); err != nil {
		b.logger.Warn("write run snapshot", zap.Error(err))
	}
}

// Load returns the stored snapshot, or an empty one when nothing usable is
// stored. repaired is true when an inconsistent run was found and reset;
// the repaired snapshot has already been written back.
func (b *Bridge) Load(ctx context.Context) (snap RunSnapshot, repaired bool) {
	raw, ok, err := b.kv.Get(ctx, snapshotKey)
	if err != nil {
		b.logger.Warn("read run snapshot", zap.Error(err))
		return Empty(), false
	}
	if !ok || raw == "" {
		return Empty(), false
	}

	snap, err = decode([]byte(raw))
	if err != nil {
		b.logger.Warn("corrupt run snapshot, starting fresh", zap.Error(err))
		return Empty(), false
	}
	if snap.History == nil {
		snap.History = Empty().History
	}

	// A ladder implies a run; no questions implies none.
	if len(snap.Ladder) > 0 && len(snap.Questions) == 0 {
		b.logger.Warn("run snapshot has a ladder but no questions, resetting run",
			zap.Int("ladder_levels", len(snap.Ladder)))
		snap.resetRun()
		b.Save(ctx, snap)
		return snap, true
	}
	snap.Index = min(max(snap.Index, 0), len(snap.Questions))
	return snap, false
}

// Clear removes the stored snapshot.
func (b *Bridge) Clear(ctx context.Context) error {
	return b.kv.Delete(ctx, snapshotKey)
}
