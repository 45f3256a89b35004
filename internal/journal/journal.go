// Package journal keeps an append-only history of what changed on the board:
// scores, games, players and rosters.
package journal

import (
	"context"
	"time"

	"github.com/ericchu94/foos/internal/engine"
	"go.uber.org/zap"
)

const (
	queueSize    = 256
	batchSize    = 64
	flushTimeout = 5 * time.Second

	DefaultLimit = 50
	MaxLimit     = 500
)

type Journal struct {
	store Store
	queue chan Entry
	now   func() time.Time
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Journal {
	return &Journal{
		store: store,
		queue: make(chan Entry, queueSize),
		now:   time.Now,
		log:   log.Named("journal"),
	}
}

// Record is a board observer. It never blocks: when the queue is full the
// entry is dropped. A bulk load is not history and is skipped.
func (j *Journal) Record(events []engine.Event) {
	if engine.ContainsEvent(events, engine.EvtLoaded) {
		return
	}
	at := j.now()
	for _, e := range events {
		entry := Entry{
			Kind:       string(e.Type),
			EntityID:   e.ID,
			MatchID:    e.MatchID,
			Spot:       string(e.Spot),
			RecordedAt: at,
		}
		if e.Type == engine.EvtSideScored {
			points := e.Points
			entry.Points = &points
		}
		select {
		case j.queue <- entry:
		default:
			j.log.Warn("journal queue full, entry dropped", zap.String("kind", entry.Kind), zap.String("id", entry.EntityID))
		}
	}
}

// Run writes queued entries until ctx is done, then flushes what is left.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return nil
		case e := <-j.queue:
			batch := j.collect([]Entry{e})
			if err := j.store.Save(ctx, batch); err != nil {
				j.log.Error("journal write failed", zap.Int("entries", len(batch)), zap.Error(err))
			}
		}
	}
}

// collect adds whatever is already queued, up to batchSize.
func (j *Journal) collect(batch []Entry) []Entry {
	for len(batch) < batchSize {
		select {
		case e := <-j.queue:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (j *Journal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		batch := j.collect(nil)
		if len(batch) == 0 {
			return
		}
		if err := j.store.Save(ctx, batch); err != nil {
			j.log.Error("journal flush failed", zap.Int("entries", len(batch)), zap.Error(err))
			return
		}
	}
}

// History returns the newest entries about id. limit <= 0 means DefaultLimit.
func (j *Journal) History(ctx context.Context, id string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	return j.store.History(ctx, id, limit)
}

func (j *Journal) Close() error {
	return j.store.Close()
}
