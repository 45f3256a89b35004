// Package feed binds the API's notification streams to the board. It keeps
// one match-games stream per known match and one side stream per known side.
package feed

import (
	"context"

	"github.com/ericchu94/foos/internal/board"
	"github.com/ericchu94/foos/internal/engine"
	"github.com/ericchu94/foos/internal/streams"
	"go.uber.org/zap"
)

const MatchesKey = "matches"

func MatchGamesKey(matchID string) string { return "match-games:" + matchID }

func SideKey(sideID string) string { return "side:" + sideID }

// Source opens notification streams. Each returned channel closes when its
// stream is over.
type Source interface {
	SubscribeMatches(ctx context.Context, fn func(engine.MatchPatch, error)) (<-chan struct{}, error)
	SubscribeMatchGames(ctx context.Context, matchID string, fn func(engine.GamePatch, error)) (<-chan struct{}, error)
	SubscribeSide(ctx context.Context, sideID string, fn func(engine.SidePatch, error)) (<-chan struct{}, error)
}

type Target interface {
	Inbox() chan<- board.Msg
	Done() <-chan struct{}
}

type Feed struct {
	src      Source
	target   Target
	registry chan<- streams.RegistryMsg
	log      *zap.Logger
}

func New(src Source, target Target, registry *streams.Registry, log *zap.Logger) *Feed {
	return &Feed{
		src:      src,
		target:   target,
		registry: registry.Inbox(),
		log:      log.Named("feed"),
	}
}

// Start opens the match stream.
func (f *Feed) Start() {
	f.registry <- streams.Ensure{Key: MatchesKey, Start: func(ctx context.Context) (<-chan struct{}, error) {
		return f.src.SubscribeMatches(ctx, f.onMatch)
	}}
}

// Observe is a board observer. It runs on the board goroutine, so it only
// talks to the registry.
func (f *Feed) Observe(events []engine.Event) {
	for _, e := range events {
		switch e.Type {
		case engine.EvtMatchInserted:
			f.watchMatch(e.ID)
		case engine.EvtGameInserted, engine.EvtGameUpdated:
			for _, id := range e.Replaced {
				f.registry <- streams.Remove{Key: SideKey(id)}
			}
			for _, id := range e.SideIDs {
				f.watchSide(id)
			}
		case engine.EvtGameRemoved:
			for _, id := range e.SideIDs {
				f.registry <- streams.Remove{Key: SideKey(id)}
			}
		}
	}
}

func (f *Feed) watchMatch(matchID string) {
	f.registry <- streams.Ensure{Key: MatchGamesKey(matchID), Start: func(ctx context.Context) (<-chan struct{}, error) {
		return f.src.SubscribeMatchGames(ctx, matchID, func(p engine.GamePatch, err error) {
			if err != nil {
				f.dropped(MatchGamesKey(matchID), err)
				return
			}
			f.apply(engine.Change{Type: engine.ChangeGamePushed, MatchID: matchID, Game: &p})
		})
	}}
}

func (f *Feed) watchSide(sideID string) {
	f.registry <- streams.Ensure{Key: SideKey(sideID), Start: func(ctx context.Context) (<-chan struct{}, error) {
		return f.src.SubscribeSide(ctx, sideID, func(p engine.SidePatch, err error) {
			if err != nil {
				f.dropped(SideKey(sideID), err)
				return
			}
			if p.ID != sideID {
				f.log.Warn("side notification for another side dropped",
					zap.String("subscribed", sideID),
					zap.String("got", p.ID))
				return
			}
			f.apply(engine.Change{Type: engine.ChangeSidePushed, Side: &p})
		})
	}}
}

func (f *Feed) onMatch(p engine.MatchPatch, err error) {
	if err != nil {
		f.dropped(MatchesKey, err)
		return
	}
	f.apply(engine.Change{Type: engine.ChangeMatchPushed, Match: &p})
}

func (f *Feed) dropped(stream string, err error) {
	f.log.Warn("notification dropped", zap.String("stream", stream), zap.Error(err))
}

func (f *Feed) apply(c engine.Change) {
	select {
	case f.target.Inbox() <- board.Apply{Change: c}:
	case <-f.target.Done():
	}
}
