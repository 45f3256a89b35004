package board

import (
	"context"

	"github.com/ericchu94/foos/internal/engine"
	"go.uber.org/zap"
)

type Msg interface{ isBoardMsg() }

// Loaded carries the bulk read.
type Loaded struct {
	Matches []*engine.Match
	Players []*engine.Player
}

func (Loaded) isBoardMsg() {}

// LoadFailed marks the board as failed; viewers render the error instead of a board.
type LoadFailed struct{ Err error }

func (LoadFailed) isBoardMsg() {}

// Apply folds one change into the board. Reply, when set, needs room for one value.
type Apply struct {
	Change engine.Change
	Reply  chan error
}

func (Apply) isBoardMsg() {}

type Join struct {
	ViewerID string
	Outbox   chan Snapshot // where this viewer wants to receive snapshots
}

func (Join) isBoardMsg() {}

type Leave struct{ ViewerID string }

func (Leave) isBoardMsg() {}

type Shutdown struct{}

func (Shutdown) isBoardMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isBoardMsg() {}

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Snapshot is a deep copy of the board; safe to hand to other goroutines.
type Snapshot struct {
	Version int
	Status  Status
	Err     string
	State   engine.State
}

type View struct {
	Version    int
	NumViewers int
	Status     Status
	Err        string
	State      engine.State
}

// Observer sees the events of every applied change, on the board goroutine.
// It must not block for long and must not send to the board.
type Observer func([]engine.Event)

type Board struct {
	inbox     chan Msg
	state     engine.State
	status    Status
	loadErr   string
	version   int
	viewers   map[string]chan Snapshot
	observers []Observer
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewBoard(parent context.Context, log *zap.Logger, observers ...Observer) *Board {
	ctx, cancel := context.WithCancel(parent)

	b := &Board{
		inbox:     make(chan Msg, 64),
		state:     engine.NewEmptyState(),
		status:    StatusLoading,
		viewers:   make(map[string]chan Snapshot),
		observers: observers,
		log:       log.Named("board"),
		ctx:       ctx,
		cancel:    cancel,
	}

	go b.loop()
	return b
}

func (b *Board) loop() {
	for {
		select {
		case <-b.ctx.Done():
			b.shutdown()
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case Loaded:
				events, _ := engine.Apply(&b.state, engine.Change{Type: engine.ChangeLoad, Matches: msg.Matches, Players: msg.Players})
				b.status = StatusReady
				b.loadErr = ""
				b.commit(events)
				b.log.Info("board loaded",
					zap.Int("matches", len(b.state.Matches)),
					zap.Int("players", len(b.state.Players)))

			case LoadFailed:
				b.status = StatusFailed
				b.loadErr = msg.Err.Error()
				b.version++
				b.broadcast(b.snapshot())
				b.log.Error("board load failed", zap.Error(msg.Err))

			case Apply:
				events, err := engine.Apply(&b.state, msg.Change)
				if err != nil {
					// Dropped: the board stays as it was.
					b.log.Warn("change dropped", zap.String("change", string(msg.Change.Type)), zap.Error(err))
				} else if len(events) > 0 {
					b.commit(events)
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Join:
				// Register viewer + send current snapshot immediately
				b.viewers[msg.ViewerID] = msg.Outbox
				msg.Outbox <- b.snapshot()

			case Leave:
				if ch, ok := b.viewers[msg.ViewerID]; ok {
					close(ch)
					delete(b.viewers, msg.ViewerID)
				}

			case GetState:
				msg.Reply <- View{
					Version:    b.version,
					NumViewers: len(b.viewers),
					Status:     b.status,
					Err:        b.loadErr,
					State:      b.state.Clone(),
				}

			case Shutdown:
				b.shutdown()
				return
			}
		}
	}
}

func (b *Board) commit(events []engine.Event) {
	b.version++
	for _, observe := range b.observers {
		observe(events)
	}
	b.broadcast(b.snapshot())
}

func (b *Board) snapshot() Snapshot {
	return Snapshot{Version: b.version, Status: b.status, Err: b.loadErr, State: b.state.Clone()}
}

func (b *Board) shutdown() {
	for id, ch := range b.viewers {
		close(ch) // Tell viewer no more snapshots
		delete(b.viewers, id)
	}
	b.cancel()
}

func (b *Board) broadcast(snap Snapshot) {
	for id, ch := range b.viewers {
		select {
		case ch <- snap:
			//ok
		default:
			// Viewer is slow/full - drop them.
			b.log.Debug("dropping slow viewer", zap.String("viewer", id))
			close(ch)
			delete(b.viewers, id)
		}
	}
}

// Expose the inbox so the feed, the service and the WS layer can send messages.
func (b *Board) Inbox() chan<- Msg { return b.inbox }

// Done is closed once the board has shut down.
func (b *Board) Done() <-chan struct{} { return b.ctx.Done() }

// Submit applies a change and waits for the outcome.
func (b *Board) Submit(ctx context.Context, c engine.Change) error {
	reply := make(chan error, 1)
	select {
	case b.inbox <- Apply{Change: c, Reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return context.Canceled
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return context.Canceled
	}
}

// Current returns a copy of the board as it is now.
func (b *Board) Current(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case b.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-b.ctx.Done():
		return View{}, context.Canceled
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-b.ctx.Done():
		return View{}, context.Canceled
	}
}
