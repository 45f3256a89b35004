package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ericchu94/foos/internal/engine"
	"go.uber.org/zap"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("viewer outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
		// good: no snapshot
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func intPtr(v int) *int { return &v }

func loadedBoard(t *testing.T, observers ...Observer) (*Board, chan Snapshot) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := NewBoard(ctx, zap.NewNop(), observers...)
	out := make(chan Snapshot, 4)
	b.Inbox() <- Join{ViewerID: "v1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	if first.Status != StatusLoading || first.Version != 0 {
		t.Fatalf("after join: want loading v0, got %s v%d", first.Status, first.Version)
	}

	b.Inbox() <- Loaded{
		Matches: []*engine.Match{{
			ID:   "m1",
			Name: "Final",
			Games: []*engine.Game{{
				ID:     "g1",
				Yellow: &engine.Side{ID: "5", Points: 0},
				Black:  &engine.Side{ID: "6", Points: 0},
			}},
		}},
		Players: []*engine.Player{{ID: "p1", Name: "Ann"}},
	}
	loaded := recvSnapshot(t, out, 100*time.Millisecond)
	if loaded.Status != StatusReady || loaded.Version != 1 {
		t.Fatalf("after load: want ready v1, got %s v%d", loaded.Status, loaded.Version)
	}
	return b, out
}

func TestBoard_SidePush_BroadcastsSnapshotAndVersionIncrements(t *testing.T) {
	b, out := loadedBoard(t)

	b.Inbox() <- Apply{Change: engine.Change{
		Type: engine.ChangeSidePushed,
		Side: &engine.SidePatch{ID: "5", Points: intPtr(11)},
	}}

	next := recvSnapshot(t, out, 100*time.Millisecond)
	if next.Version != 2 {
		t.Fatalf("after push: want version=2, got %d", next.Version)
	}
	g := next.State.Matches[0].Games[0]
	if g.Yellow.Points != 11 || g.Black.Points != 0 {
		t.Fatalf("after push: unexpected sides %+v / %+v", g.Yellow, g.Black)
	}

	b.Inbox() <- Shutdown{}
}

func TestBoard_FailedChangeIsDropped(t *testing.T) {
	b, out := loadedBoard(t)

	reply := make(chan error, 1)
	b.Inbox() <- Apply{
		Change: engine.Change{Type: engine.ChangeSidePushed, Side: &engine.SidePatch{ID: "404", Points: intPtr(1)}},
		Reply:  reply,
	}
	if err := <-reply; !errors.Is(err, engine.ErrUnknownSide) {
		t.Fatalf("want ErrUnknownSide, got %v", err)
	}
	recvNoSnapshot(t, out, 50*time.Millisecond)

	view, err := b.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if view.Version != 1 {
		t.Fatalf("dropped change must not bump the version, got %d", view.Version)
	}
}

func TestBoard_DropSlowViewer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBoard(ctx, zap.NewNop())

	viewerOut := make(chan Snapshot, 1)
	b.Inbox() <- Join{ViewerID: "v1", Outbox: viewerOut}

	b.Inbox() <- Loaded{}

	reply := make(chan View, 1)
	b.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)

	if view.NumViewers != 0 {
		t.Fatalf("expected slow viewer to be dropped; NumViewers=%d", view.NumViewers)
	}
}

func TestBoard_LoadFailedIsTerminalForTheView(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBoard(ctx, zap.NewNop())
	out := make(chan Snapshot, 2)
	b.Inbox() <- Join{ViewerID: "v1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	b.Inbox() <- LoadFailed{Err: errors.New("connection refused")}

	snap := recvSnapshot(t, out, 100*time.Millisecond)
	if snap.Status != StatusFailed || snap.Err != "connection refused" {
		t.Fatalf("want failed snapshot, got %+v", snap)
	}
}

func TestBoard_ObserversSeeEvents(t *testing.T) {
	var seen []engine.EventType
	b, out := loadedBoard(t, func(events []engine.Event) {
		for _, e := range events {
			seen = append(seen, e.Type)
		}
	})

	name := "Semi"
	if err := b.Submit(context.Background(), engine.Change{
		Type:  engine.ChangeMatchPushed,
		Match: &engine.MatchPatch{ID: "m2", Name: &name},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	// seen is written on the board goroutine; the reply above orders it before us.
	want := []engine.EventType{engine.EvtLoaded, engine.EvtMatchInserted, engine.EvtGameInserted, engine.EvtMatchInserted}
	if len(seen) != len(want) {
		t.Fatalf("want %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("want %v, got %v", want, seen)
		}
	}
}

func TestBoard_SnapshotsAreCopies(t *testing.T) {
	b, out := loadedBoard(t)

	view, err := b.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	view.State.Matches[0].Games[0].Yellow.Points = 99

	b.Inbox() <- Apply{Change: engine.Change{Type: engine.ChangeSidePushed, Side: &engine.SidePatch{ID: "6", Points: intPtr(1)}}}
	snap := recvSnapshot(t, out, 100*time.Millisecond)
	if snap.State.Matches[0].Games[0].Yellow.Points != 0 {
		t.Fatalf("board state leaked through a view")
	}
}

func TestBoard_Shutdown_ClosesViewers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBoard(ctx, zap.NewNop())

	out := make(chan Snapshot, 2)
	b.Inbox() <- Join{ViewerID: "v1", Outbox: out}
	_ = recvSnapshot(t, out, 500*time.Millisecond) // drain join snapshot

	b.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected outbox to be closed")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for outbox close")
	}
	<-b.Done()
}

func TestBoard_PushBeforeLoadSurvivesLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewBoard(ctx, zap.NewNop())

	if err := b.Submit(ctx, engine.Change{Type: engine.ChangeMatchPushed, Match: &engine.MatchPatch{ID: "2"}}); err != nil {
		t.Fatalf("push before load: %v", err)
	}
	b.Inbox() <- Loaded{Matches: []*engine.Match{{ID: "1"}}}

	game := &engine.GamePatch{ID: "g1", Yellow: &engine.Side{ID: "5"}, Black: &engine.Side{ID: "6"}}
	if err := b.Submit(ctx, engine.Change{Type: engine.ChangeGamePushed, MatchID: "2", Game: game}); err != nil {
		t.Fatalf("game for the earlier match: %v", err)
	}
	view, err := b.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if view.Status != StatusReady || len(view.State.Matches) != 2 {
		t.Fatalf("want both matches once ready, got %s %+v", view.Status, view.State.Matches)
	}
}
