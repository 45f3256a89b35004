package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/ericchu94/foos/internal/board"
	"github.com/ericchu94/foos/internal/service"
	"github.com/ericchu94/foos/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errUnknownType = errors.New("unknown type")

// Controls is what a viewer can do to the board.
type Controls interface {
	AdjustSide(ctx context.Context, id string, delta int) error
	SetSide(ctx context.Context, id string, points int) error
	CreatePlayer(ctx context.Context, name string) error
	DeletePlayer(ctx context.Context, id string) error
	CreateGame(ctx context.Context, matchID, name string, swapped bool) error
	DeleteGame(ctx context.Context, id string) error
	AddPlayerToMatch(ctx context.Context, playerID, matchID, spot string) error
}

func Handler(b *board.Board, controls Controls, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan board.Snapshot, 8)
		viewerID := uuid.NewString()

		select {
		case b.Inbox() <- board.Join{ViewerID: viewerID, Outbox: out}:
		case <-b.Done():
			conn.Close(websocket.StatusGoingAway, "board closed")
			return
		}
		defer func() {
			select {
			case b.Inbox() <- board.Leave{ViewerID: viewerID}:
			case <-b.Done():
			}
		}()
		log.Debug("viewer joined", zap.String("viewer", viewerID))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.ServerMessage{
					Type:    "StateSnapshot",
					Version: snap.Version,
					Status:  string(snap.Status),
					State:   &snap.State,
					Error:   snap.Err,
				}
				if err := write(writeCtx, conn, msg); err != nil {
					return
				}
			}
			// Closed by the board: either we left or we were too slow.
			conn.Close(websocket.StatusTryAgainLater, "too slow")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("viewer read ended", zap.String("viewer", viewerID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(r.Context(), conn, types.ServerMessage{Type: "Error", Error: "bad json"})
				continue
			}

			err = run(r.Context(), controls, cm)
			switch {
			case err == nil, errors.Is(err, service.ErrRejected):
				// Rejections stay silent; the board simply does not move.
			case errors.Is(err, errUnknownType):
				_ = write(r.Context(), conn, types.ServerMessage{Type: "Error", Error: "unknown type"})
			default:
				_ = write(r.Context(), conn, types.ServerMessage{Type: "Error", Error: err.Error()})
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func run(ctx context.Context, c Controls, m types.ClientMessage) error {
	switch m.Type {
	case "AdjustSide":
		return c.AdjustSide(ctx, m.ID, m.Delta)
	case "SetSide":
		if m.Points == nil {
			return fmt.Errorf("SetSide: %w", service.ErrInvalidInput)
		}
		return c.SetSide(ctx, m.ID, *m.Points)
	case "CreatePlayer":
		return c.CreatePlayer(ctx, m.Name)
	case "DeletePlayer":
		return c.DeletePlayer(ctx, m.ID)
	case "CreateGame":
		return c.CreateGame(ctx, m.MatchID, m.Name, m.Swapped)
	case "DeleteGame":
		return c.DeleteGame(ctx, m.ID)
	case "AddPlayerToMatch":
		return c.AddPlayerToMatch(ctx, m.ID, m.MatchID, m.Spot)
	default:
		return fmt.Errorf("%w %q", errUnknownType, m.Type)
	}
}
