// Package service runs the scoreboard controls: it calls the API and folds
// each successful result into the board.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ericchu94/foos/internal/api"
	"github.com/ericchu94/foos/internal/board"
	"github.com/ericchu94/foos/internal/engine"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrRejected means the API refused the mutation. The board is left alone and
// callers are expected to stay quiet about it.
var ErrRejected = errors.New("mutation rejected")

var ErrInvalidInput = errors.New("invalid input")

type API interface {
	FetchAll(ctx context.Context) (api.Scoreboard, error)
	CreatePlayer(ctx context.Context, name string) (engine.Player, error)
	DeletePlayer(ctx context.Context, id string) (engine.Player, error)
	CreateGame(ctx context.Context, matchID, name string, swapped bool) (engine.Game, error)
	DeleteGame(ctx context.Context, id string) (engine.Game, error)
	UpdateSide(ctx context.Context, id string, points int) (engine.Side, error)
	AddPlayerToMatch(ctx context.Context, playerID, matchID string, spot engine.Spot) (json.RawMessage, error)
}

type Board interface {
	Inbox() chan<- board.Msg
	Submit(ctx context.Context, c engine.Change) error
	Current(ctx context.Context) (board.View, error)
}

type Service struct {
	api   API
	board Board
	log   *zap.Logger
}

func New(a API, b Board, log *zap.Logger) *Service {
	return &Service{api: a, board: b, log: log.Named("service")}
}

// Load runs the bulk read. A failure puts the board in its failed state.
func (s *Service) Load(ctx context.Context) error {
	sb, err := s.api.FetchAll(ctx)
	var msg board.Msg = board.Loaded{Matches: sb.Matches, Players: sb.Players}
	if err != nil {
		msg = board.LoadFailed{Err: err}
	}
	select {
	case s.board.Inbox() <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Service) CreatePlayer(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("player name: %w", ErrInvalidInput)
	}
	p, err := s.api.CreatePlayer(ctx, name)
	if err := s.check("createPlayer", err); err != nil {
		return err
	}
	return s.board.Submit(ctx, engine.Change{Type: engine.ChangePlayerCreated, Player: &p})
}

func (s *Service) DeletePlayer(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("player id: %w", ErrInvalidInput)
	}
	p, err := s.api.DeletePlayer(ctx, id)
	if err := s.check("deletePlayer", err); err != nil {
		return err
	}
	return s.board.Submit(ctx, engine.Change{Type: engine.ChangePlayerDeleted, ID: orID(p.ID, id)})
}

func (s *Service) CreateGame(ctx context.Context, matchID, name string, swapped bool) error {
	if matchID == "" {
		return fmt.Errorf("match id: %w", ErrInvalidInput)
	}
	g, err := s.api.CreateGame(ctx, matchID, strings.TrimSpace(name), swapped)
	if err := s.check("createGame", err); err != nil {
		return err
	}
	patch := engine.PatchOf(g)
	return s.board.Submit(ctx, engine.Change{Type: engine.ChangeGameCreated, MatchID: matchID, Game: &patch})
}

func (s *Service) DeleteGame(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("game id: %w", ErrInvalidInput)
	}
	g, err := s.api.DeleteGame(ctx, id)
	if err := s.check("deleteGame", err); err != nil {
		return err
	}
	return s.board.Submit(ctx, engine.Change{Type: engine.ChangeGameDeleted, ID: orID(g.ID, id)})
}

// AdjustSide moves a side's points by delta from what the board shows now.
// There is no floor: a side can go below zero.
func (s *Service) AdjustSide(ctx context.Context, id string, delta int) error {
	v, err := s.board.Current(ctx)
	if err != nil {
		return err
	}
	side, _, _ := engine.FindSide(&v.State, id)
	if side == nil {
		return fmt.Errorf("%w %s", engine.ErrUnknownSide, id)
	}
	return s.SetSide(ctx, id, side.Points+delta)
}

func (s *Service) SetSide(ctx context.Context, id string, points int) error {
	if id == "" {
		return fmt.Errorf("side id: %w", ErrInvalidInput)
	}
	side, err := s.api.UpdateSide(ctx, id, points)
	if err := s.check("updateSide", err); err != nil {
		return err
	}
	patch := engine.SidePatch{ID: orID(side.ID, id), Points: &side.Points}
	return s.board.Submit(ctx, engine.Change{Type: engine.ChangeSideUpdated, Side: &patch})
}

func (s *Service) AddPlayerToMatch(ctx context.Context, playerID, matchID, spot string) error {
	sp, ok := engine.ParseSpot(spot)
	if !ok {
		return fmt.Errorf("%w %q", engine.ErrInvalidSpot, spot)
	}
	if playerID == "" || matchID == "" {
		return fmt.Errorf("player and match id: %w", ErrInvalidInput)
	}
	if _, err := s.api.AddPlayerToMatch(ctx, playerID, matchID, sp); err != nil {
		return s.check("addPlayerMatch", err)
	}
	return s.board.Submit(ctx, engine.Change{Type: engine.ChangePlayerAdded, ID: playerID, MatchID: matchID, Spot: sp})
}

// check sorts an API error into rejected (logged, silent) or transport.
func (s *Service) check(op string, err error) error {
	if err == nil {
		return nil
	}
	if api.IsApplicationError(err) {
		s.log.Warn("mutation rejected", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, multierr.Append(ErrRejected, err))
	}
	s.log.Error("mutation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func orID(got, fallback string) string {
	if got == "" {
		return fallback
	}
	return got
}
