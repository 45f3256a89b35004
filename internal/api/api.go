// Package api is the typed scoreboard API on top of the GraphQL transport.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericchu94/foos/internal/engine"
	"github.com/ericchu94/foos/internal/graphql"
)

var ErrNoResult = errors.New("no result")
var ErrEmptyNotification = errors.New("empty notification")

// Error is an application error returned by a mutation next to a null result.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsApplicationError reports whether err was returned by the API itself
// rather than by the transport.
func IsApplicationError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) || errors.Is(err, ErrNoResult)
}

type Transport interface {
	Do(ctx context.Context, req graphql.Request, out any) error
	Subscribe(ctx context.Context, req graphql.Request, h graphql.Handler) (*graphql.Subscription, error)
}

type Client struct {
	gql Transport
}

func New(gql Transport) *Client {
	return &Client{gql: gql}
}

type Scoreboard struct {
	Matches []*engine.Match  `json:"matches"`
	Players []*engine.Player `json:"players"`
}

func (c *Client) FetchAll(ctx context.Context) (Scoreboard, error) {
	var out Scoreboard
	if err := c.gql.Do(ctx, graphql.Request{Query: fetchAllQuery, OperationName: "scoreboard"}, &out); err != nil {
		return Scoreboard{}, fmt.Errorf("fetch scoreboard: %w", err)
	}
	return out, nil
}

func (c *Client) CreatePlayer(ctx context.Context, name string) (engine.Player, error) {
	return mutate[engine.Player](ctx, c, "createPlayer", createPlayerMutation, map[string]any{"name": name})
}

func (c *Client) DeletePlayer(ctx context.Context, id string) (engine.Player, error) {
	return mutate[engine.Player](ctx, c, "deletePlayer", deletePlayerMutation, map[string]any{"id": id})
}

func (c *Client) CreateGame(ctx context.Context, matchID, name string, swapped bool) (engine.Game, error) {
	return mutate[engine.Game](ctx, c, "createGame", createGameMutation, map[string]any{
		"matchId": matchID,
		"name":    name,
		"swapped": swapped,
	})
}

func (c *Client) DeleteGame(ctx context.Context, id string) (engine.Game, error) {
	return mutate[engine.Game](ctx, c, "deleteGame", deleteGameMutation, map[string]any{"id": id})
}

func (c *Client) UpdateSide(ctx context.Context, id string, points int) (engine.Side, error) {
	return mutate[engine.Side](ctx, c, "updateSide", updateSideMutation, map[string]any{"id": id, "points": points})
}

// AddPlayerToMatch returns the API's opaque result.
func (c *Client) AddPlayerToMatch(ctx context.Context, playerID, matchID string, spot engine.Spot) (json.RawMessage, error) {
	return mutate[json.RawMessage](ctx, c, "addPlayerMatch", addPlayerMatchMutation, map[string]any{
		"id":      playerID,
		"matchId": matchID,
		"spot":    string(spot),
	})
}

func (c *Client) SubscribeMatches(ctx context.Context, fn func(engine.MatchPatch, error)) (<-chan struct{}, error) {
	return subscribe(ctx, c, "match", graphql.Request{Query: matchSubscription, OperationName: "match"}, fn)
}

func (c *Client) SubscribeMatchGames(ctx context.Context, matchID string, fn func(engine.GamePatch, error)) (<-chan struct{}, error) {
	return subscribe(ctx, c, "matchGames", graphql.Request{
		Query:         matchGamesSubscription,
		OperationName: "matchGames",
		Variables:     map[string]any{"matchId": matchID},
	}, fn)
}

func (c *Client) SubscribeSide(ctx context.Context, sideID string, fn func(engine.SidePatch, error)) (<-chan struct{}, error) {
	return subscribe(ctx, c, "side", graphql.Request{
		Query:         sideSubscription,
		OperationName: "side",
		Variables:     map[string]any{"id": sideID},
	}, fn)
}

type payload[T any] struct {
	Error  *Error `json:"error"`
	Result *T     `json:"result"`
}

func mutate[T any](ctx context.Context, c *Client, field, query string, vars map[string]any) (T, error) {
	var zero T
	var data map[string]json.RawMessage
	if err := c.gql.Do(ctx, graphql.Request{Query: query, Variables: vars, OperationName: field}, &data); err != nil {
		return zero, fmt.Errorf("%s: %w", field, err)
	}

	var p payload[T]
	if raw, ok := data[field]; ok {
		if err := json.Unmarshal(raw, &p); err != nil {
			return zero, fmt.Errorf("%s: decode payload: %w", field, err)
		}
	}
	if p.Error != nil {
		return zero, fmt.Errorf("%s: %w", field, p.Error)
	}
	if p.Result == nil {
		return zero, fmt.Errorf("%s: %w", field, ErrNoResult)
	}
	return *p.Result, nil
}

// subscribe opens a stream of field notifications. The returned channel closes
// when the subscription is over.
func subscribe[T any](ctx context.Context, c *Client, field string, req graphql.Request, fn func(T, error)) (<-chan struct{}, error) {
	sub, err := c.gql.Subscribe(ctx, req, func(data json.RawMessage, err error) {
		var zero T
		if err != nil {
			fn(zero, err)
			return
		}
		var envelope map[string]*T
		if err := json.Unmarshal(data, &envelope); err != nil {
			fn(zero, fmt.Errorf("%s: decode notification: %w", field, err))
			return
		}
		v := envelope[field]
		if v == nil {
			fn(zero, fmt.Errorf("%s: %w", field, ErrEmptyNotification))
			return
		}
		fn(*v, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", field, err)
	}
	if sub == nil {
		return nil, nil
	}
	return sub.Done(), nil
}
