package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ericchu94/foos/internal/reconcile"
)

var ErrUnknownMatch = errors.New("unknown match")
var ErrUnknownSide = errors.New("unknown side")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrInvalidSpot = errors.New("invalid spot")
var ErrMissingPayload = errors.New("missing payload")
var ErrUnsupportedChange = errors.New("unsupported change")

type State struct {
	Matches []*Match  `json:"matches"`
	Players []*Player `json:"players"`
}

type ChangeType string

const (
	ChangeLoad          ChangeType = "Load"
	ChangeMatchPushed   ChangeType = "MatchPushed"
	ChangeGamePushed    ChangeType = "GamePushed"
	ChangeSidePushed    ChangeType = "SidePushed"
	ChangeSideUpdated   ChangeType = "SideUpdated"
	ChangePlayerCreated ChangeType = "PlayerCreated"
	ChangePlayerDeleted ChangeType = "PlayerDeleted"
	ChangeGameCreated   ChangeType = "GameCreated"
	ChangeGameDeleted   ChangeType = "GameDeleted"
	ChangePlayerAdded   ChangeType = "PlayerAdded"
)

/*
	Load           -> Loaded, MatchInserted*, GameInserted*
	MatchPushed    -> MatchInserted | MatchUpdated
	GamePushed     -> GameInserted | GameUpdated   (GameCreated as well)
	SidePushed     -> SideScored                   (SideUpdated as well)
	PlayerCreated  -> PlayerInserted | PlayerUpdated
	PlayerDeleted  -> PlayerRemoved, nothing when already gone
	GameDeleted    -> GameRemoved, nothing when already gone
	PlayerAdded    -> RosterChanged
*/

// Change is one incoming fact: a pushed notification, a mutation result or
// the bulk read. Only the fields its Type needs are set.
type Change struct {
	Type    ChangeType
	MatchID string
	ID      string
	Spot    Spot

	Matches []*Match
	Players []*Player

	Match  *MatchPatch
	Game   *GamePatch
	Side   *SidePatch
	Player *Player
}

type EventType string

const (
	EvtLoaded         EventType = "Loaded"
	EvtMatchInserted  EventType = "MatchInserted"
	EvtMatchUpdated   EventType = "MatchUpdated"
	EvtGameInserted   EventType = "GameInserted"
	EvtGameUpdated    EventType = "GameUpdated"
	EvtGameRemoved    EventType = "GameRemoved"
	EvtSideScored     EventType = "SideScored"
	EvtPlayerInserted EventType = "PlayerInserted"
	EvtPlayerUpdated  EventType = "PlayerUpdated"
	EvtPlayerRemoved  EventType = "PlayerRemoved"
	EvtRosterChanged  EventType = "RosterChanged"
)

type Event struct {
	Type     EventType
	ID       string
	MatchID  string
	SideIDs  []string
	Replaced []string // side ids a game update dropped
	Points   int
	Spot     Spot
}

// Apply folds a change into s in place. On error s is left as it was.
func Apply(s *State, c Change) ([]Event, error) {
	switch c.Type {
	case ChangeLoad:
		return load(s, c.Matches, c.Players), nil

	case ChangeMatchPushed:
		if c.Match == nil {
			return nil, fmt.Errorf("%s: %w", c.Type, ErrMissingPayload)
		}
		var outcome reconcile.Outcome
		s.Matches, outcome = reconcile.Upsert(s.Matches, *c.Match, newMatch)
		evt := Event{Type: EvtMatchUpdated, ID: c.Match.ID}
		if outcome == reconcile.Inserted {
			evt.Type = EvtMatchInserted
		}
		return []Event{evt}, nil

	case ChangeGamePushed, ChangeGameCreated:
		if c.Game == nil {
			return nil, fmt.Errorf("%s: %w", c.Type, ErrMissingPayload)
		}
		m := FindMatch(s, c.MatchID)
		if m == nil {
			return nil, fmt.Errorf("game %s: %w %s", c.Game.ID, ErrUnknownMatch, c.MatchID)
		}
		var before []string
		if i := reconcile.Index(m.Games, c.Game.ID); i >= 0 {
			before = m.Games[i].SideIDs()
		}
		var outcome reconcile.Outcome
		m.Games, outcome = reconcile.Upsert(m.Games, *c.Game, newGame)
		g := m.Games[reconcile.Index(m.Games, c.Game.ID)]
		evt := Event{Type: EvtGameUpdated, ID: g.ID, MatchID: m.ID, SideIDs: g.SideIDs()}
		if outcome == reconcile.Inserted {
			evt.Type = EvtGameInserted
		}
		evt.Replaced = dropped(before, evt.SideIDs)
		return []Event{evt}, nil

	case ChangeSidePushed, ChangeSideUpdated:
		if c.Side == nil {
			return nil, fmt.Errorf("%s: %w", c.Type, ErrMissingPayload)
		}
		side, _, m := FindSide(s, c.Side.ID)
		if side == nil {
			return nil, fmt.Errorf("%w %s", ErrUnknownSide, c.Side.ID)
		}
		if c.Side.Points == nil {
			return nil, nil
		}
		side.Merge(*c.Side)
		return []Event{{Type: EvtSideScored, ID: side.ID, MatchID: m.ID, Points: side.Points}}, nil

	case ChangePlayerCreated:
		if c.Player == nil {
			return nil, fmt.Errorf("%s: %w", c.Type, ErrMissingPayload)
		}
		var outcome reconcile.Outcome
		s.Players, outcome = reconcile.Upsert(s.Players, *c.Player, newPlayer)
		evt := Event{Type: EvtPlayerUpdated, ID: c.Player.ID}
		if outcome == reconcile.Inserted {
			evt.Type = EvtPlayerInserted
		}
		return []Event{evt}, nil

	case ChangePlayerDeleted:
		var removed bool
		s.Players, removed = reconcile.Remove(s.Players, c.ID)
		if !removed {
			return nil, nil
		}
		return []Event{{Type: EvtPlayerRemoved, ID: c.ID}}, nil

	case ChangeGameDeleted:
		for _, m := range s.Matches {
			i := reconcile.Index(m.Games, c.ID)
			if i < 0 {
				continue
			}
			sideIDs := m.Games[i].SideIDs()
			m.Games, _ = reconcile.Remove(m.Games, c.ID)
			return []Event{{Type: EvtGameRemoved, ID: c.ID, MatchID: m.ID, SideIDs: sideIDs}}, nil
		}
		return nil, nil

	case ChangePlayerAdded:
		if c.Spot != SpotTop && c.Spot != SpotBottom {
			return nil, fmt.Errorf("%w %q", ErrInvalidSpot, c.Spot)
		}
		p := FindPlayer(s, c.ID)
		if p == nil {
			return nil, fmt.Errorf("%w %s", ErrUnknownPlayer, c.ID)
		}
		m := FindMatch(s, c.MatchID)
		if m == nil {
			return nil, fmt.Errorf("%w %s", ErrUnknownMatch, c.MatchID)
		}
		roster := m.Roster(c.Spot)
		*roster, _ = reconcile.Upsert(*roster, *p, newPlayer)
		return []Event{{Type: EvtRosterChanged, ID: p.ID, MatchID: m.ID, Spot: c.Spot}}, nil

	default:
		return nil, ErrUnsupportedChange
	}
}

// load reconciles a bulk read into the state. Matches arrive oldest first and
// are kept newest first. Anything pushed before the read and missing from it
// stays, after the read's matches.
func load(s *State, matches []*Match, players []*Player) []Event {
	events := []Event{{Type: EvtLoaded}}

	earlier := s.Matches
	s.Matches = make([]*Match, 0, len(matches)+len(earlier))
	for i := len(matches) - 1; i >= 0; i-- {
		in := matches[i]
		if in == nil || reconcile.Index(s.Matches, in.ID) >= 0 {
			continue
		}
		m := newMatch(MatchPatch{ID: in.ID})
		if j := reconcile.Index(earlier, in.ID); j >= 0 {
			m = earlier[j]
		} else {
			events = append(events, Event{Type: EvtMatchInserted, ID: m.ID})
		}
		m.Name = in.Name
		m.Top = mergePlayers(m.Top, in.Top)
		m.Bottom = mergePlayers(m.Bottom, in.Bottom)
		for _, g := range in.Games {
			if g != nil {
				m.Games, _ = reconcile.Upsert(m.Games, PatchOf(*g), newGame)
			}
		}
		s.Matches = append(s.Matches, m)
	}
	for _, m := range earlier {
		if reconcile.Index(s.Matches, m.ID) < 0 {
			s.Matches = append(s.Matches, m)
		}
	}
	for _, m := range s.Matches {
		for _, g := range m.Games {
			events = append(events, Event{Type: EvtGameInserted, ID: g.ID, MatchID: m.ID, SideIDs: g.SideIDs()})
		}
	}

	s.Players = mergePlayers(s.Players, players)
	return events
}

// mergePlayers upserts in onto list, dropping nils and duplicate ids.
func mergePlayers(list, in []*Player) []*Player {
	if list == nil {
		list = make([]*Player, 0, len(in))
	}
	for _, p := range in {
		if p != nil {
			list, _ = reconcile.Upsert(list, *p, newPlayer)
		}
	}
	return list
}

// dropped returns the ids in before that are not in after.
func dropped(before, after []string) []string {
	var out []string
	for _, id := range before {
		if !slices.Contains(after, id) {
			out = append(out, id)
		}
	}
	return out
}
