package engine

func NewEmptyState() State {
	return State{
		Matches: []*Match{},
		Players: []*Player{},
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func FindMatch(s *State, id string) *Match {
	for _, m := range s.Matches {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func FindPlayer(s *State, id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func FindGame(s *State, id string) (*Game, *Match) {
	for _, m := range s.Matches {
		for _, g := range m.Games {
			if g.ID == id {
				return g, m
			}
		}
	}
	return nil, nil
}

// FindSide looks a side up by id across every game, yellow and black alike.
func FindSide(s *State, id string) (*Side, *Game, *Match) {
	for _, m := range s.Matches {
		for _, g := range m.Games {
			for _, c := range []Color{ColorYellow, ColorBlack} {
				if side := g.Side(c); side != nil && side.ID == id {
					return side, g, m
				}
			}
		}
	}
	return nil, nil, nil
}

// Clone deep-copies the state so the copy can leave the board goroutine.
func (s State) Clone() State {
	out := State{
		Matches: make([]*Match, 0, len(s.Matches)),
		Players: clonePlayers(s.Players),
	}
	for _, m := range s.Matches {
		cm := &Match{
			ID:     m.ID,
			Name:   m.Name,
			Top:    clonePlayers(m.Top),
			Bottom: clonePlayers(m.Bottom),
			Games:  make([]*Game, 0, len(m.Games)),
		}
		for _, g := range m.Games {
			cm.Games = append(cm.Games, &Game{
				ID:      g.ID,
				Name:    g.Name,
				Swapped: g.Swapped,
				Yellow:  cloneSide(g.Yellow),
				Black:   cloneSide(g.Black),
			})
		}
		out.Matches = append(out.Matches, cm)
	}
	return out
}

func clonePlayers(in []*Player) []*Player {
	out := make([]*Player, 0, len(in))
	for _, p := range in {
		out = append(out, &Player{ID: p.ID, Name: p.Name})
	}
	return out
}

func cloneSide(s *Side) *Side {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
