package engine

type Spot string

const (
	SpotTop    Spot = "TOP"
	SpotBottom Spot = "BOTTOM"
)

func ParseSpot(s string) (Spot, bool) {
	switch Spot(s) {
	case SpotTop, SpotBottom:
		return Spot(s), true
	default:
		return "", false
	}
}

type Color string

const (
	ColorYellow Color = "yellow"
	ColorBlack  Color = "black"
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p Player) Key() string { return p.ID }

func (p *Player) Merge(in Player) { p.Name = in.Name }

func newPlayer(in Player) *Player { return &Player{ID: in.ID, Name: in.Name} }

type Side struct {
	ID     string `json:"id"`
	Points int    `json:"points"`
}

func (s Side) Key() string { return s.ID }

// SidePatch is a side payload where Points may be absent.
type SidePatch struct {
	ID     string `json:"id"`
	Points *int   `json:"points"`
}

func (p SidePatch) Key() string { return p.ID }

func (s *Side) Merge(p SidePatch) {
	if p.Points != nil {
		s.Points = *p.Points
	}
}

type Game struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Swapped bool   `json:"swapped"`
	Yellow  *Side  `json:"yellow"`
	Black   *Side  `json:"black"`
}

func (g Game) Key() string { return g.ID }

// Side returns the side of the given color.
func (g *Game) Side(c Color) *Side {
	if c == ColorBlack {
		return g.Black
	}
	return g.Yellow
}

// SideIDs lists the ids of the sides the game carries, yellow first.
func (g *Game) SideIDs() []string {
	ids := make([]string, 0, 2)
	if g.Yellow != nil {
		ids = append(ids, g.Yellow.ID)
	}
	if g.Black != nil {
		ids = append(ids, g.Black.ID)
	}
	return ids
}

// GamePatch is a game payload; nil fields were absent from it.
type GamePatch struct {
	ID      string  `json:"id"`
	Name    *string `json:"name"`
	Swapped *bool   `json:"swapped"`
	Yellow  *Side   `json:"yellow"`
	Black   *Side   `json:"black"`
}

func (p GamePatch) Key() string { return p.ID }

// PatchOf turns a complete game into a patch carrying every field.
func PatchOf(g Game) GamePatch {
	name, swapped := g.Name, g.Swapped
	return GamePatch{ID: g.ID, Name: &name, Swapped: &swapped, Yellow: g.Yellow, Black: g.Black}
}

// Merge is shallow: a side present in the patch replaces the game's side.
func (g *Game) Merge(p GamePatch) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Swapped != nil {
		g.Swapped = *p.Swapped
	}
	if p.Yellow != nil {
		g.Yellow = p.Yellow
	}
	if p.Black != nil {
		g.Black = p.Black
	}
}

func newGame(p GamePatch) *Game {
	g := &Game{ID: p.ID}
	g.Merge(p)
	return g
}

type Match struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Top    []*Player `json:"top"`
	Bottom []*Player `json:"bottom"`
	Games  []*Game   `json:"games"`
}

func (m Match) Key() string { return m.ID }

// MatchPatch is a match payload. The match stream only carries id and name,
// so the nested lists are usually nil and left alone on merge.
type MatchPatch struct {
	ID     string    `json:"id"`
	Name   *string   `json:"name"`
	Top    []*Player `json:"top"`
	Bottom []*Player `json:"bottom"`
	Games  []*Game   `json:"games"`
}

func (p MatchPatch) Key() string { return p.ID }

func (m *Match) Merge(p MatchPatch) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Top != nil {
		m.Top = p.Top
	}
	if p.Bottom != nil {
		m.Bottom = p.Bottom
	}
	if p.Games != nil {
		m.Games = p.Games
	}
}

func newMatch(p MatchPatch) *Match {
	m := &Match{ID: p.ID, Top: []*Player{}, Bottom: []*Player{}, Games: []*Game{}}
	m.Merge(p)
	return m
}

// Roster returns the player list for a spot.
func (m *Match) Roster(spot Spot) *[]*Player {
	if spot == SpotBottom {
		return &m.Bottom
	}
	return &m.Top
}
