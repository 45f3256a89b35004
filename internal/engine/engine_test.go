package engine

import (
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func sampleState() State {
	return State{
		Matches: []*Match{
			{
				ID:     "m1",
				Name:   "Final",
				Top:    []*Player{{ID: "p1", Name: "Ann"}},
				Bottom: []*Player{{ID: "p2", Name: "Bob"}},
				Games: []*Game{
					{ID: "g1", Name: "", Yellow: &Side{ID: "5", Points: 3}, Black: &Side{ID: "6", Points: 7}},
				},
			},
		},
		Players: []*Player{{ID: "p1", Name: "Ann"}, {ID: "p2", Name: "Bob"}, {ID: "p3", Name: "Cy"}},
	}
}

func TestApply_MatchPushed(t *testing.T) {
	cases := []struct {
		name      string
		setup     State
		patch     MatchPatch
		wantType  EventType
		wantNames []string
	}{
		{
			name:      "empty collection appends",
			setup:     NewEmptyState(),
			patch:     MatchPatch{ID: "1", Name: ptr("A")},
			wantType:  EvtMatchInserted,
			wantNames: []string{"A"},
		},
		{
			name:      "known id overwrites name in the same slot",
			setup:     State{Matches: []*Match{{ID: "1", Name: "A"}, {ID: "2", Name: "Z"}}},
			patch:     MatchPatch{ID: "1", Name: ptr("B")},
			wantType:  EvtMatchUpdated,
			wantNames: []string{"B", "Z"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.setup
			events, err := Apply(&s, Change{Type: ChangeMatchPushed, Match: &tc.patch})
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !ContainsEvent(events, tc.wantType) {
				t.Fatalf("want %s in %+v", tc.wantType, events)
			}
			if len(s.Matches) != len(tc.wantNames) {
				t.Fatalf("got %d matches, want %d", len(s.Matches), len(tc.wantNames))
			}
			for i, name := range tc.wantNames {
				if s.Matches[i].Name != name {
					t.Fatalf("match %d: got name %q, want %q", i, s.Matches[i].Name, name)
				}
			}
		})
	}
}

func TestApply_MatchPushedKeepsNestedLists(t *testing.T) {
	s := sampleState()
	before := s.Matches[0]

	if _, err := Apply(&s, Change{Type: ChangeMatchPushed, Match: &MatchPatch{ID: "m1", Name: ptr("Grand final")}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if s.Matches[0] != before {
		t.Fatalf("match slot was replaced")
	}
	if len(before.Games) != 1 || len(before.Top) != 1 || len(before.Bottom) != 1 {
		t.Fatalf("nested lists were dropped: %+v", before)
	}
	if before.Name != "Grand final" {
		t.Fatalf("name not merged: %q", before.Name)
	}
}

func TestApply_SideUpdatedTouchesOnlyThatSide(t *testing.T) {
	s := sampleState()

	events, err := Apply(&s, Change{Type: ChangeSideUpdated, Side: &SidePatch{ID: "5", Points: ptr(11)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	g := s.Matches[0].Games[0]
	if g.Yellow.Points != 11 {
		t.Fatalf("yellow: got %d, want 11", g.Yellow.Points)
	}
	if g.Black.Points != 7 {
		t.Fatalf("black changed: got %d, want 7", g.Black.Points)
	}
	if len(events) != 1 || events[0].Type != EvtSideScored || events[0].Points != 11 || events[0].MatchID != "m1" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestApply_SidePushedAllowsNegativePoints(t *testing.T) {
	s := sampleState()

	if _, err := Apply(&s, Change{Type: ChangeSidePushed, Side: &SidePatch{ID: "6", Points: ptr(-1)}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := s.Matches[0].Games[0].Black.Points; got != -1 {
		t.Fatalf("black: got %d, want -1", got)
	}
}

func TestApply_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		change  Change
		wantErr error
	}{
		{
			name:    "side nobody holds",
			change:  Change{Type: ChangeSidePushed, Side: &SidePatch{ID: "99", Points: ptr(1)}},
			wantErr: ErrUnknownSide,
		},
		{
			name:    "game for a match we never saw",
			change:  Change{Type: ChangeGamePushed, MatchID: "nope", Game: &GamePatch{ID: "g9"}},
			wantErr: ErrUnknownMatch,
		},
		{
			name:    "missing payload",
			change:  Change{Type: ChangeMatchPushed},
			wantErr: ErrMissingPayload,
		},
		{
			name:    "unknown player added to roster",
			change:  Change{Type: ChangePlayerAdded, ID: "ghost", MatchID: "m1", Spot: SpotTop},
			wantErr: ErrUnknownPlayer,
		},
		{
			name:    "bad spot",
			change:  Change{Type: ChangePlayerAdded, ID: "p3", MatchID: "m1", Spot: "MIDDLE"},
			wantErr: ErrInvalidSpot,
		},
		{
			name:    "unsupported change",
			change:  Change{Type: "Teleport"},
			wantErr: ErrUnsupportedChange,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := sampleState()
			events, err := Apply(&s, tc.change)
			if err == nil || !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			if events != nil {
				t.Fatalf("want no events on error, got %+v", events)
			}
		})
	}
}

func TestApply_GamePushedUpsertsIntoMatch(t *testing.T) {
	s := sampleState()
	g := s.Matches[0].Games[0]

	events, err := Apply(&s, Change{
		Type:    ChangeGamePushed,
		MatchID: "m1",
		Game:    &GamePatch{ID: "g1", Swapped: ptr(true)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ContainsEvent(events, EvtGameUpdated) || s.Matches[0].Games[0] != g || !g.Swapped {
		t.Fatalf("expected in-place update, got %+v / %+v", events, g)
	}
	if g.Yellow.Points != 3 {
		t.Fatalf("absent sides must stay, got %+v", g.Yellow)
	}

	created := Game{ID: "g2", Name: "2", Yellow: &Side{ID: "7"}, Black: &Side{ID: "8"}}
	p := PatchOf(created)
	events, err = Apply(&s, Change{Type: ChangeGameCreated, MatchID: "m1", Game: &p})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(s.Matches[0].Games) != 2 || s.Matches[0].Games[1].ID != "g2" {
		t.Fatalf("expected g2 appended, got %+v", s.Matches[0].Games)
	}
	if events[0].Type != EvtGameInserted || len(events[0].SideIDs) != 2 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestApply_DeletesAreIdempotent(t *testing.T) {
	s := sampleState()

	events, err := Apply(&s, Change{Type: ChangeGameDeleted, ID: "g1"})
	if err != nil || !ContainsEvent(events, EvtGameRemoved) {
		t.Fatalf("first delete: events=%+v err=%v", events, err)
	}
	if events[0].SideIDs[0] != "5" || events[0].SideIDs[1] != "6" {
		t.Fatalf("removed game should report its sides, got %+v", events[0])
	}
	events, err = Apply(&s, Change{Type: ChangeGameDeleted, ID: "g1"})
	if err != nil || len(events) != 0 {
		t.Fatalf("second delete: events=%+v err=%v", events, err)
	}

	for i := 0; i < 2; i++ {
		if _, err := Apply(&s, Change{Type: ChangePlayerDeleted, ID: "p1"}); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if len(s.Players) != 2 || s.Players[0].ID != "p2" {
		t.Fatalf("unexpected players %+v", s.Players)
	}
}

func TestApply_PlayerCreatedAndAdded(t *testing.T) {
	s := sampleState()

	if _, err := Apply(&s, Change{Type: ChangePlayerCreated, Player: &Player{ID: "p4", Name: "Dee"}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := Apply(&s, Change{Type: ChangePlayerCreated, Player: &Player{ID: "p4", Name: "Dee"}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(s.Players) != 4 {
		t.Fatalf("duplicate create must not duplicate, got %d players", len(s.Players))
	}

	for i := 0; i < 2; i++ {
		if _, err := Apply(&s, Change{Type: ChangePlayerAdded, ID: "p4", MatchID: "m1", Spot: SpotBottom}); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	bottom := s.Matches[0].Bottom
	if len(bottom) != 2 || bottom[1].Name != "Dee" {
		t.Fatalf("unexpected bottom roster %+v", bottom)
	}
}

func TestApply_LoadReversesMatchesAndDedupes(t *testing.T) {
	s := NewEmptyState()
	matches := []*Match{
		{ID: "old", Name: "Old", Games: []*Game{{ID: "g1", Yellow: &Side{ID: "1"}, Black: &Side{ID: "2"}}}},
		{ID: "new", Name: "New"},
	}
	players := []*Player{{ID: "p1", Name: "Ann"}, {ID: "p1", Name: "Ann"}}

	events, err := Apply(&s, Change{Type: ChangeLoad, Matches: matches, Players: players})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Matches[0].ID != "new" || s.Matches[1].ID != "old" {
		t.Fatalf("want newest first, got %s,%s", s.Matches[0].ID, s.Matches[1].ID)
	}
	if len(s.Players) != 1 {
		t.Fatalf("want players deduped, got %+v", s.Players)
	}
	if !ContainsEvent(events, EvtLoaded) || !ContainsEvent(events, EvtGameInserted) {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	s := sampleState()
	c := s.Clone()

	s.Matches[0].Games[0].Yellow.Points = 100
	s.Matches[0].Name = "changed"
	s.Players[0].Name = "changed"

	if c.Matches[0].Games[0].Yellow.Points != 3 || c.Matches[0].Name != "Final" || c.Players[0].Name != "Ann" {
		t.Fatalf("clone shares memory with the original: %+v", c.Matches[0])
	}
}

func TestFindSide(t *testing.T) {
	s := sampleState()

	side, g, m := FindSide(&s, "6")
	if side == nil || side != g.Black || m.ID != "m1" {
		t.Fatalf("expected black side of g1, got %+v %+v %+v", side, g, m)
	}
	if side, _, _ := FindSide(&s, "404"); side != nil {
		t.Fatalf("expected nil, got %+v", side)
	}
}

func TestApply_LoadKeepsEarlierPushes(t *testing.T) {
	s := NewEmptyState()
	if _, err := Apply(&s, Change{Type: ChangeMatchPushed, Match: &MatchPatch{ID: "2"}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := Apply(&s, Change{Type: ChangePlayerCreated, Player: &Player{ID: "p9", Name: "Zed"}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	events, err := Apply(&s, Change{Type: ChangeLoad,
		Matches: []*Match{{ID: "1", Name: "One"}},
		Players: []*Player{{ID: "p1", Name: "Ann"}},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(s.Matches) != 2 || s.Matches[0].ID != "1" || s.Matches[1].ID != "2" {
		t.Fatalf("want read match then pushed match, got %+v", s.Matches)
	}
	if len(s.Players) != 2 {
		t.Fatalf("want pushed player kept, got %+v", s.Players)
	}
	for _, e := range events {
		if e.Type == EvtMatchInserted && e.ID == "2" {
			t.Fatalf("match 2 was already known, got %+v", events)
		}
	}

	g := &GamePatch{ID: "g1", Yellow: &Side{ID: "5"}, Black: &Side{ID: "6"}}
	if _, err := Apply(&s, Change{Type: ChangeGamePushed, MatchID: "2", Game: g}); err != nil {
		t.Fatalf("game for an earlier pushed match: %v", err)
	}
}

func TestApply_LoadMergesIntoKnownMatch(t *testing.T) {
	s := sampleState()
	pushed := &GamePatch{ID: "g9", Yellow: &Side{ID: "9"}, Black: &Side{ID: "10"}}
	if _, err := Apply(&s, Change{Type: ChangeGamePushed, MatchID: "m1", Game: pushed}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	m := s.Matches[0]

	_, err := Apply(&s, Change{Type: ChangeLoad, Matches: []*Match{{
		ID:    "m1",
		Name:  "Renamed",
		Games: []*Game{{ID: "g1", Yellow: &Side{ID: "5", Points: 7}, Black: &Side{ID: "6"}}},
	}}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Matches[0] != m || m.Name != "Renamed" {
		t.Fatalf("want the known match merged in place, got %+v", s.Matches[0])
	}
	if len(m.Games) != 2 || m.Games[0].Yellow.Points != 7 || m.Games[1].ID != "g9" {
		t.Fatalf("unexpected games %+v", m.Games)
	}
}

func TestApply_GameUpdateReportsReplacedSides(t *testing.T) {
	s := sampleState()
	g := &GamePatch{ID: "g1", Yellow: &Side{ID: "50"}}

	events, err := Apply(&s, Change{Type: ChangeGamePushed, MatchID: "m1", Game: g})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(events) != 1 || events[0].Type != EvtGameUpdated {
		t.Fatalf("unexpected events %+v", events)
	}
	if got := events[0].Replaced; len(got) != 1 || got[0] != "5" {
		t.Fatalf("want side 5 replaced, got %v", got)
	}

	events, _ = Apply(&s, Change{Type: ChangeGamePushed, MatchID: "m1", Game: g})
	if len(events[0].Replaced) != 0 {
		t.Fatalf("repeat push replaced nothing, got %v", events[0].Replaced)
	}
}
