package views

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ericchu94/foos/internal/board"
	"github.com/ericchu94/foos/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, v board.View) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Dashboard(v).Render(context.Background(), &buf))
	return buf.String()
}

func TestDashboard_Loading(t *testing.T) {
	out := render(t, board.View{Status: board.StatusLoading})

	assert.Contains(t, out, "Loading...")
	assert.NotContains(t, out, `class="match"`)
}

func TestDashboard_Failed(t *testing.T) {
	out := render(t, board.View{Status: board.StatusFailed, Err: "dial tcp <refused>"})

	assert.Contains(t, out, "Error! dial tcp &lt;refused&gt;")
}

func TestDashboard_Ready(t *testing.T) {
	v := board.View{
		Version: 7,
		Status:  board.StatusReady,
		State: engine.State{
			Matches: []*engine.Match{{
				ID:     "1",
				Name:   "Final",
				Top:    []*engine.Player{{ID: "p1", Name: "Ann"}},
				Bottom: []*engine.Player{},
				Games: []*engine.Game{
					{ID: "g1", Yellow: &engine.Side{ID: "5", Points: 11}, Black: &engine.Side{ID: "6", Points: 4}},
					{ID: "g2", Swapped: true, Yellow: &engine.Side{ID: "7"}, Black: &engine.Side{ID: "8"}},
				},
			}},
			Players: []*engine.Player{{ID: "p1", Name: "Ann"}, {ID: "p2", Name: "<Bob>"}},
		},
	}

	out := render(t, v)

	assert.Contains(t, out, `data-version="7"`)
	assert.Contains(t, out, "Final")
	assert.Contains(t, out, `<div class="gameNum">1</div>`)
	assert.Contains(t, out, `<div class="gameNum">2</div>`)
	assert.Contains(t, out, `class="game swapped" id="game-g2"`)
	assert.Contains(t, out, `<div class="side yellow" id="side-5">11</div>`)
	assert.Contains(t, out, `<div class="side black" id="side-6">4</div>`)
	assert.Contains(t, out, `action="/sides/5/adjust"`)
	assert.Contains(t, out, `action="/games/g1/delete"`)
	assert.Contains(t, out, `action="/matches/1/players"`)
	assert.Contains(t, out, `<div class="playerName yellow"><span>Ann</span></div>`)
	assert.Contains(t, out, "&lt;Bob&gt;")
	assert.NotContains(t, out, "<Bob>")
	assert.Equal(t, 1, strings.Count(out, "create player"))
}

func TestRender_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)

	require.NoError(t, Render(rec, req, Players(nil)))

	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `class="players"`)
}

func TestGame_EscapesActionIDs(t *testing.T) {
	var buf bytes.Buffer
	g := &engine.Game{ID: "g/1", Yellow: &engine.Side{ID: "a b"}}

	require.NoError(t, Game(3, g).Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, `<div class="game" id="game-g/1">`)
	assert.Contains(t, out, `action="/sides/a%20b/adjust"`)
	assert.Contains(t, out, `<div class="side black"></div>`)
}
