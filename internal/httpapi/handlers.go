package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ericchu94/foos/internal/board"
	"github.com/ericchu94/foos/internal/engine"
	"github.com/ericchu94/foos/internal/journal"
	"github.com/ericchu94/foos/internal/service"
	"github.com/ericchu94/foos/internal/types"
	"github.com/ericchu94/foos/internal/ws"
	"github.com/ericchu94/foos/views"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Viewer interface {
	Current(ctx context.Context) (board.View, error)
}

type History interface {
	History(ctx context.Context, id string, limit int) ([]journal.Entry, error)
}

type handlers struct {
	board    Viewer
	controls ws.Controls
	history  History // nil when the journal is off
	log      *zap.Logger
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	v, err := h.board.Current(r.Context())
	if err != nil {
		http.Error(w, "board unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := views.Render(w, r, views.Dashboard(v)); err != nil {
		h.log.Warn("render dashboard", zap.Error(err))
	}
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	v, err := h.board.Current(r.Context())
	if err != nil {
		http.Error(w, "board unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, types.ServerMessage{
		Type:    "StateSnapshot",
		Version: v.Version,
		Status:  string(v.Status),
		State:   &v.State,
		Error:   v.Err,
	})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) entityHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.badRequest(w, "invalid limit", err)
			return
		}
		limit = n
	}
	entries, err := h.history.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.log.Error("read history", zap.Error(err))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) createPlayer(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	h.done(w, r, h.controls.CreatePlayer(r.Context(), r.PostForm.Get("name")))
}

func (h *handlers) deletePlayer(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, h.controls.DeletePlayer(r.Context(), chi.URLParam(r, "id")))
}

func (h *handlers) createGame(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	swapped := false
	if s := r.PostForm.Get("swapped"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			h.badRequest(w, "invalid swapped", err)
			return
		}
		swapped = b
	}
	h.done(w, r, h.controls.CreateGame(r.Context(), chi.URLParam(r, "id"), r.PostForm.Get("name"), swapped))
}

func (h *handlers) addPlayer(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	h.done(w, r, h.controls.AddPlayerToMatch(r.Context(), r.PostForm.Get("player"), chi.URLParam(r, "id"), r.PostForm.Get("spot")))
}

func (h *handlers) deleteGame(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, h.controls.DeleteGame(r.Context(), chi.URLParam(r, "id")))
}

func (h *handlers) adjustSide(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	delta, err := strconv.Atoi(r.PostForm.Get("delta"))
	if err != nil {
		h.badRequest(w, "invalid delta", err)
		return
	}
	h.done(w, r, h.controls.AdjustSide(r.Context(), chi.URLParam(r, "id"), delta))
}

func (h *handlers) setSide(w http.ResponseWriter, r *http.Request) {
	if !h.parse(w, r) {
		return
	}
	points, err := strconv.Atoi(r.PostForm.Get("points"))
	if err != nil {
		h.badRequest(w, "invalid points", err)
		return
	}
	h.done(w, r, h.controls.SetSide(r.Context(), chi.URLParam(r, "id"), points))
}

func (h *handlers) parse(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, "invalid form data", err)
		return false
	}
	return true
}

// done answers a control. Success and rejection look the same to the user: a
// redirect back to the dashboard.
func (h *handlers) done(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil, errors.Is(err, service.ErrRejected):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, engine.ErrInvalidSpot):
		h.badRequest(w, err.Error(), err)
	case errors.Is(err, engine.ErrUnknownSide),
		errors.Is(err, engine.ErrUnknownMatch),
		errors.Is(err, engine.ErrUnknownPlayer):
		h.log.Warn("not found", zap.Error(err))
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error("control failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "scoreboard api unavailable", http.StatusBadGateway)
	}
}

func (h *handlers) badRequest(w http.ResponseWriter, msg string, err error) {
	h.log.Warn("bad request", zap.String("message", msg), zap.Error(err))
	http.Error(w, msg, http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
