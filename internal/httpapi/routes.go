package httpapi

import (
	"net/http"
	"time"

	"github.com/ericchu94/foos/internal/board"
	"github.com/ericchu94/foos/internal/ws"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SetupRoutes builds the router. history may be nil.
func SetupRoutes(b *board.Board, controls ws.Controls, history History, log *zap.Logger) http.Handler {
	log = log.Named("http")
	h := &handlers{board: b, controls: controls, history: history, log: log}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", h.dashboard)
	r.Get("/state", h.state)
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(b, controls, log))
	r.Get("/history/{id}", h.entityHistory)

	r.Post("/players", h.createPlayer)
	r.Post("/players/{id}/delete", h.deletePlayer)
	r.Post("/matches/{id}/games", h.createGame)
	r.Post("/matches/{id}/players", h.addPlayer)
	r.Post("/games/{id}/delete", h.deleteGame)
	r.Post("/sides/{id}/adjust", h.adjustSide)
	r.Post("/sides/{id}/points", h.setSide)
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
