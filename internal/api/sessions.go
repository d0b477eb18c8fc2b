package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/hemalyze/internal/sessions"
	"github.com/JaimeStill/hemalyze/pkg/handlers"
	"github.com/JaimeStill/hemalyze/pkg/routes"
)

var errNoReport = errors.New("no report analyzed for session")

type historyResponse struct {
	SessionID string          `json:"session_id"`
	History   []sessions.Turn `json:"history"`
}

type sessionsHandler struct {
	store  *sessions.Store
	logger *slog.Logger
}

func newSessionsHandler(store *sessions.Store, logger *slog.Logger) *sessionsHandler {
	return &sessionsHandler{
		store:  store,
		logger: logger.With("handler", "sessions"),
	}
}

func (h *sessionsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions",
		Routes: []routes.Route{
			{Method: "DELETE", Pattern: "", Handler: h.clearAll},
		},
		Children: []routes.Group{
			{
				Prefix: "/{id}",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/history", Handler: h.history},
					{Method: "DELETE", Pattern: "/history", Handler: h.clearHistory},
					{Method: "GET", Pattern: "/report", Handler: h.report},
				},
			},
		},
	}
}

func (h *sessionsHandler) history(w http.ResponseWriter, r *http.Request) {
	sid := sessions.Normalize(r.PathValue("id"))
	handlers.RespondJSON(w, http.StatusOK, historyResponse{
		SessionID: sid,
		History:   orEmpty(h.store.History(sid)),
	})
}

func (h *sessionsHandler) clearHistory(w http.ResponseWriter, r *http.Request) {
	sid := sessions.Normalize(r.PathValue("id"))
	h.store.ClearHistory(sid)
	h.logger.Info("history cleared", "session", sid)
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionsHandler) clearAll(w http.ResponseWriter, r *http.Request) {
	h.store.ClearAll()
	h.logger.Info("all sessions cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionsHandler) report(w http.ResponseWriter, r *http.Request) {
	sid := sessions.Normalize(r.PathValue("id"))
	st, ok := h.store.Report(sid)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusNotFound, errNoReport)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, NewAnalysisResponse(sid, st))
}
