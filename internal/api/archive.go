package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/hemalyze/internal/archive"
	"github.com/JaimeStill/hemalyze/internal/sessions"
	"github.com/JaimeStill/hemalyze/pkg/handlers"
	"github.com/JaimeStill/hemalyze/pkg/routes"
	"github.com/JaimeStill/hemalyze/pkg/storage"
)

type archiveListResponse struct {
	SessionID string   `json:"session_id"`
	Reports   []string `json:"reports"`
}

type archiveHandler struct {
	archive *archive.Archive
	logger  *slog.Logger
}

func newArchiveHandler(a *archive.Archive, logger *slog.Logger) *archiveHandler {
	return &archiveHandler{
		archive: a,
		logger:  logger.With("handler", "archive"),
	}
}

func (h *archiveHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions/{id}/archive",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "GET", Pattern: "/{name}", Handler: h.find},
		},
	}
}

// list returns archived report names relative to the session prefix.
func (h *archiveHandler) list(w http.ResponseWriter, r *http.Request) {
	sid := sessions.Normalize(r.PathValue("id"))

	keys, err := h.archive.List(r.Context(), sid)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	prefix := archive.SessionPrefix(sid)
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = strings.TrimPrefix(k, prefix)
	}

	handlers.RespondJSON(w, http.StatusOK, archiveListResponse{SessionID: sid, Reports: names})
}

func (h *archiveHandler) find(w http.ResponseWriter, r *http.Request) {
	sid := sessions.Normalize(r.PathValue("id"))
	key := archive.SessionPrefix(sid) + r.PathValue("name")

	st, err := h.archive.Load(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, NewAnalysisResponse(sid, st))
}
