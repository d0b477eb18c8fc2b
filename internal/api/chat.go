package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/hemalyze/internal/chat"
	"github.com/JaimeStill/hemalyze/internal/sessions"
	"github.com/JaimeStill/hemalyze/pkg/handlers"
	"github.com/JaimeStill/hemalyze/pkg/routes"
)

var (
	errNoQuestion   = errors.New("question is required")
	errNoCollection = errors.New("collection_id is required when the session has no analyzed report")
)

type chatRequest struct {
	Question     string `json:"question"`
	CollectionID string `json:"collection_id"`
	SessionID    string `json:"session_id"`
}

type chatResponse struct {
	Answer       string `json:"answer"`
	SessionID    string `json:"session_id"`
	CollectionID string `json:"collection_id"`
}

type chatHandler struct {
	answerer *chat.Answerer
	sessions *sessions.Store
	logger   *slog.Logger
	maxBody  int64
}

func newChatHandler(answerer *chat.Answerer, store *sessions.Store, logger *slog.Logger, maxBody int64) *chatHandler {
	return &chatHandler{
		answerer: answerer,
		sessions: store,
		logger:   logger.With("handler", "chat"),
		maxBody:  maxBody,
	}
}

func (h *chatHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/chat",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.ask},
		},
	}
}

// ask falls back to the collection of the session's last report when the
// request names none.
func (h *chatHandler) ask(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.DecodeJSON[chatRequest](w, r, h.maxBody)
	if err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errNoQuestion)
		return
	}

	sid := sessions.Normalize(sessionID(r, req.SessionID))

	collection := req.CollectionID
	if collection == "" {
		if st, ok := h.sessions.Report(sid); ok {
			collection = st.CollectionID
		}
	}
	if collection == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errNoCollection)
		return
	}

	answer := h.answerer.Answer(r.Context(), chat.Question{
		Text:         req.Question,
		CollectionID: collection,
		SessionID:    sid,
	})

	handlers.RespondJSON(w, http.StatusOK, chatResponse{
		Answer:       answer,
		SessionID:    sid,
		CollectionID: collection,
	})
}
