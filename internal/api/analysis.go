package api

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/hemalyze/internal/pipeline"
	"github.com/JaimeStill/hemalyze/internal/report"
	"github.com/JaimeStill/hemalyze/internal/sessions"
	"github.com/JaimeStill/hemalyze/pkg/handlers"
	"github.com/JaimeStill/hemalyze/pkg/routes"
)

type analyzeRequest struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

// AnalysisResponse is the client view of a finished report.
type AnalysisResponse struct {
	SessionID       string                                 `json:"session_id"`
	CollectionID    string                                 `json:"collection_id,omitempty"`
	Patient         report.PatientInfo                     `json:"patient_info"`
	RiskScore       int                                    `json:"risk_score"`
	RiskRationale   []string                               `json:"risk_rationale"`
	Interpreted     map[string]report.InterpretedParameter `json:"param_interpretation"`
	Patterns        []string                               `json:"patterns"`
	Context         *report.ContextAnalysis                `json:"context_analysis"`
	Synthesis       string                                 `json:"synthesis_report"`
	Recommendations []string                               `json:"recommendations"`
	Errors          []string                               `json:"errors"`
}

// NewAnalysisResponse flattens st for clients. A missing risk assessment
// reads as a zero score.
func NewAnalysisResponse(sessionID string, st report.State) AnalysisResponse {
	resp := AnalysisResponse{
		SessionID:       sessions.Normalize(sessionID),
		CollectionID:    st.CollectionID,
		Patient:         st.Patient,
		RiskRationale:   []string{},
		Interpreted:     st.Interpreted,
		Patterns:        orEmpty(st.Patterns),
		Context:         st.Context,
		Synthesis:       st.Synthesis,
		Recommendations: orEmpty(st.Recommendations),
		Errors:          orEmpty(st.Errors),
	}
	if resp.Interpreted == nil {
		resp.Interpreted = map[string]report.InterpretedParameter{}
	}
	if st.Risk != nil {
		resp.RiskScore = st.Risk.Score
		resp.RiskRationale = orEmpty(st.Risk.Rationale)
	}
	return resp
}

type analysisHandler struct {
	analyzer *pipeline.Analyzer
	logger   *slog.Logger
	maxBody  int64
}

func newAnalysisHandler(analyzer *pipeline.Analyzer, logger *slog.Logger, maxBody int64) *analysisHandler {
	return &analysisHandler{
		analyzer: analyzer,
		logger:   logger.With("handler", "analysis"),
		maxBody:  maxBody,
	}
}

func (h *analysisHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/analyze",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.analyze},
		},
	}
}

// analyze always answers 200 once the body decodes; stage faults are
// reported in the errors list.
func (h *analysisHandler) analyze(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.DecodeJSON[analyzeRequest](w, r, h.maxBody)
	if err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}

	sid := sessionID(r, req.SessionID)
	st := h.analyzer.Analyze(r.Context(), req.Text, req.Source, sid)

	handlers.RespondJSON(w, http.StatusOK, NewAnalysisResponse(sid, st))
}
