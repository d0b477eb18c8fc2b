package api

import (
	"net/http"

	"github.com/JaimeStill/hemalyze/pkg/formatting"
	"github.com/JaimeStill/hemalyze/pkg/middleware"
	"github.com/JaimeStill/hemalyze/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, runtime *Runtime) {
	groups := []routes.Group{
		newAnalysisHandler(domain.Analyzer, runtime.Logger, runtime.MaxBodySize).routes(),
		newChatHandler(domain.Answerer, domain.Sessions, runtime.Logger, runtime.MaxBodySize).routes(),
		newSessionsHandler(domain.Sessions, runtime.Logger).routes(),
	}

	if domain.Archive != nil {
		groups = append(groups, newArchiveHandler(domain.Archive, runtime.Logger).routes())
	}

	routes.Register(mux, groups...)

	runtime.Logger.Info(
		"routes registered",
		"groups", len(groups),
		"archive", domain.Archive != nil,
		"max_body", formatting.FormatBytes(runtime.MaxBodySize, 1),
	)
}

// sessionID picks the body value, falling back to the session header.
func sessionID(r *http.Request, body string) string {
	if body != "" {
		return body
	}
	return r.Header.Get(middleware.SessionHeader)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
