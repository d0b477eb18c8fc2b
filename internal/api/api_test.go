package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/JaimeStill/hemalyze/internal/api"
	"github.com/JaimeStill/hemalyze/internal/config"
	"github.com/JaimeStill/hemalyze/internal/embedding"
	"github.com/JaimeStill/hemalyze/internal/index"
	"github.com/JaimeStill/hemalyze/internal/infrastructure"
	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/report"
	"github.com/JaimeStill/hemalyze/internal/sessions"
	"github.com/JaimeStill/hemalyze/internal/vectors"
	"github.com/JaimeStill/hemalyze/pkg/lifecycle"
	"github.com/JaimeStill/hemalyze/pkg/middleware"
	"github.com/JaimeStill/hemalyze/pkg/module"
	"github.com/JaimeStill/hemalyze/pkg/storage"
)

const answer = "Your hemoglobin is within the reference range."

type memStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: map[string][]byte{}}
}

func (m *memStorage) Start(lc *lifecycle.Coordinator) error { return nil }

func (m *memStorage) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

func (m *memStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func newModule(t *testing.T, blobs storage.System) *module.Module {
	t.Helper()

	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	infra := &infrastructure.Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    slog.New(slog.DiscardHandler),
		Model: llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
			return answer, nil
		}),
		Embedder: embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		}),
		Vectors: vectors.NewMemory(),
		Storage: blobs,
	}

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	return m
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func analyze(t *testing.T, h http.Handler, sid string) api.AnalysisResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/analyze",
		`{"text":"Hemoglobin 13.5 g/dL\nPlatelets 250 x10^9/L","source":"cbc.txt","session_id":"`+sid+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decode[api.AnalysisResponse](t, rec)
}

func TestAnalyzeAndChat(t *testing.T) {
	h := newModule(t, nil)

	resp := analyze(t, h, "s1")
	if resp.SessionID != "s1" {
		t.Errorf("session_id = %q, want s1", resp.SessionID)
	}
	if !strings.HasPrefix(resp.CollectionID, index.CollectionPrefix) {
		t.Errorf("collection_id = %q, want prefix %q", resp.CollectionID, index.CollectionPrefix)
	}
	if resp.RiskRationale == nil || resp.Patterns == nil || resp.Recommendations == nil || resp.Errors == nil {
		t.Errorf("list fields must encode as arrays: %+v", resp)
	}

	header := http.Header{middleware.SessionHeader: {"s1"}}
	rec := do(t, h, http.MethodPost, "/api/chat", `{"question":"Is my hemoglobin normal?"}`, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got := decode[map[string]string](t, rec)
	if got["answer"] != answer {
		t.Errorf("answer = %q, want %q", got["answer"], answer)
	}
	if got["collection_id"] != resp.CollectionID {
		t.Errorf("collection_id = %q, want %q", got["collection_id"], resp.CollectionID)
	}

	rec = do(t, h, http.MethodGet, "/api/sessions/s1/history", "", nil)
	history := decode[struct {
		SessionID string          `json:"session_id"`
		History   []sessions.Turn `json:"history"`
	}](t, rec)
	if len(history.History) != 1 || history.History[0].Answer != answer {
		t.Errorf("history = %+v, want one turn", history.History)
	}

	rec = do(t, h, http.MethodGet, "/api/sessions/s1/report", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("report status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAnalyzeBlankText(t *testing.T) {
	h := newModule(t, nil)

	rec := do(t, h, http.MethodPost, "/api/analyze", `{"text":"   "}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decode[api.AnalysisResponse](t, rec)
	if resp.SessionID != sessions.DefaultID {
		t.Errorf("session_id = %q, want %q", resp.SessionID, sessions.DefaultID)
	}
	if resp.CollectionID != "" {
		t.Errorf("collection_id = %q, want empty", resp.CollectionID)
	}
	if len(resp.Errors) != 1 {
		t.Errorf("errors = %v, want one entry", resp.Errors)
	}
}

func TestRequestValidation(t *testing.T) {
	h := newModule(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"analyze unknown field", http.MethodPost, "/api/analyze", `{"txt":"x"}`, http.StatusBadRequest},
		{"analyze empty body", http.MethodPost, "/api/analyze", "", http.StatusBadRequest},
		{"chat without question", http.MethodPost, "/api/chat", `{"question":"  ","collection_id":"c"}`, http.StatusBadRequest},
		{"chat without collection", http.MethodPost, "/api/chat", `{"question":"hi","session_id":"fresh"}`, http.StatusBadRequest},
		{"report missing", http.MethodGet, "/api/sessions/none/report", "", http.StatusNotFound},
		{"archive disabled", http.MethodGet, "/api/sessions/s1/archive", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body, nil)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestChatUnknownCollection(t *testing.T) {
	h := newModule(t, nil)

	rec := do(t, h, http.MethodPost, "/api/chat", `{"question":"hi","collection_id":"report_missing"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	got := decode[map[string]string](t, rec)
	if !strings.HasPrefix(got["answer"], "Error:") {
		t.Errorf("answer = %q, want error answer", got["answer"])
	}
}

func TestClearSessions(t *testing.T) {
	h := newModule(t, nil)
	resp := analyze(t, h, "s1")

	body := `{"question":"q","collection_id":"` + resp.CollectionID + `","session_id":"s1"}`
	if rec := do(t, h, http.MethodPost, "/api/chat", body, nil); rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/api/sessions/s1/history", "", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("clear history status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec := do(t, h, http.MethodGet, "/api/sessions/s1/history", "", nil)
	if !strings.Contains(rec.Body.String(), `"history":[]`) {
		t.Errorf("history body = %s, want empty list", rec.Body.String())
	}

	if rec := do(t, h, http.MethodGet, "/api/sessions/s1/report", "", nil); rec.Code != http.StatusOK {
		t.Errorf("report status after history clear = %d, want %d", rec.Code, http.StatusOK)
	}

	if rec := do(t, h, http.MethodDelete, "/api/sessions", "", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("clear all status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	if rec := do(t, h, http.MethodGet, "/api/sessions/s1/report", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("report status after clear all = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestArchiveRoutes(t *testing.T) {
	h := newModule(t, newMemStorage())
	resp := analyze(t, h, "s1")

	rec := do(t, h, http.MethodGet, "/api/sessions/s1/archive", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", rec.Code, rec.Body.String())
	}

	list := decode[struct {
		Reports []string `json:"reports"`
	}](t, rec)
	want := resp.CollectionID + ".json"
	if len(list.Reports) != 1 || list.Reports[0] != want {
		t.Fatalf("reports = %v, want [%s]", list.Reports, want)
	}

	rec = do(t, h, http.MethodGet, "/api/sessions/s1/archive/"+want, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("find status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[api.AnalysisResponse](t, rec); got.CollectionID != resp.CollectionID {
		t.Errorf("archived collection_id = %q, want %q", got.CollectionID, resp.CollectionID)
	}

	if rec := do(t, h, http.MethodGet, "/api/sessions/s1/archive/missing.json", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestNewAnalysisResponse(t *testing.T) {
	st := report.State{
		Risk:   &report.RiskAssessment{Score: 4, Rationale: []string{"Low hemoglobin"}},
		Errors: []string{},
	}

	resp := api.NewAnalysisResponse("", st)
	if resp.SessionID != sessions.DefaultID {
		t.Errorf("session_id = %q, want %q", resp.SessionID, sessions.DefaultID)
	}
	if resp.RiskScore != 4 || len(resp.RiskRationale) != 1 {
		t.Errorf("risk = %d %v, want 4 [Low hemoglobin]", resp.RiskScore, resp.RiskRationale)
	}
	if resp.Interpreted == nil {
		t.Error("param_interpretation must not be nil")
	}
}
