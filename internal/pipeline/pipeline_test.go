package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JaimeStill/hemalyze/internal/extract"
	"github.com/JaimeStill/hemalyze/internal/index"
	"github.com/JaimeStill/hemalyze/internal/interpret"
	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/pipeline"
	"github.com/JaimeStill/hemalyze/internal/report"
	"github.com/JaimeStill/hemalyze/internal/sessions"
	"github.com/JaimeStill/hemalyze/internal/synthesis"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func stage(name string, fn func(context.Context, report.State) (report.Update, error)) pipeline.Stage {
	return pipeline.StageFunc{Label: name, Fn: fn}
}

func ptr[T any](v T) *T { return &v }

func TestRunBlankText(t *testing.T) {
	called := false
	p := pipeline.New([]pipeline.Stage{
		stage("a", func(context.Context, report.State) (report.Update, error) {
			called = true
			return report.Update{}, nil
		}),
	}, time.Second, discard)

	for _, raw := range []string{"", "   \n\t"} {
		st := p.Run(context.Background(), raw, "lab.pdf")
		if diff := cmp.Diff([]string{pipeline.NoText}, st.Errors); diff != "" {
			t.Errorf("errors mismatch (-want +got):\n%s", diff)
		}
		if st.Parameters != nil || st.Interpreted != nil || st.Synthesis != "" {
			t.Errorf("derived fields should be empty: %+v", st)
		}
	}
	if called {
		t.Error("no stage should run for blank text")
	}
}

func TestRunFoldsStagesInOrder(t *testing.T) {
	var order []string
	p := pipeline.New([]pipeline.Stage{
		stage("first", func(_ context.Context, st report.State) (report.Update, error) {
			order = append(order, "first")
			return report.Update{Patterns: []string{"Microcytic Anemia"}}, nil
		}),
		stage("second", func(_ context.Context, st report.State) (report.Update, error) {
			order = append(order, "second")
			if len(st.Patterns) != 1 {
				t.Errorf("second stage should see upstream patterns, got %v", st.Patterns)
			}
			return report.Update{Synthesis: ptr("summary")}, nil
		}),
	}, time.Second, discard)

	st := p.Run(context.Background(), "Hemoglobin 9", "lab.pdf")

	if diff := cmp.Diff([]string{"first", "second"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if st.Synthesis != "summary" {
		t.Errorf("synthesis: got %q", st.Synthesis)
	}
	if len(st.Errors) != 0 {
		t.Errorf("errors: got %v", st.Errors)
	}
	if st.RawText != "Hemoglobin 9" || st.Source != "lab.pdf" {
		t.Errorf("source fields: got %q %q", st.RawText, st.Source)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	reached := false
	p := pipeline.New([]pipeline.Stage{
		stage("Model 2 (Patterns)", func(context.Context, report.State) (report.Update, error) {
			return report.Update{Patterns: []string{"ignored"}}, errors.New("model unavailable")
		}),
		stage("Model 3 (Context)", func(context.Context, report.State) (report.Update, error) {
			panic("nil analysis")
		}),
		stage("Synthesis Node", func(_ context.Context, st report.State) (report.Update, error) {
			reached = true
			if st.Patterns != nil {
				t.Errorf("failed stage update should be discarded, got %v", st.Patterns)
			}
			return report.Update{Synthesis: ptr(synthesis.NoData)}, nil
		}),
	}, time.Second, discard)

	st := p.Run(context.Background(), "text", "")

	if !reached {
		t.Fatal("stages after a failure should still run")
	}
	want := []string{
		"Model 2 (Patterns) failed: model unavailable",
		"Model 3 (Context) failed: panic: nil analysis",
	}
	if diff := cmp.Diff(want, st.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRunFailedRecommendationsStayEmptyList(t *testing.T) {
	p := pipeline.New([]pipeline.Stage{
		pipeline.RecommendStage(recommenderFunc(func(context.Context, string) ([]string, error) {
			return nil, errors.New("model unavailable")
		})),
	}, time.Second, discard)

	st := p.Run(context.Background(), "Hemoglobin 9", "lab.pdf")

	if st.Recommendations == nil || len(st.Recommendations) != 0 {
		t.Errorf("recommendations: got %#v, want empty list", st.Recommendations)
	}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"recommendations":[]`) {
		t.Errorf("json missing empty recommendations: %s", data)
	}
}

type recommenderFunc func(context.Context, string) ([]string, error)

func (f recommenderFunc) Recommend(ctx context.Context, report string) ([]string, error) {
	return f(ctx, report)
}

func TestRunStageTimeout(t *testing.T) {
	p := pipeline.New([]pipeline.Stage{
		stage("slow", func(ctx context.Context, _ report.State) (report.Update, error) {
			<-ctx.Done()
			return report.Update{}, ctx.Err()
		}),
	}, 10*time.Millisecond, discard)

	st := p.Run(context.Background(), "text", "")
	if len(st.Errors) != 1 || !strings.HasPrefix(st.Errors[0], "slow failed: context deadline exceeded") {
		t.Errorf("errors: got %v", st.Errors)
	}
}

func TestRunKeepsUpstreamFields(t *testing.T) {
	p := pipeline.New([]pipeline.Stage{
		stage("a", func(context.Context, report.State) (report.Update, error) {
			return report.Update{Synthesis: ptr("first"), Errors: []string{"warning a"}}, nil
		}),
		stage("b", func(context.Context, report.State) (report.Update, error) {
			return report.Update{Synthesis: ptr("second"), Errors: []string{"warning b"}}, nil
		}),
	}, 0, discard)

	st := p.Run(context.Background(), "text", "")
	if st.Synthesis != "first" {
		t.Errorf("synthesis overwritten: got %q", st.Synthesis)
	}
	if diff := cmp.Diff([]string{"warning a", "warning b"}, st.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStagesSeeSnapshots(t *testing.T) {
	p := pipeline.New([]pipeline.Stage{
		stage("a", func(context.Context, report.State) (report.Update, error) {
			return report.Update{Patterns: []string{"Leukopenia"}}, nil
		}),
		stage("b", func(_ context.Context, st report.State) (report.Update, error) {
			st.Patterns[0] = "mutated"
			st.Errors = append(st.Errors, "dropped")
			return report.Update{}, nil
		}),
	}, 0, discard)

	st := p.Run(context.Background(), "text", "")
	if st.Patterns[0] != "Leukopenia" {
		t.Errorf("stage mutated orchestrator state: %v", st.Patterns)
	}
	if len(st.Errors) != 0 {
		t.Errorf("errors: got %v", st.Errors)
	}
}

type extractorFunc func(context.Context, string) (map[string]report.ExtractedParameter, report.PatientInfo, error)

func (f extractorFunc) Extract(ctx context.Context, text string) (map[string]report.ExtractedParameter, report.PatientInfo, error) {
	return f(ctx, text)
}

func TestExtractStage(t *testing.T) {
	t.Run("no text", func(t *testing.T) {
		s := pipeline.ExtractStage(extractorFunc(func(context.Context, string) (map[string]report.ExtractedParameter, report.PatientInfo, error) {
			return nil, report.PatientInfo{}, extract.ErrNoText
		}))
		u, err := s.Run(context.Background(), report.New("", ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{pipeline.NoExtractText}, u.Errors); diff != "" {
			t.Errorf("errors mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("success", func(t *testing.T) {
		s := pipeline.ExtractStage(extractorFunc(func(_ context.Context, text string) (map[string]report.ExtractedParameter, report.PatientInfo, error) {
			return map[string]report.ExtractedParameter{
				"Hemoglobin": {Raw: "9", Value: ptr(9.0), Unit: "g/dL"},
			}, report.PatientInfo{Age: ptr(40)}, nil
		}))
		u, err := s.Run(context.Background(), report.New("Hb 9", ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Name() != pipeline.StageExtract {
			t.Errorf("name: got %s", s.Name())
		}
		if len(u.Parameters) != 1 || u.Patient == nil || *u.Patient.Age != 40 {
			t.Errorf("update: got %+v", u)
		}
	})
}

func TestInterpretStageSkipsEmpty(t *testing.T) {
	called := false
	s := pipeline.InterpretStage(interpret.Func(func(context.Context, map[string]report.ExtractedParameter, report.PatientInfo) (map[string]report.InterpretedParameter, error) {
		called = true
		return nil, nil
	}))

	u, err := s.Run(context.Background(), report.New("text", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called || u.Interpreted != nil {
		t.Error("interpreter should not run without parameters")
	}
}

func TestStagesWithUnavailableModel(t *testing.T) {
	model := llm.Func(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("connection refused")
	})

	stages, err := pipeline.Stages(model, discard)
	if err != nil {
		t.Fatalf("stages: %v", err)
	}

	st := pipeline.New(stages, time.Second, discard).Run(context.Background(), "Hemoglobin 9.1 g/dL", "lab.pdf")

	want := []string{"LLM Extraction failed: connection refused"}
	if diff := cmp.Diff(want, st.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if st.Synthesis != synthesis.NoData {
		t.Errorf("synthesis: got %q, want %q", st.Synthesis, synthesis.NoData)
	}
	if st.Risk != nil || st.Context != nil || len(st.Recommendations) != 0 {
		t.Errorf("downstream fields should be empty: %+v", st)
	}
}

type fakeIndexer struct {
	mu    sync.Mutex
	calls int
	id    string
	err   error
}

func (f *fakeIndexer) Index(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.id, f.err
}

type fakeArchive struct {
	saved map[string]report.State
	err   error
}

func (f *fakeArchive) Save(_ context.Context, sid string, st report.State) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved[sid] = st
	return "reports/" + sid + "/x.json", nil
}

func simplePipeline() *pipeline.Pipeline {
	return pipeline.New([]pipeline.Stage{
		stage("synth", func(context.Context, report.State) (report.Update, error) {
			return report.Update{Synthesis: ptr("done")}, nil
		}),
	}, time.Second, discard)
}

func TestAnalyzerJoinsCollection(t *testing.T) {
	store := sessions.New()
	ix := &fakeIndexer{id: "report_abc"}
	arch := &fakeArchive{saved: map[string]report.State{}}
	a := pipeline.NewAnalyzer(simplePipeline(), ix, store, arch, time.Second, discard)

	st := a.Analyze(context.Background(), "Hemoglobin 9", "lab.pdf", "")

	if st.CollectionID != "report_abc" {
		t.Errorf("collection: got %q", st.CollectionID)
	}
	if st.Synthesis != "done" {
		t.Errorf("synthesis: got %q", st.Synthesis)
	}

	cached, ok := store.Report(sessions.DefaultID)
	if !ok {
		t.Fatal("report should be cached under the default session")
	}
	if diff := cmp.Diff(st, cached); diff != "" {
		t.Errorf("cached state mismatch (-want +got):\n%s", diff)
	}
	if _, ok := arch.saved[sessions.DefaultID]; !ok {
		t.Error("report should be archived")
	}
}

func TestAnalyzerIndexFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no text", index.ErrNoText, pipeline.NoIndexText},
		{"embedding", errors.New("embedding service down"), "RAG Indexing Error: embedding service down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := pipeline.NewAnalyzer(simplePipeline(), &fakeIndexer{err: tt.err}, sessions.New(), nil, time.Second, discard)
			st := a.Analyze(context.Background(), "text", "", "s1")

			if st.CollectionID != "" {
				t.Errorf("collection should be absent, got %q", st.CollectionID)
			}
			if diff := cmp.Diff([]string{tt.want}, st.Errors); diff != "" {
				t.Errorf("errors mismatch (-want +got):\n%s", diff)
			}
			if st.Synthesis != "done" {
				t.Errorf("pipeline result should survive index failure, got %q", st.Synthesis)
			}
		})
	}
}

func TestAnalyzerBlankTextSkipsIndexing(t *testing.T) {
	store := sessions.New()
	ix := &fakeIndexer{id: "report_abc"}
	a := pipeline.NewAnalyzer(simplePipeline(), ix, store, nil, time.Second, discard)

	st := a.Analyze(context.Background(), " ", "", "s1")

	if ix.calls != 0 {
		t.Errorf("indexer calls: got %d, want 0", ix.calls)
	}
	if diff := cmp.Diff([]string{pipeline.NoText}, st.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if _, ok := store.Report("s1"); !ok {
		t.Error("blank analysis should still be cached")
	}
}

func TestAnalyzerArchiveFailureIsNotRecorded(t *testing.T) {
	arch := &fakeArchive{err: errors.New("storage offline")}
	a := pipeline.NewAnalyzer(simplePipeline(), &fakeIndexer{id: "report_1"}, sessions.New(), arch, time.Second, discard)

	st := a.Analyze(context.Background(), "text", "", "s1")
	if len(st.Errors) != 0 {
		t.Errorf("errors: got %v", st.Errors)
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_STAGE_TIMEOUT", "30s")

	cfg := pipeline.Config{}
	if err := cfg.Finalize(&pipeline.Env{StageTimeout: "TEST_STAGE_TIMEOUT"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.StageTimeoutDuration() != 30*time.Second {
		t.Errorf("stage timeout: got %v", cfg.StageTimeoutDuration())
	}
	if cfg.IndexTimeoutDuration() != 5*time.Minute {
		t.Errorf("index timeout: got %v", cfg.IndexTimeoutDuration())
	}
	if cfg.Concurrency != 4 {
		t.Errorf("concurrency: got %d", cfg.Concurrency)
	}

	bad := pipeline.Config{StageTimeout: "soon"}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected error for invalid stage timeout")
	}
}
