// Package chat answers questions about an analyzed report using the
// report's vector collection, its analysis state, and the session's
// recent conversation.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/hemalyze/internal/embedding"
	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/prompts"
	"github.com/JaimeStill/hemalyze/internal/report"
	"github.com/JaimeStill/hemalyze/internal/sessions"
	"github.com/JaimeStill/hemalyze/internal/vectors"
)

const (
	// MissingCollection is the answer when the collection does not exist.
	MissingCollection = "Error: The document collection was not found. Please upload the report again."
	// FailurePrefix starts the answer when answering faults.
	FailurePrefix = "Error responding to chat: "
	// TruncationSuffix marks raw text cut to fit the prompt.
	TruncationSuffix = "... (truncated in context, see retrieved docs)"
)

// Question is a single chat request. Report, when set, is used instead of
// the session's stored snapshot.
type Question struct {
	Text         string
	CollectionID string
	SessionID    string
	Report       *report.State
}

// Answerer produces grounded answers. Answers are always returned as
// text; faults are reported inside the answer.
type Answerer struct {
	model    llm.Completer
	embedder embedding.Embedder
	store    vectors.Store
	sessions *sessions.Store
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
}

func New(
	model llm.Completer,
	embedder embedding.Embedder,
	store vectors.Store,
	history *sessions.Store,
	cfg Config,
	logger *slog.Logger,
) *Answerer {
	return &Answerer{
		model:    model,
		embedder: embedder,
		store:    store,
		sessions: history,
		cfg:      cfg,
		logger:   logger.With("system", "chat"),
		tracer:   otel.Tracer("github.com/JaimeStill/hemalyze/internal/chat"),
	}
}

// Answer responds to q and records the exchange in the session history.
// Failed answers are not recorded.
func (a *Answerer) Answer(ctx context.Context, q Question) string {
	sid := sessions.Normalize(q.SessionID)

	ctx, span := a.tracer.Start(ctx, "chat.Answer", trace.WithAttributes(
		attribute.String("chat.session", sid),
		attribute.String("chat.collection", q.CollectionID),
	))
	defer span.End()

	answer, err := a.answer(ctx, q, sid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.WarnContext(ctx, "chat failed", "session", sid, "error", err)
		return FailurePrefix + err.Error()
	}
	return answer
}

func (a *Answerer) answer(ctx context.Context, q Question, sid string) (string, error) {
	exists, err := a.store.Exists(ctx, q.CollectionID)
	if err != nil {
		return "", err
	}
	if !exists {
		return MissingCollection, nil
	}

	vec, err := a.embedder.Embed(ctx, q.Text)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	matches, err := a.store.Query(ctx, q.CollectionID, vec, a.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}

	state, err := a.stateSection(q.Report, sid)
	if err != nil {
		return "", err
	}

	prompt, err := prompts.Compose(
		prompts.StageChat,
		state,
		prompts.Section{Title: "Retrieved Text Context (Raw Report Excerpts)", Body: excerpts(matches)},
		prompts.Section{Title: "Conversation History", Body: transcript(a.sessions.Recent(sid, a.cfg.HistoryTurns))},
		prompts.Section{Title: "User Question", Body: q.Text},
	)
	if err != nil {
		return "", err
	}

	content, err := a.model.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(content)
	a.sessions.Append(sid, sessions.Turn{Question: q.Text, Answer: answer})

	a.logger.InfoContext(ctx, "chat answered", "session", sid, "excerpts", len(matches))
	return answer, nil
}

func (a *Answerer) stateSection(explicit *report.State, sid string) (prompts.Section, error) {
	const title = "FULL Analysis State (Synthesis, Patterns, Recommendations)"

	var st report.State
	switch {
	case explicit != nil:
		st = explicit.Clone()
	default:
		stored, ok := a.sessions.Report(sid)
		if !ok {
			return prompts.Section{Title: title}, nil
		}
		st = stored
	}

	st.RawText = TruncateRaw(st.RawText, a.cfg.RawTextBudget)
	return prompts.JSONSection(title, st)
}

// TruncateRaw cuts text longer than limit characters and marks the cut.
func TruncateRaw(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + TruncationSuffix
}

func excerpts(matches []vectors.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return strings.Join(texts, "\n")
}

func transcript(turns []sessions.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, t := range turns {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", t.Question, t.Answer)
	}
	return sb.String()
}
