package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/hemalyze/internal/index"
	"github.com/JaimeStill/hemalyze/internal/report"
	"github.com/JaimeStill/hemalyze/internal/sessions"
)

// NoIndexText is recorded when the indexer had nothing to store.
const NoIndexText = "No text available for RAG indexing"

type Indexer interface {
	Index(ctx context.Context, raw, source string) (string, error)
}

type Archiver interface {
	Save(ctx context.Context, sessionID string, st report.State) (string, error)
}

// Analyzer runs the pipeline alongside the indexer and publishes the
// finished state to the session store.
type Analyzer struct {
	pipeline     *Pipeline
	indexer      Indexer
	sessions     *sessions.Store
	archive      Archiver
	indexTimeout time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewAnalyzer creates an Analyzer. archive may be nil.
func NewAnalyzer(
	p *Pipeline,
	indexer Indexer,
	store *sessions.Store,
	archive Archiver,
	indexTimeout time.Duration,
	logger *slog.Logger,
) *Analyzer {
	return &Analyzer{
		pipeline:     p,
		indexer:      indexer,
		sessions:     store,
		archive:      archive,
		indexTimeout: indexTimeout,
		logger:       logger.With("system", "analyzer"),
		tracer:       otel.Tracer("github.com/JaimeStill/hemalyze/internal/pipeline"),
	}
}

// Analyze produces the final state for one document and stores it under
// sessionID. It never fails; every fault is recorded in the state.
func (a *Analyzer) Analyze(ctx context.Context, raw, source, sessionID string) report.State {
	sid := sessions.Normalize(sessionID)
	ctx, span := a.tracer.Start(ctx, "pipeline.Analyze", trace.WithAttributes(attribute.String("session", sid)))
	defer span.End()

	if strings.TrimSpace(raw) == "" {
		st := a.pipeline.Run(ctx, raw, source)
		a.publish(ctx, sid, st)
		return st
	}

	var (
		g        errgroup.Group
		st       report.State
		id       string
		indexErr error
	)

	g.Go(func() error {
		st = a.pipeline.Run(ctx, raw, source)
		return nil
	})

	g.Go(func() error {
		id, indexErr = a.index(ctx, raw, source)
		return nil
	})

	_ = g.Wait()

	if indexErr != nil {
		a.logger.WarnContext(ctx, "indexing failed", "error", indexErr)
		st = report.Merge(st, report.Fail(IndexFailure(indexErr)))
	} else {
		st = report.Merge(st, report.Update{CollectionID: &id})
	}

	a.publish(ctx, sid, st)
	return st
}

// IndexFailure formats an indexing error the way it appears in the report.
func IndexFailure(err error) string {
	if errors.Is(err, index.ErrNoText) {
		return NoIndexText
	}
	return fmt.Sprintf("RAG Indexing Error: %v", err)
}

func (a *Analyzer) index(ctx context.Context, raw, source string) (id string, err error) {
	if a.indexer == nil {
		return "", errors.New("no indexer configured")
	}

	if a.indexTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.indexTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			id, err = "", fmt.Errorf("panic: %v", r)
		}
	}()

	return a.indexer.Index(ctx, raw, source)
}

func (a *Analyzer) publish(ctx context.Context, sid string, st report.State) {
	a.sessions.StoreReport(sid, st)

	if a.archive == nil {
		return
	}
	if _, err := a.archive.Save(ctx, sid, st); err != nil {
		a.logger.WarnContext(ctx, "archive failed", "session", sid, "error", err)
	}
}
