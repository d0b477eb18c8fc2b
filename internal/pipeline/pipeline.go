// Package pipeline runs the analysis stages over a report in dependency
// order and isolates their failures from one another.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/hemalyze/internal/report"
)

// NoText is the only error recorded when there is nothing to analyze.
const NoText = "No text to analyze."

// Stage is one step of the analysis. Run receives a private snapshot and
// returns the fields it owns. A returned error discards the update.
type Stage interface {
	Name() string
	Run(ctx context.Context, st report.State) (report.Update, error)
}

// StageFunc adapts a function to Stage.
type StageFunc struct {
	Label string
	Fn    func(context.Context, report.State) (report.Update, error)
}

func (s StageFunc) Name() string { return s.Label }

func (s StageFunc) Run(ctx context.Context, st report.State) (report.Update, error) {
	return s.Fn(ctx, st)
}

// Pipeline folds stages over a report state.
type Pipeline struct {
	stages  []Stage
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a Pipeline running stages in the given order. A zero
// timeout leaves stages bounded only by the caller's context.
func New(stages []Stage, timeout time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		stages:  stages,
		timeout: timeout,
		logger:  logger.With("system", "pipeline"),
		tracer:  otel.Tracer("github.com/JaimeStill/hemalyze/internal/pipeline"),
	}
}

// Failure formats a stage error the way it appears in the report.
func Failure(stage string, err error) string {
	return fmt.Sprintf("%s failed: %v", stage, err)
}

// Run analyzes raw and always returns a complete state. Stage failures
// are recorded in the state's errors and the run continues.
func (p *Pipeline) Run(ctx context.Context, raw, source string) report.State {
	ctx, span := p.tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	st := report.New(raw, source)
	if strings.TrimSpace(raw) == "" {
		st.Errors = append(st.Errors, NoText)
		span.SetStatus(codes.Error, NoText)
		return st
	}

	start := time.Now()
	for _, stage := range p.stages {
		st = report.Merge(st, p.runStage(ctx, stage, st.Clone()))
	}

	span.SetAttributes(attribute.Int("errors", len(st.Errors)))
	p.logger.InfoContext(ctx, "pipeline complete",
		"stages", len(p.stages),
		"errors", len(st.Errors),
		"duration", time.Since(start),
	)

	return st
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, st report.State) (u report.Update) {
	name := stage.Name()
	ctx, span := p.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()

	fail := func(err error) report.Update {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.WarnContext(ctx, "stage failed", "stage", name, "error", err)
		return report.Fail(Failure(name, err))
	}

	defer func() {
		if r := recover(); r != nil {
			u = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	u, err := stage.Run(ctx, st)
	if err != nil {
		return fail(err)
	}

	p.logger.InfoContext(ctx, "stage complete", "stage", name, "duration", time.Since(start))
	return u
}
