package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/JaimeStill/hemalyze/internal/assess"
	"github.com/JaimeStill/hemalyze/internal/contextual"
	"github.com/JaimeStill/hemalyze/internal/extract"
	"github.com/JaimeStill/hemalyze/internal/interpret"
	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/recommend"
	"github.com/JaimeStill/hemalyze/internal/report"
	"github.com/JaimeStill/hemalyze/internal/synthesis"
)

// Stage names as they appear in recorded failures.
const (
	StageExtract   = "LLM Extraction"
	StageInterpret = "Interpretation"
	StagePatterns  = "Model 2 (Patterns)"
	StageContext   = "Model 3 (Context)"
	StageSynthesis = "Synthesis Node"
	StageRecommend = "Recommendations Node"
)

// NoExtractText is recorded when extraction is handed empty text.
const NoExtractText = "No text to extract from."

type Extractor interface {
	Extract(ctx context.Context, text string) (map[string]report.ExtractedParameter, report.PatientInfo, error)
}

type Assessor interface {
	Assess(ctx context.Context, interpreted map[string]report.InterpretedParameter, patient report.PatientInfo) ([]string, *report.RiskAssessment, error)
}

type ContextAnalyzer interface {
	Analyze(ctx context.Context, patient report.PatientInfo, interpreted map[string]report.InterpretedParameter, patterns []string) (*report.ContextAnalysis, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, in synthesis.Input) (string, error)
}

type Recommender interface {
	Recommend(ctx context.Context, text string) ([]string, error)
}

// ExtractStage populates parameters and demographics.
func ExtractStage(e Extractor) Stage {
	return StageFunc{Label: StageExtract, Fn: func(ctx context.Context, st report.State) (report.Update, error) {
		params, patient, err := e.Extract(ctx, st.RawText)
		if errors.Is(err, extract.ErrNoText) {
			return report.Fail(NoExtractText), nil
		}
		if err != nil {
			return report.Update{}, err
		}
		return report.Update{Parameters: params, Patient: &patient}, nil
	}}
}

// InterpretStage tags extracted values against reference ranges.
func InterpretStage(i interpret.Interpreter) Stage {
	return StageFunc{Label: StageInterpret, Fn: func(ctx context.Context, st report.State) (report.Update, error) {
		if len(st.Parameters) == 0 {
			return report.Update{}, nil
		}
		out, err := i.Interpret(ctx, st.Parameters, st.Patient)
		if err != nil {
			return report.Update{}, err
		}
		return report.Update{Interpreted: out}, nil
	}}
}

// PatternStage detects syndromes and scores risk.
func PatternStage(a Assessor) Stage {
	return StageFunc{Label: StagePatterns, Fn: func(ctx context.Context, st report.State) (report.Update, error) {
		patterns, risk, err := a.Assess(ctx, st.Interpreted, st.Patient)
		if err != nil {
			return report.Update{}, err
		}
		return report.Update{Patterns: patterns, Risk: risk}, nil
	}}
}

// ContextStage relates findings to demographics.
func ContextStage(c ContextAnalyzer) Stage {
	return StageFunc{Label: StageContext, Fn: func(ctx context.Context, st report.State) (report.Update, error) {
		analysis, err := c.Analyze(ctx, st.Patient, st.Interpreted, st.Patterns)
		if err != nil {
			return report.Update{}, err
		}
		return report.Update{Context: analysis}, nil
	}}
}

// SynthesisStage writes the patient-facing narrative.
func SynthesisStage(s Synthesizer) Stage {
	return StageFunc{Label: StageSynthesis, Fn: func(ctx context.Context, st report.State) (report.Update, error) {
		text, err := s.Synthesize(ctx, synthesis.Input{
			Patient:     st.Patient,
			Interpreted: st.Interpreted,
			Patterns:    st.Patterns,
			Risk:        st.Risk,
			Context:     st.Context,
		})
		if err != nil {
			return report.Update{}, err
		}
		return report.Update{Synthesis: &text}, nil
	}}
}

// RecommendStage derives next steps from the narrative.
func RecommendStage(r Recommender) Stage {
	return StageFunc{Label: StageRecommend, Fn: func(ctx context.Context, st report.State) (report.Update, error) {
		items, err := r.Recommend(ctx, st.Synthesis)
		if err != nil {
			return report.Update{}, err
		}
		return report.Update{Recommendations: items}, nil
	}}
}

// Stages builds the standard stage sequence on a single model.
func Stages(model llm.Completer, logger *slog.Logger) ([]Stage, error) {
	extractor, err := extract.New(model, logger)
	if err != nil {
		return nil, err
	}

	ranges, err := interpret.DefaultTable()
	if err != nil {
		return nil, err
	}

	assessor, err := assess.New(model, logger)
	if err != nil {
		return nil, err
	}

	return []Stage{
		ExtractStage(extractor),
		InterpretStage(ranges),
		PatternStage(assessor),
		ContextStage(contextual.New(model, logger)),
		SynthesisStage(synthesis.New(model, logger)),
		RecommendStage(recommend.New(model, logger)),
	}, nil
}
