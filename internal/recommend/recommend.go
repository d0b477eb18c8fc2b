// Package recommend derives actionable health recommendations from the
// synthesized report.
package recommend

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/prompts"
	"github.com/JaimeStill/hemalyze/internal/synthesis"
)

// MinItems and MaxItems bound the number of recommendations returned.
const (
	MinItems = 3
	MaxItems = 5
)

// Caveat is added when the model did not advise seeing a clinician.
const Caveat = "Consult your doctor to review these results before making any changes to diet, medication, or lifestyle."

var errTooFewRecommendations = errors.New("too few recommendations returned")

var clinicianTerms = []string{"doctor", "physician", "clinician", "healthcare provider", "hematologist"}

// Recommender produces recommendations from a narrative report.
type Recommender struct {
	model  llm.Completer
	logger *slog.Logger
}

// New creates a Recommender.
func New(model llm.Completer, logger *slog.Logger) *Recommender {
	return &Recommender{
		model:  model,
		logger: logger.With("system", "recommend"),
	}
}

type response struct {
	Recommendations []string `json:"recommendations"`
}

// Validate requires enough items that Clamp can reach MinItems by adding
// the caveat.
func (r *response) Validate() error {
	n := 0
	for _, item := range r.Recommendations {
		if strings.TrimSpace(item) != "" {
			n++
		}
	}
	if n < MinItems-1 {
		return errTooFewRecommendations
	}
	return nil
}

// Recommend returns nil without calling the model when there is no
// report to work from.
func (r *Recommender) Recommend(ctx context.Context, report string) ([]string, error) {
	report = strings.TrimSpace(report)
	if report == "" || report == synthesis.NoData {
		return nil, nil
	}

	prompt, err := prompts.Compose(prompts.StageRecommend, prompts.Section{Title: "Report", Body: report})
	if err != nil {
		return nil, err
	}

	resp, err := llm.CompleteJSON[response](ctx, r.model, prompt)
	if err != nil {
		return nil, err
	}

	items := Clamp(resp.Recommendations)
	r.logger.DebugContext(ctx, "recommendations complete", "count", len(items))
	return items, nil
}

// Clamp drops blank items, keeps at most MaxItems, and ensures one item
// advises consulting a clinician. The caveat is also added when fewer than
// MinItems remain.
func Clamp(items []string) []string {
	out := make([]string, 0, MaxItems)
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
		if len(out) == MaxItems {
			break
		}
	}

	if len(out) >= MinItems {
		for _, item := range out {
			if mentionsClinician(item) {
				return out
			}
		}
	}

	if len(out) == MaxItems {
		out[MaxItems-1] = Caveat
		return out
	}
	return append(out, Caveat)
}

func mentionsClinician(item string) bool {
	lower := strings.ToLower(item)
	for _, term := range clinicianTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
