package synthesis_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/prompts"
	"github.com/JaimeStill/hemalyze/internal/report"
	"github.com/JaimeStill/hemalyze/internal/synthesis"
)

func ptr[T any](v T) *T { return &v }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "headers become bold titles",
			in:   "## Summary\nYour hemoglobin is low.\n### **Next Steps** ###\nSee a doctor.",
			want: "**Summary**\nYour hemoglobin is low.\n**Next Steps**\nSee a doctor.",
		},
		{
			name: "horizontal rules removed",
			in:   "First part.\n---\nSecond part.\n* * *\nThird part.",
			want: "First part.\nSecond part.\nThird part.",
		},
		{
			name: "existing signature replaced",
			in:   "Body text.\n\nSincerely,\n\nDr. Someone Else\nConsultant",
			want: "Body text.",
		},
		{
			name: "bold signoff replaced",
			in:   "Body text.\n\n**Sincerely,**\n" + prompts.Signature,
			want: "Body text.",
		},
		{
			name: "blank runs collapsed",
			in:   "One.\n\n\n\nTwo.",
			want: "One.\n\nTwo.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := synthesis.Normalize(tt.in)
			want := tt.want + "\n\n" + prompts.Signature
			if got != want {
				t.Errorf("normalize:\ngot  %q\nwant %q", got, want)
			}
			if n := strings.Count(got, prompts.Signature); n != 1 {
				t.Errorf("signature count: got %d, want 1", n)
			}
		})
	}
}

func TestSynthesizeNoData(t *testing.T) {
	calls := 0
	model := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
		calls++
		return "text", nil
	})

	got, err := synthesis.New(model, discard).Synthesize(context.Background(), synthesis.Input{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got != synthesis.NoData {
		t.Errorf("got %q, want %q", got, synthesis.NoData)
	}
	if calls != 0 {
		t.Errorf("model calls: got %d, want 0", calls)
	}
}

func TestSynthesizeListsOnlyAbnormal(t *testing.T) {
	var prompt string
	model := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
		prompt = req.Prompt
		return "# Report\nYour results show anemia.", nil
	})

	in := synthesis.Input{
		Interpreted: map[string]report.InterpretedParameter{
			"Hemoglobin": {Value: ptr(9.0), Unit: "g/dL", Status: report.StatusLow},
			"MCHC":       {Value: ptr(33.0), Unit: "g/dL", Status: report.StatusNormal},
		},
		Patterns: []string{"Normocytic Anemia"},
		Risk:     &report.RiskAssessment{Score: 5, Rationale: []string{"Low hemoglobin"}},
	}

	got, err := synthesis.New(model, discard).Synthesize(context.Background(), in)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	if !strings.Contains(prompt, "Hemoglobin") {
		t.Error("prompt missing abnormal hemoglobin")
	}
	if strings.Contains(prompt, "MCHC") {
		t.Error("prompt lists normal MCHC")
	}
	if !strings.HasPrefix(got, "**Report**\nYour results show anemia.") {
		t.Errorf("report: got %q", got)
	}
	if !strings.HasSuffix(got, prompts.Signature) {
		t.Error("report missing signature")
	}
}

func TestSynthesizeFailures(t *testing.T) {
	in := synthesis.Input{
		Interpreted: map[string]report.InterpretedParameter{
			"Hemoglobin": {Value: ptr(9.0), Status: report.StatusLow},
		},
	}

	t.Run("model error", func(t *testing.T) {
		model := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("unavailable")
		})
		if _, err := synthesis.New(model, discard).Synthesize(context.Background(), in); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("empty report", func(t *testing.T) {
		model := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
			return "---\n", nil
		})
		_, err := synthesis.New(model, discard).Synthesize(context.Background(), in)
		if !errors.Is(err, synthesis.ErrEmptyReport) {
			t.Errorf("error: got %v, want ErrEmptyReport", err)
		}
	})
}
