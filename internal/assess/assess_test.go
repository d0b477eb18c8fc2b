package assess_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JaimeStill/hemalyze/internal/assess"
	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/report"
)

func tagged(v float64, unit string, s report.Status) report.InterpretedParameter {
	return report.InterpretedParameter{Value: &v, Unit: unit, Status: s}
}

func newAssessor(t *testing.T, content string, err error) (*assess.Assessor, *int) {
	t.Helper()
	calls := 0
	model := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
		calls++
		return content, err
	})
	a, aerr := assess.New(model, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if aerr != nil {
		t.Fatalf("new assessor: %v", aerr)
	}
	return a, &calls
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name          string
		interpreted   map[string]report.InterpretedParameter
		model         string
		wantPatterns  []string
		wantScore     int
		wantRationale []string
	}{
		{
			name: "microcytic anemia",
			interpreted: map[string]report.InterpretedParameter{
				"Hemoglobin":     tagged(9, "g/dL", report.StatusLow),
				"MCV":            tagged(70, "fL", report.StatusLow),
				"Platelet Count": tagged(250000, "cumm", report.StatusNormal),
			},
			model:        `{"patterns": ["Microcytic Anemia"], "risk_score": 5, "risk_rationale": ["Low hemoglobin with small red cells"]}`,
			wantPatterns: []string{"Microcytic Anemia"},
			wantScore:    5,
			wantRationale: []string{
				"Low hemoglobin with small red cells",
				"Microcytic Anemia: Hemoglobin 9 g/dL (low), MCV 70 fL (low)",
			},
		},
		{
			name: "packed cell volume high alone is hemoconcentration",
			interpreted: map[string]report.InterpretedParameter{
				"Hemoglobin":         tagged(15, "g/dL", report.StatusNormal),
				"Packed Cell Volume": tagged(55, "%", report.StatusHigh),
			},
			model:        `{"patterns": ["Polycythemia"], "risk_score": 8, "risk_rationale": []}`,
			wantPatterns: []string{"Hemoconcentration"},
			wantScore:    6,
			wantRationale: []string{
				"Hemoconcentration: Packed Cell Volume 55 % (high)",
			},
		},
		{
			name: "polycythemia excludes hemoconcentration",
			interpreted: map[string]report.InterpretedParameter{
				"Hemoglobin":         tagged(19, "g/dL", report.StatusHigh),
				"Packed Cell Volume": tagged(58, "%", report.StatusHigh),
			},
			model:        `{"patterns": ["Polycythemia", "Hemoconcentration"], "risk_score": 3, "risk_rationale": []}`,
			wantPatterns: []string{"Polycythemia"},
			wantScore:    7,
			wantRationale: []string{
				"Polycythemia: Hemoglobin 19 g/dL (high), Packed Cell Volume 58 % (high)",
			},
		},
		{
			name: "borderline platelets alone",
			interpreted: map[string]report.InterpretedParameter{
				"Platelet Count": tagged(145000, "cumm", report.StatusBorderline),
			},
			model:        `{"patterns": ["Thrombocytopenia"], "risk_score": 4, "risk_rationale": []}`,
			wantPatterns: []string{},
			wantScore:    3,
			wantRationale: []string{
				"No syndrome pattern detected: Platelet Count 145000 cumm (borderline)",
			},
		},
		{
			name: "normal values never contribute",
			interpreted: map[string]report.InterpretedParameter{
				"Hemoglobin": tagged(14, "g/dL", report.StatusNormal),
				"MCV":        tagged(90, "fL", report.StatusNormal),
			},
			model:         `{"patterns": ["Microcytic Anemia"], "risk_score": 5, "risk_rationale": []}`,
			wantPatterns:  []string{},
			wantScore:     3,
			wantRationale: []string{"No abnormal values detected"},
		},
		{
			name: "pancytopenia is critical and absorbs leukopenia",
			interpreted: map[string]report.InterpretedParameter{
				"Hemoglobin":      tagged(7.5, "g/dL", report.StatusLow),
				"MCV":             tagged(90, "fL", report.StatusNormal),
				"Total WBC count": tagged(2500, "cumm", report.StatusLow),
				"Platelet Count":  tagged(145000, "cumm", report.StatusBorderline),
			},
			model:        `{"patterns": ["Pancytopenia"], "risk_score": 5, "risk_rationale": []}`,
			wantPatterns: []string{"Pancytopenia", "Normocytic Anemia"},
			wantScore:    9,
			wantRationale: []string{
				"Leukopenia suppressed: contradicts Pancytopenia, which is supported by Hemoglobin status",
				"Pancytopenia: Hemoglobin 7.5 g/dL (low), Total WBC count 2500 cumm (low), Platelet Count 145000 cumm (borderline)",
				"Normocytic Anemia: Hemoglobin 7.5 g/dL (low)",
			},
		},
		{
			name: "low hemoglobin with high packed cell volume keeps hemoconcentration",
			interpreted: map[string]report.InterpretedParameter{
				"Hemoglobin":         tagged(10, "g/dL", report.StatusLow),
				"MCV":                tagged(88, "fL", report.StatusNormal),
				"Packed Cell Volume": tagged(52, "%", report.StatusHigh),
			},
			model:        `{"patterns": ["Polycythemia"], "risk_score": 5, "risk_rationale": []}`,
			wantPatterns: []string{"Normocytic Anemia", "Hemoconcentration"},
			wantScore:    7,
			wantRationale: []string{
				"Normocytic Anemia: Hemoglobin 10 g/dL (low)",
				"Hemoconcentration: Packed Cell Volume 52 % (high)",
			},
		},
		{
			name: "microcytic anemia with hemoconcentration",
			interpreted: map[string]report.InterpretedParameter{
				"Hemoglobin":         tagged(9.5, "g/dL", report.StatusLow),
				"MCV":                tagged(72, "fL", report.StatusLow),
				"Packed Cell Volume": tagged(51, "%", report.StatusHigh),
			},
			model:        `{"patterns": ["Microcytic Anemia", "Hemoconcentration"], "risk_score": 9, "risk_rationale": ["Small red cells with concentrated blood"]}`,
			wantPatterns: []string{"Microcytic Anemia", "Hemoconcentration"},
			wantScore:    8,
			wantRationale: []string{
				"Small red cells with concentrated blood",
				"Microcytic Anemia: Hemoglobin 9.5 g/dL (low), MCV 72 fL (low)",
				"Hemoconcentration: Packed Cell Volume 51 % (high)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAssessor(t, tt.model, nil)

			patterns, risk, err := a.Assess(context.Background(), tt.interpreted, report.PatientInfo{})
			if err != nil {
				t.Fatalf("assess: %v", err)
			}

			if diff := cmp.Diff(tt.wantPatterns, patterns); diff != "" {
				t.Errorf("patterns mismatch (-want +got):\n%s", diff)
			}
			if risk == nil {
				t.Fatal("risk: got nil")
			}
			if risk.Score != tt.wantScore {
				t.Errorf("score: got %d, want %d", risk.Score, tt.wantScore)
			}
			if diff := cmp.Diff(tt.wantRationale, risk.Rationale); diff != "" {
				t.Errorf("rationale mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssessNoParameters(t *testing.T) {
	a, calls := newAssessor(t, "{}", nil)

	patterns, risk, err := a.Assess(context.Background(), nil, report.PatientInfo{})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if patterns != nil || risk != nil {
		t.Errorf("got patterns=%v risk=%v, want nothing", patterns, risk)
	}
	if *calls != 0 {
		t.Errorf("model calls: got %d, want 0", *calls)
	}
}

func TestAssessRationaleNeverEmpty(t *testing.T) {
	a, _ := newAssessor(t, `{"patterns": [], "risk_score": 0, "risk_rationale": ["  "]}`, nil)

	interpreted := map[string]report.InterpretedParameter{
		"Hemoglobin":      tagged(14, "g/dL", report.StatusNormal),
		"Total WBC count": tagged(7000, "cumm", report.StatusNormal),
	}

	_, risk, err := a.Assess(context.Background(), interpreted, report.PatientInfo{})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if risk.Score != 1 {
		t.Errorf("score: got %d, want 1", risk.Score)
	}
	if diff := cmp.Diff([]string{"No abnormal values detected"}, risk.Rationale); diff != "" {
		t.Errorf("rationale mismatch (-want +got):\n%s", diff)
	}
}

func TestAssessModelFailure(t *testing.T) {
	interpreted := map[string]report.InterpretedParameter{
		"Hemoglobin": tagged(9, "g/dL", report.StatusLow),
	}

	for _, tc := range []struct {
		name    string
		content string
		err     error
	}{
		{"transport", "", errors.New("timeout")},
		{"invalid json", "the patient looks anemic", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := newAssessor(t, tc.content, tc.err)
			patterns, risk, err := a.Assess(context.Background(), interpreted, report.PatientInfo{})
			if err == nil {
				t.Fatal("expected error")
			}
			if patterns != nil || risk != nil {
				t.Errorf("partial result returned: patterns=%v risk=%v", patterns, risk)
			}
		})
	}
}

func TestAssessPromptCarriesTable(t *testing.T) {
	var prompt string
	model := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
		prompt = req.Prompt
		return `{"patterns": [], "risk_score": 1, "risk_rationale": []}`, nil
	})
	a, err := assess.New(model, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = a.Assess(context.Background(), map[string]report.InterpretedParameter{
		"MCV": tagged(90, "fL", report.StatusNormal),
	}, report.PatientInfo{})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}

	for _, want := range []string{"Syndrome Table:", "Polycythemia (severe)", "Interpreted Parameters:", `"risk_score"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBand(t *testing.T) {
	table, err := assess.DefaultTable()
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	pick := func(names ...string) []assess.Pattern {
		var out []assess.Pattern
		for _, n := range names {
			p, ok := table.Pattern(n)
			if !ok {
				t.Fatalf("pattern %s missing", n)
			}
			out = append(out, p)
		}
		return out
	}

	tests := []struct {
		name     string
		patterns []assess.Pattern
		low      int
		high     int
	}{
		{"none", nil, 1, 3},
		{"one moderate", pick("Viral Infection"), 4, 6},
		{"two moderate", pick("Viral Infection", "Eosinophilia"), 7, 8},
		{"one severe", pick("Polycythemia"), 7, 8},
		{"critical", pick("Pancytopenia"), 9, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, high := assess.Band(tt.patterns)
			if low != tt.low || high != tt.high {
				t.Errorf("band: got %d-%d, want %d-%d", low, high, tt.low, tt.high)
			}
		})
	}
}

func TestParseTableRejectsNormalContributor(t *testing.T) {
	data := []byte(`
patterns:
  - name: Odd
    severity: moderate
    requires:
      - {param: Hemoglobin, status: [normal]}
`)
	if _, err := assess.ParseTable(data); !errors.Is(err, assess.ErrInvalidTable) {
		t.Errorf("error: got %v, want ErrInvalidTable", err)
	}
}

func TestDefaultTableHasNoBorderlineThrombocytopenia(t *testing.T) {
	table, _ := assess.DefaultTable()
	p, ok := table.Pattern("thrombocytopenia")
	if !ok {
		t.Fatal("thrombocytopenia missing")
	}
	for _, c := range p.Requires {
		if slices.Contains(c.Status, report.StatusBorderline) {
			t.Errorf("%s accepts borderline", c.Param)
		}
	}
}
