package formatting_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/JaimeStill/hemalyze/pkg/formatting"
)

type riskResponse struct {
	Score     int      `json:"risk_score"`
	Rationale []string `json:"rationale"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantScore int
	}{
		{"direct JSON", `{"risk_score":5,"rationale":["hb low"]}`, 5},
		{"padded JSON", "  {\"risk_score\":3}  ", 3},
		{"fenced with tag", "```json\n{\"risk_score\":7}\n```", 7},
		{"fenced without tag", "```\n{\"risk_score\":2}\n```", 2},
		{"fenced inside prose", "Result:\n```json\n{\"risk_score\":4}\n```\nDone.", 4},
		{"object inside prose", `Here you go: {"risk_score":6} hope it helps`, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[riskResponse](tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got.Score != tt.wantScore {
				t.Errorf("score: got %d, want %d", got.Score, tt.wantScore)
			}
		})
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain text", "the patient looks fine"},
		{"empty", ""},
		{"broken fence", "```json\n{broken\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := formatting.Parse[riskResponse](tt.input)
			if !errors.Is(err, formatting.ErrParseFailed) {
				t.Errorf("error: got %v, want ErrParseFailed", err)
			}
		})
	}
}

func TestParseErrorTruncatesContent(t *testing.T) {
	_, err := formatting.Parse[riskResponse](strings.Repeat("x", 2000))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > 600 {
		t.Errorf("error length: got %d, want <= 600", len(err.Error()))
	}
}

func TestTruncate(t *testing.T) {
	if got := formatting.Truncate("abc", 5); got != "abc" {
		t.Errorf("short: got %q", got)
	}
	if got := formatting.Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("long: got %q, want abc...", got)
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"1KB", 1024, false},
		{"2MB", 2 * 1024 * 1024, false},
		{"10 mb", 10 * 1024 * 1024, false},
		{"", 0, true},
		{"5XX", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("bytes: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatting.FormatBytes(0, 1); got != "0 B" {
		t.Errorf("zero: got %q", got)
	}
	if got := formatting.FormatBytes(1536, 1); got != "1.5 KB" {
		t.Errorf("kilobytes: got %q, want 1.5 KB", got)
	}
}
