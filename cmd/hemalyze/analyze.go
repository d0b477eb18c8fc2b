package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/hemalyze/internal/api"
	"github.com/JaimeStill/hemalyze/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CBC report and print the result as JSON",
	Long: `Analyze runs the full pipeline over a text report and prints the
analysis as JSON. Pass "-" to read the report from standard input.

  hemalyze analyze report.txt
  pdftotext report.pdf - | hemalyze analyze -`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text, source, err := readReport(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = analyzeTo(cmd.Context(), a.domain, cmd.OutOrStdout(), text, source, rootFlags.session)
	return err
}

// analyzeTo runs the analysis and writes the client view to w.
func analyzeTo(ctx context.Context, domain *api.Domain, w io.Writer, text, source, sessionID string) (report.State, error) {
	st := domain.Analyzer.Analyze(ctx, text, source, sessionID)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return st, enc.Encode(api.NewAnalysisResponse(sessionID, st))
}
