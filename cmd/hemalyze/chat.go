package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/hemalyze/internal/api"
	"github.com/JaimeStill/hemalyze/internal/chat"
)

var chatFlags struct {
	questions []string
	quiet     bool
}

var chatCmd = &cobra.Command{
	Use:   "chat <file>",
	Short: "Analyze a CBC report, then answer questions about it",
	Long: `Chat analyzes the report and answers questions about it. Questions
come from --question flags when given, otherwise one per line from
standard input until EOF or "exit".`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	f := chatCmd.Flags()
	f.StringArrayVarP(&chatFlags.questions, "question", "q", nil, "Question to ask (repeatable)")
	f.BoolVar(&chatFlags.quiet, "quiet", false, "Do not print the analysis before answering")
}

func runChat(cmd *cobra.Command, args []string) error {
	text, source, err := readReport(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	analysisOut := out
	if chatFlags.quiet {
		analysisOut = io.Discard
	}

	st, err := analyzeTo(cmd.Context(), a.domain, analysisOut, text, source, rootFlags.session)
	if err != nil {
		return err
	}
	if st.CollectionID == "" {
		return fmt.Errorf("report was not indexed: %s", strings.Join(st.Errors, "; "))
	}

	questions := chatFlags.questions
	var in io.Reader
	if len(questions) == 0 {
		in = cmd.InOrStdin()
	}

	return converse(cmd.Context(), a.domain, in, out, questions, st.CollectionID, rootFlags.session)
}

// converse answers each question in order, then every line read from in.
// Reading stops at EOF or a line of "exit" or "quit".
func converse(ctx context.Context, domain *api.Domain, in io.Reader, out io.Writer, questions []string, collection, sessionID string) error {
	ask := func(q string) {
		answer := domain.Answerer.Answer(ctx, chat.Question{
			Text:         q,
			CollectionID: collection,
			SessionID:    sessionID,
		})
		fmt.Fprintf(out, "> %s\n%s\n\n", q, answer)
	}

	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			ask(q)
		}
	}

	if in == nil {
		return nil
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		switch q {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		ask(q)
	}
	return scanner.Err()
}
