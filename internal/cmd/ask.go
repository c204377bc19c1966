package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/chat"
	"github.com/lexicon-labs/lexicon-cli/internal/sections"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a one-off legal question",
	Long: `Ask a single question without starting a conversation.

The answer is printed with the sources it cites. Sources are linked to
section numbers of the corpus when they can be matched. Pass "-" to read
the question from stdin, which is also read when no words are given and
input is piped.

Examples:
  lexicon ask What is the punishment for theft?
  echo "Who inherits a lordship?" | lexicon ask -
  lexicon ask "guest right" -o json --query '.citations[].section_number'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question, err := textArgs(ctx, args)
		if err != nil {
			return err
		}
		if question == "" {
			return api.ValidationError{Message: "question cannot be empty"}
		}

		answer, err := GetClient().Query(ctx, question)
		if err != nil {
			return fmt.Errorf("failed to ask question: %w", err)
		}

		return printResult(ctx, answerOutput{
			Query:     answer.Query,
			Response:  answer.Response,
			Citations: linkCitations(answer.Citations, loadDocuments(ctx)),
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

// linkedCitation is a citation with the section it was matched to.
type linkedCitation struct {
	Source        string `json:"source" yaml:"source"`
	Text          string `json:"text" yaml:"text"`
	DocumentID    string `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	SectionNumber string `json:"section_number,omitempty" yaml:"section_number,omitempty"`
}

func linkCitations(citations []api.Citation, docs []sections.FlatSection) []linkedCitation {
	out := make([]linkedCitation, 0, len(citations))
	for _, c := range citations {
		lc := linkedCitation{Source: c.Source, Text: c.Text}
		if doc, ok := chat.LinkCitation(c.Source, docs); ok {
			lc.DocumentID = doc.ID
			lc.SectionNumber = doc.SubsectionNumber
		}
		out = append(out, lc)
	}
	return out
}

// answerOutput is the output of ask.
type answerOutput struct {
	Query     string           `json:"query" yaml:"query"`
	Response  string           `json:"response" yaml:"response"`
	Citations []linkedCitation `json:"citations" yaml:"citations"`
}

func (a answerOutput) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, strings.TrimSpace(a.Response)); err != nil {
		return err
	}
	return writeCitations(w, a.Citations, "")
}

func writeCitations(w io.Writer, citations []linkedCitation, indent string) error {
	if len(citations) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%sSources:\n", indent)
	for i, c := range citations {
		label := c.Source
		if c.SectionNumber != "" {
			label += " (" + c.SectionNumber + ")"
		}
		fmt.Fprintf(w, "%s  [%d] %s\n", indent, i+1, label)
		if text := strings.TrimSpace(c.Text); text != "" {
			fmt.Fprintf(w, "%s      %s\n", indent, sections.Truncate(strings.Join(strings.Fields(text), " "), 120))
		}
	}
	return nil
}
