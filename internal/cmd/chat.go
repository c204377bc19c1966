package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/chat"
	"github.com/lexicon-labs/lexicon-cli/internal/output"
	"github.com/lexicon-labs/lexicon-cli/internal/sections"
)

const replQuit = "/quit"

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"conversation", "conv"},
	Short:   "Hold conversations with the legal assistant",
	Long: `Create, inspect and continue conversations.

Every assistant reply carries the sources it cites. Conversations are
stored by the service; nothing is kept locally.

Examples:
  lexicon chat start "What rights do guests have?"
  lexicon chat list
  lexicon chat send <id> "And if the host breaks them?"
  lexicon chat repl <id>`,
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		list, err := GetClient().ListConversations(ctx)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		convs, _, _ := paginate(list.Conversations, chatPage, chatLimit)
		return printResult(ctx, conversationList{Total: list.Total, Conversations: summarize(convs)})
	},
}

var chatNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conv, err := GetClient().CreateConversation(ctx, strings.TrimSpace(chatTitle))
		if err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		if structuredOutputRequested() {
			return printResult(ctx, conv)
		}
		fmt.Fprintf(stdoutFromContext(ctx), "Created conversation %s (%s)\n", conv.ID, conv.Title)
		return nil
	},
}

var chatShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation with its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conv, err := GetClient().GetConversation(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get conversation: %w", err)
		}
		return printResult(ctx, newTranscript(*conv, loadDocuments(ctx)))
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <id> <message...>",
	Short: "Send a message and print the reply",
	Long: `Send a message to a conversation and print the assistant's reply.

Pass "-" as the message to read it from stdin.

Examples:
  lexicon chat send 3f2a "What about repeat offenders?"
  cat question.txt | lexicon chat send 3f2a -`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text, err := textArgs(ctx, args[1:])
		if err != nil {
			return err
		}

		session := chat.NewSession(GetClient(), args[0])
		reply, err := session.Send(ctx, text)
		if err != nil {
			return err
		}
		return printResult(ctx, newReply(*reply, loadDocuments(ctx)))
	},
}

var chatStartCmd = &cobra.Command{
	Use:   "start <question...>",
	Short: "Start a conversation with a first question",
	Long: `Create a conversation titled after the question, send the question
and print the reply. Pass "-" to read the question from stdin.

Examples:
  lexicon chat start What are the marriage laws?`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question, err := textArgs(ctx, args)
		if err != nil {
			return err
		}

		session, reply, err := chat.Start(ctx, GetClient(), question)
		if err != nil {
			if session != nil {
				return fmt.Errorf("conversation %s created but the question failed: %w", session.ID(), err)
			}
			return err
		}

		out := startOutput{ConversationID: session.ID(), Title: chat.Title(question)}
		if conv := session.Conversation(); conv != nil {
			out.Title = conv.Title
		}
		if reply != nil {
			r := newReply(*reply, loadDocuments(ctx))
			out.Reply = &r
		}
		return printResult(ctx, out)
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Long: `Delete a conversation and all of its messages.

This action cannot be undone. Use --yes to skip the confirmation prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := args[0]

		prompt := fmt.Sprintf("Are you sure you want to delete conversation %s? This cannot be undone.", id)
		if !confirm(ctx, output.YesFromContext(ctx), prompt) {
			return nil
		}

		if err := GetClient().DeleteConversation(ctx, id); err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		return printStatus(ctx, map[string]string{"status": "deleted", "id": id}, "Deleted conversation: %s", id)
	},
}

var chatRenameCmd = &cobra.Command{
	Use:   "rename <id> <title...>",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		title := strings.TrimSpace(strings.Join(args[1:], " "))
		if title == "" {
			return api.ValidationError{Message: "title cannot be empty"}
		}

		conv, err := GetClient().RenameConversation(ctx, args[0], title)
		if err != nil {
			return fmt.Errorf("failed to rename conversation: %w", err)
		}
		if structuredOutputRequested() {
			return printResult(ctx, conv)
		}
		fmt.Fprintf(stdoutFromContext(ctx), "Renamed conversation %s to %q\n", conv.ID, conv.Title)
		return nil
	},
}

var chatReplCmd = &cobra.Command{
	Use:   "repl <id>",
	Short: "Chat interactively in a conversation",
	Long: `Read questions line by line and print each reply.

An empty conversation shows a few example questions first. Type /quit or
send EOF (Ctrl-D) to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context(), chat.NewSession(GetClient(), args[0]))
	},
}

var (
	chatTitle string
	chatPage  int
	chatLimit int
)

func init() {
	chatListCmd.Flags().IntVar(&chatPage, "page", 1, "Page number (with --limit)")
	chatListCmd.Flags().IntVar(&chatLimit, "limit", 0, "Conversations per page (0 = all)")
	chatNewCmd.Flags().StringVar(&chatTitle, "title", "", "Conversation title (default: the service default)")

	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatNewCmd)
	chatCmd.AddCommand(chatShowCmd)
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatStartCmd)
	chatCmd.AddCommand(chatDeleteCmd)
	chatCmd.AddCommand(chatRenameCmd)
	chatCmd.AddCommand(chatReplCmd)

	rootCmd.AddCommand(chatCmd)
}

func runREPL(ctx context.Context, session *chat.Session) error {
	conv, err := session.Load(ctx)
	if err != nil {
		return err
	}

	out := stdoutFromContext(ctx)
	errOut := stderrFromContext(ctx)
	text := GetOutputFormat() == output.FormatText
	docs := loadDocuments(ctx)

	if text {
		fmt.Fprintf(out, "%s (%s)\n", conv.Title, conv.ID)
		if len(conv.Messages) == 0 {
			fmt.Fprintln(out, "\nTry asking:")
			for _, s := range chat.Suggestions() {
				fmt.Fprintf(out, "  - %s\n", s)
			}
		}
		fmt.Fprintf(out, "\nType %s to leave.\n", replQuit)
	}

	scanner := bufio.NewScanner(stdinFromContext(ctx))
	for {
		if text {
			fmt.Fprint(errOut, "> ")
		}
		if !scanner.Scan() {
			if text {
				fmt.Fprintln(errOut)
			}
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case replQuit:
			return nil
		}

		reply, err := session.Send(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			printCommandError(ctx, err)
			continue
		}
		if err := printResult(ctx, newReply(*reply, docs)); err != nil {
			return err
		}
	}
}

// conversationSummary is one row of chat list.
type conversationSummary struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Messages  int       `json:"messages" yaml:"messages"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

type conversationList struct {
	Total         int                   `json:"total" yaml:"total"`
	Conversations []conversationSummary `json:"conversations" yaml:"conversations"`
}

func summarize(convs []api.Conversation) []conversationSummary {
	out := make([]conversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationSummary{
			ID:        c.ID,
			Title:     c.Title,
			Messages:  len(c.Messages),
			UpdatedAt: c.UpdatedAt,
		})
	}
	return out
}

func (l conversationList) RenderText(w io.Writer) error {
	if len(l.Conversations) == 0 {
		_, err := fmt.Fprintln(w, "No conversations.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range l.Conversations {
		updated := ""
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d msgs\t%s\n", c.ID, c.Title, c.Messages, updated)
	}
	return tw.Flush()
}

// replyOutput is a message with linked citations.
type replyOutput struct {
	Role      string           `json:"role" yaml:"role"`
	Content   string           `json:"content" yaml:"content"`
	Citations []linkedCitation `json:"citations" yaml:"citations"`
	Timestamp time.Time        `json:"timestamp" yaml:"timestamp"`
}

func newReply(m api.Message, docs []sections.FlatSection) replyOutput {
	return replyOutput{
		Role:      m.Role,
		Content:   m.Content,
		Citations: linkCitations(m.Citations, docs),
		Timestamp: m.Timestamp,
	}
}

func (r replyOutput) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, strings.TrimSpace(r.Content)); err != nil {
		return err
	}
	return writeCitations(w, r.Citations, "")
}

// transcript is the output of chat show.
type transcript struct {
	ID        string        `json:"id" yaml:"id"`
	Title     string        `json:"title" yaml:"title"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
	Messages  []replyOutput `json:"messages" yaml:"messages"`
}

func newTranscript(conv api.Conversation, docs []sections.FlatSection) transcript {
	t := transcript{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Messages:  make([]replyOutput, 0, len(conv.Messages)),
	}
	for _, m := range conv.Messages {
		t.Messages = append(t.Messages, newReply(m, docs))
	}
	return t
}

func (t transcript) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%s (%s)\n", t.Title, t.ID)
	if len(t.Messages) == 0 {
		_, err := fmt.Fprintln(w, "\nNo messages yet.")
		return err
	}
	for _, m := range t.Messages {
		fmt.Fprintf(w, "\n[%s] %s\n", m.Role, strings.TrimSpace(m.Content))
		if err := writeCitations(w, m.Citations, "  "); err != nil {
			return err
		}
	}
	return nil
}

// startOutput is the output of chat start.
type startOutput struct {
	ConversationID string       `json:"conversation_id" yaml:"conversation_id"`
	Title          string       `json:"title" yaml:"title"`
	Reply          *replyOutput `json:"reply,omitempty" yaml:"reply,omitempty"`
}

func (s startOutput) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Conversation %s (%s)\n\n", s.ConversationID, s.Title)
	if s.Reply == nil {
		return nil
	}
	return s.Reply.RenderText(w)
}
