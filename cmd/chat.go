package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/agent"
	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/rag"
)

var (
	chatAgent    string
	chatContext  bool
	chatTopK     int
	chatChapters []string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively with one of the agents",
	Long: `Start an interactive conversation with the chapter, validation, content or
formatter agent. The conversation history is kept until you type reset.

With --context every question is grounded in the most relevant indexed
chapters (run folio index first). --chapters limits retrieval to the named
chapters, identified by their data file names without extension.

Commands inside the chat:
  help     show the commands
  reset    forget the conversation so far
  exit     leave the chat

Examples:
  folio chat --agent chapter
  folio chat --agent content --context --topk 5
  folio chat --context --chapters chapter-xiii,chapter-xiv`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatAgent, "agent", config.RoleChapter, "Agent to chat with (chapter, validation, content, formatter)")
	chatCmd.Flags().BoolVar(&chatContext, "context", false, "Ground answers in indexed chapters")
	chatCmd.Flags().IntVar(&chatTopK, "topk", 3, "Number of chapters to retrieve for context")
	chatCmd.Flags().StringSliceVar(&chatChapters, "chapters", nil, "Restrict --context retrieval to these chapter ids")
}

// chatSession is one interactive conversation with an agent.
type chatSession struct {
	agent    *agent.Agent
	retrieve func(ctx context.Context, question string) ([]agent.ContextChunk, error)
	render   func(string) string

	history []agent.Message
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(chatChapters) > 0 && !chatContext {
		return fmt.Errorf("--chapters requires --context")
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	ag, err := a.agents.Get(chatAgent)
	if err != nil {
		return err
	}

	s := &chatSession{agent: ag, render: markdownRenderer()}

	if chatContext {
		embedder, store, err := openIndex(ctx, a.cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		retriever, err := rag.NewRetriever(embedder, store)
		if err != nil {
			return err
		}
		s.retrieve = chapterRetrieval(retriever, chatTopK, chatChapters)
	}

	return s.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chapterRetrieval adapts a retriever for the chat session. A non-empty
// chapters list restricts the search to those chapter ids.
func chapterRetrieval(r *rag.Retriever, topK int, chapters []string) func(context.Context, string) ([]agent.ContextChunk, error) {
	return func(ctx context.Context, q string) ([]agent.ContextChunk, error) {
		var chunks []rag.ContextChunk
		var err error
		if len(chapters) > 0 {
			chunks, err = r.RetrieveWithOptions(ctx, q, topK, &rag.SearchOptions{ChapterIDs: chapters})
		} else {
			chunks, err = r.Retrieve(ctx, q, topK)
		}
		if err != nil {
			return nil, err
		}
		return rag.PromptChunks(chunks), nil
	}
}

func markdownRenderer() func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(s string) string { return s }
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s
		}
		return out
	}
}

func (s *chatSession) run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Chatting with the %s agent", s.agent.Role())))
	fmt.Fprintln(out, mutedStyle.Render("Type help for commands, exit to quit."))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\n"+accentStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, mutedStyle.Render("Goodbye."))
			return nil
		case "help":
			fmt.Fprintln(out, textStyle.Render("help   show this message\nreset  clear the conversation\nexit   leave the chat"))
			continue
		case "reset":
			s.history = nil
			ok(out, "Conversation cleared")
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		reply, err := s.ask(ctx, line)
		if err != nil {
			fail(out, "%v", err)
			continue
		}
		fmt.Fprintln(out, headerStyle.Render(s.agent.Role()+">"))
		fmt.Fprint(out, s.render(reply))
	}
}

// ask sends one question and records the exchange. With retrieval, the
// question is sent with its context but the history keeps the question
// as typed.
func (s *chatSession) ask(ctx context.Context, question string) (string, error) {
	content := question
	if s.retrieve != nil {
		chunks, err := s.retrieve(ctx, question)
		if err != nil {
			logger.Warn("context retrieval failed", zap.Error(err))
		} else {
			content = agent.ContextPrompt(question, chunks)
		}
	}

	msgs := make([]agent.Message, 0, len(s.history)+1)
	msgs = append(msgs, s.history...)
	msgs = append(msgs, agent.Message{Role: agent.RoleUser, Content: content})

	resp, err := s.agent.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Text)

	s.history = append(s.history,
		agent.Message{Role: agent.RoleUser, Content: question},
		agent.Message{Role: agent.RoleAssistant, Content: reply},
	)
	return reply, nil
}
