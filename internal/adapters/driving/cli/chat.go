package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

var chatSources bool

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask a question about the ingested documents",
	Long: `Answers a question using only passages retrieved from the ingested
documents. If they do not contain the answer, the configured refusal is
printed instead.

Without a question argument the question is read from stdin, or an
interactive session starts when stdin is a terminal.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatSources, "sources", "s", false, "print the sources used for the answer")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := resolveServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if len(args) > 0 {
		return askOnce(cmd.Context(), cmd, svc.Chat, strings.Join(args, " "))
	}

	in := cmd.InOrStdin()
	if isTerminal(in) {
		return chatLoop(cmd.Context(), cmd, svc.Chat, in)
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read question: %w", err)
	}
	question := strings.TrimSpace(string(data))
	if question == "" {
		return errors.New("no question given")
	}
	return askOnce(cmd.Context(), cmd, svc.Chat, question)
}

func askOnce(ctx context.Context, cmd *cobra.Command, chat driving.ChatService, question string) error {
	exchange, err := chat.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	printExchange(cmd, exchange)
	return nil
}

// chatLoop answers one question per line until EOF or "exit".
func chatLoop(ctx context.Context, cmd *cobra.Command, chat driving.ChatService, in io.Reader) error {
	cmd.Println("Ask about your documents. Type 'exit' to quit.")
	scanner := bufio.NewScanner(in)
	for {
		cmd.Print("> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		exchange, err := chat.Ask(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cmd.PrintErrf("Error: %v\n", err)
			continue
		}
		printExchange(cmd, exchange)
		cmd.Println()
	}
}

func printExchange(cmd *cobra.Command, ex *domain.ChatExchange) {
	cmd.Println(ex.Answer)
	if !chatSources || ex.Refused || ex.Context == nil {
		return
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, sc := range ex.Context.Chunks {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, sc.Chunk.Metadata[domain.MetaSource], sc.Score)
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
