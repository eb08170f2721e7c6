package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verdantlabs/verdant/internal/provider"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold an interactive conversation",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Verdant plant care assistant (session %q)\n", sessionID)
	fmt.Println("Type /help for commands, Ctrl+D to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if handleChatCommand(ctx, a, input) {
				break
			}
			continue
		}

		fmt.Print("verdant> ")
		err := a.orchestrator.GetStreamResponse(ctx,
			[]provider.Message{provider.UserMessage(input)}, sessionID,
			func(_ context.Context, fragment string) error {
				fmt.Print(fragment)
				return nil
			})
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// handleChatCommand runs a slash command, returning true on exit.
func handleChatCommand(ctx context.Context, a *app, input string) bool {
	switch strings.Fields(input)[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help   show this help")
		fmt.Println("  /clear  forget this session's conversation")
		fmt.Println("  /docs   list indexed documents")
		fmt.Println("  /exit   leave the chat")
		fmt.Println()

	case "/clear":
		if err := a.orchestrator.ClearChatHistory(ctx, sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			fmt.Println("Conversation cleared.")
		}
		fmt.Println()

	case "/docs":
		docs, err := a.rag.ListDocuments(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		if len(docs) == 0 {
			fmt.Println("No documents indexed.")
		}
		for _, d := range docs {
			fmt.Printf("  %s  %s (%d bytes)\n", d.DocID, d.FileName, d.FileSize)
		}
		fmt.Println()

	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true

	default:
		fmt.Printf("Unknown command: %s\n", input)
		fmt.Println("Type /help to see available commands")
		fmt.Println()
	}
	return false
}
