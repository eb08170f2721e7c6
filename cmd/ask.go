package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verdantlabs/verdant/internal/provider"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	messages, err := a.orchestrator.GetResponse(ctx,
		[]provider.Message{provider.UserMessage(question)}, sessionID)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == provider.RoleAssistant {
			fmt.Println(messages[i].Content)
			return nil
		}
	}
	fmt.Println("No answer was produced.")
	return nil
}
