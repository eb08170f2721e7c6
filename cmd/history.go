package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantlabs/verdant/internal/provider"
)

var (
	historyDebug bool
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear a session's conversation",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyDebug, "debug", false, "include tool and system messages")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete the session's conversation")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if historyClear {
		if err := a.orchestrator.ClearChatHistory(ctx, sessionID); err != nil {
			return err
		}
		fmt.Printf("Session %q cleared.\n", sessionID)
		return nil
	}

	messages, err := a.orchestrator.GetChatHistory(ctx, sessionID, historyDebug)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Printf("Session %q has no messages.\n", sessionID)
		return nil
	}

	for _, m := range messages {
		switch m.Role {
		case provider.RoleUser:
			fmt.Printf("you> %s\n", m.Content)
		case provider.RoleAssistant:
			if m.Content != "" {
				fmt.Printf("verdant> %s\n", m.Content)
			}
			for _, call := range m.ToolCalls {
				fmt.Printf("verdant> [tool call %s %s]\n", call.Name, string(call.Arguments))
			}
		case provider.RoleTool:
			fmt.Printf("tool(%s)> %s\n", m.Name, m.Content)
		case provider.RoleSystem:
			fmt.Printf("system> %s\n", m.Content)
		}
	}
	return nil
}
