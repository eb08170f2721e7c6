// Package cmd implements the verdant command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

// sessionID selects the conversation thread for ask, chat, and history.
var sessionID string

var rootCmd = &cobra.Command{
	Use:   "verdant",
	Short: "Verdant - a plant care assistant with a private knowledge base",
	Long: `Verdant answers plant care questions from a local knowledge base.

Add your own documents with "verdant docs add", then ask questions with
"verdant ask" or hold a conversation with "verdant chat". Running verdant
with no arguments starts chat mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "conversation session id")
}
