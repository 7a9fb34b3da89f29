package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root convocheck command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "convocheck",
		Short: "Conversational agent evaluation harness",
		Long: `convocheck replays scripted multi-turn scenarios against a running agent
server and grades each transcript against declarative expectations: tool-call
trajectory (including approval gates), response content, safety patterns, and
style.`,
	}

	// Add subcommands
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewViewCmd())
	rootCmd.AddCommand(NewSendCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
