package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/convocheck/convocheck/pkg/adkclient"
	"github.com/convocheck/convocheck/pkg/eval"
)

// NewSendCmd creates the send command, a one-shot manual probe against the
// agent server: it creates a fresh session, runs a single turn, and prints
// the final assistant text.
func NewSendCmd() *cobra.Command {
	var appName string
	var apiBase string
	var userID string

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send one message to the agent and print its final response",
		Example: `  convocheck send --app helpdesk_agent "My VPN cannot connect, it says certificate expired."
  convocheck send --app helpdesk_agent --api-base http://localhost:8000 "Approved, create the ticket."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := adkclient.NewClient(apiBase)
			session := adkclient.NewSession(appName, userID)

			ctx := cmd.Context()
			if err := client.CreateSession(ctx, session); err != nil {
				return err
			}

			tr, err := eval.RunTurn(ctx, client, session, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if tr.AssistantText != "" {
				fmt.Println(tr.AssistantText)
				return nil
			}

			// No text part anywhere; dump the raw events instead.
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(tr.RawEvents)
		},
	}

	cmd.Flags().StringVar(&appName, "app", "", "Agent application name (required)")
	cmd.Flags().StringVar(&apiBase, "api-base", eval.DefaultAPIBase, "Agent server base URL")
	cmd.Flags().StringVar(&userID, "user", "u_demo", "User identifier for the session")

	_ = cmd.MarkFlagRequired("app")

	return cmd
}
