package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/ren/internal/adapters"
	"github.com/tOgg1/ren/internal/chat"
)

func (a *app) newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return Exitf(ExitCodeUsage, "message is empty")
			}
			if limit := a.cfg.TUI.MaxInputLength; len([]rune(text)) > limit {
				return Exitf(ExitCodeUsage, "message is longer than %d characters", limit)
			}

			conv, err := a.openConversation(cmd.Context())
			if err != nil {
				return err
			}
			defer conv.Close()

			res := conv.session.Send(cmd.Context(), text)
			out := cmd.OutOrStdout()
			if a.jsonOutput {
				payload := struct {
					Status    chat.SendStatus `json:"status"`
					PendingID string          `json:"pending_id,omitempty"`
					ReplyID   string          `json:"reply_id,omitempty"`
					Reply     string          `json:"reply,omitempty"`
					Error     string          `json:"error,omitempty"`
				}{res.Status, res.PendingID, res.ReplyID, res.Reply, ""}
				if res.Err != nil {
					payload.Error = res.Err.Error()
				}
				if err := a.writeJSON(out, payload); err != nil {
					return err
				}
				if res.Status == chat.SendFailed {
					return &ExitError{Code: ExitCodeFailure, Err: res.Err, Printed: true}
				}
				return nil
			}

			if res.Status == chat.SendFailed {
				return Exitf(ExitCodeFailure, "%s (%v)", chat.ReplyFailureText, res.Err)
			}
			fmt.Fprintln(out, res.Reply)
			return nil
		},
	}
}

func (a *app) newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the active conversation",
		Long:  "Close the active conversation so the next message starts a new one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			msg, err := backend.CloseConversation(cmd.Context())
			if err != nil {
				return Exitf(ExitCodeFailure, "close conversation: %v", err)
			}

			if a.jsonOutput {
				return a.writeJSON(cmd.OutOrStdout(), map[string]any{
					"success": true,
					"closed":  msg == adapters.CloseMessageClosed,
					"message": msg,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
