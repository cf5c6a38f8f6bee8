package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tOgg1/ren/internal/models"
)

func (a *app) newHistoryCmd() *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print conversation history",
		Long:  "Print the most recent conversation history, oldest first. --pages 0 loads everything.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 0 {
				return Exitf(ExitCodeUsage, "--pages must not be negative")
			}

			conv, err := a.openConversation(cmd.Context())
			if err != nil {
				return err
			}
			defer conv.Close()

			for loaded := 0; pages == 0 || loaded < pages; loaded++ {
				res := conv.session.LoadNext(cmd.Context())
				if res.Err != nil {
					return Exitf(ExitCodeFailure, "load history: %v", res.Err)
				}
				if res.Exhausted {
					break
				}
			}

			snap := conv.session.Snapshot()
			oldestFirst := make([]models.Message, 0, len(snap))
			for i := len(snap) - 1; i >= 0; i-- {
				oldestFirst = append(oldestFirst, snap[i])
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return a.writeJSON(out, struct {
					UserID   string                  `json:"user_id"`
					Messages []models.Message        `json:"messages"`
					Cursor   models.PaginationCursor `json:"cursor"`
				}{conv.userID, oldestFirst, conv.session.Cursor()})
			}

			if len(oldestFirst) == 0 {
				fmt.Fprintln(out, "No messages yet.")
				return nil
			}

			now := time.Now()
			rows := make([][]string, 0, len(oldestFirst))
			for _, msg := range oldestFirst {
				rows = append(rows, []string{formatWhen(msg.CreatedAt, now), string(msg.Sender), truncate(msg.Text, 80)})
			}
			if err := writeTable(out, []string{"WHEN", "FROM", "MESSAGE"}, rows); err != nil {
				return err
			}
			if conv.session.HasMore() {
				fmt.Fprintln(out, "(older messages available, use --pages)")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of history pages to load (0 for all)")
	return cmd
}

func formatWhen(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
