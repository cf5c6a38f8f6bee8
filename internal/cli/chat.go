package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/ren/internal/chat"
	"github.com/tOgg1/ren/internal/chattui"
	"github.com/tOgg1/ren/internal/events"
	"github.com/tOgg1/ren/internal/logging"
	"github.com/tOgg1/ren/internal/metrics"
	"github.com/tOgg1/ren/internal/models"
)

func (a *app) newChatCmd() *cobra.Command {
	var (
		metricsAddr string
		theme       string
		plain       bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive conversation",
		Long: `Open an interactive conversation.

With a terminal attached this shows the chat screen. Otherwise (or with
--plain) messages are read line by line from stdin: "/more" loads older
history and "/quit" ends the session. With --json every session event is
written as a JSON line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr == "" {
				metricsAddr = a.cfg.Metrics.Addr
			}
			if metricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, metricsAddr, logging.Component("metrics")); err != nil {
						logging.Warn().Err(err).Str("addr", metricsAddr).Msg("metrics listener stopped")
					}
				}()
			}

			interactive := !plain && !a.jsonOutput && a.isTTY()
			if interactive && a.cfg.Logging.File == "" {
				// The screen owns the terminal.
				f, err := logging.OpenFile(a.cfg.LogFilePath())
				if err != nil {
					return err
				}
				defer f.Close()
				if err := a.initLogging(f); err != nil {
					return err
				}
			}

			conv, err := a.openConversation(ctx)
			if err != nil {
				return err
			}
			defer conv.Close()

			if interactive {
				return chattui.Run(ctx, chattui.Config{
					Session:        conv.session,
					MaxInputLength: a.cfg.TUI.MaxInputLength,
					LoadThreshold:  a.cfg.TUI.LoadThreshold,
					ShowTimestamps: a.cfg.TUI.ShowTimestamps,
					Theme:          theme,
				})
			}
			return a.runLineChat(ctx, conv.session, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	cmd.Flags().StringVar(&theme, "theme", "default", "theme: default|high-contrast")
	cmd.Flags().BoolVar(&plain, "plain", false, "line mode even when a terminal is attached")
	return cmd
}

// runLineChat drives a session from newline separated input.
func (a *app) runLineChat(ctx context.Context, s *chat.Session, in io.Reader, out io.Writer) error {
	if a.jsonOutput {
		enc := json.NewEncoder(out)
		if err := s.Subscribe("cli-json", events.Filter{}, func(ev *models.Event) {
			_ = enc.Encode(ev)
		}); err != nil {
			return err
		}
	}

	printed := false
	printOlder := func() error {
		res := s.LoadNext(ctx)
		if res.Err != nil {
			return res.Err
		}
		if !a.jsonOutput {
			// Older pages land below what is already on screen.
			if printed && res.Appended > 0 {
				fmt.Fprintln(out, "-- earlier --")
			}
			printed = printed || res.Appended > 0
			snap := s.Snapshot()
			for i := len(snap) - 1; i >= len(snap)-res.Appended; i-- {
				printMessage(out, snap[i])
			}
			if res.Exhausted {
				fmt.Fprintln(out, "-- start of conversation --")
			}
		}
		return nil
	}

	if err := printOlder(); err != nil {
		fmt.Fprintf(out, "! %v\n", err)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/more":
			if !s.HasMore() {
				if !a.jsonOutput {
					fmt.Fprintln(out, "-- start of conversation --")
				}
				continue
			}
			if err := printOlder(); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			continue
		}

		if limit := a.cfg.TUI.MaxInputLength; len([]rune(line)) > limit {
			fmt.Fprintf(out, "! message is longer than %d characters\n", limit)
			continue
		}

		res := s.Send(ctx, line)
		if a.jsonOutput {
			continue
		}
		switch res.Status {
		case chat.SendDelivered:
			fmt.Fprintf(out, "REN: %s\n", res.Reply)
		case chat.SendFailed:
			fmt.Fprintf(out, "REN: %s\n", chat.ReplyFailureText)
			logging.Warn().Err(res.Err).Msg("reply failed")
		case chat.SendDiscarded:
			return nil
		}
	}
	return scanner.Err()
}

func printMessage(out io.Writer, msg models.Message) {
	who := "you"
	if msg.Sender == models.SenderAssistant {
		who = "REN"
	}
	fmt.Fprintf(out, "%s: %s\n", who, msg.Text)
}
