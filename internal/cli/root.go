// Package cli implements the ren command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/ren/internal/config"
	"github.com/tOgg1/ren/internal/logging"
)

// Exit codes.
const (
	ExitCodeFailure = 1
	ExitCodeUsage   = 2
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exitf returns an ExitError with a formatted message.
func Exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

// app holds state shared by every command of one invocation.
type app struct {
	version string

	configFile string
	logLevel   string
	logFormat  string
	jsonOutput bool
	backend    string
	user       string

	loader *config.Loader
	cfg    *config.Config

	stdin  io.Reader
	isTTY  func() bool
	logOut io.Writer
}

// Execute runs the ren command line.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	a := &app{
		version: version,
		stdin:   os.Stdin,
		isTTY:   hasTTY,
		logOut:  os.Stderr,
	}

	cmd := &cobra.Command{
		Use:   "ren",
		Short: "Chat with REN from the terminal",
		Long: `ren is a terminal client for REN conversations.

It loads conversation history page by page, sends messages and shows the
assistant's replies, either against the REN API or a local SQLite store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is $HOME/.config/ren/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "override logging format (json, console)")
	flags.BoolVar(&a.jsonOutput, "json", false, "output in JSON format")
	flags.StringVar(&a.backend, "backend", "", "conversation backend (http, local)")
	flags.StringVar(&a.user, "user", "", "user id whose conversation is used")

	cmd.AddCommand(
		a.newChatCmd(),
		a.newHistoryCmd(),
		a.newSendCmd(),
		a.newCloseCmd(),
		a.newContextCmd(),
		a.newConfigCmd(),
		a.newVersionCmd(),
	)
	return cmd
}

// init loads configuration and sets up logging.
func (a *app) init() error {
	a.loader = config.NewLoader()
	if a.configFile != "" {
		a.loader.SetConfigFile(a.configFile)
	}
	if a.backend != "" {
		a.loader.Set("backend.mode", a.backend)
	}
	if a.logLevel != "" {
		a.loader.Set("logging.level", a.logLevel)
	}
	if a.logFormat != "" {
		a.loader.Set("logging.format", a.logFormat)
	}

	cfg, err := a.loader.Load()
	if err != nil {
		return Exitf(ExitCodeUsage, "%v", err)
	}

	// A stored context selects the backend unless --backend was given.
	if a.backend == "" {
		if stored, err := a.contextStore(cfg).Load(); err == nil && stored.Backend != "" {
			cfg.Backend.Mode = stored.Backend
		}
	}
	a.cfg = cfg

	return a.initLogging(a.logOut)
}

func (a *app) initLogging(out io.Writer) error {
	if a.cfg.Logging.File != "" {
		f, err := logging.OpenFile(a.cfg.Logging.File)
		if err != nil {
			return err
		}
		out = f
	}
	logging.Init(logging.Config{
		Level:        a.cfg.Logging.Level,
		Format:       a.cfg.Logging.Format,
		Output:       out,
		EnableCaller: a.cfg.Logging.EnableCaller,
	})
	return nil
}

func (a *app) contextStore(cfg *config.Config) *config.ContextStore {
	return config.NewContextStore(cfg.ContextPath())
}

// userID resolves the active user: --user, then configuration (including
// REN_GLOBAL_USER_ID), then the stored context.
func (a *app) userID() (string, string) {
	if id := strings.TrimSpace(a.user); id != "" {
		return id, "flag"
	}
	if id := strings.TrimSpace(a.cfg.Global.UserID); id != "" {
		return id, "config"
	}
	if stored, err := a.contextStore(a.cfg).Load(); err == nil && stored.HasUser() {
		return stored.UserID, "context"
	}
	return "", ""
}

func (a *app) writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
