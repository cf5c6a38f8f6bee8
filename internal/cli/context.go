package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tOgg1/ren/internal/logging"
)

func (a *app) newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show or change the stored user and backend",
		Long: `The stored context supplies the user when neither --user nor
configuration names one, and the backend unless --backend is given.`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the stored context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.contextStore(a.cfg)
			stored, err := store.Load()
			if err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			userID, source := a.userID()
			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return a.writeJSON(out, map[string]any{
					"path":        store.Path(),
					"stored":      stored,
					"user_id":     userID,
					"user_source": source,
					"backend":     a.cfg.Backend.Mode,
				})
			}
			fmt.Fprintf(out, "stored:  %s (%s)\n", stored, store.Path())
			if userID == "" {
				fmt.Fprintln(out, "user:    (none)")
			} else {
				fmt.Fprintf(out, "user:    %s (from %s)\n", userID, source)
			}
			fmt.Fprintf(out, "backend: %s\n", a.cfg.Backend.Mode)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Store the --user and/or --backend given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(a.user) == "" && a.backend == "" {
				return Exitf(ExitCodeUsage, "nothing to set (use --user and/or --backend)")
			}
			store := a.contextStore(a.cfg)
			stored, err := store.Load()
			if err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			if strings.TrimSpace(a.user) != "" {
				stored.SetUser(a.user)
			}
			if a.backend != "" {
				if err := stored.SetBackend(a.backend); err != nil {
					return Exitf(ExitCodeUsage, "%v", err)
				}
			}
			if err := store.Save(stored); err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			logging.Debug().Str("path", store.Path()).Msg("context saved")
			if a.jsonOutput {
				return a.writeJSON(cmd.OutOrStdout(), stored)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context set: %s\n", stored)
			return nil
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.contextStore(a.cfg).Clear(); err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Context cleared.")
			return nil
		},
	}

	cmd.AddCommand(show, set, clearCmd)
	return cmd
}

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := logging.RedactMap(a.loader.AllSettings())
			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return a.writeJSON(out, map[string]any{
					"file":     a.loader.ConfigFileUsed(),
					"settings": settings,
				})
			}
			if file := a.loader.ConfigFileUsed(); file != "" {
				fmt.Fprintf(out, "# %s\n", file)
			}
			data, err := yaml.Marshal(settings)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	})
	return cmd
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOutput {
				return a.writeJSON(cmd.OutOrStdout(), map[string]string{"version": a.version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ren %s\n", a.version)
			return nil
		},
	}
}
