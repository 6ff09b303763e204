// Package cli provides the relaysync command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/relaycrm/relaysync/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relaysync",
		Short: "RelaySync - CRM tenant synchronization engine",
		Long: `RelaySync keeps a local tenant-scoped CRM store synchronized with a
remote SaaS platform.

It imports remote resources into local rows idempotently, exports
local-only rows without creating duplicates, compiles browser automation
plans for resource types the platform exposes no API for, and diffs a
declarative blueprint against live tenant configuration.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
			logger := newLogger(cmd.ErrOrStderr(), verbose)

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags; section-prefixed names map onto config keys.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./relaysync.yaml)")
	rootCmd.PersistentFlags().String("tenant-id", "", "Local tenant identifier")
	rootCmd.PersistentFlags().String("tenant-remote-id", "", "Remote platform tenant (location) identifier")
	rootCmd.PersistentFlags().String("remote-token", "", "Remote API bearer token")
	rootCmd.PersistentFlags().String("remote-base-url", "", "Remote API base URL")
	rootCmd.PersistentFlags().String("store-path", "", "Path to the local SQLite store")
	rootCmd.PersistentFlags().String("archive-dir", "", "Directory for raw payload archives (empty disables archiving)")
	rootCmd.PersistentFlags().Int("sync-page-size", 0, "Page size for remote list endpoints")
	rootCmd.PersistentFlags().Int("sync-concurrency", 0, "Bounded concurrency for per-contact fetches")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newBlueprintCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// getConfig retrieves the config from the command context.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	cfg, _ := config.Load("", nil)
	return cfg
}

// getLogger retrieves the logger from the command context.
func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// newCompletionCommand creates the completion command.
func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for relaysync.

Bash:
  $ source <(relaysync completion bash)

Zsh:
  $ relaysync completion zsh > "${fpath[1]}/_relaysync"

Fish:
  $ relaysync completion fish | source

PowerShell:
  PS> relaysync completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
}
