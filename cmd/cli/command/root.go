package command

// root.go defines the root command for the linetest CLI.
// Global flags and configuration are set up here.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"linetest/cmd/cli/authentication"
	"linetest/internal/config"
)

var (
	apiURL   string // Global flag for the event server URL
	token    string // station token (jwt)
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linetest",
	Short: "linetest - production line test console",
	Long: `linetest talks to the line event server. Operators use it to:
- Watch the live stage board of the board under test
- Start a station test run for a serial number
- Publish a UID search result to every open panel
- Browse stored test records

Use "linetest command --help" to see the flags of a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Ctrl-C cancels the command context so watch can close the feed cleanly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		stop()
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "event server URL (default API_URL or http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "station token (default: the one saved with 'linetest token save')")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
}

// loadConfig fills unset flags from the environment and .env
func loadConfig(cmd *cobra.Command) error {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("api") {
		apiURL = cfg.APIURL
	}

	cfg.LogLevel = logLevel
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if token == "" {
		if stored, err := authentication.GetToken(); err == nil {
			token = stored.Token
		}
	}
	return nil
}
