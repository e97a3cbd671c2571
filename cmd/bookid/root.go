package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/bookbot/internal/config"
	"github.com/kirillkom/bookbot/internal/observability/logging"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookid",
		Short: "Resolve book reviews to catalog entries from the command line",
		Long: `bookid runs the same resolver the chat bot uses, once, and prints the result as JSON.

Configuration comes from the environment (and a .env file if present), with
CONFIG_FILE pointing at an optional YAML file holding the resolver section.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newISBNCmd())
	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "bookid", cfg.LogLevel))
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
