// Package cli wires configuration, storage, the HTTP API, the Telegram bot
// and the scheduler into cobra commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"telegram-diet-diary/internal/config"
	"telegram-diet-diary/internal/logging"
	"telegram-diet-diary/internal/storage"
)

var (
	cfg      config.Config
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "diet-diary",
	Short:         "Telegram diet diary: bot, mini-app API and reports",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if dbPath != "" {
			c.DBPath = dbPath
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		logging.Setup(c.LogLevel, c.LogFormat)
		cfg = c
		return nil
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

// withStore opens the configured store for one command.
func withStore(run func(storage.Store) error) error {
	store, err := storage.Open(cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	return run(store)
}
