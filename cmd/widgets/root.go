package main

import (
	"log/slog"
	"os"
	"strings"

	"widgets/internal/config"
	"widgets/internal/db"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	flagDBDriver string
	flagDBURL    string
	flagJSON     bool
)

// cfg is loaded once by PersistentPreRunE for every subcommand.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "widgets",
	Short:         "Widgets service: a list of free-text widgets with autosave editing",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// flags take precedence over env and .env
		if flagDBURL != "" {
			_ = os.Setenv("DATABASE_URL", flagDBURL)
		}
		if flagDBDriver != "" {
			_ = os.Setenv("DATABASE_DRIVER", flagDBDriver)
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBDriver, "db-driver", "", "database driver: postgres or sqlite (env DATABASE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&flagDBURL, "db-url", "", "database connection string (env DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(rmCmd)
}

func newLogger(level, format string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

// openDB connects and migrates. The caller must db.Close the result.
func openDB() (*gorm.DB, error) {
	gdb, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	return gdb, nil
}
