package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodplanner/internal/config"
	"foodplanner/internal/database"
	"foodplanner/internal/logging"
	"foodplanner/internal/metrics"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	cleanupDays int
)

var rootCmd = &cobra.Command{
	Use:   "foodplanner",
	Short: "Household meal planning backend",
	Long: `foodplanner serves recipes, week plans, shopping lists and cooking
history over a JSON API, with optional AI helpers backed by Gemini or Groq.

Run without arguments to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = logging.New(cfg.LogLevel, cfg.LogFormat, cfg.Development())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply migrations and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, version, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Database schema at version %d.\n", version)
		return nil
	},
}

var usageCleanupCmd = &cobra.Command{
	Use:   "usage-cleanup",
	Short: "Remove old AI usage records",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		affected, err := metrics.NewStore(db, nil).Cleanup(cmd.Context(), cleanupDays)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Printf("Successfully removed %d old usage records.\n", affected)
		return nil
	},
}

func init() {
	usageCleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "Keep records for the last N days")

	rootCmd.AddCommand(serveCmd, migrateCmd, usageCleanupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB connects to the configured database and applies migrations,
// returning the resulting schema version.
func openDB() (*database.DB, uint, error) {
	db, err := database.Open(cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to initialize database: %w", err)
	}
	version, err := db.Migrate()
	if err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, version, nil
}
