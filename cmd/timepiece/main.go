/*
main.go - Application entry point

PURPOSE:
  Command-line entry point for the timepiece service. Every subcommand
  loads configuration the same way, builds the zap logger and opens the
  SQLite store before doing its work.

COMMANDS:
  serve                         Run the HTTP API and the window scheduler
  windows update --period ID    Regenerate one period's billing windows
  summary --person ID           Print a payroll summary for a date range
  export --month YYYY-MM        Write the monthly payroll workbook

GLOBAL FLAGS:
  --config   Path to a YAML config file (default: ./config.yaml if present)
  --db       SQLite database path, overrides db.path
             Use ":memory:" for in-memory database

ENVIRONMENT:
  Every config key can be set as TIMEPIECE_<SECTION>_<KEY>,
  e.g. TIMEPIECE_SERVER_PORT=3000, TIMEPIECE_LOG_LEVEL=debug.

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/timepiece/config"
	"github.com/warp/timepiece/logger"
	"github.com/warp/timepiece/store/sqlite"
)

var (
	configPath string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "timepiece",
	Short: "Time tracking, billing windows and payroll",
	Long: `timepiece records clock-in/clock-out entries, keeps recurring billing
windows up to date and computes payroll summaries with overtime.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides db.path)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *sqlite.Store
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &app{cfg: cfg, logger: log, store: store}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.logger.Sync()
}
