package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cashplan/internal/cli"
	"cashplan/internal/config"
	"cashplan/internal/log"
	"cashplan/internal/storage"
)

// app carries what every subcommand needs once the root has initialised.
type app struct {
	dbPath   string
	logLevel string

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cashplan-admin",
		Short: "Administrative tasks for the cashplan service",
		Long: `cashplan-admin manages the cashplan database directly: it runs
migrations, provisions companies and members, imports CSV files, exports
scenario workbooks and issues development tokens.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			a.cfg = config.Load()
			if a.dbPath != "" {
				a.cfg.SQLiteDBPath = a.dbPath
			}
			if a.logLevel != "" {
				a.cfg.LogLevel = a.logLevel
			}
			a.logger = cli.SetupLogger(log.ComponentAdmin, a.cfg.LogLevel)
			return a.cfg.Validate()
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default: $SQLITE_DB_PATH)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.companyCmd())
	root.AddCommand(a.memberCmd())
	root.AddCommand(a.accountCmd())
	root.AddCommand(a.importCmd())
	root.AddCommand(a.exportCmd())
	root.AddCommand(a.snapshotCmd())
	root.AddCommand(a.tokenCmd())
	return root
}

func (a *app) openRepo() (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.SQLiteDBPath, err)
	}
	return repo, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
