/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the scaffolding yard engine: runs the HTTP server
  and the maintenance commands that work on the same database.

COMMANDS:
  serve                  Start the HTTP server
  migrate up|down|version
                         Manage the schema
  audit                  Check every equipment's log against ownership
  scenario list|load ID  Demo data (resets the database)

CONFIGURATION:
  Settings come from the environment (SCAFFOLD_*, optionally via .env),
  see config/config.go. Flags override them:
    --db          SQLite database path (":memory:" for in-memory)
    --log-level   debug, info, warn, error
    --log-format  text or json
    --port        HTTP server port (serve only)
    --templates   Checklist templates YAML (serve only)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the audit scheduler
  4. Close database connection

EXAMPLES:
  ./server serve --db=./data/yard.db --port=3000
  ./server scenario load busy-season
  ./server migrate version

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/migrate.go: Schema migrations
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/scaffold-engine/api"
	"github.com/warp/scaffold-engine/config"
	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/store/sqlite"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "server",
		Short:        "Scaffolding equipment yard engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("db") {
				cfg.DBPath, _ = flags.GetString("db")
			}
			if flags.Changed("log-level") {
				cfg.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("log-format") {
				cfg.LogFormat, _ = flags.GetString("log-format")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger = cfg.NewLogger(cmd.ErrOrStderr())
			slog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().String("db", "", "SQLite database path")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "Log format: text or json")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newAuditCmd(), newScenarioCmd())
	return root
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("templates") {
				cfg.ChecklistTemplates, _ = cmd.Flags().GetString("templates")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 0, "HTTP server port")
	cmd.Flags().String("templates", "", "Checklist templates YAML file")
	return cmd
}

func serve(ctx context.Context) error {
	store, svc, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(store, svc, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := api.NewAuditScheduler(svc, cfg.AuditInterval, logger)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openService() (*sqlite.Store, *inventory.Service, error) {
	var opts []inventory.Option
	if cfg.ChecklistTemplates != "" {
		templates, err := inventory.LoadTemplates(cfg.ChecklistTemplates)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, inventory.WithTemplates(templates))
		logger.Info("checklist templates loaded", "path", cfg.ChecklistTemplates)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, inventory.NewService(store, opts...), nil
}

// =============================================================================
// MIGRATE
// =============================================================================

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withStore := func(fn func(cmd *cobra.Command, store *sqlite.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			return fn(cmd, store)
		}
	}
	printVersion := func(cmd *cobra.Command, store *sqlite.Store) error {
		version, dirty, err := store.SchemaVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withStore(func(cmd *cobra.Command, store *sqlite.Store) error {
				if err := store.MigrateUp(); err != nil {
					return err
				}
				logger.Info("migrations applied", "db", cfg.DBPath)
				return printVersion(cmd, store)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert all migrations (drops every table)",
			RunE: withStore(func(cmd *cobra.Command, store *sqlite.Store) error {
				if err := store.MigrateDown(); err != nil {
					return err
				}
				logger.Warn("migrations reverted", "db", cfg.DBPath)
				return printVersion(cmd, store)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE:  withStore(printVersion),
		},
	)
	return cmd
}

// =============================================================================
// AUDIT
// =============================================================================

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report equipment whose movement log disagrees with ownership",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, svc, err := openService()
			if err != nil {
				return err
			}
			defer store.Close()

			anomalies, err := svc.Audit(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(anomalies) == 0 {
				fmt.Fprintln(out, "ledger is consistent")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EQUIPMENT\tOWNED\tPROBLEM")
			for _, a := range anomalies {
				for _, p := range a.Problems {
					fmt.Fprintf(tw, "%d\t%d\t%s\n", a.Position.EquipmentID, a.Position.Owned, p)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return fmt.Errorf("%d equipment with anomalies", len(anomalies))
		},
	}
}

// =============================================================================
// SCENARIO
// =============================================================================

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Demo data",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available scenarios",
			RunE: func(cmd *cobra.Command, args []string) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, s := range api.Scenarios() {
					fmt.Fprintf(tw, "%s\t%s\n", s.ID, s.Description)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "load ID",
			Short: "Reset the database and load a scenario",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, svc, err := openService()
				if err != nil {
					return err
				}
				defer store.Close()
				return api.NewHandler(store, svc, logger).Seed(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}
