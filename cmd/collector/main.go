// Command collector runs the catalog collection service: one-shot runs,
// the scheduled daemon with its HTTP API, and audit log queries.
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
	"time"

	"github.com/spf13/cobra"

	"github.com/ecomwatch/collector/api"
	"github.com/ecomwatch/collector/audit"
	"github.com/ecomwatch/collector/auth"
	"github.com/ecomwatch/collector/collect"
	"github.com/ecomwatch/collector/config"
	"github.com/ecomwatch/collector/extract"
	"github.com/ecomwatch/collector/fetch"
	"github.com/ecomwatch/collector/store"
)

var (
	configPath string
	logLevel   string

	logsDate  string
	logsLimit int
)

func main() {
	root := &cobra.Command{
		Use:          "collector",
		Short:        "Collecte de catalogues e-commerce",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "main configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one collection over every active site and exit",
		RunE:  runOnce,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon with its HTTP API",
		RunE:  serve,
	}

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print audit log records, most recent first",
		RunE:  showLogs,
	}
	logsCmd.Flags().StringVar(&logsDate, "date", "", "restrict to one day (YYYYMMDD)")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 20, "maximum records to print")

	root.AddCommand(runCmd, serveCmd, logsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildRunner wires the orchestrator to the real fetch, auth and store
// implementations.
func buildRunner(cfg *config.Config, logger *slog.Logger) (*collect.Runner, *audit.Log, error) {
	log := audit.NewLog(cfg.LogDir())

	runner, err := collect.NewRunner(collect.Config{
		Sites: func(context.Context) ([]config.Site, error) {
			return cfg.LoadSites()
		},
		Credentials: func(_ context.Context, siteID string) (*config.Credential, error) {
			return cfg.LoadCredential(siteID)
		},
		NewFetcher: func() collect.Fetcher {
			return fetch.New(fetch.Config{Logger: logger})
		},
		OpenStore: func() (store.Store, error) {
			return store.Open(cfg.Database)
		},
		Login:  loginFunc(logger),
		Logger: logger,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return runner, log, nil
}

// loginFunc adapts the form-login client to the orchestrator. The fetcher
// must expose its browser session; the built-in one does.
func loginFunc(logger *slog.Logger) collect.LoginFunc {
	return func(ctx context.Context, f collect.Fetcher, url, username, password string, overrides extract.Overrides) error {
		opener, ok := f.(auth.PageOpener)
		if !ok {
			return errors.New("fetcher cannot open browser pages")
		}
		client := auth.New(opener, auth.Config{Logger: logger})
		return client.Login(ctx, url, username, password, overrides)
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	runner, _, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := runner.RunAll(ctx)
	if err != nil {
		return err
	}
	if sum.Failures > 0 {
		return fmt.Errorf("%d site(s) en erreur sur %d", sum.Failures, sum.Sites)
	}
	return nil
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	runner, log, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	scheduler := collect.NewScheduler(runner, cfg.Schedule, logger)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(scheduler, log, cfg.Schedule, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("api: listening", "addr", cfg.Listen)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("api: shutdown", "error", err)
		}
	}
	return nil
}

func showLogs(cmd *cobra.Command, _ []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	records, err := audit.NewLog(cfg.LogDir()).Query(logsDate, logsLimit)
	if err != nil {
		return err
	}

	for _, r := range records {
		line := fmt.Sprintf("%s  %-7s  %-20s  collected=%d inserted=%d  %.1fs",
			r.StartedAt.Format(time.RFC3339), r.Status, r.SiteName,
			r.Collected, r.Inserted, r.DurationSeconds)
		fmt.Println(line)
		for _, e := range r.Errors {
			fmt.Println("    " + e)
		}
	}
	return nil
}
