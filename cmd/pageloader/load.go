package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nao1215/pageloader/internal/config"
	"github.com/nao1215/pageloader/internal/database"
	"github.com/nao1215/pageloader/internal/fetch"
	"github.com/nao1215/pageloader/internal/log"
	"github.com/nao1215/pageloader/internal/model"
	"github.com/nao1215/pageloader/internal/pipeline"
	"github.com/nao1215/pageloader/internal/report"
)

// addLoadFlags registers the flags of the load operation on cmd.
func addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "",
		"Directory to save pages into (default: current directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pageloader in current or home directory)")

	// Transport
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request, body included")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of assets downloaded at once for a page")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of pages loaded at once")
	cmd.Flags().Float64P("rate", "r", config.DefaultRateLimit,
		"Maximum requests per second for the whole run (0 = unlimited)")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum size in bytes of a single response")

	// Report
	cmd.Flags().Bool("report", false,
		"Print a human-readable report of each load")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Write the report to the specified file (creates directories if needed)")

	cmd.Flags().Bool("no-history", false,
		"Do not record loads in the history database")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")
}

// runLoadCmd executes the load operation of the root command.
func runLoadCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runLoad(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag reads the persistent verbose flag.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getDBDirFlag reads the persistent db-dir flag.
func getDBDirFlag(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil || dir == "" {
		dir, err = cmd.Root().PersistentFlags().GetString("db-dir")
		if err != nil || dir == "" {
			return config.XDGDataDir()
		}
	}
	return dir
}

// buildConfig creates a Config from command line flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	flags := cmd.Flags()

	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	if cfg.Report, err = flags.GetBool("report"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	cfg.DBDir = getDBDirFlag(cmd)

	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	cfg.Targets = args

	return cfg, nil
}

// setupLogger creates the logger for a run. Logs always go to w (stderr)
// so stdout only carries saved paths and reports.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// runLoad loads every target, records the results and writes the report.
// It returns an error when at least one load failed.
func runLoad(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	destDir := cfg.OutputDir
	if destDir == "" {
		destDir = "."
	}

	logger.Info("starting load",
		"targets", len(cfg.Targets),
		"destDir", destDir,
		"batchSize", cfg.BatchSize,
		"saveHistory", cfg.SaveHistory,
	)

	var db *database.HistoryDB
	if cfg.SaveHistory {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Debug("history database opened", "path", db.Path())
	}

	bp := pipeline.NewBatchProcessor(
		newLoaderFactory(cfg, logger),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	printPaths := !reportOnStdout(cfg)
	startTime := time.Now()

	var mu sync.Mutex
	reports := make([]*model.LoadReport, len(cfg.Targets))
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, destDir, func(r *model.LoadReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = r
		if printPaths && r.Succeeded() {
			fmt.Fprintln(out, r.PageFile)
		}

		if err := saveLoadReport(ctx, db, r, logger); err != nil {
			logger.Error("failed to save load report", "url", r.PageURL, "error", err)
		}
	})

	logger.Info("load finished",
		"targets", len(cfg.Targets),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if err := outputReport(cfg, reports, out); err != nil {
		logger.Error("report failed", "error", err)
	}

	return loadError(reports, batchErr)
}

// newLoaderFactory returns a factory building one Loader per host, so
// each host gets its own cookie, headers and User-Agent. All loaders share
// one rate limiter.
func newLoaderFactory(cfg *config.Config, logger *slog.Logger) pipeline.LoaderFactory {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	var mu sync.Mutex
	loaders := make(map[string]*pipeline.Loader)

	return func(pageURL string) (*pipeline.Loader, error) {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, err
		}

		mu.Lock()
		defer mu.Unlock()

		if l, ok := loaders[u.Host]; ok {
			return l, nil
		}

		l, err := newLoader(cfg, cfg.SiteConfigFor(pageURL), limiter, logger)
		if err != nil {
			return nil, err
		}
		loaders[u.Host] = l
		return l, nil
	}
}

// newLoader creates a Loader with the run-wide settings of cfg and the
// per-host settings of site. Site settings win.
func newLoader(cfg *config.Config, site config.SiteConfig, limiter *rate.Limiter, logger *slog.Logger) (*pipeline.Loader, error) {
	userAgent := cfg.UserAgent
	if site.UserAgent != "" {
		userAgent = site.UserAgent
	}

	client, err := fetch.New(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithUserAgent(userAgent),
		fetch.WithProxy(cfg.ProxyAddress),
		fetch.WithCookie(site.Cookie),
		fetch.WithHeaders(site.Headers),
		fetch.WithLimiter(limiter),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	concurrency := cfg.Concurrency
	if site.Concurrency > 0 {
		concurrency = site.Concurrency
	}

	return pipeline.NewLoader(client,
		pipeline.WithAssetConcurrency(concurrency),
		pipeline.WithLoaderLogger(logger),
	), nil
}

// saveLoadReport records r in db. A nil db disables history.
func saveLoadReport(ctx context.Context, db *database.HistoryDB, r *model.LoadReport, logger *slog.Logger) error {
	if db == nil || r == nil {
		return nil
	}

	// The run may have been cancelled; the record is still worth keeping.
	id, err := db.SaveLoadReport(context.WithoutCancel(ctx), r)
	if err != nil {
		return err
	}

	logger.Debug("load recorded in history", "url", r.PageURL, "id", id)
	return nil
}

// wantsReport reports whether any report output was requested.
func wantsReport(cfg *config.Config) bool {
	return cfg.Report || cfg.JSONReport || cfg.MarkdownReport || cfg.ReportFile != ""
}

// reportOnStdout reports whether a machine-readable report replaces the
// saved paths on stdout.
func reportOnStdout(cfg *config.Config) bool {
	return cfg.ReportFile == "" && (cfg.JSONReport || cfg.MarkdownReport)
}

// newReportWriter returns the report writer selected by cfg.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// outputReport writes the reports of the run to stdout or cfg.ReportFile.
func outputReport(cfg *config.Config, reports []*model.LoadReport, stdout io.Writer) error {
	if !wantsReport(cfg) {
		return nil
	}

	kept := make([]*model.LoadReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w := newReportWriter(cfg, output)
	if len(kept) == 1 {
		_, err := w.Write(kept[0])
		return err
	}
	_, err := w.WriteBatch(kept)
	return err
}

// loadError returns the error of a run. A single page returns its own
// error unchanged; several pages join the failures, each prefixed with its
// URL.
func loadError(reports []*model.LoadReport, batchErr error) error {
	if len(reports) == 1 && reports[0] != nil && reports[0].Error != nil {
		return reports[0].Error
	}

	errs := make([]error, 0, len(reports)+1)
	for _, r := range reports {
		if r != nil && r.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.PageURL, r.Error))
		}
	}
	if batchErr != nil {
		errs = append(errs, batchErr)
	}
	return errors.Join(errs...)
}
