package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/shelfcrawl/internal/config"
	"github.com/nao1215/shelfcrawl/internal/crawler"
	"github.com/nao1215/shelfcrawl/internal/export"
	"github.com/nao1215/shelfcrawl/internal/extract"
	"github.com/nao1215/shelfcrawl/internal/fetcher"
	shelflog "github.com/nao1215/shelfcrawl/internal/log"
	"github.com/nao1215/shelfcrawl/internal/metrics"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a site and export the extracted records",
		Long: `Crawl visits every page reachable from the seed URL inside the origin,
extracts a record from each page and exports all records when the crawl is done.

A checkpoint is written after every page. If the crawl is interrupted
(Ctrl+C, SIGTERM, --max-pages) run the same command again to resume it.

Examples:
  # Crawl the default catalogue
  shelfcrawl crawl

  # Crawl another origin with four workers sharing one request schedule
  shelfcrawl crawl --origin https://example.com --workers 4

  # Keep the checkpoint in SQLite and export Markdown
  shelfcrawl crawl --backend sqlite --format markdown -o books.md

  # Give failed URLs another chance
  shelfcrawl crawl --retry-failed

Configuration file (.shelfcrawl) example:
  sites:
    example.com:
      cookie: "session=abc123"
      ignorePatterns:
        - "/cart/*"
      fields:
        - name: title
          selector: h1`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().String("origin", config.DefaultOrigin,
		"Origin the crawl is bounded to")
	cmd.Flags().String("seed", "",
		"First URL to visit (default: origin + "+config.DefaultSeedPath+")")
	addStoreFlags(cmd)

	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"Export file written when the crawl is done")
	cmd.Flags().StringP("format", "f", config.DefaultExportFormat,
		"Export format: csv, markdown or json")

	cmd.Flags().Duration("delay", config.DefaultDelayMean,
		"Mean of the randomized delay before each request")
	cmd.Flags().Duration("delay-sigma", config.DefaultDelaySigma,
		"Spread of the randomized delay")
	cmd.Flags().Float64("rate", 0,
		"Hard cap on requests per second across all workers (0 = none)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent workers")

	cmd.Flags().Int("max-retries", config.DefaultMaxRetries,
		"Failed fetches before a URL is given up on (0 = retry forever)")
	cmd.Flags().Duration("retry-backoff", config.DefaultRetryBackoff,
		"Wait before the first retry; doubles with each failure")
	cmd.Flags().Duration("max-retry-backoff", config.DefaultMaxRetryBackoff,
		"Upper bound of the retry wait")
	cmd.Flags().Bool("retry-failed", false,
		"Requeue URLs that previously exhausted their retries")

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Stop after this many pages; the crawl stays resumable (0 = no limit)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .shelfcrawl in current or home directory)")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().String("log-format", config.DefaultLogFormat,
		"Log format: text or json")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, stop := interruptContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// interruptContext returns a context cancelled by the first of sigs. The
// crawl then stops cooperatively; a second signal gets the default
// behaviour and terminates the process.
func interruptContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
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

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Origin, err = flags.GetString("origin"); err != nil {
		return nil, err
	}
	if cfg.Seed, err = flags.GetString("seed"); err != nil {
		return nil, err
	}
	if err := readStoreFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ExportFormat, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if format, perr := export.ParseFormat(cfg.ExportFormat); perr == nil {
		cfg.ExportFormat = string(format)
	}
	if cfg.DelayMean, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.DelaySigma, err = flags.GetDuration("delay-sigma"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = flags.GetInt("max-retries"); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = flags.GetDuration("retry-backoff"); err != nil {
		return nil, err
	}
	if cfg.MaxRetryBackoff, err = flags.GetDuration("max-retry-backoff"); err != nil {
		return nil, err
	}
	if cfg.RetryFailed, err = flags.GetBool("retry-failed"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}
	if cfg.LogFormat, err = flags.GetString("log-format"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	return cfg, nil
}

// setupLogger creates the crawl logger. Progress lines are logged at Info.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return shelflog.NewSecureLogger(w, shelflog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.LogFormat == config.LogFormatJSON,
	})
}

// extractRules converts configured field rules. No rules means the
// extractor's defaults.
func extractRules(fields []config.FieldRule) []extract.Rule {
	if len(fields) == 0 {
		return nil
	}
	rules := make([]extract.Rule, 0, len(fields))
	for _, f := range fields {
		rules = append(rules, extract.Rule{
			Name:     f.Name,
			Selector: f.Selector,
			Attr:     f.Attr,
			Pattern:  f.Pattern,
			Optional: f.Optional,
		})
	}
	return rules
}

// runCrawl runs the crawl described by cfg and exports the records once the
// frontier is drained.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	site := cfg.SiteConfig()

	scope, err := crawler.NewScope(cfg.Origin,
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns))
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}

	extractor, err := extract.New(extractRules(site.Fields))
	if err != nil {
		return fmt.Errorf("invalid field rules: %w", err)
	}

	format, err := export.ParseFormat(cfg.ExportFormat)
	if err != nil {
		return err
	}

	store, db, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.MetricsAddr, err)
		}
		defer serveMetrics(ln, m, logger)()
	}

	f := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.UserAgent,
		Headers:      site.Headers,
		Cookie:       site.Cookie,
		Timeout:      cfg.Timeout,
		MaxBodyBytes: cfg.MaxBodySize,
		Pacer:        fetcher.NewPacer(cfg.DelayMean, cfg.DelaySigma, cfg.RateLimit),
	})

	runID := uuid.NewString()
	spider := crawler.NewSpider(f, extractor, store, scope,
		crawler.WithSeed(cfg.SeedURL()),
		crawler.WithRunID(runID),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithMaxRetries(cfg.MaxRetries),
		crawler.WithRetryBackoff(cfg.RetryBackoff, cfg.MaxRetryBackoff),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithRetryFailed(cfg.RetryFailed),
		crawler.WithLogger(logger),
		crawler.WithMetrics(m),
	)

	if db != nil {
		if err := db.BeginRun(ctx, runID, cfg.SeedURL()); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	res, runErr := spider.Run(ctx)

	if db != nil {
		outcome := res.Outcome.String()
		if runErr != nil {
			outcome = "failed"
		}
		if err := db.EndRun(context.WithoutCancel(ctx), runID, outcome, res.Processed); err != nil {
			logger.Warn("failed to record run end", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	if res.Outcome != crawler.OutcomeDone {
		fmt.Fprintf(out, "interrupted, state saved: %d visited, %d pending\n", res.Visited, res.Pending)
		return nil
	}

	rows, err := export.WriteFile(cfg.OutputFile, format, res.Records)
	if err != nil {
		return &crawler.Error{Kind: crawler.KindExport, Err: err}
	}
	fmt.Fprintf(out, "crawl complete: %d pages visited, %d records exported to %s\n",
		res.Visited, rows, cfg.OutputFile)
	if res.Failed > 0 {
		fmt.Fprintf(out, "%d URLs failed, rerun with --retry-failed to try them again\n", res.Failed)
	}
	return nil
}

// serveMetrics serves /metrics on ln until the returned function is called.
func serveMetrics(ln net.Listener, m *metrics.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
