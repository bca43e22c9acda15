package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sjsage522/eventworker/config"
	"sjsage522/eventworker/helpers"
	"sjsage522/eventworker/internal"
	"sjsage522/eventworker/internal/crawler"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/geocode"
	"sjsage522/eventworker/internal/ingest"
	"sjsage522/eventworker/internal/store"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/services/cache"
	"sjsage522/eventworker/services/publisher"
	"sjsage522/eventworker/services/worker"
)

var cfg config.Config

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg = config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eventworker",
		Short:         "Scrape UK event listings and publish them to a WordPress map",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCrawlCmd(), newIngestCmd(), newRunCmd(), newSpidersCmd(), newDBCheckCmd())
	return root
}

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [spider...]",
		Short: "Run spiders and write their JSON feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := initializeServices(ctx, false)
			if err != nil {
				return err
			}
			defer cleanup()

			spiders, err := crawler.Select(buildSpiders(deps), args)
			if err != nil {
				return err
			}
			w := worker.NewWorker(spiders, cfg.DataDir, nil, nil)
			renderCrawl(cmd, w.Crawl(ctx))
			return ctx.Err()
		},
	}
}

func newIngestCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load feed files into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := initializeServices(ctx, true)
			if err != nil {
				return err
			}
			defer cleanup()

			backupDir := cfg.BackupDir
			if dir != cfg.DataDir {
				backupDir = ""
			}
			summary, err := newIngester(deps, backupDir).Run(ctx, dir)
			if err != nil {
				return err
			}
			summary.Render(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", cfg.DataDir, "Folder holding the feed files")
	return cmd
}

func newRunCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl every spider, then ingest the feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, cleanup, err := initializeServices(ctx, true)
			if err != nil {
				return err
			}
			defer cleanup()

			w := worker.NewWorker(buildSpiders(deps), cfg.DataDir, newIngester(deps, cfg.BackupDir), deps.Publisher)
			report := func(results []worker.CrawlResult, summary *ingest.Summary) {
				renderCrawl(cmd, results)
				if summary != nil {
					summary.Render(cmd.OutOrStdout())
				}
			}

			if interval > 0 {
				logger.Default.Info().Dur("interval", interval).Msg("Starting event worker")
				err := w.Start(ctx, interval, report)
				if errors.Is(err, context.Canceled) {
					logger.Default.Info().Msg("Shutting down gracefully...")
					return nil
				}
				return err
			}

			results, summary, err := w.RunOnce(ctx)
			report(results, summary)
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the run at this interval until interrupted")
	return cmd
}

func newSpidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spiders",
		Short: "List the registered spiders",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Spider", "Group", "Start URLs"})
			for _, c := range crawler.Configs() {
				t.AppendRow(table.Row{c.Name, c.Group, len(c.StartURLs)})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

func newDBCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db-check",
		Short: "Check the database connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Database connection OK (%s)\n", cfg.DBDriver)
			return nil
		},
	}
}

func buildSpiders(deps *internal.Dependencies) []crawler.Spider {
	opts := crawler.Options{
		Geocoder:               deps.Geocoder,
		ErrorLog:               helpers.NewErrorFileLogger(cfg.ErrorLogFile),
		Cache:                  deps.Cache,
		CheckDBBeforeGeocoding: cfg.CheckDBBeforeGeocoding,
		DownloadDelay:          cfg.DownloadDelay,
	}
	if deps.Store != nil {
		opts.Finder = deps.Store
	}
	return crawler.Spiders(opts)
}

func newIngester(deps *internal.Dependencies, backupDir string) *ingest.Ingester {
	return ingest.New(ingest.Options{
		Store:         deps.Store,
		Geocoder:      deps.Geocoder,
		Publisher:     deps.Publisher,
		BackupDir:     backupDir,
		RetentionDays: cfg.BackupRetentionDays,
	})
}

func renderCrawl(cmd *cobra.Command, results []worker.CrawlResult) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle("Spider runs")
	t.AppendHeader(table.Row{"Spider", "Events", "Feed", "Error"})
	total := 0
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = helpers.Truncate(r.Err.Error(), 60)
		}
		t.AppendRow(table.Row{r.Spider, r.Events, r.File, errText})
		total += r.Events
	}
	t.AppendFooter(table.Row{"Total", total, "", ""})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func openStore(ctx context.Context) (*store.WordPressStore, error) {
	return store.Open(ctx, store.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DSN(),
		PostType: cfg.WPPostType,
	})
}

// initializeServices initializes all required services. Without
// requireStore a database that cannot be reached only disables the
// duplicate check.
func initializeServices(ctx context.Context, requireStore bool) (*internal.Dependencies, func(), error) {
	log := logger.Default
	deps := &internal.Dependencies{}

	// Initialize cache service
	deps.Cache = cache.NewMemoryService()
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, using in-process cache")
		} else {
			deps.Cache = mc
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	deps.Geocoder = geocode.New(geocode.Options{
		LocationIQKey: cfg.LocationIQAPIKey,
		LocationIQURL: cfg.LocationIQURL,
		NominatimURL:  cfg.NominatimURL,
		UserAgent:     cfg.NominatimUserAgent,
		Timeout:       cfg.GeocodeTimeout,
		Bounds:        event.UKBounds,
		Cache:         geocode.NewCache(deps.Cache, geocode.DefaultCacheTTL),
	})
	log.Info().Strs("providers", deps.Geocoder.Providers()).Msg("Geocoder ready")

	s, err := openStore(ctx)
	if err != nil {
		if requireStore {
			return nil, nil, err
		}
		log.Warn().Err(err).Msg("Database unavailable, duplicate check disabled")
	} else {
		deps.Store = s
	}

	// Initialize publisher
	if cfg.RedisAddr != "" {
		p := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, publishing disabled")
			p.Close()
		} else {
			deps.Publisher = p
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
		}
	}

	cleanup := func() {
		if deps.Publisher != nil {
			deps.Publisher.Close()
		}
		if deps.Store != nil {
			deps.Store.Close()
		}
	}
	return deps, cleanup, nil
}
