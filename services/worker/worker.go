package worker

import (
	"context"
	"path/filepath"
	"time"

	"sjsage522/eventworker/internal/crawler"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/ingest"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/services/publisher"
)

// Ingester loads the feed folder into the database.
type Ingester interface {
	Run(ctx context.Context, folder string) (*ingest.Summary, error)
}

// CrawlResult is the outcome of one spider run.
type CrawlResult struct {
	Spider string
	Events int
	File   string
	Err    error
}

// Worker runs spiders one after another, writes their feeds and optionally
// ingests them.
type Worker struct {
	spiders   []crawler.Spider
	ingester  Ingester
	publisher publisher.Publisher
	dataDir   string
	now       func() time.Time
	log       *logger.Logger
}

// NewWorker creates a new worker. ingester and pub may be nil.
func NewWorker(spiders []crawler.Spider, dataDir string, ingester Ingester, pub publisher.Publisher) *Worker {
	return &Worker{
		spiders:   spiders,
		ingester:  ingester,
		publisher: pub,
		dataDir:   dataDir,
		now:       time.Now,
		log:       logger.ForWorker(),
	}
}

// Crawl runs every spider sequentially. A failing spider is logged and the
// next one still runs.
func (w *Worker) Crawl(ctx context.Context) []CrawlResult {
	results := make([]CrawlResult, 0, len(w.spiders))
	for _, s := range w.spiders {
		if ctx.Err() != nil {
			break
		}
		results = append(results, w.crawlOne(ctx, s))
	}
	return results
}

func (w *Worker) crawlOne(ctx context.Context, s crawler.Spider) CrawlResult {
	name := s.Name()
	res := CrawlResult{Spider: name}
	log := w.log.WithField("spider", name)

	start := time.Now()
	events, err := s.Crawl(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Spider failed")
		res.Err = err
		if len(events) == 0 {
			return res
		}
	}

	path := filepath.Join(w.dataDir, event.FeedFileName(name, w.now()))
	if err := event.WriteFeed(path, events); err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to write feed")
		res.Err = err
		return res
	}

	res.Events = len(events)
	res.File = path
	log.Info().
		Int("events", res.Events).
		Str("file", path).
		Dur("elapsed", time.Since(start)).
		Msg("Spider finished")
	return res
}

// RunOnce crawls all spiders, ingests the data folder when an ingester is
// set and trims the notification stream.
func (w *Worker) RunOnce(ctx context.Context) ([]CrawlResult, *ingest.Summary, error) {
	results := w.Crawl(ctx)
	if err := ctx.Err(); err != nil {
		return results, nil, err
	}

	var summary *ingest.Summary
	if w.ingester != nil {
		s, err := w.ingester.Run(ctx, w.dataDir)
		if err != nil {
			return results, s, err
		}
		summary = s
	}

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(ctx); err != nil {
			w.log.Warn().Err(err).Msg("Stream trimming failed")
		}
	}
	return results, summary, nil
}

// Start repeats RunOnce every interval until ctx is cancelled. The report
// callback, if given, receives every round's results.
func (w *Worker) Start(ctx context.Context, interval time.Duration, report func([]CrawlResult, *ingest.Summary)) error {
	for {
		start := time.Now()
		results, summary, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Run failed")
		}
		if report != nil && ctx.Err() == nil {
			report(results, summary)
		}
		w.log.Info().Dur("elapsed", time.Since(start)).Msg("Run finished")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
