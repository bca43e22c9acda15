package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/eventworker/internal/crawler"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/ingest"
	"sjsage522/eventworker/services/publisher"
)

// MockSpider implements crawler.Spider for testing
type MockSpider struct {
	name     string
	events   []event.Event
	crawlErr error
}

var _ crawler.Spider = (*MockSpider)(nil)

func (m *MockSpider) Name() string { return m.name }

func (m *MockSpider) Crawl(context.Context) ([]event.Event, error) {
	return m.events, m.crawlErr
}

// MockPublisher implements publisher.Publisher for testing
type MockPublisher struct {
	mu      sync.Mutex
	trimmed int
}

var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(context.Context, string, []byte) error { return nil }

func (m *MockPublisher) TrimStreams(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// MockIngester records the folders it was asked to ingest
type MockIngester struct {
	folders []string
	err     error
}

func (m *MockIngester) Run(_ context.Context, folder string) (*ingest.Summary, error) {
	m.folders = append(m.folders, folder)
	if m.err != nil {
		return nil, m.err
	}
	return &ingest.Summary{Files: 1}, nil
}

var day = time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC)

func newTestWorker(spiders []crawler.Spider, dir string, in Ingester, pub publisher.Publisher) *Worker {
	w := NewWorker(spiders, dir, in, pub)
	w.now = func() time.Time { return day }
	return w
}

func TestWorkerCrawlWritesFeeds(t *testing.T) {
	dir := t.TempDir()
	spider := &MockSpider{
		name:   "bhf",
		events: []event.Event{{Title: "Heart Walk", Date: "11/29/2025", URL: "https://www.bhf.org.uk/walk"}},
	}

	results := newTestWorker([]crawler.Spider{spider}, dir, nil, nil).Crawl(context.Background())
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Events)
	assert.Equal(t, filepath.Join(dir, "bhf_2025-10-20.json"), results[0].File)

	events, err := event.ReadFeed(results[0].File)
	require.NoError(t, err)
	assert.Equal(t, "Heart Walk", events[0].Title)
}

func TestWorkerContinuesAfterSpiderError(t *testing.T) {
	dir := t.TempDir()
	failing := &MockSpider{name: "findarace", crawlErr: errors.New("test error")}
	ok := &MockSpider{name: "runthrough"}

	results := newTestWorker([]crawler.Spider{failing, ok}, dir, nil, nil).Crawl(context.Background())
	require.Len(t, results, 2)

	assert.EqualError(t, results[0].Err, "test error")
	assert.Empty(t, results[0].File)

	assert.NoError(t, results[1].Err)
	assert.FileExists(t, filepath.Join(dir, "runthrough_2025-10-20.json"))
}

func TestWorkerRunOnce(t *testing.T) {
	dir := t.TempDir()
	in := &MockIngester{}
	pub := &MockPublisher{}
	w := newTestWorker([]crawler.Spider{&MockSpider{name: "mindspace"}}, dir, in, pub)

	results, summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 1)
	require.NotNil(t, summary)
	assert.Equal(t, []string{dir}, in.folders)
	assert.Equal(t, 1, pub.trimmed)
}

func TestWorkerRunOnceIngestError(t *testing.T) {
	in := &MockIngester{err: errors.New("folder gone")}
	pub := &MockPublisher{}
	w := newTestWorker(nil, t.TempDir(), in, pub)

	_, _, err := w.RunOnce(context.Background())
	assert.EqualError(t, err, "folder gone")
	assert.Zero(t, pub.trimmed)
}

func TestWorkerStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := newTestWorker([]crawler.Spider{&MockSpider{name: "bhf"}}, t.TempDir(), nil, nil)

	rounds := 0
	err := w.Start(ctx, time.Hour, func([]CrawlResult, *ingest.Summary) {
		rounds++
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rounds)
}
