package store

import (
	"context"
	"time"

	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/normalize"
)

// Finder looks up already published events.
type Finder interface {
	// FindByURL returns the post ID of a published event with this source URL.
	FindByURL(ctx context.Context, url string) (int64, bool, error)

	// FindByTitleDate returns the first published event with this exact
	// title on this calendar day.
	FindByTitleDate(ctx context.Context, title string, day time.Time) (int64, bool, error)

	// FindByTitleDateText returns the first published event with this
	// exact title that was stored with this exact date string.
	FindByTitleDateText(ctx context.Context, title, date string) (int64, bool, error)
}

// Store is the database collaborator of the ingestion job.
type Store interface {
	Finder

	// Insert publishes e and returns its post ID.
	Insert(ctx context.Context, e event.Event) (int64, error)

	// Ping checks the connection
	Ping(ctx context.Context) error

	// Close closes the connection
	Close() error
}

// Exists reports whether e is already stored: by URL first, then by title
// and date. A date that is not MM/DD/YYYY is compared as stored text.
func Exists(ctx context.Context, f Finder, e event.Event) (int64, bool, error) {
	if e.URL != "" {
		id, ok, err := f.FindByURL(ctx, e.URL)
		if err != nil || ok {
			return id, ok, err
		}
	}

	if e.Title == "" {
		return 0, false, nil
	}
	day, err := time.Parse(normalize.OutputDateLayout, e.Date)
	if err != nil {
		return f.FindByTitleDateText(ctx, e.Title, e.Date)
	}
	return f.FindByTitleDate(ctx, e.Title, day)
}
