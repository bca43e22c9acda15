package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sjsage522/eventworker/pkg/errors"
)

// FeedFileName returns "<spider>_<YYYY-MM-DD>.json".
func FeedFileName(spider string, day time.Time) string {
	return fmt.Sprintf("%s_%s.json", spider, day.Format("2006-01-02"))
}

// DecodeFeed decodes a feed body. A single object is accepted as a
// one-element feed.
func DecodeFeed(data []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.NewParsing("feed", "empty feed", nil)
	}

	if trimmed[0] == '{' {
		var single Event
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, errors.NewParsing("feed", "invalid event object", err)
		}
		return []Event{single}, nil
	}

	var events []Event
	if err := json.Unmarshal(trimmed, &events); err != nil {
		return nil, errors.NewParsing("feed", "invalid event list", err)
	}
	return events, nil
}

// ReadFeed reads and decodes a feed file.
func ReadFeed(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", path, err)
	}
	return DecodeFeed(data)
}

// WriteFeed writes events as an indented JSON array, creating the parent
// directory when needed. The file is written under a temporary name and
// renamed so readers never see a partial feed.
func WriteFeed(path string, events []Event) error {
	if events == nil {
		events = []Event{}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write feed %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
