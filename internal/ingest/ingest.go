package ingest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sjsage522/eventworker/helpers"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/store"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/publisher"
)

const backupTimeLayout = "20060102_150405"

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*event.Coordinates, bool)
}

// Options configures an Ingester. Store is required.
type Options struct {
	Store     store.Store
	Geocoder  Geocoder
	Publisher publisher.Publisher

	// BackupDir defaults to "<folder>/backup".
	BackupDir     string
	RetentionDays int

	Now func() time.Time
}

// Ingester loads feed files into the store.
type Ingester struct {
	store     store.Store
	geocoder  Geocoder
	publisher publisher.Publisher
	backupDir string
	retention time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// New creates an Ingester
func New(opts Options) *Ingester {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ingester{
		store:     opts.Store,
		geocoder:  opts.Geocoder,
		publisher: opts.Publisher,
		backupDir: opts.BackupDir,
		retention: time.Duration(opts.RetentionDays) * 24 * time.Hour,
		now:       now,
		log:       logger.ForIngest(),
	}
}

// Run ingests every *.json file of folder in name order. Only a missing or
// unreadable folder fails the run; file and event failures are counted.
func (in *Ingester) Run(ctx context.Context, folder string) (*Summary, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("feed folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("feed folder %s is not a directory", folder)
	}

	backupDir := in.backupDir
	if backupDir == "" {
		backupDir = filepath.Join(folder, "backup")
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup folder: %w", err)
	}

	if removed, err := in.CleanupBackups(backupDir); err != nil {
		in.log.Warn().Err(err).Str("backup_dir", backupDir).Msg("Backup cleanup failed")
	} else if removed > 0 {
		in.log.Info().Int("removed", removed).Msg("Old backups removed")
	}

	files, err := filepath.Glob(filepath.Join(folder, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list feed files: %w", err)
	}
	sort.Strings(files)

	summary := &Summary{}
	if len(files) == 0 {
		in.log.Info().Str("folder", folder).Msg("No feed files found")
		return summary, nil
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		fs := in.processFile(ctx, path, backupDir)
		summary.Add(fs)
	}

	in.log.Info().
		Int("files", summary.Files).
		Int("events", summary.Events).
		Int("inserted", summary.Inserted).
		Int("duplicates", summary.Duplicate).
		Int("invalid_coordinates", summary.InvalidCoordinates).
		Int("failed", summary.Failed).
		Msg("Ingestion finished")

	in.publishSummary(ctx, summary)
	return summary, nil
}

func (in *Ingester) processFile(ctx context.Context, path, backupDir string) FileSummary {
	name := filepath.Base(path)
	fs := FileSummary{File: name, Site: siteOf(name)}
	log := in.log.WithField("file", name)

	events, err := event.ReadFeed(path)
	if err != nil {
		fs.Err = err
		fs.Failed++
		suffix := "_error"
		if errors.Is(err, errors.ErrorTypeParsing) {
			suffix = "_invalid"
		}
		log.Error().Err(err).Msg("Feed file could not be read")
		fs.Backup = in.moveWithSuffix(path, backupDir, suffix, log)
		return fs
	}

	if len(events) == 0 {
		log.Info().Msg("Feed file is empty, skipping")
		return fs
	}

	fs.Events = len(events)
	for _, e := range events {
		if ctx.Err() != nil {
			// leave the file in place so the next run picks up the rest
			fs.Err = ctx.Err()
			return fs
		}
		in.processEvent(ctx, e, &fs, log)
	}

	log.Info().
		Int("events", fs.Events).
		Int("inserted", fs.Inserted).
		Int("duplicates", fs.Duplicate).
		Int("invalid_coordinates", fs.InvalidCoordinates).
		Int("failed", fs.Failed).
		Msg("Feed file processed")

	fs.Backup = in.moveToBackup(path, backupDir, log)
	return fs
}

func (in *Ingester) processEvent(ctx context.Context, e event.Event, fs *FileSummary, log *logger.Logger) {
	title := helpers.Truncate(e.Title, 50)

	id, found, err := store.Exists(ctx, in.store, e)
	if err != nil {
		fs.Failed++
		log.Error().Err(err).Str("title", title).Msg("Duplicate check failed")
		return
	}
	if found {
		fs.Duplicate++
		log.Debug().Int64("post_id", id).Str("title", title).Msg("Event already exists")
		return
	}

	if e.Coordinates == nil && strings.TrimSpace(e.Address) != "" && in.geocoder != nil {
		if coords, ok := in.geocoder.Geocode(ctx, e.Address); ok {
			e.Coordinates = coords
		}
	}

	if valid, reason := event.ValidateUKCoordinates(e.Coordinates); !valid {
		fs.InvalidCoordinates++
		log.Warn().Str("title", title).Str("reason", reason).Msg("Skipping event with invalid coordinates")
		return
	}

	postID, err := in.store.Insert(ctx, e)
	if err != nil {
		fs.Failed++
		log.Error().Err(err).Str("title", title).Msg("Insert failed")
		return
	}
	fs.Inserted++
	log.Debug().Int64("post_id", postID).Str("title", title).Msg("Event inserted")

	in.publish(ctx, publisher.KeyEvent, publishedEvent{PostID: postID, Event: e})
}

type publishedEvent struct {
	PostID int64 `json:"post_id"`
	event.Event
}

func (in *Ingester) publishSummary(ctx context.Context, s *Summary) {
	in.publish(ctx, publisher.KeySummary, s)
}

func (in *Ingester) publish(ctx context.Context, key string, v any) {
	if in.publisher == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		in.log.Error().Err(err).Str("key", key).Msg("Failed to encode message")
		return
	}
	if err := in.publisher.Publish(ctx, key, data); err != nil {
		in.log.Warn().Err(err).Str("key", key).Msg("Failed to publish")
	}
}

// CleanupBackups deletes *.json backups last modified before the retention
// period and returns how many were removed. A zero retention keeps everything.
func (in *Ingester) CleanupBackups(backupDir string) (int, error) {
	if in.retention <= 0 {
		return 0, nil
	}
	files, err := filepath.Glob(filepath.Join(backupDir, "*.json"))
	if err != nil {
		return 0, err
	}

	cutoff := in.now().Add(-in.retention)
	removed := 0
	var errs []error
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(f); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
		in.log.Debug().Str("file", filepath.Base(f)).Msg("Removed old backup")
	}
	return removed, stderrors.Join(errs...)
}

// moveToBackup moves a processed file into backupDir, adding a timestamp
// when the name is taken. It returns the new path, or "" if the move failed.
func (in *Ingester) moveToBackup(path, backupDir string, log *logger.Logger) string {
	dest := filepath.Join(backupDir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(path)
		stem := strings.TrimSuffix(filepath.Base(path), ext)
		dest = filepath.Join(backupDir, stem+"_"+in.now().Format(backupTimeLayout)+ext)
	}
	return in.move(path, dest, log)
}

func (in *Ingester) moveWithSuffix(path, backupDir, suffix string, log *logger.Logger) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return in.move(path, filepath.Join(backupDir, stem+suffix+ext), log)
}

func (in *Ingester) move(src, dest string, log *logger.Logger) string {
	if err := os.Rename(src, dest); err != nil {
		log.Error().Err(err).Str("backup", dest).Msg("Failed to move file to backup")
		return ""
	}
	log.Debug().Str("backup", dest).Msg("Moved file to backup")
	return dest
}

// siteOf returns the spider name of a "<spider>_<date>.json" feed.
func siteOf(name string) string {
	site, err := helpers.GetSplitPart(strings.TrimSuffix(name, filepath.Ext(name)), "_", 0)
	if err != nil {
		return ""
	}
	return site
}
