package store

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/normalize"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
)

//go:embed schema.sql
var Schema string

const (
	// DefaultPostType is the post type of the map plugin's locations.
	DefaultPostType = "oum-location"

	wpDateLayout = "2006-01-02 15:04:05"
	wpDayLayout  = "2006-01-02"
	postAuthor   = 1
)

// WordPressStore reads and writes map locations in a WordPress database.
type WordPressStore struct {
	db       *sql.DB
	driver   string
	postType string
	guidBase string
	now      func() time.Time
	log      *logger.Logger
}

// Options configures Open.
type Options struct {
	Driver   string // "mysql" or "sqlite"
	DSN      string
	PostType string
	// GUIDBase prefixes the post ID in wp_posts.guid.
	GUIDBase string
}

// Open connects to the database. SQLite databases get the embedded schema
// and the site categories.
func Open(ctx context.Context, opts Options) (*WordPressStore, error) {
	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, errors.NewDatabase(opts.Driver, "open failed", err)
	}

	if opts.Driver == "sqlite" {
		// every :memory: connection is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(3 * time.Minute)
	}

	s := NewWordPressStore(db, opts)
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if opts.Driver == "sqlite" {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWordPressStore wraps an open handle.
func NewWordPressStore(db *sql.DB, opts Options) *WordPressStore {
	postType := opts.PostType
	if postType == "" {
		postType = DefaultPostType
	}
	guidBase := opts.GUIDBase
	if guidBase == "" {
		guidBase = "http://localhost/?p="
	}
	return &WordPressStore{
		db:       db,
		driver:   opts.Driver,
		postType: postType,
		guidBase: guidBase,
		now:      time.Now,
		log:      logger.ForStore(),
	}
}

// Migrate creates the tables and seeds the categories if they are missing.
func (s *WordPressStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return errors.NewDatabase(s.driver, "apply schema", err)
	}
	for _, name := range Categories {
		if _, err := s.EnsureCategory(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// EnsureCategory returns the term_taxonomy_id of a category, creating the
// term and its taxonomy row when missing.
func (s *WordPressStore) EnsureCategory(ctx context.Context, name string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewDatabase(s.driver, "begin", err)
	}
	defer tx.Rollback()

	termID, ok, err := termIDByName(ctx, tx, name)
	if err != nil {
		return 0, errors.NewDatabase(s.driver, "lookup term "+name, err)
	}
	if !ok {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO wp_terms (name, slug, term_group) VALUES (?, ?, 0)`, name, Slug(name))
		if err != nil {
			return 0, errors.NewDatabase(s.driver, "insert term "+name, err)
		}
		if termID, err = res.LastInsertId(); err != nil {
			return 0, errors.NewDatabase(s.driver, "term id", err)
		}
	}

	ttID, ok, err := taxonomyIDByTerm(ctx, tx, termID)
	if err != nil {
		return 0, errors.NewDatabase(s.driver, "lookup taxonomy "+name, err)
	}
	if !ok {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO wp_term_taxonomy (term_id, taxonomy, description, parent, count) VALUES (?, ?, '', 0, 0)`,
			termID, CategoryTaxonomy)
		if err != nil {
			return 0, errors.NewDatabase(s.driver, "insert taxonomy "+name, err)
		}
		if ttID, err = res.LastInsertId(); err != nil {
			return 0, errors.NewDatabase(s.driver, "term taxonomy id", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewDatabase(s.driver, "commit", err)
	}
	return ttID, nil
}

// Ping checks the connection
func (s *WordPressStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewDatabase(s.driver, "ping failed", err)
	}
	return nil
}

// Close closes the connection
func (s *WordPressStore) Close() error {
	return s.db.Close()
}

// FindByURL matches the _event_url meta first. Posts written without a
// source URL are then searched for the URL as a quoted attribute value in
// their body.
func (s *WordPressStore) FindByURL(ctx context.Context, url string) (int64, bool, error) {
	id, ok, err := s.queryID(ctx, `
		SELECT pm.post_id FROM wp_postmeta pm
		JOIN wp_posts p ON pm.post_id = p.ID
		WHERE pm.meta_key = '_event_url'
		AND pm.meta_value = ?
		AND p.post_type = ?
		AND p.post_status = 'publish'
		LIMIT 1`, url, s.postType)
	if err != nil || ok {
		return id, ok, err
	}

	return s.queryID(ctx, `
		SELECT p.ID FROM wp_posts p
		WHERE p.post_content LIKE ? ESCAPE '!'
		AND p.post_type = ?
		AND p.post_status = 'publish'
		AND NOT EXISTS (
			SELECT 1 FROM wp_postmeta m
			WHERE m.post_id = p.ID
			AND m.meta_key = '_event_url'
			AND m.meta_value <> ''
		)
		ORDER BY p.ID
		LIMIT 1`, `%"`+likeEscaper.Replace(url)+`"%`, s.postType)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// FindByTitleDate matches the exact title on the same calendar day.
func (s *WordPressStore) FindByTitleDate(ctx context.Context, title string, day time.Time) (int64, bool, error) {
	return s.queryID(ctx, `
		SELECT ID FROM wp_posts
		WHERE post_title = ?
		AND DATE(post_date) = ?
		AND post_type = ?
		AND post_status = 'publish'
		ORDER BY ID
		LIMIT 1`, title, day.Format(wpDayLayout), s.postType)
}

// FindByTitleDateText matches the exact title and the date string as it
// was ingested, for dates that are not calendar dates.
func (s *WordPressStore) FindByTitleDateText(ctx context.Context, title, date string) (int64, bool, error) {
	return s.queryID(ctx, `
		SELECT p.ID FROM wp_posts p
		JOIN wp_postmeta pm ON pm.post_id = p.ID
		WHERE p.post_title = ?
		AND pm.meta_key = '_event_date'
		AND pm.meta_value = ?
		AND p.post_type = ?
		AND p.post_status = 'publish'
		ORDER BY p.ID
		LIMIT 1`, title, date, s.postType)
}

func (s *WordPressStore) queryID(ctx context.Context, query string, args ...any) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.NewDatabase(s.driver, "lookup failed", err)
	}
	return id, true, nil
}

// Insert writes the post, its meta and its category link in one transaction.
func (s *WordPressStore) Insert(ctx context.Context, e event.Event) (int64, error) {
	postDate := s.now()
	if d, err := time.Parse(normalize.OutputDateLayout, e.Date); err == nil {
		postDate = d
	}
	dateStr := postDate.Format(wpDateLayout)

	location, err := LocationMeta(e)
	if err != nil {
		return 0, errors.NewValidation(s.driver, err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewDatabase(s.driver, "begin", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO wp_posts (
			post_author, post_date, post_date_gmt, post_content, post_title,
			post_excerpt, post_status, comment_status, ping_status, post_password,
			post_name, to_ping, pinged, post_modified, post_modified_gmt,
			post_content_filtered, post_parent, guid, menu_order, post_type,
			post_mime_type, comment_count
		) VALUES (?, ?, ?, ?, ?, ?, 'publish', 'closed', 'closed', '', ?, '', '', ?, ?, '', 0, '', 0, ?, '', 0)`,
		postAuthor, dateStr, dateStr, e.Description(), e.Title,
		e.ShortDescription,
		Slug(e.Title), dateStr, dateStr, s.postType,
	)
	if err != nil {
		return 0, errors.NewDatabase(s.driver, "insert post", err)
	}
	postID, err := res.LastInsertId()
	if err != nil {
		return 0, errors.NewDatabase(s.driver, "post id", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE wp_posts SET guid = ? WHERE ID = ?`,
		s.guidBase+strconv.FormatInt(postID, 10), postID); err != nil {
		return 0, errors.NewDatabase(s.driver, "update guid", err)
	}

	meta := []struct{ key, value string }{
		{"_oum_location_key", location},
		{"_oum_location_image", ""},
		{"_oum_location_audio", ""},
		{"_edit_last", strconv.Itoa(postAuthor)},
		{"_event_category", e.Category},
		{"_event_subcategory", e.Subcategory},
		{"_event_url", e.URL},
		{"_event_date", e.Date},
	}
	for _, m := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wp_postmeta (post_id, meta_key, meta_value) VALUES (?, ?, ?)`,
			postID, m.key, m.value); err != nil {
			return 0, errors.NewDatabase(s.driver, "insert meta "+m.key, err)
		}
	}

	ttID, ok, err := termTaxonomyID(ctx, tx, e.Category, e.Subcategory)
	if err != nil {
		return 0, errors.NewDatabase(s.driver, "lookup category", err)
	}
	if ok {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wp_term_relationships (object_id, term_taxonomy_id, term_order) VALUES (?, ?, 0)`,
			postID, ttID); err != nil {
			return 0, errors.NewDatabase(s.driver, "link category", err)
		}
	} else {
		s.log.Warn().
			Int64("post_id", postID).
			Str("category", e.Category).
			Str("subcategory", e.Subcategory).
			Msg("No site category matches, inserted without category")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewDatabase(s.driver, "commit", err)
	}
	return postID, nil
}

// PostCategories returns the category names linked to a post.
func (s *WordPressStore) PostCategories(ctx context.Context, postID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM wp_term_relationships r
		JOIN wp_term_taxonomy tt ON tt.term_taxonomy_id = r.term_taxonomy_id
		JOIN wp_terms t ON t.term_id = tt.term_id
		WHERE r.object_id = ?
		ORDER BY t.name`, postID)
	if err != nil {
		return nil, errors.NewDatabase(s.driver, "list categories", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewDatabase(s.driver, "scan category", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// PostMeta returns one meta value of a post.
func (s *WordPressStore) PostMeta(ctx context.Context, postID int64, key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT meta_value FROM wp_postmeta WHERE post_id = ? AND meta_key = ? LIMIT 1`,
		postID, key).Scan(&value)
	if err != nil {
		return "", errors.NewDatabase(s.driver, fmt.Sprintf("read meta %s", key), err)
	}
	return value.String, nil
}
