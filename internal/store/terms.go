package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Categories are the map categories that exist as wp_terms on the site.
var Categories = []string{
	"Charity Events",
	"Crossfit",
	"Endurance events",
	"Family Fitness",
	"Local Club Events",
	"Mindfulness",
	"Running Events",
	"Strength and Endurance",
	"Women's Fitness",
	"Yoga and Pilates",
	"Cycling",
	"Swimming",
}

// CategoryTaxonomy is the taxonomy the map plugin registers for its categories.
const CategoryTaxonomy = "oum-type"

// MatchCategories maps an event's subcategory, then category, onto site
// categories. A name matches when either string contains the other,
// case-insensitively. Candidates are returned in the order they should be tried.
func MatchCategories(category, subcategory string) []string {
	var matches []string
	for _, name := range []string{subcategory, category} {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		for _, valid := range Categories {
			v := strings.ToLower(valid)
			if strings.Contains(v, name) || strings.Contains(name, v) {
				matches = append(matches, valid)
			}
		}
	}
	return matches
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// termTaxonomyID resolves the term_taxonomy_id for the first matching
// category present in wp_terms. ok is false when none is.
func termTaxonomyID(ctx context.Context, q querier, category, subcategory string) (int64, bool, error) {
	for _, name := range MatchCategories(category, subcategory) {
		termID, ok, err := termIDByName(ctx, q, name)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		return taxonomyIDByTerm(ctx, q, termID)
	}
	return 0, false, nil
}

func termIDByName(ctx context.Context, q querier, name string) (int64, bool, error) {
	return scanID(q.QueryRowContext(ctx,
		`SELECT term_id FROM wp_terms WHERE LOWER(name) = LOWER(?) LIMIT 1`, name))
}

func taxonomyIDByTerm(ctx context.Context, q querier, termID int64) (int64, bool, error) {
	return scanID(q.QueryRowContext(ctx,
		`SELECT term_taxonomy_id FROM wp_term_taxonomy WHERE term_id = ? LIMIT 1`, termID))
}

func scanID(row *sql.Row) (int64, bool, error) {
	var id int64
	err := row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
