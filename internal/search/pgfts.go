package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated search_vector column of
// website_pages.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	q = normalizeQuery(q)

	where, args := ftsWhere(q)

	var total int
	countSQL := "SELECT count(*) FROM website_pages p WHERE " + where
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT p.id, p.website_id, p.name, p.path_name,
			ts_headline('simple', coalesce(p.search_text, ''), plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM website_pages p
		WHERE %s
		ORDER BY ts_rank(p.search_vector, plainto_tsquery('simple', $1)) DESC, p.updated_at DESC
		LIMIT %d OFFSET %d`, where, q.Limit, q.Offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.WebsiteID, &r.Name, &r.PathName, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func ftsWhere(q Query) (string, []any) {
	where := "p.search_vector @@ plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	if q.WebsiteID != "" {
		where += " AND p.website_id = $2"
		args = append(args, q.WebsiteID)
	}
	return where, args
}

// LoadAllPages returns every page for full reindexing.
func (p *PgFTS) LoadAllPages(ctx context.Context) ([]PageRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, website_id, name, path_name, search_text
		FROM website_pages
	`)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	pages := make([]PageRecord, 0)
	for rows.Next() {
		var r PageRecord
		if err := rows.Scan(&r.ID, &r.WebsiteID, &r.Name, &r.PathName, &r.Text); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}
