package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/freddynasr/trailtailor/internal/element"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GetWebsite(ctx context.Context, websiteID string) (Website, error) {
	var item Website
	var subdomain sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, subdomain, published, created_at, updated_at
		FROM websites
		WHERE id=$1
	`, websiteID).Scan(&item.ID, &item.ProjectID, &item.Name, &subdomain, &item.Published, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Website{}, err
	}
	item.Subdomain = subdomain.String
	return item, nil
}

func (s *PostgresStore) UpsertWebsite(ctx context.Context, item Website) error {
	var subdomain any
	if item.Subdomain != "" {
		subdomain = item.Subdomain
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO websites (id, project_id, name, subdomain, published)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name=EXCLUDED.name, subdomain=EXCLUDED.subdomain, published=EXCLUDED.published, updated_at=NOW()
	`, item.ID, item.ProjectID, item.Name, subdomain, item.Published)
	if err != nil {
		return fmt.Errorf("upsert website: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPages(ctx context.Context, websiteID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, website_id, name, path_name, sort_order, visits, published_hash, published_at, updated_by_name, created_at, updated_at
		FROM website_pages
		WHERE website_id=$1
		ORDER BY sort_order ASC, created_at ASC
	`, websiteID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	items := make([]Page, 0)
	for rows.Next() {
		var item Page
		var publishedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.WebsiteID, &item.Name, &item.PathName, &item.SortOrder, &item.Visits, &item.PublishedHash, &publishedAt, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			item.PublishedAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPage(ctx context.Context, pageID string) (Page, error) {
	var item Page
	var publishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, website_id, name, path_name, sort_order, content, visits, published_hash, published_at, updated_by_name, created_at, updated_at
		FROM website_pages
		WHERE id=$1
	`, pageID).Scan(&item.ID, &item.WebsiteID, &item.Name, &item.PathName, &item.SortOrder, &item.Content, &item.Visits, &item.PublishedHash, &publishedAt, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Page{}, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		item.PublishedAt = &t
	}
	return item, nil
}

// UpsertPage creates or renames a page. New pages start with an empty body
// tree; updating an existing page never touches its content.
func (s *PostgresStore) UpsertPage(ctx context.Context, item Page) (Page, error) {
	content := item.Content
	if strings.TrimSpace(content) == "" {
		encoded, err := element.EncodeTree(element.NewBody())
		if err != nil {
			return Page{}, err
		}
		content = string(encoded)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO website_pages (id, website_id, name, path_name, sort_order, content, updated_by_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name=EXCLUDED.name, path_name=EXCLUDED.path_name, sort_order=EXCLUDED.sort_order,
			updated_by_name=EXCLUDED.updated_by_name, updated_at=NOW()
	`, item.ID, item.WebsiteID, item.Name, item.PathName, item.SortOrder, content, item.UpdatedBy)
	if err != nil {
		return Page{}, fmt.Errorf("upsert page: %w", err)
	}
	return s.GetPage(ctx, item.ID)
}

// SavePage overwrites the stored tree. Concurrent saves are last write wins.
func (s *PostgresStore) SavePage(ctx context.Context, pageID string, content []byte, searchText, updatedBy string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE website_pages
		SET content=$2, search_text=$3, updated_by_name=$4, updated_at=NOW()
		WHERE id=$1
	`, pageID, string(content), searchText, updatedBy)
	if err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, pageID, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE website_pages
		SET published_hash=$2, published_at=NOW()
		WHERE id=$1
	`, pageID, hash)
	if err != nil {
		return fmt.Errorf("mark page published: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE websites SET published=TRUE, updated_at=NOW()
		WHERE id=(SELECT website_id FROM website_pages WHERE id=$1)
	`, pageID)
	if err != nil {
		return fmt.Errorf("mark website published: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordVisit(ctx context.Context, pageID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE website_pages SET visits=visits+1 WHERE id=$1`, pageID); err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePage(ctx context.Context, pageID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM website_pages WHERE id=$1`, pageID); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}
