package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres full-text search.
type Service struct {
	meili    *Meili
	fallback Fallback
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, fallback Fallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexPage indexes a page (fire-and-forget to Meilisearch). The Postgres
// index follows the saved row on its own.
func (s *Service) IndexPage(page PageRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPage(page); err != nil {
			log.Printf("search: index page %s: %v", page.ID, err)
		}
	}()
}

// DeletePage removes a page from the search index (fire-and-forget).
func (s *Service) DeletePage(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePage(id); err != nil {
			log.Printf("search: delete page %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG pushes every stored page into Meilisearch. Called at
// startup when Meilisearch is reachable.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.fallback == nil {
		return
	}
	pages, err := s.fallback.LoadAllPages(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexPages(pages); err != nil {
		log.Printf("search: reindex pages: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
