package search

import "context"

// Result is a single page hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	WebsiteID string `json:"websiteId"`
	Name      string `json:"name"`
	PathName  string `json:"pathName"`
	Snippet   string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text      string
	WebsiteID string // empty = every website
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Fallback is the always-available backend; it can also enumerate every page
// for a full reindex.
type Fallback interface {
	Searcher
	LoadAllPages(ctx context.Context) ([]PageRecord, error)
}

// PageRecord is the data we index for a page. Text holds the visible text of
// its element tree.
type PageRecord struct {
	ID        string `json:"id"`
	WebsiteID string `json:"websiteId"`
	Name      string `json:"name"`
	PathName  string `json:"pathName"`
	Text      string `json:"text"`
}

const defaultLimit = 20

func normalizeQuery(q Query) Query {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
