package store

import "time"

type Website struct {
	ID        string
	ProjectID string
	Name      string
	Subdomain string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Page is one editable page of a website. Content holds the serialized element
// tree; list queries leave it empty.
type Page struct {
	ID            string
	WebsiteID     string
	Name          string
	PathName      string
	SortOrder     int
	Content       string
	Visits        int
	PublishedHash string
	PublishedAt   *time.Time
	UpdatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
	Added     int
	Removed   int
}
