package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/freddynasr/trailtailor/internal/blob"
	"github.com/freddynasr/trailtailor/internal/config"
	"github.com/freddynasr/trailtailor/internal/draft"
	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/gitrepo"
	"github.com/freddynasr/trailtailor/internal/rbac"
	"github.com/freddynasr/trailtailor/internal/search"
	"github.com/freddynasr/trailtailor/internal/store"

	"github.com/google/uuid"
)

// User is the caller as asserted by the fronting gateway.
type User struct {
	Name string
	Role rbac.Role
}

type dataStore interface {
	Ping(context.Context) error
	GetPage(context.Context, string) (store.Page, error)
	GetWebsite(context.Context, string) (store.Website, error)
	ListPages(context.Context, string) ([]store.Page, error)
	UpsertPage(context.Context, store.Page) (store.Page, error)
	SavePage(context.Context, string, []byte, string, string) error
	MarkPublished(context.Context, string, string) error
	RecordVisit(context.Context, string) error
	DeletePage(context.Context, string) error
}

type gitService interface {
	EnsurePageRepo(string, gitrepo.Content, string) error
	CommitContent(string, string, gitrepo.Content, string, string) (store.CommitInfo, error)
	GetHeadContent(string, string) (gitrepo.Content, store.CommitInfo, error)
	GetContentByHash(string, string) (gitrepo.Content, store.CommitInfo, error)
	History(string, string, int) ([]store.CommitInfo, error)
	Publish(string, string, string) (store.CommitInfo, error)
}

type draftStore interface {
	SaveDraft(context.Context, string, draft.Draft, time.Duration) error
	LoadDraft(context.Context, string) (draft.Draft, bool, error)
	DeleteDraft(context.Context, string) error
	Ping(context.Context) error
}

type pageSearch interface {
	Search(context.Context, search.Query) search.Response
	IndexPage(search.PageRecord)
	DeletePage(string)
}

type snapshotArchive interface {
	PutPublished(context.Context, string, string, string, []byte) error
	GetPublished(context.Context, string, string) ([]byte, error)
}

type Option func(*Service)

func WithDrafts(drafts *draft.RedisStore) Option {
	return func(s *Service) {
		if drafts != nil {
			s.drafts = drafts
		}
	}
}

func WithSearch(searchService *search.Service) Option {
	return func(s *Service) {
		if searchService != nil {
			s.search = searchService
		}
	}
}

func WithArchive(archive *blob.Archive) Option {
	return func(s *Service) {
		if archive != nil {
			s.archive = archive
		}
	}
}

// Service owns the open editing sessions and the persistence collaborators
// behind them. Drafts, search and the archive are optional.
type Service struct {
	cfg     config.Config
	store   dataStore
	git     gitService
	drafts  draftStore
	search  pageSearch
	archive snapshotArchive

	newID func() string
	now   func() time.Time

	sessionsMu sync.Mutex
	sessions   map[string]*editSession
}

func New(cfg config.Config, dataStore *store.PostgresStore, gitService *gitrepo.Service, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		git:      gitService,
		newID:    element.NewID,
		now:      time.Now,
		sessions: make(map[string]*editSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

func (s *Service) authorize(user User, action rbac.Action) error {
	if !s.Can(user.Role, action) {
		return errForbidden(action)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Readiness reports the state of every configured backend. The bool is false
// when any required backend fails.
func (s *Service) Readiness(ctx context.Context) (map[string]any, bool) {
	ready := true
	checks := map[string]any{}

	if err := s.store.Ping(ctx); err != nil {
		ready = false
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		checks["database"] = map[string]any{"status": "ok"}
	}

	if s.drafts == nil {
		checks["drafts"] = map[string]any{"status": "disabled"}
	} else if err := s.drafts.Ping(ctx); err != nil {
		ready = false
		checks["drafts"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		checks["drafts"] = map[string]any{"status": "ok"}
	}
	return checks, ready
}

func (s *Service) ListPages(ctx context.Context, user User, websiteID string) ([]map[string]any, error) {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return nil, err
	}
	pages, err := s.store.ListPages(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(pages))
	for _, page := range pages {
		payload = append(payload, pagePayload(page))
	}
	return payload, nil
}

type CreatePageInput struct {
	Name     string `json:"name"`
	PathName string `json:"pathName"`
	Order    int    `json:"order"`
}

// CreatePage adds a page holding an empty body to an existing website.
func (s *Service) CreatePage(ctx context.Context, user User, websiteID string, input CreatePageInput) (map[string]any, error) {
	if err := s.authorize(user, rbac.ActionEdit); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errValidation("name is required")
	}
	if input.Order < 0 {
		return nil, errValidation("order must not be negative")
	}
	if _, err := s.store.GetWebsite(ctx, websiteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "WEBSITE_NOT_FOUND", "Website not found", map[string]any{"websiteId": websiteID})
		}
		return nil, err
	}

	page, err := s.store.UpsertPage(ctx, store.Page{
		ID:        uuid.NewString(),
		WebsiteID: websiteID,
		Name:      name,
		PathName:  strings.Trim(strings.TrimSpace(input.PathName), "/"),
		SortOrder: input.Order,
		UpdatedBy: user.Name,
	})
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexPage(search.PageRecord{ID: page.ID, WebsiteID: page.WebsiteID, Name: page.Name, PathName: page.PathName})
	}
	return pagePayload(page), nil
}

func pagePayload(page store.Page) map[string]any {
	item := map[string]any{
		"id":            page.ID,
		"websiteId":     page.WebsiteID,
		"name":          page.Name,
		"pathName":      page.PathName,
		"order":         page.SortOrder,
		"visits":        page.Visits,
		"publishedHash": page.PublishedHash,
		"updatedBy":     page.UpdatedBy,
		"updatedAt":     page.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if page.PublishedAt != nil {
		item["publishedAt"] = page.PublishedAt.UTC().Format(time.RFC3339)
	}
	return item
}

// PageHistory lists saved revisions on draft and published revisions on main.
func (s *Service) PageHistory(ctx context.Context, user User, pageID string, limit int) (map[string]any, error) {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	drafts, err := s.git.History(pageID, gitrepo.BranchDraft, limit)
	if err != nil {
		return nil, err
	}
	published, err := s.git.History(pageID, gitrepo.BranchMain, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"pageId":    pageID,
		"saved":     commitsPayload(drafts),
		"published": commitsPayload(published),
	}, nil
}

func (s *Service) PageVersion(ctx context.Context, user User, pageID, hash string) (map[string]any, error) {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return nil, err
	}
	if strings.TrimSpace(hash) == "" {
		return nil, errValidation("hash is required")
	}
	content, info, err := s.git.GetContentByHash(pageID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", map[string]any{"hash": hash})
	}
	return map[string]any{
		"pageId":   pageID,
		"commit":   commitPayload(info),
		"name":     content.Name,
		"pathName": content.PathName,
		"elements": json.RawMessage(nonEmptyTree(content.Elements)),
	}, nil
}

// PublishedPage returns the tree visitors see. The archive is read first when
// one is configured, then the main branch.
func (s *Service) PublishedPage(ctx context.Context, user User, pageID string) (map[string]any, error) {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return nil, err
	}
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page.PublishedHash == "" {
		return nil, domainError(http.StatusNotFound, "NOT_PUBLISHED", "Page has not been published", map[string]any{"pageId": pageID})
	}

	source := "archive"
	var elements []byte
	if s.archive != nil {
		content, err := s.archive.GetPublished(ctx, page.WebsiteID, page.ID)
		if err == nil {
			elements = content
		} else if !errors.Is(err, blob.ErrNotFound) {
			log.Printf("app: read archived page %s: %v", page.ID, err)
		}
	}
	if elements == nil {
		source = "git"
		head, _, err := s.git.GetHeadContent(page.ID, gitrepo.BranchMain)
		if err != nil {
			return nil, fmt.Errorf("load published revision: %w", err)
		}
		elements = head.Elements
	}
	return map[string]any{
		"pageId":   page.ID,
		"hash":     page.PublishedHash,
		"source":   source,
		"elements": json.RawMessage(nonEmptyTree(elements)),
	}, nil
}

func (s *Service) RecordVisit(ctx context.Context, user User, pageID string) error {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return err
	}
	return s.store.RecordVisit(ctx, pageID)
}

// DeletePage removes a page with its index entry and stashed draft, and closes
// every session editing it. The revision repository is left on disk.
func (s *Service) DeletePage(ctx context.Context, user User, pageID string) error {
	if err := s.authorize(user, rbac.ActionPublish); err != nil {
		return err
	}
	if _, err := s.store.GetPage(ctx, pageID); err != nil {
		return err
	}
	if err := s.store.DeletePage(ctx, pageID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePage(pageID)
	}
	if s.drafts != nil {
		if err := s.drafts.DeleteDraft(ctx, pageID); err != nil {
			log.Printf("app: clear draft %s: %v", pageID, err)
		}
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for id, sess := range s.sessions {
		if sess.pageID == pageID {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *Service) Search(ctx context.Context, user User, q search.Query) (search.Response, error) {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return search.Response{}, err
	}
	if s.search == nil {
		return search.Response{}, errUnavailable("search")
	}
	return s.search.Search(ctx, q), nil
}

func commitsPayload(items []store.CommitInfo) []map[string]any {
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, commitPayload(item))
	}
	return payload
}

func commitPayload(item store.CommitInfo) map[string]any {
	return map[string]any{
		"hash":      item.Hash,
		"message":   strings.TrimSpace(item.Message),
		"author":    item.Author,
		"createdAt": item.CreatedAt.UTC().Format(time.RFC3339),
		"added":     item.Added,
		"removed":   item.Removed,
	}
}

func nonEmptyTree(raw []byte) []byte {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []byte("[]")
	}
	return raw
}

func (s *Service) newSessionID() string {
	return uuid.NewString()
}

func (s *Service) logf(format string, args ...any) {
	if s.cfg.Debug {
		log.Printf(format, args...)
	}
}
