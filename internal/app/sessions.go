package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/freddynasr/trailtailor/internal/dragdrop"
	"github.com/freddynasr/trailtailor/internal/draft"
	"github.com/freddynasr/trailtailor/internal/editor"
	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/fragment"
	"github.com/freddynasr/trailtailor/internal/gitrepo"
	"github.com/freddynasr/trailtailor/internal/rbac"
	"github.com/freddynasr/trailtailor/internal/search"
	"github.com/freddynasr/trailtailor/internal/store"
	"github.com/freddynasr/trailtailor/internal/tree"
)

// editSession pairs one editor with the page it edits. The editor is only
// touched while mu is held.
type editSession struct {
	mu        sync.Mutex
	id        string
	pageID    string
	websiteID string
	name      string
	pathName  string
	owner     string
	editor    *editor.Editor
	savedRoot *element.Element
	revision  int
	recovered bool
	lastSeen  time.Time
}

// SessionView is the state of an editing session as returned to clients.
type SessionView struct {
	ID            string             `json:"id"`
	PageID        string             `json:"pageId"`
	Elements      []*element.Element `json:"elements"`
	SelectedID    string             `json:"selectedId,omitempty"`
	Device        editor.Device      `json:"device"`
	PreviewMode   bool               `json:"previewMode"`
	LiveMode      bool               `json:"liveMode"`
	Cursor        int                `json:"cursor"`
	HistoryLength int                `json:"historyLength"`
	CanUndo       bool               `json:"canUndo"`
	CanRedo       bool               `json:"canRedo"`
	Dirty         bool               `json:"dirty"`
	Revision      int                `json:"revision"`
	Recovered     bool               `json:"recovered,omitempty"`
}

type DispatchResult struct {
	Changed bool        `json:"changed"`
	State   SessionView `json:"state"`
}

type SaveResult struct {
	Commit map[string]any `json:"commit,omitempty"`
	State  SessionView    `json:"state"`
}

// viewerActions are the actions that change only what the caller sees.
var viewerActions = map[string]bool{
	editor.TypeSelect:  true,
	editor.TypeDevice:  true,
	editor.TypePreview: true,
}

// OpenSession loads a page into a new editor. A live session starts from the
// published revision; otherwise an unsaved draft, when one exists, wins over
// the stored tree. Stored content that cannot be decoded or validated fails
// the open instead of starting from an empty body.
func (s *Service) OpenSession(ctx context.Context, user User, pageID string, live bool) (SessionView, error) {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return SessionView{}, err
	}
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return SessionView{}, err
	}

	content := []byte(page.Content)
	if err := s.git.EnsurePageRepo(page.ID, gitrepo.Content{Name: page.Name, PathName: page.PathName, Elements: content}, user.Name); err != nil {
		return SessionView{}, fmt.Errorf("ensure page repo: %w", err)
	}

	if live {
		published, _, err := s.git.GetHeadContent(page.ID, gitrepo.BranchMain)
		if err != nil {
			return SessionView{}, fmt.Errorf("load published revision: %w", err)
		}
		content = published.Elements
	}
	root, err := decodePageTree(content)
	if err != nil {
		return SessionView{}, domainError(http.StatusUnprocessableEntity, "INVALID_PAGE_TREE", "Stored page tree cannot be edited", map[string]any{"pageId": page.ID, "reason": err.Error()})
	}

	recovered := false
	if !live && s.drafts != nil {
		stashed, ok, err := s.drafts.LoadDraft(ctx, page.ID)
		if err != nil {
			log.Printf("app: load draft %s: %v", page.ID, err)
		} else if ok && stashed.SavedAt.After(page.UpdatedAt) {
			if draftRoot, err := decodePageTree(stashed.Content); err != nil {
				log.Printf("app: ignoring unreadable draft of page %s: %v", page.ID, err)
			} else {
				root = draftRoot
				recovered = true
			}
		}
	}

	sess := &editSession{
		id:        s.newSessionID(),
		pageID:    page.ID,
		websiteID: page.WebsiteID,
		name:      page.Name,
		pathName:  page.PathName,
		owner:     user.Name,
		recovered: recovered,
		lastSeen:  s.now(),
	}
	sess.editor = editor.New(
		editor.WithIDGenerator(s.newID),
		editor.WithHistoryLimit(s.cfg.HistoryLimit),
		editor.WithTrace(func(actionType string, changed bool) {
			s.logf("app: session %s dispatch %s changed=%t", sess.id, actionType, changed)
		}),
	)
	sess.editor.Dispatch(editor.LoadTree{Root: root, Live: live, PageID: page.ID})
	if !recovered {
		sess.savedRoot = sess.editor.Root()
	}

	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	return sess.view(), nil
}

func (s *Service) GetSession(user User, sessionID string) (SessionView, error) {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return SessionView{}, err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()
	return sess.view(), nil
}

// Dispatch decodes one wire action and applies it. Viewers may only change
// selection, device and preview.
func (s *Service) Dispatch(ctx context.Context, user User, sessionID string, raw json.RawMessage) (DispatchResult, error) {
	action, err := editor.DecodeAction(raw, s.newID)
	if err != nil {
		var unknown *editor.UnknownActionError
		if errors.As(err, &unknown) {
			return DispatchResult{}, domainError(http.StatusUnprocessableEntity, "UNKNOWN_ACTION", err.Error(), map[string]any{"type": unknown.Type})
		}
		var kindErr *element.UnknownKindError
		if errors.As(err, &kindErr) {
			return DispatchResult{}, err
		}
		return DispatchResult{}, domainError(http.StatusBadRequest, "INVALID_ACTION", err.Error(), nil)
	}
	if !viewerActions[action.Type()] {
		if err := s.authorize(user, rbac.ActionEdit); err != nil {
			return DispatchResult{}, err
		}
	} else if err := s.authorize(user, rbac.ActionRead); err != nil {
		return DispatchResult{}, err
	}

	sess, err := s.session(sessionID)
	if err != nil {
		return DispatchResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	changed := s.apply(ctx, sess, action)
	return DispatchResult{Changed: changed, State: sess.view()}, nil
}

// Drop applies a drag-and-drop gesture. Gestures that resolve to nothing are
// reported as unchanged rather than failing.
func (s *Service) Drop(ctx context.Context, user User, sessionID string, drop dragdrop.Drop) (DispatchResult, error) {
	if err := s.authorize(user, rbac.ActionEdit); err != nil {
		return DispatchResult{}, err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return DispatchResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	action, err := dragdrop.Translate(sess.editor.Root(), drop, s.newID)
	if errors.Is(err, dragdrop.ErrIgnored) {
		return DispatchResult{State: sess.view()}, nil
	}
	if err != nil {
		return DispatchResult{}, err
	}
	changed := s.apply(ctx, sess, action)
	return DispatchResult{Changed: changed, State: sess.view()}, nil
}

// InsertFragment parses generated or pasted element JSON and appends every
// element under parentID, which defaults to the body.
func (s *Service) InsertFragment(ctx context.Context, user User, sessionID, parentID, raw string) (DispatchResult, error) {
	if err := s.authorize(user, rbac.ActionEdit); err != nil {
		return DispatchResult{}, err
	}
	elements, err := fragment.Parse([]byte(raw))
	if err != nil {
		var kindErr *element.UnknownKindError
		switch {
		case errors.Is(err, fragment.ErrEmpty):
			return DispatchResult{}, errValidation("fragment holds no elements")
		case errors.As(err, &kindErr):
			return DispatchResult{}, err
		default:
			return DispatchResult{}, domainError(http.StatusBadRequest, "INVALID_FRAGMENT", err.Error(), nil)
		}
	}
	if strings.TrimSpace(parentID) == "" {
		parentID = element.BodyID
	}

	sess, err := s.session(sessionID)
	if err != nil {
		return DispatchResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	changed := false
	for _, action := range fragment.Actions(parentID, elements) {
		if s.apply(ctx, sess, action) {
			changed = true
		}
	}
	return DispatchResult{Changed: changed, State: sess.view()}, nil
}

func (s *Service) Undo(ctx context.Context, user User, sessionID string) (DispatchResult, error) {
	return s.step(ctx, user, sessionID, editor.Undo{})
}

func (s *Service) Redo(ctx context.Context, user User, sessionID string) (DispatchResult, error) {
	return s.step(ctx, user, sessionID, editor.Redo{})
}

func (s *Service) step(ctx context.Context, user User, sessionID string, action editor.Action) (DispatchResult, error) {
	if err := s.authorize(user, rbac.ActionEdit); err != nil {
		return DispatchResult{}, err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return DispatchResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	changed := s.apply(ctx, sess, action)
	return DispatchResult{Changed: changed, State: sess.view()}, nil
}

// apply dispatches under the session lock. A new tree bumps the revision and
// is stashed as a draft.
func (s *Service) apply(ctx context.Context, sess *editSession, action editor.Action) bool {
	before := sess.editor.Root()
	changed := sess.editor.Dispatch(action)
	sess.lastSeen = s.now()
	if !changed || sess.editor.Root() == before {
		return changed
	}
	sess.revision++
	s.stashDraft(ctx, sess)
	return changed
}

func (s *Service) stashDraft(ctx context.Context, sess *editSession) {
	if s.drafts == nil {
		return
	}
	encoded, err := element.EncodeTree(sess.editor.Root())
	if err != nil {
		log.Printf("app: encode draft %s: %v", sess.pageID, err)
		return
	}
	err = s.drafts.SaveDraft(ctx, sess.pageID, draft.Draft{
		SessionID: sess.id,
		Author:    sess.owner,
		Content:   encoded,
		Revision:  sess.revision,
		SavedAt:   s.now().UTC(),
	}, s.cfg.DraftTTL)
	if err != nil {
		log.Printf("app: stash draft %s: %v", sess.pageID, err)
	}
}

// Save writes the current tree to the page row, records a revision on the
// draft branch when the tree differs from the last one, and clears the stashed
// draft.
func (s *Service) Save(ctx context.Context, user User, sessionID string) (SaveResult, error) {
	if err := s.authorize(user, rbac.ActionSave); err != nil {
		return SaveResult{}, err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return SaveResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	commit, _, err := s.saveLocked(ctx, user, sess)
	if err != nil {
		return SaveResult{}, err
	}
	result := SaveResult{State: sess.view()}
	if commit != nil {
		result.Commit = commitPayload(*commit)
	}
	return result, nil
}

func (s *Service) saveLocked(ctx context.Context, user User, sess *editSession) (*store.CommitInfo, []byte, error) {
	root := sess.editor.Root()
	if err := tree.Validate(root); err != nil {
		return nil, nil, errValidation(err.Error())
	}
	encoded, err := element.EncodeTree(root)
	if err != nil {
		return nil, nil, fmt.Errorf("encode page tree: %w", err)
	}
	text := tree.Text(root)
	if err := s.store.SavePage(ctx, sess.pageID, encoded, text, user.Name); err != nil {
		return nil, nil, err
	}

	next := gitrepo.Content{Name: sess.name, PathName: sess.pathName, Elements: encoded}
	var commit *store.CommitInfo
	head, _, headErr := s.git.GetHeadContent(sess.pageID, gitrepo.BranchDraft)
	if headErr != nil || gitrepo.HasChanges(head, next) {
		info, err := s.git.CommitContent(sess.pageID, gitrepo.BranchDraft, next, user.Name, "Save "+sess.name)
		if err != nil {
			return nil, nil, fmt.Errorf("commit page revision: %w", err)
		}
		commit = &info
	}

	if s.search != nil {
		s.search.IndexPage(search.PageRecord{
			ID:        sess.pageID,
			WebsiteID: sess.websiteID,
			Name:      sess.name,
			PathName:  sess.pathName,
			Text:      text,
		})
	}
	if s.drafts != nil {
		if err := s.drafts.DeleteDraft(ctx, sess.pageID); err != nil {
			log.Printf("app: clear draft %s: %v", sess.pageID, err)
		}
	}
	sess.savedRoot = root
	sess.recovered = false
	return commit, encoded, nil
}

// Publish saves the session, promotes the saved revision to main and
// archives the published tree.
func (s *Service) Publish(ctx context.Context, user User, sessionID, label string) (map[string]any, error) {
	if err := s.authorize(user, rbac.ActionPublish); err != nil {
		return nil, err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	_, encoded, err := s.saveLocked(ctx, user, sess)
	if err != nil {
		return nil, err
	}
	published, err := s.git.Publish(sess.pageID, user.Name, label)
	if err != nil {
		return nil, fmt.Errorf("publish page: %w", err)
	}
	if err := s.store.MarkPublished(ctx, sess.pageID, published.Hash); err != nil {
		return nil, err
	}

	archived := false
	if s.archive != nil {
		if err := s.archive.PutPublished(ctx, sess.websiteID, sess.pageID, published.Hash, encoded); err != nil {
			log.Printf("app: archive published page %s: %v", sess.pageID, err)
		} else {
			archived = true
		}
	}
	return map[string]any{
		"commit":   commitPayload(published),
		"archived": archived,
		"state":    sess.view(),
	}, nil
}

func (s *Service) CloseSession(user User, sessionID string) error {
	if err := s.authorize(user, rbac.ActionRead); err != nil {
		return err
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return errSessionNotFound(sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

// ReapIdle closes sessions not used within the configured idle window and
// returns how many it closed. Their stashed drafts survive.
func (s *Service) ReapIdle() int {
	if s.cfg.SessionIdle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.SessionIdle)

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	closed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			closed++
		}
	}
	return closed
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (s *Service) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ReapIdle(); n > 0 {
				log.Printf("app: closed %d idle editing sessions", n)
			}
		}
	}
}

func (s *Service) session(sessionID string) (*editSession, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errSessionNotFound(sessionID)
	}
	return sess, nil
}

func (sess *editSession) view() SessionView {
	state := sess.editor.State()
	view := SessionView{
		ID:            sess.id,
		PageID:        sess.pageID,
		Elements:      []*element.Element{state.Root},
		Device:        state.Device,
		PreviewMode:   state.PreviewMode,
		LiveMode:      state.LiveMode,
		Cursor:        sess.editor.Cursor(),
		HistoryLength: sess.editor.HistoryLen(),
		CanUndo:       sess.editor.CanUndo(),
		CanRedo:       sess.editor.CanRedo(),
		Dirty:         state.Root != sess.savedRoot,
		Revision:      sess.revision,
		Recovered:     sess.recovered,
	}
	if state.Selected != nil {
		view.SelectedID = state.Selected.ID
	}
	return view
}

// decodePageTree parses a stored tree. Absent content yields a nil root, which
// the editor loads as an empty body.
func decodePageTree(content []byte) (*element.Element, error) {
	root, err := element.DecodeTree(content)
	if err != nil {
		return nil, err
	}
	if root != nil {
		if err := tree.Validate(root); err != nil {
			return nil, err
		}
	}
	return root, nil
}
