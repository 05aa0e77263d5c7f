package gitrepo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/store"
	"github.com/freddynasr/trailtailor/internal/tree"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	BranchDraft = "draft"
	BranchMain  = "main"

	contentFile = "content.json"
)

// Content is the revisioned form of a page: its identity plus the serialized
// element tree.
type Content struct {
	Name     string          `json:"name"`
	PathName string          `json:"pathName"`
	Elements json.RawMessage `json:"elements,omitempty"`
}

// Summary describes how two page revisions differ.
type Summary struct {
	Added       int  `json:"added"`
	Removed     int  `json:"removed"`
	Renamed     bool `json:"renamed"`
	PathChanged bool `json:"pathChanged"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsurePageRepo initializes the repository of a page with a baseline commit
// on main and a draft branch pointing at it. Existing repositories are left
// alone.
func (s *Service) EnsurePageRepo(pageID string, initial Content, author string) error {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(pageID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := writeContent(path, initial); err != nil {
		return err
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return fmt.Errorf("git add initial content: %w", err)
	}
	hash, err := worktree.Commit("Create page", &git.CommitOptions{Author: signature(author)})
	if err != nil {
		return fmt.Errorf("commit initial content: %w", err)
	}

	for _, branch := range []string{BranchMain, BranchDraft} {
		if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hash)); err != nil {
			return fmt.Errorf("set %s branch ref: %w", branch, err)
		}
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(BranchDraft))); err != nil {
		return fmt.Errorf("set HEAD to draft: %w", err)
	}
	return nil
}

// CommitContent records content on branchName. The returned commit carries
// the number of elements added and removed relative to the previous head.
func (s *Service) CommitContent(pageID, branchName string, content Content, author, message string) (store.CommitInfo, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	var previous Content
	if ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true); err == nil {
		if parent, err := repo.CommitObject(ref.Hash()); err == nil {
			previous, _ = readContentFromCommit(parent)
		}
	}

	hash, err := s.commit(repo, branchName, content, author, message, false)
	if err != nil {
		return store.CommitInfo{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}

	info := toCommitInfo(commitObj)
	summary := DiffSummary(previous, content)
	info.Added = summary.Added
	info.Removed = summary.Removed
	return info, nil
}

func (s *Service) GetHeadContent(pageID, branchName string) (Content, store.CommitInfo, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return Content{}, store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if err != nil {
		return Content{}, store.CommitInfo{}, fmt.Errorf("resolve branch %s: %w", branchName, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Content{}, store.CommitInfo{}, fmt.Errorf("load commit object: %w", err)
	}
	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return Content{}, store.CommitInfo{}, err
	}
	return content, toCommitInfo(commitObj), nil
}

func (s *Service) GetContentByHash(pageID, hash string) (Content, store.CommitInfo, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return Content{}, store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Content{}, store.CommitInfo{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Content{}, store.CommitInfo{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return Content{}, store.CommitInfo{}, err
	}
	return content, toCommitInfo(commitObj), nil
}

// History lists commits on branchName, newest first. A limit of zero lists
// everything.
func (s *Service) History(pageID, branchName string, limit int) ([]store.CommitInfo, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branchName, err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Publish copies the draft head onto main and tags the new main commit. An
// empty label tags it as publish-<hash>.
func (s *Service) Publish(pageID, author, label string) (store.CommitInfo, error) {
	lock := s.pageLock(pageID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(pageID))
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(BranchDraft), true)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("resolve draft branch: %w", err)
	}
	draftCommit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("load draft commit object: %w", err)
	}
	content, err := readContentFromCommit(draftCommit)
	if err != nil {
		return store.CommitInfo{}, err
	}

	message := fmt.Sprintf("Publish %s\n\npublish: source=%s actor=%s", content.Name, draftCommit.Hash.String()[:7], author)
	hash, err := s.commit(repo, BranchMain, content, author, message, true)
	if err != nil {
		return store.CommitInfo{}, err
	}

	tag := tagName(label)
	if tag == "" {
		tag = "publish-" + hash.String()[:7]
	}
	_, err = repo.CreateTag(tag, hash, &git.CreateTagOptions{
		Tagger:  signature(author),
		Message: tag,
	})
	if err != nil && !errors.Is(err, git.ErrTagExists) {
		return store.CommitInfo{}, fmt.Errorf("create tag: %w", err)
	}

	published, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read publish commit object: %w", err)
	}
	// Leave the worktree on draft so later saves land there.
	if err := checkoutBranch(repo, BranchDraft); err != nil {
		return store.CommitInfo{}, err
	}
	return toCommitInfo(published), nil
}

func (s *Service) repoPath(pageID string) string {
	return filepath.Join(s.baseDir, pageID)
}

func (s *Service) pageLock(pageID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[pageID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[pageID] = lock
	return lock
}

func (s *Service) commit(repo *git.Repository, branchName string, content Content, author, message string, allowEmpty bool) (plumbing.Hash, error) {
	if err := checkoutBranch(repo, branchName); err != nil {
		return plumbing.ZeroHash, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}
	if err := writeContent(worktree.Filesystem.Root(), content); err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add content: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: allowEmpty,
		Author:            signature(author),
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit content: %w", err)
	}
	return hash, nil
}

func writeContent(repoRoot string, content Content) error {
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, contentFile), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", contentFile, err)
	}
	return nil
}

func checkoutBranch(repo *git.Repository, branchName string) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(branchName)
	if _, err := repo.Reference(branchRef, true); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
				return fmt.Errorf("create branch checkout %s: %w", branchName, err)
			}
			return nil
		}
		return fmt.Errorf("resolve branch %s: %w", branchName, err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
		return fmt.Errorf("checkout branch %s: %w", branchName, err)
	}
	return nil
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return Content{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read content bytes: %w", err)
	}
	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

// DiffSummary counts the element ids present in only one of the two trees.
// Trees that fail to decode count as empty.
func DiffSummary(from, to Content) Summary {
	before := elementIDs(from.Elements)
	after := elementIDs(to.Elements)

	summary := Summary{
		Renamed:     from.Name != to.Name,
		PathChanged: from.PathName != to.PathName,
	}
	for id := range after {
		if !before[id] {
			summary.Added++
		}
	}
	for id := range before {
		if !after[id] {
			summary.Removed++
		}
	}
	return summary
}

func HasChanges(from, to Content) bool {
	if from.Name != to.Name || from.PathName != to.PathName {
		return true
	}
	return !bytes.Equal(normalizeElements(from.Elements), normalizeElements(to.Elements))
}

func elementIDs(raw json.RawMessage) map[string]bool {
	ids := map[string]bool{}
	root, err := element.DecodeTree(raw)
	if err != nil || root == nil {
		return ids
	}
	for _, id := range tree.IDs(root) {
		if id != element.BodyID {
			ids[id] = true
		}
	}
	return ids
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func signature(author string) *object.Signature {
	if strings.TrimSpace(author) == "" {
		author = "trailtailor"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.trailtailor.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

// tagName keeps the characters git accepts in a ref name segment.
func tagName(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range strings.TrimSpace(label) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), r == '-', r == '_', r == '.':
			out = append(out, r)
		case r == ' ' || r == '/':
			out = append(out, '-')
		}
	}
	return strings.Trim(string(out), ".-")
}

func normalizeElements(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil
	}
	return normalized
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
