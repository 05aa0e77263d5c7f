// Package editor is the page editor state machine. An Editor owns one page
// tree, its selection, the UI mode flags and the undo history, and accepts
// changes only through Dispatch.
package editor

import (
	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/history"
	"github.com/freddynasr/trailtailor/internal/tree"
)

type Device string

const (
	Desktop Device = "Desktop"
	Tablet  Device = "Tablet"
	Mobile  Device = "Mobile"
)

func (d Device) Valid() bool {
	return d == Desktop || d == Tablet || d == Mobile
}

// Snapshot is the part of the editor state recorded in history. Device,
// preview and live mode are not recorded; undo and redo leave them alone.
type Snapshot struct {
	Root       *element.Element
	SelectedID string
	PageID     string
}

// State is a read-only view of the live editor state.
type State struct {
	Root        *element.Element
	Selected    *element.Element
	Device      Device
	PreviewMode bool
	LiveMode    bool
	PageID      string
}

type Option func(*Editor)

// WithIDGenerator sets the id source for copies and duplicates.
func WithIDGenerator(fn element.IDFunc) Option {
	return func(e *Editor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func WithHistoryLimit(n int) Option {
	return func(e *Editor) {
		e.historyLimit = n
	}
}

// WithTrace registers a callback invoked after every dispatch.
func WithTrace(fn func(actionType string, changed bool)) Option {
	return func(e *Editor) {
		e.trace = fn
	}
}

// Editor is not safe for concurrent use. Callers sharing one across
// goroutines must serialize Dispatch and every query.
type Editor struct {
	history      *history.Log[Snapshot]
	device       Device
	preview      bool
	live         bool
	newID        element.IDFunc
	historyLimit int
	trace        func(string, bool)
}

// New returns an editor holding an empty body and a one-snapshot history.
func New(opts ...Option) *Editor {
	e := &Editor{
		device: Desktop,
		newID:  element.NewID,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.history = history.New(Snapshot{Root: element.NewBody()}, history.WithLimit(e.historyLimit))
	return e
}

// Dispatch applies one action and reports whether the live state changed.
// It never fails: requests that cannot be applied leave the state as it was
// and record nothing in history.
func (e *Editor) Dispatch(a Action) (changed bool) {
	if a == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			changed = false
		}
		if e.trace != nil {
			e.trace(a.Type(), changed)
		}
	}()
	return e.apply(a)
}

func (e *Editor) apply(a Action) bool {
	cur := e.history.Current()

	switch a := a.(type) {
	case InsertElement:
		return e.insert(cur, a)

	case MoveElement:
		root, ok := tree.Move(cur.Root, a.ElementID, a.SourceParentID, a.SourceIndex, a.DestParentID, a.DestIndex)
		if !ok {
			return false
		}
		return e.commit(Snapshot{Root: root, SelectedID: cur.SelectedID, PageID: cur.PageID})

	case UpdateElement:
		root, ok := tree.Update(cur.Root, a.ElementID, a.Patch)
		if !ok {
			// A resolved no-op update still drops a selection held elsewhere.
			if cur.SelectedID == "" || cur.SelectedID == a.ElementID || tree.Find(cur.Root, a.ElementID) == nil {
				return false
			}
			return e.commit(Snapshot{Root: cur.Root, PageID: cur.PageID})
		}
		selected := ""
		if cur.SelectedID == a.ElementID {
			selected = a.ElementID
		}
		return e.commit(Snapshot{Root: root, SelectedID: selected, PageID: cur.PageID})

	case DeleteElement:
		root, ok := tree.Delete(cur.Root, a.ElementID)
		if !ok {
			return false
		}
		selected := cur.SelectedID
		if tree.Find(root, selected) == nil {
			selected = ""
		}
		return e.commit(Snapshot{Root: root, SelectedID: selected, PageID: cur.PageID})

	case DuplicateElement:
		src := tree.Find(cur.Root, a.ElementID)
		if src == nil || src.IsBody() {
			return false
		}
		parentID := a.NewParentID
		if parentID == "" {
			parent, _ := tree.FindParent(cur.Root, a.ElementID)
			if parent == nil {
				return false
			}
			parentID = parent.ID
		}
		root, ok := tree.Append(cur.Root, parentID, tree.DeepCopy(src, e.newID))
		if !ok {
			return false
		}
		return e.commit(Snapshot{Root: root, SelectedID: cur.SelectedID, PageID: cur.PageID})

	case SelectElement:
		next := a.ElementID
		switch {
		case next == "" && cur.SelectedID == "":
			return false
		case next == cur.SelectedID:
			next = ""
		case next != "" && tree.Find(cur.Root, next) == nil:
			return false
		}
		return e.commit(Snapshot{Root: cur.Root, SelectedID: next, PageID: cur.PageID})

	case ChangeDevice:
		if !a.Device.Valid() || a.Device == e.device {
			return false
		}
		e.device = a.Device
		return true

	case TogglePreview:
		e.preview = !e.preview
		return true

	case ToggleLive:
		next := !e.live
		if a.Value != nil {
			next = *a.Value
		}
		if next == e.live {
			return false
		}
		e.live = next
		return true

	case LoadTree:
		root := a.Root
		if root == nil {
			root = element.NewBody()
		} else if tree.Validate(root) != nil {
			return false
		}
		e.history.Reset(Snapshot{Root: root, PageID: a.PageID})
		e.device = Desktop
		e.preview = false
		e.live = a.Live
		return true

	case SetPage:
		if a.PageID == cur.PageID {
			return false
		}
		return e.commit(Snapshot{Root: cur.Root, SelectedID: cur.SelectedID, PageID: a.PageID})

	case Undo:
		_, ok := e.history.Undo()
		return ok

	case Redo:
		_, ok := e.history.Redo()
		return ok
	}
	return false
}

func (e *Editor) insert(cur Snapshot, a InsertElement) bool {
	el := a.Element
	if el == nil {
		return false
	}
	if a.Copy || collides(cur.Root, el) {
		el = tree.DeepCopy(el, e.newID)
	}

	var (
		root *element.Element
		ok   bool
	)
	if a.Index == nil {
		root, ok = tree.Append(cur.Root, a.ParentID, el)
	} else {
		root, ok = tree.Insert(cur.Root, a.ParentID, el, *a.Index)
	}
	if !ok || tree.Validate(root) != nil {
		return false
	}
	return e.commit(Snapshot{Root: root, SelectedID: cur.SelectedID, PageID: cur.PageID})
}

// collides reports whether el cannot be inserted with its own ids: an id is
// empty, repeated inside el, or already present in root.
func collides(root, el *element.Element) bool {
	existing := make(map[string]bool)
	for _, id := range tree.IDs(root) {
		existing[id] = true
	}
	seen := make(map[string]bool)
	clash := false
	tree.Walk(el, func(n *element.Element, _ int) bool {
		if n.ID == "" || seen[n.ID] || existing[n.ID] {
			clash = true
			return false
		}
		seen[n.ID] = true
		return true
	})
	return clash
}

func (e *Editor) commit(s Snapshot) bool {
	e.history.Push(s)
	return true
}

func (e *Editor) State() State {
	cur := e.history.Current()
	return State{
		Root:        cur.Root,
		Selected:    tree.Find(cur.Root, cur.SelectedID),
		Device:      e.device,
		PreviewMode: e.preview,
		LiveMode:    e.live,
		PageID:      cur.PageID,
	}
}

// Snapshot returns the history entry under the cursor.
func (e *Editor) Snapshot() Snapshot {
	return e.history.Current()
}

func (e *Editor) Root() *element.Element {
	return e.history.Current().Root
}

// Selected returns the selected element as it is in the current tree, or nil.
func (e *Editor) Selected() *element.Element {
	cur := e.history.Current()
	return tree.Find(cur.Root, cur.SelectedID)
}

func (e *Editor) Cursor() int { return e.history.Cursor() }

func (e *Editor) HistoryLen() int { return e.history.Len() }

func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

func (e *Editor) CanRedo() bool { return e.history.CanRedo() }
