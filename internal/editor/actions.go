package editor

import (
	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/tree"
)

// Action is a request accepted by Editor.Dispatch. The set is closed; the
// concrete types below are the only implementations.
type Action interface {
	Type() string
	action()
}

// InsertElement places Element under ParentID. A nil Index appends. With
// Copy set, or when any id in Element already exists in the tree, the
// element is deep-copied with fresh ids first.
type InsertElement struct {
	ParentID string
	Element  *element.Element
	Index    *int
	Copy     bool
}

type MoveElement struct {
	ElementID      string
	SourceParentID string
	SourceIndex    int
	DestParentID   string
	DestIndex      int
}

type UpdateElement struct {
	ElementID string
	Patch     tree.Patch
}

type DeleteElement struct {
	ElementID string
}

// DuplicateElement appends a deep copy of ElementID to NewParentID, or to the
// element's own parent when NewParentID is empty.
type DuplicateElement struct {
	ElementID   string
	NewParentID string
}

// SelectElement selects ElementID. Selecting the selected element, or an
// empty id, clears the selection.
type SelectElement struct {
	ElementID string
}

type ChangeDevice struct {
	Device Device
}

type TogglePreview struct{}

// ToggleLive flips live mode, or sets it when Value is given.
type ToggleLive struct {
	Value *bool
}

// LoadTree replaces the whole editor state with Root and resets history. A
// nil Root loads an empty body; a Root failing tree.Validate is refused and
// leaves the state untouched.
type LoadTree struct {
	Root   *element.Element
	Live   bool
	PageID string
}

type SetPage struct {
	PageID string
}

type Undo struct{}

type Redo struct{}

const (
	TypeInsert    = "ADD_ELEMENT"
	TypeInsertAI  = "ADD_FROM_AI"
	TypeMove      = "REORDER_ELEMENTS"
	TypeUpdate    = "UPDATE_ELEMENT"
	TypeDelete    = "DELETE_ELEMENT"
	TypeDuplicate = "DUPLICATE_ELEMENT"
	TypeSelect    = "CHANGE_CLICKED_ELEMENT"
	TypeDevice    = "CHANGE_DEVICE"
	TypePreview   = "TOGGLE_PREVIEW_MODE"
	TypeLive      = "TOGGLE_LIVE_MODE"
	TypeLoad      = "LOAD_DATA"
	TypeSetPage   = "SET_WEBSITEPAGE_ID"
	TypeUndo      = "UNDO"
	TypeRedo      = "REDO"
)

func (a InsertElement) Type() string {
	if a.Copy {
		return TypeInsertAI
	}
	return TypeInsert
}
func (MoveElement) Type() string { return TypeMove }
func (UpdateElement) Type() string { return TypeUpdate }
func (DeleteElement) Type() string { return TypeDelete }
func (DuplicateElement) Type() string { return TypeDuplicate }
func (SelectElement) Type() string { return TypeSelect }
func (ChangeDevice) Type() string { return TypeDevice }
func (TogglePreview) Type() string { return TypePreview }
func (ToggleLive) Type() string { return TypeLive }
func (LoadTree) Type() string { return TypeLoad }
func (SetPage) Type() string { return TypeSetPage }
func (Undo) Type() string { return TypeUndo }
func (Redo) Type() string { return TypeRedo }

func (InsertElement) action() {}
func (MoveElement) action() {}
func (UpdateElement) action() {}
func (DeleteElement) action() {}
func (DuplicateElement) action() {}
func (SelectElement) action() {}
func (ChangeDevice) action() {}
func (TogglePreview) action() {}
func (ToggleLive) action() {}
func (LoadTree) action() {}
func (SetPage) action() {}
func (Undo) action() {}
func (Redo) action() {}
