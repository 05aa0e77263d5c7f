// Package dragdrop turns finished drag gestures into editor actions.
package dragdrop

import (
	"errors"
	"fmt"

	"github.com/freddynasr/trailtailor/internal/editor"
	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/tree"
)

// ErrIgnored is returned for drops that carry nothing to apply, such as an
// element dropped onto itself.
var ErrIgnored = errors.New("drop ignored")

// Drop is what the UI reports when a drag ends. For a new element dragged from
// the toolbar IsExisting is false and NewKind names the kind to build; when
// NewKind is empty DraggedID is taken as the kind.
type Drop struct {
	DraggedID      string       `json:"draggedId"`
	IsExisting     bool         `json:"isExisting"`
	SourceParentID string       `json:"sourceParentId,omitempty"`
	SourceIndex    int          `json:"sourceIndex,omitempty"`
	DestParentID   string       `json:"destParentId"`
	DestIndex      int          `json:"destIndex"`
	NewKind        element.Kind `json:"newKind,omitempty"`
}

// Translate maps a drop onto root into a move or insert action. A destination
// that is not a structural element of root falls back to the body.
func Translate(root *element.Element, d Drop, newID element.IDFunc) (editor.Action, error) {
	if d.DraggedID == "" || d.DraggedID == d.DestParentID {
		return nil, ErrIgnored
	}

	dest := d.DestParentID
	if target := tree.Find(root, dest); target == nil || !target.Kind.Structural() {
		dest = element.BodyID
	}

	if d.IsExisting {
		src, srcIndex := d.SourceParentID, d.SourceIndex
		if src == "" {
			parent, idx := tree.FindParent(root, d.DraggedID)
			if parent == nil {
				return nil, ErrIgnored
			}
			src, srcIndex = parent.ID, idx
		}
		return editor.MoveElement{
			ElementID:      d.DraggedID,
			SourceParentID: src,
			SourceIndex:    srcIndex,
			DestParentID:   dest,
			DestIndex:      d.DestIndex,
		}, nil
	}

	kind := d.NewKind
	if kind == "" {
		kind = element.Kind(d.DraggedID)
	}
	el, err := element.New(kind, newID)
	if err != nil {
		return nil, fmt.Errorf("translate drop: %w", err)
	}
	index := d.DestIndex
	return editor.InsertElement{ParentID: dest, Element: el, Index: &index}, nil
}
