package editor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/tree"
)

type UnknownActionError struct {
	Type string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action type %q", e.Type)
}

type wireAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type elementRef struct {
	ID string `json:"id"`
}

type insertPayload struct {
	ContainerID    string           `json:"containerId"`
	ElementDetails *element.Element `json:"elementDetails,omitempty"`
	Kind           element.Kind     `json:"kind,omitempty"`
	Index          *int             `json:"index,omitempty"`
}

type droppable struct {
	DroppableID string `json:"droppableId"`
	Index       int    `json:"index"`
}

type movePayload struct {
	Source      droppable  `json:"source"`
	Destination *droppable `json:"destination"`
	DraggableID string     `json:"draggableId"`
}

type updatePayload struct {
	ElementID      string           `json:"elementId,omitempty"`
	Patch          *tree.Patch      `json:"patch,omitempty"`
	ElementDetails *element.Element `json:"elementDetails,omitempty"`
}

type deletePayload struct {
	ElementID      string      `json:"elementId,omitempty"`
	ElementDetails *elementRef `json:"elementDetails,omitempty"`
}

type duplicatePayload struct {
	ElementID   string `json:"elementId"`
	NewParentID string `json:"newParentId,omitempty"`
}

type devicePayload struct {
	Device Device `json:"device"`
}

type livePayload struct {
	Value *bool `json:"value"`
}

type loadPayload struct {
	Elements      json.RawMessage `json:"elements"`
	WithLive      bool            `json:"withLive"`
	WebsitePageID string          `json:"websitePageId,omitempty"`
}

type pagePayload struct {
	WebsitePageID string `json:"websitePageId"`
}

// DecodeAction parses one action in its wire form, {"type": ..., "payload":
// ...}. Insert payloads may name a factory kind instead of carrying element
// details; newID supplies ids for such elements and may be nil.
func DecodeAction(data []byte, newID element.IDFunc) (Action, error) {
	var wire wireAction
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	payload := wire.Payload
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("null")
	}

	switch wire.Type {
	case TypeInsert, TypeInsertAI:
		var p insertPayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		el := p.ElementDetails
		if el == nil {
			if p.Kind == "" {
				return nil, fmt.Errorf("decode %s: elementDetails or kind is required", wire.Type)
			}
			built, err := element.New(p.Kind, newID)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", wire.Type, err)
			}
			el = built
		}
		return InsertElement{
			ParentID: p.ContainerID,
			Element:  el,
			Index:    p.Index,
			Copy:     wire.Type == TypeInsertAI,
		}, nil

	case TypeMove:
		var p movePayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		a := MoveElement{
			ElementID:      p.DraggableID,
			SourceParentID: p.Source.DroppableID,
			SourceIndex:    p.Source.Index,
		}
		if p.Destination != nil {
			a.DestParentID = p.Destination.DroppableID
			a.DestIndex = p.Destination.Index
		}
		return a, nil

	case TypeUpdate:
		var p updatePayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		if p.ElementDetails != nil {
			return UpdateElement{ElementID: p.ElementDetails.ID, Patch: patchFrom(p.ElementDetails)}, nil
		}
		a := UpdateElement{ElementID: p.ElementID}
		if p.Patch != nil {
			a.Patch = *p.Patch
		}
		return a, nil

	case TypeDelete:
		var p deletePayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		id := p.ElementID
		if id == "" && p.ElementDetails != nil {
			id = p.ElementDetails.ID
		}
		return DeleteElement{ElementID: id}, nil

	case TypeDuplicate:
		var p duplicatePayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		return DuplicateElement{ElementID: p.ElementID, NewParentID: p.NewParentID}, nil

	case TypeSelect:
		var p struct {
			ElementID      string      `json:"elementId,omitempty"`
			ElementDetails *elementRef `json:"elementDetails,omitempty"`
		}
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		id := p.ElementID
		if id == "" && p.ElementDetails != nil {
			id = p.ElementDetails.ID
		}
		return SelectElement{ElementID: id}, nil

	case TypeDevice:
		var p devicePayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		return ChangeDevice{Device: p.Device}, nil

	case TypePreview:
		return TogglePreview{}, nil

	case TypeLive:
		var p livePayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		return ToggleLive{Value: p.Value}, nil

	case TypeLoad:
		var p loadPayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		root, err := element.DecodeTree(p.Elements)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", wire.Type, err)
		}
		if root != nil {
			if err := tree.Validate(root); err != nil {
				return nil, fmt.Errorf("decode %s: %w", wire.Type, err)
			}
		}
		return LoadTree{Root: root, Live: p.WithLive, PageID: p.WebsitePageID}, nil

	case TypeSetPage:
		var p pagePayload
		if err := decodePayload(wire.Type, payload, &p); err != nil {
			return nil, err
		}
		return SetPage{PageID: p.WebsitePageID}, nil

	case TypeUndo:
		return Undo{}, nil

	case TypeRedo:
		return Redo{}, nil
	}

	return nil, &UnknownActionError{Type: wire.Type}
}

func decodePayload(actionType string, payload json.RawMessage, dst any) error {
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", actionType, err)
	}
	return nil
}

// patchFrom turns full element details into a patch over the fields an
// update may touch.
func patchFrom(el *element.Element) tree.Patch {
	name := el.Name
	patch := tree.Patch{Name: &name}
	if len(el.Styles) > 0 {
		patch.Styles = element.CloneStyles(el.Styles)
	}
	if el.Leaf != nil && el.Kind.Leaf() {
		href, text, src := el.Leaf.Href, el.Leaf.InnerText, el.Leaf.Src
		patch.Leaf = &tree.LeafPatch{Href: &href, InnerText: &text, Src: &src}
	}
	return patch
}

// EncodeAction renders an action in the wire form DecodeAction reads.
func EncodeAction(a Action) ([]byte, error) {
	var payload any
	switch a := a.(type) {
	case InsertElement:
		payload = insertPayload{ContainerID: a.ParentID, ElementDetails: a.Element, Index: a.Index}
	case MoveElement:
		payload = movePayload{
			Source:      droppable{DroppableID: a.SourceParentID, Index: a.SourceIndex},
			Destination: &droppable{DroppableID: a.DestParentID, Index: a.DestIndex},
			DraggableID: a.ElementID,
		}
	case UpdateElement:
		patch := a.Patch
		payload = updatePayload{ElementID: a.ElementID, Patch: &patch}
	case DeleteElement:
		payload = deletePayload{ElementID: a.ElementID}
	case DuplicateElement:
		payload = duplicatePayload{ElementID: a.ElementID, NewParentID: a.NewParentID}
	case SelectElement:
		payload = map[string]string{"elementId": a.ElementID}
	case ChangeDevice:
		payload = devicePayload{Device: a.Device}
	case ToggleLive:
		if a.Value != nil {
			payload = livePayload{Value: a.Value}
		}
	case LoadTree:
		elements := json.RawMessage("[]")
		if a.Root != nil {
			encoded, err := element.EncodeTree(a.Root)
			if err != nil {
				return nil, err
			}
			elements = encoded
		}
		payload = loadPayload{Elements: elements, WithLive: a.Live, WebsitePageID: a.PageID}
	case SetPage:
		payload = pagePayload{WebsitePageID: a.PageID}
	case TogglePreview, Undo, Redo:
	case nil:
		return nil, fmt.Errorf("encode action: nil action")
	}

	wire := wireAction{Type: a.Type()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", a.Type(), err)
		}
		wire.Payload = raw
	}
	return json.Marshal(wire)
}
