package tree

import (
	"fmt"
	"strings"

	"github.com/freddynasr/trailtailor/internal/element"
)

// Move detaches elementID from srcParentID and inserts it under dstParentID
// at dstIndex, counted after the removal. Moving to the same parent and index
// is a no-op, as is any move that leaves the child order as it was. The body
// cannot be moved, an element cannot be moved into its own subtree, and a
// move whose insert step fails returns the original root so nothing is lost.
func Move(root *element.Element, elementID, srcParentID string, srcIndex int, dstParentID string, dstIndex int) (*element.Element, bool) {
	if root == nil || elementID == element.BodyID || elementID == root.ID {
		return root, false
	}
	if srcParentID == dstParentID && srcIndex == dstIndex {
		return root, false
	}

	parent, actual := FindParent(root, elementID)
	if parent == nil || parent.ID != srcParentID {
		return root, false
	}
	if srcParentID == dstParentID && actual == clamp(dstIndex, len(parent.Children)-1) {
		return root, false
	}

	removed, without, ok := Remove(root, srcParentID, elementID)
	if !ok {
		return root, false
	}
	if Find(removed, dstParentID) != nil {
		return root, false
	}
	out, ok := Insert(without, dstParentID, removed, dstIndex)
	if !ok {
		return root, false
	}
	return out, true
}

// Patch is a partial update of an element. Nil fields are left alone. A style
// set to the empty string is removed.
type Patch struct {
	Name   *string           `json:"name,omitempty"`
	Styles map[string]string `json:"styles,omitempty"`
	Leaf   *LeafPatch        `json:"content,omitempty"`
}

type LeafPatch struct {
	Href      *string `json:"href,omitempty"`
	InnerText *string `json:"innerText,omitempty"`
	Src       *string `json:"src,omitempty"`
}

// Empty reports whether the patch touches nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && len(p.Styles) == 0 && (p.Leaf == nil || p.Leaf.empty())
}

func (p *LeafPatch) empty() bool {
	return p.Href == nil && p.InnerText == nil && p.Src == nil
}

// Update merges patch into the element. Id, kind and children are never
// changed; a leaf patch on a children kind is ignored.
func Update(root *element.Element, id string, patch Patch) (*element.Element, bool) {
	if patch.Empty() {
		return root, false
	}
	return rebuild(root, id, func(el *element.Element) (*element.Element, bool) {
		out := el.Shallow()
		changed := false

		if patch.Name != nil && *patch.Name != el.Name {
			out.Name = *patch.Name
			changed = true
		}

		if len(patch.Styles) > 0 {
			styles := element.CloneStyles(el.Styles)
			for key, value := range patch.Styles {
				current, exists := styles[key]
				switch {
				case value == "" && exists:
					delete(styles, key)
					changed = true
				case value != "" && (!exists || current != value):
					styles[key] = value
					changed = true
				}
			}
			out.Styles = styles
		}

		if patch.Leaf != nil && el.Kind.Leaf() {
			leaf := element.Leaf{}
			if el.Leaf != nil {
				leaf = *el.Leaf
			}
			before := leaf
			if patch.Leaf.Href != nil {
				leaf.Href = *patch.Leaf.Href
			}
			if patch.Leaf.InnerText != nil {
				leaf.InnerText = *patch.Leaf.InnerText
			}
			if patch.Leaf.Src != nil {
				leaf.Src = *patch.Leaf.Src
			}
			if leaf != before {
				out.Leaf = &leaf
				changed = true
			}
		}

		if !changed {
			return nil, false
		}
		return out, true
	})
}

// DeepCopy returns a structurally identical copy of el with a fresh id on
// every node. Values are copied verbatim; nothing is shared with the input.
func DeepCopy(el *element.Element, newID element.IDFunc) *element.Element {
	if el == nil {
		return nil
	}
	if newID == nil {
		newID = element.NewID
	}
	out := &element.Element{
		ID:     newID(),
		Name:   el.Name,
		Kind:   el.Kind,
		Styles: element.CloneStyles(el.Styles),
	}
	if el.Leaf != nil {
		leaf := *el.Leaf
		out.Leaf = &leaf
	}
	if el.Children != nil {
		out.Children = make([]*element.Element, 0, len(el.Children))
		for _, child := range el.Children {
			out.Children = append(out.Children, DeepCopy(child, newID))
		}
	}
	return out
}

// InvalidTreeError describes the first structural problem Validate found.
type InvalidTreeError struct {
	ID     string
	Reason string
}

func (e *InvalidTreeError) Error() string {
	if e.ID == "" {
		return "invalid tree: " + e.Reason
	}
	return fmt.Sprintf("invalid tree at %q: %s", e.ID, e.Reason)
}

// Validate checks that root is a proper page tree: a body root with the
// reserved id, no other body, unique non-empty ids, and content matching each
// element's kind.
func Validate(root *element.Element) error {
	if root == nil {
		return &InvalidTreeError{Reason: "missing root"}
	}
	if root.Kind != element.KindBody || root.ID != element.BodyID {
		return &InvalidTreeError{ID: root.ID, Reason: "root must be the body"}
	}

	seen := make(map[string]bool)
	var err error
	Walk(root, func(el *element.Element, depth int) bool {
		if err != nil {
			return false
		}
		switch {
		case el.ID == "":
			err = &InvalidTreeError{Reason: "element without id"}
		case seen[el.ID]:
			err = &InvalidTreeError{ID: el.ID, Reason: "duplicate id"}
		case !el.Kind.Valid():
			err = &InvalidTreeError{ID: el.ID, Reason: fmt.Sprintf("unknown kind %q", el.Kind)}
		case depth > 0 && el.IsBody():
			err = &InvalidTreeError{ID: el.ID, Reason: "nested body"}
		case el.Kind.Leaf() && len(el.Children) > 0:
			err = &InvalidTreeError{ID: el.ID, Reason: "leaf element with children"}
		case el.Kind.HasChildren() && el.Leaf != nil:
			err = &InvalidTreeError{ID: el.ID, Reason: "container element with leaf content"}
		}
		seen[el.ID] = true
		return err == nil
	})
	return err
}

// Text joins the visible text of every leaf element, one per line. Link
// targets and video sources are not included.
func Text(root *element.Element) string {
	var parts []string
	Walk(root, func(el *element.Element, _ int) bool {
		if text := strings.TrimSpace(el.Text()); text != "" {
			parts = append(parts, text)
		}
		return true
	})
	return strings.Join(parts, "\n")
}
