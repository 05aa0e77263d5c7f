// Package tree implements the pure operations over a page element tree.
//
// Every operation takes a root and returns a new root; the input is never
// modified. Nodes off the changed path are shared between the old and the new
// tree. Operations that may turn out to be no-ops also report whether anything
// changed, and return the input root unchanged when nothing did.
package tree

import "github.com/freddynasr/trailtailor/internal/element"

// Find returns the first element with the given id in depth-first order,
// parent before children, or nil.
func Find(root *element.Element, id string) *element.Element {
	if root == nil || id == "" {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := Find(child, id); found != nil {
			return found
		}
	}
	return nil
}

// FindParent returns the parent of the element with the given id and the
// element's index within it. The root has no parent.
func FindParent(root *element.Element, id string) (*element.Element, int) {
	if root == nil || id == "" {
		return nil, -1
	}
	for i, child := range root.Children {
		if child.ID == id {
			return root, i
		}
		if parent, idx := FindParent(child, id); parent != nil {
			return parent, idx
		}
	}
	return nil, -1
}

// Path returns the chain of elements from root down to the element with the
// given id, both included, or nil when the id is absent.
func Path(root *element.Element, id string) []*element.Element {
	if root == nil || id == "" {
		return nil
	}
	if root.ID == id {
		return []*element.Element{root}
	}
	for _, child := range root.Children {
		if sub := Path(child, id); sub != nil {
			return append([]*element.Element{root}, sub...)
		}
	}
	return nil
}

// Contains reports whether id is ancestorID itself or lies in its subtree.
func Contains(root *element.Element, ancestorID, id string) bool {
	ancestor := Find(root, ancestorID)
	if ancestor == nil {
		return false
	}
	return Find(ancestor, id) != nil
}

// Walk visits every element depth-first, parent before children. Returning
// false from fn skips the element's subtree.
func Walk(root *element.Element, fn func(el *element.Element, depth int) bool) {
	walk(root, 0, fn)
}

func walk(el *element.Element, depth int, fn func(*element.Element, int) bool) {
	if el == nil {
		return
	}
	if !fn(el, depth) {
		return
	}
	for _, child := range el.Children {
		walk(child, depth+1, fn)
	}
}

// IDs lists every id in the tree in depth-first order.
func IDs(root *element.Element) []string {
	var ids []string
	Walk(root, func(el *element.Element, _ int) bool {
		ids = append(ids, el.ID)
		return true
	})
	return ids
}

func Count(root *element.Element) int {
	n := 0
	Walk(root, func(*element.Element, int) bool {
		n++
		return true
	})
	return n
}

// rebuild replaces the node with the given id by the result of fn, copying
// every ancestor on the way. fn returning ok=false aborts with no change.
func rebuild(root *element.Element, id string, fn func(*element.Element) (*element.Element, bool)) (*element.Element, bool) {
	if root == nil {
		return root, false
	}
	if root.ID == id {
		out, ok := fn(root)
		if !ok {
			return root, false
		}
		return out, true
	}
	for i, child := range root.Children {
		updated, ok := rebuild(child, id, fn)
		if !ok {
			continue
		}
		out := root.Shallow()
		out.Children = make([]*element.Element, len(root.Children))
		copy(out.Children, root.Children)
		out.Children[i] = updated
		return out, true
	}
	return root, false
}

func clamp(index, n int) int {
	if index < 0 {
		return 0
	}
	if index > n {
		return n
	}
	return index
}

// Insert places el as a child of parentID at index, clamped to the valid
// range. It is a no-op when the parent is missing or not structural, or when
// el is nil or a body.
func Insert(root *element.Element, parentID string, el *element.Element, index int) (*element.Element, bool) {
	if el == nil || el.IsBody() {
		return root, false
	}
	return rebuild(root, parentID, func(parent *element.Element) (*element.Element, bool) {
		if !parent.Kind.Structural() {
			return nil, false
		}
		at := clamp(index, len(parent.Children))
		out := parent.Shallow()
		out.Children = make([]*element.Element, 0, len(parent.Children)+1)
		out.Children = append(out.Children, parent.Children[:at]...)
		out.Children = append(out.Children, el)
		out.Children = append(out.Children, parent.Children[at:]...)
		return out, true
	})
}

// Append inserts el as the last child of parentID.
func Append(root *element.Element, parentID string, el *element.Element) (*element.Element, bool) {
	parent := Find(root, parentID)
	if parent == nil {
		return root, false
	}
	return Insert(root, parentID, el, len(parent.Children))
}

// Remove detaches the child childID from parentID. The removed subtree is
// returned as-is.
func Remove(root *element.Element, parentID, childID string) (removed, newRoot *element.Element, ok bool) {
	newRoot, ok = rebuild(root, parentID, func(parent *element.Element) (*element.Element, bool) {
		for i, child := range parent.Children {
			if child.ID != childID {
				continue
			}
			removed = child
			out := parent.Shallow()
			out.Children = make([]*element.Element, 0, len(parent.Children)-1)
			out.Children = append(out.Children, parent.Children[:i]...)
			out.Children = append(out.Children, parent.Children[i+1:]...)
			return out, true
		}
		return nil, false
	})
	if !ok {
		return nil, root, false
	}
	return removed, newRoot, true
}

// Delete removes the element and its subtree wherever it is. The body cannot
// be deleted.
func Delete(root *element.Element, id string) (*element.Element, bool) {
	if id == element.BodyID || (root != nil && root.ID == id) {
		return root, false
	}
	parent, _ := FindParent(root, id)
	if parent == nil {
		return root, false
	}
	_, out, ok := Remove(root, parent.ID, id)
	return out, ok
}
