package element

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type wireElement struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Styles  map[string]any  `json:"styles"`
	Content json.RawMessage `json:"content"`
}

func (el *Element) MarshalJSON() ([]byte, error) {
	styles := el.Styles
	if styles == nil {
		styles = map[string]string{}
	}
	var content any
	switch {
	case el.Kind.HasChildren():
		children := el.Children
		if children == nil {
			children = []*Element{}
		}
		content = children
	case el.Kind.Leaf():
		content = leafContent(el.Kind, el.Leaf)
	default:
		return nil, &UnknownKindError{Kind: string(el.Kind)}
	}
	return json.Marshal(struct {
		ID      string            `json:"id"`
		Name    string            `json:"name"`
		Type    Kind              `json:"type"`
		Styles  map[string]string `json:"styles"`
		Content any               `json:"content"`
	}{
		ID:      el.ID,
		Name:    el.Name,
		Type:    el.Kind,
		Styles:  styles,
		Content: content,
	})
}

// leafContent always emits the field a kind is defined by, even when empty.
func leafContent(kind Kind, leaf *Leaf) map[string]string {
	if leaf == nil {
		leaf = &Leaf{}
	}
	out := map[string]string{}
	if leaf.InnerText != "" || kind == KindText || kind == KindLink {
		out["innerText"] = leaf.InnerText
	}
	if leaf.Href != "" || kind == KindLink {
		out["href"] = leaf.Href
	}
	if leaf.Src != "" || kind == KindVideo {
		out["src"] = leaf.Src
	}
	return out
}

func (el *Element) UnmarshalJSON(data []byte) error {
	var wire wireElement
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode element: %w", err)
	}
	kind, ok := ParseKind(wire.Type)
	if !ok {
		return &UnknownKindError{Kind: wire.Type}
	}

	out := Element{
		ID:     wire.ID,
		Name:   wire.Name,
		Kind:   kind,
		Styles: make(map[string]string, len(wire.Styles)),
	}
	for key, value := range wire.Styles {
		if s, ok := styleString(value); ok {
			out.Styles[key] = s
		}
	}

	raw := bytes.TrimSpace(wire.Content)
	empty := len(raw) == 0 || bytes.Equal(raw, []byte("null"))
	switch {
	case kind.HasChildren():
		out.Children = []*Element{}
		if empty {
			break
		}
		if raw[0] != '[' {
			return fmt.Errorf("decode element %s: %s content must be an array", wire.ID, kind)
		}
		var children []*Element
		if err := json.Unmarshal(raw, &children); err != nil {
			return err
		}
		for _, child := range children {
			if child != nil {
				out.Children = append(out.Children, child)
			}
		}
	default:
		out.Leaf = &Leaf{}
		if empty {
			break
		}
		switch raw[0] {
		case '{':
			if err := json.Unmarshal(raw, out.Leaf); err != nil {
				return fmt.Errorf("decode element %s content: %w", wire.ID, err)
			}
		case '"':
			if err := json.Unmarshal(raw, &out.Leaf.InnerText); err != nil {
				return fmt.Errorf("decode element %s content: %w", wire.ID, err)
			}
		default:
			return fmt.Errorf("decode element %s: %s content must be an object", wire.ID, kind)
		}
	}

	*el = out
	return nil
}

// styleString flattens a decoded JSON style value. Null values are dropped.
func styleString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}

// EncodeTree serializes a page tree in its storage form: a JSON array holding
// the single body element.
func EncodeTree(root *Element) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("encode tree: nil root")
	}
	data, err := json.Marshal([]*Element{root})
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	return data, nil
}

// DecodeTree parses a stored page tree. Empty input, null and an empty array
// all mean "no tree" and yield (nil, nil). A bare body object is accepted as
// well as the one-element array.
func DecodeTree(data []byte) (*Element, error) {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var root *Element
	switch raw[0] {
	case '[':
		var roots []*Element
		if err := json.Unmarshal(raw, &roots); err != nil {
			return nil, fmt.Errorf("decode tree: %w", err)
		}
		if len(roots) == 0 {
			return nil, nil
		}
		if len(roots) > 1 {
			return nil, fmt.Errorf("decode tree: expected one root, got %d", len(roots))
		}
		root = roots[0]
	case '{':
		root = &Element{}
		if err := json.Unmarshal(raw, root); err != nil {
			return nil, fmt.Errorf("decode tree: %w", err)
		}
	default:
		return nil, fmt.Errorf("decode tree: unexpected input")
	}

	if root == nil {
		return nil, nil
	}
	if root.Kind != KindBody || root.ID != BodyID {
		return nil, fmt.Errorf("decode tree: root must be %s, got %s %q", KindBody, root.Kind, root.ID)
	}
	return root, nil
}
