// Package fragment reads element subtrees proposed by a content generator or
// pasted from a clipboard, and prepares them for insertion.
package fragment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/freddynasr/trailtailor/internal/editor"
	"github.com/freddynasr/trailtailor/internal/element"
)

var ErrEmpty = errors.New("fragment: no elements")

// Parse extracts the elements from raw generator output. The payload is a
// JSON array, or a single element object, optionally fenced by lines holding
// only "---" or a markdown code fence.
func Parse(raw []byte) ([]*element.Element, error) {
	body := unfence(raw)
	if len(body) == 0 {
		return nil, ErrEmpty
	}

	var items []json.RawMessage
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("parse fragment: %w", err)
		}
	case '{':
		items = []json.RawMessage{body}
	default:
		return nil, fmt.Errorf("parse fragment: expected an array or object")
	}

	out := make([]*element.Element, 0, len(items))
	for _, item := range items {
		el := &element.Element{}
		if err := json.Unmarshal(item, el); err != nil {
			return nil, fmt.Errorf("parse fragment: %w", err)
		}
		if el.IsBody() {
			return nil, fmt.Errorf("parse fragment: a fragment cannot contain a body")
		}
		out = append(out, el)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// unfence returns the text between the first pair of fence lines, or the
// whole input when it has no fence.
func unfence(raw []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	open := -1
	for i, line := range lines {
		if !isFence(bytes.TrimSpace(line)) {
			continue
		}
		if open < 0 {
			open = i
			continue
		}
		return bytes.TrimSpace(bytes.Join(lines[open+1:i], []byte("\n")))
	}
	if open >= 0 {
		return bytes.TrimSpace(bytes.Join(lines[open+1:], []byte("\n")))
	}
	return bytes.TrimSpace(raw)
}

func isFence(line []byte) bool {
	return bytes.Equal(line, []byte("---")) || bytes.HasPrefix(line, []byte("```"))
}

// Actions returns one copying insert per element, appended under parentID in
// order. Copying gives every inserted node a fresh id, so the same fragment
// can be inserted any number of times.
func Actions(parentID string, elements []*element.Element) []editor.Action {
	actions := make([]editor.Action, 0, len(elements))
	for _, el := range elements {
		actions = append(actions, editor.InsertElement{ParentID: parentID, Element: el, Copy: true})
	}
	return actions
}
