// Package element defines the page element model: the closed set of element
// kinds, their content shapes and the factory that builds fresh instances.
package element

import "fmt"

// BodyID is the reserved id of the page root.
const BodyID = "__body"

type Kind string

const (
	KindBody        Kind = "__body"
	KindContainer   Kind = "container"
	KindTwoColumn   Kind = "2Col"
	KindText        Kind = "text"
	KindLink        Kind = "link"
	KindVideo       Kind = "video"
	KindContactForm Kind = "contactForm"
	KindPaymentForm Kind = "paymentForm"
)

var allKinds = []Kind{
	KindBody,
	KindContainer,
	KindTwoColumn,
	KindText,
	KindLink,
	KindVideo,
	KindContactForm,
	KindPaymentForm,
}

// kindAliases maps type names found in stored and generated trees onto the
// closed kind set.
var kindAliases = map[string]Kind{
	"section": KindContainer,
	"twoCol":  KindTwoColumn,
	"2col":    KindTwoColumn,
}

// ParseKind resolves a wire type name, accepting the known aliases.
func ParseKind(name string) (Kind, bool) {
	if alias, ok := kindAliases[name]; ok {
		return alias, true
	}
	kind := Kind(name)
	return kind, kind.Valid()
}

// Kinds returns every known kind, body first.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Structural kinds may receive inserted children.
func (k Kind) Structural() bool {
	return k == KindBody || k == KindContainer || k == KindTwoColumn
}

// Leaf kinds carry a Leaf content record instead of children.
func (k Kind) Leaf() bool {
	return k == KindText || k == KindLink || k == KindVideo
}

func (k Kind) Form() bool {
	return k == KindContactForm || k == KindPaymentForm
}

// HasChildren reports whether the kind's content is a child sequence. Forms
// keep an empty sequence but are not insert targets.
func (k Kind) HasChildren() bool {
	return k.Structural() || k.Form()
}

type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown element kind %q", e.Kind)
}

// Leaf is the content record of text, link and video elements. Unused fields
// stay empty.
type Leaf struct {
	Href      string `json:"href,omitempty"`
	InnerText string `json:"innerText,omitempty"`
	Src       string `json:"src,omitempty"`
}

// Element is one node of a page tree. Once an element is reachable from a
// tree root it must not be mutated in place; tree operations rebuild the path
// to a changed node and share everything else.
type Element struct {
	ID       string
	Name     string
	Kind     Kind
	Styles   map[string]string
	Children []*Element
	Leaf     *Leaf
}

// IsBody reports whether el is the reserved page root.
func (el *Element) IsBody() bool {
	return el != nil && el.Kind == KindBody
}

// Shallow returns a copy of el that shares styles, children and leaf content.
func (el *Element) Shallow() *Element {
	if el == nil {
		return nil
	}
	out := *el
	return &out
}

// Style returns the value of a style key, or "" when unset.
func (el *Element) Style(key string) string {
	if el == nil || el.Styles == nil {
		return ""
	}
	return el.Styles[key]
}

// Text returns the inner text of a leaf element.
func (el *Element) Text() string {
	if el == nil || el.Leaf == nil {
		return ""
	}
	return el.Leaf.InnerText
}

// CloneStyles returns an independent copy of a style map. A nil map yields an
// empty one.
func CloneStyles(styles map[string]string) map[string]string {
	if styles == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(styles))
	for k, v := range styles {
		out[k] = v
	}
	return out
}
