package element

import "fmt"

// IDFunc produces a fresh, unique element id.
type IDFunc func() string

// defaultStyles is the style bundle shared by most factory elements.
var defaultStyles = map[string]string{
	"backgroundPosition": "center",
	"objectFit":          "cover",
	"backgroundRepeat":   "no-repeat",
	"textAlign":          "left",
	"opacity":            "100%",
}

func withDefaults(overrides map[string]string) map[string]string {
	styles := CloneStyles(defaultStyles)
	for k, v := range overrides {
		styles[k] = v
	}
	return styles
}

// New builds a fresh element of the given kind with its default styles and
// empty content. A two-column element is seeded with two containers. The body
// is never factory-built; use NewBody.
func New(kind Kind, newID IDFunc) (*Element, error) {
	if newID == nil {
		newID = NewID
	}
	switch kind {
	case KindText:
		return &Element{
			ID:     newID(),
			Name:   "Text",
			Kind:   KindText,
			Styles: withDefaults(map[string]string{"color": "black"}),
			Leaf:   &Leaf{InnerText: "Text Element"},
		}, nil
	case KindLink:
		return &Element{
			ID:     newID(),
			Name:   "Link",
			Kind:   KindLink,
			Styles: withDefaults(map[string]string{"color": "black"}),
			Leaf:   &Leaf{InnerText: "Link Element", Href: "#"},
		}, nil
	case KindVideo:
		return &Element{
			ID:     newID(),
			Name:   "Video",
			Kind:   KindVideo,
			Styles: map[string]string{"width": "560px", "height": "315px"},
			Leaf:   &Leaf{},
		}, nil
	case KindContainer:
		return newContainer(newID), nil
	case KindTwoColumn:
		return &Element{
			ID:       newID(),
			Name:     "Two Columns",
			Kind:     KindTwoColumn,
			Styles:   withDefaults(map[string]string{"display": "flex"}),
			Children: []*Element{newContainer(newID), newContainer(newID)},
		}, nil
	case KindContactForm:
		return &Element{
			ID:       newID(),
			Name:     "Contact Form",
			Kind:     KindContactForm,
			Styles:   withDefaults(map[string]string{"width": "100%"}),
			Children: []*Element{},
		}, nil
	case KindPaymentForm:
		return &Element{
			ID:       newID(),
			Name:     "Checkout",
			Kind:     KindPaymentForm,
			Styles:   withDefaults(map[string]string{"width": "100%"}),
			Children: []*Element{},
		}, nil
	case KindBody:
		return nil, fmt.Errorf("build element: body is created with NewBody")
	default:
		return nil, &UnknownKindError{Kind: string(kind)}
	}
}

func newContainer(newID IDFunc) *Element {
	return &Element{
		ID:       newID(),
		Name:     "Container",
		Kind:     KindContainer,
		Styles:   withDefaults(map[string]string{"width": "100%"}),
		Children: []*Element{},
	}
}

// NewBody returns an empty page root.
func NewBody() *Element {
	return &Element{
		ID:       BodyID,
		Name:     "Body",
		Kind:     KindBody,
		Styles:   map[string]string{"backgroundColor": "white"},
		Children: []*Element{},
	}
}
