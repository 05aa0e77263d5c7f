package tree

import (
	"errors"
	"reflect"
	"testing"

	"github.com/freddynasr/trailtailor/internal/element"
)

func leaf(id, text string) *element.Element {
	return &element.Element{ID: id, Name: "Text", Kind: element.KindText, Styles: map[string]string{}, Leaf: &element.Leaf{InnerText: text}}
}

func box(id string, children ...*element.Element) *element.Element {
	if children == nil {
		children = []*element.Element{}
	}
	return &element.Element{ID: id, Name: "Container", Kind: element.KindContainer, Styles: map[string]string{}, Children: children}
}

// sample builds:
//
//	__body
//	  a (container)
//	    a1 (text)
//	    a2 (text)
//	  b (container)
//	    b1 (container)
//	  c (text)
func sample() *element.Element {
	body := element.NewBody()
	body.Children = []*element.Element{
		box("a", leaf("a1", "one"), leaf("a2", "two")),
		box("b", box("b1")),
		leaf("c", "three"),
	}
	return body
}

func childIDs(el *element.Element) []string {
	ids := make([]string, 0, len(el.Children))
	for _, child := range el.Children {
		ids = append(ids, child.ID)
	}
	return ids
}

func TestFind(t *testing.T) {
	root := sample()
	if got := Find(root, "b1"); got == nil || got.ID != "b1" {
		t.Fatalf("Find(b1) = %v", got)
	}
	if got := Find(root, element.BodyID); got != root {
		t.Fatal("Find(body) should return the root")
	}
	if got := Find(root, "missing"); got != nil {
		t.Fatalf("Find(missing) = %v", got)
	}

	parent, idx := FindParent(root, "a2")
	if parent == nil || parent.ID != "a" || idx != 1 {
		t.Fatalf("FindParent(a2) = %v, %d", parent, idx)
	}
	if parent, _ := FindParent(root, element.BodyID); parent != nil {
		t.Fatal("body has no parent")
	}

	path := Path(root, "b1")
	var ids []string
	for _, el := range path {
		ids = append(ids, el.ID)
	}
	if !reflect.DeepEqual(ids, []string{element.BodyID, "b", "b1"}) {
		t.Fatalf("Path(b1) = %v", ids)
	}
}

func TestInsert(t *testing.T) {
	tests := []struct {
		name    string
		parent  string
		index   int
		changed bool
		want    []string
	}{
		{name: "front", parent: "a", index: 0, changed: true, want: []string{"n", "a1", "a2"}},
		{name: "middle", parent: "a", index: 1, changed: true, want: []string{"a1", "n", "a2"}},
		{name: "clamped high", parent: "a", index: 99, changed: true, want: []string{"a1", "a2", "n"}},
		{name: "clamped low", parent: "a", index: -3, changed: true, want: []string{"n", "a1", "a2"}},
		{name: "missing parent", parent: "zzz", index: 0, changed: false},
		{name: "leaf parent", parent: "a1", index: 0, changed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := sample()
			out, changed := Insert(root, tt.parent, leaf("n", "new"), tt.index)
			if changed != tt.changed {
				t.Fatalf("Insert() changed = %v, want %v", changed, tt.changed)
			}
			if !changed {
				if out != root {
					t.Fatal("no-op insert must return the input root")
				}
				return
			}
			if got := childIDs(Find(out, tt.parent)); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("children = %v, want %v", got, tt.want)
			}
			if len(Find(root, "a").Children) != 2 {
				t.Fatal("input tree was modified")
			}
			if Find(out, "b") != Find(root, "b") {
				t.Fatal("untouched subtree should be shared")
			}
		})
	}
}

func TestInsertRejectsBodyAndForms(t *testing.T) {
	root := sample()
	if _, changed := Insert(root, "a", element.NewBody(), 0); changed {
		t.Fatal("a body cannot be inserted")
	}
	form, _ := element.New(element.KindContactForm, element.SequenceIDs("f"))
	root, _ = Append(root, element.BodyID, form)
	if _, changed := Insert(root, form.ID, leaf("n", "x"), 0); changed {
		t.Fatal("forms do not accept children")
	}
}

func TestRemove(t *testing.T) {
	root := sample()
	removed, out, ok := Remove(root, "a", "a1")
	if !ok || removed.ID != "a1" {
		t.Fatalf("Remove() = %v, %v", removed, ok)
	}
	if got := childIDs(Find(out, "a")); !reflect.DeepEqual(got, []string{"a2"}) {
		t.Fatalf("children = %v", got)
	}
	if removed != Find(root, "a1") {
		t.Fatal("removed subtree is returned as-is")
	}

	if _, same, ok := Remove(root, "b", "a1"); ok || same != root {
		t.Fatal("removing from the wrong parent is a no-op")
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name       string
		id, src    string
		srcIndex   int
		dst        string
		dstIndex   int
		changed    bool
		wantParent string
		want       []string
	}{
		{name: "reorder within parent", id: "a1", src: "a", srcIndex: 0, dst: "a", dstIndex: 1, changed: true, wantParent: "a", want: []string{"a2", "a1"}},
		{name: "across parents", id: "c", src: element.BodyID, srcIndex: 2, dst: "b1", dstIndex: 0, changed: true, wantParent: "b1", want: []string{"c"}},
		{name: "same position", id: "a1", src: "a", srcIndex: 0, dst: "a", dstIndex: 0},
		{name: "clamped to own slot", id: "a2", src: "a", srcIndex: 1, dst: "a", dstIndex: 7},
		{name: "body", id: element.BodyID, src: "", srcIndex: 0, dst: "a", dstIndex: 0},
		{name: "into own subtree", id: "b", src: element.BodyID, srcIndex: 1, dst: "b1", dstIndex: 0},
		{name: "into itself", id: "b", src: element.BodyID, srcIndex: 1, dst: "b", dstIndex: 0},
		{name: "wrong source parent", id: "a1", src: "b", srcIndex: 0, dst: "b1", dstIndex: 0},
		{name: "dangling element", id: "zzz", src: "a", srcIndex: 0, dst: "b", dstIndex: 0},
		{name: "dangling destination", id: "a1", src: "a", srcIndex: 0, dst: "zzz", dstIndex: 0},
		{name: "leaf destination", id: "a1", src: "a", srcIndex: 0, dst: "c", dstIndex: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := sample()
			before := Count(root)
			out, changed := Move(root, tt.id, tt.src, tt.srcIndex, tt.dst, tt.dstIndex)
			if changed != tt.changed {
				t.Fatalf("Move() changed = %v, want %v", changed, tt.changed)
			}
			if !changed {
				if out != root {
					t.Fatal("no-op move must return the input root")
				}
				return
			}
			if Count(out) != before {
				t.Fatalf("node count = %d, want %d", Count(out), before)
			}
			if got := childIDs(Find(out, tt.wantParent)); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("children of %s = %v, want %v", tt.wantParent, got, tt.want)
			}
			if err := Validate(out); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	root := sample()
	name := "Intro"
	text := "hello"
	out, changed := Update(root, "a1", Patch{
		Name:   &name,
		Styles: map[string]string{"color": "red"},
		Leaf:   &LeafPatch{InnerText: &text},
	})
	if !changed {
		t.Fatal("Update() reported no change")
	}
	got := Find(out, "a1")
	if got.Name != "Intro" || got.Style("color") != "red" || got.Text() != "hello" {
		t.Fatalf("updated element = %+v", got)
	}
	if Find(root, "a1").Text() != "one" {
		t.Fatal("input tree was modified")
	}

	// merging keeps existing style keys and removes empty ones
	out2, changed := Update(out, "a1", Patch{Styles: map[string]string{"margin": "4px", "color": ""}})
	if !changed {
		t.Fatal("style merge reported no change")
	}
	if s := Find(out2, "a1").Styles; s["margin"] != "4px" || s["color"] != "" {
		t.Fatalf("styles = %v", s)
	}
	if _, ok := Find(out2, "a1").Styles["color"]; ok {
		t.Fatal("empty style value should remove the key")
	}

	for name, patch := range map[string]Patch{
		"empty":            {},
		"same name":        {Name: &name},
		"same style":       {Styles: map[string]string{"color": "red"}},
		"leaf on children": {Leaf: &LeafPatch{InnerText: &text}},
	} {
		target := "a1"
		if name == "leaf on children" {
			target = "a"
		}
		if same, changed := Update(out, target, patch); changed || same != out {
			t.Fatalf("%s: Update() should be a no-op", name)
		}
	}
	if _, changed := Update(root, "zzz", Patch{Name: &name}); changed {
		t.Fatal("updating a missing element is a no-op")
	}
}

func TestDelete(t *testing.T) {
	root := sample()
	out, changed := Delete(root, "b")
	if !changed {
		t.Fatal("Delete() reported no change")
	}
	if Find(out, "b") != nil || Find(out, "b1") != nil {
		t.Fatal("subtree still present")
	}
	if got := childIDs(out); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("body children = %v", got)
	}

	for _, id := range []string{element.BodyID, "zzz"} {
		if same, changed := Delete(root, id); changed || same != root {
			t.Fatalf("Delete(%s) should be a no-op", id)
		}
	}
}

func TestDeepCopy(t *testing.T) {
	root := sample()
	src := Find(root, "a")
	cp := DeepCopy(src, element.SequenceIDs("copy"))

	if Count(cp) != Count(src) {
		t.Fatalf("copy has %d nodes, want %d", Count(cp), Count(src))
	}
	original := map[string]bool{}
	for _, id := range IDs(src) {
		original[id] = true
	}
	for _, id := range IDs(cp) {
		if original[id] {
			t.Fatalf("id %s reused in copy", id)
		}
	}
	if cp.Children[0].Text() != "one" || cp.Children[0].Kind != element.KindText {
		t.Fatal("values must be copied verbatim")
	}
	cp.Children[0].Leaf.InnerText = "changed"
	cp.Styles["x"] = "y"
	if src.Children[0].Text() != "one" || src.Style("x") != "" {
		t.Fatal("copy shares state with the source")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(sample()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	dup := sample()
	dup.Children = append(dup.Children, leaf("a1", "again"))
	nested := sample()
	nested.Children = append(nested.Children, element.NewBody())
	notBody := box("root")

	for name, root := range map[string]*element.Element{
		"duplicate": dup,
		"nested":    nested,
		"not body":  notBody,
		"nil":       nil,
	} {
		err := Validate(root)
		var invalid *InvalidTreeError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: Validate() error = %v, want InvalidTreeError", name, err)
		}
	}
}

func TestValidateAcceptsStoredFormChildren(t *testing.T) {
	form, err := element.New(element.KindPaymentForm, element.SequenceIDs("pay"))
	if err != nil {
		t.Fatalf("element.New() error = %v", err)
	}
	form.Children = []*element.Element{leaf("terms", "No refunds")}
	root := element.NewBody()
	root.Children = []*element.Element{form}

	if err := Validate(root); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, changed := Insert(root, form.ID, leaf("extra", "x"), 0); changed {
		t.Fatal("forms still refuse new children")
	}
	out, changed := Delete(root, "terms")
	if !changed || len(Find(out, form.ID).Children) != 0 {
		t.Fatal("a stored form child should be deletable")
	}
}

func TestTextAndIDs(t *testing.T) {
	root := sample()
	if got := Text(root); got != "one\ntwo\nthree" {
		t.Fatalf("Text() = %q", got)
	}
	want := []string{element.BodyID, "a", "a1", "a2", "b", "b1", "c"}
	if got := IDs(root); !reflect.DeepEqual(got, want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	if !Contains(root, "b", "b1") || Contains(root, "a", "b1") {
		t.Fatal("Contains() mismatch")
	}
}
