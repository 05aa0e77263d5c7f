package editor

import (
	"testing"

	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/tree"
)

func newTestEditor() *Editor {
	return New(WithIDGenerator(element.SequenceIDs("gen")))
}

func newElement(t *testing.T, kind element.Kind, ids element.IDFunc) *element.Element {
	t.Helper()
	el, err := element.New(kind, ids)
	if err != nil {
		t.Fatalf("element.New(%s) error = %v", kind, err)
	}
	return el
}

func intPtr(v int) *int { return &v }

func assertUniqueIDs(t *testing.T, root *element.Element) {
	t.Helper()
	seen := map[string]bool{}
	for _, id := range tree.IDs(root) {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func assertBodyRoot(t *testing.T, root *element.Element) {
	t.Helper()
	if root == nil || root.ID != element.BodyID || root.Kind != element.KindBody {
		t.Fatalf("root = %+v, want body", root)
	}
	n := 0
	tree.Walk(root, func(el *element.Element, _ int) bool {
		if el.ID == element.BodyID {
			n++
		}
		return true
	})
	if n != 1 {
		t.Fatalf("found %d body nodes", n)
	}
}

func TestBasicInsertScenario(t *testing.T) {
	e := newTestEditor()
	text := newElement(t, element.KindText, element.SequenceIDs("t"))

	if !e.Dispatch(InsertElement{ParentID: element.BodyID, Element: text, Index: intPtr(0)}) {
		t.Fatal("Dispatch(insert) reported no change")
	}
	root := e.Root()
	if len(root.Children) != 1 || root.Children[0].Kind != element.KindText {
		t.Fatalf("body children = %+v", root.Children)
	}
	if e.HistoryLen() != 2 || e.Cursor() != 1 {
		t.Fatalf("history len=%d cursor=%d, want 2/1", e.HistoryLen(), e.Cursor())
	}
}

func TestReorderTwoColumnScenario(t *testing.T) {
	e := newTestEditor()
	two := newElement(t, element.KindTwoColumn, element.SequenceIDs("col"))
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: two})
	a, b := two.Children[0].ID, two.Children[1].ID
	before := e.HistoryLen()

	if !e.Dispatch(MoveElement{ElementID: b, SourceParentID: two.ID, SourceIndex: 1, DestParentID: two.ID, DestIndex: 0}) {
		t.Fatal("Dispatch(move) reported no change")
	}
	got := tree.Find(e.Root(), two.ID).Children
	if got[0].ID != b || got[1].ID != a {
		t.Fatalf("children = [%s %s], want [%s %s]", got[0].ID, got[1].ID, b, a)
	}
	if e.HistoryLen() != before+1 {
		t.Fatalf("history len = %d, want %d", e.HistoryLen(), before+1)
	}
}

func TestNoOpsDoNotPushHistory(t *testing.T) {
	e := newTestEditor()
	ids := element.SequenceIDs("n")
	box := newElement(t, element.KindContainer, ids)
	text := newElement(t, element.KindText, ids)
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: box})
	e.Dispatch(InsertElement{ParentID: box.ID, Element: text})
	name := text.Name

	tests := []struct {
		name   string
		action Action
	}{
		{name: "same position move", action: MoveElement{ElementID: text.ID, SourceParentID: box.ID, SourceIndex: 0, DestParentID: box.ID, DestIndex: 0}},
		{name: "dangling move", action: MoveElement{ElementID: "ghost", SourceParentID: box.ID, SourceIndex: 0, DestParentID: element.BodyID, DestIndex: 0}},
		{name: "move body", action: MoveElement{ElementID: element.BodyID, SourceParentID: "", DestParentID: box.ID}},
		{name: "move into own subtree", action: MoveElement{ElementID: box.ID, SourceParentID: element.BodyID, SourceIndex: 0, DestParentID: box.ID, DestIndex: 0}},
		{name: "insert into missing parent", action: InsertElement{ParentID: "ghost", Element: newElement(t, element.KindText, ids)}},
		{name: "insert into leaf", action: InsertElement{ParentID: text.ID, Element: newElement(t, element.KindText, ids)}},
		{name: "insert nil", action: InsertElement{ParentID: element.BodyID}},
		{name: "insert body", action: InsertElement{ParentID: box.ID, Element: element.NewBody()}},
		{name: "update missing", action: UpdateElement{ElementID: "ghost", Patch: tree.Patch{Name: &name}}},
		{name: "update identical", action: UpdateElement{ElementID: text.ID, Patch: tree.Patch{Name: &name}}},
		{name: "delete body", action: DeleteElement{ElementID: element.BodyID}},
		{name: "delete missing", action: DeleteElement{ElementID: "ghost"}},
		{name: "duplicate body", action: DuplicateElement{ElementID: element.BodyID, NewParentID: element.BodyID}},
		{name: "duplicate missing", action: DuplicateElement{ElementID: "ghost"}},
		{name: "duplicate into leaf", action: DuplicateElement{ElementID: box.ID, NewParentID: text.ID}},
		{name: "select missing", action: SelectElement{ElementID: "ghost"}},
		{name: "deselect nothing", action: SelectElement{}},
		{name: "same page", action: SetPage{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := e.Root()
			length, cursor := e.HistoryLen(), e.Cursor()
			if e.Dispatch(tt.action) {
				t.Fatal("Dispatch() reported a change")
			}
			if e.Root() != root {
				t.Fatal("tree changed on a no-op")
			}
			if e.HistoryLen() != length || e.Cursor() != cursor {
				t.Fatalf("history len=%d cursor=%d, want %d/%d", e.HistoryLen(), e.Cursor(), length, cursor)
			}
		})
	}

	fresh := newTestEditor()
	if fresh.Dispatch(Undo{}) || fresh.Dispatch(Redo{}) {
		t.Fatal("undo/redo on a fresh editor must be no-ops")
	}
}

func TestUndoRedoInverse(t *testing.T) {
	e := newTestEditor()
	ids := element.SequenceIDs("u")
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: newElement(t, element.KindContainer, ids)})
	before := e.Snapshot()

	text := newElement(t, element.KindText, ids)
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: text, Index: intPtr(0)})
	after := e.Snapshot()

	if !e.Dispatch(Undo{}) {
		t.Fatal("Dispatch(undo) reported no change")
	}
	if e.Snapshot() != before {
		t.Fatal("undo did not restore the previous snapshot")
	}
	if !e.Dispatch(Redo{}) {
		t.Fatal("Dispatch(redo) reported no change")
	}
	if e.Snapshot() != after {
		t.Fatal("redo did not restore the later snapshot")
	}
}

func TestMutationAfterUndoDiscardsRedo(t *testing.T) {
	e := newTestEditor()
	ids := element.SequenceIDs("r")
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: newElement(t, element.KindText, ids)})
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: newElement(t, element.KindText, ids)})
	e.Dispatch(Undo{})

	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: newElement(t, element.KindVideo, ids)})
	if e.CanRedo() {
		t.Fatal("redo tail should be discarded")
	}
	if e.HistoryLen() != 3 || e.Cursor() != 2 {
		t.Fatalf("history len=%d cursor=%d, want 3/2", e.HistoryLen(), e.Cursor())
	}
}

func TestSelectionToggle(t *testing.T) {
	e := newTestEditor()
	text := newElement(t, element.KindText, element.SequenceIDs("s"))
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: text})
	length := e.HistoryLen()

	if !e.Dispatch(SelectElement{ElementID: text.ID}) {
		t.Fatal("select reported no change")
	}
	if sel := e.Selected(); sel == nil || sel.ID != text.ID {
		t.Fatalf("Selected() = %v", sel)
	}
	if !e.Dispatch(SelectElement{ElementID: text.ID}) {
		t.Fatal("reselect should toggle off")
	}
	if e.Selected() != nil {
		t.Fatal("selection should be cleared")
	}
	if e.HistoryLen() != length+2 {
		t.Fatalf("history len = %d, want %d", e.HistoryLen(), length+2)
	}

	e.Dispatch(SelectElement{ElementID: text.ID})
	e.Dispatch(Undo{})
	if e.Selected() != nil {
		t.Fatal("undo should restore the previous selection")
	}
}

func TestUpdateRefreshesOrClearsSelection(t *testing.T) {
	e := newTestEditor()
	ids := element.SequenceIDs("up")
	a := newElement(t, element.KindText, ids)
	b := newElement(t, element.KindText, ids)
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: a})
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: b})
	e.Dispatch(SelectElement{ElementID: a.ID})

	text := "updated"
	e.Dispatch(UpdateElement{ElementID: a.ID, Patch: tree.Patch{Leaf: &tree.LeafPatch{InnerText: &text}}})
	if sel := e.Selected(); sel == nil || sel.Text() != "updated" {
		t.Fatalf("selection not refreshed: %+v", sel)
	}

	e.Dispatch(UpdateElement{ElementID: b.ID, Patch: tree.Patch{Styles: map[string]string{"color": "red"}}})
	if e.Selected() != nil {
		t.Fatal("updating another element should clear the selection")
	}

	e.Dispatch(SelectElement{ElementID: a.ID})
	root := e.Root()
	if !e.Dispatch(UpdateElement{ElementID: b.ID, Patch: tree.Patch{Styles: map[string]string{"color": "red"}}}) {
		t.Fatal("an identical update of another element should still clear the selection")
	}
	if e.Selected() != nil || e.Root() != root {
		t.Fatalf("selected=%+v, tree replaced=%t", e.Selected(), e.Root() != root)
	}
	if e.Dispatch(UpdateElement{ElementID: "ghost", Patch: tree.Patch{Styles: map[string]string{"color": "red"}}}) {
		t.Fatal("a dangling update must change nothing")
	}
}

func TestDeleteSelection(t *testing.T) {
	e := newTestEditor()
	ids := element.SequenceIDs("d")
	box := newElement(t, element.KindContainer, ids)
	inner := newElement(t, element.KindText, ids)
	other := newElement(t, element.KindText, ids)
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: box})
	e.Dispatch(InsertElement{ParentID: box.ID, Element: inner})
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: other})

	e.Dispatch(SelectElement{ElementID: other.ID})
	e.Dispatch(DeleteElement{ElementID: inner.ID})
	if sel := e.Selected(); sel == nil || sel.ID != other.ID {
		t.Fatal("deleting a different element keeps the selection")
	}

	e.Dispatch(SelectElement{ElementID: box.ID})
	e.Dispatch(DeleteElement{ElementID: box.ID})
	if e.Snapshot().SelectedID != "" {
		t.Fatal("deleting the selected element clears the selection")
	}
}

func TestDeleteIsTransitive(t *testing.T) {
	e := newTestEditor()
	ids := element.SequenceIDs("x")
	outer := newElement(t, element.KindContainer, ids)
	two := newElement(t, element.KindTwoColumn, ids)
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: outer})
	e.Dispatch(InsertElement{ParentID: outer.ID, Element: two})
	e.Dispatch(InsertElement{ParentID: two.Children[0].ID, Element: newElement(t, element.KindText, ids)})

	removed := tree.IDs(tree.Find(e.Root(), outer.ID))
	if len(removed) != 5 {
		t.Fatalf("subtree size = %d, want 5", len(removed))
	}
	total := tree.Count(e.Root())
	e.Dispatch(DeleteElement{ElementID: outer.ID})
	if tree.Count(e.Root()) != total-len(removed) {
		t.Fatalf("count = %d, want %d", tree.Count(e.Root()), total-len(removed))
	}
	for _, id := range removed {
		if tree.Find(e.Root(), id) != nil {
			t.Fatalf("%s still present", id)
		}
	}
}

func TestDuplicate(t *testing.T) {
	e := newTestEditor()
	ids := element.SequenceIDs("dup")
	two := newElement(t, element.KindTwoColumn, ids)
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: two})

	if !e.Dispatch(DuplicateElement{ElementID: two.ID}) {
		t.Fatal("duplicate reported no change")
	}
	body := e.Root()
	if len(body.Children) != 2 {
		t.Fatalf("body children = %d, want 2", len(body.Children))
	}
	cp := body.Children[1]
	if cp.ID == two.ID || cp.Kind != element.KindTwoColumn || len(cp.Children) != 2 {
		t.Fatalf("copy = %+v", cp)
	}
	assertUniqueIDs(t, body)
}

func TestInsertCopiesCollidingElements(t *testing.T) {
	e := newTestEditor()
	fragment := newElement(t, element.KindTwoColumn, element.SequenceIDs("frag"))

	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: fragment})
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: fragment})
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: fragment, Copy: true})

	if got := len(e.Root().Children); got != 3 {
		t.Fatalf("body children = %d, want 3", got)
	}
	assertUniqueIDs(t, e.Root())
	if e.Root().Children[2].ID == fragment.ID {
		t.Fatal("copy insert must assign fresh ids")
	}
}

func TestModeTogglesStayOutOfHistory(t *testing.T) {
	e := newTestEditor()
	length := e.HistoryLen()

	if !e.Dispatch(ChangeDevice{Device: Mobile}) {
		t.Fatal("device change reported no change")
	}
	if e.Dispatch(ChangeDevice{Device: Mobile}) || e.Dispatch(ChangeDevice{Device: "Watch"}) {
		t.Fatal("same or unknown device is a no-op")
	}
	e.Dispatch(TogglePreview{})
	e.Dispatch(ToggleLive{})
	on := true
	if e.Dispatch(ToggleLive{Value: &on}) {
		t.Fatal("explicit live value equal to current is a no-op")
	}

	st := e.State()
	if st.Device != Mobile || !st.PreviewMode || !st.LiveMode {
		t.Fatalf("state = %+v", st)
	}
	if e.HistoryLen() != length {
		t.Fatalf("history len = %d, want %d", e.HistoryLen(), length)
	}

	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: newElement(t, element.KindText, nil)})
	e.Dispatch(Undo{})
	if e.State().Device != Mobile {
		t.Fatal("undo must not revert the device")
	}
}

func TestLoadTreeResetsHistory(t *testing.T) {
	e := newTestEditor()
	e.Dispatch(InsertElement{ParentID: element.BodyID, Element: newElement(t, element.KindText, nil)})
	e.Dispatch(SetPage{PageID: "page-1"})
	e.Dispatch(ChangeDevice{Device: Tablet})

	body := element.NewBody()
	body.Children = append(body.Children, newElement(t, element.KindVideo, element.SequenceIDs("v")))
	if !e.Dispatch(LoadTree{Root: body, Live: true}) {
		t.Fatal("load reported no change")
	}
	if e.HistoryLen() != 1 || e.Cursor() != 0 {
		t.Fatalf("history len=%d cursor=%d, want 1/0", e.HistoryLen(), e.Cursor())
	}
	st := e.State()
	if st.Root != body || !st.LiveMode || st.PageID != "" || st.Device != Desktop {
		t.Fatalf("state after load = %+v", st)
	}

	bad := element.NewBody()
	bad.Children = append(bad.Children, element.NewBody())
	if e.Dispatch(LoadTree{Root: bad}) {
		t.Fatal("malformed tree should be refused")
	}
	if e.Root() != body || !e.State().LiveMode {
		t.Fatal("a refused load must keep the current state")
	}

	e.Dispatch(LoadTree{PageID: "page-9"})
	assertBodyRoot(t, e.Root())
	if len(e.Root().Children) != 0 || e.State().PageID != "page-9" || e.CanUndo() {
		t.Fatalf("state after empty load = %+v", e.State())
	}
}

func TestSetPagePushesHistory(t *testing.T) {
	e := newTestEditor()
	if !e.Dispatch(SetPage{PageID: "p1"}) {
		t.Fatal("set page reported no change")
	}
	if e.State().PageID != "p1" || e.HistoryLen() != 2 {
		t.Fatalf("page=%s len=%d", e.State().PageID, e.HistoryLen())
	}
}

func TestInvariantsHoldUnderMixedSequence(t *testing.T) {
	e := newTestEditor()
	ids := element.SequenceIDs("mix")
	two := newElement(t, element.KindTwoColumn, ids)
	box := newElement(t, element.KindContainer, ids)
	text := newElement(t, element.KindText, ids)

	actions := []Action{
		InsertElement{ParentID: element.BodyID, Element: two},
		InsertElement{ParentID: element.BodyID, Element: box, Index: intPtr(0)},
		InsertElement{ParentID: two.Children[0].ID, Element: text},
		DuplicateElement{ElementID: two.ID, NewParentID: box.ID},
		MoveElement{ElementID: text.ID, SourceParentID: two.Children[0].ID, SourceIndex: 0, DestParentID: element.BodyID, DestIndex: 99},
		InsertElement{ParentID: box.ID, Element: two, Copy: true},
		DeleteElement{ElementID: element.BodyID},
		MoveElement{ElementID: element.BodyID, DestParentID: box.ID},
		Undo{},
		Undo{},
		Redo{},
		DuplicateElement{ElementID: box.ID},
		DeleteElement{ElementID: two.ID},
	}
	for i, a := range actions {
		e.Dispatch(a)
		assertBodyRoot(t, e.Root())
		assertUniqueIDs(t, e.Root())
		if err := tree.Validate(e.Root()); err != nil {
			t.Fatalf("after action %d (%s): Validate() error = %v", i, a.Type(), err)
		}
	}
}

func TestTraceSeesEveryDispatch(t *testing.T) {
	var seen []string
	e := New(WithTrace(func(actionType string, changed bool) {
		if changed {
			seen = append(seen, actionType)
		}
	}))
	e.Dispatch(TogglePreview{})
	e.Dispatch(Undo{})
	e.Dispatch(SetPage{PageID: "p"})
	if len(seen) != 2 || seen[0] != TypePreview || seen[1] != TypeSetPage {
		t.Fatalf("trace = %v", seen)
	}
}

func TestHistoryLimitOption(t *testing.T) {
	e := New(WithHistoryLimit(3))
	for _, page := range []string{"a", "b", "c", "d"} {
		e.Dispatch(SetPage{PageID: page})
	}
	if e.HistoryLen() != 3 {
		t.Fatalf("history len = %d, want 3", e.HistoryLen())
	}
}
