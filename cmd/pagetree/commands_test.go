package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/freddynasr/trailtailor/internal/element"
)

const sampleTree = `[{"id":"__body","name":"Body","type":"__body","styles":{},"content":[
  {"id":"box","name":"Container","type":"container","styles":{},"content":[
    {"id":"hello","name":"Text","type":"text","styles":{},"content":{"innerText":"Hello"}}
  ]}
]}]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateAndOutline(t *testing.T) {
	dir := t.TempDir()
	treePath := writeFile(t, dir, "tree.json", sampleTree)

	out, _, err := run(t, "validate", treePath)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if strings.TrimSpace(out) != "ok: 3 elements" {
		t.Fatalf("validate output = %q", out)
	}

	out, _, err = run(t, "outline", treePath)
	if err != nil {
		t.Fatalf("outline error = %v", err)
	}
	want := "__body \"Body\" (__body)\n  container \"Container\" (box)\n    text \"Text\" (hello)\n"
	if out != want {
		t.Fatalf("outline output:\n%s\nwant:\n%s", out, want)
	}
}

func TestValidateRejectsBadTrees(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"empty.json":     `[]`,
		"duplicate.json": `[{"id":"__body","name":"Body","type":"__body","styles":{},"content":[{"id":"a","name":"T","type":"text","styles":{},"content":{"innerText":"x"}},{"id":"a","name":"T","type":"text","styles":{},"content":{"innerText":"y"}}]}]`,
		"garbage.json":   `{nope`,
	}
	for name, content := range tests {
		if _, _, err := run(t, "validate", writeFile(t, dir, name, content)); err == nil {
			t.Fatalf("validate %s: expected an error", name)
		}
	}
}

func TestApplyReplaysYAMLScript(t *testing.T) {
	dir := t.TempDir()
	treePath := writeFile(t, dir, "tree.json", sampleTree)
	script := writeFile(t, dir, "actions.yaml", `
- type: ADD_ELEMENT
  payload:
    containerId: box
    kind: link
- type: DELETE_ELEMENT
  payload:
    elementId: hello
- type: DELETE_ELEMENT
  payload:
    elementId: missing
`)

	out, errOut, err := run(t, "apply", "--id-prefix", "new", treePath, script)
	if err != nil {
		t.Fatalf("apply error = %v", err)
	}
	root, err := element.DecodeTree([]byte(out))
	if err != nil || root == nil {
		t.Fatalf("apply output is not a tree: %v\n%s", err, out)
	}
	box := root.Children[0]
	if len(box.Children) != 1 || box.Children[0].ID != "new-1" || box.Children[0].Kind != element.KindLink {
		t.Fatalf("box children = %+v", box.Children)
	}
	if !strings.Contains(errOut, "action 3 (DELETE_ELEMENT) changed nothing") {
		t.Fatalf("stderr = %q", errOut)
	}
	if !strings.Contains(errOut, "applied 2 of 3 actions, history 3/3") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestApplyReadsJSONScript(t *testing.T) {
	dir := t.TempDir()
	treePath := writeFile(t, dir, "tree.json", sampleTree)
	script := writeFile(t, dir, "actions.json", `[{"type":"EXPLODE"}]`)
	if _, _, err := run(t, "apply", treePath, script); err == nil || !strings.Contains(err.Error(), "action 1") {
		t.Fatalf("apply with unknown action error = %v", err)
	}
}

func TestNewPrintsFactoryElement(t *testing.T) {
	out, _, err := run(t, "new", "text", "--id-prefix", "t")
	if err != nil {
		t.Fatalf("new error = %v", err)
	}
	var el element.Element
	if err := json.Unmarshal([]byte(out), &el); err != nil {
		t.Fatalf("new output = %s: %v", out, err)
	}
	if el.ID != "t-1" || el.Kind != element.KindText || el.Text() != "Text Element" {
		t.Fatalf("new element = %+v", el)
	}

	if _, _, err := run(t, "new", "carousel"); err == nil {
		t.Fatal("new carousel: expected an error")
	}
}
