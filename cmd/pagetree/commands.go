package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/freddynasr/trailtailor/internal/editor"
	"github.com/freddynasr/trailtailor/internal/element"
	"github.com/freddynasr/trailtailor/internal/tree"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pagetree",
		Short:         "Inspect and edit serialized page trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCommand())
	root.AddCommand(newOutlineCommand())
	root.AddCommand(newApplyCommand())
	root.AddCommand(newNewCommand())
	return root
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <tree.json>",
		Short: "Check that a file holds a well-formed page tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loadTree(args[0])
			if err != nil {
				return err
			}
			if err := tree.Validate(root); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d elements\n", tree.Count(root))
			return nil
		},
	}
}

func newOutlineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "outline <tree.json>",
		Short: "Print the tree as an indented list of elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loadTree(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tree.Walk(root, func(el *element.Element, depth int) bool {
				fmt.Fprintf(out, "%s%s %q (%s)\n", strings.Repeat("  ", depth), el.Kind, el.Name, el.ID)
				return true
			})
			return nil
		},
	}
}

func newApplyCommand() *cobra.Command {
	var idPrefix string
	cmd := &cobra.Command{
		Use:   "apply <tree.json> <actions.yaml>",
		Short: "Replay wire actions against a tree and print the result",
		Long: `Replay a list of wire actions against a tree and print the resulting tree.

The action file is a YAML or JSON list of {type, payload} objects, the same
form the editing API accepts. Actions that change nothing are reported and
skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loadTree(args[0])
			if err != nil {
				return err
			}
			if err := tree.Validate(root); err != nil {
				return err
			}
			actions, err := loadActions(args[1], element.SequenceIDs(idPrefix))
			if err != nil {
				return err
			}

			ed := editor.New(editor.WithIDGenerator(element.SequenceIDs(idPrefix + "-copy")))
			ed.Dispatch(editor.LoadTree{Root: root})
			changed := 0
			for i, action := range actions {
				if ed.Dispatch(action) {
					changed++
					continue
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "action %d (%s) changed nothing\n", i+1, action.Type())
			}

			encoded, err := element.EncodeTree(ed.Root())
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, encoded, "", "  "); err != nil {
				return fmt.Errorf("format tree: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, pretty.String())
			fmt.Fprintf(cmd.ErrOrStderr(), "applied %d of %d actions, history %d/%d\n", changed, len(actions), ed.Cursor()+1, ed.HistoryLen())
			return nil
		},
	}
	cmd.Flags().StringVar(&idPrefix, "id-prefix", "el", "Prefix for ids given to new elements")
	return cmd
}

func newNewCommand() *cobra.Command {
	var idPrefix string
	cmd := &cobra.Command{
		Use:   "new <kind>",
		Short: "Print a new element of the given kind with its default content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newID := element.NewID
			if idPrefix != "" {
				newID = element.SequenceIDs(idPrefix)
			}
			el, err := element.New(element.Kind(args[0]), newID)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(el, "", "  ")
			if err != nil {
				return fmt.Errorf("encode element: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&idPrefix, "id-prefix", "", "Use sequential ids with this prefix instead of random ones")
	return cmd
}

func loadTree(path string) (*element.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}
	root, err := element.DecodeTree(data)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%s holds no tree", path)
	}
	return root, nil
}

// loadActions reads a list of wire actions. YAML is a superset of JSON, so
// both file forms go through the YAML decoder.
func loadActions(path string, newID element.IDFunc) ([]editor.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read actions: %w", err)
	}
	var items []map[string]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse actions: %w", err)
	}

	actions := make([]editor.Action, 0, len(items))
	for i, item := range items {
		wire, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
		action, err := editor.DecodeAction(wire, newID)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}
