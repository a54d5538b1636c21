package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// DependencyNode is one issue in a dependency tree. Cycle marks a node
// repeated to cut a dependency loop; its children are not expanded.
type DependencyNode struct {
	ID       string
	Title    string
	Cycle    bool
	Children []*DependencyNode
}

func (n *DependencyNode) label() string {
	label := n.ID
	if n.Title != "" {
		label = fmt.Sprintf("%s  %s", n.ID, TruncateSimple(n.Title, 48))
	}
	if n.Cycle {
		label += " " + RenderWarn("(cycle)")
	}
	return label
}

// BuildDependencyTree constructs a lipgloss/tree for a dependency graph
func BuildDependencyTree(root *DependencyNode) *tree.Tree {
	if root == nil {
		return nil
	}

	t := tree.New().Root(root.label())
	t.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
	t.RootStyle(lipgloss.NewStyle().Bold(true).Foreground(ColorAccent))

	var add func(parent *tree.Tree, node *DependencyNode)
	add = func(parent *tree.Tree, node *DependencyNode) {
		child := tree.New().Root(node.label())
		child.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
		parent.Child(child)
		for _, c := range node.Children {
			add(child, c)
		}
	}
	for _, c := range root.Children {
		add(t, c)
	}
	return t
}

// RenderDependencyTree renders a dependency graph using lipgloss/tree
func RenderDependencyTree(root *DependencyNode) string {
	t := BuildDependencyTree(root)
	if t == nil {
		return TableHintStyle.Render("No dependencies.")
	}
	return t.String()
}
