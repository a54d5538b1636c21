package main

import (
	"reflect"
	"testing"
)

func TestDependencyPath(t *testing.T) {
	graph := map[string][]string{
		"rm-1": {"rm-2"},
		"rm-2": {"rm-3"},
		"rm-3": nil,
		"rm-4": {"rm-2"},
	}

	cases := []struct {
		from, to string
		want     []string
	}{
		{"rm-1", "rm-3", []string{"rm-1", "rm-2", "rm-3"}},
		{"rm-4", "rm-3", []string{"rm-4", "rm-2", "rm-3"}},
		{"rm-3", "rm-1", nil},
		{"rm-1", "rm-4", nil},
		{"rm-1", "rm-1", []string{"rm-1"}},
	}
	for _, c := range cases {
		got := dependencyPath(graph, c.from, c.to)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("dependencyPath(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestDependencyPathSurvivesCycles(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"a", "c"},
		"c": nil,
	}
	got := dependencyPath(graph, "a", "c")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("dependencyPath(a, c) = %v", got)
	}
	if dependencyPath(graph, "c", "a") != nil {
		t.Fatalf("expected no path from c")
	}
}

func TestBuildDepNodeMarksCycles(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	titles := map[string]string{"a": "first", "b": "second"}

	root := buildDepNode("a", graph, titles, map[string]bool{})
	if root.Cycle {
		t.Fatalf("root should not be a cycle node")
	}
	if len(root.Children) != 1 || root.Children[0].ID != "b" {
		t.Fatalf("unexpected children: %+v", root.Children)
	}
	back := root.Children[0].Children
	if len(back) != 1 || !back[0].Cycle {
		t.Fatalf("expected the back-edge to a to be marked as a cycle, got %+v", back)
	}
	if len(back[0].Children) != 0 {
		t.Fatalf("cycle nodes must not expand further")
	}
}

func TestBuildDepNodeDiamondIsNotACycle(t *testing.T) {
	graph := map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
	}

	root := buildDepNode("a", graph, nil, map[string]bool{})
	if len(root.Children) != 2 {
		t.Fatalf("expected two children, got %d", len(root.Children))
	}
	for _, child := range root.Children {
		if len(child.Children) != 1 || child.Children[0].ID != "d" {
			t.Fatalf("expected d under %s, got %+v", child.ID, child.Children)
		}
		if child.Children[0].Cycle {
			t.Fatalf("shared dependency d is not a cycle")
		}
	}
}
