package dedup

import (
	"fmt"
	"reflect"
	"testing"
)

func TestDisjointSetBasics(t *testing.T) {
	ds := NewDisjointSet()
	ds.Add("a")
	ds.Add("b")
	ds.Add("c")

	if ds.Find("a") == ds.Find("b") {
		t.Error("fresh singletons share a root")
	}
	ds.Union("a", "b")
	if ds.Find("a") != ds.Find("b") {
		t.Error("Union(a, b) did not merge the classes")
	}
	if ds.Find("a") == ds.Find("c") {
		t.Error("Union(a, b) leaked into c")
	}
	if ds.Size() != 3 {
		t.Errorf("Size() = %d, want 3", ds.Size())
	}
}

func TestDisjointSetFindAddsUnknownKeys(t *testing.T) {
	ds := NewDisjointSet()
	if got := ds.Find("ghost"); got != "ghost" {
		t.Errorf("Find(unknown) = %q, want the key itself", got)
	}
	if ds.Size() != 1 {
		t.Errorf("Size() = %d after Find on unknown key, want 1", ds.Size())
	}
}

func TestDisjointSetTransitiveUnion(t *testing.T) {
	ds := NewDisjointSet()
	for _, k := range []string{"a", "b", "c", "d"} {
		ds.Add(k)
	}
	ds.Union("a", "b")
	ds.Union("c", "d")
	ds.Union("b", "c")

	root := ds.Find("a")
	for _, k := range []string{"b", "c", "d"} {
		if ds.Find(k) != root {
			t.Errorf("Find(%q) = %q, want %q after chained unions", k, ds.Find(k), root)
		}
	}
}

func TestRepresentativesInsertionOrder(t *testing.T) {
	ds := NewDisjointSet()
	for _, k := range []string{"e", "a", "c", "b", "d"} {
		ds.Add(k)
	}
	ds.Union("a", "d") // class keeps first-inserted member "a"
	ds.Union("c", "e") // class keeps first-inserted member "e"

	got := ds.Representatives()
	want := []string{"e", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Representatives() = %v, want %v", got, want)
	}
}

func TestGroups(t *testing.T) {
	ds := NewDisjointSet()
	for _, k := range []string{"a", "b", "c"} {
		ds.Add(k)
	}
	ds.Union("a", "c")

	groups := ds.Groups()
	if len(groups) != 2 {
		t.Fatalf("Groups() has %d classes, want 2", len(groups))
	}
	var pair []string
	for _, members := range groups {
		if len(members) == 2 {
			pair = members
		}
	}
	if !reflect.DeepEqual(pair, []string{"a", "c"}) {
		t.Errorf("merged class = %v, want [a c] in insertion order", pair)
	}
}

func TestUnionByRankStaysFlat(t *testing.T) {
	ds := NewDisjointSet()
	n := 1000
	for i := 0; i < n; i++ {
		ds.Add(fmt.Sprintf("k%d", i))
	}
	for i := 1; i < n; i++ {
		ds.Union("k0", fmt.Sprintf("k%d", i))
	}
	root := ds.Find("k0")
	for i := 0; i < n; i++ {
		if ds.Find(fmt.Sprintf("k%d", i)) != root {
			t.Fatalf("k%d not in the merged class", i)
		}
	}
	if got := len(ds.Representatives()); got != 1 {
		t.Errorf("Representatives() = %d classes, want 1", got)
	}
}
