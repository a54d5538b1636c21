// Package dedup finds duplicate issues within one side (self-dedup) and
// across the local/remote boundary (cross-matching). Self-dedup runs
// first so a 20-way title collision on each side costs 20 unions, not
// 400 cross pairs.
package dedup

import "github.com/untoldecay/roadmap/internal/debug"

// DisjointSet is a union-find over string keys: parent and rank maps
// with path compression and union by rank. Insertion order is retained
// so representative selection is deterministic for a given input.
type DisjointSet struct {
	parent map[string]string
	rank   map[string]int
	order  []string
}

// NewDisjointSet returns an empty partition.
func NewDisjointSet() *DisjointSet {
	return &DisjointSet{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// Add inserts x as a singleton. Re-adding a known key is a no-op.
func (d *DisjointSet) Add(x string) {
	if _, ok := d.parent[x]; ok {
		return
	}
	d.parent[x] = x
	d.rank[x] = 0
	d.order = append(d.order, x)
}

// Find returns the root of x's class, compressing the path behind it.
// Unknown keys are added as singletons first.
func (d *DisjointSet) Find(x string) string {
	if _, ok := d.parent[x]; !ok {
		d.Add(x)
		return x
	}
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		d.parent[x], x = root, d.parent[x]
	}
	return root
}

// Union merges the classes of a and b by rank.
func (d *DisjointSet) Union(a, b string) {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}
}

// Representatives returns one member per class, in insertion order.
// The member returned for a class is its first-inserted key, not
// necessarily the union-find root.
func (d *DisjointSet) Representatives() []string {
	seen := make(map[string]bool, len(d.order))
	reps := make([]string, 0, len(d.order))
	for _, x := range d.order {
		root := d.Find(x)
		if seen[root] {
			continue
		}
		seen[root] = true
		reps = append(reps, x)
	}
	return reps
}

// Groups returns every class keyed by its root, members in insertion
// order.
func (d *DisjointSet) Groups() map[string][]string {
	groups := make(map[string][]string)
	for _, x := range d.order {
		root := d.Find(x)
		groups[root] = append(groups[root], x)
	}
	return groups
}

// Size returns the number of keys in the partition.
func (d *DisjointSet) Size() int { return len(d.order) }

// logReduction emits the aggregate dedup counters.
func logReduction(side string, stats SelfDedupStats) {
	ratio := 1.0
	if stats.Input > 0 {
		ratio = float64(stats.Canonical) / float64(stats.Input)
	}
	debug.Logf("dedup: %s self-dedup %d -> %d (ratio %.2f, title=%d id=%d fuzzy=%d)",
		side, stats.Input, stats.Canonical, ratio,
		stats.TitleMatches, stats.IDCollisions, stats.SimilarityMatches)
}
