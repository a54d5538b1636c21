package utils

import "testing"

func TestComputeDistance(t *testing.T) {
	tests := []struct {
		s1, s2 string
		want   int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"login", "login", 0},
		{"Login", "login", 0}, // case-insensitive
		{"logn", "login", 1},
		{"milestone", "milestones", 1},
	}
	for _, tt := range tests {
		if got := ComputeDistance(tt.s1, tt.s2); got != tt.want {
			t.Errorf("ComputeDistance(%q, %q) = %d, want %d", tt.s1, tt.s2, got, tt.want)
		}
	}
}

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		source, target string
		want           bool
	}{
		{"lgn", "login", true},
		{"login", "login", true},
		{"LGN", "login", true}, // case-insensitive
		{"nlg", "login", false},
		{"", "anything", true},
		{"abc", "", false},
		{"rm1", "rm-1", true},
	}
	for _, tt := range tests {
		if got := FuzzyMatch(tt.source, tt.target); got != tt.want {
			t.Errorf("FuzzyMatch(%q, %q) = %v, want %v", tt.source, tt.target, got, tt.want)
		}
	}
}

func TestClosestMatch(t *testing.T) {
	candidates := []string{"sync", "init", "issue", "milestone"}

	if got := ClosestMatch("syncc", candidates, 2); got != "sync" {
		t.Errorf("ClosestMatch(syncc) = %q, want sync", got)
	}
	if got := ClosestMatch("milstone", candidates, 2); got != "milestone" {
		t.Errorf("ClosestMatch(milstone) = %q, want milestone", got)
	}
	// Too far from everything.
	if got := ClosestMatch("zzzzzz", candidates, 2); got != "" {
		t.Errorf("ClosestMatch(zzzzzz) = %q, want empty", got)
	}
	// Exact hits are distance zero.
	if got := ClosestMatch("issue", candidates, 0); got != "issue" {
		t.Errorf("ClosestMatch(issue) = %q, want issue", got)
	}
}
