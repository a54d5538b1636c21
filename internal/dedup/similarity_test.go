package dedup

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Fix Login Bug", "fix login bug"},
		{"  Fix   Login\tBug  ", "fix login bug"},
		{"FIX LOGIN BUG", "fix login bug"},
		{"", ""},
		{"   ", ""},
		{"one\nline", "one line"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1.0},
		{"abc", "", 0.0},
		{"", "abc", 0.0},
		{"abc", "abc", 1.0},
		{"fix login bug", "fix login bug", 1.0},
		// Classic Ratcliff-Obershelp example: matches "bcd" -> 2*3/8.
		{"abcd", "bcde", 0.75},
		{"abc", "xyz", 0.0},
	}
	for _, tt := range tests {
		if got := Ratio(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"fix login bug", "fix the login bug"},
		{"abcd", "bcde"},
		{"issue 1", "issue 10"},
	}
	for _, p := range pairs {
		ab := Ratio(p[0], p[1])
		ba := Ratio(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v but Ratio(%q, %q) = %v", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestRatioBounds(t *testing.T) {
	pairs := [][2]string{
		{"short", "a much longer title about something else"},
		{"update dependencies", "update dependency versions"},
		{"a", "b"},
	}
	for _, p := range pairs {
		got := Ratio(p[0], p[1])
		if got < 0.0 || got > 1.0 {
			t.Errorf("Ratio(%q, %q) = %v, out of [0, 1]", p[0], p[1], got)
		}
	}
}

// Numbered siblings land above the 0.90 fuzzy threshold, which is why
// fuzzy matching defaults off.
func TestRatioNumberedSiblings(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"issue 1", "issue 10", 14.0 / 15.0},          // 0.933...
		{"issue 0", "issue 1", 12.0 / 14.0},           // 0.857...
		{"unique issue 0", "unique issue 1", 26.0 / 28.0}, // 0.928...
	}
	for _, tt := range tests {
		if got := Ratio(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRatioUnicode(t *testing.T) {
	// Rune counting, not byte counting: identical multibyte strings match fully.
	if got := Ratio("héllo", "héllo"); got != 1.0 {
		t.Errorf("Ratio(héllo, héllo) = %v, want 1.0", got)
	}
	// "déjà" vs "deja": no common substring of multibyte runes beyond
	// single letters; just confirm the result stays in range.
	got := Ratio("déjà vu", "deja vu")
	if got < 0.0 || got > 1.0 {
		t.Errorf("Ratio with multibyte runes = %v, out of [0, 1]", got)
	}
}

func TestBucketKey(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Fix Login Bug", "fix"},
		{"fix login bug", "fix"},
		{"ab", "ab"},
		{"", ""},
		{"  Fixed  ", "fix"},
	}
	for _, tt := range tests {
		if got := bucketKey(tt.title); got != tt.want {
			t.Errorf("bucketKey(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestLongestCommonSubstring(t *testing.T) {
	tests := []struct {
		a, b             string
		wantLen          int
		wantAStart       int
		wantBStart       int
	}{
		{"abcd", "bcde", 3, 1, 0},
		{"abc", "xyz", 0, 0, 0},
		{"same", "same", 4, 0, 0},
		// Ties resolve to the first maximal occurrence in a.
		{"abxab", "ab", 2, 0, 0},
	}
	for _, tt := range tests {
		aStart, bStart, length := longestCommonSubstring([]rune(tt.a), []rune(tt.b))
		if length != tt.wantLen || aStart != tt.wantAStart || bStart != tt.wantBStart {
			t.Errorf("longestCommonSubstring(%q, %q) = (%d, %d, %d), want (%d, %d, %d)",
				tt.a, tt.b, aStart, bStart, length, tt.wantAStart, tt.wantBStart, tt.wantLen)
		}
	}
}
