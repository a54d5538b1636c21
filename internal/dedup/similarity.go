package dedup

import "strings"

// Normalize lowercases s and collapses internal whitespace runs to
// single spaces. Every similarity comparison runs on normalized input.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Ratio is the Ratcliff-Obershelp similarity of two strings in [0,1]:
// twice the total matched characters over the combined length. Two
// empty strings are identical (1.0).
func Ratio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 && len(br) == 0 {
		return 1.0
	}
	if len(ar) == 0 || len(br) == 0 {
		return 0.0
	}
	matched := matchTotal(ar, br)
	return 2.0 * float64(matched) / float64(len(ar)+len(br))
}

// matchTotal counts matching characters: the longest common substring,
// plus recursively whatever matches to its left and right.
func matchTotal(a, b []rune) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchTotal(a[:ai], b[:bi])
	total += matchTotal(a[ai+size:], b[bi+size:])
	return total
}

// longestCommonSubstring finds the first maximal common run, scanning
// left to right so ties resolve to the earliest positions.
func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			if a[i] != b[j] {
				cur[j+1] = 0
				continue
			}
			cur[j+1] = prev[j] + 1
			if cur[j+1] > size {
				size = cur[j+1]
				ai = i - size + 1
				bi = j - size + 1
			}
		}
		prev, cur = cur, prev
		for j := range cur {
			cur[j] = 0
		}
	}
	return ai, bi, size
}

// bucketKey is the coarse fuzzy-matching bucket: the first three runes
// of the normalized title. Shorter titles bucket whole.
func bucketKey(normalizedTitle string) string {
	runes := []rune(normalizedTitle)
	if len(runes) <= 3 {
		return normalizedTitle
	}
	return string(runes[:3])
}
