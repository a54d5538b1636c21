package utils

// ClosestMatch returns the candidate with the smallest edit distance
// to input, provided the distance is within maxDistance. Ties keep the
// earliest candidate. Returns "" when nothing qualifies.
func ClosestMatch(input string, candidates []string, maxDistance int) string {
	best := ""
	bestDist := maxDistance + 1
	for _, c := range candidates {
		if d := ComputeDistance(input, c); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}
