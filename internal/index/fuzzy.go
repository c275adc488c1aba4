package index

import "unicode/utf8"

// tokenMatches reports whether an index token matches a query token:
// exact match, prefix in either direction, or edit distance within maxDist.
func tokenMatches(indexToken, queryToken string, maxDist int) bool {
	if indexToken == queryToken {
		return true
	}
	if len(indexToken) < len(queryToken) {
		if indexToken == queryToken[:len(indexToken)] {
			return true
		}
	} else if queryToken == indexToken[:len(queryToken)] {
		return true
	}
	if maxDist == 0 {
		return false
	}
	return withinEditDistance(indexToken, queryToken, maxDist)
}

// editBudget returns the edit-distance budget for a query token at the
// given fuzziness ratio: floor(fuzziness * len(token)) in runes.
func editBudget(queryToken string, fuzziness float64) int {
	return int(fuzziness * float64(utf8.RuneCountInString(queryToken)))
}

// withinEditDistance reports whether the Levenshtein distance between a
// and b (insert/delete/substitute) is at most maxDist. It runs a banded
// dynamic program over runes and bails out as soon as a full row exceeds
// the budget.
func withinEditDistance(a, b string, maxDist int) bool {
	ra := []rune(a)
	rb := []rune(b)

	// Length difference alone is a lower bound on the distance.
	diff := len(ra) - len(rb)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxDist {
		return false
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			ins := curr[j-1] + 1
			del := prev[j] + 1
			sub := prev[j-1] + cost
			min := ins
			if del < min {
				min = del
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
			if min < rowMin {
				rowMin = min
			}
		}
		if rowMin > maxDist {
			return false
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)] <= maxDist
}
