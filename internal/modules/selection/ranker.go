package selection

import "sort"

// Rank orders candidates by proximity to the desired score.
//
// Candidates at or above desired come first in ascending order (smallest qualifying
// move first), followed by the shortfall bucket in descending order (closest from
// below first). Equal scores fall back to symbol order.
func Rank(candidates []Candidate, desired float64) []Candidate {
	qualifying := make([]Candidate, 0, len(candidates))
	shortfall := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		if c.Score >= desired {
			qualifying = append(qualifying, c)
		} else {
			shortfall = append(shortfall, c)
		}
	}

	sortAscending(qualifying)
	sortDescending(shortfall)

	return append(qualifying, shortfall...)
}

func sortAscending(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score < cs[j].Score
		}
		return cs[i].Symbol < cs[j].Symbol
	})
}

func sortDescending(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Symbol < cs[j].Symbol
	})
}
