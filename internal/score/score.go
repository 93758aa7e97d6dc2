package score

import (
	"math"
	"sort"

	"github.com/bigbrainhq/bigbrain/internal/domain"
)

// Score grades a submission against the question's answer key.
//
// Comparison is case-sensitive on the canonical order-independent form of
// both sides: a single or boolean answer must equal the one correct value,
// a multiple answer must match the correct set exactly, with no partial
// credit. An empty submission is always incorrect.
//
// A correct answer earns max(1, round((timeLimit-elapsed)/2)) points, so
// faster answers earn more with a floor of one point. Incorrect or missing
// answers earn zero. elapsed is in seconds.
func Score(q domain.Question, submitted []string, elapsed float64) (correct bool, points int) {
	if len(submitted) == 0 {
		return false, 0
	}

	if !equalSets(submitted, q.CorrectValues()) {
		return false, 0
	}

	return true, Points(q.TimeLimit, elapsed)
}

// Points computes the award for a correct answer.
func Points(timeLimit int, elapsed float64) int {
	p := int(math.Round((float64(timeLimit) - elapsed) / 2))
	if p < 1 {
		return 1
	}
	return p
}

// equalSets compares two value lists order-independently. Duplicates within
// a submission collapse, matching the canonical-set comparison rule.
func equalSets(a, b []string) bool {
	as, bs := canonical(a), canonical(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func canonical(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
