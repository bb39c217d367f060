package businessflow

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/amirphl/lead-exchange/models"
)

// Candidate is an eligible advertiser together with the routing terms that made it eligible
type Candidate struct {
	Advertiser *models.Advertiser
	Weight     int
	Priority   models.PriorityType
	Scope      models.CapScope
	DailyCap   int
	HourlyCap  *int
}

// WeightedSelector draws one candidate proportionally to weight and derives a failover order
type WeightedSelector struct {
	intn func(n int) int
}

// NewWeightedSelector creates a selector. A nil intn uses math/rand/v2.
func NewWeightedSelector(intn func(n int) int) *WeightedSelector {
	if intn == nil {
		intn = rand.IntN
	}
	return &WeightedSelector{intn: intn}
}

// Select returns the index of the drawn candidate, or -1 for an empty tier.
// A single candidate is returned without drawing.
func (s *WeightedSelector) Select(candidates []Candidate) int {
	switch len(candidates) {
	case 0:
		return -1
	case 1:
		return 0
	}

	total := 0
	for _, c := range candidates {
		total += max(c.Weight, 0)
	}
	if total <= 0 {
		return s.intn(len(candidates))
	}

	draw := s.intn(total)
	cumulative := 0
	for i, c := range candidates {
		cumulative += max(c.Weight, 0)
		if draw < cumulative {
			return i
		}
	}
	return len(candidates) - 1
}

// Order returns the failover order of a tier: the drawn candidate first, then the
// remaining candidates by descending weight, ties kept in input order.
func (s *WeightedSelector) Order(candidates []Candidate) []Candidate {
	picked := s.Select(candidates)
	if picked < 0 {
		return nil
	}

	rest := make([]Candidate, 0, len(candidates)-1)
	rest = append(rest, candidates[:picked]...)
	rest = append(rest, candidates[picked+1:]...)
	slices.SortStableFunc(rest, func(a, b Candidate) int {
		return cmp.Compare(b.Weight, a.Weight)
	})

	return append([]Candidate{candidates[picked]}, rest...)
}
