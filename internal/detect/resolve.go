package detect

import (
	"sort"

	"github.com/mj1618/findclose/internal/model"
)

// Rank sorts valid evaluations by priority, then ad context, compactness,
// corner position and tag preference, all descending. The sort is stable so
// equal candidates keep discovery order.
func Rank(evs []Evaluation) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if a.Verdict.Priority != b.Verdict.Priority {
			return a.Verdict.Priority > b.Verdict.Priority
		}
		if a.Signals.IsAdContext != b.Signals.IsAdContext {
			return a.Signals.IsAdContext
		}
		if a.Signals.IsCompact != b.Signals.IsCompact {
			return a.Signals.IsCompact
		}
		if a.Signals.IsCornerPositioned != b.Signals.IsCornerPositioned {
			return a.Signals.IsCornerPositioned
		}
		return model.TagPreference(a.Element) > model.TagPreference(b.Element)
	})
}

// Resolve greedily accepts ranked candidates that are neither an ancestor
// nor a descendant of an already accepted one, so the result is an antichain
// of the containment tree.
func Resolve(ranked []*model.Element) []*model.Element {
	var accepted []*model.Element
	for _, el := range ranked {
		overlaps := false
		for _, t := range accepted {
			if t.Contains(el) || el.Contains(t) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, el)
		}
	}
	return accepted
}
