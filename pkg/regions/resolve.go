package regions

import (
	"net/netip"
	"sort"
)

// Assignment is a resolved, final (prefix, region) entry. Across one
// resolution the assignments are mutually disjoint, regardless of region.
type Assignment struct {
	Prefix netip.Prefix
	Region string
}

// Resolve assigns every claimed address to exactly one region, most specific
// claim first. A less specific claim keeps only the part of its range no
// earlier claim took; carving that part out is reported as a SplitEvent.
// Identical claims from different regions are a tie, broken toward the
// lowest region tag and reported as a TieBreakEvent.
//
// The union of the returned assignments always equals the union of the
// claims: a claim is either emitted (possibly in fragments) or completely
// covered by more specific ones already emitted.
func Resolve(claims []Claim) ([]Assignment, []SplitEvent, []TieBreakEvent) {
	sorted := make([]Claim, len(claims))
	copy(sorted, claims)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Prefix.Addr().Is4() != b.Prefix.Addr().Is4() {
			return a.Prefix.Addr().Is4()
		}
		if a.Prefix.Bits() != b.Prefix.Bits() {
			return a.Prefix.Bits() > b.Prefix.Bits()
		}
		if c := a.Prefix.Addr().Compare(b.Prefix.Addr()); c != 0 {
			return c < 0
		}
		return a.Region < b.Region
	})

	var assigned []Assignment
	claimed := make(map[netip.Prefix]string)
	var splits []SplitEvent
	var ties []TieBreakEvent

	for _, claim := range sorted {
		// Ties are keyed on the claimed prefix, not on what was emitted
		// for it: a tie still applies when the winning claim was split or
		// fully subsumed by more specific ones.
		if winner, ok := claimed[claim.Prefix]; ok {
			if winner != claim.Region {
				ties = append(ties, TieBreakEvent{
					Prefix: claim.Prefix,
					Winner: winner,
					Loser:  claim.Region,
				})
			}
			// Exact duplicate either way: nothing left to emit.
			continue
		}
		claimed[claim.Prefix] = claim.Region

		// Everything already assigned that intersects this claim is at
		// least as specific, so each intersecting entry is a hole fully
		// inside the claim.
		var holes []Assignment
		for _, a := range assigned {
			if a.Prefix.Overlaps(claim.Prefix) {
				holes = append(holes, a)
			}
		}

		holePrefixes := make([]netip.Prefix, len(holes))
		for i, h := range holes {
			holePrefixes[i] = h.Prefix
		}
		frags := excludeAll(claim.Prefix, holePrefixes)
		if len(frags) == 0 {
			// Fully subsumed by more specific claims.
			continue
		}
		sort.Slice(frags, func(i, j int) bool { return addrLess(frags[i], frags[j]) })

		if len(holes) > 0 {
			splits = append(splits, SplitEvent{
				Region:    claim.Region,
				Original:  claim.Prefix,
				Holes:     holes,
				Fragments: frags,
			})
		}
		for _, f := range frags {
			assigned = append(assigned, Assignment{Prefix: f, Region: claim.Region})
		}
	}
	return assigned, splits, ties
}
