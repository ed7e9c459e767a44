package regions

import (
	"fmt"
	"net/netip"
	"sort"
)

// RegionSet is one region's final output: minimal, disjoint CIDR sets per
// address family, sorted by address.
type RegionSet struct {
	V4 []netip.Prefix
	V6 []netip.Prefix
}

func (s RegionSet) Total() int {
	return len(s.V4) + len(s.V6)
}

// Aggregate merges a disjoint, single-family prefix set into the unique
// minimal equivalent cover: siblings collapse into their parent until no
// merge applies. Overlapping input means the resolver's disjointness
// guarantee was broken upstream; that is an engine defect and is returned as
// an error rather than papered over by re-merging.
func Aggregate(prefixes []netip.Prefix) ([]netip.Prefix, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}
	sorted := make([]netip.Prefix, len(prefixes))
	copy(sorted, prefixes)
	sort.Slice(sorted, func(i, j int) bool { return addrLess(sorted[i], sorted[j]) })

	var out []netip.Prefix
	for _, p := range sorted {
		if len(out) > 0 && out[len(out)-1].Overlaps(p) {
			return nil, fmt.Errorf("overlapping entries %s and %s in resolved set", out[len(out)-1], p)
		}
		out = append(out, p)
		for len(out) >= 2 {
			a, b := out[len(out)-2], out[len(out)-1]
			if a.Bits() != b.Bits() || a.Bits() == 0 {
				break
			}
			parent := netip.PrefixFrom(a.Addr(), a.Bits()-1).Masked()
			if parent.Addr() != a.Addr() || !parent.Contains(b.Addr()) {
				break
			}
			out = append(out[:len(out)-2], parent)
		}
	}
	return out, nil
}

// BuildSets groups assignments by region and aggregates each region's
// address families independently. Merging never crosses a region boundary:
// regions are mutually exclusive policy domains and a cross-region merge
// would undo the resolution.
func BuildSets(assignments []Assignment) (map[string]RegionSet, error) {
	v4 := make(map[string][]netip.Prefix)
	v6 := make(map[string][]netip.Prefix)
	for _, a := range assignments {
		if a.Prefix.Addr().Is4() {
			v4[a.Region] = append(v4[a.Region], a.Prefix)
		} else {
			v6[a.Region] = append(v6[a.Region], a.Prefix)
		}
	}

	sets := make(map[string]RegionSet)
	for region := range v4 {
		sets[region] = RegionSet{}
	}
	for region := range v6 {
		sets[region] = RegionSet{}
	}
	for region := range sets {
		mergedV4, err := Aggregate(v4[region])
		if err != nil {
			return nil, fmt.Errorf("region %s IPv4: %w", region, err)
		}
		mergedV6, err := Aggregate(v6[region])
		if err != nil {
			return nil, fmt.Errorf("region %s IPv6: %w", region, err)
		}
		sets[region] = RegionSet{V4: mergedV4, V6: mergedV6}
	}
	return sets, nil
}
