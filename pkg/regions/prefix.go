// Package regions turns raw per-ASN prefix announcements into minimal,
// non-overlapping per-region CIDR sets. The pipeline is Classify (tag each
// prefix with its region), Resolve (give every address to the most specific
// claim) and Aggregate (merge each region's blocks into the smallest cover).
package regions

import "net/netip"

// parsePrefix parses a CIDR string into canonical (masked) form.
func parsePrefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return p.Masked(), nil
}

// addrLess orders prefixes by network address, shorter mask first on equal
// addresses. Used everywhere ordering must be deterministic.
func addrLess(a, b netip.Prefix) bool {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c < 0
	}
	return a.Bits() < b.Bits()
}

// setBit returns addr with the given bit set, counting from the most
// significant bit of the address.
func setBit(addr netip.Addr, bit int) netip.Addr {
	if addr.Is4() {
		a := addr.As4()
		a[bit/8] |= 1 << (7 - bit%8)
		return netip.AddrFrom4(a)
	}
	a := addr.As16()
	a[bit/8] |= 1 << (7 - bit%8)
	return netip.AddrFrom16(a)
}

// halves splits a prefix into its two children, one bit longer each.
func halves(p netip.Prefix) (lo, hi netip.Prefix) {
	bits := p.Bits() + 1
	lo = netip.PrefixFrom(p.Addr(), bits)
	hi = netip.PrefixFrom(setBit(p.Addr(), bits-1), bits)
	return lo, hi
}

// exclude removes hole from container and returns the leftover address space
// as disjoint prefixes. hole must be contained in container; both must be
// masked. The result has exactly hole.Bits()-container.Bits() entries, one
// sibling per bit level walked down to the hole.
func exclude(container, hole netip.Prefix) []netip.Prefix {
	if container == hole {
		return nil
	}
	kept := make([]netip.Prefix, 0, hole.Bits()-container.Bits())
	cur := container
	for cur.Bits() < hole.Bits() {
		lo, hi := halves(cur)
		if lo.Contains(hole.Addr()) {
			kept = append(kept, hi)
			cur = lo
		} else {
			kept = append(kept, lo)
			cur = hi
		}
	}
	return kept
}

// excludeAll removes every hole from container. Holes must be disjoint from
// each other and each contained in container; the order does not matter
// because a hole disjoint from every other hole always falls inside exactly
// one of the remaining fragments.
func excludeAll(container netip.Prefix, holes []netip.Prefix) []netip.Prefix {
	frags := []netip.Prefix{container}
	for _, hole := range holes {
		for i, f := range frags {
			if !f.Overlaps(hole) {
				continue
			}
			rest := exclude(f, hole)
			frags = append(frags[:i:i], append(rest, frags[i+1:]...)...)
			break
		}
	}
	return frags
}
