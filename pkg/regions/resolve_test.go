package regions

import (
	"net/netip"
	"testing"
)

func claim(t *testing.T, prefix, region string) Claim {
	t.Helper()
	return Claim{Prefix: mustPrefix(t, prefix), Region: region}
}

func findAssignment(assignments []Assignment, prefix string) (Assignment, bool) {
	for _, a := range assignments {
		if a.Prefix.String() == prefix {
			return a, true
		}
	}
	return Assignment{}, false
}

func TestResolveSpecificityPriority(t *testing.T) {
	// SG announces the /23, EU announces the covering /22. The /23 stays
	// with SG; EU keeps only the other half.
	assignments, splits, ties := Resolve([]Claim{
		claim(t, "91.108.56.0/22", "EU"),
		claim(t, "91.108.56.0/23", "SG"),
	})

	if len(assignments) != 2 {
		t.Fatalf("Expected 2 assignments, got %d: %+v", len(assignments), assignments)
	}
	if a, ok := findAssignment(assignments, "91.108.56.0/23"); !ok || a.Region != "SG" {
		t.Errorf("91.108.56.0/23 should belong to SG, got %+v", assignments)
	}
	if a, ok := findAssignment(assignments, "91.108.58.0/23"); !ok || a.Region != "EU" {
		t.Errorf("91.108.58.0/23 should belong to EU, got %+v", assignments)
	}

	if len(splits) != 1 {
		t.Fatalf("Expected 1 split event, got %d", len(splits))
	}
	s := splits[0]
	if s.Region != "EU" || s.Original.String() != "91.108.56.0/22" {
		t.Errorf("Unexpected split event: %+v", s)
	}
	if len(s.Holes) != 1 || s.Holes[0].Region != "SG" {
		t.Errorf("Split should record the SG hole, got %+v", s.Holes)
	}
	if len(ties) != 0 {
		t.Errorf("Expected no tie-breaks, got %+v", ties)
	}
}

func TestResolveNoOpOnDisjointInput(t *testing.T) {
	claims := []Claim{
		claim(t, "91.108.56.0/23", "SG"),
		claim(t, "149.154.160.0/22", "US"),
		claim(t, "2001:b28:f23d::/48", "EU"),
	}
	assignments, splits, _ := Resolve(claims)
	if len(assignments) != len(claims) {
		t.Fatalf("Expected %d assignments, got %d", len(claims), len(assignments))
	}
	for _, c := range claims {
		if a, ok := findAssignment(assignments, c.Prefix.String()); !ok || a.Region != c.Region {
			t.Errorf("Claim %s/%s should pass through unchanged", c.Prefix, c.Region)
		}
	}
	if len(splits) != 0 {
		t.Errorf("Disjoint input must not be split, got %+v", splits)
	}
}

func TestResolveDuplicateCollapse(t *testing.T) {
	assignments, splits, ties := Resolve([]Claim{
		claim(t, "91.108.56.0/23", "SG"),
		claim(t, "91.108.56.0/23", "SG"),
	})
	if len(assignments) != 1 {
		t.Errorf("Expected 1 assignment, got %d", len(assignments))
	}
	if len(splits) != 0 || len(ties) != 0 {
		t.Errorf("Same-region duplicate must not produce events: %+v %+v", splits, ties)
	}
}

func TestResolveTieBreak(t *testing.T) {
	assignments, _, ties := Resolve([]Claim{
		claim(t, "91.108.56.0/23", "US"),
		claim(t, "91.108.56.0/23", "EU"),
	})
	if len(assignments) != 1 {
		t.Fatalf("Expected 1 assignment, got %d", len(assignments))
	}
	// Lexicographically smallest region wins, deterministically.
	if assignments[0].Region != "EU" {
		t.Errorf("Tie should go to EU, got %s", assignments[0].Region)
	}
	if len(ties) != 1 {
		t.Fatalf("Expected 1 tie-break event, got %d", len(ties))
	}
	if ties[0].Winner != "EU" || ties[0].Loser != "US" {
		t.Errorf("Unexpected tie-break: %+v", ties[0])
	}
}

func TestResolveTieBreakOnSplitWinner(t *testing.T) {
	// The EU /23 wins the tie against the US /23 but is itself split by
	// the more specific SG /24. The tie-break must still be reported.
	assignments, _, ties := Resolve([]Claim{
		claim(t, "91.108.56.0/24", "SG"),
		claim(t, "91.108.56.0/23", "EU"),
		claim(t, "91.108.56.0/23", "US"),
	})

	if len(ties) != 1 {
		t.Fatalf("Expected 1 tie-break event, got %d: %+v", len(ties), ties)
	}
	if ties[0].Prefix.String() != "91.108.56.0/23" || ties[0].Winner != "EU" || ties[0].Loser != "US" {
		t.Errorf("Unexpected tie-break: %+v", ties[0])
	}
	if a, ok := findAssignment(assignments, "91.108.57.0/24"); !ok || a.Region != "EU" {
		t.Errorf("91.108.57.0/24 should go to EU as the tie winner: %+v", assignments)
	}
	if _, ok := findAssignment(assignments, "91.108.56.0/23"); ok {
		t.Errorf("The losing /23 must not be emitted whole: %+v", assignments)
	}
}

func TestResolveSubsumedClaim(t *testing.T) {
	// The /24 is inside the SG /23 and processed first; the EU /22 then
	// loses both and the SG /23 contributes nothing beyond its first claim.
	assignments, _, _ := Resolve([]Claim{
		claim(t, "91.108.56.0/24", "SG"),
		claim(t, "91.108.56.0/23", "SG"),
		claim(t, "91.108.56.0/22", "EU"),
	})

	for _, a := range assignments {
		for _, b := range assignments {
			if a != b && a.Prefix.Overlaps(b.Prefix) {
				t.Fatalf("Assignments overlap: %+v and %+v", a, b)
			}
		}
	}
	if a, ok := findAssignment(assignments, "91.108.56.0/24"); !ok || a.Region != "SG" {
		t.Errorf("/24 should stay with SG: %+v", assignments)
	}
	if a, ok := findAssignment(assignments, "91.108.57.0/24"); !ok || a.Region != "SG" {
		t.Errorf("91.108.57.0/24 should go to SG via the /23: %+v", assignments)
	}
	if a, ok := findAssignment(assignments, "91.108.58.0/23"); !ok || a.Region != "EU" {
		t.Errorf("91.108.58.0/23 should go to EU: %+v", assignments)
	}
}

func TestResolveFamiliesIndependent(t *testing.T) {
	assignments, splits, _ := Resolve([]Claim{
		claim(t, "91.108.56.0/23", "SG"),
		claim(t, "2001:b28:f23d::/48", "EU"),
	})
	if len(assignments) != 2 || len(splits) != 0 {
		t.Errorf("v4 and v6 claims must not interact: %+v", assignments)
	}
}

func TestResolveDeterministic(t *testing.T) {
	claims := []Claim{
		claim(t, "91.108.56.0/22", "EU"),
		claim(t, "91.108.56.0/23", "SG"),
		claim(t, "91.108.4.0/22", "SG"),
		claim(t, "91.108.4.0/24", "US"),
	}
	first, _, _ := Resolve(claims)

	// Reversed input order must give the same output.
	reversed := make([]Claim, len(claims))
	for i, c := range claims {
		reversed[len(claims)-1-i] = c
	}
	second, _, _ := Resolve(reversed)

	if len(first) != len(second) {
		t.Fatalf("Different lengths: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Entry %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func prefixRange(p netip.Prefix) (uint64, uint64) {
	a := p.Addr().As4()
	start := uint64(a[0])<<24 | uint64(a[1])<<16 | uint64(a[2])<<8 | uint64(a[3])
	return start, start + 1<<(32-p.Bits()) - 1
}

func TestResolveSpaceConservation(t *testing.T) {
	claims := []Claim{
		claim(t, "91.108.56.0/22", "EU"),
		claim(t, "91.108.56.0/23", "SG"),
		claim(t, "91.108.56.0/24", "US"),
		claim(t, "91.108.0.0/16", "SG"),
	}
	assignments, _, _ := Resolve(claims)

	covered := make(map[uint64]bool)
	for _, a := range assignments {
		start, end := prefixRange(a.Prefix)
		for ip := start; ip <= end; ip += 256 {
			if covered[ip] {
				t.Fatalf("Address block %d covered twice", ip)
			}
			covered[ip] = true
		}
	}

	want := make(map[uint64]bool)
	for _, c := range claims {
		start, end := prefixRange(c.Prefix)
		for ip := start; ip <= end; ip += 256 {
			want[ip] = true
		}
	}

	if len(covered) != len(want) {
		t.Fatalf("Covered %d blocks, want %d", len(covered), len(want))
	}
	for ip := range want {
		if !covered[ip] {
			t.Errorf("Block %d lost during resolution", ip)
		}
	}
}
