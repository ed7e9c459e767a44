package regions

import (
	"fmt"
	"net/netip"
	"sort"
)

// Claim is one prefix announced by one ASN, tagged with that ASN's region.
type Claim struct {
	Prefix netip.Prefix
	Region string
	ASN    uint32
}

// Classifier maps raw announced prefixes to region claims using the static
// ASN table.
type Classifier struct {
	table map[uint32]string
}

func NewClassifier(cfg Config) (*Classifier, error) {
	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}
	return &Classifier{table: table}, nil
}

// Classify turns per-ASN prefix strings into deduplicated claims. A prefix
// that fails to parse is skipped and reported; an ASN missing from the region
// table aborts the run, since silently dropping it would corrupt region
// attribution without a trace.
func (c *Classifier) Classify(announced map[uint32][]string) ([]Claim, []SkipEvent, error) {
	asns := make([]uint32, 0, len(announced))
	for asn := range announced {
		asns = append(asns, asn)
	}
	sort.Slice(asns, func(i, j int) bool { return asns[i] < asns[j] })

	type claimKey struct {
		prefix netip.Prefix
		region string
	}
	seen := make(map[claimKey]bool)
	var claims []Claim
	var skips []SkipEvent

	for _, asn := range asns {
		region, ok := c.table[asn]
		if !ok {
			return nil, nil, fmt.Errorf("AS%d is not present in the region table", asn)
		}
		for _, raw := range announced[asn] {
			p, err := parsePrefix(raw)
			if err != nil {
				skips = append(skips, SkipEvent{ASN: asn, Raw: raw, Reason: err.Error()})
				continue
			}
			key := claimKey{prefix: p, region: region}
			if seen[key] {
				continue
			}
			seen[key] = true
			claims = append(claims, Claim{Prefix: p, Region: region, ASN: asn})
		}
	}
	return claims, skips, nil
}
