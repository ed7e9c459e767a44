package regions

import "net/netip"

// SkipEvent records a raw prefix string that failed to parse and was dropped.
type SkipEvent struct {
	ASN    uint32
	Raw    string
	Reason string
}

// SplitEvent records a claim that lost part of its range to more specific
// claims. Holes are the already-assigned entries that were carved out;
// Fragments is what remained for the claim's own region.
type SplitEvent struct {
	Region    string
	Original  netip.Prefix
	Holes     []Assignment
	Fragments []netip.Prefix
}

// TieBreakEvent records two identical claims from different regions. The
// winner is chosen deterministically (lowest region tag) so that reruns
// produce identical output, but the choice is policy-relevant and must be
// visible.
type TieBreakEvent struct {
	Prefix netip.Prefix
	Winner string
	Loser  string
}

// Diagnostics collects everything an update run did besides the output
// itself, as data rather than log text, so automated reassignments stay
// auditable.
type Diagnostics struct {
	Skips     []SkipEvent
	Splits    []SplitEvent
	TieBreaks []TieBreakEvent
}
