package regions

// Result is one complete resolution of an announced-prefix dataset.
type Result struct {
	Sets        map[string]RegionSet
	Diagnostics Diagnostics
}

// Run executes the full pipeline on freshly fetched data: classify the raw
// per-ASN prefix lists, resolve cross-region overlaps and aggregate each
// region's set. Every configured region appears in the result, empty or not.
// The computation is pure and deterministic: the same input always yields
// the same result.
func Run(cfg Config, announced map[uint32][]string) (*Result, error) {
	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	claims, skips, err := classifier.Classify(announced)
	if err != nil {
		return nil, err
	}
	assignments, splits, ties := Resolve(claims)
	sets, err := BuildSets(assignments)
	if err != nil {
		return nil, err
	}
	for _, tag := range cfg.RegionTags() {
		if _, ok := sets[tag]; !ok {
			sets[tag] = RegionSet{}
		}
	}
	return &Result{
		Sets: sets,
		Diagnostics: Diagnostics{
			Skips:     skips,
			Splits:    splits,
			TieBreaks: ties,
		},
	}, nil
}
