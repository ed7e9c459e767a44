package regions

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Config is the static region table: for each region tag, the ASNs whose
// announcements belong to it. It is immutable input to the classifier, never
// ambient state.
type Config struct {
	Regions map[string][]uint32 `json:"regions"`
}

// DefaultConfig returns the built-in Telegram region table.
func DefaultConfig() Config {
	return Config{
		Regions: map[string][]uint32{
			"SG": {44907, 62014},
			"US": {59930},
			"EU": {62041, 211157},
		},
	}
}

// LoadConfig reads a region table from a JSON file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse region config %s: %w", path, err)
	}
	if len(cfg.Regions) == 0 {
		return Config{}, fmt.Errorf("region config %s defines no regions", path)
	}
	return cfg, nil
}

// Table inverts the config into an ASN lookup table. An ASN listed under two
// regions is a configuration error.
func (c Config) Table() (map[uint32]string, error) {
	table := make(map[uint32]string)
	for _, tag := range c.RegionTags() {
		for _, asn := range c.Regions[tag] {
			if prev, ok := table[asn]; ok && prev != tag {
				return nil, fmt.Errorf("AS%d is listed under both %s and %s", asn, prev, tag)
			}
			table[asn] = tag
		}
	}
	return table, nil
}

// RegionTags returns the configured region tags in sorted order.
func (c Config) RegionTags() []string {
	tags := make([]string, 0, len(c.Regions))
	for tag := range c.Regions {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ASNs returns every configured ASN in ascending order.
func (c Config) ASNs() []uint32 {
	var asns []uint32
	for _, list := range c.Regions {
		asns = append(asns, list...)
	}
	sort.Slice(asns, func(i, j int) bool { return asns[i] < asns[j] })
	return asns
}
