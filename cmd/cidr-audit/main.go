// Command cidr-audit cross-checks published rule files against a
// GeoLite2-Country database: every prefix should geolocate to the region it
// was attributed to. Mismatches are reported, never fixed; region
// attribution follows the ASN table, GeoIP only audits it.
package main

import (
	"flag"
	"log"
	"net"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/biter777/countries"
	"github.com/oschwald/maxminddb-golang"

	"github.com/rzmy/telegram-cidr-regions/pkg/regions"
	"github.com/rzmy/telegram-cidr-regions/pkg/rulefile"
)

var (
	dbFlag     = flag.String("db", "GeoLite2-Country.mmdb", "Path to a GeoLite2-Country database")
	dirFlag    = flag.String("dir", ".", "Directory containing the .list files")
	configFlag = flag.String("config", "", "Path to a region table JSON file (built-in table if empty)")
)

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := regions.DefaultConfig()
	if *configFlag != "" {
		var err error
		cfg, err = regions.LoadConfig(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load region config: %v", err)
		}
	}

	geo, err := maxminddb.Open(*dbFlag)
	if err != nil {
		log.Fatalf("Failed to open GeoIP database: %v", err)
	}
	defer geo.Close()

	total, mismatches, unknown := 0, 0, 0
	for _, tag := range cfg.RegionTags() {
		path := filepath.Join(*dirFlag, rulefile.FileName(tag))
		f, err := os.Open(path)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		set, err := rulefile.Parse(f)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to parse %s: %v", path, err)
		}

		for _, p := range append(set.V4, set.V6...) {
			total++
			iso, err := lookupCountry(geo, p)
			if err != nil {
				log.Printf("%s (%s): lookup failed: %v", p, tag, err)
				unknown++
				continue
			}
			if iso == "" {
				unknown++
				continue
			}
			if !regionMatches(tag, iso) {
				mismatches++
				log.Printf("MISMATCH %s is listed under %s (%s) but geolocates to %s (%s)",
					p, tag, rulefile.RegionName(tag), iso, rulefile.RegionName(iso))
			}
		}
	}

	log.Printf("Audited %d prefixes: %d mismatches, %d without country data", total, mismatches, unknown)
	if mismatches > 0 {
		os.Exit(1)
	}
}

func lookupCountry(geo *maxminddb.Reader, p netip.Prefix) (string, error) {
	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
		RegisteredCountry struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"registered_country"`
	}
	ip := net.IP(p.Addr().AsSlice())
	if err := geo.Lookup(ip, &record); err != nil {
		return "", err
	}
	if record.Country.ISOCode != "" {
		return record.Country.ISOCode, nil
	}
	return record.RegisteredCountry.ISOCode, nil
}

// regionMatches accepts an exact country tag match; the EU tag accepts any
// European country since its ASNs serve the whole union.
func regionMatches(tag, iso string) bool {
	if tag == iso {
		return true
	}
	if tag == "EU" {
		return countries.ByName(iso).Region() == countries.RegionEU
	}
	return false
}
