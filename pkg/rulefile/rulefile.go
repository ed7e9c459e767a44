// Package rulefile renders per-region CIDR sets into Telegram .list rule
// files and reads them back.
package rulefile

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/biter777/countries"

	"github.com/rzmy/telegram-cidr-regions/pkg/regions"
)

const (
	Author  = "RzMY"
	RepoURL = "https://github.com/RzMY/Telegram-CIDR-Regions"
)

// Tag is the rule tag and file stem for a region ("SG" -> "TelegramSG").
func Tag(region string) string {
	return "Telegram" + region
}

// FileName returns the list file name for a region.
func FileName(region string) string {
	return Tag(region) + ".list"
}

// RegionName resolves a region tag to a readable name where the tag is an
// ISO country code; non-country tags like EU pass through unchanged.
func RegionName(region string) string {
	name := countries.ByName(region).String()
	if name == "Unknown" {
		return region
	}
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name
}

// Render produces the full list file body: count headers followed by one
// rule line per prefix, IPv4 before IPv6, in the set's address order. The
// header counts are exactly the set sizes, so an empty region still renders
// a valid file with TOTAL: 0.
func Render(region string, set regions.RegionSet, updated time.Time) []byte {
	var b strings.Builder
	tag := Tag(region)
	fmt.Fprintf(&b, "# NAME: %s\n", tag)
	fmt.Fprintf(&b, "# AUTHOR: %s\n", Author)
	fmt.Fprintf(&b, "# REPO: %s\n", RepoURL)
	fmt.Fprintf(&b, "# UPDATED: %s\n", updated.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "# IP-CIDR: %d\n", len(set.V4))
	fmt.Fprintf(&b, "# IP6-CIDR: %d\n", len(set.V6))
	fmt.Fprintf(&b, "# TOTAL: %d\n", set.Total())
	for _, p := range set.V4 {
		fmt.Fprintf(&b, "IP-CIDR,%s,%s\n", p, tag)
	}
	for _, p := range set.V6 {
		fmt.Fprintf(&b, "IP6-CIDR,%s,%s\n", p, tag)
	}
	return []byte(b.String())
}

// WriteFile writes a rendered body to dir with a temp file and atomic rename
// and returns the final path.
func WriteFile(dir, region string, body []byte) (string, error) {
	path := filepath.Join(dir, FileName(region))
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Printf("Error removing temp file %s: %v", tmpName, err)
		}
	}()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", err
	}
	return path, nil
}

// Parse reads rule lines back into a RegionSet, ignoring header comments.
// Used by the audit tool to check published files without re-fetching.
func Parse(r io.Reader) (regions.RegionSet, error) {
	var set regions.RegionSet
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return regions.RegionSet{}, fmt.Errorf("malformed rule line: %q", line)
		}
		p, err := netip.ParsePrefix(parts[1])
		if err != nil {
			return regions.RegionSet{}, fmt.Errorf("malformed prefix in %q: %w", line, err)
		}
		switch parts[0] {
		case "IP-CIDR":
			set.V4 = append(set.V4, p)
		case "IP6-CIDR":
			set.V6 = append(set.V6, p)
		default:
			return regions.RegionSet{}, fmt.Errorf("unknown rule type in %q", line)
		}
	}
	return set, scanner.Err()
}
