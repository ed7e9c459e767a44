// Command cidr-update fetches the announced prefixes of every configured
// ASN, resolves region ownership and writes one Telegram<Region>.list rule
// file per region. Unchanged regions are skipped so a cron run on stable
// upstream data is a no-op.
package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/rzmy/telegram-cidr-regions/pkg/regions"
	"github.com/rzmy/telegram-cidr-regions/pkg/ripestat"
	"github.com/rzmy/telegram-cidr-regions/pkg/rulefile"
	"github.com/rzmy/telegram-cidr-regions/pkg/store"
)

var (
	outputFlag  = flag.String("output", ".", "Directory to write the .list files to")
	configFlag  = flag.String("config", "", "Path to a region table JSON file (built-in table if empty)")
	storeFlag   = flag.String("store", "", "Path to the run state database (disables diff-skip if empty)")
	cacheFlag   = flag.String("cache", "", "Directory for cached RIPEstat responses")
	offlineFlag = flag.Bool("offline", false, "Replay cached RIPEstat responses instead of fetching")
	timeoutFlag = flag.Duration("timeout", 5*time.Minute, "Overall deadline for the fetch phase")
	forceFlag   = flag.Bool("force", false, "Write files even when unchanged since the last run")
)

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if *offlineFlag && *cacheFlag == "" {
		log.Fatal("-offline requires -cache")
	}

	cfg := regions.DefaultConfig()
	if *configFlag != "" {
		var err error
		cfg, err = regions.LoadConfig(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load region config: %v", err)
		}
	}

	var st *store.RunStore
	if *storeFlag != "" {
		var err error
		st, err = store.Open(*storeFlag)
		if err != nil {
			log.Fatalf("Failed to open run store: %v", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Printf("Error closing run store: %v", err)
			}
		}()
	}

	client := ripestat.NewClient()
	client.CacheDir = *cacheFlag
	client.CacheOnly = *offlineFlag

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	log.Println("Starting Telegram CIDR update")
	announced, err := client.FetchAll(ctx, cfg.ASNs())
	if err != nil {
		log.Fatalf("Fetch failed, aborting before any output: %v", err)
	}

	result, err := regions.Run(cfg, announced)
	if err != nil {
		log.Fatalf("Resolution failed: %v", err)
	}
	reportDiagnostics(result.Diagnostics)

	updated := time.Now().UTC()
	seen := make(map[string]string)
	for _, tag := range cfg.RegionTags() {
		set := result.Sets[tag]
		body := rulefile.Render(tag, set, updated)

		if st != nil && !*forceFlag {
			prev, err := st.RuleDigest(tag)
			if err != nil {
				log.Fatalf("Failed to read digest for %s: %v", tag, err)
			}
			if bytes.Equal(prev, digestWithoutTimestamp(tag, set)) {
				log.Printf("%s unchanged since last run, skipping write", rulefile.FileName(tag))
				continue
			}
		}

		path, err := rulefile.WriteFile(*outputFlag, tag, body)
		if err != nil {
			log.Fatalf("Failed to write %s: %v", rulefile.FileName(tag), err)
		}
		log.Printf("Wrote %s (%s) with %d IPv4 and %d IPv6 prefixes after merge",
			path, rulefile.RegionName(tag), len(set.V4), len(set.V6))

		if st != nil {
			if err := st.PutRuleDigest(tag, digestWithoutTimestamp(tag, set)); err != nil {
				log.Printf("Warning: failed to store digest for %s: %v", tag, err)
			}
			for _, p := range set.V4 {
				seen[p.String()] = tag
			}
			for _, p := range set.V6 {
				seen[p.String()] = tag
			}
		}
	}

	if st != nil && len(seen) > 0 {
		if err := st.MarkSeen(seen); err != nil {
			log.Printf("Warning: failed to update seen prefixes: %v", err)
		}
	}
	log.Println("All region files generated")
}

// digestWithoutTimestamp hashes the rendered body with a fixed UPDATED line
// so the diff-skip comparison reflects the data, not the wall clock.
func digestWithoutTimestamp(tag string, set regions.RegionSet) []byte {
	return store.Digest(rulefile.Render(tag, set, time.Unix(0, 0)))
}

func reportDiagnostics(d regions.Diagnostics) {
	for _, s := range d.Skips {
		log.Printf("Skip invalid prefix %q from AS%d: %s", s.Raw, s.ASN, s.Reason)
	}
	for _, s := range d.Splits {
		log.Printf("Split %s (%s) into %v around %d more specific entries",
			s.Original, s.Region, s.Fragments, len(s.Holes))
	}
	for _, tb := range d.TieBreaks {
		log.Printf("Tie-break on %s: kept %s, dropped %s", tb.Prefix, tb.Winner, tb.Loser)
	}
	log.Printf("Diagnostics: %d skipped, %d split, %d tie-breaks",
		len(d.Skips), len(d.Splits), len(d.TieBreaks))
}
