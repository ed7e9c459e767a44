// Command cidr-watch follows RIS Live and reports BGP updates that touch the
// configured region ASNs, flagging prefixes no update run has attributed
// yet. Useful for spotting announcement changes between scheduled runs.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/rzmy/telegram-cidr-regions/pkg/regions"
	"github.com/rzmy/telegram-cidr-regions/pkg/rislive"
	"github.com/rzmy/telegram-cidr-regions/pkg/store"
)

var (
	configFlag  = flag.String("config", "", "Path to a region table JSON file (built-in table if empty)")
	storeFlag   = flag.String("store", "", "Path to the run state database written by cidr-update")
	urlFlag     = flag.String("url", rislive.DefaultURL, "RIS Live websocket URL")
	timeoutFlag = flag.Duration("timeout", 0, "How long to watch before exiting (0 for infinite)")
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
	table, err := cfg.Table()
	if err != nil {
		log.Fatalf("Invalid region config: %v", err)
	}

	var st *store.RunStore
	if *storeFlag != "" {
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

	w := rislive.NewWatcher(table, func(ev rislive.Event) {
		switch ev.Type {
		case rislive.EventAnnounce:
			known := ""
			if st != nil {
				if _, ok, err := st.SeenRegion(ev.Prefix); err != nil {
					log.Printf("Warning: seen lookup failed: %v", err)
				} else if !ok {
					known = " [NEW: not in any published list]"
				}
			}
			log.Printf("announce %s via AS%d (%s) from peer %s%s",
				ev.Prefix, ev.OriginASN, ev.Region, ev.Peer, known)
		case rislive.EventWithdraw:
			log.Printf("withdraw %s from peer %s (prefix is in a published list)",
				ev.Prefix, ev.Peer)
		}
	})
	w.URL = *urlFlag
	if st != nil {
		w.KnownPrefix = func(prefix string) bool {
			_, ok, err := st.SeenRegion(prefix)
			return err == nil && ok
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if *timeoutFlag > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeoutFlag)
		defer cancel()
	}

	log.Printf("Watching %d ASNs across %d regions", len(table), len(cfg.Regions))
	if err := w.Run(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		log.Fatalf("Watcher failed: %v", err)
	}
	log.Println("Exiting...")
}
