// Package rislive follows the RIPE RIS Live feed and surfaces BGP updates
// that originate from the configured region ASNs.
package rislive

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultURL = "wss://ris-live.ripe.net/v1/ws/?client=github.com/RzMY/Telegram-CIDR-Regions"

type EventType int

const (
	EventAnnounce EventType = iota
	EventWithdraw
)

func (t EventType) String() string {
	if t == EventWithdraw {
		return "withdraw"
	}
	return "announce"
}

// Event is one BGP update relevant to the region table. Withdrawals carry no
// origin ASN; they are matched by prefix instead and have Region/OriginASN
// unset.
type Event struct {
	Type      EventType
	Prefix    string
	OriginASN uint32
	Region    string
	Peer      string
}

// Watcher filters the RIS Live firehose down to updates for our ASNs.
// KnownPrefix, when set, additionally lets withdrawals of previously
// attributed prefixes through.
type Watcher struct {
	URL         string
	OnEvent     func(Event)
	KnownPrefix func(prefix string) bool

	table map[uint32]string
}

func NewWatcher(table map[uint32]string, onEvent func(Event)) *Watcher {
	return &Watcher{
		URL:     DefaultURL,
		OnEvent: onEvent,
		table:   table,
	}
}

// Run connects and consumes the feed until the context is cancelled,
// reconnecting with capped exponential backoff.
func (w *Watcher) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("Connecting to RIS Live: %s", w.URL)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, w.URL, nil)
		if err != nil {
			log.Printf("Dial error: %v. Retrying in %v...", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
			continue
		}
		backoff = time.Second

		subscribeMsg := `{"type": "ris_subscribe", "data": {"type": "UPDATE"}}`
		if err := c.WriteMessage(websocket.TextMessage, []byte(subscribeMsg)); err != nil {
			log.Printf("Subscribe error: %v", err)
			c.Close()
			continue
		}

		if err := w.consume(ctx, c); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// consume reads one connection until it fails or the context is cancelled.
// A nil return means the connection dropped and the caller should redial.
// The unblock goroutine closes the connection on cancellation and is released
// through done when the connection ends first, so reconnects do not pile up
// parked goroutines.
func (w *Watcher) consume(ctx context.Context, c *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	defer c.Close()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Read error: %v. Reconnecting...", err)
			return nil
		}
		for _, ev := range w.decode(message) {
			w.OnEvent(ev)
		}
	}
}

// decode extracts the events our table cares about from one raw RIS message.
func (w *Watcher) decode(message []byte) []Event {
	var msg struct {
		Type string `json:"type"`
		Data struct {
			Announcements []struct {
				Prefixes []string `json:"prefixes"`
			} `json:"announcements"`
			Withdrawals []string          `json:"withdrawals"`
			Path        []json.RawMessage `json:"path"`
			Peer        string            `json:"peer"`
		} `json:"data"`
	}
	if json.Unmarshal(message, &msg) != nil {
		return nil
	}
	switch msg.Type {
	case "ris_error":
		log.Printf("[RIS ERROR] %s", string(message))
		return nil
	case "ris_message":
	default:
		return nil
	}

	var originASN uint32
	if len(msg.Data.Path) > 0 {
		// The path can contain integers or AS_SET arrays; only a plain
		// integer origin is usable here.
		last := msg.Data.Path[len(msg.Data.Path)-1]
		var asn uint32
		if err := json.Unmarshal(last, &asn); err == nil {
			originASN = asn
		}
	}

	var events []Event
	region, ours := w.table[originASN]
	if ours {
		for _, ann := range msg.Data.Announcements {
			for _, prefix := range ann.Prefixes {
				events = append(events, Event{
					Type:      EventAnnounce,
					Prefix:    prefix,
					OriginASN: originASN,
					Region:    region,
					Peer:      msg.Data.Peer,
				})
			}
		}
	}
	if w.KnownPrefix != nil {
		for _, prefix := range msg.Data.Withdrawals {
			if w.KnownPrefix(prefix) {
				events = append(events, Event{
					Type:   EventWithdraw,
					Prefix: prefix,
					Peer:   msg.Data.Peer,
				})
			}
		}
	}
	return events
}
