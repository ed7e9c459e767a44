// Package ripestat fetches announced-prefix lists from the RIPEstat data API.
package ripestat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const DefaultBaseURL = "https://stat.ripe.net/data/announced-prefixes/data.json"

// Client fetches the prefixes currently announced by an ASN. When CacheDir
// is set, raw API responses are written to disk; CacheOnly serves from that
// cache without touching the network, letting offline tools replay the last
// fetch.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int
	CacheDir   string
	CacheOnly  bool
}

func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		MaxRetries: 3,
	}
}

// AnnouncedPrefixes returns the prefixes announced by the given ASN,
// retrying transient failures with exponential backoff.
func (c *Client) AnnouncedPrefixes(ctx context.Context, asn uint32) ([]string, error) {
	if c.CacheOnly {
		prefixes, err := c.readCache(asn)
		if err != nil {
			return nil, fmt.Errorf("AS%d: no cached response: %w", asn, err)
		}
		log.Printf("[RIPEstat] AS%d: using cached response", asn)
		return prefixes, nil
	}

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		prefixes, err := c.fetchOnce(ctx, asn)
		if err == nil {
			log.Printf("[RIPEstat] AS%d: fetched %d prefixes", asn, len(prefixes))
			return prefixes, nil
		}
		lastErr = err
		log.Printf("[RIPEstat] AS%d attempt %d failed: %v (retrying in %v)", asn, attempt, err, backoff)
		if attempt < c.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("AS%d: giving up after %d attempts: %w", asn, c.MaxRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, asn uint32) ([]string, error) {
	url := fmt.Sprintf("%s?resource=AS%d", c.BaseURL, asn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	prefixes, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}
	if c.CacheDir != "" {
		if err := c.writeCache(asn, body); err != nil {
			log.Printf("[RIPEstat] AS%d: failed to write cache: %v", asn, err)
		}
	}
	return prefixes, nil
}

func decodeResponse(body []byte) ([]string, error) {
	var res struct {
		Data struct {
			Prefixes []struct {
				Prefix string `json:"prefix"`
			} `json:"prefixes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	var prefixes []string
	for _, p := range res.Data.Prefixes {
		if p.Prefix != "" {
			prefixes = append(prefixes, p.Prefix)
		}
	}
	return prefixes, nil
}

func (c *Client) cachePath(asn uint32) string {
	return filepath.Join(c.CacheDir, fmt.Sprintf("AS%d.json", asn))
}

func (c *Client) readCache(asn uint32) ([]string, error) {
	body, err := os.ReadFile(c.cachePath(asn))
	if err != nil {
		return nil, err
	}
	return decodeResponse(body)
}

// writeCache stores the raw response with a temp file and atomic rename so a
// crashed run never leaves a truncated cache entry behind.
func (c *Client) writeCache(asn uint32, body []byte) error {
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.CacheDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Printf("Error removing temp file %s: %v", tmpName, err)
		}
	}()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, c.cachePath(asn))
}

// FetchAll fetches every ASN concurrently. A single ASN failing is a hard
// error for the whole fetch: resolving region ownership against a partial
// dataset would silently misattribute address space.
func (c *Client) FetchAll(ctx context.Context, asns []uint32) (map[uint32][]string, error) {
	sorted := make([]uint32, len(asns))
	copy(sorted, asns)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[uint32][]string, len(sorted))
		errs    []error
	)
	for _, asn := range sorted {
		wg.Add(1)
		go func(asn uint32) {
			defer wg.Done()
			prefixes, err := c.AnnouncedPrefixes(ctx, asn)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[asn] = prefixes
		}(asn)
	}
	wg.Wait()
	if len(errs) > 0 {
		return nil, fmt.Errorf("fetch incomplete: %w", errors.Join(errs...))
	}
	return results, nil
}
