// Package store persists run state between updates: the digest of each
// region's last published rule file (so unchanged output can skip the write)
// and every prefix a run has ever attributed to a region (so the live
// watcher can tell genuinely new announcements from churn).
package store

import (
	"crypto/sha256"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type RunStore struct {
	db *badger.DB
}

func Open(path string) (*RunStore, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

func ruleKey(region string) []byte {
	return []byte("rule/" + region)
}

func seenKey(prefix string) []byte {
	return []byte("seen/" + prefix)
}

// Digest returns the SHA-256 of a rendered rule body, the unit of the
// diff-skip comparison.
func Digest(body []byte) []byte {
	sum := sha256.Sum256(body)
	return sum[:]
}

// RuleDigest returns the stored digest for a region, or nil if the region
// has never been written.
func (s *RunStore) RuleDigest(region string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ruleKey(region))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	return val, err
}

func (s *RunStore) PutRuleDigest(region string, digest []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ruleKey(region), digest)
	})
}

// MarkSeen records prefixes and the region they were attributed to.
func (s *RunStore) MarkSeen(byPrefix map[string]string) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for prefix, region := range byPrefix {
		if err := wb.Set(seenKey(prefix), []byte(region)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// SeenRegion reports whether an update run has ever attributed this exact
// prefix, and to which region.
func (s *RunStore) SeenRegion(prefix string) (string, bool, error) {
	var region string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seenKey(prefix))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			region = string(v)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("seen lookup for %s: %w", prefix, err)
	}
	return region, true, nil
}

// ForEachSeen walks every recorded (prefix, region) pair.
func (s *RunStore) ForEachSeen(fn func(prefix, region string) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("seen/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			prefix := string(item.Key()[len("seen/"):])
			err := item.Value(func(v []byte) error {
				return fn(prefix, string(v))
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
