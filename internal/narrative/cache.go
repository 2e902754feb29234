// ABOUTME: Badger-backed cache of generated digests, keyed by type and date.
// ABOUTME: Keys look like digest:<type>:<YYYY-MM-DD>; values are JSON.
package narrative

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/goccy/go-json"
)

const digestKeyPrefix = "digest:"

// ErrDigestNotFound is returned when no digest is cached for a type and date.
var ErrDigestNotFound = errors.New("no digest found for this date")

// Digest is one generated narrative.
type Digest struct {
	Type        DigestType `json:"type"`
	Date        string     `json:"date"`
	Content     string     `json:"content"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Cache stores digests in badger.
type Cache struct {
	db *badger.DB
}

// OpenCache opens or creates a cache directory.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create digest dir: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open digest cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// OpenInMemoryCache opens a cache that lives only for the process.
func OpenInMemoryCache() (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open digest cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func digestKey(t DigestType, date string) []byte {
	return []byte(digestKeyPrefix + string(t) + ":" + date)
}

// Put stores d, replacing any digest for the same type and date.
func (c *Cache) Put(d *Digest) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(digestKey(d.Type, d.Date), data)
	})
}

// Get returns the cached digest for t on date.
func (c *Cache) Get(t DigestType, date string) (*Digest, error) {
	var d Digest
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(digestKey(t, date))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDigestNotFound
		}
		if err != nil {
			return fmt.Errorf("get digest: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		})
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns every cached digest, newest date first.
func (c *Cache) List() ([]*Digest, error) {
	var out []*Digest
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(digestKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var d Digest
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				return fmt.Errorf("decode digest %s: %w", it.Item().Key(), err)
			}
			out = append(out, &d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}
