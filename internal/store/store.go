package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var bucketThumbs = []byte("thumbnails")

// defaultMemoryEntries bounds the in-memory promote cache
const defaultMemoryEntries = 2048

type imageRecord struct {
	MIMEType string `json:"mime"`
	Data     []byte `json:"data"`
}

// ThumbStore caches fetched thumbnails keyed by device and identity.
// Without a directory it keeps everything in memory.
type ThumbStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache      map[string][]byte
	order      []string
	maxEntries int
}

// NewThumbStore opens a store under baseCacheDir/<hash(scope)>. An empty
// baseCacheDir selects memory-only mode.
func NewThumbStore(baseCacheDir, scope string) (*ThumbStore, error) {
	s := &ThumbStore{cache: make(map[string][]byte), maxEntries: defaultMemoryEntries}
	if baseCacheDir == "" {
		return s, nil
	}

	dir := baseCacheDir
	if scope != "" {
		dir = filepath.Join(baseCacheDir, hashScope(scope))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, "thumbs.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketThumbs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

func hashScope(scope string) string {
	normalized := strings.ToLower(strings.TrimSpace(scope))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *ThumbStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func key(owner, identity string) string {
	return owner + ":" + identity
}

// Get returns a cached thumbnail
func (s *ThumbStore) Get(owner, identity string) (*domain.Image, bool) {
	k := key(owner, identity)

	s.mu.RLock()
	data, ok := s.cache[k]
	s.mu.RUnlock()

	if !ok && s.db != nil {
		s.db.View(func(tx *bolt.Tx) error {
			if v := tx.Bucket(bucketThumbs).Get([]byte(k)); v != nil {
				data = make([]byte, len(v))
				copy(data, v)
			}
			return nil
		})
		if data != nil {
			s.remember(k, data)
		}
	}
	if data == nil {
		return nil, false
	}

	var rec imageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	return &domain.Image{Data: rec.Data, MIMEType: rec.MIMEType}, true
}

// Put caches a thumbnail. Placeholders are never cached.
func (s *ThumbStore) Put(owner, identity string, img *domain.Image) error {
	if img == nil || img.Placeholder {
		return nil
	}
	data, err := json.Marshal(imageRecord{MIMEType: img.MIMEType, Data: img.Data})
	if err != nil {
		return err
	}

	k := key(owner, identity)
	s.remember(k, data)

	if s.db == nil {
		return nil // Memory-only mode
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketThumbs).Put([]byte(k), data)
	})
}

// remember adds to the memory cache, evicting the oldest entry when full
func (s *ThumbStore) remember(k string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cache[k]; !exists {
		s.order = append(s.order, k)
	}
	s.cache[k] = data

	for len(s.order) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
	}
}

// Len returns the number of thumbnails held in memory
func (s *ThumbStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// InvalidateAll drops every cached thumbnail
func (s *ThumbStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.order = nil
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketThumbs); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketThumbs)
		return err
	})
}
