package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"karolbroda.com/lyricast/internal/lyrics"
)

const (
	formatVersion = 2
	entrySuffix   = ".bin"
	DefaultTTL    = 30 * 24 * time.Hour
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// LyricEntry is a resolved lyric set for one (artist, title) as reported by the player.
// Only sets with content are cached; sentinels are always re-fetched.
type LyricEntry struct {
	Version    uint8
	TrackName  string
	ArtistName string
	AlbumName  string
	Duration   float64
	Lyrics     lyrics.LyricSet
	CreatedAt  int64
	ExpiresAt  int64
}

func (e *LyricEntry) expired(now time.Time) bool {
	return e.ExpiresAt <= now.Unix()
}

// DiskCache keeps entries in memory and, when rooted at a directory, mirrors
// each one to a gob file named after its key.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*LyricEntry
}

// New opens a cache rooted at dir, creating it if needed. An empty dir gives a memory-only cache.
func New(dir string) (*DiskCache, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	return &DiskCache{
		dir:     dir,
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]*LyricEntry),
	}, nil
}

// NewMemory returns a cache that never touches disk.
func NewMemory() *DiskCache {
	c, _ := New("")
	return c
}

func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) persistent() bool { return c.dir != "" }

func generateKey(artist, title string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(artist) + "|" + strings.ToLower(title)))
	return hex.EncodeToString(sum[:12])
}

func (c *DiskCache) getFilePath(key string) string {
	if !c.persistent() {
		return ""
	}
	return filepath.Join(c.dir, key+entrySuffix)
}

func (c *DiskCache) Get(artist, title string) (*LyricEntry, error) {
	if artist == "" || title == "" {
		return nil, ErrCacheMiss
	}

	key := generateKey(artist, title)
	now := c.now()

	if entry, ok := c.remembered(key); ok {
		if !entry.expired(now) {
			return entry, nil
		}
		c.forget(key)
	}

	if !c.persistent() {
		return nil, ErrCacheMiss
	}

	path := c.getFilePath(key)
	entry, err := loadEntry(path)
	if err != nil {
		return nil, err
	}
	if entry.expired(now) {
		_ = os.Remove(path)
		return nil, ErrCacheExpired
	}

	c.remember(key, entry)
	return entry, nil
}

func (c *DiskCache) Set(artist, title string, entry *LyricEntry) error {
	if artist == "" || title == "" || entry == nil {
		return errors.New("invalid cache entry")
	}
	if !entry.Lyrics.HasContent() {
		return errors.New("refusing to cache lyrics without content")
	}

	now := c.now().Unix()
	entry.Version = formatVersion
	entry.CreatedAt = now
	entry.ExpiresAt = now + int64(c.ttl/time.Second)

	key := generateKey(artist, title)
	c.remember(key, entry)

	if !c.persistent() {
		return nil
	}
	return saveEntry(c.getFilePath(key), entry)
}

func (c *DiskCache) Delete(artist, title string) error {
	if artist == "" || title == "" {
		return errors.New("invalid artist or title")
	}

	key := generateKey(artist, title)
	c.forget(key)

	if !c.persistent() {
		return nil
	}
	if err := os.Remove(c.getFilePath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (c *DiskCache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]*LyricEntry)
	c.mu.Unlock()

	return c.eachFile(func(path string, _ fs.DirEntry) error {
		_ = os.Remove(path)
		return nil
	})
}

// Prune removes expired and unreadable files and reports how many went.
func (c *DiskCache) Prune() (int, error) {
	now := c.now()
	pruned := 0

	err := c.eachFile(func(path string, _ fs.DirEntry) error {
		entry, err := loadEntry(path)
		if err == nil && !entry.expired(now) {
			return nil
		}
		_ = os.Remove(path)
		pruned++
		return nil
	})

	return pruned, err
}

func (c *DiskCache) Stats() (count int, sizeBytes int64, err error) {
	err = c.eachFile(func(_ string, d fs.DirEntry) error {
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		count++
		sizeBytes += info.Size()
		return nil
	})
	return count, sizeBytes, err
}

// ListAll returns every readable entry; expired ones are included until pruned.
func (c *DiskCache) ListAll() ([]*LyricEntry, error) {
	if !c.persistent() {
		c.mu.RLock()
		defer c.mu.RUnlock()

		result := make([]*LyricEntry, 0, len(c.entries))
		for _, entry := range c.entries {
			result = append(result, entry)
		}
		return result, nil
	}

	var result []*LyricEntry
	err := c.eachFile(func(path string, _ fs.DirEntry) error {
		if entry, err := loadEntry(path); err == nil {
			result = append(result, entry)
		}
		return nil
	})
	return result, err
}

func (c *DiskCache) remembered(key string) (*LyricEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *DiskCache) remember(key string, entry *LyricEntry) {
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

func (c *DiskCache) forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// eachFile visits every entry file directly under the cache dir.
func (c *DiskCache) eachFile(fn func(path string, d fs.DirEntry) error) error {
	if !c.persistent() {
		return nil
	}

	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, d := range dirEntries {
		if d.IsDir() || !strings.HasSuffix(d.Name(), entrySuffix) {
			continue
		}
		if err := fn(filepath.Join(c.dir, d.Name()), d); err != nil {
			return err
		}
	}
	return nil
}

func loadEntry(path string) (*LyricEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer file.Close()

	var entry LyricEntry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		return nil, ErrCacheCorrupt
	}

	// older formats are dropped rather than migrated
	if entry.Version != formatVersion {
		_ = os.Remove(path)
		return nil, ErrCacheCorrupt
	}

	return &entry, nil
}

// saveEntry writes through a temp file and renames it into place.
func saveEntry(path string, entry *LyricEntry) (err error) {
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = gob.NewEncoder(file).Encode(entry); err != nil {
		file.Close()
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
