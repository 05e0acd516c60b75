package internal

import (
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	tt "github.com/gnoverse/impact/internal/types"
)

const cacheFileName = "verdict_cache.gob"

type fileMetadata struct {
	Hash         string
	LastModified time.Time
}

type CacheEntry struct {
	Metadata fileMetadata
	// Func is the function the report was lowered from, empty for CFA files.
	Func         string
	Report       tt.Report
	Dependencies map[string]string
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Cache stores reports by file and function. An entry is dropped when the file, the
// selected function or one of the dependency files changes, or when it
// grows older than the maximum age.
type Cache struct {
	CacheDir        string
	entries         map[string]CacheEntry
	mutex           sync.Mutex
	maxAge          time.Duration
	dependencyFiles []string
}

// NewCache opens the cache in cacheDir, creating the directory if needed.
// Reports are invalidated whenever one of dependencyFiles changes.
func NewCache(cacheDir string, maxAge time.Duration, dependencyFiles ...string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &Cache{
		CacheDir:        cacheDir,
		entries:         make(map[string]CacheEntry),
		maxAge:          maxAge,
		dependencyFiles: dependencyFiles,
	}

	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}

	return cache, nil
}

func (c *Cache) load() error {
	file, err := os.Open(filepath.Join(c.CacheDir, cacheFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&c.entries); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	return nil
}

func (c *Cache) save() error {
	file, err := os.Create(filepath.Join(c.CacheDir, cacheFileName))
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c.entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	return nil
}

// Set stores the report of filename and persists the cache.
func (c *Cache) Set(filename, funcName string, report tt.Report) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	metadata, err := getFileMetadata(filename)
	if err != nil {
		return fmt.Errorf("failed to get file metadata: %w", err)
	}
	deps, err := c.dependencyHashes()
	if err != nil {
		return err
	}

	now := time.Now()
	c.entries[entryKey(filename, funcName)] = CacheEntry{
		Metadata:     metadata,
		Func:         funcName,
		Report:       report,
		Dependencies: deps,
		CreatedAt:    now,
		LastAccessed: now,
	}

	return c.save()
}

// Get returns the cached report of filename if it is still valid.
func (c *Cache) Get(filename, funcName string) (tt.Report, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := entryKey(filename, funcName)
	entry, exists := c.entries[key]
	if !exists {
		return tt.Report{}, false
	}

	if c.isEntryInvalid(filename, funcName, entry) {
		delete(c.entries, key)
		return tt.Report{}, false
	}

	entry.LastAccessed = time.Now()
	c.entries[key] = entry

	return entry.Report, true
}

func entryKey(filename, funcName string) string {
	return filename + "\x00" + funcName
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

func (c *Cache) isEntryInvalid(filename, funcName string, entry CacheEntry) bool {
	if c.maxAge > 0 && time.Since(entry.CreatedAt) > c.maxAge {
		return true
	}
	if entry.Func != funcName {
		return true
	}

	currentMetadata, err := getFileMetadata(filename)
	if err != nil || currentMetadata.Hash != entry.Metadata.Hash ||
		!currentMetadata.LastModified.Equal(entry.Metadata.LastModified) {
		return true
	}

	return c.haveDependenciesChanged(entry.Dependencies)
}

func (c *Cache) haveDependenciesChanged(recorded map[string]string) bool {
	for _, file := range c.dependencyFiles {
		hash, err := getFileHash(file)
		if err != nil && !os.IsNotExist(err) {
			return true
		}
		if hash != recorded[file] {
			return true
		}
	}
	return false
}

// dependencyHashes hashes the dependency files. Missing files hash to the
// empty string so that creating one invalidates the cache.
func (c *Cache) dependencyHashes() (map[string]string, error) {
	hashes := make(map[string]string, len(c.dependencyFiles))
	for _, file := range c.dependencyFiles {
		hash, err := getFileHash(file)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to get hash for %s: %w", file, err)
		}
		hashes[file] = hash
	}
	return hashes, nil
}

func (c *Cache) SetMaxAge(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = duration
}

func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]CacheEntry)
	_ = c.save()
}

func getFileMetadata(filename string) (fileMetadata, error) {
	file, err := os.Open(filename)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fileMetadata{}, fmt.Errorf("failed to calculate hash: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return fileMetadata{}, fmt.Errorf("failed to get file info: %w", err)
	}

	return fileMetadata{
		Hash:         fmt.Sprintf("%x", hash.Sum(nil)),
		LastModified: info.ModTime(),
	}, nil
}

func getFileHash(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
