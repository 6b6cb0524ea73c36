// Package cache stores stem-extraction results keyed by input content
// hash, so re-transforming an identical upload skips the expensive
// separation and transcription stages.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// pipelineVersion captures every parameter that affects stem extraction.
// Changing any of these invalidates existing cache entries.
const pipelineVersion = "bands=80/200/2000;hpss=2048/512/17;transcribe=4096/1024;divisions=4"

var computedVersion = func() string {
	sum := sha256.Sum256([]byte(pipelineVersion))
	return hex.EncodeToString(sum[:])[:12]
}()

// Cache manages cached stem directories
type Cache struct {
	dir string
}

// Entry describes a cached stems directory
type Entry struct {
	Dir      string
	CacheKey string
	CachedAt time.Time
}

// New creates a cache rooted at dir
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Version returns the current cache version
func Version() string {
	return computedVersion
}

// KeyForFile generates a cache key from a file's content hash
func KeyForFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	return "file_" + hex.EncodeToString(hash.Sum(nil))[:16], nil
}

// Get retrieves the cached stems directory for the given key
func (c *Cache) Get(key string) (*Entry, bool) {
	subdir := filepath.Join(c.dir, key)

	info, err := os.Stat(subdir)
	if err != nil || !info.IsDir() {
		return nil, false
	}

	// Version mismatch or missing marker invalidates the entry
	versionData, err := os.ReadFile(filepath.Join(subdir, ".version"))
	if err != nil || strings.TrimSpace(string(versionData)) != computedVersion {
		return nil, false
	}

	entries, err := os.ReadDir(subdir)
	if err != nil || len(entries) < 2 {
		return nil, false
	}

	return &Entry{
		Dir:      subdir,
		CacheKey: key,
		CachedAt: info.ModTime(),
	}, true
}

// Put copies every file from srcDir into the cache under key
func (c *Cache) Put(key, srcDir string) (*Entry, error) {
	subdir := filepath.Join(c.dir, key)
	if err := os.MkdirAll(subdir, 0755); err != nil {
		return nil, fmt.Errorf("create cache subdir: %w", err)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(srcDir, e.Name()), filepath.Join(subdir, e.Name())); err != nil {
			return nil, fmt.Errorf("cache %s: %w", e.Name(), err)
		}
	}

	if err := os.WriteFile(filepath.Join(subdir, ".version"), []byte(computedVersion), 0644); err != nil {
		return nil, fmt.Errorf("write cache version: %w", err)
	}

	return &Entry{Dir: subdir, CacheKey: key, CachedAt: time.Now()}, nil
}

// Restore copies a cached entry's files into dstDir
func (c *Cache) Restore(entry *Entry, dstDir string) error {
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	files, err := os.ReadDir(entry.Dir)
	if err != nil {
		return fmt.Errorf("read cache entry: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || f.Name() == ".version" {
			continue
		}
		if err := copyFile(filepath.Join(entry.Dir, f.Name()), filepath.Join(dstDir, f.Name())); err != nil {
			return fmt.Errorf("restore %s: %w", f.Name(), err)
		}
	}
	return nil
}

// Clear removes all cached entries
func (c *Cache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Size returns the total size of cached entries in bytes and the entry count
func (c *Cache) Size() (int64, int, error) {
	var totalSize int64
	var count int

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		count++

		files, _ := os.ReadDir(filepath.Join(c.dir, entry.Name()))
		for _, f := range files {
			if info, err := f.Info(); err == nil {
				totalSize += info.Size()
			}
		}
	}

	return totalSize, count, nil
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0644)
}
