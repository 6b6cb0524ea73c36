package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeStems(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data-"+name), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestKeyForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, []byte("audio bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	key1, err := KeyForFile(path)
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}
	if !strings.HasPrefix(key1, "file_") || len(key1) != len("file_")+16 {
		t.Errorf("unexpected key shape: %q", key1)
	}

	key2, _ := KeyForFile(path)
	if key1 != key2 {
		t.Error("same content must give the same key")
	}

	if err := os.WriteFile(path, []byte("different bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	key3, _ := KeyForFile(path)
	if key3 == key1 {
		t.Error("different content must give a different key")
	}
}

func TestPutGetRestore(t *testing.T) {
	c := newTestCache(t)
	src := filepath.Join(t.TempDir(), "stems")
	writeStems(t, src, "bass.wav", "bass.mid", "result.json")

	if _, ok := c.Get("file_0000000000000000"); ok {
		t.Fatal("Get on a missing key should fail")
	}

	entry, err := c.Put("file_0000000000000000", src)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if entry.CacheKey != "file_0000000000000000" {
		t.Errorf("entry key = %q", entry.CacheKey)
	}

	got, ok := c.Get("file_0000000000000000")
	if !ok {
		t.Fatal("Get after Put should succeed")
	}

	dst := filepath.Join(t.TempDir(), "restored")
	if err := c.Restore(got, dst); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	for _, name := range []string{"bass.wav", "bass.mid", "result.json"} {
		data, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			t.Fatalf("restored file %s missing: %v", name, err)
		}
		if string(data) != "data-"+name {
			t.Errorf("%s content mangled", name)
		}
	}
	// The version marker is internal and must not be restored
	if _, err := os.Stat(filepath.Join(dst, ".version")); err == nil {
		t.Error(".version marker leaked into restored dir")
	}
}

func TestGetRejectsVersionMismatch(t *testing.T) {
	c := newTestCache(t)
	src := filepath.Join(t.TempDir(), "stems")
	writeStems(t, src, "a.wav", "b.mid")

	if _, err := c.Put("file_1111111111111111", src); err != nil {
		t.Fatal(err)
	}

	marker := filepath.Join(c.dir, "file_1111111111111111", ".version")
	if err := os.WriteFile(marker, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("file_1111111111111111"); ok {
		t.Error("stale version marker should invalidate the entry")
	}
}

func TestGetRejectsSparseEntry(t *testing.T) {
	c := newTestCache(t)
	subdir := filepath.Join(c.dir, "file_2222222222222222")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(subdir, ".version"), []byte(computedVersion), 0644); err != nil {
		t.Fatal(err)
	}
	// Only the marker, no artifacts
	if _, ok := c.Get("file_2222222222222222"); ok {
		t.Error("entry with no artifacts should be rejected")
	}
}

func TestSizeAndClear(t *testing.T) {
	c := newTestCache(t)
	src := filepath.Join(t.TempDir(), "stems")
	writeStems(t, src, "x.wav", "y.wav")

	if _, err := c.Put("file_3333333333333333", src); err != nil {
		t.Fatal(err)
	}

	bytes, count, err := c.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if bytes == 0 {
		t.Error("size should be non-zero")
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	_, count, _ = c.Size()
	if count != 0 {
		t.Errorf("count after clear = %d", count)
	}
}

func TestVersionStable(t *testing.T) {
	if Version() != computedVersion {
		t.Error("Version() should expose the computed version")
	}
	if len(Version()) != 12 {
		t.Errorf("version length = %d, want 12", len(Version()))
	}
}
