package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// FileStore is a Store on the local filesystem. Entries are JSON files
// written atomically (temp file + rename) so readers never observe a
// partial write. The filesystem does not evict, so expiry is checked on
// read and stale files are removed then.
type FileStore struct {
	dir string
}

type storedEntry struct {
	Entry
	ExpiresAt time.Time `json:"expires_at"`
}

// NewFileStore creates the cache directory if needed and returns a
// store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Get implements Store.
func (f *FileStore) Get(_ context.Context, key string) (*Entry, bool) {
	path := f.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var stored storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		// Corrupt file, drop it and treat as a miss.
		_ = os.Remove(path)
		return nil, false
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}
	e := stored.Entry
	return &e, true
}

// Set implements Store.
func (f *FileStore) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(storedEntry{Entry: *entry, ExpiresAt: time.Now().Add(ttl)})
	if err != nil {
		return err
	}
	path := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, sanitizeKey(key)+".json")
}

// sanitizeKey turns a cache key into a safe flat filename. Keys are
// URLs, so separators and query characters are folded to underscores;
// overlong keys are hashed to stay under filename limits.
func sanitizeKey(key string) string {
	if len(key) > 200 {
		sum := md5.Sum([]byte(key))
		return hex.EncodeToString(sum[:])
	}
	replacer := strings.NewReplacer(
		"/", "_",
		":", "_",
		"?", "_",
		"&", "_",
		"=", "_",
		"#", "_",
		";", "_",
		" ", "_",
	)
	return replacer.Replace(key)
}
