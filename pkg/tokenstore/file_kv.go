package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const fileKVName = "pending_signups.json"

// FileKV implements KV using a JSON file on disk
type FileKV struct {
	dataDir string
	items   map[string]fileEntry
	mutex   sync.RWMutex
}

// fileEntry represents one key as stored in the JSON file
type fileEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (e fileEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// NewFileKV creates a new file-based key-value store in dataDir
func NewFileKV(dataDir string) (*FileKV, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	kv := &FileKV{
		dataDir: dataDir,
		items:   make(map[string]fileEntry),
	}

	if err := kv.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return kv, nil
}

func (k *FileKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k.mutex.RLock()
	defer k.mutex.RUnlock()

	e, ok := k.items[key]
	if !ok || e.expired(time.Now()) {
		return nil, false, nil
	}
	return append([]byte(nil), e.Value...), true, nil
}

func (k *FileKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	e := fileEntry{Value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.ExpiresAt = time.Now().Add(ttl)
	}

	prev, had := k.items[key]
	k.items[key] = e
	if err := k.save(); err != nil {
		if had {
			k.items[key] = prev
		} else {
			delete(k.items, key)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (k *FileKV) Del(ctx context.Context, key string) error {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	prev, ok := k.items[key]
	if !ok {
		return nil
	}
	delete(k.items, key)
	if err := k.save(); err != nil {
		k.items[key] = prev
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// Sweep removes expired entries and returns how many were dropped
func (k *FileKV) Sweep(ctx context.Context) (int, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	now := time.Now()
	removed := make(map[string]fileEntry)
	for key, e := range k.items {
		if e.expired(now) {
			removed[key] = e
			delete(k.items, key)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := k.save(); err != nil {
		for key, e := range removed {
			k.items[key] = e
		}
		return 0, fmt.Errorf("failed to save: %w", err)
	}
	slog.Info("Expired pending signups swept", "count", len(removed))
	return len(removed), nil
}

// load reads data from the JSON file
func (k *FileKV) load() error {
	path := filepath.Join(k.dataDir, fileKVName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &k.items); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if k.items == nil {
		k.items = make(map[string]fileEntry)
	}
	return nil
}

// save writes data to the JSON file atomically. Caller must hold the write lock.
func (k *FileKV) save() error {
	path := filepath.Join(k.dataDir, fileKVName)
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(k.items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
