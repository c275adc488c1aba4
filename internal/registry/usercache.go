package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// UserCache maps raw user ids to resolved display names. A full sync replaces
// the whole cache; an incremental sync only reads it, so authors keep the
// names they were resolved to at the last full sync.
type UserCache struct {
	mu    sync.RWMutex
	path  string
	names map[string]string
}

func NewUserCache(path string) *UserCache {
	return &UserCache{
		path:  path,
		names: make(map[string]string),
	}
}

// Load reads the cache from disk. A missing file leaves the cache empty.
func (c *UserCache) Load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("registry: read user cache: %w", err)
	}

	var payload struct {
		Version int               `json:"version"`
		Users   map[string]string `json:"users"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("registry: parse user cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if payload.Users == nil {
		payload.Users = make(map[string]string)
	}
	c.names = payload.Users
	return nil
}

// Replace swaps in a freshly resolved id-to-name map.
func (c *UserCache) Replace(names map[string]string) {
	copied := make(map[string]string, len(names))
	for id, name := range names {
		copied[id] = name
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = copied
}

// Resolve returns the cached display name for a user id.
func (c *UserCache) Resolve(userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[userID]
	return name, ok
}

func (c *UserCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Save writes the cache to disk atomically.
func (c *UserCache) Save() error {
	c.mu.RLock()
	payload := struct {
		Version int               `json:"version"`
		Users   map[string]string `json:"users"`
	}{Version: StateVersion, Users: c.names}
	data, err := json.MarshalIndent(&payload, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("registry: marshal user cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("registry: create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("registry: write user cache: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("registry: replace user cache: %w", err)
	}
	return nil
}
