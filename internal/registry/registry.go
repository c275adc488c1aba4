// Package registry persists the durable sync metadata for one workspace:
// per-conversation cursors, corpus statistics, and the resolved-user cache.
// Everything here is small JSON written with a tmp+rename so a crash mid-write
// never leaves a torn file behind.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StateVersion is bumped when the on-disk layout of State changes.
const StateVersion = 1

// Stats is the corpus snapshot recomputed at the end of every sync.
type Stats struct {
	TotalMessages         int   `json:"total_messages"`
	DistinctConversations int   `json:"distinct_conversations"`
	DistinctSenders       int   `json:"distinct_senders"`
	OldestTimestamp       int64 `json:"oldest_timestamp"`
	NewestTimestamp       int64 `json:"newest_timestamp"`
	IndexedAt             int64 `json:"indexed_at"`
}

// State is the single durable record for a workspace. Cursors map a
// conversation id to the highest external id committed for it; a conversation
// that has never yielded a message has no entry.
type State struct {
	Version       int    `json:"version"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	UserID        string `json:"user_id"`

	Stats   Stats             `json:"stats"`
	Cursors map[string]string `json:"cursors"`
}

// Registry reads and writes the state record at a fixed path.
type Registry struct {
	path string
}

func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Load returns the last persisted state. The second return is false when no
// state has ever been saved, which callers treat as "no prior index" rather
// than an error.
func (r *Registry) Load() (*State, bool, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("registry: read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("registry: parse state: %w", err)
	}
	if st.Cursors == nil {
		st.Cursors = make(map[string]string)
	}
	return &st, true, nil
}

// Save overwrites the state record atomically.
func (r *Registry) Save(st *State) error {
	st.Version = StateVersion

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("registry: create state directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal state: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("registry: write state: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("registry: replace state: %w", err)
	}
	return nil
}
