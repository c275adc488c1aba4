package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// WorkspacesFileName is the JSON file holding workspace credentials.
const WorkspacesFileName = "workspaces.json"

// ErrNotConfigured is returned when no workspace has been registered.
// Callers should direct the user to `slacksift auth`.
var ErrNotConfigured = errors.New("no workspace configured (run 'slacksift auth' first)")

// WorkspaceAuth holds the credentials and resolved identity for one workspace.
type WorkspaceAuth struct {
	// Token is the Slack user token (xoxp-...). Stored with 0600 perms.
	Token string `json:"token"`

	// WorkspaceID and WorkspaceName are filled in after the first
	// successful authentication.
	WorkspaceID   string `json:"workspace_id,omitempty"`
	WorkspaceName string `json:"workspace_name,omitempty"`

	// UserID is the authenticated user, used to flag self-authored messages.
	UserID string `json:"user_id,omitempty"`

	// AddedAt records when the workspace was registered.
	AddedAt time.Time `json:"added_at"`
}

// Workspaces is the on-disk credential registry.
type Workspaces struct {
	// Current is the alias used when no workspace is named explicitly.
	Current string `json:"current"`

	// Entries maps alias -> credentials.
	Entries map[string]WorkspaceAuth `json:"workspaces"`

	// Version tracks the file format for future migrations.
	Version int `json:"version"`
}

// GetWorkspacesPath returns the path to workspaces.json.
func GetWorkspacesPath() (string, error) {
	dir, err := GetSlacksiftDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, WorkspacesFileName), nil
}

// GetWorkspaceDir returns the data directory for one workspace
// (~/.slacksift/workspaces/<alias>). The alias is sanitized against
// path traversal.
func GetWorkspaceDir(alias string) (string, error) {
	alias = filepath.Base(alias)
	if alias == "" || alias == "." || alias == ".." {
		return "", fmt.Errorf("config: invalid workspace alias: %q", alias)
	}
	dir, err := GetSlacksiftDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, WorkspacesDirName, alias), nil
}

// LoadWorkspaces reads workspaces.json. A missing file yields an empty
// registry, not an error.
func LoadWorkspaces() (*Workspaces, error) {
	path, err := GetWorkspacesPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Workspaces{Entries: map[string]WorkspaceAuth{}, Version: 1}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read workspaces: %w", err)
	}

	var w Workspaces
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("config: parse workspaces: %w", err)
	}
	if w.Entries == nil {
		w.Entries = map[string]WorkspaceAuth{}
	}
	return &w, nil
}

// SaveWorkspaces writes workspaces.json atomically with 0600 perms.
func SaveWorkspaces(w *Workspaces) error {
	path, err := GetWorkspacesPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal workspaces: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}

// Aliases returns the registered workspace aliases, sorted.
func (w *Workspaces) Aliases() []string {
	aliases := make([]string, 0, len(w.Entries))
	for alias := range w.Entries {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Set registers or updates a workspace and makes it current when it is
// the first one.
func (w *Workspaces) Set(alias string, auth WorkspaceAuth) {
	if auth.AddedAt.IsZero() {
		if existing, ok := w.Entries[alias]; ok {
			auth.AddedAt = existing.AddedAt
		} else {
			auth.AddedAt = time.Now()
		}
	}
	w.Entries[alias] = auth
	if w.Current == "" {
		w.Current = alias
	}
}

// Remove deletes a workspace's credentials and its data directory.
func (w *Workspaces) Remove(alias string) error {
	if _, ok := w.Entries[alias]; !ok {
		return fmt.Errorf("config: workspace %q does not exist", alias)
	}
	delete(w.Entries, alias)
	if w.Current == alias {
		w.Current = ""
		for _, a := range w.Aliases() {
			w.Current = a
			break
		}
	}

	dir, err := GetWorkspaceDir(alias)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("config: remove workspace data: %w", err)
	}
	return nil
}

// EffectiveWorkspace resolves the workspace alias to use, considering:
// 1. Explicitly provided alias (from --workspace flag)
// 2. Environment variable SLACKSIFT_WORKSPACE
// 3. The registry's current workspace
func (w *Workspaces) EffectiveWorkspace(explicit string) (string, error) {
	alias := explicit
	if alias == "" {
		alias = os.Getenv("SLACKSIFT_WORKSPACE")
	}
	if alias == "" {
		alias = w.Current
	}
	if alias == "" {
		return "", ErrNotConfigured
	}
	if _, ok := w.Entries[alias]; !ok {
		return "", fmt.Errorf("config: workspace %q is not registered: %w", alias, ErrNotConfigured)
	}
	return alias, nil
}

// Auth returns the credentials for an alias, or ErrNotConfigured when the
// alias is unknown or has an empty token.
func (w *Workspaces) Auth(alias string) (WorkspaceAuth, error) {
	auth, ok := w.Entries[alias]
	if !ok || auth.Token == "" {
		return WorkspaceAuth{}, ErrNotConfigured
	}
	return auth, nil
}
