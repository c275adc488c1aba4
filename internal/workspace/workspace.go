// Package workspace assembles the per-workspace resources (store, fuzzy
// index, registry, user cache, pipeline, search engine) behind one handle
// with a guaranteed Close.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/slacksift/slacksift/internal/config"
	"github.com/slacksift/slacksift/internal/index"
	"github.com/slacksift/slacksift/internal/ingest"
	"github.com/slacksift/slacksift/internal/logging"
	"github.com/slacksift/slacksift/internal/registry"
	"github.com/slacksift/slacksift/internal/search"
	"github.com/slacksift/slacksift/internal/slack"
	"github.com/slacksift/slacksift/internal/store"
)

// ErrIndexNotFound reports a read against a workspace that has never
// completed a full build.
var ErrIndexNotFound = errors.New("workspace: no index found (run 'slacksift build' first)")

const (
	dbFileName       = "messages.db"
	snapshotFileName = "index.snap"
	stateFileName    = "state.json"
	usersFileName    = "users.json"
)

// Handle owns every resource bound to one workspace. Callers must Close it;
// Close is safe on every exit path including partially failed syncs.
type Handle struct {
	Alias string
	Auth  config.WorkspaceAuth

	Store    *store.Store
	Index    *index.Index
	Registry *registry.Registry
	Users    *registry.UserCache
	Pipeline *ingest.Pipeline
	Engine   *search.Engine

	dir          string
	snapshotPath string
	log          *slog.Logger
}

// Open resolves the effective workspace (explicit alias, environment, or
// configured default) and opens its resources. A corrupt index snapshot
// surfaces as *index.SnapshotCorruptError; the fix is a fresh build.
func Open(alias string) (*Handle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	workspaces, err := config.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	resolved, err := workspaces.EffectiveWorkspace(alias)
	if err != nil {
		return nil, err
	}
	auth, err := workspaces.Auth(resolved)
	if err != nil {
		return nil, err
	}

	client := slack.NewClient(slack.ClientConfig{
		Token:      auth.Token,
		RatePerSec: cfg.Sync.GetRatePerSec(),
		RateBurst:  cfg.Sync.GetRateBurst(),
		Timeout:    time.Duration(cfg.Sync.GetHTTPTimeoutSecs()) * time.Second,
		PageSize:   cfg.Sync.GetPageSize(),
	})
	return openWith(resolved, auth, client, cfg)
}

func openWith(alias string, auth config.WorkspaceAuth, client slack.Client, cfg *config.Config) (*Handle, error) {
	dir, err := config.GetWorkspaceDir(alias)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("workspace: create data directory: %w", err)
	}

	st, err := store.Open(filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, err
	}

	h := &Handle{
		Alias:        alias,
		Auth:         auth,
		Store:        st,
		Registry:     registry.NewRegistry(filepath.Join(dir, stateFileName)),
		Users:        registry.NewUserCache(filepath.Join(dir, usersFileName)),
		dir:          dir,
		snapshotPath: filepath.Join(dir, snapshotFileName),
		log:          logging.ForComponent(logging.CompStore),
	}

	h.Index = index.New(index.Options{
		Fuzziness:         cfg.Search.GetFuzziness(),
		TextBoost:         cfg.Search.Boosts.GetText(),
		SenderBoost:       cfg.Search.Boosts.GetSender(),
		ConversationBoost: cfg.Search.Boosts.GetConversation(),
	})
	if err := h.loadSnapshot(); err != nil {
		st.Close()
		return nil, err
	}

	if err := h.Users.Load(); err != nil {
		st.Close()
		return nil, err
	}

	h.Pipeline = ingest.New(ingest.Deps{
		Client:       client,
		Store:        h.Store,
		Index:        h.Index,
		Registry:     h.Registry,
		Users:        h.Users,
		PersistIndex: h.persistSnapshot,
	}, ingest.Options{
		FetchWorkers: cfg.Sync.GetFetchWorkers(),
	})
	h.Engine = search.NewEngine(h.Store, h.Index, func(ctx context.Context) error {
		_, err := h.Pipeline.UpdateIndex(ctx, nil)
		return err
	})
	return h, nil
}

// Close releases the workspace's resources.
func (h *Handle) Close() error {
	return h.Store.Close()
}

// Dir returns the workspace's data directory.
func (h *Handle) Dir() string {
	return h.dir
}

// StatePath returns the location of the durable sync state record.
func (h *Handle) StatePath() string {
	return filepath.Join(h.dir, stateFileName)
}

// RequireIndex reports ErrIndexNotFound until a full build has completed. It
// re-reads the registry so a build finished earlier in the same process
// counts.
func (h *Handle) RequireIndex() error {
	_, ok, err := h.Registry.Load()
	if err != nil {
		return err
	}
	if !ok {
		return ErrIndexNotFound
	}
	return nil
}

// Stats returns the persisted corpus statistics.
func (h *Handle) Stats() (*registry.State, error) {
	st, ok, err := h.Registry.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrIndexNotFound
	}
	return st, nil
}

func (h *Handle) loadSnapshot() error {
	data, err := os.ReadFile(h.snapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("workspace: read index snapshot: %w", err)
	}
	if err := h.Index.Restore(data); err != nil {
		return err
	}
	h.log.Debug("snapshot_loaded",
		slog.String("workspace", h.Alias),
		slog.Int("documents", h.Index.DocCount()))
	return nil
}

func (h *Handle) persistSnapshot() error {
	data, err := h.Index.Snapshot()
	if err != nil {
		return fmt.Errorf("workspace: encode index snapshot: %w", err)
	}
	tmpPath := h.snapshotPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("workspace: write index snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, h.snapshotPath); err != nil {
		return fmt.Errorf("workspace: replace index snapshot: %w", err)
	}
	return nil
}
