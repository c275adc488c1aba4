package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slacksift/slacksift/internal/config"
	"github.com/slacksift/slacksift/internal/index"
	"github.com/slacksift/slacksift/internal/registry"
)

func openTestHandle(t *testing.T) *Handle {
	t.Helper()
	t.Setenv("SLACKSIFT_HOME", t.TempDir())

	h, err := openWith("acme", config.WorkspaceAuth{Token: "xoxp-test"}, nil, &config.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestOpenBeforeFirstBuild(t *testing.T) {
	h := openTestHandle(t)

	require.ErrorIs(t, h.RequireIndex(), ErrIndexNotFound)

	_, err := h.Stats()
	assert.ErrorIs(t, err, ErrIndexNotFound)

	assert.Zero(t, h.Index.DocCount())
}

func TestRequireIndexSeesLaterBuild(t *testing.T) {
	h := openTestHandle(t)

	require.ErrorIs(t, h.RequireIndex(), ErrIndexNotFound)

	require.NoError(t, h.Registry.Save(&registry.State{
		WorkspaceID: "T1",
		Stats:       registry.Stats{TotalMessages: 1, IndexedAt: 1700000000},
		Cursors:     map[string]string{"C1": "1.0"},
	}))

	require.NoError(t, h.RequireIndex())
	st, err := h.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Stats.TotalMessages)
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	t.Setenv("SLACKSIFT_HOME", t.TempDir())

	h, err := openWith("acme", config.WorkspaceAuth{Token: "xoxp-test"}, nil, &config.Config{})
	require.NoError(t, err)

	h.Index.AddBatch([]index.Document{
		{ExternalID: "1.0", ConversationID: "C1", ConversationName: "general", Sender: "Ana", Text: "the deadline is friday", Timestamp: 1},
	})
	require.NoError(t, h.persistSnapshot())
	require.NoError(t, h.Close())

	reopened, err := openWith("acme", config.WorkspaceAuth{Token: "xoxp-test"}, nil, &config.Config{})
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Index.DocCount())
	assert.True(t, reopened.Index.Contains("1.0"))
	hits := reopened.Index.Search("deadline", 10, nil)
	require.Len(t, hits, 1)
}

func TestCorruptSnapshotFailsOpen(t *testing.T) {
	t.Setenv("SLACKSIFT_HOME", t.TempDir())

	dir, err := config.GetWorkspaceDir("acme")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFileName), []byte("not a snapshot"), 0600))

	_, err = openWith("acme", config.WorkspaceAuth{Token: "xoxp-test"}, nil, &config.Config{})
	var corruptErr *index.SnapshotCorruptError
	require.ErrorAs(t, err, &corruptErr)
}

func TestHandleIsolatesWorkspaces(t *testing.T) {
	t.Setenv("SLACKSIFT_HOME", t.TempDir())

	first, err := openWith("acme", config.WorkspaceAuth{Token: "xoxp-a"}, nil, &config.Config{})
	require.NoError(t, err)
	defer first.Close()
	second, err := openWith("other", config.WorkspaceAuth{Token: "xoxp-b"}, nil, &config.Config{})
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, first.Dir(), second.Dir())

	first.Index.AddBatch([]index.Document{
		{ExternalID: "1.0", ConversationID: "C1", Sender: "Ana", Text: "hello", Timestamp: 1},
	})
	assert.Zero(t, second.Index.DocCount())
}
