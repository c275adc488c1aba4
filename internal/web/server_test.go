package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slacksift/slacksift/internal/config"
	"github.com/slacksift/slacksift/internal/index"
	"github.com/slacksift/slacksift/internal/registry"
	"github.com/slacksift/slacksift/internal/store"
	"github.com/slacksift/slacksift/internal/workspace"
)

func newTestServer(t *testing.T, token string) (*Server, *workspace.Handle) {
	t.Helper()
	t.Setenv("SLACKSIFT_HOME", t.TempDir())

	registered, err := config.LoadWorkspaces()
	require.NoError(t, err)
	registered.Set("acme", config.WorkspaceAuth{Token: "xoxp-test"})
	require.NoError(t, config.SaveWorkspaces(registered))

	h, err := workspace.Open("acme")
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	return NewServer(Config{Token: token}, h), h
}

func seedCorpus(t *testing.T, h *workspace.Handle) {
	t.Helper()

	msgs := []store.Message{
		{ExternalID: "10.1", ConversationID: "C1", ConversationName: "general", Sender: "Ana Torres", Text: "kickoff notes", Timestamp: 10},
		{ExternalID: "20.1", ConversationID: "C1", ConversationName: "general", Sender: "Ben Okafor", Text: "the deadline is friday", Timestamp: 20},
		{ExternalID: "30.1", ConversationID: "C1", ConversationName: "general", Sender: "Ana Torres", Text: "noted", Timestamp: 30},
	}
	_, err := h.Store.InsertBatch(context.Background(), msgs)
	require.NoError(t, err)

	docs := make([]index.Document, len(msgs))
	for i, m := range msgs {
		docs[i] = index.Document{
			ExternalID:       m.ExternalID,
			ConversationID:   m.ConversationID,
			ConversationName: m.ConversationName,
			Sender:           m.Sender,
			Text:             m.Text,
			Timestamp:        m.Timestamp,
		}
	}
	h.Index.AddBatch(docs)

	require.NoError(t, h.Registry.Save(&registry.State{
		WorkspaceID:   "T1",
		WorkspaceName: "acme",
		UserID:        "U_ME",
		Stats: registry.Stats{
			TotalMessages:         3,
			DistinctConversations: 1,
			DistinctSenders:       2,
			OldestTimestamp:       10,
			NewestTimestamp:       30,
			IndexedAt:             1700000000,
		},
		Cursors: map[string]string{"C1": "30.1"},
	}))
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doRequest(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "acme", body["workspace"])
}

func TestSearchEndpoint(t *testing.T) {
	s, h := newTestServer(t, "")
	seedCorpus(t, h)

	rec := doRequest(t, s, http.MethodGet, "/api/search?q=deadlne&context=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []struct {
			Message struct {
				ExternalID string `json:"external_id"`
				Text       string `json:"text"`
			} `json:"message"`
			Score  float64 `json:"score"`
			Before []struct {
				ExternalID string `json:"external_id"`
			} `json:"before"`
			After []struct {
				ExternalID string `json:"external_id"`
			} `json:"after"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "20.1", body.Results[0].Message.ExternalID)
	assert.Greater(t, body.Results[0].Score, 0.0)
	require.Len(t, body.Results[0].Before, 1)
	assert.Equal(t, "10.1", body.Results[0].Before[0].ExternalID)
	require.Len(t, body.Results[0].After, 1)
	assert.Equal(t, "30.1", body.Results[0].After[0].ExternalID)
}

func TestSearchBeforeBuildReturnsIndexNotFound(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doRequest(t, s, http.MethodGet, "/api/search?q=anything")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "INDEX_NOT_FOUND")
}

func TestSearchRejectsBadAfter(t *testing.T) {
	s, h := newTestServer(t, "")
	seedCorpus(t, h)

	rec := doRequest(t, s, http.MethodGet, "/api/search?q=x&after=tomorrow")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

func TestAuthToken(t *testing.T) {
	s, h := newTestServer(t, "sekrit")
	seedCorpus(t, h)

	rec := doRequest(t, s, http.MethodGet, "/api/recent")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/recent?token=sekrit")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/recent", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	bearer := httptest.NewRecorder()
	s.Handler().ServeHTTP(bearer, req)
	assert.Equal(t, http.StatusOK, bearer.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/recent?token=wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReadEndpoints(t *testing.T) {
	s, h := newTestServer(t, "")
	seedCorpus(t, h)

	rec := doRequest(t, s, http.MethodGet, "/api/recent?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var recent struct {
		Messages []struct {
			ExternalID string `json:"external_id"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	require.Len(t, recent.Messages, 2)
	assert.Equal(t, "30.1", recent.Messages[0].ExternalID)

	rec = doRequest(t, s, http.MethodGet, "/api/contacts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ana Torres")

	rec = doRequest(t, s, http.MethodGet, "/api/conversations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "general")

	rec = doRequest(t, s, http.MethodGet, "/api/thread?name=gen")
	require.Equal(t, http.StatusOK, rec.Code)
	var thread struct {
		Messages []struct {
			ExternalID string `json:"external_id"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thread))
	require.Len(t, thread.Messages, 3)
	assert.Equal(t, "10.1", thread.Messages[0].ExternalID, "thread view is chronological")

	rec = doRequest(t, s, http.MethodGet, "/api/thread")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s, h := newTestServer(t, "")

	rec := doRequest(t, s, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusNotFound, rec.Code)

	seedCorpus(t, h)
	rec = doRequest(t, s, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stats struct {
			TotalMessages int `json:"total_messages"`
		} `json:"stats"`
		Cursors int `json:"cursors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Stats.TotalMessages)
	assert.Equal(t, 1, body.Cursors)
}

func TestSyncEndpointValidation(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doRequest(t, s, http.MethodGet, "/api/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"mode":"sideways"}`))
	bad := httptest.NewRecorder()
	s.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestProgressWebsocketReceivesBroadcasts(t *testing.T) {
	s, _ := newTestServer(t, "")

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/progress"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	got := make(chan wsEvent, 1)
	go func() {
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err == nil {
			got <- ev
		}
	}()

	// The subscriber registers shortly after the handshake; keep nudging
	// until the reader sees an event.
	for {
		s.broadcast(wsEvent{Type: "state-changed"})
		select {
		case ev := <-got:
			assert.Equal(t, "state-changed", ev.Type)
			return
		case <-time.After(50 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("websocket never received the broadcast")
			}
		}
	}
}
