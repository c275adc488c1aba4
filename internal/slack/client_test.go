package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		Token:      "xoxp-test",
		BaseURL:    srv.URL,
		RatePerSec: 1000, // keep tests fast
		RateBurst:  1000,
		PageSize:   2,
	})
}

func TestAuthenticate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth.test", r.URL.Path)
		require.Equal(t, "Bearer xoxp-test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"ok":true,"user_id":"U01","team_id":"T01","team":"Acme"}`)
	}))

	id, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "U01", id.UserID)
	assert.Equal(t, "T01", id.WorkspaceID)
	assert.Equal(t, "Acme", id.WorkspaceName)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"invalid_auth"}`)
	}))

	_, err := c.Authenticate(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid_auth", authErr.Reason)
}

func TestListUsersPaginatesAndFilters(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users.list", r.URL.Path)
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"ok":true,"members":[
				{"id":"U01","name":"ana","real_name":"Ana Torres","profile":{"display_name":"ana.t","real_name":"Ana Torres"}},
				{"id":"U02","name":"botly","is_bot":true,"profile":{}},
				{"id":"U03","name":"gone","deleted":true,"profile":{}}
			],"response_metadata":{"next_cursor":"page2"}}`)
		case "page2":
			fmt.Fprint(w, `{"ok":true,"members":[
				{"id":"U04","name":"finn","real_name":"Finn Ode","profile":{"display_name":""}}
			],"response_metadata":{"next_cursor":""}}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2, "bots and deleted users are filtered")
	assert.Equal(t, "ana.t", users[0].DisplayName)
	assert.Equal(t, "Ana Torres", users[0].RealName)
	assert.Equal(t, "finn", users[1].Username)
	assert.Empty(t, users[1].DisplayName)
}

func TestListConversationsKeepsMemberVisible(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations.list", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("exclude_archived"))
		fmt.Fprint(w, `{"ok":true,"channels":[
			{"id":"C01","name":"general","is_member":true},
			{"id":"C02","name":"secret","is_member":false},
			{"id":"D01","is_im":true,"user":"U07"}
		],"response_metadata":{"next_cursor":""}}`)
	}))

	convs, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2, "non-member channels are dropped")
	assert.Equal(t, "C01", convs[0].ID)
	assert.True(t, convs[1].IsDirectMessage)
	assert.Equal(t, "U07", convs[1].CounterpartUserID)
	assert.Empty(t, convs[1].Name, "DM names resolve later from the counterpart")
}

func TestFetchHistoryNormalizes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations.history", r.URL.Path)
		assert.Equal(t, "C01", r.URL.Query().Get("channel"))
		assert.Equal(t, "1700000000.000100", r.URL.Query().Get("oldest"))
		fmt.Fprint(w, `{"ok":true,"messages":[
			{"type":"message","ts":"1700000300.000400","user":"U01","text":"parent here","thread_ts":"1700000300.000400","reply_count":2},
			{"type":"message","ts":"1700000200.000300","user":"U02","text":"a reply","thread_ts":"1700000100.000200"},
			{"type":"message","subtype":"channel_join","ts":"1700000150.000250","user":"U03","text":"joined"},
			{"type":"message","ts":"1700000140.000240","user":"","text":"ghost"},
			{"type":"message","ts":"1700000130.000230","user":"U04","text":"   "}
		],"response_metadata":{"next_cursor":""}}`)
	}))

	msgs, err := c.FetchHistory(context.Background(), "C01", "1700000000.000100")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	parent := msgs[0]
	assert.Equal(t, "1700000300.000400", parent.ExternalID)
	assert.Empty(t, parent.ThreadParentID, "thread parents carry no parent id")
	assert.Equal(t, 2, parent.ReplyCount)

	reply := msgs[1]
	assert.Equal(t, "1700000100.000200", reply.ThreadParentID)
}

func TestFetchThreadRepliesExcludesParent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations.replies", r.URL.Path)
		assert.Equal(t, "1700000100.000200", r.URL.Query().Get("ts"))
		fmt.Fprint(w, `{"ok":true,"messages":[
			{"type":"message","ts":"1700000100.000200","user":"U01","text":"the parent","thread_ts":"1700000100.000200"},
			{"type":"message","ts":"1700000110.000210","user":"U02","text":"first reply","thread_ts":"1700000100.000200"},
			{"type":"message","ts":"1700000120.000220","user":"U01","text":"second reply","thread_ts":"1700000100.000200"}
		],"response_metadata":{"next_cursor":""}}`)
	}))

	msgs, err := c.FetchThreadReplies(context.Background(), "C01", "1700000100.000200")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1700000110.000210", msgs[0].ExternalID)
	assert.Equal(t, "1700000100.000200", msgs[0].ThreadParentID)
}

func TestFetchHistoryAccessError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"not_in_channel"}`)
	}))

	_, err := c.FetchHistory(context.Background(), "C09", "")
	var accessErr *ConversationAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "C09", accessErr.ConversationID)

	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr), "access errors must not look like auth errors")
}

func TestFetchHistoryAuthErrorStaysFatal(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"token_revoked"}`)
	}))

	_, err := c.FetchHistory(context.Background(), "C09", "")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestRateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"ok":true,"user_id":"U01","team_id":"T01","team":"Acme"}`)
	}))

	id, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "U01", id.UserID)
	assert.Equal(t, int32(2), calls.Load())
}
