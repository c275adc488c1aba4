package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/slacksift/slacksift/internal/logging"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// maxRateLimitRetries bounds 429 retries per call.
const maxRateLimitRetries = 5

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	// Token is the Slack user token (xoxp-...).
	Token string

	// BaseURL overrides the API root (tests).
	BaseURL string

	// RatePerSec caps outgoing API calls. Slack's tier-3 methods allow
	// ~50/min, so the default of 3/sec with a small burst stays polite.
	RatePerSec float64

	// RateBurst is the limiter burst size.
	RateBurst int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// PageSize is the page size requested from paginated methods.
	PageSize int
}

// HTTPClient implements Client against the Slack Web API.
type HTTPClient struct {
	token    string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	pageSize int
	log      *slog.Logger
}

// NewClient creates a Slack Web API client.
func NewClient(cfg ClientConfig) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	return &HTTPClient{
		token:    cfg.Token,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
		pageSize: cfg.PageSize,
		log:      logging.ForComponent(logging.CompSlack),
	}
}

// --- wire types ---

type authTestResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	UserID string `json:"user_id"`
	TeamID string `json:"team_id"`
	Team   string `json:"team"`
}

type apiUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Deleted  bool   `json:"deleted"`
	IsBot    bool   `json:"is_bot"`
	Profile  struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
	} `json:"profile"`
}

type usersListResponse struct {
	OK               bool      `json:"ok"`
	Error            string    `json:"error"`
	Members          []apiUser `json:"members"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type apiChannel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsIM     bool   `json:"is_im"`
	IsMember bool   `json:"is_member"`
	User     string `json:"user"`
}

type conversationsListResponse struct {
	OK               bool         `json:"ok"`
	Error            string       `json:"error"`
	Channels         []apiChannel `json:"channels"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type apiMessage struct {
	Type       string `json:"type"`
	Subtype    string `json:"subtype"`
	TS         string `json:"ts"`
	User       string `json:"user"`
	BotID      string `json:"bot_id"`
	Text       string `json:"text"`
	ThreadTS   string `json:"thread_ts"`
	ReplyCount int    `json:"reply_count"`
}

type historyResponse struct {
	OK               bool         `json:"ok"`
	Error            string       `json:"error"`
	Messages         []apiMessage `json:"messages"`
	HasMore          bool         `json:"has_more"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// systemSubtypes are message subtypes that never carry user-authored text.
var systemSubtypes = map[string]bool{
	"bot_message":       true,
	"bot_add":           true,
	"bot_remove":        true,
	"channel_join":      true,
	"channel_leave":     true,
	"channel_topic":     true,
	"channel_purpose":   true,
	"channel_name":      true,
	"channel_archive":   true,
	"channel_unarchive": true,
	"group_join":        true,
	"group_leave":       true,
	"message_changed":   true,
	"message_deleted":   true,
	"reminder_add":      true,
	"tombstone":         true,
}

// authErrorCodes are API error strings that mean the token itself is bad.
var authErrorCodes = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"account_inactive": true,
	"token_revoked":    true,
	"token_expired":    true,
	"missing_scope":    true,
}

// Authenticate calls auth.test and resolves the workspace identity.
func (c *HTTPClient) Authenticate(ctx context.Context) (Identity, error) {
	var resp authTestResponse
	if err := c.call(ctx, "auth.test", url.Values{}, &resp); err != nil {
		return Identity{}, err
	}
	if !resp.OK {
		if authErrorCodes[resp.Error] {
			return Identity{}, &AuthError{Reason: resp.Error}
		}
		return Identity{}, fmt.Errorf("slack: auth.test: %s", resp.Error)
	}
	return Identity{
		UserID:        resp.UserID,
		WorkspaceID:   resp.TeamID,
		WorkspaceName: resp.Team,
	}, nil
}

// ListUsers returns all human, non-deleted members, paginated to exhaustion.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	cursor := ""
	for {
		params := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp usersListResponse
		if err := c.call(ctx, "users.list", params, &resp); err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, c.apiError("users.list", resp.Error)
		}

		for _, m := range resp.Members {
			if m.IsBot || m.Deleted || m.ID == "USLACKBOT" {
				continue
			}
			realName := m.Profile.RealName
			if realName == "" {
				realName = m.RealName
			}
			users = append(users, User{
				ID:          m.ID,
				Username:    m.Name,
				RealName:    realName,
				DisplayName: m.Profile.DisplayName,
			})
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return users, nil
		}
	}
}

// ListConversations returns member-visible channels, groups, and DMs.
func (c *HTTPClient) ListConversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	cursor := ""
	for {
		params := url.Values{
			"limit":            {strconv.Itoa(c.pageSize)},
			"types":            {"public_channel,private_channel,mpim,im"},
			"exclude_archived": {"true"},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp conversationsListResponse
		if err := c.call(ctx, "conversations.list", params, &resp); err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, c.apiError("conversations.list", resp.Error)
		}

		for _, ch := range resp.Channels {
			// DMs carry no is_member flag; visibility implies membership.
			if !ch.IsIM && !ch.IsMember {
				continue
			}
			convs = append(convs, Conversation{
				ID:                ch.ID,
				Name:              ch.Name,
				IsDirectMessage:   ch.IsIM,
				CounterpartUserID: ch.User,
				IsMember:          true,
			})
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return convs, nil
		}
	}
}

// FetchHistory returns messages strictly newer than sinceExternalID,
// oldest bound exclusive, paginated to exhaustion.
func (c *HTTPClient) FetchHistory(ctx context.Context, conversationID, sinceExternalID string) ([]HistoryMessage, error) {
	var msgs []HistoryMessage
	cursor := ""
	for {
		params := url.Values{
			"channel": {conversationID},
			"limit":   {strconv.Itoa(c.pageSize)},
		}
		if sinceExternalID != "" {
			params.Set("oldest", sinceExternalID)
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp historyResponse
		if err := c.call(ctx, "conversations.history", params, &resp); err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, c.conversationError("conversations.history", conversationID, resp.Error)
		}

		for _, m := range resp.Messages {
			if hm, ok := normalizeMessage(m); ok {
				msgs = append(msgs, hm)
			}
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return msgs, nil
		}
	}
}

// FetchThreadReplies returns the replies under parentExternalID, excluding
// the parent itself.
func (c *HTTPClient) FetchThreadReplies(ctx context.Context, conversationID, parentExternalID string) ([]HistoryMessage, error) {
	var msgs []HistoryMessage
	cursor := ""
	for {
		params := url.Values{
			"channel": {conversationID},
			"ts":      {parentExternalID},
			"limit":   {strconv.Itoa(c.pageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp historyResponse
		if err := c.call(ctx, "conversations.replies", params, &resp); err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, c.conversationError("conversations.replies", conversationID, resp.Error)
		}

		for _, m := range resp.Messages {
			// The replies endpoint includes the parent message.
			if m.TS == parentExternalID {
				continue
			}
			if hm, ok := normalizeMessage(m); ok {
				msgs = append(msgs, hm)
			}
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return msgs, nil
		}
	}
}

// normalizeMessage converts a wire message, reporting false for messages
// excluded upstream: system subtypes, bot posts, empty text.
func normalizeMessage(m apiMessage) (HistoryMessage, bool) {
	if m.Type != "message" || systemSubtypes[m.Subtype] {
		return HistoryMessage{}, false
	}
	if m.User == "" || m.BotID != "" {
		return HistoryMessage{}, false
	}
	if strings.TrimSpace(m.Text) == "" {
		return HistoryMessage{}, false
	}

	// Thread parents have thread_ts == ts; only replies carry a parent id.
	parent := ""
	if m.ThreadTS != "" && m.ThreadTS != m.TS {
		parent = m.ThreadTS
	}
	return HistoryMessage{
		ExternalID:     m.TS,
		AuthorID:       m.User,
		Text:           m.Text,
		ThreadParentID: parent,
		ReplyCount:     m.ReplyCount,
	}, true
}

// call performs one GET against the Web API with rate limiting and
// bounded 429 retries, decoding the JSON body into out.
func (c *HTTPClient) call(ctx context.Context, method string, params url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("slack: %s: %w", method, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("slack: %s: %w", method, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= maxRateLimitRetries {
				return fmt.Errorf("slack: %s: rate limited after %d attempts", method, attempt+1)
			}
			wait := retryAfter(resp)
			c.log.Debug("rate_limited",
				slog.String("method", method),
				slog.Duration("retry_after", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("slack: %s: status %d", method, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("slack: %s: decode: %w", method, err)
		}
		return nil
	}
}

// retryAfter reads the Retry-After header, defaulting to 2s.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 2 * time.Second
}

// apiError maps a Slack API error code, detecting auth failures.
func (c *HTTPClient) apiError(method, code string) error {
	if authErrorCodes[code] {
		return &AuthError{Reason: code}
	}
	return fmt.Errorf("slack: %s: %s", method, code)
}

// conversationError maps per-conversation fetch failures so the pipeline
// can skip that conversation and continue; auth failures stay fatal.
func (c *HTTPClient) conversationError(method, conversationID, code string) error {
	if authErrorCodes[code] {
		return &AuthError{Reason: code}
	}
	return &ConversationAccessError{
		ConversationID: conversationID,
		Err:            errors.New(code),
	}
}
