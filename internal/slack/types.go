// Package slack provides the remote chat-platform client consumed by the
// ingestion pipeline. It normalizes the Slack Web API into plain records;
// pagination, rate limiting, and retry stay behind the Client interface.
package slack

import "context"

// Identity describes the authenticated user and workspace.
type Identity struct {
	UserID        string
	WorkspaceID   string
	WorkspaceName string
}

// User is a workspace member. Bots and deleted users are filtered out
// by ListUsers.
type User struct {
	ID          string
	Username    string
	RealName    string
	DisplayName string
	IsBot       bool
	IsDeleted   bool
}

// Conversation is a channel, group, or direct message the authenticated
// user can see. Only member-visible conversations are returned.
type Conversation struct {
	ID string

	// Name is the channel/group name. Empty for direct messages; the
	// pipeline resolves those from CounterpartUserID.
	Name string

	IsDirectMessage bool

	// CounterpartUserID is the other party of a direct message.
	CounterpartUserID string

	IsMember bool
}

// HistoryMessage is one normalized message from conversation history or a
// thread. Messages with empty text, missing authors, or system-event
// subtypes never surface here.
type HistoryMessage struct {
	// ExternalID is Slack's "ts" value: a timestamp-like identifier,
	// unique within the workspace and increasing within a conversation.
	ExternalID string

	AuthorID string
	Text     string

	// ThreadParentID is set on thread replies (the parent's ExternalID).
	ThreadParentID string

	// ReplyCount is the number of thread replies under this message.
	ReplyCount int
}

// Client is the remote collaborator contract the pipeline consumes.
type Client interface {
	// Authenticate validates the token and resolves workspace identity.
	// Returns AuthError for invalid or revoked tokens.
	Authenticate(ctx context.Context) (Identity, error)

	// ListUsers returns all human, non-deleted workspace members.
	ListUsers(ctx context.Context) ([]User, error)

	// ListConversations returns all member-visible conversations.
	ListConversations(ctx context.Context) ([]Conversation, error)

	// FetchHistory returns a conversation's messages strictly newer than
	// sinceExternalID (all history when empty), fully paginated.
	FetchHistory(ctx context.Context, conversationID, sinceExternalID string) ([]HistoryMessage, error)

	// FetchThreadReplies returns the replies under a parent message,
	// excluding the parent itself.
	FetchThreadReplies(ctx context.Context, conversationID, parentExternalID string) ([]HistoryMessage, error)
}
