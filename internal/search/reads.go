package search

import (
	"context"
	"fmt"

	"github.com/slacksift/slacksift/internal/store"
)

// Recent returns the newest messages across all conversations.
func (e *Engine) Recent(ctx context.Context, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	msgs, err := e.store.MostRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("search: recent: %w", err)
	}
	return msgs, nil
}

// Contacts returns senders grouped by last activity, most recent first.
func (e *Engine) Contacts(ctx context.Context, limit int) ([]store.SenderAggregate, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	contacts, err := e.store.AggregateBySender(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("search: contacts: %w", err)
	}
	return contacts, nil
}

// Conversations returns conversations grouped by last activity, most recent
// first.
func (e *Engine) Conversations(ctx context.Context, limit int) ([]store.ConversationAggregate, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	convs, err := e.store.AggregateByConversation(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("search: conversations: %w", err)
	}
	return convs, nil
}

// Thread returns the chronological message view of conversations whose name
// matches the pattern, optionally floored by timestamp.
func (e *Engine) Thread(ctx context.Context, pattern string, after int64, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	msgs, err := e.store.FindByConversationSubstring(ctx, pattern, after, limit)
	if err != nil {
		return nil, fmt.Errorf("search: thread: %w", err)
	}
	return msgs, nil
}
