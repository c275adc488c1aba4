package store

import (
	"context"
	"database/sql"
	"fmt"
)

const messageColumns = `id, external_id, conversation_id, conversation_name,
	sender, text, ts, self_authored, thread_parent_id`

// SenderAggregate groups message counts and last activity per sender.
type SenderAggregate struct {
	Sender        string `json:"sender"`
	MessageCount  int    `json:"message_count"`
	LastTimestamp int64  `json:"last_timestamp"`
	LastText      string `json:"last_text"`
}

// ConversationAggregate groups message counts and last activity per
// conversation. The name is taken from the newest message, so renamed
// conversations show their current name.
type ConversationAggregate struct {
	ConversationID   string `json:"conversation_id"`
	ConversationName string `json:"conversation_name"`
	MessageCount     int    `json:"message_count"`
	LastTimestamp    int64  `json:"last_timestamp"`
	LastText         string `json:"last_text"`
}

// Bounds summarizes the stored corpus for stats reporting.
type Bounds struct {
	TotalMessages         int
	DistinctConversations int
	DistinctSenders       int
	OldestTimestamp       int64
	NewestTimestamp       int64
}

// RangeBefore returns the n most recent messages in a conversation with
// ts strictly below the given timestamp, ordered oldest-first.
func (s *Store) RangeBefore(ctx context.Context, conversationID string, ts int64, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND ts < ?
		ORDER BY ts DESC
		LIMIT ?
	`, conversationID, ts, n)
	if err != nil {
		return nil, fmt.Errorf("store: range before: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// RangeAfter returns the n earliest messages in a conversation with ts
// strictly above the given timestamp, ascending.
func (s *Store) RangeAfter(ctx context.Context, conversationID string, ts int64, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND ts > ?
		ORDER BY ts ASC
		LIMIT ?
	`, conversationID, ts, n)
	if err != nil {
		return nil, fmt.Errorf("store: range after: %w", err)
	}
	return scanMessages(rows)
}

// MostRecent returns the global top-n messages by timestamp descending.
func (s *Store) MostRecent(ctx context.Context, n int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		ORDER BY ts DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("store: most recent: %w", err)
	}
	return scanMessages(rows)
}

// BySenderSubstring returns messages whose sender contains the pattern,
// case-insensitively, newest first. afterTS > 0 bounds the results below;
// excludeSelf drops the authenticated user's own messages.
func (s *Store) BySenderSubstring(ctx context.Context, pattern string, afterTS int64, n int, excludeSelf bool) ([]Message, error) {
	q := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE instr(lower(sender), lower(?)) > 0`
	args := []any{pattern}
	if afterTS > 0 {
		q += ` AND ts > ?`
		args = append(args, afterTS)
	}
	if excludeSelf {
		q += ` AND self_authored = 0`
	}
	q += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: by sender: %w", err)
	}
	return scanMessages(rows)
}

// FindByConversationSubstring returns messages whose conversation name
// contains the pattern, case-insensitively, ascending by timestamp for a
// chronological thread view.
func (s *Store) FindByConversationSubstring(ctx context.Context, pattern string, afterTS int64, n int) ([]Message, error) {
	q := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE instr(lower(conversation_name), lower(?)) > 0`
	args := []any{pattern}
	if afterTS > 0 {
		q += ` AND ts > ?`
		args = append(args, afterTS)
	}
	q += ` ORDER BY ts ASC LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: by conversation: %w", err)
	}
	return scanMessages(rows)
}

// AggregateBySender returns per-sender counts and last activity,
// descending by last activity.
func (s *Store) AggregateBySender(ctx context.Context, n int) ([]SenderAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.sender, COUNT(*) AS cnt, MAX(m.ts) AS last_ts,
			(SELECT text FROM messages x
			 WHERE x.sender = m.sender
			 ORDER BY x.ts DESC LIMIT 1) AS last_text
		FROM messages m
		GROUP BY m.sender
		ORDER BY last_ts DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate by sender: %w", err)
	}
	defer rows.Close()

	var aggs []SenderAggregate
	for rows.Next() {
		var a SenderAggregate
		if err := rows.Scan(&a.Sender, &a.MessageCount, &a.LastTimestamp, &a.LastText); err != nil {
			return nil, fmt.Errorf("store: scan sender aggregate: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// AggregateByConversation returns per-conversation counts and last
// activity, descending by last activity.
func (s *Store) AggregateByConversation(ctx context.Context, n int) ([]ConversationAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.conversation_id, COUNT(*) AS cnt, MAX(m.ts) AS last_ts,
			(SELECT conversation_name FROM messages x
			 WHERE x.conversation_id = m.conversation_id
			 ORDER BY x.ts DESC LIMIT 1) AS name,
			(SELECT text FROM messages x
			 WHERE x.conversation_id = m.conversation_id
			 ORDER BY x.ts DESC LIMIT 1) AS last_text
		FROM messages m
		GROUP BY m.conversation_id
		ORDER BY last_ts DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate by conversation: %w", err)
	}
	defer rows.Close()

	var aggs []ConversationAggregate
	for rows.Next() {
		var a ConversationAggregate
		if err := rows.Scan(&a.ConversationID, &a.MessageCount, &a.LastTimestamp, &a.ConversationName, &a.LastText); err != nil {
			return nil, fmt.Errorf("store: scan conversation aggregate: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// CountMessages returns the total number of stored messages.
func (s *Store) CountMessages(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return count, nil
}

// CorpusBounds returns corpus-wide distinct counts and timestamp bounds.
func (s *Store) CorpusBounds(ctx context.Context) (Bounds, error) {
	var b Bounds
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(DISTINCT conversation_id),
			COUNT(DISTINCT sender),
			COALESCE(MIN(ts), 0),
			COALESCE(MAX(ts), 0)
		FROM messages
	`).Scan(&b.TotalMessages, &b.DistinctConversations, &b.DistinctSenders,
		&b.OldestTimestamp, &b.NewestTimestamp)
	if err != nil {
		return Bounds{}, fmt.Errorf("store: corpus bounds: %w", err)
	}
	return b, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var selfAuthored int
		if err := rows.Scan(
			&m.ID, &m.ExternalID, &m.ConversationID, &m.ConversationName,
			&m.Sender, &m.Text, &m.Timestamp, &selfAuthored, &m.ThreadParentID,
		); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.SelfAuthored = selfAuthored != 0
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
