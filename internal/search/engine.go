// Package search answers queries against the structured store and the fuzzy
// index, and decorates hits with surrounding conversation context.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/slacksift/slacksift/internal/index"
	"github.com/slacksift/slacksift/internal/logging"
	"github.com/slacksift/slacksift/internal/store"
)

const (
	defaultLimit = 20

	// filterInflation widens the internal index limit when sender or date
	// filters are present so attrition does not starve the final page.
	filterInflation = 20

	// flatScore is assigned to sender-only results, where no relevance
	// signal exists.
	flatScore = 1.0
)

// Query describes one search request. Zero values mean "not set".
type Query struct {
	// Text is the fuzzy query. Empty, whitespace, or the literal "*" all
	// mean "no text query".
	Text string
	// From filters by sender substring, case-insensitive. Self-authored
	// messages are always excluded from sender-filtered results.
	From string
	// After keeps only messages with timestamp strictly greater.
	After int64
	Limit int
	// Context is how many neighbors to attach on each side of a hit.
	Context int
	// RefreshFirst runs an incremental sync before answering. Off by
	// default so query latency stays predictable.
	RefreshFirst bool
}

// Result is one ranked hit with its conversation context. Before and After
// are both in ascending timestamp order.
type Result struct {
	Message store.Message   `json:"message"`
	Score   float64         `json:"score"`
	Before  []store.Message `json:"before,omitempty"`
	After   []store.Message `json:"after,omitempty"`
}

// RefreshFunc runs an incremental sync. Wired to the ingest pipeline by the
// workspace layer.
type RefreshFunc func(context.Context) error

// Engine serves queries for one workspace.
type Engine struct {
	store   *store.Store
	index   *index.Index
	refresh RefreshFunc
	group   singleflight.Group
	log     *slog.Logger
}

func NewEngine(st *store.Store, ix *index.Index, refresh RefreshFunc) *Engine {
	return &Engine{
		store:   st,
		index:   ix,
		refresh: refresh,
		log:     logging.ForComponent(logging.CompSearch),
	}
}

// Search runs one query. An empty query (no usable text, no sender) yields an
// empty result set, not an error.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.RefreshFirst && e.refresh != nil {
		// Concurrent refreshing queries collapse into a single sync.
		if _, err, _ := e.group.Do("refresh", func() (interface{}, error) {
			return nil, e.refresh(ctx)
		}); err != nil {
			return nil, fmt.Errorf("search: refresh: %w", err)
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	text := normalizeText(q.Text)
	var (
		results []Result
		err     error
	)
	switch {
	case text == "" && q.From == "":
		return []Result{}, nil
	case text == "":
		results, err = e.searchBySender(ctx, q, limit)
	default:
		results, err = e.searchByText(text, q, limit)
	}
	if err != nil {
		return nil, err
	}

	if err := e.attachContext(ctx, results, q.Context); err != nil {
		return nil, err
	}
	e.log.Debug("search_served",
		slog.String("text", text),
		slog.String("from", q.From),
		slog.Int("results", len(results)))
	return results, nil
}

// normalizeText collapses empty, whitespace-only, and wildcard queries to "".
func normalizeText(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "*" {
		return ""
	}
	return trimmed
}

// searchBySender answers pure sender filters straight from the store. Every
// hit gets the same flat score.
func (e *Engine) searchBySender(ctx context.Context, q Query, limit int) ([]Result, error) {
	msgs, err := e.store.BySenderSubstring(ctx, q.From, q.After, limit, true)
	if err != nil {
		return nil, fmt.Errorf("search: by sender: %w", err)
	}
	results := make([]Result, len(msgs))
	for i, m := range msgs {
		results[i] = Result{Message: m, Score: flatScore}
	}
	return results, nil
}

// searchByText answers fuzzy text queries from the index. Sender and date
// filters are pushed into the index as a predicate so filtered-out candidates
// never consume the limit, and the internal limit is widened on top.
func (e *Engine) searchByText(text string, q Query, limit int) ([]Result, error) {
	internalLimit := limit
	hasFilters := q.From != "" || q.After > 0
	if hasFilters {
		internalLimit = limit * filterInflation
	}

	var filter func(*index.Document) bool
	if hasFilters {
		fromLower := strings.ToLower(q.From)
		filter = func(d *index.Document) bool {
			if q.From != "" {
				if d.SelfAuthored {
					return false
				}
				if !strings.Contains(strings.ToLower(d.Sender), fromLower) {
					return false
				}
			}
			if q.After > 0 && d.Timestamp <= q.After {
				return false
			}
			return true
		}
	}

	hits := e.index.Search(text, internalLimit, filter)
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{Message: messageFromDocument(h.Document), Score: h.Score}
	}
	return results, nil
}

func messageFromDocument(d index.Document) store.Message {
	return store.Message{
		ExternalID:       d.ExternalID,
		ConversationID:   d.ConversationID,
		ConversationName: d.ConversationName,
		Sender:           d.Sender,
		Text:             d.Text,
		Timestamp:        d.Timestamp,
		SelfAuthored:     d.SelfAuthored,
		ThreadParentID:   d.ThreadParentID,
	}
}

// attachContext loads up to n neighbors on each side of every hit, inside the
// hit's own conversation. Fewer neighbors near a conversation boundary is
// normal.
func (e *Engine) attachContext(ctx context.Context, results []Result, n int) error {
	if n <= 0 {
		return nil
	}
	for i := range results {
		m := results[i].Message
		before, err := e.store.RangeBefore(ctx, m.ConversationID, m.Timestamp, n)
		if err != nil {
			return fmt.Errorf("search: context before: %w", err)
		}
		after, err := e.store.RangeAfter(ctx, m.ConversationID, m.Timestamp, n)
		if err != nil {
			return fmt.Errorf("search: context after: %w", err)
		}
		results[i].Before = before
		results[i].After = after
	}
	return nil
}
