// Package ingest orchestrates full and incremental syncs. It pulls users,
// conversations, history, and thread replies from the remote workspace, fans
// fetches out across a bounded worker pool, then commits everything through a
// single writer: structured store first, fuzzy index second, cursors last.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/slacksift/slacksift/internal/index"
	"github.com/slacksift/slacksift/internal/logging"
	"github.com/slacksift/slacksift/internal/registry"
	"github.com/slacksift/slacksift/internal/slack"
	"github.com/slacksift/slacksift/internal/store"
)

// ErrNoPriorIndex reports that an incremental sync was requested before any
// full build completed. Callers branch on it with errors.Is and fall back to
// BuildIndex.
var ErrNoPriorIndex = errors.New("ingest: no prior index (run a full build first)")

const defaultFetchWorkers = 4

// Deps are the collaborators a Pipeline reads from and writes through.
type Deps struct {
	Client   slack.Client
	Store    *store.Store
	Index    *index.Index
	Registry *registry.Registry
	Users    *registry.UserCache

	// PersistIndex writes the fuzzy index snapshot to durable storage. It
	// runs after AddBatch and before cursors advance.
	PersistIndex func() error
}

// Options tune sync behavior.
type Options struct {
	// FetchWorkers bounds how many conversations are fetched concurrently.
	FetchWorkers int
}

// Pipeline runs syncs against one workspace.
type Pipeline struct {
	client  slack.Client
	store   *store.Store
	index   *index.Index
	reg     *registry.Registry
	users   *registry.UserCache
	persist func() error
	workers int

	now func() time.Time
	log *slog.Logger
}

func New(deps Deps, opts Options) *Pipeline {
	workers := opts.FetchWorkers
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	return &Pipeline{
		client:  deps.Client,
		store:   deps.Store,
		index:   deps.Index,
		reg:     deps.Registry,
		users:   deps.Users,
		persist: deps.PersistIndex,
		workers: workers,
		now:     time.Now,
		log:     logging.ForComponent(logging.CompIngest),
	}
}

// BuildIndex runs a full sync from the beginning of every visible
// conversation. Re-running against an unchanged workspace is a no-op because
// inserts are idempotent by external id.
func (p *Pipeline) BuildIndex(ctx context.Context, progress ProgressFunc) (*registry.Stats, error) {
	return p.sync(ctx, progress, false)
}

// UpdateIndex runs an incremental sync bounded below by the stored cursors.
// Conversations without a cursor are fetched from the beginning. Returns
// ErrNoPriorIndex when no full build has ever completed.
func (p *Pipeline) UpdateIndex(ctx context.Context, progress ProgressFunc) (*registry.Stats, error) {
	return p.sync(ctx, progress, true)
}

func (p *Pipeline) sync(ctx context.Context, progress ProgressFunc, incremental bool) (*registry.Stats, error) {
	start := p.now()

	prior, havePrior, err := p.reg.Load()
	if err != nil {
		return nil, err
	}
	if incremental && (!havePrior || len(prior.Cursors) == 0) {
		return nil, ErrNoPriorIndex
	}

	// Cursors carry over from the last sync and only ever move forward.
	cursors := make(map[string]string)
	if havePrior {
		for id, cur := range prior.Cursors {
			cursors[id] = cur
		}
	}

	p.emit(progress, PhaseAuthenticating, 0, 1)
	identity, err := p.client.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: authenticate: %w", err)
	}
	p.emit(progress, PhaseAuthenticating, 1, 1)
	p.log.Info("sync_started",
		slog.Bool("incremental", incremental),
		slog.String("workspace", identity.WorkspaceName))

	if err := p.refreshUsers(ctx, progress, incremental); err != nil {
		return nil, err
	}

	p.emit(progress, PhaseResolvingConversations, 0, 0)
	conversations, err := p.client.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: list conversations: %w", err)
	}
	names := make(map[string]string, len(conversations))
	for _, conv := range conversations {
		names[conv.ID] = conversationDisplayName(conv, p.lookupUser)
	}
	p.emit(progress, PhaseResolvingConversations, len(conversations), len(conversations))

	batches, err := p.fetchHistories(ctx, progress, conversations, cursors, incremental)
	if err != nil {
		return nil, err
	}
	if err := p.fetchThreads(ctx, progress, batches); err != nil {
		return nil, err
	}

	records := p.normalize(batches, names, identity, cursors)

	p.emit(progress, PhaseIndexingExact, 0, len(records))
	inserted, err := p.store.InsertBatch(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("ingest: commit messages: %w", err)
	}
	p.emit(progress, PhaseIndexingExact, len(records), len(records))

	p.emit(progress, PhaseIndexingFuzzy, 0, len(records))
	added := p.index.AddBatch(indexDocuments(records))
	if !incremental || added > 0 {
		if err := p.persist(); err != nil {
			return nil, fmt.Errorf("ingest: persist index snapshot: %w", err)
		}
	}
	p.emit(progress, PhaseIndexingFuzzy, len(records), len(records))

	bounds, err := p.store.CorpusBounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: compute stats: %w", err)
	}
	stats := registry.Stats{
		TotalMessages:         bounds.TotalMessages,
		DistinctConversations: bounds.DistinctConversations,
		DistinctSenders:       bounds.DistinctSenders,
		OldestTimestamp:       bounds.OldestTimestamp,
		NewestTimestamp:       bounds.NewestTimestamp,
		IndexedAt:             p.now().Unix(),
	}
	state := &registry.State{
		WorkspaceID:   identity.WorkspaceID,
		WorkspaceName: identity.WorkspaceName,
		UserID:        identity.UserID,
		Stats:         stats,
		Cursors:       cursors,
	}
	if err := p.reg.Save(state); err != nil {
		return nil, fmt.Errorf("ingest: persist registry: %w", err)
	}

	p.emit(progress, PhaseDone, 1, 1)
	p.log.Info("sync_finished",
		slog.Bool("incremental", incremental),
		slog.Int("fetched", len(records)),
		slog.Int("inserted", inserted),
		slog.Int("indexed", added),
		slog.Duration("took", p.now().Sub(start)))
	return &stats, nil
}

// refreshUsers rebuilds the user cache on a full sync. Incremental syncs keep
// the cache exactly as the last full sync resolved it.
func (p *Pipeline) refreshUsers(ctx context.Context, progress ProgressFunc, incremental bool) error {
	if incremental {
		p.emit(progress, PhaseResolvingUsers, p.users.Len(), p.users.Len())
		return nil
	}

	p.emit(progress, PhaseResolvingUsers, 0, 0)
	users, err := p.client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("ingest: list users: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = resolveUserName(u)
	}
	p.users.Replace(names)
	if err := p.users.Save(); err != nil {
		return fmt.Errorf("ingest: persist user cache: %w", err)
	}
	p.emit(progress, PhaseResolvingUsers, len(users), len(users))
	return nil
}

func (p *Pipeline) lookupUser(id string) string {
	if name, ok := p.users.Resolve(id); ok {
		return name
	}
	return id
}

type convBatch struct {
	conv slack.Conversation
	msgs []slack.HistoryMessage
}

// fetchHistories pulls every conversation's history through the worker pool.
// A conversation the token cannot read is logged and skipped; any other
// failure aborts the sync.
func (p *Pipeline) fetchHistories(ctx context.Context, progress ProgressFunc, conversations []slack.Conversation, cursors map[string]string, incremental bool) ([]*convBatch, error) {
	total := len(conversations)
	p.emit(progress, PhaseFetchingMessages, 0, total)

	type fetchResult struct {
		batch *convBatch
		err   error
	}
	jobs := make(chan slack.Conversation, total)
	results := make(chan fetchResult, total)

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conv := range jobs {
				since := ""
				if incremental {
					since = cursors[conv.ID]
				}
				msgs, err := p.client.FetchHistory(fetchCtx, conv.ID, since)
				results <- fetchResult{batch: &convBatch{conv: conv, msgs: msgs}, err: err}
			}
		}()
	}
	for _, conv := range conversations {
		jobs <- conv
	}
	close(jobs)
	go func() {
		wg.Wait()
		close(results)
	}()

	batches := make([]*convBatch, 0, total)
	var fatal error
	done := 0
	for res := range results {
		done++
		switch {
		case res.err == nil:
			if fatal == nil {
				batches = append(batches, res.batch)
			}
		case isAccessError(res.err):
			p.log.Warn("conversation_skipped",
				slog.String("conversation_id", res.batch.conv.ID),
				slog.String("error", res.err.Error()))
		default:
			if fatal == nil {
				fatal = res.err
				cancel()
			}
		}
		if fatal == nil {
			p.emit(progress, PhaseFetchingMessages, done, total)
		}
	}
	if fatal != nil {
		return nil, fmt.Errorf("ingest: fetch history: %w", fatal)
	}

	// Pool completion order is nondeterministic; restore a stable order so
	// downstream commits and index insertion are reproducible.
	sort.Slice(batches, func(i, j int) bool { return batches[i].conv.ID < batches[j].conv.ID })
	return batches, nil
}

// fetchThreads pulls replies for every fetched message that heads a thread
// and appends them to its conversation's batch.
func (p *Pipeline) fetchThreads(ctx context.Context, progress ProgressFunc, batches []*convBatch) error {
	type threadJob struct {
		batchIdx int
		parentID string
	}
	var pending []threadJob
	for i, b := range batches {
		for _, m := range b.msgs {
			if m.ReplyCount > 0 && m.ThreadParentID == "" {
				pending = append(pending, threadJob{batchIdx: i, parentID: m.ExternalID})
			}
		}
	}
	total := len(pending)
	p.emit(progress, PhaseFetchingThreads, 0, total)
	if total == 0 {
		return nil
	}

	type threadResult struct {
		batchIdx int
		parentID string
		replies  []slack.HistoryMessage
		err      error
	}
	jobs := make(chan threadJob, total)
	results := make(chan threadResult, total)

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				conv := batches[job.batchIdx].conv
				replies, err := p.client.FetchThreadReplies(fetchCtx, conv.ID, job.parentID)
				results <- threadResult{batchIdx: job.batchIdx, parentID: job.parentID, replies: replies, err: err}
			}
		}()
	}
	for _, job := range pending {
		jobs <- job
	}
	close(jobs)
	go func() {
		wg.Wait()
		close(results)
	}()

	var fatal error
	done := 0
	for res := range results {
		done++
		switch {
		case res.err == nil:
			if fatal == nil {
				b := batches[res.batchIdx]
				b.msgs = append(b.msgs, res.replies...)
			}
		case isAccessError(res.err):
			p.log.Warn("thread_skipped",
				slog.String("conversation_id", batches[res.batchIdx].conv.ID),
				slog.String("parent_id", res.parentID),
				slog.String("error", res.err.Error()))
		default:
			if fatal == nil {
				fatal = res.err
				cancel()
			}
		}
		if fatal == nil {
			p.emit(progress, PhaseFetchingThreads, done, total)
		}
	}
	if fatal != nil {
		return fmt.Errorf("ingest: fetch threads: %w", fatal)
	}
	return nil
}

func isAccessError(err error) bool {
	var accessErr *slack.ConversationAccessError
	return errors.As(err, &accessErr)
}

// normalize turns fetched history into store records and advances the
// in-memory cursor map to the maximum external id seen per conversation.
// Records come back in chronological order so index insertion is stable.
func (p *Pipeline) normalize(batches []*convBatch, names map[string]string, identity slack.Identity, cursors map[string]string) []store.Message {
	var total int
	for _, b := range batches {
		total += len(b.msgs)
	}
	records := make([]store.Message, 0, total)

	for _, b := range batches {
		name := names[b.conv.ID]
		for _, m := range b.msgs {
			cursors[b.conv.ID] = maxExternalID(cursors[b.conv.ID], m.ExternalID)
			records = append(records, store.Message{
				ExternalID:       m.ExternalID,
				ConversationID:   b.conv.ID,
				ConversationName: name,
				Sender:           p.lookupUser(m.AuthorID),
				Text:             m.Text,
				Timestamp:        parseTimestamp(m.ExternalID),
				SelfAuthored:     m.AuthorID == identity.UserID,
				ThreadParentID:   m.ThreadParentID,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp < records[j].Timestamp
		}
		return compareExternalIDs(records[i].ExternalID, records[j].ExternalID) < 0
	})
	return records
}

func indexDocuments(records []store.Message) []index.Document {
	docs := make([]index.Document, len(records))
	for i, r := range records {
		docs[i] = index.Document{
			ExternalID:       r.ExternalID,
			ConversationID:   r.ConversationID,
			ConversationName: r.ConversationName,
			Sender:           r.Sender,
			Text:             r.Text,
			Timestamp:        r.Timestamp,
			SelfAuthored:     r.SelfAuthored,
			ThreadParentID:   r.ThreadParentID,
		}
	}
	return docs
}
