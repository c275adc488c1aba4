package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "messages.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func msg(externalID, convID, convName, sender, text string, ts int64) Message {
	return Message{
		ExternalID:       externalID,
		ConversationID:   convID,
		ConversationName: convName,
		Sender:           sender,
		Text:             text,
		Timestamp:        ts,
	}
}

func mustInsert(t *testing.T, s *Store, msgs []Message) int {
	t.Helper()
	n, err := s.InsertBatch(context.Background(), msgs)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	return n
}

func TestInsertBatchIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := msg("1001.1", "C1", "general", "Ana", "hello", 1001)
	if n := mustInsert(t, s, []Message{m}); n != 1 {
		t.Fatalf("first insert = %d, want 1", n)
	}
	// Retried fetches re-deliver the same external id.
	if n := mustInsert(t, s, []Message{m}); n != 0 {
		t.Fatalf("second insert = %d, want 0", n)
	}

	count, err := s.CountMessages(ctx)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want exactly 1 record", count)
	}
}

func TestInsertBatchDuplicateWithinBatch(t *testing.T) {
	s := newTestStore(t)

	first := msg("1001.1", "C1", "general", "Ana", "first wins", 1001)
	second := msg("1001.1", "C1", "general", "Ana", "second loses", 1001)
	if n := mustInsert(t, s, []Message{first, second}); n != 1 {
		t.Fatalf("inserted = %d, want 1", n)
	}

	got, err := s.MostRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("MostRecent: %v", err)
	}
	if len(got) != 1 || got[0].Text != "first wins" {
		t.Errorf("got %+v, want single 'first wins' record", got)
	}
}

func TestRangeBeforeAfter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Arbitrary insertion order; range queries must still come back ordered.
	mustInsert(t, s, []Message{
		msg("30.0", "C1", "general", "Ana", "m30", 30),
		msg("10.0", "C1", "general", "Ben", "m10", 10),
		msg("50.0", "C1", "general", "Ana", "m50", 50),
		msg("20.0", "C1", "general", "Cyd", "m20", 20),
		msg("40.0", "C1", "general", "Ben", "m40", 40),
		msg("35.0", "C2", "random", "Eve", "other conversation", 35),
	})

	before, err := s.RangeBefore(ctx, "C1", 30, 2)
	if err != nil {
		t.Fatalf("RangeBefore: %v", err)
	}
	if len(before) != 2 || before[0].Text != "m10" || before[1].Text != "m20" {
		t.Errorf("RangeBefore = %v, want [m10 m20] oldest-first", texts(before))
	}

	after, err := s.RangeAfter(ctx, "C1", 30, 2)
	if err != nil {
		t.Fatalf("RangeAfter: %v", err)
	}
	if len(after) != 2 || after[0].Text != "m40" || after[1].Text != "m50" {
		t.Errorf("RangeAfter = %v, want [m40 m50] ascending", texts(after))
	}

	// Conversation boundary: fewer neighbors than asked is expected.
	edge, err := s.RangeBefore(ctx, "C1", 10, 5)
	if err != nil {
		t.Fatalf("RangeBefore at boundary: %v", err)
	}
	if len(edge) != 0 {
		t.Errorf("RangeBefore at oldest = %v, want empty", texts(edge))
	}

	// Windows never cross conversations.
	cross, err := s.RangeBefore(ctx, "C2", 40, 5)
	if err != nil {
		t.Fatalf("RangeBefore C2: %v", err)
	}
	if len(cross) != 1 || cross[0].Text != "other conversation" {
		t.Errorf("RangeBefore C2 = %v, want only C2's message", texts(cross))
	}
}

func TestMostRecent(t *testing.T) {
	s := newTestStore(t)

	mustInsert(t, s, []Message{
		msg("10.0", "C1", "general", "Ana", "oldest", 10),
		msg("30.0", "C1", "general", "Ben", "newest", 30),
		msg("20.0", "C2", "random", "Cyd", "middle", 20),
	})

	got, err := s.MostRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("MostRecent: %v", err)
	}
	if len(got) != 2 || got[0].Text != "newest" || got[1].Text != "middle" {
		t.Errorf("MostRecent = %v, want [newest middle]", texts(got))
	}
}

func TestBySenderSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	self := msg("40.0", "C1", "general", "Ana Torres", "my own note", 40)
	self.SelfAuthored = true
	mustInsert(t, s, []Message{
		msg("10.0", "C1", "general", "Ana Torres", "from ana early", 10),
		msg("30.0", "C1", "general", "ANA TORRES", "from ana late", 30),
		msg("20.0", "C1", "general", "Ben", "from ben", 20),
		self,
	})

	got, err := s.BySenderSubstring(ctx, "ana", 0, 10, true)
	if err != nil {
		t.Fatalf("BySenderSubstring: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2 (case-insensitive, self excluded)", len(got))
	}
	if got[0].Text != "from ana late" || got[1].Text != "from ana early" {
		t.Errorf("order = %v, want newest first", texts(got))
	}

	// Date floor.
	got, err = s.BySenderSubstring(ctx, "ana", 15, 10, true)
	if err != nil {
		t.Fatalf("BySenderSubstring after: %v", err)
	}
	if len(got) != 1 || got[0].Text != "from ana late" {
		t.Errorf("after=15 -> %v, want only the late message", texts(got))
	}

	// Self included when not excluded.
	got, err = s.BySenderSubstring(ctx, "ana", 0, 10, false)
	if err != nil {
		t.Fatalf("BySenderSubstring incl self: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("matches = %d, want 3 including self-authored", len(got))
	}
}

func TestFindByConversationSubstring(t *testing.T) {
	s := newTestStore(t)

	mustInsert(t, s, []Message{
		msg("30.0", "C1", "Project Alpha", "Ana", "third", 30),
		msg("10.0", "C1", "Project Alpha", "Ben", "first", 10),
		msg("20.0", "C1", "Project Alpha", "Ana", "second", 20),
		msg("15.0", "C2", "random", "Cyd", "noise", 15),
	})

	got, err := s.FindByConversationSubstring(context.Background(), "ALPHA", 0, 10)
	if err != nil {
		t.Fatalf("FindByConversationSubstring: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("matches = %d, want 3", len(got))
	}
	if got[0].Text != "first" || got[1].Text != "second" || got[2].Text != "third" {
		t.Errorf("order = %v, want chronological", texts(got))
	}
}

func TestAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, []Message{
		msg("10.0", "C1", "general", "Ana", "ana one", 10),
		msg("20.0", "C1", "general", "Ana", "ana two", 20),
		msg("30.0", "C2", "random", "Ben", "ben one", 30),
	})

	senders, err := s.AggregateBySender(ctx, 10)
	if err != nil {
		t.Fatalf("AggregateBySender: %v", err)
	}
	if len(senders) != 2 {
		t.Fatalf("senders = %d, want 2", len(senders))
	}
	if senders[0].Sender != "Ben" {
		t.Errorf("first sender = %s, want Ben (latest activity)", senders[0].Sender)
	}
	if senders[1].Sender != "Ana" || senders[1].MessageCount != 2 || senders[1].LastText != "ana two" {
		t.Errorf("Ana aggregate = %+v, want count 2 and last text 'ana two'", senders[1])
	}

	convs, err := s.AggregateByConversation(ctx, 10)
	if err != nil {
		t.Fatalf("AggregateByConversation: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convs))
	}
	if convs[0].ConversationID != "C2" {
		t.Errorf("first conversation = %s, want C2 (latest activity)", convs[0].ConversationID)
	}
	if convs[1].ConversationName != "general" || convs[1].MessageCount != 2 {
		t.Errorf("C1 aggregate = %+v, want name 'general' count 2", convs[1])
	}
}

func TestCorpusBounds(t *testing.T) {
	s := newTestStore(t)

	b, err := s.CorpusBounds(context.Background())
	if err != nil {
		t.Fatalf("CorpusBounds empty: %v", err)
	}
	if b.TotalMessages != 0 || b.OldestTimestamp != 0 || b.NewestTimestamp != 0 {
		t.Errorf("empty bounds = %+v, want zeros", b)
	}

	mustInsert(t, s, []Message{
		msg("10.0", "C1", "general", "Ana", "a", 10),
		msg("50.0", "C2", "random", "Ben", "b", 50),
		msg("30.0", "C1", "general", "Ana", "c", 30),
	})

	b, err = s.CorpusBounds(context.Background())
	if err != nil {
		t.Fatalf("CorpusBounds: %v", err)
	}
	if b.TotalMessages != 3 || b.DistinctConversations != 2 || b.DistinctSenders != 2 {
		t.Errorf("bounds = %+v, want 3 msgs / 2 convs / 2 senders", b)
	}
	if b.OldestTimestamp != 10 || b.NewestTimestamp != 50 {
		t.Errorf("timestamps = [%d %d], want [10 50]", b.OldestTimestamp, b.NewestTimestamp)
	}
}

func texts(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}
