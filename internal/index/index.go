// Package index implements the typo-tolerant inverted index over message
// text, sender names, and conversation names. It is self-contained: stored
// documents carry everything needed to reconstruct a result, and the whole
// index round-trips through a versioned byte snapshot.
package index

import (
	"sort"
	"sync"
)

// Indexed field names.
const (
	FieldText         = "text"
	FieldSender       = "sender"
	FieldConversation = "conversation"
)

// Options are the ranking knobs. Zero values fall back to the defaults
// (fuzziness 0.2, boosts 2.0 / 1.5 / 1.0).
type Options struct {
	Fuzziness         float64
	TextBoost         float64
	SenderBoost       float64
	ConversationBoost float64
}

func (o Options) withDefaults() Options {
	if o.Fuzziness <= 0 || o.Fuzziness >= 1 {
		o.Fuzziness = 0.2
	}
	if o.TextBoost <= 0 {
		o.TextBoost = 2.0
	}
	if o.SenderBoost <= 0 {
		o.SenderBoost = 1.5
	}
	if o.ConversationBoost <= 0 {
		o.ConversationBoost = 1.0
	}
	return o
}

// Document is one indexed message with its stored fields.
type Document struct {
	ExternalID       string
	ConversationID   string
	ConversationName string
	Sender           string
	Text             string
	Timestamp        int64
	SelfAuthored     bool
	ThreadParentID   string
}

// Hit is one ranked search result.
type Hit struct {
	Document Document
	Score    float64
}

// posting records one document's term frequency for a token.
type posting struct {
	Doc  int32
	Freq int32
}

// Index is the in-memory inverted index. One posting list per field per
// token; documents are kept in insertion order, which doubles as the
// stable tie-break.
type Index struct {
	mu     sync.RWMutex
	opts   Options
	docs   []Document
	seen   map[string]int32
	fields map[string]map[string][]posting
}

// New creates an empty index with the given options.
func New(opts Options) *Index {
	return &Index{
		opts: opts.withDefaults(),
		seen: make(map[string]int32),
		fields: map[string]map[string][]posting{
			FieldText:         {},
			FieldSender:       {},
			FieldConversation: {},
		},
	}
}

type fieldSpec struct {
	name  string
	boost float64
	value func(*Document) string
}

func (ix *Index) fieldSpecs() [3]fieldSpec {
	return [3]fieldSpec{
		{FieldText, ix.opts.TextBoost, func(d *Document) string { return d.Text }},
		{FieldSender, ix.opts.SenderBoost, func(d *Document) string { return d.Sender }},
		{FieldConversation, ix.opts.ConversationBoost, func(d *Document) string { return d.ConversationName }},
	}
}

// AddBatch integrates documents into the existing postings without any
// rebuild. Documents whose ExternalID is already indexed are skipped, so
// re-delivered batches are absorbed the same way the store absorbs them.
// Returns the number of documents actually added.
func (ix *Index) AddBatch(docs []Document) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	specs := ix.fieldSpecs()
	added := 0
	for i := range docs {
		d := docs[i]
		if _, ok := ix.seen[d.ExternalID]; ok {
			continue
		}
		id := int32(len(ix.docs))
		ix.docs = append(ix.docs, d)
		ix.seen[d.ExternalID] = id

		for _, fs := range specs {
			for token, freq := range termFrequencies(Tokenize(fs.value(&d))) {
				ix.fields[fs.name][token] = append(ix.fields[fs.name][token], posting{Doc: id, Freq: freq})
			}
		}
		added++
	}
	return added
}

func termFrequencies(tokens []string) map[string]int32 {
	if len(tokens) == 0 {
		return nil
	}
	freqs := make(map[string]int32, len(tokens))
	for _, t := range tokens {
		freqs[t]++
	}
	return freqs
}

// Search returns up to limit documents ranked by relevance to the query.
// Scoring sums per-field term frequency times the field boost across all
// matching fields and query tokens. Ties break toward the candidate whose
// best matching field carries the higher boost, then toward earlier
// insertion. The filter predicate, when non-nil, is evaluated against the
// stored fields before a candidate counts toward the limit.
func (ix *Index) Search(query string, limit int, filter func(*Document) bool) []Hit {
	tokens := Tokenize(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scores := make(map[int32]float64)
	bestBoost := make(map[int32]float64)
	specs := ix.fieldSpecs()

	for _, qt := range tokens {
		budget := editBudget(qt, ix.opts.Fuzziness)
		for _, fs := range specs {
			for token, plist := range ix.fields[fs.name] {
				if !tokenMatches(token, qt, budget) {
					continue
				}
				for _, p := range plist {
					scores[p.Doc] += float64(p.Freq) * fs.boost
					if fs.boost > bestBoost[p.Doc] {
						bestBoost[p.Doc] = fs.boost
					}
				}
			}
		}
	}
	if len(scores) == 0 {
		return nil
	}

	candidates := make([]int32, 0, len(scores))
	for doc := range scores {
		candidates = append(candidates, doc)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		if bestBoost[a] != bestBoost[b] {
			return bestBoost[a] > bestBoost[b]
		}
		return a < b
	})

	hits := make([]Hit, 0, limit)
	for _, doc := range candidates {
		d := ix.docs[doc]
		if filter != nil && !filter(&d) {
			continue
		}
		hits = append(hits, Hit{Document: d, Score: scores[doc]})
		if len(hits) == limit {
			break
		}
	}
	return hits
}

// DocCount returns the number of indexed documents.
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Contains reports whether a document with the given external id is indexed.
func (ix *Index) Contains(externalID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.seen[externalID]
	return ok
}
