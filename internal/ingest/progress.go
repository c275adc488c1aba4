package ingest

// Phase names one stage of a sync run. Phases are emitted in a fixed order;
// within a phase the current counter only grows.
type Phase string

const (
	PhaseAuthenticating         Phase = "authenticating"
	PhaseResolvingUsers         Phase = "resolving-users"
	PhaseResolvingConversations Phase = "resolving-conversations"
	PhaseFetchingMessages       Phase = "fetching-messages"
	PhaseFetchingThreads        Phase = "fetching-threads"
	PhaseIndexingExact          Phase = "indexing-exact"
	PhaseIndexingFuzzy          Phase = "indexing-fuzzy"
	PhaseDone                   Phase = "done"
)

// Progress is one observation of sync progress.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
}

// ProgressFunc receives progress updates during a sync. It is called from the
// syncing goroutine, so implementations should return quickly.
type ProgressFunc func(Progress)

func (p *Pipeline) emit(fn ProgressFunc, phase Phase, current, total int) {
	if fn == nil {
		return
	}
	fn(Progress{Phase: phase, Current: current, Total: total})
}
