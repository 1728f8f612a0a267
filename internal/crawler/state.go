package crawler

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/nao1215/shelfcrawl/internal/model"
)

// Claim is a URL handed to a worker.
type Claim struct {
	// URL is the URL to fetch.
	URL string

	// Attempts is the number of earlier failed fetches of URL.
	Attempts int
}

// Snapshot is a checkpoint taken under the state lock together with its
// version. Versions grow with every mutation, so a saver can drop a snapshot
// that is older than one already written.
type Snapshot struct {
	Checkpoint model.Checkpoint
	Version    uint64
}

// Stats summarizes the crawl state.
type Stats struct {
	model.Stats

	// InFlight is the number of URLs claimed by workers.
	InFlight int

	// Processed is the number of URLs completed or failed by this run.
	Processed int
}

// State is the mutable crawl state shared by all workers: the frontier,
// the record store, the failed bucket, retry counts and the URLs currently
// claimed. One mutex guards all of it, so claiming a URL and completing it
// are each a single critical section.
type State struct {
	mu   sync.Mutex
	cond *sync.Cond

	frontier *Frontier
	records  *RecordStore
	failed   map[string]model.Failure
	attempts map[string]int

	// inflight maps claimed URLs to their claim sequence number.
	inflight map[string]uint64
	claimSeq uint64

	version   uint64
	processed int
	maxPages  int
}

// NewState builds the state from a checkpoint. Frontier entries that are
// already visited or failed are dropped. URLs are normalized first, so a
// checkpoint written by another tool or edited by hand cannot queue a page
// twice under two spellings. maxPages bounds the number of URLs
// this run processes; zero means unlimited.
func NewState(cp model.Checkpoint, maxPages int) *State {
	cp = normalizeCheckpoint(cp.Clone())

	s := &State{
		records:  NewRecordStore(cp.ProcessedData),
		failed:   cp.FailedLinks,
		attempts: make(map[string]int),
		inflight: make(map[string]uint64),
		maxPages: max(maxPages, 0),
	}
	s.cond = sync.NewCond(&s.mu)

	s.frontier = NewFrontier()
	for _, u := range cp.LinksToProcess {
		if s.seenLocked(u) {
			continue
		}
		s.frontier.PushBack(u)
	}
	for u, n := range cp.RetryCounts {
		if s.frontier.Contains(u) && n > 0 {
			s.attempts[u] = n
		}
	}
	return s
}

// canonicalURL returns the normalized form of u, or u itself when it cannot
// be normalized.
func canonicalURL(u string) string {
	if n, err := Normalize(u); err == nil {
		return n
	}
	return u
}

// normalizeCheckpoint rewrites every URL in cp to its canonical form. When
// two spellings collide, the first in sorted order wins, except retry counts
// which keep the highest.
func normalizeCheckpoint(cp model.Checkpoint) model.Checkpoint {
	links := make([]string, 0, len(cp.LinksToProcess))
	for _, u := range cp.LinksToProcess {
		links = append(links, canonicalURL(u))
	}

	records := make(map[string]model.Record, len(cp.ProcessedData))
	for _, u := range slices.Sorted(maps.Keys(cp.ProcessedData)) {
		n := canonicalURL(u)
		if _, ok := records[n]; !ok {
			records[n] = cp.ProcessedData[u]
		}
	}

	failed := make(map[string]model.Failure, len(cp.FailedLinks))
	for _, u := range slices.Sorted(maps.Keys(cp.FailedLinks)) {
		n := canonicalURL(u)
		if _, ok := failed[n]; !ok {
			failed[n] = cp.FailedLinks[u]
		}
	}

	retries := make(map[string]int, len(cp.RetryCounts))
	for u, c := range cp.RetryCounts {
		n := canonicalURL(u)
		retries[n] = max(retries[n], c)
	}

	cp.LinksToProcess = links
	cp.ProcessedData = records
	cp.FailedLinks = failed
	cp.RetryCounts = retries
	return cp
}

// seenLocked reports whether u was visited, failed or is in flight.
func (s *State) seenLocked(u string) bool {
	if s.records.Has(u) {
		return true
	}
	if _, ok := s.failed[u]; ok {
		return true
	}
	_, ok := s.inflight[u]
	return ok
}

// pushLocked appends u to the frontier unless it has been seen or queued.
func (s *State) pushLocked(u string) bool {
	if s.seenLocked(u) {
		return false
	}
	return s.frontier.PushBack(u)
}

// PushBack queues u unless it was already visited, failed, queued or is in
// flight. It reports whether u was added.
func (s *State) PushBack(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.pushLocked(u)
	if added {
		s.version++
		s.cond.Broadcast()
	}
	return added
}

// WakeOnDone wakes claimers blocked in Claim when ctx ends. The returned
// function stops the wake-up.
func (s *State) WakeOnDone(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
}

// Claim pops the next URL and marks it in flight.
//
// When the frontier is empty but other URLs are in flight, Claim waits:
// their pages may add links. It returns errDrained once nothing is queued
// or in flight, errBudget once the page budget is spent, and ctx.Err()
// when ctx ends. Use WakeOnDone so cancellation reaches a waiting Claim.
func (s *State) Claim(ctx context.Context) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return Claim{}, err
		}
		if s.maxPages > 0 && s.processed+len(s.inflight) >= s.maxPages {
			return Claim{}, errBudget
		}
		if u, ok := s.frontier.PopFront(); ok {
			s.claimSeq++
			s.inflight[u] = s.claimSeq
			return Claim{URL: u, Attempts: s.attempts[u]}, nil
		}
		if len(s.inflight) == 0 {
			return Claim{}, errDrained
		}
		s.cond.Wait()
	}
}

// Complete records the result of a claimed URL and queues the in-scope
// links found on its page. It returns the number of links added and a
// snapshot of the new state.
func (s *State) Complete(u string, rec model.Record, links []string) (int, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inflight, u)
	delete(s.attempts, u)
	s.records.Put(u, rec)
	s.processed++

	added := 0
	for _, link := range links {
		if s.pushLocked(link) {
			added++
		}
	}

	s.version++
	s.cond.Broadcast()
	return added, s.snapshotLocked()
}

// Fail records a failed fetch of a claimed URL. While the attempt count is
// below maxRetries (or maxRetries is zero) the URL goes back to the head of
// the frontier; otherwise it moves to the failed bucket. Fail reports
// whether the URL will be retried and its attempt count.
func (s *State) Fail(u string, fetchErr error, maxRetries int) (bool, int, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inflight, u)
	s.processed++

	n := s.attempts[u] + 1
	retry := maxRetries <= 0 || n < maxRetries
	if retry {
		s.attempts[u] = n
		s.frontier.PushFront(u)
	} else {
		delete(s.attempts, u)
		f := model.Failure{Attempts: n}
		if fetchErr != nil {
			f.LastError = fetchErr.Error()
		}
		s.failed[u] = f
	}

	s.version++
	s.cond.Broadcast()
	return retry, n, s.snapshotLocked()
}

// Release gives a claimed URL back to the head of the frontier without
// counting an attempt. It is used when a worker stops before fetching.
func (s *State) Release(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inflight[u]; !ok {
		return
	}
	delete(s.inflight, u)
	s.frontier.PushFront(u)
	s.version++
	s.cond.Broadcast()
}

// RequeueFailed moves every failed URL to the tail of the frontier with a
// fresh attempt count and returns how many were moved.
func (s *State) RequeueFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	urls := slices.Sorted(maps.Keys(s.failed))
	clear(s.failed)

	n := 0
	for _, u := range urls {
		delete(s.attempts, u)
		if s.pushLocked(u) {
			n++
		}
	}
	if n > 0 {
		s.version++
		s.cond.Broadcast()
	}
	return n
}

// Snapshot returns a checkpoint of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked builds the checkpoint. In-flight URLs are listed first,
// in claim order, so that a checkpoint written while workers are busy
// still holds every unfinished URL.
func (s *State) snapshotLocked() Snapshot {
	inflight := slices.SortedFunc(maps.Keys(s.inflight), func(a, b string) int {
		return cmp.Compare(s.inflight[a], s.inflight[b])
	})

	links := make([]string, 0, len(inflight)+s.frontier.Len())
	links = append(links, inflight...)
	links = append(links, s.frontier.Items()...)

	return Snapshot{
		Checkpoint: model.Checkpoint{
			LinksToProcess: links,
			ProcessedData:  s.records.All(),
			RetryCounts:    maps.Clone(s.attempts),
			FailedLinks:    maps.Clone(s.failed),
		},
		Version: s.version,
	}
}

// Records returns a copy of the visited URLs and their records.
func (s *State) Records() map[string]model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.All()
}

// Pending reports whether any URL is queued or in flight.
func (s *State) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frontier.Len() > 0 || len(s.inflight) > 0
}

// Stats returns summary counts.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	retrying := 0
	for _, n := range s.attempts {
		if n > 0 {
			retrying++
		}
	}
	return Stats{
		Stats: model.Stats{
			Pending:   s.frontier.Len() + len(s.inflight),
			Visited:   s.records.Len(),
			Extracted: s.records.Extracted(),
			Failed:    len(s.failed),
			Retrying:  retrying,
		},
		InFlight:  len(s.inflight),
		Processed: s.processed,
	}
}
