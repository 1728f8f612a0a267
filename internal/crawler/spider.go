package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/shelfcrawl/internal/checkpoint"
	"github.com/nao1215/shelfcrawl/internal/extract"
	"github.com/nao1215/shelfcrawl/internal/fetcher"
	"github.com/nao1215/shelfcrawl/internal/metrics"
	"github.com/nao1215/shelfcrawl/internal/model"
)

// Outcome is how a crawl run ended.
type Outcome int

const (
	// OutcomeRunning means the run has not finished.
	OutcomeRunning Outcome = iota
	// OutcomeDone means the frontier was drained.
	OutcomeDone
	// OutcomeInterrupted means the run stopped with work left; the
	// checkpoint is the resumption point.
	OutcomeInterrupted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeDone:
		return "done"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Result summarizes a crawl run.
type Result struct {
	// Outcome is how the run ended.
	Outcome Outcome

	// Processed is the number of URLs this run completed or failed.
	Processed int

	// Extracted is the number of non-empty records this run added.
	Extracted int

	// Retried is the number of failed fetches this run queued for retry.
	Retried int

	// Failed is the number of URLs in the failed bucket.
	Failed int

	// Pending is the number of URLs left to process.
	Pending int

	// Visited is the total number of visited URLs.
	Visited int

	// Records holds every visited URL and its record.
	Records map[string]model.Record

	// RunID identifies the run in the run history, if one was set.
	RunID string
}

// Spider runs the crawl loop: claim a URL, fetch it, extract its record and
// links, save a checkpoint, repeat.
//
// Every processed URL ends in exactly one place: the record store, the
// failed bucket, or back in the frontier. A checkpoint is saved after each
// one, so an interrupted crawl resumes where it stopped.
type Spider struct {
	fetcher   fetcher.Fetcher
	extractor extract.Extractor
	store     checkpoint.Store
	scope     *Scope

	seed            string
	runID           string
	workers         int
	maxRetries      int
	maxPages        int
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
	retryFailed     bool

	logger  *slog.Logger
	metrics *metrics.Metrics

	// sleep waits for d or until ctx ends; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// saveMu serializes checkpoint writes; savedVersion is the version of
	// the last snapshot written.
	saveMu       sync.Mutex
	savedVersion uint64
	saved        bool

	// statsMu guards the per-run counters below.
	statsMu   sync.Mutex
	extracted int
	retried   int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithSeed sets the URL the crawl starts from when the frontier is empty.
func WithSeed(seed string) SpiderOption {
	return func(s *Spider) {
		s.seed = seed
	}
}

// WithRunID tags the run's result and log lines with id.
func WithRunID(id string) SpiderOption {
	return func(s *Spider) {
		s.runID = id
	}
}

// WithWorkers sets the number of concurrent workers. One worker gives a
// strict breadth-first order.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		s.workers = n
	}
}

// WithMaxRetries sets how many failed fetches move a URL to the failed
// bucket. Zero retries forever.
func WithMaxRetries(n int) SpiderOption {
	return func(s *Spider) {
		s.maxRetries = n
	}
}

// WithRetryBackoff sets the base and maximum delay before refetching a
// failed URL. The delay doubles with each attempt.
func WithRetryBackoff(base, maxBackoff time.Duration) SpiderOption {
	return func(s *Spider) {
		s.retryBackoff = base
		s.maxRetryBackoff = maxBackoff
	}
}

// WithMaxPages stops the run after n processed URLs. Zero means no limit.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithRetryFailed moves the failed bucket back to the frontier on start.
func WithRetryFailed(retry bool) SpiderOption {
	return func(s *Spider) {
		s.retryFailed = retry
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) SpiderOption {
	return func(s *Spider) {
		s.metrics = m
	}
}

// NewSpider creates a Spider.
func NewSpider(f fetcher.Fetcher, ex extract.Extractor, store checkpoint.Store, scope *Scope, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:         f,
		extractor:       ex,
		store:           store,
		scope:           scope,
		workers:         1,
		maxRetries:      5,
		retryBackoff:    500 * time.Millisecond,
		maxRetryBackoff: 30 * time.Second,
		logger:          slog.Default(),
		sleep:           sleepContext,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.workers < 1 {
		s.workers = 1
	}
	if s.runID != "" {
		s.logger = s.logger.With("run_id", s.runID)
	}
	return s
}

// Run loads the checkpoint and crawls until the frontier is drained, the
// page budget is spent or ctx is cancelled. Cancellation is not an error:
// the run stops cooperatively, saves a final checkpoint and reports
// OutcomeInterrupted.
func (s *Spider) Run(ctx context.Context) (Result, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return Result{Outcome: OutcomeInterrupted}, err
	}

	initial := state.Stats()
	s.logger.Info("crawl started",
		"origin", s.scope.Origin(),
		"workers", s.workers,
		"pending", initial.Pending,
		"visited", initial.Visited)

	g, gctx := errgroup.WithContext(ctx)
	// Registered on gctx so claimers only wake once gctx reports done.
	stopWake := state.WakeOnDone(gctx)
	defer stopWake()

	for range s.workers {
		g.Go(func() error {
			return s.work(gctx, state)
		})
	}
	// Workers only return nil; the group is used for lifecycle.
	_ = g.Wait()

	// Final checkpoint. Any in-flight URL was released back to the frontier.
	s.save(ctx, state.Snapshot())

	stats := state.Stats()
	outcome := OutcomeDone
	if stats.Pending > 0 {
		outcome = OutcomeInterrupted
	}

	s.statsMu.Lock()
	res := Result{
		Outcome:   outcome,
		Processed: stats.Processed,
		Extracted: s.extracted,
		Retried:   s.retried,
		Failed:    stats.Failed,
		Pending:   stats.Pending,
		Visited:   stats.Visited,
		Records:   state.Records(),
		RunID:     s.runID,
	}
	s.statsMu.Unlock()

	s.logger.Info("crawl finished",
		"outcome", outcome.String(),
		"processed", res.Processed,
		"extracted", res.Extracted,
		"pending", res.Pending,
		"failed", res.Failed)

	return res, nil
}

// loadState reads the checkpoint and seeds the frontier if it is empty.
func (s *Spider) loadState(ctx context.Context) (*State, error) {
	// Loading ignores cancellation: an interrupted run still saves the
	// checkpoint it started from rather than an empty one.
	cp, err := s.store.Load(context.WithoutCancel(ctx))
	switch {
	case err == nil:
		s.logger.Info("resuming from checkpoint",
			"pending", len(cp.LinksToProcess),
			"visited", len(cp.ProcessedData),
			"failed", len(cp.FailedLinks))
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		s.logger.Info("no checkpoint found, starting fresh")
	case errors.Is(err, checkpoint.ErrCorrupt):
		s.logger.Warn("checkpoint unreadable, starting fresh", "error", err)
	default:
		s.logger.Error("failed to load checkpoint, starting fresh",
			"error", newError(KindCheckpointIO, "", err))
	}
	cp.Normalize()

	state := NewState(cp, s.maxPages)

	if s.retryFailed {
		if n := state.RequeueFailed(); n > 0 {
			s.logger.Info("requeued failed links", "count", n)
		}
	}

	if !state.Pending() {
		if s.seed == "" {
			if state.Stats().Visited == 0 {
				return nil, ErrNoSeed
			}
			return state, nil
		}
		seed, err := Normalize(s.seed)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		if !s.scope.Contains(seed) {
			return nil, fmt.Errorf("%w: %s", ErrSeedOutOfScope, seed)
		}
		// A seed that was already visited leaves the frontier empty and
		// the run ends at once.
		state.PushBack(seed)
	}
	return state, nil
}

// work is one worker's loop.
func (s *Spider) work(ctx context.Context, state *State) error {
	for {
		claim, err := state.Claim(ctx)
		if err != nil {
			if errors.Is(err, errBudget) {
				s.logger.Debug("page budget reached", "max_pages", s.maxPages)
			}
			return nil
		}
		s.setFrontierGauge(state)

		if !s.process(ctx, state, claim) {
			return nil
		}
	}
}

// process handles one claimed URL. It returns false when the worker should
// stop because ctx ended before the fetch went out.
func (s *Spider) process(ctx context.Context, state *State, claim Claim) bool {
	u := claim.URL

	if claim.Attempts > 0 {
		wait := s.backoff(claim.Attempts)
		s.logger.Debug("retry backoff", "url", u, "attempts", claim.Attempts, "wait", wait)
		if err := s.sleep(ctx, wait); err != nil {
			state.Release(u)
			return false
		}
	}

	start := time.Now()
	res := s.fetcher.Fetch(ctx, u)
	if s.metrics != nil {
		s.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}

	if errors.Is(res.Err, fetcher.ErrInterrupted) {
		state.Release(u)
		s.countFetch(metrics.ResultCancelled)
		return false
	}

	if !res.OK() {
		s.countFetch(metrics.ResultError)
		retry, attempts, snap := state.Fail(u, res.Err, s.maxRetries)
		ferr := newError(KindTransientFetch, u, res.Err)
		if retry {
			s.logger.Warn("fetch failed, will retry", "url", u, "attempts", attempts, "error", ferr)
			s.statsMu.Lock()
			s.retried++
			s.statsMu.Unlock()
			if s.metrics != nil {
				s.metrics.Retries.Inc()
			}
		} else {
			s.logger.Warn("fetch failed, giving up", "url", u, "attempts", attempts, "error", ferr)
			if s.metrics != nil {
				s.metrics.FailedLinks.Inc()
			}
		}
		s.save(ctx, snap)
		return true
	}
	s.countFetch(metrics.ResultOK)

	ex := s.extractor.Extract(extract.Page{
		URL:         res.FinalURL,
		ContentType: res.ContentType,
		Body:        res.Body,
	})
	record := ex.Record
	if ex.Err != nil {
		s.logger.Debug("no record extracted", "url", u, "error", newError(KindExtraction, u, ex.Err))
		record = model.Record{}
		if s.metrics != nil {
			s.metrics.ExtractionFailures.Inc()
		}
	} else if !record.IsEmpty() {
		s.statsMu.Lock()
		s.extracted++
		s.statsMu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordsExtracted.Inc()
		}
	}

	links := make([]string, 0, len(ex.Links))
	for _, link := range ex.Links {
		if normalized, ok := s.scope.Resolve(link); ok {
			links = append(links, normalized)
		}
	}

	added, snap := state.Complete(u, record, links)
	s.logger.Info("visited", "url", u, "fields", len(record), "new_links", added)
	s.setFrontierGauge(state)
	s.save(ctx, snap)
	return true
}

// save writes snap unless a newer snapshot was already written. Saves run
// with a context detached from cancellation so the last step of an
// interrupted crawl is still persisted. Failures are logged and the crawl
// goes on.
func (s *Spider) save(ctx context.Context, snap Snapshot) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.saved && snap.Version <= s.savedVersion {
		return
	}

	if err := s.store.Save(context.WithoutCancel(ctx), snap.Checkpoint); err != nil {
		s.logger.Error("failed to save checkpoint", "error", newError(KindCheckpointIO, "", err))
		if s.metrics != nil {
			s.metrics.CheckpointSaves.WithLabelValues(metrics.ResultError).Inc()
		}
		return
	}
	s.saved = true
	s.savedVersion = snap.Version
	if s.metrics != nil {
		s.metrics.CheckpointSaves.WithLabelValues(metrics.ResultOK).Inc()
	}
}

// backoff returns the wait before the next fetch of a URL that failed
// attempts times: retryBackoff doubled per extra attempt, capped at
// maxRetryBackoff.
func (s *Spider) backoff(attempts int) time.Duration {
	if attempts <= 0 || s.retryBackoff <= 0 {
		return 0
	}
	limit := s.maxRetryBackoff
	if limit <= 0 {
		limit = time.Hour
	}
	d := s.retryBackoff
	for i := 1; i < attempts && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func (s *Spider) countFetch(result string) {
	if s.metrics != nil {
		s.metrics.FetchesTotal.WithLabelValues(result).Inc()
	}
}

func (s *Spider) setFrontierGauge(state *State) {
	if s.metrics != nil {
		s.metrics.FrontierSize.Set(float64(state.Stats().Pending))
	}
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
