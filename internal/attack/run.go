package attack

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/aegyost/dictattack/internal/digest"
)

const DefaultBatchSize = 100

// Run drives a single dictionary attack. A Run is started at most once;
// Cancel and Snapshot may be called from any goroutine while it scans.
type Run struct {
	id        string
	provider  digest.Provider
	batchSize int
	interval  int
	log       zerolog.Logger
	now       func() time.Time

	started   atomic.Bool
	cancelled atomic.Bool
	progress  atomic.Pointer[Progress]
}

type Option func(*Run)

// WithBatchSize sets how many candidates are tested between suspension
// points. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(r *Run) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithProgressInterval sets the minimum number of candidates between two
// observer notifications. Notifications only happen at batch boundaries, so
// the effective interval is rounded up to a whole batch.
func WithProgressInterval(n int) Option {
	return func(r *Run) {
		if n >= 0 {
			r.interval = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Run) { r.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Run) { r.now = now }
}

func WithID(id string) Option {
	return func(r *Run) { r.id = id }
}

func NewRun(provider digest.Provider, opts ...Option) *Run {
	r := &Run{
		id:        xid.New().String(),
		provider:  provider,
		batchSize: DefaultBatchSize,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("component", "attack").Str("run_id", r.id).Logger()
	r.progress.Store(&Progress{RunID: r.id, Status: StatusIdle})
	return r
}

func (r *Run) ID() string { return r.id }

// Cancel asks the run to stop at its next suspension point. It is safe to
// call more than once and after the run has finished. Cancelling a run that
// has not started yet makes Start return a cancelled result immediately.
func (r *Run) Cancel() {
	if r.cancelled.CompareAndSwap(false, true) {
		r.log.Debug().Msg("cancellation requested")
	}
}

// Snapshot returns the last published progress. Elapsed is recomputed while
// the run is in progress and frozen once it terminates.
func (r *Run) Snapshot() Progress {
	p := *r.progress.Load()
	if p.Status == StatusRunning {
		p.Elapsed = r.now().Sub(p.StartedAt)
	}
	return p
}

// Completion is the single value delivered by Launch.
type Completion struct {
	Result *Result
	Err    error
}

// Launch runs Start on its own goroutine. The returned channel receives
// exactly one Completion and is then closed.
func (r *Run) Launch(ctx context.Context, req Request, observe Observer) <-chan Completion {
	done := make(chan Completion, 1)
	go func() {
		defer close(done)
		res, err := r.Start(ctx, req, observe)
		done <- Completion{Result: res, Err: err}
	}()
	return done
}

// Start scans req.Candidates in order and blocks until the first match, the
// end of the sequence, or cancellation. Cancellation of ctx is treated like
// Cancel; a nil ctx never cancels. Precondition failures return a nil
// Result. A digest failure returns both the partial Result (OutcomeFailed)
// and a *DigestError.
func (r *Run) Start(ctx context.Context, req Request, observe Observer) (*Result, error) {
	if r.provider == nil {
		return nil, ErrNilProvider
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !r.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s := &scan{
		run:     r,
		req:     req,
		target:  strings.ToLower(req.Target),
		total:   req.Candidates.Len(),
		observe: observe,
		start:   r.now(),
	}
	r.log.Info().
		Str("algorithm", req.Algorithm.String()).
		Int("candidates", s.total).
		Int("batch_size", r.batchSize).
		Msg("attack started")

	s.publish(StatusRunning, false)
	return s.loop(ctx)
}

func (r *Run) stopRequested(ctx context.Context) bool {
	if r.cancelled.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// scan holds the mutable state owned by the goroutine inside Start.
type scan struct {
	run      *Run
	req      Request
	target   string
	total    int
	observe  Observer
	start    time.Time
	cursor   int
	current  string
	notified int
}

func (s *scan) loop(ctx context.Context) (*Result, error) {
	r := s.run
	for s.cursor < s.total {
		if r.stopRequested(ctx) {
			return s.finish(OutcomeCancelled, ""), nil
		}

		end := min(s.cursor+r.batchSize, s.total)
		for s.cursor < end {
			candidate := s.req.Candidates.At(s.cursor)
			s.current = candidate
			sum, err := r.provider.Digest(candidate, s.req.Algorithm)
			if err != nil {
				derr := &DigestError{
					Index:     s.cursor,
					Candidate: candidate,
					Algorithm: s.req.Algorithm,
					Err:       err,
				}
				return s.finish(OutcomeFailed, ""), derr
			}
			s.cursor++
			if digest.Equal(sum, s.target) {
				return s.finish(OutcomeFound, candidate), nil
			}
		}

		if s.cursor < s.total {
			s.yield()
		}
	}
	return s.finish(OutcomeNotFound, ""), nil
}

// yield is the suspension point between batches.
func (s *scan) yield() {
	p := s.publish(StatusRunning, false)
	if s.observe != nil && s.cursor-s.notified >= s.run.interval {
		s.notified = s.cursor
		s.observe(p)
	}
	runtime.Gosched()
}

func (s *scan) publish(status Status, final bool) Progress {
	p := &Progress{
		RunID:     s.run.id,
		Status:    status,
		Cursor:    s.cursor,
		Tested:    s.cursor,
		Total:     s.total,
		Current:   s.current,
		StartedAt: s.start,
		Elapsed:   s.run.now().Sub(s.start),
		Final:     final,
	}
	s.run.progress.Store(p)
	return *p
}

func (s *scan) finish(outcome Outcome, cracked string) *Result {
	status := StatusCompleted
	switch outcome {
	case OutcomeCancelled:
		status = StatusCancelled
	case OutcomeFailed:
		status = StatusFailed
	}
	p := s.publish(status, true)
	if s.observe != nil {
		s.observe(p)
	}

	res := &Result{
		RunID:     s.run.id,
		Outcome:   outcome,
		Success:   outcome == OutcomeFound,
		Cracked:   cracked,
		Tested:    p.Tested,
		Total:     s.total,
		StartedAt: s.start,
		Elapsed:   p.Elapsed,
		Target:    s.target,
		Algorithm: s.req.Algorithm,
	}

	level := zerolog.InfoLevel
	if outcome == OutcomeFailed {
		level = zerolog.ErrorLevel
	}
	s.run.log.WithLevel(level).
		Str("outcome", outcome.String()).
		Int("tested", res.Tested).
		Dur("elapsed", res.Elapsed).
		Float64("rate", res.Throughput()).
		Msg("attack finished")
	return res
}
