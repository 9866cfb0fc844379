package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aegyost/dictattack/internal/attack"
	"github.com/aegyost/dictattack/internal/digest"
	"github.com/aegyost/dictattack/internal/events"
	"github.com/aegyost/dictattack/internal/stats"
	"github.com/aegyost/dictattack/internal/store"
)

var (
	ErrBusy   = errors.New("all attack slots are busy")
	ErrClosed = errors.New("worker is closed")
)

type Options struct {
	BatchSize        int
	ProgressInterval int
	// MaxConcurrent bounds simultaneous runs; 0 means runtime.NumCPU().
	MaxConcurrent int
}

// Job is one attack submitted by the manager.
type Job struct {
	RequestID string
	// Source describes where the candidates came from, for the stored record.
	Source  string
	Request attack.Request
	Observe attack.Observer
}

// Handle tracks a submitted job.
type Handle struct {
	RequestID string
	Total     int

	run   *attack.Run
	meter *stats.SpeedMeter
	done  chan struct{}

	record store.Record
	err    error
}

func (h *Handle) Cancel()                   { h.run.Cancel() }
func (h *Handle) Snapshot() attack.Progress { return h.run.Snapshot() }
func (h *Handle) Done() <-chan struct{}     { return h.done }
func (h *Handle) PeakRate() float64         { return h.meter.Peak() }

// Record returns the terminal record and the run error. It blocks until the
// run has finished.
func (h *Handle) Record() (store.Record, error) {
	<-h.done
	return h.record, h.err
}

type Worker struct {
	provider digest.Provider
	store    store.Store
	events   events.Publisher
	log      zerolog.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	slots  chan struct{}
	wg     sync.WaitGroup
}

func NewWorker(provider digest.Provider, st store.Store, pub events.Publisher, opts Options, log zerolog.Logger) *Worker {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = runtime.NumCPU()
	}
	if st == nil {
		st = store.NewMemory()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		provider: provider,
		store:    st,
		events:   pub,
		log:      log.With().Str("component", "worker").Logger(),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		slots:    make(chan struct{}, opts.MaxConcurrent),
	}
}

// Submit starts job on its own goroutine. It fails fast with ErrBusy when
// MaxConcurrent runs are already in flight.
func (w *Worker) Submit(job Job) (*Handle, error) {
	if w.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if err := job.Request.Validate(); err != nil {
		return nil, err
	}
	select {
	case w.slots <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	log := w.log.With().Str("request_id", job.RequestID).Logger()
	run := attack.NewRun(w.provider,
		attack.WithBatchSize(w.opts.BatchSize),
		attack.WithProgressInterval(w.opts.ProgressInterval),
		attack.WithLogger(log),
	)
	h := &Handle{
		RequestID: job.RequestID,
		Total:     job.Request.Candidates.Len(),
		run:       run,
		meter:     &stats.SpeedMeter{},
		done:      make(chan struct{}),
	}

	w.wg.Add(1)
	go w.process(job, h, log)
	return h, nil
}

func (w *Worker) process(job Job, h *Handle, log zerolog.Logger) {
	defer w.wg.Done()
	defer func() { <-w.slots }()
	defer close(h.done)

	observe := func(p attack.Progress) {
		h.meter.Observe(p)
		if err := w.events.PublishProgress(w.ctx, job.RequestID, p); err != nil {
			log.Warn().Err(err).Msg("failed to publish progress")
		}
		if job.Observe != nil {
			job.Observe(p)
		}
	}

	res, err := h.run.Start(w.ctx, job.Request, observe)
	h.err = err
	if res == nil {
		// Preconditions were checked in Submit, so only a programming error
		// lands here.
		log.Error().Err(err).Msg("attack rejected")
		return
	}
	h.record = store.NewRecord(job.RequestID, job.Source, res, err)
	h.record.PeakRate = h.meter.Peak()

	// Persist even when the worker is shutting down.
	ctx := context.WithoutCancel(w.ctx)
	if err := w.store.Save(ctx, h.record); err != nil {
		log.Error().Err(err).Msg("failed to store result")
	}
	if err := w.events.PublishResult(ctx, h.record); err != nil {
		log.Warn().Err(err).Msg("failed to publish result")
	}
}

// Close cancels every in-flight run and waits for them to finish.
func (w *Worker) Close() {
	w.cancel()
	w.wg.Wait()
}
