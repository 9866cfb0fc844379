package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aegyost/dictattack/internal/attack"
	"github.com/aegyost/dictattack/internal/combinations"
	"github.com/aegyost/dictattack/internal/digest"
	"github.com/aegyost/dictattack/internal/models"
	"github.com/aegyost/dictattack/internal/stats"
	"github.com/aegyost/dictattack/internal/store"
	"github.com/aegyost/dictattack/internal/wordlist"
	"github.com/aegyost/dictattack/internal/worker"
)

var errSource = errors.New("exactly one of wordlist, candidates or alphabet/maxLength is required")

// Submitter starts attack jobs. *worker.Worker implements it.
type Submitter interface {
	Submit(job worker.Job) (*worker.Handle, error)
}

type RequestState struct {
	Handle        *worker.Handle
	Algorithm     digest.Algorithm
	CreatedAt     time.Time
	TimeoutCancel func()
	timedOut      atomic.Bool
}

type Manager struct {
	worker   Submitter
	provider digest.Provider
	store    store.Store
	dicts    *wordlist.Dir
	requests map[string]*RequestState
	mu       sync.RWMutex
	timeout  time.Duration
	log      zerolog.Logger

	// BenchmarkIterations is the number of digests timed by
	// /api/estimate?measure=1.
	BenchmarkIterations int
}

// NewManager builds the HTTP front of the worker. A zero timeout disables
// the per-request deadline. provider is only used to measure digest speed
// for estimates and defaults to the built-in hasher.
func NewManager(w Submitter, provider digest.Provider, st store.Store, dicts *wordlist.Dir, timeout time.Duration, log zerolog.Logger) *Manager {
	if st == nil {
		st = store.NewMemory()
	}
	if provider == nil {
		provider = digest.NewHasher()
	}
	return &Manager{
		worker:   w,
		provider: provider,
		store:    st,
		dicts:    dicts,
		requests: make(map[string]*RequestState),
		timeout:  timeout,
		log:      log.With().Str("component", "manager").Logger(),
	}
}

func (m *Manager) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/attack", m.HandleCrack)
	mux.HandleFunc("/api/attack/status", m.HandleStatus)
	mux.HandleFunc("/api/attack/cancel", m.HandleCancel)
	mux.HandleFunc("/api/algorithms", m.HandleAlgorithms)
	mux.HandleFunc("/api/wordlists", m.HandleWordlists)
	mux.HandleFunc("/api/estimate", m.HandleEstimate)
	return mux
}

func (m *Manager) HandleCrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req models.CrackHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	alg := digest.MD5
	if req.Algorithm != "" {
		var err error
		if alg, err = digest.ParseAlgorithm(req.Algorithm); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	target, err := digest.NormalizeTarget(req.Hash, alg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	candidates, source, err := m.candidates(req)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "Wordlist not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	requestID := uuid.New().String()
	h, err := m.worker.Submit(worker.Job{
		RequestID: requestID,
		Source:    source,
		Request:   attack.Request{Target: target, Algorithm: alg, Candidates: candidates},
	})
	switch {
	case errors.Is(err, worker.ErrBusy), errors.Is(err, worker.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := &RequestState{
		Handle:    h,
		Algorithm: alg,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.requests[requestID] = state
	m.mu.Unlock()

	if m.timeout > 0 {
		timer := time.AfterFunc(m.timeout, func() {
			select {
			case <-h.Done():
				return
			default:
			}
			state.timedOut.Store(true)
			h.Cancel()
			m.log.Warn().Str("request_id", requestID).Dur("timeout", m.timeout).Msg("request timed out")
		})
		state.TimeoutCancel = func() { timer.Stop() }
	}
	go m.release(requestID, state)

	m.log.Info().
		Str("request_id", requestID).
		Str("algorithm", alg.String()).
		Str("source", source).
		Int("candidates", h.Total).
		Msg("attack submitted")

	writeJSON(w, http.StatusOK, models.CrackHashResponse{
		RequestID: requestID,
		Total:     h.Total,
		Estimate:  stats.EstimateDuration(h.Total, alg).String(),
	}, m.log)
}

// release waits for the run to finish and drops it from the live table.
// Status lookups are then served from the store, which the worker writes
// before the handle is done.
func (m *Manager) release(requestID string, state *RequestState) {
	h := state.Handle
	<-h.Done()
	if state.TimeoutCancel != nil {
		state.TimeoutCancel()
	}
	if state.timedOut.Load() {
		rec, _ := h.Record()
		if rec.RequestID != "" && rec.Outcome == attack.OutcomeCancelled.String() {
			rec.TimedOut = true
			if err := m.store.Save(context.Background(), rec); err != nil {
				m.log.Error().Err(err).Str("request_id", requestID).Msg("failed to store timeout")
			}
		}
	}

	m.mu.Lock()
	delete(m.requests, requestID)
	m.mu.Unlock()
}

// Active reports how many requests are still tracked as live.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// candidates resolves the single candidate source named in req.
func (m *Manager) candidates(req models.CrackHashRequest) (attack.Candidates, string, error) {
	keyspace := req.Alphabet != "" || req.MaxLength != 0
	n := 0
	for _, set := range []bool{req.Wordlist != "", len(req.Candidates) > 0, keyspace} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, "", errSource
	}

	switch {
	case req.Wordlist != "":
		if m.dicts == nil {
			return nil, "", fmt.Errorf("named wordlists are not configured")
		}
		words, err := m.dicts.Load(req.Wordlist)
		if err != nil {
			return nil, "", err
		}
		return words, "wordlist:" + req.Wordlist, nil
	case len(req.Candidates) > 0:
		return attack.Wordlist(req.Candidates), "inline", nil
	}

	if req.MaxLength <= 0 || req.MaxLength > combinations.MaxLength {
		return nil, "", fmt.Errorf("maxLength must be between 1 and %d", combinations.MaxLength)
	}
	alphabet := req.Alphabet
	if alphabet == "" {
		alphabet = combinations.DefaultAlphabet
	}
	ks, err := combinations.NewKeyspace(alphabet, req.MaxLength)
	if err != nil {
		return nil, "", err
	}
	return ks, fmt.Sprintf("keyspace:%d", req.MaxLength), nil
}

func (m *Manager) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := r.URL.Query().Get("requestId")
	if requestID == "" {
		http.Error(w, "Missing requestId", http.StatusBadRequest)
		return
	}

	m.mu.RLock()
	state, exists := m.requests[requestID]
	m.mu.RUnlock()

	if exists {
		writeJSON(w, http.StatusOK, m.liveStatus(state), m.log)
		return
	}

	rec, err := m.store.Get(r.Context(), requestID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	case err != nil:
		m.log.Error().Err(err).Str("request_id", requestID).Msg("failed to load result")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recordStatus(rec), m.log)
}

func (m *Manager) liveStatus(state *RequestState) models.StatusResponse {
	h := state.Handle
	select {
	case <-h.Done():
		rec, _ := h.Record()
		rec.TimedOut = state.timedOut.Load()
		return recordStatus(rec)
	default:
	}

	p := h.Snapshot()
	return models.StatusResponse{
		Status:         models.StatusInProgress,
		Tested:         p.Tested,
		Total:          p.Total,
		Current:        p.Current,
		Percent:        p.Percent(),
		ElapsedSeconds: p.Elapsed.Seconds(),
		Rate:           p.Throughput(),
		PeakRate:       h.PeakRate(),
	}
}

// recordStatus renders a finished attack. Rate and rating are recomputed
// from the stored counters.
func recordStatus(rec store.Record) models.StatusResponse {
	resp := models.StatusResponse{
		Status:   models.StatusError,
		Tested:   rec.Tested,
		Total:    rec.Total,
		PeakRate: rec.PeakRate,
		Error:    rec.Error,
	}
	if rec.Outcome == attack.OutcomeCancelled.String() {
		resp.TimedOut = rec.TimedOut
	}
	res, err := rec.Result()
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	switch res.Outcome {
	case attack.OutcomeFound, attack.OutcomeNotFound:
		resp.Status = models.StatusReady
	case attack.OutcomeCancelled:
		resp.Status = models.StatusCancelled
	}
	final := attack.Progress{Status: attack.StatusCompleted, Tested: res.Tested, Total: res.Total}
	analysis := stats.Analyze(res)
	resp.Percent = final.Percent()
	resp.ElapsedSeconds = res.ElapsedSeconds()
	resp.Rate = analysis.Rate
	resp.Result = &models.ResultView{
		Outcome:        res.Outcome.String(),
		Success:        res.Success,
		Cracked:        res.Cracked,
		Tested:         res.Tested,
		ElapsedSeconds: res.ElapsedSeconds(),
		Rate:           analysis.Rate,
		Rating:         string(analysis.Rating),
		Algorithm:      res.Algorithm.String(),
		Target:         res.Target,
	}
	return resp
}

// HandleCancel requests cancellation. Cancelling a finished or already
// cancelled request is accepted and has no effect.
func (m *Manager) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := r.URL.Query().Get("requestId")
	if requestID == "" {
		http.Error(w, "Missing requestId", http.StatusBadRequest)
		return
	}

	m.mu.RLock()
	state, exists := m.requests[requestID]
	m.mu.RUnlock()

	if exists {
		state.Handle.Cancel()
		m.log.Info().Str("request_id", requestID).Msg("cancellation requested")
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if _, err := m.store.Get(r.Context(), requestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Request not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (m *Manager) HandleAlgorithms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	algs := digest.Algorithms()
	out := make([]models.AlgorithmInfo, 0, len(algs))
	for _, alg := range algs {
		info, _ := digest.InfoFor(alg)
		out = append(out, models.AlgorithmInfo{
			ID:        alg.String(),
			Name:      info.Name,
			HexLength: alg.HexLength(),
			Status:    info.Status,
			Secure:    info.Secure,
		})
	}
	writeJSON(w, http.StatusOK, out, m.log)
}

func (m *Manager) HandleWordlists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	names := []string{}
	if m.dicts != nil {
		var err error
		if names, err = m.dicts.List(); err != nil {
			m.log.Error().Err(err).Msg("failed to list wordlists")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, names, m.log)
}

func (m *Manager) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	size, err := strconv.Atoi(q.Get("size"))
	if err != nil || size < 0 {
		http.Error(w, "size must be a non-negative integer", http.StatusBadRequest)
		return
	}
	alg := digest.MD5
	if s := q.Get("algorithm"); s != "" {
		if alg, err = digest.ParseAlgorithm(s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	est := stats.EstimateDuration(size, alg)
	measured := false
	if measure, _ := strconv.ParseBool(q.Get("measure")); measure {
		meas, err := stats.Benchmark(m.provider, alg, m.benchmarkIterations(), nil)
		if err != nil {
			m.log.Error().Err(err).Str("algorithm", alg.String()).Msg("benchmark failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		est = stats.EstimateAt(size, alg, meas.Rate)
		measured = meas.Rate > 0
	}
	resp := models.EstimateResponse{
		Algorithm: alg.String(),
		Size:      size,
		Rate:      est.Rate,
		Seconds:   est.Duration.Seconds(),
		Formatted: est.String(),
		Rating:    string(stats.RateSpeed(est.Rate)),
		Measured:  measured,
	}
	if s := q.Get("maxLength"); s != "" {
		maxLength, err := strconv.Atoi(s)
		if err != nil || maxLength <= 0 || maxLength > combinations.MaxLength {
			http.Error(w, fmt.Sprintf("maxLength must be between 1 and %d", combinations.MaxLength), http.StatusBadRequest)
			return
		}
		alphabet := q.Get("alphabet")
		if alphabet == "" {
			alphabet = combinations.DefaultAlphabet
		}
		keyspace, err := combinations.TotalCombinations(alphabet, maxLength)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		coverage := stats.SuccessProbability(size, keyspace)
		resp.Coverage = &coverage
	}
	writeJSON(w, http.StatusOK, resp, m.log)
}

func (m *Manager) benchmarkIterations() int {
	if m.BenchmarkIterations > 0 {
		return m.BenchmarkIterations
	}
	return stats.DefaultBenchmarkIterations
}

func writeJSON(w http.ResponseWriter, status int, v any, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
