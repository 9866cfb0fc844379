package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aegyost/dictattack/internal/attack"
	"github.com/aegyost/dictattack/internal/digest"
)

var ErrNotFound = errors.New("record not found")

// Record is the persisted form of a finished attack.
type Record struct {
	RequestID string        `bson:"_id" json:"requestId"`
	RunID     string        `bson:"run_id" json:"runId"`
	Source    string        `bson:"source" json:"source"`
	Outcome   string        `bson:"outcome" json:"outcome"`
	Success   bool          `bson:"success" json:"success"`
	Cracked   string        `bson:"cracked,omitempty" json:"cracked,omitempty"`
	Tested    int           `bson:"tested" json:"tested"`
	Total     int           `bson:"total" json:"total"`
	StartedAt time.Time     `bson:"started_at" json:"startedAt"`
	Elapsed   time.Duration `bson:"elapsed" json:"elapsed"`
	Target    string        `bson:"target" json:"target"`
	Algorithm string        `bson:"algorithm" json:"algorithm"`
	PeakRate  float64       `bson:"peak_rate" json:"peakRate"`
	Error     string        `bson:"error,omitempty" json:"error,omitempty"`
	// TimedOut marks a cancellation caused by the request deadline.
	TimedOut bool `bson:"timed_out,omitempty" json:"timedOut,omitempty"`
}

func NewRecord(requestID, source string, res *attack.Result, runErr error) Record {
	rec := Record{
		RequestID: requestID,
		RunID:     res.RunID,
		Source:    source,
		Outcome:   res.Outcome.String(),
		Success:   res.Success,
		Cracked:   res.Cracked,
		Tested:    res.Tested,
		Total:     res.Total,
		StartedAt: res.StartedAt,
		Elapsed:   res.Elapsed,
		Target:    res.Target,
		Algorithm: res.Algorithm.String(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

// Result rebuilds the attack result so throughput and analysis can be
// recomputed without running the attack again.
func (r Record) Result() (attack.Result, error) {
	alg, err := digest.ParseAlgorithm(r.Algorithm)
	if err != nil {
		return attack.Result{}, err
	}
	var outcome attack.Outcome
	if err := outcome.UnmarshalText([]byte(r.Outcome)); err != nil {
		return attack.Result{}, err
	}
	return attack.Result{
		RunID:     r.RunID,
		Outcome:   outcome,
		Success:   r.Success,
		Cracked:   r.Cracked,
		Tested:    r.Tested,
		Total:     r.Total,
		StartedAt: r.StartedAt,
		Elapsed:   r.Elapsed,
		Target:    r.Target,
		Algorithm: alg,
	}, nil
}

type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, requestID string) (Record, error)
}

type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.RequestID] = rec
	return nil
}

func (m *Memory) Get(_ context.Context, requestID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[requestID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}
