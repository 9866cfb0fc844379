package attack

import (
	"fmt"
	"time"

	"github.com/aegyost/dictattack/internal/digest"
)

// Candidates is an ordered, finite sequence of password guesses.
type Candidates interface {
	Len() int
	At(i int) string
}

// Wordlist is an in-memory dictionary.
type Wordlist []string

func (w Wordlist) Len() int        { return len(w) }
func (w Wordlist) At(i int) string { return w[i] }

// Request is the immutable input of a run. Target must already be the
// lowercase hex form produced by digest.NormalizeTarget.
type Request struct {
	Target     string
	Algorithm  digest.Algorithm
	Candidates Candidates
}

// Validate checks the preconditions Start enforces before scanning.
func (r Request) Validate() error {
	if r.Candidates == nil {
		return ErrNilCandidates
	}
	if !r.Algorithm.Valid() {
		return fmt.Errorf("%w: %d", digest.ErrUnknownAlgorithm, int(r.Algorithm))
	}
	return nil
}

type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusFailed
)

var statusNames = [...]string{
	StatusIdle:      "IDLE",
	StatusRunning:   "RUNNING",
	StatusCompleted: "COMPLETED",
	StatusCancelled: "CANCELLED",
	StatusFailed:    "FAILED",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Terminal reports whether no further progress can happen in this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Outcome distinguishes the four ways a run can end.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeFound
	OutcomeNotFound
	OutcomeCancelled
	OutcomeFailed
)

var outcomeNames = [...]string{
	OutcomeNone:      "",
	OutcomeFound:     "FOUND",
	OutcomeNotFound:  "NOT_FOUND",
	OutcomeCancelled: "CANCELLED",
	OutcomeFailed:    "FAILED",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(text []byte) error {
	for i, name := range outcomeNames {
		if name == string(text) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Progress is a consistent view of a run, published at suspension points.
type Progress struct {
	RunID     string        `json:"runId"`
	Status    Status        `json:"status"`
	Cursor    int           `json:"cursor"`
	Tested    int           `json:"tested"`
	Total     int           `json:"total"`
	Current   string        `json:"current,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`
	// Final is set on the single update emitted when the run terminates.
	Final bool `json:"final,omitempty"`
}

// Percent is the share of the dictionary already tested.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		if p.Status.Terminal() {
			return 100
		}
		return 0
	}
	return float64(p.Tested) / float64(p.Total) * 100
}

// Throughput is the candidates-per-second rate at the time of the snapshot.
func (p Progress) Throughput() float64 {
	return Throughput(p.Tested, p.Elapsed)
}

// Observer receives progress updates on the goroutine driving the scan.
type Observer func(Progress)

// Result is the terminal, immutable report of a run.
type Result struct {
	RunID     string           `json:"runId"`
	Outcome   Outcome          `json:"outcome"`
	Success   bool             `json:"success"`
	Cracked   string           `json:"cracked,omitempty"`
	Tested    int              `json:"tested"`
	Total     int              `json:"total"`
	StartedAt time.Time        `json:"startedAt"`
	Elapsed   time.Duration    `json:"elapsed"`
	Target    string           `json:"target"`
	Algorithm digest.Algorithm `json:"algorithm"`
}

func (r Result) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Throughput recomputes the candidates-per-second rate from stored fields.
func (r Result) Throughput() float64 {
	return Throughput(r.Tested, r.Elapsed)
}

// Throughput returns tested/elapsed in candidates per second, or 0 when no
// measurable time has passed.
func Throughput(tested int, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(tested) / secs
}
