package models

const (
	StatusInProgress = "IN_PROGRESS"
	StatusReady      = "READY"
	StatusCancelled  = "CANCELLED"
	StatusError      = "ERROR"
)

// CrackHashRequest selects exactly one candidate source: a named wordlist,
// inline candidates, or an alphabet keyspace up to MaxLength.
type CrackHashRequest struct {
	Hash       string   `json:"hash"`
	Algorithm  string   `json:"algorithm"`
	Wordlist   string   `json:"wordlist,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Alphabet   string   `json:"alphabet,omitempty"`
	MaxLength  int      `json:"maxLength,omitempty"`
}

type CrackHashResponse struct {
	RequestID string `json:"requestId"`
	Total     int    `json:"total"`
	Estimate  string `json:"estimate"`
}

type StatusResponse struct {
	Status         string      `json:"status"`
	Tested         int         `json:"tested"`
	Total          int         `json:"total"`
	Current        string      `json:"current,omitempty"`
	Percent        float64     `json:"percent"`
	ElapsedSeconds float64     `json:"elapsedSeconds"`
	Rate           float64     `json:"rate"`
	PeakRate       float64     `json:"peakRate"`
	TimedOut       bool        `json:"timedOut,omitempty"`
	Result         *ResultView `json:"result,omitempty"`
	Error          string      `json:"error,omitempty"`
}

type ResultView struct {
	Outcome        string  `json:"outcome"`
	Success        bool    `json:"success"`
	Cracked        string  `json:"cracked,omitempty"`
	Tested         int     `json:"tested"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	Rate           float64 `json:"rate"`
	Rating         string  `json:"rating"`
	Algorithm      string  `json:"algorithm"`
	Target         string  `json:"target"`
}

type AlgorithmInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	HexLength int    `json:"hexLength"`
	Status    string `json:"status"`
	Secure    bool   `json:"secure"`
}

type EstimateResponse struct {
	Algorithm string  `json:"algorithm"`
	Size      int     `json:"size"`
	Rate      float64 `json:"rate"`
	Seconds   float64 `json:"seconds"`
	Formatted string  `json:"formatted"`
	Rating    string  `json:"rating"`
	// Measured is set when Rate was timed on this server rather than
	// taken from the reference table.
	Measured bool `json:"measured,omitempty"`
	// Coverage is the share of the alphabet keyspace the dictionary covers,
	// in percent. Set only when maxLength is given.
	Coverage *float64 `json:"coverage,omitempty"`
}
