package attack

import (
	"errors"
	"fmt"

	"github.com/aegyost/dictattack/internal/digest"
)

var (
	ErrAlreadyStarted = errors.New("attack run already started")
	ErrNilCandidates  = errors.New("candidate sequence is nil")
	ErrNilProvider    = errors.New("digest provider is nil")
	ErrDigestFailed   = errors.New("digest provider failed")
)

// DigestError reports the candidate whose digest could not be computed.
// Index is the position a new run should resume from.
type DigestError struct {
	Index     int
	Candidate string
	Algorithm digest.Algorithm
	Err       error
}

func (e *DigestError) Error() string {
	return fmt.Sprintf("%s: candidate %d (%s): %v", ErrDigestFailed, e.Index, e.Algorithm, e.Err)
}

func (e *DigestError) Unwrap() error {
	return e.Err
}

func (e *DigestError) Is(target error) bool {
	return target == ErrDigestFailed
}
