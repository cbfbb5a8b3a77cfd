package service

import (
	"context"
	"errors"

	"github.com/jaller94/andstatus/connector"
)

// Disposition is the scheduler's verdict on a finished execution.
type Disposition int

const (
	DispositionSuccess Disposition = iota
	// DispositionRetry: transient transport failure, requeue up to the
	// retry ceiling.
	DispositionRetry
	// DispositionTerminal: surfaced to the caller, never retried.
	DispositionTerminal
)

func (d Disposition) String() string {
	switch d {
	case DispositionRetry:
		return "RETRY"
	case DispositionTerminal:
		return "TERMINAL"
	default:
		return "SUCCESS"
	}
}

// Classify maps an execution outcome onto the retry policy. Transport
// failures and timeouts are retryable; capability, malformed-request,
// no-credentials and parse failures are not, retrying cannot help them.
// Failures outside the taxonomy are treated as transient.
func Classify(err error) Disposition {
	if err == nil {
		return DispositionSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return DispositionRetry
	}
	switch connector.StatusOf(err) {
	case connector.StatusIOError, connector.StatusUnknown:
		return DispositionRetry
	default:
		return DispositionTerminal
	}
}
