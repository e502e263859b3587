package agents

import (
	"fmt"
)

// TransientError is a connectivity, timeout, or rate-limit failure of a
// generator call. It is retried by the backoff policy.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// InvalidResponseError means a generator answered but the output could not be
// parsed into the stage's structured form. It is never retried.
type InvalidResponseError struct {
	Stage  string
	Reason string
	// Raw is the unparseable output, truncated for logging.
	Raw string
	Err error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s returned an invalid response: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s returned an invalid response: %s", e.Stage, e.Reason)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// NonRetryable marks the error as permanent for the retry package.
func (e *InvalidResponseError) NonRetryable() bool { return true }

const maxRawLen = 512

func invalidResponse(stage, reason, raw string, err error) *InvalidResponseError {
	if len(raw) > maxRawLen {
		raw = raw[:maxRawLen] + "..."
	}
	return &InvalidResponseError{Stage: stage, Reason: reason, Raw: raw, Err: err}
}
