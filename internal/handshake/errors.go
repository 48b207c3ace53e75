package handshake

import (
	"errors"
	"fmt"
)

// ErrIntentNotFound means the client secret does not resolve to any intent
// known to this process.
var ErrIntentNotFound = errors.New("PaymentIntent not found")

// ValidationError reports a missing or malformed request field. It is raised
// before any provider call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ProviderError wraps a failed remote call. Its message is the provider's.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AttachOutcome names the result of the best-effort attach step.
type AttachOutcome string

const (
	AttachSkipped         AttachOutcome = "skipped"
	AttachAttached        AttachOutcome = "attached"
	AttachAlreadyAttached AttachOutcome = "already_attached"
	// AttachFailed never aborts the handshake; the confirm call that follows
	// usually fails with the clearer provider error.
	AttachFailed AttachOutcome = "failed"
)
