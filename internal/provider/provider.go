package provider

import (
	"context"
	"errors"
	"fmt"
)

// Provider status values as reported by Stripe.
const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresAction        = "requires_action"
	StatusProcessing            = "processing"
	StatusRequiresCapture       = "requires_capture"
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"
)

// ErrAlreadyAttached is returned by AttachPaymentMethod when the payment
// method is already bound to the target.
var ErrAlreadyAttached = errors.New("payment method already attached")

// CreateParams describes a new payment intent. Amount is in minor currency units.
type CreateParams struct {
	Amount          int64
	Currency        string
	PaymentMethodID string
}

// ConfirmParams carries the optional payment method used for confirmation.
type ConfirmParams struct {
	PaymentMethodID string
}

// NextAction is the provider's hint that the customer must do something
// (3-D Secure challenge, redirect) before the intent can progress.
type NextAction struct {
	Type string
}

// Intent is the provider's view of a payment intent after a call.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	NextAction   *NextAction
}

// Provider is the remote payment API the handshake talks to.
type Provider interface {
	// CreateIntent creates an intent in manual confirmation mode without confirming it.
	CreateIntent(ctx context.Context, params CreateParams) (*Intent, error)
	// ConfirmIntent confirms the intent identified by id.
	ConfirmIntent(ctx context.Context, id string, params ConfirmParams) (*Intent, error)
	// AttachPaymentMethod binds a payment method to the intent identified by intentID.
	AttachPaymentMethod(ctx context.Context, paymentMethodID, intentID string) error
}

// Error is a provider failure normalized at the adapter boundary.
type Error struct {
	Op         string
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *Error) Unwrap() error { return e.Err }
