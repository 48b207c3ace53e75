package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Test payment methods understood by the sandbox.
const (
	SandboxCardSucceeds       = "pm_card_visa"
	SandboxCardRequiresAction = "pm_card_threeDSecureRequired"
	SandboxCardDeclined       = "pm_card_chargeDeclined"
)

// Sandbox is an in-process stand-in for Stripe used when no secret key is
// configured. It follows the same intent lifecycle closely enough for local
// development and end-to-end tests.
type Sandbox struct {
	mu      sync.Mutex
	intents map[string]*sandboxIntent
}

type sandboxIntent struct {
	intent        Intent
	paymentMethod string
	amount        int64
	currency      string
}

func NewSandbox() *Sandbox {
	return &Sandbox{intents: make(map[string]*sandboxIntent)}
}

func (s *Sandbox) CreateIntent(ctx context.Context, p CreateParams) (*Intent, error) {
	if p.Amount < 1 {
		return nil, &Error{
			Op:         "create payment intent",
			Code:       "parameter_invalid_integer",
			Message:    "This value must be greater than or equal to 1.",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	if len(p.Currency) != 3 {
		return nil, &Error{
			Op:         "create payment intent",
			Code:       "parameter_invalid_string",
			Message:    fmt.Sprintf("Invalid currency: %s.", strings.ToLower(p.Currency)),
			HTTPStatus: http.StatusBadRequest,
		}
	}

	id := "pi_" + compactID()
	status := StatusRequiresPaymentMethod
	if p.PaymentMethodID != "" {
		status = StatusRequiresConfirmation
	}
	rec := &sandboxIntent{
		intent: Intent{
			ID:           id,
			ClientSecret: id + "_secret_" + compactID(),
			Status:       status,
		},
		paymentMethod: p.PaymentMethodID,
		amount:        p.Amount,
		currency:      strings.ToLower(p.Currency),
	}

	s.mu.Lock()
	s.intents[id] = rec
	s.mu.Unlock()

	out := rec.intent
	return &out, nil
}

func (s *Sandbox) ConfirmIntent(ctx context.Context, id string, p ConfirmParams) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.intents[id]
	if !ok {
		return nil, missingIntent("confirm payment intent", id)
	}
	switch rec.intent.Status {
	case StatusSucceeded, StatusCanceled, StatusRequiresCapture:
		return nil, &Error{
			Op:         "confirm payment intent",
			Code:       "payment_intent_unexpected_state",
			Message:    fmt.Sprintf("This PaymentIntent's status is %s, but must be one of requires_payment_method, requires_confirmation, or requires_action to be confirmed.", rec.intent.Status),
			HTTPStatus: http.StatusBadRequest,
		}
	}

	if p.PaymentMethodID != "" {
		rec.paymentMethod = p.PaymentMethodID
	}
	if rec.paymentMethod == "" {
		return nil, &Error{
			Op:         "confirm payment intent",
			Code:       "payment_intent_unexpected_state",
			Message:    "You cannot confirm this PaymentIntent because it's missing a payment method.",
			HTTPStatus: http.StatusBadRequest,
		}
	}

	rec.intent.NextAction = nil
	switch rec.paymentMethod {
	case SandboxCardDeclined:
		rec.intent.Status = StatusRequiresPaymentMethod
		rec.paymentMethod = ""
		return nil, &Error{
			Op:         "confirm payment intent",
			Code:       "card_declined",
			Message:    "Your card was declined.",
			HTTPStatus: http.StatusPaymentRequired,
		}
	case SandboxCardRequiresAction:
		// A second confirm after the challenge counts as authenticated.
		if rec.intent.Status == StatusRequiresAction {
			rec.intent.Status = StatusSucceeded
		} else {
			rec.intent.Status = StatusRequiresAction
			rec.intent.NextAction = &NextAction{Type: "use_stripe_sdk"}
		}
	default:
		rec.intent.Status = StatusSucceeded
	}

	out := rec.intent
	return &out, nil
}

func (s *Sandbox) AttachPaymentMethod(ctx context.Context, paymentMethodID, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.intents[intentID]
	if !ok {
		return missingIntent("attach payment method", intentID)
	}
	if rec.paymentMethod == paymentMethodID {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, paymentMethodID)
	}
	rec.paymentMethod = paymentMethodID
	return nil
}

func missingIntent(op, id string) error {
	return &Error{
		Op:         op,
		Code:       "resource_missing",
		Message:    fmt.Sprintf("No such payment_intent: '%s'", id),
		HTTPStatus: http.StatusNotFound,
	}
}

func compactID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
