package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultStripeTimeout = 80 * time.Second
	codeAlreadyExists    = "resource_already_exists"
)

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey string
	// APIURL overrides https://api.stripe.com; used by tests and stripe-mock.
	APIURL  string
	Timeout time.Duration
}

// Stripe implements Provider on top of stripe-go.
type Stripe struct {
	api *client.API
}

// NewStripe builds a Stripe adapter with its own backend. Network retries are
// disabled: every remote call is attempted exactly once.
func NewStripe(cfg StripeConfig) *Stripe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultStripeTimeout
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
	}
	return &Stripe{api: client.New(cfg.SecretKey, stripe.NewBackendsWithConfig(backendCfg))}
}

// CreateIntent creates a PaymentIntent with confirmation_method=manual and confirm=false.
func (s *Stripe) CreateIntent(ctx context.Context, p CreateParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(p.Amount),
		Currency:           stripe.String(p.Currency),
		ConfirmationMethod: stripe.String(string(stripe.PaymentIntentConfirmationMethodManual)),
		Confirm:            stripe.Bool(false),
	}
	if p.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethodID)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError("create payment intent", err)
	}
	return intentFromStripe(pi), nil
}

// ConfirmIntent confirms the PaymentIntent id, optionally with a payment method.
func (s *Stripe) ConfirmIntent(ctx context.Context, id string, p ConfirmParams) (*Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	if p.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethodID)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Confirm(id, params)
	if err != nil {
		return nil, mapStripeError("confirm payment intent", err)
	}
	return intentFromStripe(pi), nil
}

// AttachPaymentMethod attaches paymentMethodID with the intent id passed as
// the payment_intent form value.
func (s *Stripe) AttachPaymentMethod(ctx context.Context, paymentMethodID, intentID string) error {
	params := &stripe.PaymentMethodAttachParams{}
	params.AddExtra("payment_intent", intentID)
	params.Context = ctx

	if _, err := s.api.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && isAlreadyAttached(stripeErr) {
			return fmt.Errorf("%w: %s", ErrAlreadyAttached, stripeErr.Msg)
		}
		return mapStripeError("attach payment method", err)
	}
	return nil
}

func isAlreadyAttached(err *stripe.Error) bool {
	if string(err.Code) == codeAlreadyExists {
		return true
	}
	return strings.Contains(err.Msg, "already been attached")
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	out := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}
	if pi.NextAction != nil {
		out.NextAction = &NextAction{Type: string(pi.NextAction.Type)}
	}
	return out
}

// mapStripeError keeps stripe-go types out of the handshake layer.
func mapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &Error{
			Op:         op,
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
			HTTPStatus: stripeErr.HTTPStatusCode,
			Err:        err,
		}
	}
	return &Error{Op: op, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}
