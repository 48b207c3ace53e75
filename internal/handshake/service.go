// Package handshake runs the two-phase create/confirm flow against the
// payment provider and keeps the intent registry in step with it.
package handshake

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/events"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/provider"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/registry"
)

const tracerName = "github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/handshake"

// CreateRequest asks for a new intent. Amount is in minor units and is
// rounded to an integer before it is sent.
type CreateRequest struct {
	Amount          float64 `validate:"required,gt=0"`
	Currency        string  `validate:"required"`
	PaymentMethodID string
}

type CreateResult struct {
	ClientSecret string
	Status       string
}

// ConfirmRequest confirms the intent behind ClientSecret.
type ConfirmRequest struct {
	ClientSecret    string `validate:"required"`
	PaymentMethodID string
}

type ConfirmResult struct {
	Status         string
	RequiresAction bool
	// ClientSecret is only set when RequiresAction is true.
	ClientSecret string
	Attach       AttachOutcome
}

// Service is the payment handshake controller.
type Service struct {
	provider provider.Provider
	registry *registry.Registry
	events   events.Publisher
	logger   *log.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

type Option func(*Service)

// WithPublisher sets where intent lifecycle events go. Defaults to events.Noop.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

func NewService(p provider.Provider, reg *registry.Registry, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		provider: p,
		registry: reg,
		events:   events.Noop{},
		logger:   logger,
		validate: validator.New(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new intent in manual confirmation mode and records it.
// On failure nothing is recorded.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	req.Currency = strings.TrimSpace(req.Currency)
	req.PaymentMethodID = strings.TrimSpace(req.PaymentMethodID)
	if err := s.validate.Struct(req); err != nil {
		return nil, createValidationError(err)
	}
	amount, err := minorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "handshake.Create")
	defer span.End()

	params := provider.CreateParams{
		Amount:          amount,
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
	}
	span.SetAttributes(
		attribute.Int64("payment.amount", params.Amount),
		attribute.String("payment.currency", params.Currency),
		attribute.Bool("payment.method_bound", params.PaymentMethodID != ""),
	)

	intent, err := s.provider.CreateIntent(ctx, params)
	if err != nil {
		return nil, s.fail(span, "create payment intent", err)
	}

	s.registry.Put(intent.ID, intent.Status, intent.ClientSecret)
	span.SetAttributes(
		attribute.String("payment.intent_id", intent.ID),
		attribute.String("payment.status", intent.Status),
	)
	s.logger.Printf("[handshake] created intent %s status=%s", intent.ID, intent.Status)

	s.publish(ctx, events.TypeIntentCreated, events.IntentData{
		IntentID: intent.ID,
		Status:   intent.Status,
		State:    string(provider.MapStatus(intent.Status)),
	})

	return &CreateResult{ClientSecret: intent.ClientSecret, Status: intent.Status}, nil
}

// Confirm resolves the client secret, attaches the payment method on a
// best-effort basis and confirms the intent. The cached status is never used
// to short-circuit: every call reaches the provider.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	req.PaymentMethodID = strings.TrimSpace(req.PaymentMethodID)
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Message: "payment_intent_client_secret required"}
	}

	rec, ok := s.registry.FindBySecret(req.ClientSecret)
	if !ok {
		return nil, ErrIntentNotFound
	}

	ctx, span := s.tracer.Start(ctx, "handshake.Confirm", trace.WithAttributes(
		attribute.String("payment.intent_id", rec.ID),
		attribute.String("payment.previous_status", rec.Status),
	))
	defer span.End()

	attach := s.attach(ctx, rec.ID, req.PaymentMethodID)

	intent, err := s.provider.ConfirmIntent(ctx, rec.ID, provider.ConfirmParams{PaymentMethodID: req.PaymentMethodID})
	if err != nil {
		return nil, s.fail(span, "confirm payment intent", err)
	}

	// Secrets do not rotate on confirm; keep the one the caller holds.
	s.registry.Put(rec.ID, intent.Status, rec.ClientSecret)

	res := &ConfirmResult{Status: intent.Status, Attach: attach}
	if intent.RequiresAction() {
		res.RequiresAction = true
		res.ClientSecret = rec.ClientSecret
	}

	span.SetAttributes(
		attribute.String("payment.status", intent.Status),
		attribute.Bool("payment.requires_action", res.RequiresAction),
	)
	s.logger.Printf("[handshake] confirmed intent %s status=%s requires_action=%t attach=%s",
		rec.ID, intent.Status, res.RequiresAction, attach)

	s.publish(ctx, events.TypeIntentConfirmed, events.IntentData{
		IntentID:       rec.ID,
		Status:         intent.Status,
		State:          string(provider.MapStatus(intent.Status)),
		RequiresAction: res.RequiresAction,
		Attach:         string(attach),
	})

	return res, nil
}

func (s *Service) attach(ctx context.Context, intentID, paymentMethodID string) AttachOutcome {
	if paymentMethodID == "" {
		return AttachSkipped
	}

	ctx, span := s.tracer.Start(ctx, "handshake.Attach")
	defer span.End()

	outcome := AttachAttached
	if err := s.provider.AttachPaymentMethod(ctx, paymentMethodID, intentID); err != nil {
		if errors.Is(err, provider.ErrAlreadyAttached) {
			outcome = AttachAlreadyAttached
		} else {
			outcome = AttachFailed
			span.RecordError(err)
			s.logger.Printf("[handshake] attach %s to intent %s failed, proceeding to confirm: %v", paymentMethodID, intentID, err)
		}
	}
	span.SetAttributes(attribute.String("payment.attach", string(outcome)))
	return outcome
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Printf("[handshake] %s error: %v", op, err)
	return &ProviderError{Op: op, Err: err}
}

func (s *Service) publish(ctx context.Context, eventType string, data events.IntentData) {
	if err := s.events.Publish(ctx, data.IntentID, events.NewIntentEvent(eventType, data)); err != nil {
		s.logger.Printf("[events] publish %s for %s failed: %v", eventType, data.IntentID, err)
	}
}

// minorUnits rounds amount to whole minor units. Values that round to zero or
// do not fit in an int64 are rejected before any provider call.
func minorUnits(amount float64) (int64, error) {
	rounded := math.Round(amount)
	switch {
	case math.IsNaN(rounded) || rounded < 1:
		return 0, &ValidationError{Message: "amount must be greater than zero"}
	case rounded >= 1<<63:
		return 0, &ValidationError{Message: "amount is too large"}
	}
	return int64(rounded), nil
}

func createValidationError(err error) error {
	required := &ValidationError{Message: "amount and currency are required"}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return required
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return required
		}
	}
	return &ValidationError{Message: "amount must be greater than zero"}
}
