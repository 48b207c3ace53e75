package bdd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/cucumber/godog"

	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/api"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/handshake"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/provider"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/registry"
)

// scriptedProvider returns whatever the scenario told it to and counts calls.
type scriptedProvider struct {
	mu           sync.Mutex
	created      *provider.Intent
	confirmed    *provider.Intent
	confirmErr   error
	createCalls  int
	confirmCalls int
	attachCalls  int
	confirmedIDs []string
}

func (p *scriptedProvider) CreateIntent(context.Context, provider.CreateParams) (*provider.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	if p.created == nil {
		return nil, &provider.Error{Op: "create payment intent", Message: "no intent scripted", HTTPStatus: http.StatusInternalServerError}
	}
	out := *p.created
	return &out, nil
}

func (p *scriptedProvider) ConfirmIntent(_ context.Context, id string, _ provider.ConfirmParams) (*provider.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmCalls++
	p.confirmedIDs = append(p.confirmedIDs, id)
	if p.confirmErr != nil {
		return nil, p.confirmErr
	}
	if p.confirmed == nil {
		return nil, &provider.Error{Op: "confirm payment intent", Message: "no confirmation scripted", HTTPStatus: http.StatusInternalServerError}
	}
	out := *p.confirmed
	out.ID = id
	return &out, nil
}

func (p *scriptedProvider) AttachPaymentMethod(context.Context, string, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attachCalls++
	return nil
}

type GatewayWorld struct {
	t *testing.T

	provider *scriptedProvider
	registry *registry.Registry
	server   *httptest.Server

	httpStatus int
	httpJSON   map[string]any
}

func NewGatewayWorld(t *testing.T) *GatewayWorld {
	return &GatewayWorld{t: t}
}

func (w *GatewayWorld) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.resetScenarioState()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if w.server != nil {
			w.server.Close()
		}
		return ctx, nil
	})

	sc.Step(`^the provider creates intent "([^"]+)" with secret "([^"]+)" and status "([^"]+)"$`, w.scriptCreate)
	sc.Step(`^the provider confirms with status "([^"]+)"$`, w.scriptConfirm)
	sc.Step(`^the provider confirms with status "([^"]+)" and next action "([^"]+)"$`, w.scriptConfirmWithAction)
	sc.Step(`^the provider rejects confirmation with "([^"]+)"$`, w.scriptConfirmError)
	sc.Step(`^I POST to "([^"]+)" with body:$`, w.postJSON)
	sc.Step(`^the response status is (\d+)$`, w.assertStatus)
	sc.Step(`^the response field "([^"]+)" is "([^"]*)"$`, w.assertStringField)
	sc.Step(`^the response field "([^"]+)" is true$`, w.assertTrueField)
	sc.Step(`^the response has no field "([^"]+)"$`, w.assertNoField)
	sc.Step(`^the registry maps "([^"]+)" to status "([^"]+)" and secret "([^"]+)"$`, w.assertRegistry)
	sc.Step(`^the registry is empty$`, w.assertRegistryEmpty)
	sc.Step(`^the provider received (\d+) confirm calls? for "([^"]+)"$`, w.assertConfirmCalls)
	sc.Step(`^the provider received no calls$`, w.assertNoProviderCalls)
}

func (w *GatewayWorld) resetScenarioState() {
	w.provider = &scriptedProvider{}
	w.registry = registry.New(registry.Options{})
	logger := log.New(io.Discard, "", 0)
	svc := handshake.NewService(w.provider, w.registry, logger)
	w.server = httptest.NewServer(api.NewHandler(svc, w.registry, logger))
	w.httpStatus = 0
	w.httpJSON = nil
}

func (w *GatewayWorld) scriptCreate(id, secret, status string) error {
	w.provider.created = &provider.Intent{ID: id, ClientSecret: secret, Status: status}
	return nil
}

func (w *GatewayWorld) scriptConfirm(status string) error {
	w.provider.confirmed = &provider.Intent{Status: status}
	return nil
}

func (w *GatewayWorld) scriptConfirmWithAction(status, action string) error {
	w.provider.confirmed = &provider.Intent{Status: status, NextAction: &provider.NextAction{Type: action}}
	return nil
}

func (w *GatewayWorld) scriptConfirmError(message string) error {
	w.provider.confirmErr = &provider.Error{Op: "confirm payment intent", Message: message, HTTPStatus: http.StatusBadRequest}
	return nil
}

func (w *GatewayWorld) postJSON(path string, body *godog.DocString) error {
	resp, err := http.Post(w.server.URL+path, "application/json", bytes.NewBufferString(body.Content))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	w.httpStatus = resp.StatusCode
	w.httpJSON = nil
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &w.httpJSON); err != nil {
			return fmt.Errorf("decode response %q: %w", raw, err)
		}
	}
	return nil
}

func (w *GatewayWorld) assertStatus(codeStr string) error {
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return err
	}
	if w.httpStatus != code {
		return fmt.Errorf("expected status %d, got %d (%v)", code, w.httpStatus, w.httpJSON)
	}
	return nil
}

func (w *GatewayWorld) assertStringField(field, want string) error {
	got, ok := w.httpJSON[field]
	if !ok {
		return fmt.Errorf("response has no field %q: %v", field, w.httpJSON)
	}
	if got != want {
		return fmt.Errorf("expected %s=%q, got %v", field, want, got)
	}
	return nil
}

func (w *GatewayWorld) assertTrueField(field string) error {
	if got, _ := w.httpJSON[field].(bool); !got {
		return fmt.Errorf("expected %s=true, got %v", field, w.httpJSON[field])
	}
	return nil
}

func (w *GatewayWorld) assertNoField(field string) error {
	if v, ok := w.httpJSON[field]; ok {
		return fmt.Errorf("expected no %s field, got %v", field, v)
	}
	return nil
}

func (w *GatewayWorld) assertRegistry(id, status, secret string) error {
	rec, ok := w.registry.Get(id)
	if !ok {
		return fmt.Errorf("registry has no entry for %s", id)
	}
	if rec.Status != status || rec.ClientSecret != secret {
		return fmt.Errorf("registry entry for %s is %+v", id, rec)
	}
	return nil
}

func (w *GatewayWorld) assertRegistryEmpty() error {
	if n := w.registry.Len(); n != 0 {
		return fmt.Errorf("expected empty registry, got %d entries", n)
	}
	return nil
}

func (w *GatewayWorld) assertConfirmCalls(countStr, id string) error {
	want, err := strconv.Atoi(countStr)
	if err != nil {
		return err
	}
	w.provider.mu.Lock()
	defer w.provider.mu.Unlock()
	if w.provider.confirmCalls != want {
		return fmt.Errorf("expected %d confirm calls, got %d", want, w.provider.confirmCalls)
	}
	for _, got := range w.provider.confirmedIDs {
		if got != id {
			return fmt.Errorf("confirm called for %s, expected %s", got, id)
		}
	}
	return nil
}

func (w *GatewayWorld) assertNoProviderCalls() error {
	w.provider.mu.Lock()
	defer w.provider.mu.Unlock()
	if total := w.provider.createCalls + w.provider.confirmCalls + w.provider.attachCalls; total != 0 {
		return fmt.Errorf("expected no provider calls, got %d", total)
	}
	return nil
}
