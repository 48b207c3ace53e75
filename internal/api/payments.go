package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/handshake"
)

const maxBodyBytes = 1 << 20

// Handshake is the part of the handshake controller the HTTP layer drives.
type Handshake interface {
	Create(ctx context.Context, req handshake.CreateRequest) (*handshake.CreateResult, error)
	Confirm(ctx context.Context, req handshake.ConfirmRequest) (*handshake.ConfirmResult, error)
}

// IntentCounter reports how many intents the process currently tracks.
type IntentCounter interface {
	Len() int
}

type processRequest struct {
	Amount          *float64 `json:"amount"`
	Currency        string   `json:"currency"`
	PaymentMethodID string   `json:"payment_method_id"`
}

type processResponse struct {
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type confirmRequest struct {
	ClientSecret    string `json:"payment_intent_client_secret"`
	PaymentMethodID string `json:"payment_method_id"`
}

type confirmResponse struct {
	Status         string `json:"status"`
	RequiresAction bool   `json:"requires_action,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`
}

// RegisterPaymentRoutes wires the payment endpoints and the health probe into mux.
func RegisterPaymentRoutes(mux *http.ServeMux, svc Handshake, intents IntentCounter, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}

	mux.Handle("POST /payments/process", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleProcess(svc, logger, w, r)
	}), "payments-process"))

	mux.Handle("POST /payments/confirm", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleConfirm(svc, logger, w, r)
	}), "payments-confirm"))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		n := 0
		if intents != nil {
			n = intents.Len()
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "intents": n})
	})
}

// NewHandler builds the gateway's root handler: payment routes behind CORS.
func NewHandler(svc Handshake, intents IntentCounter, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterPaymentRoutes(mux, svc, intents, logger)
	return WithCORS(mux)
}

func handleProcess(svc Handshake, logger *log.Logger, w http.ResponseWriter, r *http.Request) {
	var body processRequest
	if !decodeBody(w, r, &body) {
		return
	}

	req := handshake.CreateRequest{Currency: body.Currency, PaymentMethodID: body.PaymentMethodID}
	if body.Amount != nil {
		req.Amount = *body.Amount
	}

	res, err := svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{ClientSecret: res.ClientSecret, Status: res.Status})
}

func handleConfirm(svc Handshake, logger *log.Logger, w http.ResponseWriter, r *http.Request) {
	var body confirmRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := svc.Confirm(r.Context(), handshake.ConfirmRequest{
		ClientSecret:    body.ClientSecret,
		PaymentMethodID: body.PaymentMethodID,
	})
	if err != nil {
		writeError(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResponse{
		Status:         res.Status,
		RequiresAction: res.RequiresAction,
		ClientSecret:   res.ClientSecret,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

// writeError maps controller errors to status codes. Provider failures are
// already logged by the controller.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	var verr *handshake.ValidationError
	var perr *handshake.ProviderError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message})
	case errors.Is(err, handshake.ErrIntentNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": perr.Error()})
	default:
		logger.Printf("[api] unexpected error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
