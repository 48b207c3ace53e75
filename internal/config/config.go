package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted in PAYMENT_PROVIDER.
const (
	ProviderStripe  = "stripe"
	ProviderSandbox = "sandbox"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Provider    ProviderConfig
	Registry    RegistryConfig
	Kafka       KafkaConfig
	Telemetry   TelemetryConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type ProviderConfig struct {
	Name            string
	StripeSecretKey string
	StripeAPIURL    string
	Timeout         time.Duration
}

// RegistryConfig bounds the intent registry. Zero means unbounded / no expiry.
type RegistryConfig struct {
	Capacity int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	PaymentsTopic string
	AuditGroup    string
}

// Enabled reports whether intent events should be published.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type TelemetryConfig struct {
	TracesEndpoint string
	Disabled       bool
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "payments-gateway"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":"+getEnv("PORT", "4242")),
		},
		Provider: ProviderConfig{
			StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
			StripeAPIURL:    getEnv("STRIPE_API_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			PaymentsTopic: getEnv("KAFKA_PAYMENTS_TOPIC", "payments.v1"),
			AuditGroup:    getEnv("KAFKA_AUDIT_GROUP_ID", "intent-audit"),
		},
		Telemetry: TelemetryConfig{
			TracesEndpoint: getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://localhost:4318/v1/traces"),
		},
	}

	var err error
	if cfg.HTTP.ShutdownTimeout, err = durationEnv("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Provider.Timeout, err = durationEnv("PROVIDER_TIMEOUT", 80*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Registry.TTL, err = durationEnv("INTENT_REGISTRY_TTL", 0); err != nil {
		return Config{}, err
	}
	if cfg.Registry.Capacity, err = intEnv("INTENT_REGISTRY_CAPACITY", 0); err != nil {
		return Config{}, err
	}
	if cfg.Registry.Capacity < 0 {
		return Config{}, fmt.Errorf("INTENT_REGISTRY_CAPACITY must not be negative, got %d", cfg.Registry.Capacity)
	}
	if cfg.Telemetry.Disabled, err = boolEnv("OTEL_SDK_DISABLED", false); err != nil {
		return Config{}, err
	}

	defaultProvider := ProviderSandbox
	if cfg.Provider.StripeSecretKey != "" {
		defaultProvider = ProviderStripe
	}
	cfg.Provider.Name = strings.ToLower(getEnv("PAYMENT_PROVIDER", defaultProvider))
	switch cfg.Provider.Name {
	case ProviderStripe:
		if cfg.Provider.StripeSecretKey == "" {
			return Config{}, fmt.Errorf("PAYMENT_PROVIDER=stripe requires STRIPE_SECRET_KEY")
		}
	case ProviderSandbox:
	default:
		return Config{}, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.Provider.Name)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
