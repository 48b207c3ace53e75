package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/api"
	appconfig "github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/config"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/events"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/handshake"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/provider"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/registry"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/secrets"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/telemetry"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) {
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Telemetry, logger)
			return err
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			if err := shutdown(ctx); err != nil {
				logger.Printf("Error shutting down tracer provider: %v", err)
			}
			return nil
		},
	})
}

func newRegistry(cfg appconfig.Config) *registry.Registry {
	return registry.New(registry.Options{
		Capacity: cfg.Registry.Capacity,
		TTL:      cfg.Registry.TTL,
	})
}

// newProvider picks Stripe when a secret key is configured, otherwise the
// in-process sandbox.
func newProvider(cfg appconfig.Config, logger *log.Logger) provider.Provider {
	if cfg.Provider.Name == appconfig.ProviderStripe {
		logger.Printf("Using Stripe payment provider (timeout %s)", cfg.Provider.Timeout)
		return provider.NewStripe(provider.StripeConfig{
			SecretKey: cfg.Provider.StripeSecretKey,
			APIURL:    cfg.Provider.StripeAPIURL,
			Timeout:   cfg.Provider.Timeout,
		})
	}
	logger.Printf("STRIPE_SECRET_KEY not set, using sandbox payment provider")
	return provider.NewSandbox()
}

// newPublisher constructs the shared Kafka producer and binds its lifecycle to Fx.
func newPublisher(cfg appconfig.Config, lc fx.Lifecycle, logger *log.Logger) events.Publisher {
	if !cfg.Kafka.Enabled() {
		logger.Printf("KAFKA_BROKERS not set, intent events disabled")
		return events.Noop{}
	}
	prod := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PaymentsTopic, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newHandshake(p provider.Provider, reg *registry.Registry, pub events.Publisher, logger *log.Logger) *handshake.Service {
	return handshake.NewService(p, reg, logger, handshake.WithPublisher(pub))
}

func newWebServer(cfg appconfig.Config, svc *handshake.Service, reg *registry.Registry, logger *log.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewHandler(svc, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, httpServer *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Printf("Payments API listening on %s", cfg.HTTP.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("Payments API server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func appOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newRegistry,
			newProvider,
			newPublisher,
			newHandshake,
			newWebServer,
		),
		fx.Invoke(
			func(logger *log.Logger, cfg appconfig.Config) {
				logger.Printf("Starting %s...", cfg.ServiceName)
			},
			setupTelemetry,
			registerWebServer,
		),
	)
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := secrets.BootstrapFromOpenBao(ctx); err != nil {
		log.Printf("OpenBao bootstrap failed, continuing with process env: %v", err)
	}
	cancel()

	fx.New(appOptions()).Run()
}
