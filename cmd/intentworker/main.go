package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	appconfig "github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/config"
	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/events"
)

// messageReader is the subset of *kafka.Reader the audit loop needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func main() {
	_ = godotenv.Load()

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("[intent-worker] config: %v", err)
	}
	logger := log.New(os.Stdout, "[intent-worker] ", log.LstdFlags|log.Lmicroseconds)

	brokers := cfg.Kafka.Brokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.Kafka.PaymentsTopic,
		GroupID:  cfg.Kafka.AuditGroup,
		MinBytes: 1e3, MaxBytes: 10e6,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("consuming %s (group=%s)", cfg.Kafka.PaymentsTopic, cfg.Kafka.AuditGroup)
	if err := consume(ctx, reader, logger); err != nil {
		logger.Printf("stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Printf("stopped")
}

// consume logs one audit line per intent event until ctx is cancelled.
// Malformed messages are logged and skipped.
func consume(ctx context.Context, reader messageReader, logger *log.Logger) error {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		line, ok, err := describeEvent(msg.Value)
		if err != nil {
			logger.Printf("bad event at %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			continue
		}
		if !ok {
			continue
		}
		logger.Print(line)
	}
}

// describeEvent renders an intent event as a single audit line. ok is false
// for envelopes that are not intent events.
func describeEvent(value []byte) (string, bool, error) {
	evt, data, ok, err := events.DecodeIntentEvent(value)
	if err != nil || !ok {
		return "", ok, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s intent=%s status=%s state=%s", evt.EventType, data.IntentID, data.Status, data.State)
	if evt.EventType == events.TypeIntentConfirmed {
		fmt.Fprintf(&b, " requires_action=%t", data.RequiresAction)
		if data.Attach != "" {
			fmt.Fprintf(&b, " attach=%s", data.Attach)
		}
	}
	if !evt.OccurredAt.IsZero() {
		fmt.Fprintf(&b, " at=%s", evt.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	return b.String(), true, nil
}
