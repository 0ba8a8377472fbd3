// Package consumer reads IndexRebuilt events from Kafka and hot-reloads the
// curator's index snapshot.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/kafka"
)

// Reloader is the part of indexer.Holder the consumer drives.
type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

// ReloadConsumer wraps a Kafka consumer to drive snapshot reloads.
type ReloadConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a ReloadConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *ReloadConsumer {
	return &ReloadConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "reload-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (rc *ReloadConsumer) Start(ctx context.Context) error {
	rc.logger.Info("reload consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that reloads the snapshot for
// every IndexRebuilt event about dataDir. Events for other data directories
// are acknowledged and ignored; undecodable events are dropped.
func HandleMessage(reloader Reloader, dataDir string) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[kafka.IndexRebuilt](value)
		if err != nil {
			logger.Error("failed to decode rebuild event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.DataDir != dataDir {
			logger.Debug("ignoring rebuild event for another index",
				"data_dir", event.DataDir,
				"generation", event.Generation,
			)
			return nil
		}
		changed, err := reloader.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading generation %d: %w", event.Generation, err)
		}
		logger.Info("rebuild event processed",
			"generation", event.Generation,
			"swapped", changed,
		)
		return nil
	}
}
