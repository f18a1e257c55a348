// Package ingest consumes transaction batches published by the store systems
// and feeds them into the watchlist engine.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/orovista/backoffice/internal/config"
	"github.com/orovista/backoffice/internal/watchlist"
	"github.com/orovista/backoffice/internal/watchlist/records"
	"github.com/orovista/backoffice/pkg/models"
)

// BatchMessage is the wire format of one ingested batch
type BatchMessage struct {
	BatchID uuid.UUID                  `json:"batch_id"`
	Records []models.TransactionRecord `json:"records"`
}

// Consumer reads batch messages from Kafka, persists the records and runs the
// watchlist scan. A malformed message is logged and committed so it cannot
// wedge the partition.
type Consumer struct {
	reader *kafka.Reader
	store  *records.Store
	engine *watchlist.Engine
	logger *zap.Logger
}

// NewConsumer creates a Kafka consumer for the configured topic
func NewConsumer(cfg config.KafkaConfig, store *records.Store, engine *watchlist.Engine, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
	return &Consumer{
		reader: reader,
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// Run consumes until the context is canceled
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("ingestion consumer started",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group_id", c.reader.Config().GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var batch BatchMessage
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		c.logger.Warn("malformed batch message skipped",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return
	}
	if batch.BatchID == uuid.Nil || len(batch.Records) == 0 {
		c.logger.Warn("empty batch message skipped", zap.Int64("offset", msg.Offset))
		return
	}
	for i := range batch.Records {
		batch.Records[i].BatchID = batch.BatchID
	}

	if err := c.store.SaveBatch(ctx, batch.Records); err != nil {
		c.logger.Error("batch could not be stored",
			zap.String("batch_id", batch.BatchID.String()),
			zap.Error(err))
		return
	}

	report := c.engine.OnBatchIngested(ctx, batch.BatchID, batch.Records)
	if len(report.Errors) > 0 {
		c.logger.Warn("batch scanned with record errors",
			zap.String("batch_id", batch.BatchID.String()),
			zap.Int("errors", len(report.Errors)))
	}
}

// Close releases the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
