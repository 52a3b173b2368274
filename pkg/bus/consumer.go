package bus

import (
	"context"
	"errors"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/chartlylabs/codesim/pkg/envelope"
	"github.com/chartlylabs/codesim/pkg/telemetry"
)

// Handler processes one decoded envelope. Workers are expected to swallow
// their own fatals into the dead-letter path (internal/dlq) rather than
// return them here: the bus offset is committed after Handle returns
// regardless of outcome, by design — codesim prefers a visible failure over
// a poison-pill redelivery loop.
type Handler interface {
	Handle(ctx context.Context, env envelope.Envelope) error
}

// Consumer polls a franz-go consumer-group client, decodes each record as an
// Envelope, and dispatches it to Handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *telemetry.Logger
}

func NewConsumer(client *kgo.Client, handler Handler, logger *telemetry.Logger) *Consumer {
	if logger == nil {
		logger = telemetry.NopLogger
	}
	return &Consumer{client: client, handler: handler, logger: logger}
}

// Run polls until ctx is canceled. Each record is processed and its offset
// committed before the next poll, which is sufficient for our idempotent,
// at-least-once consumers.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error(ctx, "bus_fetch_error", map[string]any{
				"topic":     topic,
				"partition": partition,
				"error":     err.Error(),
			})
		})

		fetches.EachRecord(func(record *kgo.Record) {
			env, err := envelope.Unmarshal(record.Value)
			if err != nil {
				c.logger.Error(ctx, "bus_decode_error", map[string]any{
					"topic": record.Topic,
					"error": err.Error(),
				})
				return
			}
			ctx := telemetry.ContextWithScanID(ctx, env.ScanID)
			ctx = telemetry.ContextWithCorrelationID(ctx, env.CorrelationID)
			if err := c.handler.Handle(ctx, env); err != nil {
				c.logger.Error(ctx, "handler_returned_error", map[string]any{
					"event_type": string(env.EventType),
					"scan_id":    env.ScanID,
					"error":      err.Error(),
				})
			}
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error(ctx, "bus_commit_error", map[string]any{"error": err.Error()})
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
