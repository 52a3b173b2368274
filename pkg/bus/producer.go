package bus

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/chartlylabs/codesim/pkg/envelope"
)

// Producer publishes envelopes to the bus, partitioned by idempotency key.
type Producer struct {
	client *kgo.Client
}

func NewProducer(client *kgo.Client) *Producer {
	return &Producer{client: client}
}

// Publish emits env to topic synchronously, keyed by its idempotency key so
// retries of the same logical event land on the same partition.
func (p *Producer) Publish(ctx context.Context, topic string, env envelope.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	b, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("bus: marshal envelope: %w", err)
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   env.PartitionKey(),
		Value: b,
	}
	res := p.client.ProduceSync(ctx, record)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}
