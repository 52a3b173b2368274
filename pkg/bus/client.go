// Package bus wires the envelope contract (pkg/envelope) onto Kafka-shaped
// transport using franz-go, with exponential-backoff connect handling.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/chartlylabs/codesim/pkg/telemetry"
)

// Connect dials the bus with retry: initial backoff 500ms, cap 5s, giving up
// once deadline elapses. extraOpts lets callers add group/topic-specific
// options (consumer group, offset reset).
func Connect(ctx context.Context, seeds []string, clientID string, deadline time.Duration, logger *telemetry.Logger, extraOpts ...kgo.Opt) (*kgo.Client, error) {
	opts := append([]kgo.Opt{
		kgo.SeedBrokers(seeds...),
		kgo.ClientID(clientID),
	}, extraOpts...)

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = deadline

	var client *kgo.Client
	operation := func() error {
		c, err := kgo.NewClient(opts...)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return err
		}
		client = c
		return nil
	}

	notify := func(err error, wait time.Duration) {
		if logger != nil {
			logger.Warn(ctx, "bus_connect_retry", map[string]any{
				"error":   err.Error(),
				"wait_ms": wait.Milliseconds(),
			})
		}
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, fmt.Errorf("bus: connect to %v: %w", seeds, err)
	}
	return client, nil
}

// ConsumerOpts builds the group/topic/offset options for a consuming
// worker role: worker group id, topic names, offset reset policy.
func ConsumerOpts(groupID string, topics []string, offsetReset string) []kgo.Opt {
	opts := []kgo.Opt{
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	}
	if offsetReset == "latest" {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	} else {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}
	return opts
}
