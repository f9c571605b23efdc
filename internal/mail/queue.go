package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueSender publishes messages to the outbound mail stream. Delivery is
// done by the worker.
type QueueSender struct {
	client  *redis.Client
	stream  string
	timeout time.Duration
}

func NewQueueSender(client *redis.Client, stream string, timeout time.Duration) *QueueSender {
	return &QueueSender{client: client, stream: stream, timeout: timeout}
}

func (q *QueueSender) Enqueue(ctx context.Context, msg Message) error {
	values, err := msg.Values()
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", q.stream, err)
	}
	return nil
}
