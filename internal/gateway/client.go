package gateway

import (
	"context"

	"github.com/hibiken/asynq"
)

// Client submits command invocations to the queue. The chat connector uses
// it to turn inbound messages into worker tasks.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueCommand enqueues one command invocation.
func (c *Client) EnqueueCommand(ctx context.Context, payload CommandPayload) (*asynq.TaskInfo, error) {
	task, err := NewCommandTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueCommands))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
