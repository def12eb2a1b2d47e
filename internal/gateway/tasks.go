// Package gateway runs the persistent-process channel: a long-lived worker
// that consumes command invocations queued by the chat connector, one task
// per inbound message. The worker shares nothing in memory with the webhook
// channel; the store is the only synchronization point.
package gateway

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueCommands is the queue carrying command invocations.
	QueueCommands = "commands"
	// TaskCommandInvoke is the task type for one command invocation.
	TaskCommandInvoke = "command:invoke"
)

// CommandPayload is the queued form of one command invocation. The connector
// binds arguments before enqueueing; no chat-text parsing happens here.
type CommandPayload struct {
	InvocationID string                     `json:"invocation_id"`
	Command      string                     `json:"command" validate:"required"`
	ActorID      int64                      `json:"actor_id"`
	Args         map[string]json.RawMessage `json:"args,omitempty"`
}

// NewCommandTask constructs an Asynq task for one invocation.
func NewCommandTask(payload CommandPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommandInvoke, data), nil
}
