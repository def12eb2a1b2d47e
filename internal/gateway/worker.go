package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ops-wrangler/wrangler/internal/commands"
	"github.com/ops-wrangler/wrangler/internal/observability"
)

// Responder delivers a command response back to the chat surface. The
// connector owns presentation; the worker only hands over the channel-neutral
// response.
type Responder interface {
	Respond(ctx context.Context, invocationID string, response commands.Response) error
}

// LogResponder is the default Responder: it logs the response. Used when no
// connector is wired, which keeps the worker runnable on its own.
type LogResponder struct {
	Logger *slog.Logger
}

// Respond logs the outgoing response.
func (r LogResponder) Respond(ctx context.Context, invocationID string, response commands.Response) error {
	r.Logger.Info("command response",
		slog.String("invocation", invocationID),
		slog.String("content", response.Content),
		slog.Int("embeds", len(response.Embeds)),
		slog.Bool("ephemeral", response.Ephemeral))
	return nil
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Registry    *commands.Registry
	Responder   Responder
	Metrics     *observability.Metrics
	Concurrency int
}

// Worker wraps the Asynq server consuming command invocations.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor *Processor
	logger    *slog.Logger
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Registry == nil {
		return nil, errors.New("gateway: command registry required")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	responder := cfg.Responder
	if responder == nil {
		responder = LogResponder{Logger: cfg.Logger}
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCommands: 1,
		},
	})
	processor := NewProcessor(cfg.Logger, cfg.Registry, responder, cfg.Metrics)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskCommandInvoke, processor.Handle)

	return &Worker{server: srv, mux: mux, processor: processor, logger: cfg.Logger}, nil
}

// Run starts processing invocations until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("gateway: worker not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Processor executes one queued invocation per task. A failing task is
// contained by the queue runtime; it never takes down the worker or its
// sibling tasks.
type Processor struct {
	logger    *slog.Logger
	registry  *commands.Registry
	responder Responder
	metrics   *observability.Metrics
	validate  *validator.Validate
}

// NewProcessor constructs a Processor.
func NewProcessor(logger *slog.Logger, registry *commands.Registry, responder Responder, metrics *observability.Metrics) *Processor {
	return &Processor{
		logger:    logger,
		registry:  registry,
		responder: responder,
		metrics:   metrics,
		validate:  validator.New(),
	}
}

// Handle processes one TaskCommandInvoke task.
func (p *Processor) Handle(ctx context.Context, task *asynq.Task) error {
	var payload CommandPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		p.logger.Error("decode command payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if err := p.validate.Struct(payload); err != nil {
		p.logger.Error("invalid command payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if payload.InvocationID == "" {
		payload.InvocationID = uuid.NewString()
	}

	inv := commands.Invocation{
		ID:      payload.InvocationID,
		Name:    payload.Command,
		ActorID: payload.ActorID,
		Args:    payload.Args,
	}
	response, err := p.registry.Dispatch(ctx, inv)
	if err != nil {
		if errors.Is(err, commands.ErrUnknownCommand) {
			p.metrics.ObserveCommand(payload.Command, "unimplemented")
			response = commands.Response{
				Content:   "Command " + payload.Command + " is not yet implemented",
				Ephemeral: true,
			}
			return p.responder.Respond(ctx, inv.ID, response)
		}
		// Storage failures surface to the queue runtime, which retries this
		// single task without affecting any other in-flight invocation.
		p.metrics.ObserveCommand(payload.Command, "error")
		p.logger.Error("dispatch queued command",
			slog.String("invocation", inv.ID),
			slog.String("command", payload.Command),
			slog.Any("error", err))
		return err
	}
	p.metrics.ObserveCommand(payload.Command, "ok")
	return p.responder.Respond(ctx, inv.ID, response)
}
