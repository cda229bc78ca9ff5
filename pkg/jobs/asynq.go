package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AsynqConfig points the durable backend at Redis.
type AsynqConfig struct {
	Addr        string
	Password    string
	DB          int
	Queue       string
	Concurrency int
	MaxRetries  int
	Logger      *zap.Logger
}

func (c AsynqConfig) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.Addr, Password: c.Password, DB: c.DB}
}

func (c AsynqConfig) queueName() string {
	if c.Queue == "" {
		return "default"
	}
	return c.Queue
}

// AsynqDispatcher enqueues jobs into Redis through an asynq client.
type AsynqDispatcher struct {
	client     *asynq.Client
	queue      string
	maxRetries int
}

var _ Dispatcher = (*AsynqDispatcher)(nil)

// NewAsynqDispatcher constructs a dispatcher for cfg.
func NewAsynqDispatcher(cfg AsynqConfig) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:     asynq.NewClient(cfg.redisOpt()),
		queue:      cfg.queueName(),
		maxRetries: cfg.MaxRetries,
	}
}

// Enqueue submits job. A non-empty job ID deduplicates submissions.
func (d *AsynqDispatcher) Enqueue(ctx context.Context, job Job) error {
	if job.Type == "" {
		return errors.New("asynq: job type is required")
	}
	opts := []asynq.Option{asynq.Queue(d.queue), asynq.MaxRetry(d.maxRetries)}
	if job.ID != "" {
		opts = append(opts, asynq.TaskID(job.ID))
	}
	_, err := d.client.EnqueueContext(ctx, asynq.NewTask(job.Type, job.Payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("asynq enqueue %s: %w", job.Type, err)
	}
	return nil
}

// Close releases the Redis connection.
func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// AsynqWorker consumes jobs from Redis and hands them to a Handler.
type AsynqWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewAsynqWorker builds a worker that routes the given job types to handler.
func NewAsynqWorker(cfg AsynqConfig, handler Handler, types ...string) *AsynqWorker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	srv := asynq.NewServer(cfg.redisOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{cfg.queueName(): 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.Warn("asynq job failed", zap.String("type", task.Type()), zap.Int("attempt", retried), zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	for _, t := range types {
		mux.HandleFunc(t, func(ctx context.Context, task *asynq.Task) error {
			id, _ := asynq.GetTaskID(ctx)
			attempt, _ := asynq.GetRetryCount(ctx)
			return handler(ctx, Job{ID: id, Type: task.Type(), Payload: task.Payload(), Attempt: attempt})
		})
	}
	return &AsynqWorker{server: srv, mux: mux}
}

// Start begins processing in the background.
func (w *AsynqWorker) Start() error {
	return w.server.Start(w.mux)
}

// Stop waits for in-flight jobs and shuts the worker down.
func (w *AsynqWorker) Stop() {
	w.server.Shutdown()
}
