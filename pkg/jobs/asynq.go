package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/pkg/config"
)

// RedisOpt maps the shared Redis settings onto asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB}
}

// AsynqDispatcher publishes jobs to Redis through asynq.
type AsynqDispatcher struct {
	client     *asynq.Client
	queue      string
	maxRetries int
	timeout    time.Duration
}

// NewAsynqDispatcher builds a dispatcher for the given Redis connection.
func NewAsynqDispatcher(redis asynq.RedisConnOpt, queue string, maxRetries int) *AsynqDispatcher {
	if queue == "" {
		queue = "default"
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &AsynqDispatcher{
		client:     asynq.NewClient(redis),
		queue:      queue,
		maxRetries: maxRetries,
		timeout:    time.Minute,
	}
}

// Enqueue publishes job as an asynq task.
func (d *AsynqDispatcher) Enqueue(job Job) error {
	opts := []asynq.Option{
		asynq.Queue(d.queue),
		asynq.MaxRetry(d.maxRetries),
		asynq.Timeout(d.timeout),
	}
	if job.ID != "" {
		opts = append(opts, asynq.TaskID(job.ID))
	}
	if _, err := d.client.Enqueue(asynq.NewTask(job.Type, job.Payload), opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Type, err)
	}
	return nil
}

// Close releases the Redis connection.
func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// AsynqWorker consumes tasks published by AsynqDispatcher.
type AsynqWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewAsynqWorker builds a worker listening on queue with the given concurrency.
func NewAsynqWorker(redis asynq.RedisConnOpt, queue string, concurrency int, logger *zap.Logger) *AsynqWorker {
	if queue == "" {
		queue = "default"
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn("asynq task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
	return &AsynqWorker{server: server, mux: asynq.NewServeMux(), logger: logger}
}

// Handle routes tasks of jobType to handler.
func (w *AsynqWorker) Handle(jobType string, handler Handler) {
	w.mux.HandleFunc(jobType, func(ctx context.Context, task *asynq.Task) error {
		job := Job{Type: task.Type(), Payload: task.Payload()}
		if id, ok := asynq.GetTaskID(ctx); ok {
			job.ID = id
		}
		if retry, ok := asynq.GetRetryCount(ctx); ok {
			job.Attempt = retry
		}
		return handler(ctx, job)
	})
}

// Run blocks until a termination signal arrives.
func (w *AsynqWorker) Run() error {
	w.logger.Info("asynq worker started")
	return w.server.Run(w.mux)
}
