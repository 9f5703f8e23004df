package asynq

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"staybook/internal/app/schedule"
)

// RedisOpt builds the connection options shared by client and server.
func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}

// Scheduler enqueues delayed tasks in Redis.
type Scheduler struct {
	client *asynq.Client
}

func NewScheduler(opt asynq.RedisClientOpt) *Scheduler {
	return &Scheduler{client: asynq.NewClient(opt)}
}

// Schedule enqueues the task for task.RunAt. A task id that is already queued is not an error.
func (s *Scheduler) Schedule(ctx context.Context, task schedule.Task) error {
	opts := []asynq.Option{asynq.ProcessAt(task.RunAt), asynq.MaxRetry(5)}
	if task.ID != "" {
		opts = append(opts, asynq.TaskID(task.ID))
	}
	_, err := s.client.EnqueueContext(ctx, asynq.NewTask(task.Name, task.Payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func (s *Scheduler) Close() error {
	return s.client.Close()
}

// Worker processes due tasks.
type Worker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

func NewWorker(opt asynq.RedisClientOpt, concurrency int, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 10},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("scheduled task failed", "task", task.Type(), "error", err)
		}),
	})
	return &Worker{srv: srv, mux: asynq.NewServeMux(), logger: logger}
}

func (w *Worker) Handle(name string, h schedule.TaskHandler) {
	w.mux.HandleFunc(name, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, t.Payload())
	})
}

// Run serves until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.srv.Start(w.mux); err != nil {
		return err
	}
	w.logger.Info("task worker started")
	<-ctx.Done()
	w.srv.Shutdown()
	return ctx.Err()
}

var _ schedule.Scheduler = (*Scheduler)(nil)
