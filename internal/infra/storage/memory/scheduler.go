package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"staybook/internal/app/schedule"
)

// Scheduler runs delayed tasks on in-process timers. Pending tasks are lost on restart.
type Scheduler struct {
	Logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]schedule.TaskHandler
	timers   map[string]*time.Timer
	ctx      context.Context
}

func NewScheduler(ctx context.Context, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Logger:   logger,
		handlers: make(map[string]schedule.TaskHandler),
		timers:   make(map[string]*time.Timer),
		ctx:      ctx,
	}
}

func (s *Scheduler) Handle(name string, h schedule.TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

func (s *Scheduler) Schedule(ctx context.Context, task schedule.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[task.Name]
	if !ok {
		return fmt.Errorf("memory: no handler for task %q", task.Name)
	}
	id := task.ID
	if id == "" {
		id = fmt.Sprintf("%s-%d", task.Name, time.Now().UnixNano())
	}
	if _, dup := s.timers[id]; dup {
		return nil
	}
	payload := append([]byte(nil), task.Payload...)
	s.timers[id] = time.AfterFunc(time.Until(task.RunAt), func() {
		s.run(id, task.Name, h, payload)
	})
	return nil
}

func (s *Scheduler) run(id, name string, h schedule.TaskHandler, payload []byte) {
	s.mu.Lock()
	delete(s.timers, id)
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err := h(ctx, payload); err != nil && s.Logger != nil {
		s.Logger.Error("scheduled task failed", "task", name, "task_id", id, "error", err)
	}
}

// Stop cancels timers that have not fired.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

var _ schedule.Scheduler = (*Scheduler)(nil)
