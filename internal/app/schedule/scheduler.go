package schedule

import (
	"context"
	"time"
)

const TaskExpireBooking = "booking:expire"

// Task is a unit of delayed work. ID deduplicates scheduling of the same task.
type Task struct {
	Name    string
	ID      string
	Payload []byte
	RunAt   time.Time
}

type Scheduler interface {
	Schedule(ctx context.Context, task Task) error
}

// TaskHandler runs a due task.
type TaskHandler func(ctx context.Context, payload []byte) error
