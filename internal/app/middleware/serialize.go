package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/policies"
)

// SerializedCommand is implemented by commands that must not run concurrently
// with other commands sharing the same lock key.
type SerializedCommand interface {
	commands.Command
	LockKey() string
}

// Serialize holds the command's lock for the whole inner pipeline, so it must
// wrap the transaction middleware.
func Serialize(locker policies.Locker) CommandMiddleware {
	if locker == nil {
		panic("middleware: locker required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			sc, ok := cmd.(SerializedCommand)
			if !ok || sc.LockKey() == "" {
				return nextFn(ctx, cmd)
			}
			unlock, err := locker.Lock(ctx, sc.LockKey())
			if err != nil {
				return nil, err
			}
			defer unlock()
			return nextFn(ctx, cmd)
		})
	}
}
