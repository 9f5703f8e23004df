package middleware

import (
	"context"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/domain/shared/apperr"
)

func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			switch {
			case err == nil:
				logger.DebugContext(ctx, "command handled", attrs...)
			case apperr.KindOf(err) == nil || apperr.IsRetryable(err):
				logger.ErrorContext(ctx, "command failed", append(attrs, "error", err)...)
			default:
				logger.InfoContext(ctx, "command rejected", append(attrs, "error", err)...)
			}
			return res, err
		})
	}
}
