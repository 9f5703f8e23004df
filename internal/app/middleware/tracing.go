package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
)

const tracerName = "staybook/app"

func Tracing() CommandMiddleware {
	tracer := otel.Tracer(tracerName)
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, span := tracer.Start(ctx, "command "+cmd.Key(), trace.WithAttributes(attribute.String("command.key", cmd.Key())))
			defer span.End()
			res, err := nextFn(ctx, cmd)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return res, err
		})
	}
}

func QueryTracing() QueryMiddleware {
	tracer := otel.Tracer(tracerName)
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			ctx, span := tracer.Start(ctx, "query "+q.Key())
			defer span.End()
			res, err := nextFn(ctx, q)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return res, err
		})
	}
}
