package payments

import (
	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
)

func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, deps base.Deps, provider policies.PaymentProvider) {
	commands.RegisterHandler[AttachIntentCommand, dto.PaymentIntent](cmdBus, AttachIntentKey, &AttachIntentHandler{Deps: deps})

	status := &StatusHandlers{Deps: deps, Provider: provider}
	queries.RegisterHandler[PaymentStatusQuery, dto.PaymentStatus](queryBus, PaymentStatusKey, queries.HandlerFunc[PaymentStatusQuery, dto.PaymentStatus](status.Status))
	queries.RegisterHandler[PaymentByIntentQuery, dto.PaymentIntent](queryBus, PaymentByIntentKey, queries.HandlerFunc[PaymentByIntentQuery, dto.PaymentIntent](status.ByIntent))
}
