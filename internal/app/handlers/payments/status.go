package payments

import (
	"context"
	"errors"
	"strings"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	"staybook/internal/app/policies"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/apperr"
)

const (
	PaymentStatusKey   = "payment.status"
	PaymentByIntentKey = "payment.by_intent"
)

type PaymentStatusQuery struct {
	IntentID string `validate:"required"`
}

func (q PaymentStatusQuery) Key() string { return PaymentStatusKey }

type PaymentByIntentQuery struct {
	IntentID string `validate:"required"`
}

func (q PaymentByIntentQuery) Key() string { return PaymentByIntentKey }

type StatusHandlers struct {
	base.Deps
	Provider policies.PaymentProvider
}

// Status asks the provider for the intent state and adds the local view when known.
func (h *StatusHandlers) Status(ctx context.Context, q PaymentStatusQuery) (dto.PaymentStatus, error) {
	intentID := strings.TrimSpace(q.IntentID)
	status, err := h.Provider.RetrieveStatus(ctx, intentID)
	if err != nil {
		return dto.PaymentStatus{}, apperr.Provider("retrieve status", err)
	}
	out := dto.PaymentStatus{IntentID: intentID, ProviderStatus: string(status)}
	local, err := h.ByIntent(ctx, PaymentByIntentQuery{IntentID: intentID})
	switch {
	case err == nil:
		out.LocalStatus = local.Status
		out.BookingID = local.BookingID
	case !errors.Is(err, domainpayment.ErrPaymentNotFound):
		return dto.PaymentStatus{}, err
	}
	return out, nil
}

func (h *StatusHandlers) ByIntent(ctx context.Context, q PaymentByIntentQuery) (dto.PaymentIntent, error) {
	scope, ctx, err := h.BeginReadOnly(ctx)
	if err != nil {
		return dto.PaymentIntent{}, err
	}
	defer scope.Close()
	p, err := scope.Unit.Payments().ByIntent(ctx, strings.TrimSpace(q.IntentID))
	if err != nil {
		return dto.PaymentIntent{}, err
	}
	return mapIntent(p), nil
}
