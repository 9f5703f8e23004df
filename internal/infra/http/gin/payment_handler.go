package ginserver

import (
	"context"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	paymentsapp "staybook/internal/app/handlers/payments"
	"staybook/internal/app/queries"
	"staybook/internal/domain/payment"
)

type PaymentStarter interface {
	Start(ctx context.Context, req paymentsapp.StartPaymentRequest) (dto.PaymentIntent, error)
}

// EventVerifier confirms a webhook event id with the provider.
type EventVerifier interface {
	Verify(ctx context.Context, eventID string) (payment.ProviderEvent, bool, error)
}

type PaymentReconciler interface {
	Handle(ctx context.Context, ev payment.ProviderEvent) (dto.ReconcileOutcome, error)
}

type PaymentHandler struct {
	Payments   PaymentStarter
	Queries    queries.Bus
	Verifier   EventVerifier
	Reconciler PaymentReconciler
	Logger     *slog.Logger
}

func (h PaymentHandler) Start(c *gin.Context) {
	result, err := h.Payments.Start(c.Request.Context(), paymentsapp.StartPaymentRequest{
		BookingID: c.Param("id"),
		GuestID:   userID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h PaymentHandler) Status(c *gin.Context) {
	result, err := queries.Ask[paymentsapp.PaymentStatusQuery, dto.PaymentStatus](c.Request.Context(), h.Queries, paymentsapp.PaymentStatusQuery{
		IntentID: c.Param("intent"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type webhookRequest struct {
	ID  string `json:"id" binding:"required"`
	Key string `json:"key"`
}

// Webhook trusts only the event id in the body; the event itself is fetched
// back from the provider before it reaches the reconciler.
func (h PaymentHandler) Webhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	ev, ok, err := h.Verifier.Verify(ctx, req.ID)
	if err != nil {
		h.logger().WarnContext(ctx, "webhook event not verified", "event_id", req.ID, "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "event could not be verified"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"event_id": req.ID, "ignored": true})
		return
	}
	result, err := h.Reconciler.Handle(ctx, ev)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PaymentHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ PaymentHTTP = PaymentHandler{}
