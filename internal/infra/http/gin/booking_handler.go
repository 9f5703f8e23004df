package ginserver

import (
	"context"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
)

// Cancellations runs cancel and refund retry, which call the provider outside the bus.
type Cancellations interface {
	Cancel(ctx context.Context, cmd bookingapp.CancelBookingCommand) (dto.CancelResult, error)
	RetryRefund(ctx context.Context, req bookingapp.RetryRefundRequest) (dto.CancelResult, error)
}

type BookingHandler struct {
	Commands      commands.Bus
	Queries       queries.Bus
	Cancellations Cancellations
}

type createBookingRequest struct {
	CheckIn         string `json:"check_in" binding:"required"`
	CheckOut        string `json:"check_out" binding:"required"`
	Guests          int    `json:"guests"`
	SpecialRequests string `json:"special_requests"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		writeError(c, err)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		ListingID:       c.Param("id"),
		GuestID:         userID(c),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.Guests,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, bookingapp.GetBookingQuery{
		BookingID: c.Param("id"),
		ActorID:   userID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) List(c *gin.Context) {
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListBookingsQuery{
		UserID: userID(c),
		Status: c.Query("status"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	result, err := h.Cancellations.Cancel(c.Request.Context(), bookingapp.CancelBookingCommand{
		BookingID: c.Param("id"),
		ActorID:   userID(c),
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) RetryRefund(c *gin.Context) {
	result, err := h.Cancellations.RetryRefund(c.Request.Context(), bookingapp.RetryRefundRequest{
		BookingID: c.Param("id"),
		ActorID:   userID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
