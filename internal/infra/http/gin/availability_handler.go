package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	"staybook/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

type stayQuery struct {
	CheckIn  string `form:"check_in" binding:"required"`
	CheckOut string `form:"check_out" binding:"required"`
}

func (h AvailabilityHandler) Availability(c *gin.Context) {
	var q stayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	checkIn, checkOut, err := parseStay(q.CheckIn, q.CheckOut)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, availabilityapp.GetAvailabilityQuery{
		ListingID: c.Param("id"),
		CheckIn:   checkIn,
		CheckOut:  checkOut,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Price(c *gin.Context) {
	var q stayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	checkIn, checkOut, err := parseStay(q.CheckIn, q.CheckOut)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := queries.Ask[availabilityapp.CalculatePriceQuery, dto.PriceQuote](c.Request.Context(), h.Queries, availabilityapp.CalculatePriceQuery{
		ListingID: c.Param("id"),
		CheckIn:   checkIn,
		CheckOut:  checkOut,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type calendarQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// Calendar lists blocked stays, optionally limited to a from/to window.
func (h AvailabilityHandler) Calendar(c *gin.Context) {
	var q calendarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	query := availabilityapp.GetCalendarQuery{ListingID: c.Param("id")}
	var err error
	if q.From != "" {
		if query.From, err = parseDate(q.From); err != nil {
			writeError(c, err)
			return
		}
	}
	if q.To != "" {
		if query.To, err = parseDate(q.To); err != nil {
			writeError(c, err)
			return
		}
	}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
