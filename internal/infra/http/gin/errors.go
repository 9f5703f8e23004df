package ginserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/domain/shared/apperr"
)

// UserHeader carries the caller id set by the upstream authentication proxy.
const UserHeader = "X-User-ID"

func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(UserHeader))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrPaymentProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if kind := apperr.KindName(err); kind != "" {
		body["kind"] = kind
	}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	writeError(c, apperr.Wrap(apperr.ErrValidation, err.Error(), err))
}

// parseDate accepts YYYY-MM-DD or RFC3339.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date " + `"` + value + `"`)
	}
	return t.UTC(), nil
}

func parseStay(checkIn, checkOut string) (time.Time, time.Time, error) {
	in, err := parseDate(checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := parseDate(checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return in, out, nil
}
