package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	supportapp "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
)

type SupportHandler struct {
	Queries queries.Bus
}

type supportMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h SupportHandler) Message(c *gin.Context) {
	var req supportMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := queries.Ask[supportapp.ReplyQuery, dto.SupportReply](c.Request.Context(), h.Queries, supportapp.ReplyQuery{
		UserID:  userID(c),
		Message: req.Message,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SupportHandler) Topics(c *gin.Context) {
	result, err := queries.Ask[supportapp.TopicsQuery, dto.SupportTopics](c.Request.Context(), h.Queries, supportapp.TopicsQuery{})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ SupportHTTP = SupportHandler{}
