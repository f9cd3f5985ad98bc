package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andrrrrey/avito-crm/internal/services"
)

// DevIncomingResponse identifies the chat the test message landed in.
type DevIncomingResponse struct {
	OK          bool   `json:"ok"`
	ChatID      string `json:"chatId"`
	AvitoChatID string `json:"avitoChatId"`
}

// DevIncoming godoc
// @Summary     Simulate an inbound customer message
// @Description Builds a webhook-shaped payload and runs it through ingestion. Not available in production.
// @Tags        Dev
// @Accept      json
// @Produce     json
// @Param       body  body  services.DevIncomingInput  true  "Message"
// @Success     200  {object}  handlers.DevIncomingResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /dev/incoming [post]
func (h *Handlers) DevIncoming(c *gin.Context) {
	if h.Production {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "not found")
		return
	}
	var in services.DevIncomingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidBody, "invalid body")
		return
	}
	res, err := h.Ingest.DevIncoming(c.Request.Context(), in)
	switch {
	case errors.Is(err, services.ErrEmptyText):
		fail(c, http.StatusBadRequest, ErrCodeEmptyText, "text is empty")
		return
	case errors.Is(err, services.ErrDevOnly):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "not found")
		return
	case err != nil:
		internal(c, err)
		return
	}
	out := DevIncomingResponse{OK: true}
	if res.Chat != nil {
		out.ChatID = res.Chat.ID
		out.AvitoChatID = res.Chat.ExternalID()
	}
	ok(c, out)
}
