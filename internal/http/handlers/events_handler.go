package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const subscriberBuffer = 64

// Events godoc
// @Summary     Realtime event stream
// @Description Server-Sent Events. Without chatId the stream carries queue-level events; with chatId it also carries message_created for that chat.
// @Tags        Events
// @Produce     text/event-stream
// @Param       chatId  query  string  false  "Scope the stream to one chat"
// @Param       token   query  string  false  "Operator token (EventSource cannot set headers)"
// @Success     200  {string}  string  "event stream"
// @Router      /events [get]
func (h *Handlers) Events(c *gin.Context) {
	sub := h.Bus.Subscribe(strings.TrimSpace(c.Query("chatId")), subscriberBuffer)
	if err := h.Bus.Stream(c.Request.Context(), c.Writer, sub, h.PingInterval); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStreamFailed, "streaming unsupported")
	}
}
