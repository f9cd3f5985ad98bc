package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andrrrrey/avito-crm/internal/http/middleware"
	"github.com/andrrrrey/avito-crm/internal/services"
)

// WebhookProbe godoc
// @Summary     Webhook URL check
// @Description Avito validates the URL with GET or HEAD before registering it.
// @Tags        Webhook
// @Success     200
// @Router      /avito/webhook [get]
func (h *Handlers) WebhookProbe(c *gin.Context) {
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	acknowledge(c)
}

// Webhook godoc
// @Summary     Avito webhook delivery
// @Description Stores the delivery, updates the chat, and schedules enrichment and the auto-reply.
// @Description In production the key must match, via ?key=, X-Webhook-Key or a Bearer token.
// @Tags        Webhook
// @Accept      json
// @Produce     json
// @Param       key  query  string  false  "Webhook key"
// @Success     200  {object}  handlers.OKResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /avito/webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	if h.Production && !middleware.SecretEqual(middleware.Credential(c, middleware.HeaderWebhookKey, "key"), h.WebhookKey) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook key")
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadJSON, "unreadable body")
		return
	}
	res, err := h.Ingest.Ingest(c.Request.Context(), body)
	switch {
	case errors.Is(err, services.ErrBadJSON):
		fail(c, http.StatusBadRequest, ErrCodeBadJSON, "body is not valid JSON")
		return
	case err != nil:
		internal(c, err)
		return
	}

	lg := middleware.LoggerFrom(c).Debug().Str("type", res.Event.Type)
	if res.Chat != nil {
		lg = lg.Str("chat_id", res.Chat.ID).Bool("message_created", res.MessageCreated)
	}
	lg.Msg("webhook processed")
	acknowledge(c)
}
