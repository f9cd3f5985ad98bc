package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/services"
)

// SubscribeRequest optionally overrides the webhook URL.
type SubscribeRequest struct {
	URL string `json:"url" example:"https://crm.example.com/api/avito/webhook?key=secret"`
}

// SubscribeResponse reports a new registration. WebhookURL has its key hidden.
type SubscribeResponse struct {
	OK           bool                   `json:"ok"`
	Subscription normalize.Subscription `json:"subscription"`
	WebhookURL   string                 `json:"webhookUrl"`
}

// SubscriptionStatusResponse tells whether the webhook is registered.
type SubscriptionStatusResponse struct {
	OK            bool                     `json:"ok"`
	Mock          bool                     `json:"mock,omitempty"`
	Subscribed    bool                     `json:"subscribed"`
	WebhookURL    string                   `json:"webhookUrl,omitempty"`
	Subscriptions []normalize.Subscription `json:"subscriptions,omitempty"`
}

func (h *Handlers) rejectMock(c *gin.Context) bool {
	if h.MockMode {
		fail(c, http.StatusBadRequest, ErrCodeMockMode, "webhook subscriptions are disabled in mock mode")
		return true
	}
	return false
}

// Subscribe godoc
// @Summary     Register the Avito webhook
// @Tags        Webhook
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SubscribeRequest  false  "Defaults to the public webhook URL"
// @Success     200  {object}  handlers.SubscribeResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /avito/subscribe [post]
func (h *Handlers) Subscribe(c *gin.Context) {
	if h.rejectMock(c) {
		return
	}
	var req SubscribeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeInvalidBody, "invalid body")
			return
		}
	}
	sub, target, err := h.Webhooks.Subscribe(c.Request.Context(), req.URL)
	switch {
	case errors.Is(err, services.ErrNoWebhookURL):
		fail(c, http.StatusBadRequest, ErrCodeNoWebhookURL, "PUBLIC_BASE_URL is not set and no url was given")
		return
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, ErrCodeSubscribeFailed, "avito subscribe failed")
		return
	}
	ok(c, SubscribeResponse{OK: true, Subscription: sub, WebhookURL: services.RedactKey(target)})
}

// Unsubscribe godoc
// @Summary     Remove the Avito webhook
// @Description A provider failure is logged and the call still succeeds.
// @Tags        Webhook
// @Produce     json
// @Param       id  query  string  false  "Subscription ID"
// @Success     200  {object}  handlers.OKResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /avito/subscribe [delete]
func (h *Handlers) Unsubscribe(c *gin.Context) {
	if h.rejectMock(c) {
		return
	}
	if err := h.Webhooks.Unsubscribe(c.Request.Context(), c.Query("id")); err != nil {
		_ = c.Error(err)
	}
	acknowledge(c)
}

// SubscriptionStatus godoc
// @Summary     Webhook registration status
// @Tags        Webhook
// @Produce     json
// @Success     200  {object}  handlers.SubscriptionStatusResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /avito/subscribe [get]
func (h *Handlers) SubscriptionStatus(c *gin.Context) {
	if h.MockMode {
		ok(c, SubscriptionStatusResponse{OK: true, Mock: true})
		return
	}
	st, err := h.Webhooks.Status(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, ErrCodeSubscribeFailed, "avito subscriptions request failed")
		return
	}
	subs := make([]normalize.Subscription, len(st.Subscriptions))
	for i, s := range st.Subscriptions {
		subs[i] = normalize.Subscription{ID: s.ID, URL: services.RedactKey(s.URL)}
	}
	ok(c, SubscriptionStatusResponse{
		OK:            true,
		Subscribed:    st.Subscribed,
		WebhookURL:    services.RedactKey(st.WebhookURL),
		Subscriptions: subs,
	})
}
