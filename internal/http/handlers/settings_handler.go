package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andrrrrey/avito-crm/internal/services"
)

// AssistantResponse wraps the assistant settings. The API key is masked.
type AssistantResponse struct {
	OK   bool                    `json:"ok"`
	Data *services.AssistantView `json:"data"`
}

// GetAssistant godoc
// @Summary     AI assistant settings
// @Tags        Settings
// @Produce     json
// @Success     200  {object}  handlers.AssistantResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /ai-assistant [get]
func (h *Handlers) GetAssistant(c *gin.Context) {
	v, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		internal(c, err)
		return
	}
	ok(c, AssistantResponse{OK: true, Data: v})
}

// UpdateAssistant godoc
// @Summary     Update AI assistant settings
// @Description Only the fields present are changed. An empty string clears a field.
// @Tags        Settings
// @Accept      json
// @Produce     json
// @Param       body  body  services.AssistantUpdate  true  "Fields to change"
// @Success     200  {object}  handlers.AssistantResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /ai-assistant [put]
func (h *Handlers) UpdateAssistant(c *gin.Context) {
	var u services.AssistantUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidBody, "invalid body")
		return
	}
	v, err := h.Settings.Update(c.Request.Context(), u)
	if errors.Is(err, services.ErrNothingToUpdate) {
		fail(c, http.StatusBadRequest, ErrCodeNothingToUpdate, "nothing to update")
		return
	}
	if err != nil {
		internal(c, err)
		return
	}
	ok(c, AssistantResponse{OK: true, Data: v})
}
