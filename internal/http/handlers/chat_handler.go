// Chat endpoints of the operator API:
//   - GET  /chats
//   - GET  /chats/{id}/messages
//   - POST /chats/{id}/send
//   - POST /chats/{id}/read
//   - POST /chats/{id}/pin
//   - POST /chats/{id}/finish
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/http/middleware"
	"github.com/andrrrrey/avito-crm/internal/repo"
	"github.com/andrrrrey/avito-crm/internal/services"
	"github.com/andrrrrey/avito-crm/internal/utils"
)

const (
	defaultChatLimit = 2000
	maxChatLimit     = 5000
)

// ListChatsResponse is the chat list.
type ListChatsResponse struct {
	OK    bool          `json:"ok"`
	Chats []domain.Chat `json:"chats"`
}

// MessagesResponse is the message window of a chat, oldest first.
type MessagesResponse struct {
	OK           bool             `json:"ok"`
	Refreshed    bool             `json:"refreshed"`
	NeedsRefresh bool             `json:"needsRefresh,omitempty"`
	Messages     []domain.Message `json:"messages"`
}

// SendRequest is an operator reply.
type SendRequest struct {
	Text string `json:"text" binding:"required" example:"Здравствуйте! Да, в наличии."`
	// MarkRead defaults to true.
	MarkRead *bool `json:"markRead"`
}

// SendResponse carries the stored OUT message.
type SendResponse struct {
	OK      bool            `json:"ok"`
	Message *domain.Message `json:"message"`
}

// ReadResponse reports the provider side of a mark-read.
type ReadResponse struct {
	OK         bool   `json:"ok"`
	AvitoOK    *bool  `json:"avitoOk,omitempty"`
	AvitoError string `json:"avitoError,omitempty"`
}

// PinRequest sets the flag; an empty body toggles it.
type PinRequest struct {
	Pinned *bool `json:"pinned"`
}

// PinResponse is the resulting flag.
type PinResponse struct {
	OK     bool `json:"ok"`
	Pinned bool `json:"pinned"`
}

// chatError maps service errors shared by the chat endpoints.
func chatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeChatNotFound, "chat not found")
	case errors.Is(err, services.ErrNotLinked):
		fail(c, http.StatusConflict, ErrCodeNotLinked, "chat has no avito chat id")
	case errors.Is(err, services.ErrNotManager):
		fail(c, http.StatusConflict, ErrCodeNotManager, "chat is not in the manager queue")
	case errors.Is(err, services.ErrEmptyText):
		fail(c, http.StatusBadRequest, ErrCodeEmptyText, "text is empty")
	case errors.Is(err, services.ErrSendFailed):
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, ErrCodeSendFailed, "avito send failed")
	case errors.Is(err, services.ErrProviderFailed):
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, ErrCodeMessagesFailed, "avito request failed")
	default:
		internal(c, err)
	}
}

// ListChats godoc
// @Summary     List chats
// @Description Chats of one queue. Manager chats are pinned first. Supports a weak ETag via If-None-Match.
// @Tags        Chats
// @Produce     json
// @Param       status         query   string  false  "Queue"          Enums(BOT, MANAGER)
// @Param       sort           query   string  false  "Sort field"     Enums(lastMessageAt, price) default(lastMessageAt)
// @Param       dir            query   string  false  "Sort order"     Enums(asc, desc) default(desc)
// @Param       unreadOnly     query   bool    false  "Only chats with unread messages"
// @Param       limit          query   int     false  "Max chats"      minimum(1) maximum(5000) default(2000)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListChatsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	f := repo.ChatFilter{
		SortField:  firstQuery(c, "sort", "sortField"),
		SortOrder:  strings.ToLower(firstQuery(c, "dir", "sortOrder")),
		UnreadOnly: utils.Flag(c.Query("unreadOnly")),
		Limit:      utils.ClampLimit(c.Query("limit"), defaultChatLimit, maxChatLimit),
	}
	if s := strings.ToUpper(strings.TrimSpace(c.Query("status"))); s != "" {
		f.Status = domain.ChatStatus(s)
		if !f.Status.Valid() {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be BOT or MANAGER")
			return
		}
	}
	switch f.SortField {
	case "", "lastMessageAt", "price":
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sort must be lastMessageAt or price")
		return
	}

	res, err := h.Chats.List(c.Request.Context(), f)
	if err != nil {
		internal(c, err)
		return
	}
	c.Header("ETag", res.ETag)
	if match := c.GetHeader("If-None-Match"); match != "" && match == res.ETag {
		c.Status(http.StatusNotModified)
		return
	}
	chats := res.Chats
	if chats == nil {
		chats = []domain.Chat{}
	}
	ok(c, ListChatsResponse{OK: true, Chats: chats})
}

// ListMessages godoc
// @Summary     Chat messages
// @Description The newest messages of a chat in chronological order. refresh=1 pulls the provider history first.
// @Tags        Chats
// @Produce     json
// @Param       id       path   string  true   "Chat ID"
// @Param       refresh  query  bool    false  "Pull history from Avito"
// @Success     200  {object}  handlers.MessagesResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	res, err := h.Chats.Messages(c.Request.Context(), c.Param("id"), utils.Flag(c.Query("refresh")))
	if err != nil {
		chatError(c, err)
		return
	}
	msgs := res.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	ok(c, MessagesResponse{OK: true, Refreshed: res.Refreshed, NeedsRefresh: res.NeedsRefresh, Messages: msgs})
}

// Send godoc
// @Summary     Reply to a customer
// @Description Sends through Avito, stores the OUT message and moves the chat to the manager queue.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       id               path    string                  true   "Chat ID"
// @Param       Idempotency-Key  header  string                  false  "Deduplicates retries"
// @Param       body             body    handlers.SendRequest    true   "Reply"
// @Success     200  {object}  handlers.SendResponse
// @Header      200  {string}  Idempotency-Replayed  "true when served from a stored result"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/send [post]
func (h *Handlers) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidBody, "text is required")
		return
	}
	in := services.SendInput{Text: req.Text, MarkRead: req.MarkRead == nil || *req.MarkRead}
	if key, has := middleware.GetIdempotencyKey(c); has {
		in.IdempotencyKey = key
	}
	res, err := h.Chats.Send(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		chatError(c, err)
		return
	}
	if res.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, SendResponse{OK: true, Message: res.Message})
}

// MarkRead godoc
// @Summary     Mark a chat read
// @Description Marks every inbound message read and tells Avito. A provider failure is reported but not fatal.
// @Tags        Chats
// @Produce     json
// @Param       id  path  string  true  "Chat ID"
// @Success     200  {object}  handlers.ReadResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	res, err := h.Chats.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		chatError(c, err)
		return
	}
	resp := ReadResponse{OK: true, AvitoOK: res.AvitoOK}
	if res.AvitoErr != nil {
		resp.AvitoError = ErrCodeReadFailed
	}
	ok(c, resp)
}

// Pin godoc
// @Summary     Pin a manager chat
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       id    path  string               true   "Chat ID"
// @Param       body  body  handlers.PinRequest  false  "Omit to toggle"
// @Success     200  {object}  handlers.PinResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/pin [post]
func (h *Handlers) Pin(c *gin.Context) {
	var req PinRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeInvalidBody, "invalid body")
			return
		}
	}
	pinned, err := h.Chats.Pin(c.Request.Context(), c.Param("id"), req.Pinned)
	if err != nil {
		chatError(c, err)
		return
	}
	ok(c, PinResponse{OK: true, Pinned: pinned})
}

// Finish godoc
// @Summary     Return a chat to the bot
// @Tags        Chats
// @Produce     json
// @Param       id  path  string  true  "Chat ID"
// @Success     200  {object}  handlers.OKResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/finish [post]
func (h *Handlers) Finish(c *gin.Context) {
	if err := h.Chats.Finish(c.Request.Context(), c.Param("id")); err != nil {
		chatError(c, err)
		return
	}
	acknowledge(c)
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}
