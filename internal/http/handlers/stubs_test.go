package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/andrrrrey/avito-crm/internal/http/middleware"
	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/repo"
	"github.com/andrrrrey/avito-crm/internal/services"
)

var errBoom = errors.New("boom")

type stubChats struct {
	list     func(repo.ChatFilter) (*services.ChatList, error)
	messages func(id string, refresh bool) (*services.MessagesResult, error)
	send     func(id string, in services.SendInput) (*services.SendResult, error)
	read     func(id string) (*services.ReadResult, error)
	pin      func(id string, pinned *bool) (bool, error)
	finish   func(id string) error
}

func (s *stubChats) List(_ context.Context, f repo.ChatFilter) (*services.ChatList, error) {
	return s.list(f)
}
func (s *stubChats) Messages(_ context.Context, id string, refresh bool) (*services.MessagesResult, error) {
	return s.messages(id, refresh)
}
func (s *stubChats) Send(_ context.Context, id string, in services.SendInput) (*services.SendResult, error) {
	return s.send(id, in)
}
func (s *stubChats) MarkRead(_ context.Context, id string) (*services.ReadResult, error) {
	return s.read(id)
}
func (s *stubChats) Pin(_ context.Context, id string, pinned *bool) (bool, error) {
	return s.pin(id, pinned)
}
func (s *stubChats) Finish(_ context.Context, id string) error { return s.finish(id) }

type stubIngest struct {
	ingest func(body []byte) (*services.IngestResult, error)
	dev    func(services.DevIncomingInput) (*services.IngestResult, error)
}

func (s *stubIngest) Ingest(_ context.Context, body []byte) (*services.IngestResult, error) {
	return s.ingest(body)
}
func (s *stubIngest) DevIncoming(_ context.Context, in services.DevIncomingInput) (*services.IngestResult, error) {
	return s.dev(in)
}

type stubSettings struct {
	get    func() (*services.AssistantView, error)
	update func(services.AssistantUpdate) (*services.AssistantView, error)
}

func (s *stubSettings) Get(context.Context) (*services.AssistantView, error) { return s.get() }
func (s *stubSettings) Update(_ context.Context, u services.AssistantUpdate) (*services.AssistantView, error) {
	return s.update(u)
}

type stubWebhooks struct {
	subscribe   func(url string) (normalize.Subscription, string, error)
	unsubscribe func(id string) error
	status      func() (*services.SubscriptionStatus, error)
}

func (s *stubWebhooks) Subscribe(_ context.Context, url string) (normalize.Subscription, string, error) {
	return s.subscribe(url)
}
func (s *stubWebhooks) Unsubscribe(_ context.Context, id string) error { return s.unsubscribe(id) }
func (s *stubWebhooks) Status(context.Context) (*services.SubscriptionStatus, error) {
	return s.status()
}

// newRouter mounts h the way the router does, minus auth and rate limits.
func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.GET("/avito/webhook", h.WebhookProbe)
	r.HEAD("/avito/webhook", h.WebhookProbe)
	r.POST("/avito/webhook", h.Webhook)
	r.GET("/events", h.Events)
	r.GET("/chats", h.ListChats)
	r.GET("/chats/:id/messages", h.ListMessages)
	r.POST("/chats/:id/send", h.Send)
	r.POST("/chats/:id/read", h.MarkRead)
	r.POST("/chats/:id/pin", h.Pin)
	r.POST("/chats/:id/finish", h.Finish)
	r.GET("/ai-assistant", h.GetAssistant)
	r.PUT("/ai-assistant", h.UpdateAssistant)
	r.GET("/avito/subscribe", h.SubscriptionStatus)
	r.POST("/avito/subscribe", h.Subscribe)
	r.DELETE("/avito/subscribe", h.Unsubscribe)
	r.POST("/dev/incoming", h.DevIncoming)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, status, w.Body.String())
	}
	e := decode[ErrorResponse](t, w)
	if e.OK || e.Code != code || e.RequestID == "" {
		t.Fatalf("error body = %+v; want code %q", e, code)
	}
}
