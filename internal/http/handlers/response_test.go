package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestFail_LogsServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("requestID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) { internal(c, errBoom) })
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	resp := decode[ErrorResponse](t, w)
	if w.Code != http.StatusInternalServerError || resp.RequestID != "rid-500" || resp.Code != ErrCodeInternal || resp.OK {
		t.Fatalf("500 body = %+v", resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected error log with cause, got %s", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || w.Body.String() != `{"ok":false,"request_id":"rid-500","error":"not_found","message":"nope"}` {
		t.Fatalf("404 = %d %s", w.Code, w.Body.String())
	}
	if buf.Len() != 0 {
		t.Fatalf("4xx must not log: %s", buf.String())
	}
}
