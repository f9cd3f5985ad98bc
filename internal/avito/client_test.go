package avito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrrrrey/avito-crm/internal/config"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

// fakeAPI is a scripted marketplace. Routes are keyed by "METHOD escaped-path".
type fakeAPI struct {
	t          *testing.T
	tokenCalls atomic.Int32
	tokenFail  bool

	mu     sync.Mutex
	routes map[string]func(w http.ResponseWriter, r *http.Request, body []byte)
	seen   []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, routes: map[string]func(http.ResponseWriter, *http.Request, []byte){}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) handle(key string, h func(w http.ResponseWriter, r *http.Request, body []byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key] = h
}

func (f *fakeAPI) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if r.URL.Path == "/token/" {
		n := f.tokenCalls.Add(1)
		if f.tokenFail {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}
		form, _ := url.ParseQuery(string(body))
		if form.Get("client_id") != "cid" || form.Get("client_secret") != "secret" || form.Get("grant_type") != "client_credentials" {
			f.t.Errorf("unexpected token form: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":86400,"token_type":"Bearer"}`, n)
		return
	}

	key := r.Method + " " + r.URL.EscapedPath()
	f.mu.Lock()
	f.seen = append(f.seen, key)
	h, ok := f.routes[key]
	f.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h(w, r, body)
}

func jsonReply(v string) func(http.ResponseWriter, *http.Request, []byte) {
	return func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, v)
	}
}

func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	cfg := config.AvitoConfig{ClientID: "cid", ClientSecret: "secret", AccountID: 42, BaseURL: srv.URL, Timeout: 5 * time.Second}
	return New(cfg, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
}

func TestToken_CachedAndSentAsBearer(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("GET /messenger/v2/accounts/42/chats/c1", func(w http.ResponseWriter, r *http.Request, _ []byte) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		jsonReply(`{"id":"c1"}`)(w, r, nil)
	})
	c := newTestClient(srv)

	for i := 0; i < 3; i++ {
		if _, err := c.GetChatInfo(context.Background(), "c1"); err != nil {
			t.Fatalf("GetChatInfo: %v", err)
		}
	}
	if n := f.tokenCalls.Load(); n != 1 {
		t.Fatalf("token fetched %d times; want 1", n)
	}
}

func TestToken_RefreshedNearExpiry(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("GET /messenger/v2/accounts/42/chats/c1", jsonReply(`{}`))

	store := &memoryTokenStore{}
	now := time.Now()
	_ = store.Save(context.Background(), "old", now.Add(30*time.Second))
	c := newTestClient(srv, WithTokenStore(store))

	if _, err := c.GetChatInfo(context.Background(), "c1"); err != nil {
		t.Fatalf("GetChatInfo: %v", err)
	}
	if f.tokenCalls.Load() != 1 || store.token != "tok-1" {
		t.Fatalf("token within the 60s margin must be refreshed; calls=%d stored=%q", f.tokenCalls.Load(), store.token)
	}
}

func TestDo_401ClearsTokenAndRetriesOnce(t *testing.T) {
	f, srv := newFakeAPI(t)
	var hits atomic.Int32
	f.handle("GET /messenger/v2/accounts/42/chats/c1", func(w http.ResponseWriter, r *http.Request, _ []byte) {
		if hits.Add(1) == 1 {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-2" {
			t.Errorf("retry must use a fresh token, got %q", got)
		}
		jsonReply(`{"id":"c1"}`)(w, r, nil)
	})
	c := newTestClient(srv)

	out, err := c.GetChatInfo(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetChatInfo: %v", err)
	}
	if m, _ := out.(map[string]any); m["id"] != "c1" {
		t.Fatalf("unexpected body %v", out)
	}
	if f.tokenCalls.Load() != 2 || hits.Load() != 2 {
		t.Fatalf("token calls=%d api hits=%d; want 2 and 2", f.tokenCalls.Load(), hits.Load())
	}
}

func TestDo_Persistent401IsAPIError(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("POST /messenger/v1/accounts/42/chats/c1/messages", func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	c := newTestClient(srv)

	_, err := c.SendTextMessage(context.Background(), "c1", "hi")
	if StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if n := len(f.calls()); n != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", n)
	}
}

func TestGetChatInfo_FallsBackToV1AndEscapes(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("GET /messenger/v1/accounts/42/chats/u2i-a%7Eb", jsonReply(`{"id":"u2i-a~b"}`))
	c := newTestClient(srv)

	if _, err := c.GetChatInfo(context.Background(), "u2i-a~b"); err != nil {
		t.Fatalf("GetChatInfo: %v", err)
	}
	want := []string{
		"GET /messenger/v2/accounts/42/chats/u2i-a%7Eb",
		"GET /messenger/v1/accounts/42/chats/u2i-a%7Eb",
	}
	if got := f.calls(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %v; want %v", got, want)
	}
}

func TestGetItemInfo_NotFound(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(srv)

	_, err := c.GetItemInfo(context.Background(), 555)
	if !IsNotFound(err) {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestGetItemInfo_Parses(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("GET /core/v1/accounts/42/items/555", jsonReply(`{"title":"Bike","price":{"value":"12 500"},"url":"https://avito.ru/bike_555"}`))
	c := newTestClient(srv)

	info, err := c.GetItemInfo(context.Background(), 555)
	if err != nil {
		t.Fatalf("GetItemInfo: %v", err)
	}
	if info.ItemID != 555 || info.Title != "Bike" || info.Price == nil || *info.Price != 12500 {
		t.Fatalf("unexpected info %+v", info)
	}
	if calls := f.calls(); len(calls) != 2 || calls[0] != "GET /core/v1/accounts/42/items/555/" {
		t.Fatalf("trailing slash must be tried first: %v", calls)
	}
}

func TestSendTextMessage_Body(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("POST /messenger/v1/accounts/42/chats/c1/messages", func(w http.ResponseWriter, r *http.Request, body []byte) {
		var got map[string]any
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body not JSON: %v", err)
		}
		msg, _ := got["message"].(map[string]any)
		if got["type"] != "text" || msg["text"] != "Здравствуйте!" {
			t.Errorf("unexpected body %s", body)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		jsonReply(`{"id":"out-1","created":1700000000}`)(w, r, nil)
	})
	c := newTestClient(srv)

	out, err := c.SendTextMessage(context.Background(), "c1", "Здравствуйте!")
	if err != nil {
		t.Fatalf("SendTextMessage: %v", err)
	}
	if m, _ := out.(map[string]any); m["id"] != "out-1" {
		t.Fatalf("unexpected response %v", out)
	}
}

func TestMarkChatRead_WalksVariants(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("PUT /messenger/v2/accounts/42/chats/c1/read", func(w http.ResponseWriter, r *http.Request, body []byte) {
		if !strings.Contains(string(body), `"last_message_id":"m9"`) {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		jsonReply(`{"ok":true}`)(w, r, nil)
	})
	c := newTestClient(srv)

	if err := c.MarkChatRead(context.Background(), "c1", "m9"); err != nil {
		t.Fatalf("MarkChatRead: %v", err)
	}
	calls := f.calls()
	// v3: 2 methods x 6 bodies; v2 POST: 6; v2 PUT: none, message_id, messageId, last_message_id
	if len(calls) != 12+6+4 {
		t.Fatalf("expected 22 attempts, got %d: %v", len(calls), calls)
	}
}

func TestReadBodies_Dedup(t *testing.T) {
	if got := readBodies(""); len(got) != 1 || got[0] != nil {
		t.Fatalf("no message id must give a single empty body, got %v", got)
	}
	if got := readBodies("m1"); len(got) != 6 {
		t.Fatalf("expected 6 body variants, got %d", len(got))
	}
}

func TestNotConfigured(t *testing.T) {
	c := New(config.AvitoConfig{})
	if _, err := c.GetChatInfo(context.Background(), "c1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := c.MarkChatRead(context.Background(), "c1", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if c.baseURL != DefaultBaseURL {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
}

func TestTokenFailureStopsChain(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.tokenFail = true
	c := newTestClient(srv)

	_, err := c.ListMessages(context.Background(), "c1", 100, 0)
	if !errors.Is(err, ErrToken) {
		t.Fatalf("expected ErrToken, got %v", err)
	}
	if n := len(f.calls()); n != 0 {
		t.Fatalf("no API call expected without a token, got %d", n)
	}
}

func TestListMessages_QueryAndText(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("GET /messenger/v3/accounts/42/chats/c1/messages", func(w http.ResponseWriter, r *http.Request, _ []byte) {
		if r.URL.RawQuery != "limit=100&offset=200" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "plain")
	})
	c := newTestClient(srv)

	out, err := c.ListMessages(context.Background(), "c1", 100, 200)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if out != "plain" {
		t.Fatalf("non-JSON responses must come back as text, got %#v", out)
	}
}

func TestWebhookSubscriptions(t *testing.T) {
	f, srv := newFakeAPI(t)
	f.handle("POST /messenger/v2/accounts/42/subscriptions_v2", jsonReply(`{"subscription_id":"s1"}`))
	f.handle("GET /messenger/v2/accounts/42/subscriptions", jsonReply(`{"subscriptions":[{"id":"s1","url":"https://crm/hook"}]}`))
	f.handle("DELETE /messenger/v2/accounts/42/subscriptions/s1", jsonReply(`{}`))
	c := newTestClient(srv)
	ctx := context.Background()

	sub, err := c.SubscribeWebhook(ctx, "https://crm/hook")
	if err != nil || sub.ID != "s1" || sub.URL != "https://crm/hook" {
		t.Fatalf("SubscribeWebhook = %+v, %v", sub, err)
	}
	subs, err := c.WebhookSubscriptions(ctx)
	if err != nil || len(subs) != 1 || subs[0].URL != "https://crm/hook" {
		t.Fatalf("WebhookSubscriptions = %+v, %v", subs, err)
	}
	if err := c.UnsubscribeWebhook(ctx, "s1"); err != nil {
		t.Fatalf("UnsubscribeWebhook: %v", err)
	}
	if err := c.UnsubscribeWebhook(ctx, ""); err == nil {
		t.Fatal("without id only v3 and v1 are tried, both missing here")
	}
}

func TestDBTokenStore(t *testing.T) {
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "tok.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	ctx := context.Background()
	s := DBTokenStore{DB: db}

	if tok, _, err := s.Load(ctx); err != nil || tok != "" {
		t.Fatalf("empty store Load = %q, %v", tok, err)
	}
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := s.Save(ctx, "abc", exp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	tok, got, err := s.Load(ctx)
	if err != nil || tok != "abc" || !got.Equal(exp) {
		t.Fatalf("Load = %q %v %v", tok, got, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if tok, _, _ := s.Load(ctx); tok != "" {
		t.Fatalf("token must be cleared, got %q", tok)
	}
}
