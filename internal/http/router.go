// Package httpapi wires the Gin engine: middleware, the operator API, the
// Avito webhook, the realtime stream, health, metrics and API docs.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/config"
	"github.com/andrrrrey/avito-crm/internal/http/handlers"
	"github.com/andrrrrey/avito-crm/internal/http/middleware"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

const maxBodyBytes = 1 << 20

// Route suffixes below the API base path. The webhook path is the one
// registered with Avito, so it is part of the public contract.
const (
	WebhookPath = "/avito/webhook"
	EventsPath  = "/events"
)

// RegisterRoutes attaches middleware and every endpoint to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. body size limit
//  6. Metrics
//  7. Idempotency validator (before the limiter so replays bypass it)
//  8. Rate limiter (webhook and event stream exempt)
//  9. CORS and security headers
//
// gzip is applied to the API group only and never to the event stream.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	base := normalizeBase(cfg.APIBasePath)

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByTokenOrIP(),
		base+WebhookPath, base+EventsPath, "/health", "/metrics")
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(db))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := groupWithPrefix(r, base)
	api.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{base + EventsPath})))

	// Avito calls the webhook with its own key, never the operator token.
	api.GET(WebhookPath, h.WebhookProbe)
	api.HEAD(WebhookPath, h.WebhookProbe)
	api.POST(WebhookPath, h.Webhook)

	op := api.Group("", middleware.OperatorAuth(cfg.CRMToken))
	{
		op.GET(EventsPath, h.Events)

		op.GET("/chats", h.ListChats)
		op.GET("/chats/:id/messages", h.ListMessages)
		op.POST("/chats/:id/send", h.Send)
		op.POST("/chats/:id/read", h.MarkRead)
		op.POST("/chats/:id/pin", h.Pin)
		op.POST("/chats/:id/finish", h.Finish)

		op.GET("/ai-assistant", h.GetAssistant)
		op.PUT("/ai-assistant", h.UpdateAssistant)

		op.GET("/avito/subscribe", h.SubscriptionStatus)
		op.POST("/avito/subscribe", h.Subscribe)
		op.DELETE("/avito/subscribe", h.Unsubscribe)

		op.POST("/dev/incoming", h.DevIncoming)
	}
}

// idempotencyLookup reports a replay when an unexpired record exists for
// the chat in the route.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, chatID, key string, now time.Time) (bool, error) {
		if chatID == "" {
			return false, nil
		}
		rec, err := repo.GetIdempotency(ctx, db, chatID, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("health: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": "ok"})
	}
}

func corsMiddleware(origins []string) []gin.HandlerFunc {
	headers := []string{
		"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "Last-Event-ID",
		"If-None-Match", middleware.HeaderCRMToken, middleware.HeaderIdempotencyKey,
	}
	expose := []string{"X-Request-ID", "ETag", middleware.HeaderIdempotencyReplayed}
	methods := []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// set even without an Origin header so plain probes see it
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    methods,
				AllowHeaders:    headers,
				ExposeHeaders:   expose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}
	return []gin.HandlerFunc{cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  methods,
		AllowHeaders:  headers,
		ExposeHeaders: expose,
		MaxAge:        12 * time.Hour,
	})}
}

// limitBody caps request bodies; reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func normalizeBase(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// groupWithPrefix mounts a group at prefix, treating "" as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	return r.Group(prefix)
}
