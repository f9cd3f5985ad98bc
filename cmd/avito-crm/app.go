package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/avito"
	"github.com/andrrrrey/avito-crm/internal/cache"
	"github.com/andrrrrey/avito-crm/internal/config"
	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/http/handlers"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
	"github.com/andrrrrey/avito-crm/internal/responder"
	"github.com/andrrrrey/avito-crm/internal/services"
	"github.com/andrrrrey/avito-crm/internal/sysutil"
)

// app holds the wired components shared by every command.
type app struct {
	cfg   config.Config
	db    *gorm.DB
	avito *avito.Client
	bus   *realtime.Bus
	tasks *services.Tasks

	chats    *services.ChatService
	ingest   *services.IngestService
	settings *services.AssistantSettings
	subs     *services.Subscriptions
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty, nil, cfg.OTEL.ServiceName)
	return cfg, nil
}

// openDB connects and migrates the schema.
func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	client := avito.New(cfg.Avito, avito.WithTokenStore(avito.DBTokenStore{DB: db}))
	bus := realtime.New()
	tasks := services.NewTasks(cfg.TaskConcurrency, cfg.TaskTimeout)
	items := cache.New(ctx, cfg.RedisURL, cfg.ItemCacheTTL)

	enricher := &services.Enricher{DB: db, Avito: client, Bus: bus, Items: items, Tasks: tasks}
	dispatcher := &services.Dispatcher{
		DB:         db,
		Bus:        bus,
		Avito:      client,
		Responder:  responder.NewAssistant(db, cfg.OpenAIBaseURL),
		Out:        &services.Outbound{DB: db, Avito: client, Bus: bus, MockMode: cfg.MockMode},
		MockMode:   cfg.MockMode,
		Production: cfg.IsProduction(),
	}

	a := &app{
		cfg:   cfg,
		db:    db,
		avito: client,
		bus:   bus,
		tasks: tasks,
		chats: &services.ChatService{
			DB:             db,
			Avito:          client,
			Bus:            bus,
			MockMode:       cfg.MockMode,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		ingest: &services.IngestService{
			DB:            db,
			Bus:           bus,
			Tasks:         tasks,
			Enricher:      enricher,
			Dispatcher:    dispatcher,
			AccountID:     cfg.Avito.AccountID,
			DefaultStatus: domain.ChatStatus(cfg.DefaultStatus),
			MockMode:      cfg.MockMode,
			Production:    cfg.IsProduction(),
		},
		settings: &services.AssistantSettings{DB: db},
		subs:     &services.Subscriptions{Avito: client, DefaultURL: cfg.WebhookURL()},
	}
	log.Info().
		Str("env", cfg.AppEnv).
		Bool("mock", cfg.MockMode).
		Bool("redis", cfg.RedisURL != "").
		Int("task_concurrency", cfg.TaskConcurrency).
		Msg("components ready")
	return a, nil
}

func (a *app) handlers() *handlers.Handlers {
	return handlers.New(handlers.Deps{
		Chats:        a.chats,
		Ingest:       a.ingest,
		Settings:     a.settings,
		Webhooks:     a.subs,
		Bus:          a.bus,
		WebhookKey:   a.cfg.WebhookKey,
		Production:   a.cfg.IsProduction(),
		MockMode:     a.cfg.MockMode,
		PingInterval: a.cfg.SSEPingInterval,
	})
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
