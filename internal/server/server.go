package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/voiceline-ai/voiceline/config"
	"github.com/voiceline-ai/voiceline/internal/knowledge"
	"github.com/voiceline-ai/voiceline/internal/media"
	"github.com/voiceline-ai/voiceline/internal/payments"
	"github.com/voiceline-ai/voiceline/internal/platform"
	"github.com/voiceline-ai/voiceline/internal/scrape"
	"github.com/voiceline-ai/voiceline/internal/store"
	syncer "github.com/voiceline-ai/voiceline/internal/sync"
	"github.com/voiceline-ai/voiceline/provider"
)

func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	dsn := cfg.Databases.Postgres.DSN()
	_ = Migrate("file://migrations", dsn, "up", 0)

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Databases.Redis.Addr(),
		Password: cfg.Databases.Redis.Pass,
		DB:       cfg.Databases.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Databases.Redis.Addr(), err)
	}

	platformClient := platform.NewClient(cfg.Providers.VoicePlatform, log.New(log.Writer(), "[PLATFORM] ", log.LstdFlags))
	orch := syncer.NewOrchestrator(platformClient, st, &syncer.RedisLocker{Rdb: rdb}, nil)

	llm, err := provider.NewProvider(provider.OpenAI, cfg.Providers.OpenAi)
	if err != nil {
		return err
	}

	searchIndex, err := knowledge.NewIndex()
	if err != nil {
		return err
	}
	if n, err := LoadSearchIndex(ctx, st, searchIndex); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	} else if n > 0 {
		log.Printf("search index rebuilt with %d documents", n)
	}
	fetcher := scrape.NewFetcher(cfg.Providers.VoicePlatform.Timeout, 0, "voiceline/1.0")

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}
	auth, err := initAuth(ctx, st, []byte(secret))
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, auth.Secret) })
	me.GET("", func(c echo.Context) error {
		return c.JSON(200, MeResponse{UserID: c.Get("user_id").(string)})
	})

	ah := &AgentsHandler{Store: st, Platform: platformClient, Orch: orch}
	ah.Register(api.Group("/agents"), auth.Secret)

	fh := &FlowsHandler{Store: st}
	fh.Register(api.Group("/agents"), auth.Secret)

	rh := &RetellHandler{Platform: platformClient, Orch: orch}
	rh.Register(api.Group("/retell"), auth.Secret)

	evh := &EvalsHandler{Store: st, Platform: platformClient, LLM: llm}
	evh.Register(api.Group("/retell"), auth.Secret)

	ch := &ChatHandler{Store: st, Platform: platformClient, LLM: llm}
	ch.Register(api.Group("/chat"), auth.Secret)

	anh := &AnalyticsHandler{Orch: orch}
	anh.Register(api.Group("/analytics"), auth.Secret)

	kh := &KnowledgeHandler{Store: st, Platform: platformClient, Index: searchIndex, Fetcher: fetcher}
	kh.Register(api.Group("/knowledge"), auth.Secret)

	mh := &MediaHandler{Issuer: media.Issuer{
		APIKey:    cfg.Media.APIKey,
		APISecret: cfg.Media.APISecret,
		TTL:       cfg.Media.TokenTTL,
	}}
	mh.Register(api.Group("/voice"), auth.Secret)

	ph := &PaymentsHandler{
		Store:         st,
		Payments:      payments.NewClient(cfg.Payments.APIKey, cfg.Payments.BaseURL),
		WebhookSecret: cfg.Payments.WebhookSecret,
	}
	ph.Register(api.Group("/payments"), auth.Secret)

	if cfg.Scheduler.Enabled {
		sched := &Scheduler{Orch: orch, Rdb: rdb, Cron: cfg.Scheduler.SyncCron, Stop: make(chan struct{})}
		sched.Start()
	}

	addr := cfg.General.Listen
	if addr == "" {
		addr = ":8001"
	}
	if addr[0] != ':' {
		addr = ":" + addr
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
