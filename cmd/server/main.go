package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/config"
	"github.com/cravaudio/api/internal/handler"
	"github.com/cravaudio/api/internal/ledger"
	"github.com/cravaudio/api/internal/middleware"
	"github.com/cravaudio/api/internal/orchestrator"
	"github.com/cravaudio/api/internal/pricing"
	"github.com/cravaudio/api/internal/provider"
	"github.com/cravaudio/api/internal/ratelimit"
	"github.com/cravaudio/api/internal/service"
	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/internal/webhook"
	ws "github.com/cravaudio/api/internal/websocket"
	"github.com/cravaudio/api/internal/worker"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if cfg.Server.Env == "development" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	// Record store
	pg, err := store.Connect(cfg.Postgres.DSN)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	if err := pg.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	// Redis backs the asynq poll queue
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Warn("redis not available, poll chains will not start")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	validate := validator.New()

	// Provider registry
	registry := provider.NewRegistry(
		provider.NewLoudly(provider.LoudlyConfig{
			BaseURL: cfg.Providers.Loudly.BaseURL,
			APIKey:  cfg.Providers.Loudly.APIKey,
		}, log),
		provider.NewBeatoven(provider.BeatovenConfig{
			BaseURL: cfg.Providers.Beatoven.BaseURL,
			APIKey:  cfg.Providers.Beatoven.APIKey,
		}, log),
		provider.NewMusicGen(provider.MusicGenConfig{
			BaseURL:    cfg.Providers.MusicGen.BaseURL,
			Standalone: cfg.Flags.StandaloneMode,
		}, log),
		provider.NewEleven(cfg.Flags.ElevenEnabled),
	)

	// Rate limiter with its sweep loop
	limiter := ratelimit.New(ratelimit.Limits{
		MaxRequests:       cfg.RateLimit.MaxRequests,
		Window:            cfg.RateLimit.Window(),
		MaxPreviewsPerDay: cfg.RateLimit.MaxPreviewsPerDay,
		MaxConcurrentJobs: cfg.RateLimit.MaxConcurrentJobs,
	}, pg)
	limiter.Start(time.Duration(cfg.RateLimit.SweepIntervalSec) * time.Second)
	defer limiter.Stop()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Core wiring
	credits := ledger.New(pg, log)
	dispatcher := webhook.NewDispatcher(pg, cfg.Webhooks.Timeout(), log)
	orch := orchestrator.New(pg, registry, credits, dispatcher, hub, log)
	scheduler := worker.NewAsynqScheduler(asynqClient)

	flags := pricing.Flags{
		StandaloneMode: cfg.Flags.StandaloneMode,
		ElevenEnabled:  cfg.Flags.ElevenEnabled,
	}
	trackService := service.NewTrackService(pg, validate, limiter, credits, orch, scheduler, service.TrackServiceOptions{
		Flags:         flags,
		AllowExplicit: cfg.Flags.AllowExplicit,
		PollInterval:  cfg.Providers.PollInterval(),
	}, log)
	userService := service.NewUserService(pg, credits, log)
	creditService := service.NewCreditService(credits, dispatcher, log)
	adminService := service.NewAdminService(pg, orch, credits, scheduler, cfg.Providers.PollInterval(), log)

	// Handlers
	trackHandler := handler.NewTrackHandler(trackService)
	creditHandler := handler.NewCreditHandler(creditService, validate)
	adminHandler := handler.NewAdminHandler(adminService, validate)
	webhookHandler := handler.NewWebhookHandler(dispatcher, validate)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate(), middleware.ProvisionUser(userService), middleware.RateLimit(limiter))

	tracks := api.Group("/tracks")
	tracks.Post("/", trackHandler.Generate)
	tracks.Get("/", trackHandler.List)
	tracks.Get("/:id", trackHandler.Get)

	creditsGroup := api.Group("/credits")
	creditsGroup.Get("/", creditHandler.Balance)
	creditsGroup.Get("/history", creditHandler.History)
	creditsGroup.Get("/bundles", creditHandler.Bundles)
	creditsGroup.Post("/purchase", creditHandler.Purchase)

	admin := api.Group("/admin", authMiddleware.RequireAdmin())
	admin.Get("/tracks", adminHandler.ListTracks)
	admin.Post("/tracks/:id/retry", adminHandler.RetryTrack)
	admin.Post("/tracks/:id/fail", adminHandler.FailTrack)
	admin.Post("/tracks/:id/disable", adminHandler.DisableTrack)
	admin.Post("/credits", adminHandler.AdjustCredits)
	admin.Get("/stats", adminHandler.Stats)

	hooks := api.Group("/webhooks", authMiddleware.RequireAdmin())
	hooks.Post("/", webhookHandler.Subscribe)
	hooks.Get("/", webhookHandler.List)
	hooks.Delete("/:id", webhookHandler.Unsubscribe)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/tracks/:trackId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("trackId"))
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, orch, scheduler, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.WithField("addr", addr).Info("server starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func startWorkerServer(cfg *config.Config, orch *orchestrator.Orchestrator, scheduler worker.Scheduler, log *logrus.Logger) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				worker.QueuePolls: 10,
			},
		},
	)

	pollWorker := worker.NewPollWorker(orch, scheduler, cfg.Providers.PollInterval(), log)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypePoll, pollWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.WithError(err).Error("asynq worker error")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
