package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/adapter/cache"
	"github.com/seu-repo/hiya-assistant/internal/adapter/grpc/server"
	"github.com/seu-repo/hiya-assistant/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/hiya-assistant/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/hiya-assistant/internal/adapter/queue"
	"github.com/seu-repo/hiya-assistant/internal/adapter/storage/postgres"
	"github.com/seu-repo/hiya-assistant/internal/adapter/vault"
	wsAdapter "github.com/seu-repo/hiya-assistant/internal/adapter/websocket"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/hiya-assistant/internal/observability/telemetry"
	"github.com/seu-repo/hiya-assistant/internal/ports"
	"github.com/seu-repo/hiya-assistant/internal/service/auth"
	"github.com/seu-repo/hiya-assistant/internal/service/classifier"
	"github.com/seu-repo/hiya-assistant/internal/service/composer"
	"github.com/seu-repo/hiya-assistant/internal/service/email"
	"github.com/seu-repo/hiya-assistant/internal/service/health"
	"github.com/seu-repo/hiya-assistant/internal/service/ledger"
	"github.com/seu-repo/hiya-assistant/internal/service/orchestrator"
	"github.com/seu-repo/hiya-assistant/pkg/config"
)

const serviceName = "hiya-assistant"

func main() {
	flags := pflag.NewFlagSet(serviceName, pflag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before the config")
	flags.Int("port", 8080, "HTTP port")
	flags.Int("grpc-port", 9090, "gRPC port")
	flags.String("log-level", "info", "log level")
	flags.String("ledger", "postgres", "turn store: postgres or mongo")
	flags.String("classifier", "openai", "classifier backend: openai, gemini or anthropic")
	flags.String("transcriber", "openai", "speech-to-text backend: openai or google")
	flags.String("messaging", "memory", "turn events: nats, rabbitmq, memory or none")
	flags.Parse(os.Args[1:])

	// 1. Environment and configuration
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// 2. Logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting Hiya Assistant",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Vault secrets
	if cfg.Vault.Enabled {
		sm, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.MountPath, logger)
		if err != nil {
			logger.Fatal("Failed to create Vault client", zap.Error(err))
		}
		if err := sm.Apply(ctx, cfg); err != nil {
			logger.Fatal("Failed to read secrets from Vault", zap.Error(err))
		}
		if err := cfg.Validate(); err != nil {
			logger.Fatal("Invalid configuration after Vault", zap.Error(err))
		}
	}

	// 4. Tracing
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry.ServiceName, cfg.App.Version,
			cfg.OpenTelemetry.Jaeger.Endpoint, cfg.OpenTelemetry.Jaeger.SamplerParam)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 5. PostgreSQL
	db, err := postgres.NewConnection(postgres.Options{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogQueries:      cfg.Database.LogQueries,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close(db)

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// 6. Cache and locker
	var (
		sessionCache ports.Cache
		locker       ports.Locker
	)
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		sessionCache = redisCache
		locker = cache.NewRedisLocker(redisCache.Client(), logger)
	} else {
		logger.Warn("Redis disabled, sessions are local to this instance")
		sessionCache = cache.NewLocalCache(cfg.Cache.CleanupInterval, logger)
		locker = cache.NewLocalLocker()
	}
	defer sessionCache.Close()
	audioStore := cache.NewAudioStore(sessionCache, cfg.Cache.AudioTTL)

	// 7. Message queue
	var messageQueue ports.MessageQueue
	if cfg.Messaging.Driver != "none" {
		messageQueue, err = queue.New(cfg.Messaging.Driver, cfg.Messaging.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to message queue", zap.Error(err))
		}
		defer messageQueue.Close()
	}

	// 8. Repositories
	turnRepo, closeTurns := newTurnRepository(ctx, cfg, db, logger)
	defer closeTurns()
	userRepo := postgres.NewUserRepository(db, logger)
	var calendarMirror ports.CalendarEventRepository
	if cfg.Calendar.SyncEvents {
		calendarMirror = postgres.NewCalendarEventRepository(db, logger)
	}

	// 9. Circuit breakers, one per downstream dependency
	breakers := circuitbreaker.NewManager(breakerSettings(cfg.CircuitBreaker), logger)

	// 10. Speech and language model backends
	ai := newAIBackends(ctx, cfg, breakers, logger)
	defer ai.Close()

	// 11. Mail
	mailer, err := email.NewService(emailConfig(cfg), logger)
	if err != nil {
		logger.Warn("Email disabled", zap.Error(err))
	}

	// 12. Core services
	location, err := time.LoadLocation(cfg.Region.Timezone)
	if err != nil {
		logger.Fatal("Invalid region timezone", zap.String("timezone", cfg.Region.Timezone), zap.Error(err))
	}

	sessionLedger := ledger.NewService(turnRepo, sessionCache, messageQueue, ledger.Config{
		HistorySize:  cfg.Ledger.HistorySize,
		SessionTTL:   cfg.Ledger.SessionTTL,
		TurnsSubject: cfg.Messaging.TurnsSubject,
	}, logger)

	intentClassifier := classifier.NewService(ai.Model, classifier.Config{
		MinConfidence: cfg.Classifier.MinConfidence,
		HistoryTurns:  cfg.Classifier.HistoryTurns,
		Timezone:      cfg.Region.Timezone,
	}, logger)

	toolRegistry, err := newToolRegistry(ctx, cfg, breakers, calendarMirror, mailer, logger)
	if err != nil {
		logger.Fatal("Failed to build tool registry", zap.Error(err))
	}

	responseComposer := composer.NewService(ai.Synthesizer, audioStore, composer.Config{
		Location:         location,
		SynthesisTimeout: cfg.Orchestrator.Timeouts.Synthesis,
		AudioRefPrefix:   "/api/v1/voice/audio/",
	}, logger)

	voiceOrchestrator := orchestrator.New(orchestrator.Dependencies{
		Transcriber: ai.Transcriber,
		Classifier:  intentClassifier,
		Tools:       toolRegistry,
		Composer:    responseComposer,
		Ledger:      sessionLedger,
		Locker:      locker,
	}, orchestrator.Config{
		MaxClarificationRounds: cfg.Orchestrator.MaxClarificationRounds,
		LockTTL:                cfg.Orchestrator.LockTTL,
		Timeouts: orchestrator.Timeouts{
			Transcription:  cfg.Orchestrator.Timeouts.Transcription,
			Classification: cfg.Orchestrator.Timeouts.Classification,
			Persistence:    cfg.Orchestrator.Timeouts.Persistence,
		},
	}, logger)

	var accountMail ports.EmailService
	if mailer != nil {
		accountMail = mailer
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:          cfg.JWT.Secret,
		AccessDuration:  cfg.JWT.AccessTokenDuration,
		RefreshDuration: cfg.JWT.RefreshTokenDuration,
		Issuer:          cfg.JWT.Issuer,
		Audience:        cfg.JWT.Audience,
	}, sessionCache, logger)
	authService := auth.NewService(userRepo, jwtService, accountMail, logger)
	rbacService := auth.NewRBACService(logger)

	// 13. Health
	var queueHealth health.QueueHealth
	if hc, ok := messageQueue.(queue.HealthChecker); ok {
		queueHealth = hc
	}
	healthService := health.NewService(&health.Config{
		Version: cfg.App.Version,
		Ledger:  turnRepo,
		Cache:   sessionCache,
		Queue:   queueHealth,
	}, logger)
	healthService.RegisterChecker("circuit_breakers", breakerChecker(breakers))

	// 14. WebSocket hub, fed by recorded turn events
	ctxHub, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	wsHub := wsAdapter.NewHub(logger)
	go wsHub.Run(ctxHub)
	if messageQueue != nil {
		if err := messageQueue.Subscribe(cfg.Messaging.TurnsSubject, wsHub.Consume); err != nil {
			logger.Error("Failed to subscribe to turn events", zap.Error(err))
		}
	}

	// 15. HTTP server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}

	health.NewFiberHandler(healthService).RegisterRoutes(app)
	if cfg.Prometheus.Enabled {
		metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	authRequired := middleware.AuthRequired(authService)
	v1 := app.Group("/api/v1")
	if cfg.CircuitBreaker.Enabled {
		v1.Use(middleware.CircuitBreaker(breakers.Get("http-api")))
	}

	// Auth routes
	authHandler := handlers.NewAuthHandler(authService, sessionLedger, logger)
	v1.Post("/auth/login", authHandler.Login)
	v1.Post("/auth/register", authHandler.Register)
	v1.Post("/auth/refresh", authHandler.RefreshToken)

	protected := v1.Group("", authRequired)
	if cfg.RateLimiting.Enabled {
		protected.Use(middleware.RateLimit(cfg.RateLimiting))
	}
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)

	// Voice routes
	voiceHandler := handlers.NewVoiceHandler(voiceOrchestrator, sessionLedger, audioStore, logger)
	protected.Post("/voice/turns", middleware.RequirePermission(rbacService, auth.ResourceVoice, auth.ActionWrite), voiceHandler.SubmitTurn)
	protected.Get("/voice/history", middleware.RequirePermission(rbacService, auth.ResourceHistory, auth.ActionRead), voiceHandler.History)
	protected.Get("/voice/session", middleware.RequirePermission(rbacService, auth.ResourceSession, auth.ActionRead), voiceHandler.Session)
	protected.Delete("/voice/session", middleware.RequirePermission(rbacService, auth.ResourceSession, auth.ActionWrite), voiceHandler.ClearSession)
	protected.Get("/voice/audio/:id", voiceHandler.Audio)

	// Admin routes
	admin := protected.Group("/admin")
	admin.Get("/users/:id/history", middleware.RequirePermission(rbacService, auth.ResourceHistory, auth.ActionManage), voiceHandler.UserHistory)
	admin.Delete("/users/:id/session", middleware.RequirePermission(rbacService, auth.ResourceSession, auth.ActionManage), voiceHandler.ClearUserSession)

	// WebSocket routes
	wsAdapter.SetupRoutes(app, authRequired, wsAdapter.NewVoiceStreamHandler(voiceOrchestrator, logger), wsHub)

	// 16. gRPC server
	var grpcServer *server.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer = server.NewGRPCServer(
			server.NewVoiceGrpcService(voiceOrchestrator, sessionLedger, logger),
			authService,
			uint32(cfg.GRPC.MaxConnections),
			logger,
		)
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.Error(err))
		}
		go func() {
			logger.Info("Starting gRPC Server", zap.Int("port", cfg.GRPC.Port))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC Server failed", zap.Error(err))
			}
		}()
	}

	// 17. Start HTTP server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 18. Graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Stop()
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}
