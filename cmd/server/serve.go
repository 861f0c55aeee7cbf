package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"narrative-server/internal/config"
	"narrative-server/internal/database"
	"narrative-server/internal/extraction"
	"narrative-server/internal/handler"
	"narrative-server/internal/messaging"
	"narrative-server/internal/realtime"
	"narrative-server/internal/repository"
	"narrative-server/internal/resolver"
	"narrative-server/internal/service"
	"narrative-server/pkg/ai"
	"narrative-server/pkg/authutils"
	pgdb "narrative-server/pkg/database"
	"narrative-server/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("Configuration loaded", zap.String("env", cfg.Env), zap.String("logLevel", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- External Connections ---
	connectCtx, cancelConnect := context.WithTimeout(ctx, 2*time.Minute)
	pool, err := connectPostgres(connectCtx, cfg, log, 40)
	cancelConnect()
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := database.NewMigrator(pool, log).Up(); err != nil {
			return fmt.Errorf("ошибка применения миграций: %w", err)
		}
	}

	redisClient, err := setupRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	mqConn, err := setupRabbitMQ(cfg, log)
	if err != nil {
		return err
	}
	if mqConn != nil {
		defer mqConn.Close()
	}

	// --- Dependency Injection ---
	aiClient, err := ai.NewAIClient(ai.Config{
		Type:    cfg.AIClientType,
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("ошибка создания AI клиента: %w", err)
	}
	gateway, err := extraction.NewGateway(aiClient, ai.NewTokenCounter(cfg.AIModel, log), extraction.Config{
		ExtractionTimeout:  cfg.ExtractionTimeout,
		ListenerTimeout:    cfg.ListenerTimeout,
		HelperTimeout:      cfg.HelperTimeout,
		ContextTokenBudget: cfg.ContextTokenBudget,
	}, log)
	if err != nil {
		return fmt.Errorf("ошибка создания шлюза извлечения: %w", err)
	}

	hub := realtime.NewConnectionManager(log)
	defer hub.Close()

	publishers := messaging.MultiPublisher{hub}
	if mqConn != nil {
		rabbitPublisher, err := messaging.NewRabbitMQStoryUpdatePublisher(mqConn, cfg.StoryUpdateExchange, log)
		if err != nil {
			return err
		}
		publishers = append(publishers, rabbitPublisher)
	}

	txHelper := pgdb.NewTransactionHelper(pool, log)
	stories := repository.NewPgStoryRepository(log)
	narrations := repository.NewPgNarrationRepository(log)
	elements := repository.NewPgElementRepository(log)
	mentions := repository.NewPgMentionRepository(log)
	moments := repository.NewPgMomentRepository(log)
	connections := repository.NewPgConnectionRepository(log)
	suggestions := repository.NewPgSuggestionRepository(log)
	progressRepo := repository.NewPgProgressRepository(log)
	resolverSvc := resolver.NewService(elements, log)

	progressSvc := service.NewProgressService(pool, txHelper, progressRepo, log)
	services := handler.Services{
		Stories: service.NewStoryService(pool, stories, log),
		Narrations: service.NewNarrationService(service.NarrationDeps{
			DB:         pool,
			Tx:         txHelper,
			Stories:    stories,
			Narrations: narrations,
			Moments:    moments,
			Resolver:   resolverSvc,
			Extractor:  gateway,
			Stager:     service.NewStager(txHelper, suggestions, log),
			Progress:   progressSvc,
			Publisher:  publishers,
		}, log),
		Suggestions: service.NewSuggestionService(service.SuggestionDeps{
			DB:          pool,
			Tx:          txHelper,
			Stories:     stories,
			Narrations:  narrations,
			Suggestions: suggestions,
			Elements:    elements,
			Mentions:    mentions,
			Moments:     moments,
			Connections: connections,
			Resolver:    resolverSvc,
			Progress:    progressSvc,
			Publisher:   publishers,
		}, log),
		World: service.NewWorldService(service.WorldDeps{
			DB:          pool,
			Tx:          txHelper,
			Stories:     stories,
			Elements:    elements,
			Mentions:    mentions,
			Moments:     moments,
			Connections: connections,
			Extractor:   gateway,
		}, log),
		Progress: progressSvc,
	}

	verifier, err := authutils.NewJWTVerifier(authutils.VerifierConfig{
		Secret:       cfg.JWTSecret,
		PublicKeyPEM: cfg.JWTPublicKeyPEM,
		Audience:     cfg.JWTAudience,
		Issuer:       cfg.JWTIssuer,
	}, log)
	if err != nil {
		return err
	}

	// --- HTTP Server Setup (Gin) ---
	router := newRouter(cfg, log)
	ginprometheus.NewPrometheus("gin").Use(router)
	router.GET("/ws", realtime.NewWebSocketHandler(hub, verifier.VerifyToken, cfg.GetAllowedOrigins(), log).ServeWS)

	narrationLimiter := middleware.RateLimiter(middleware.NewRateLimitStore(middleware.RateLimitConfig{
		Limit: cfg.NarrationRateLimit,
		Rate:  cfg.NarrationRatePeriod,
		Redis: redisClient,
	}), log.Named("RateLimiter"))
	handler.NewNarrativeHandler(services, log).
		RegisterRoutes(router, middleware.AuthMiddleware(verifier.VerifyToken, log.Named("Auth")), narrationLimiter)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Запись покрывает извлечение LLM при приеме наррации
		WriteTimeout: cfg.ExtractionTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("ошибка HTTP сервера: %w", err)
		}
	}

	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exiting")
	return nil
}

func newRouter(cfg *config.Config, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.GinZapLogger(log.Named("HTTP")))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173"}
		log.Info("CORS_ALLOWED_ORIGINS not set, allowing default", zap.String("origin", "http://localhost:5173"))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)
	return router
}

// setupRedis подключается к Redis для rate limit. Без REDIS_URL возвращает nil.
func setupRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, rate limiter uses in-memory store")
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}
	log.Info("Connected to Redis", zap.String("addr", opts.Addr))
	return client, nil
}

// setupRabbitMQ подключается к RabbitMQ. Без RABBITMQ_URL события идут только в websocket.
func setupRabbitMQ(cfg *config.Config, log *zap.Logger) (*amqp.Connection, error) {
	if cfg.RabbitMQURL == "" {
		log.Info("RABBITMQ_URL not set, story updates are delivered over websocket only")
		return nil, nil
	}
	conn, err := messaging.ConnectRabbitMQ(cfg.RabbitMQURL, 10, 3*time.Second, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к RabbitMQ: %w", err)
	}
	log.Info("Connected to RabbitMQ")
	return conn, nil
}
