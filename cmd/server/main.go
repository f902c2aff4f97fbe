package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/stream-queue-system/internal/auth"
	"github.com/stream-queue-system/internal/config"
	"github.com/stream-queue-system/internal/middleware"
	"github.com/stream-queue-system/internal/queue"
	"github.com/stream-queue-system/internal/ws"
	"github.com/stream-queue-system/internal/youtube"
	"github.com/stream-queue-system/pkg/database"
	"github.com/stream-queue-system/pkg/events"
	"github.com/stream-queue-system/pkg/jwt"
	"github.com/stream-queue-system/pkg/redis"
)

const (
	dbConnectAttempts = 10
	dbRetryInterval   = 2 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info().Msg(".env file not found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg)

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := connectDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
	}

	publisher := newPublisher(cfg, redisClient)
	defer publisher.Close()

	// Initialize services
	var resolver queue.Resolver
	if cfg.YouTubeAPIKey != "" {
		youtubeClient := youtube.NewClient(cfg.YouTubeAPIKey, cfg.YouTubeAPIURL)
		resolver = redis.NewMetadataCache(redisClient, youtubeClient, cfg.MetadataCacheTTL)
	} else {
		log.Warn().Msg("YOUTUBE_API_KEY not set, streams will use placeholder metadata")
	}

	sessions := redis.NewSessionStore(redisClient)
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.SessionTTL)
	queueService := queue.NewService(db, resolver, publisher, queue.Config{
		MaxQueueLen:     cfg.MaxQueueLen,
		MetadataTimeout: cfg.MetadataTimeout,
	})

	// Initialize handlers
	authHandler := auth.NewHandler(db, sessions, tokens, cfg.AuthDevLogin, cfg.IsProduction())
	queueHandler := queue.NewHandler(queueService)
	wsHandler := ws.NewHandler(redisClient, cfg.CORSAllowedOrigins)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "database": "ok", "redis": "ok"}
		code := http.StatusOK
		if err := db.Ping(ctx); err != nil {
			status["status"], status["database"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			status["status"], status["redis"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	v1 := router.Group("/api/v1")

	// Public routes
	authHandler.RegisterRoutes(v1)

	// Protected routes
	protected := v1.Group("")
	protected.Use(authHandler.Middleware())
	{
		queueHandler.RegisterRoutes(protected)

		// WebSocket endpoint
		protected.GET("/ws/:creatorId", wsHandler.HandleWebSocket)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// connectDB retries while the database container is still starting.
func connectDB(cfg *config.Config) (*database.DB, error) {
	gormLevel := logger.Warn
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gormLevel = logger.Info
	}

	var (
		db  *database.DB
		err error
	)
	for attempt := 1; attempt <= dbConnectAttempts; attempt++ {
		db, err = database.NewDB(cfg.DatabaseURL, gormLevel)
		if err == nil {
			return db, nil
		}

		log.Error().Err(err).Int("attempt", attempt).
			Msgf("failed to connect to database, retrying in %s", dbRetryInterval)
		time.Sleep(dbRetryInterval)
	}
	return nil, err
}

// newPublisher fans queue events out to every configured sink. Redis is
// always on because the websocket feed reads from it.
func newPublisher(cfg *config.Config, redisClient *goredis.Client) events.Publisher {
	fanout := events.Fanout{events.NewRedisPublisher(redisClient)}

	if len(cfg.KafkaBrokers) > 0 {
		fanout = append(fanout, events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic))
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka events enabled")
	}

	if cfg.MQTTBrokerURL != "" {
		mqttPublisher, err := events.NewMQTTPublisher(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			log.Error().Err(err).Msg("MQTT disabled")
		} else {
			fanout = append(fanout, mqttPublisher)
		}
	}

	return fanout
}
